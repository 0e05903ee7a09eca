package selector

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/creator-selection/pkg/core/eligibility"
	"github.com/jakechorley/creator-selection/pkg/core/model"
)

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

func candidate(id, userID string, weight float64, wave *int) Candidate {
	return Candidate{ID: id, UserID: userID, Weight: weight, Wave: wave}
}

func pickedIDs(state *SelectionState) []string {
	ids := []string{}
	for _, r := range state.Records {
		if r.Kind == RecordPicked {
			ids = append(ids, r.CandidateID)
		}
	}
	return ids
}

func eventKinds(state *SelectionState) []model.EventKind {
	kinds := []model.EventKind{}
	for _, r := range state.Records {
		if r.Kind == RecordEvent {
			kinds = append(kinds, r.EventKind)
		}
	}
	return kinds
}

func TestSelect_Validation(t *testing.T) {
	pool := []Candidate{candidate("c1", "u1", 1, nil)}
	state := NewSelectionState(0, nil, pool)

	_, err := Select(SelectionConfig{BatchPool: pool, State: state, Quota: 0, Rand: seeded(1)})
	assert.Error(t, err)

	_, err = Select(SelectionConfig{BatchPool: pool, Quota: 1, Rand: seeded(1)})
	assert.Error(t, err)

	_, err = Select(SelectionConfig{BatchPool: pool, State: state, Quota: 1})
	assert.Error(t, err)
}

// Scenario A: filling the quota with the last eligible user completes the cycle
func TestSelect_LastPickCompletesCycle(t *testing.T) {
	pool := []Candidate{
		candidate("c1", "u1", 1, nil),
		candidate("c2", "u2", 1, nil),
		candidate("c3", "u3", 1, nil),
	}
	state := NewSelectionState(0, nil, pool)

	outcome, err := Select(SelectionConfig{BatchPool: pool, State: state, Quota: 3, Rand: seeded(42)})
	require.NoError(t, err)

	assert.Equal(t, 3, outcome.PickedCount)
	assert.Equal(t, StopQuotaFilled, outcome.StopReason)
	assert.ElementsMatch(t, []string{"c1", "c2", "c3"}, pickedIDs(state))
	assert.Equal(t, []model.EventKind{model.EventCycleCompleted}, eventKinds(state))
	assert.Equal(t, 1, state.CompletedCycles)
	assert.Equal(t, 1, state.Cycle)

	for _, ud := range state.UserData("series-1") {
		assert.Equal(t, 0, ud.SelectedCount, "SelectedCount should reset for %s", ud.UserID)
		assert.Equal(t, 1, ud.TotalSelectedCount)
	}

	// The event follows the final pick
	last := state.Records[len(state.Records)-1]
	assert.Equal(t, RecordEvent, last.Kind)
	assert.Equal(t, 0, last.Cycle)
}

func TestSelect_OnePickPerUserPerCycle(t *testing.T) {
	// u1 owns three submissions, u2 one
	pool := []Candidate{
		candidate("c1", "u1", 1, nil),
		candidate("c2", "u1", 1, nil),
		candidate("c3", "u1", 1, nil),
		candidate("c4", "u2", 1, nil),
	}

	for seed := uint64(0); seed < 20; seed++ {
		state := NewSelectionState(0, nil, pool)
		outcome, err := Select(SelectionConfig{BatchPool: pool, State: state, Quota: 4, Rand: seeded(seed)})
		require.NoError(t, err)

		assert.Equal(t, 2, outcome.PickedCount, "Seed %d", seed)
		assert.Equal(t, StopCycleBoundary, outcome.StopReason, "Seed %d", seed)

		users := map[string]int{}
		for _, r := range state.Records {
			if r.Kind == RecordPicked {
				users[r.UserID]++
			}
		}
		assert.Equal(t, map[string]int{"u1": 1, "u2": 1}, users, "Seed %d", seed)
	}
}

func TestSelect_WavePriority(t *testing.T) {
	pool := []Candidate{
		candidate("late-1", "u1", 100, nil),
		candidate("w2-1", "u2", 50, eligibility.Wave(2)),
		candidate("w1-1", "u3", 0.1, eligibility.Wave(1)),
		candidate("w1-2", "u4", 0.1, eligibility.Wave(1)),
		candidate("late-2", "u5", 100, nil),
	}

	for seed := uint64(0); seed < 20; seed++ {
		state := NewSelectionState(0, nil, pool)
		_, err := Select(SelectionConfig{BatchPool: pool, State: state, Quota: 3, Rand: seeded(seed)})
		require.NoError(t, err)

		picked := pickedIDs(state)
		require.Len(t, picked, 3)
		assert.ElementsMatch(t, []string{"w1-1", "w1-2"}, picked[:2], "Wave 1 must be exhausted first (seed %d)", seed)
		assert.Equal(t, "w2-1", picked[2], "Wave 2 before nil wave (seed %d)", seed)
	}
}

func TestSelect_NeverPicksOutsideBatchPool(t *testing.T) {
	seriesPool := []Candidate{
		candidate("c1", "u1", 1, nil),
		candidate("c2", "u2", 1, nil),
		candidate("c3", "u3", 1, nil),
	}
	batchPool := seriesPool[:2]
	state := NewSelectionState(0, nil, seriesPool)

	outcome, err := Select(SelectionConfig{BatchPool: batchPool, State: state, Quota: 3, Rand: seeded(7)})
	require.NoError(t, err)

	assert.Equal(t, 2, outcome.PickedCount)
	assert.Equal(t, StopPoolExhausted, outcome.StopReason)
	assert.NotContains(t, pickedIDs(state), "c3")
	assert.Empty(t, eventKinds(state), "u3 is unselected so the cycle is not complete")
}

func TestSelect_CycleBoundaryWithoutRestarts(t *testing.T) {
	pool := []Candidate{
		candidate("c1", "u1", 1, nil),
		candidate("c2", "u2", 1, nil),
	}
	state := NewSelectionState(0, nil, pool)

	outcome, err := Select(SelectionConfig{BatchPool: pool, State: state, Quota: 5, Rand: seeded(3)})
	require.NoError(t, err)

	assert.Equal(t, 2, outcome.PickedCount)
	assert.Equal(t, StopCycleBoundary, outcome.StopReason)
	assert.Equal(t, []model.EventKind{model.EventCycleCompleted}, eventKinds(state))
	assert.Equal(t, 1, state.CompletedCycles)
}

func TestSelect_CycleBoundaryWithRestarts(t *testing.T) {
	pool := []Candidate{
		candidate("c1", "u1", 1, nil),
		candidate("c2", "u2", 1, nil),
	}
	state := NewSelectionState(0, nil, pool)

	outcome, err := Select(SelectionConfig{BatchPool: pool, State: state, Quota: 3, AllowRestarts: true, Rand: seeded(3)})
	require.NoError(t, err)

	assert.Equal(t, 3, outcome.PickedCount)
	assert.Equal(t, StopQuotaFilled, outcome.StopReason)
	assert.Equal(t, []model.EventKind{model.EventCycleCompleted, model.EventRestartTriggered}, eventKinds(state))
	assert.Equal(t, 1, state.Cycle)

	// The third pick belongs to the new cycle
	var lastPick Record
	for _, r := range state.Records {
		if r.Kind == RecordPicked {
			lastPick = r
		}
	}
	assert.Equal(t, 1, lastPick.Cycle)
	assert.True(t, state.IsUserSelected(lastPick.UserID))
}

func TestSelect_ResumesPersistedCycle(t *testing.T) {
	pool := []Candidate{
		candidate("c1", "u1", 1, nil),
		candidate("c2", "u2", 1, nil),
		candidate("c3", "u3", 1, nil),
	}
	userData := []model.UserData{
		{SeriesID: "s", UserID: "u1", LatestWeight: 1, SelectedCount: 1, TotalSelectedCount: 4},
	}
	state := NewSelectionState(2, userData, pool)

	outcome, err := Select(SelectionConfig{BatchPool: pool, State: state, Quota: 2, Rand: seeded(9)})
	require.NoError(t, err)

	assert.Equal(t, 2, outcome.PickedCount)
	assert.ElementsMatch(t, []string{"c2", "c3"}, pickedIDs(state))
	assert.Equal(t, []model.EventKind{model.EventCycleCompleted}, eventKinds(state))
	assert.Equal(t, 3, state.Cycle)
	assert.Equal(t, 4, state.Users["u1"].TotalSelectedCount)
}

func TestSelect_EmptyPool(t *testing.T) {
	state := NewSelectionState(0, nil, nil)

	outcome, err := Select(SelectionConfig{State: state, Quota: 2, Rand: seeded(1)})
	require.NoError(t, err)

	assert.Equal(t, 0, outcome.PickedCount)
	assert.Equal(t, StopPoolExhausted, outcome.StopReason)
	assert.Empty(t, state.Records)
}

func TestSelect_SeededRunsAreReproducible(t *testing.T) {
	pool := []Candidate{}
	for i := 0; i < 30; i++ {
		pool = append(pool, candidate(fmt.Sprintf("c%d", i), fmt.Sprintf("u%d", i), float64(i%4+1), nil))
	}

	run := func() []string {
		state := NewSelectionState(0, nil, pool)
		_, err := Select(SelectionConfig{BatchPool: pool, State: state, Quota: 10, Rand: seeded(2024)})
		require.NoError(t, err)
		return pickedIDs(state)
	}

	assert.Equal(t, run(), run())
}

func TestSelect_WeightsBiasTheDraw(t *testing.T) {
	pool := []Candidate{
		candidate("heavy", "u1", 9, nil),
		candidate("light", "u2", 1, nil),
	}
	rng := seeded(11)

	heavyFirst := 0
	const runs = 2000
	for i := 0; i < runs; i++ {
		state := NewSelectionState(0, nil, pool)
		_, err := Select(SelectionConfig{BatchPool: pool, State: state, Quota: 1, Rand: rng})
		require.NoError(t, err)
		if pickedIDs(state)[0] == "heavy" {
			heavyFirst++
		}
	}

	// Expected 90%; allow generous slack
	ratio := float64(heavyFirst) / runs
	assert.InDelta(t, 0.9, ratio, 0.05)
}

func TestSelect_UserWeightMultipliesEligibilityWeight(t *testing.T) {
	pool := []Candidate{
		candidate("a", "u1", 1, nil),
		candidate("b", "u2", 1, nil),
	}
	userData := []model.UserData{
		{UserID: "u1", LatestWeight: 0},
		{UserID: "u2", LatestWeight: 1},
	}

	for seed := uint64(0); seed < 20; seed++ {
		state := NewSelectionState(0, userData, pool)
		_, err := Select(SelectionConfig{BatchPool: pool, State: state, Quota: 1, Rand: seeded(seed)})
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, pickedIDs(state), "Zero user weight should never be drawn over a positive one")
	}
}

func TestSelect_NegativeWeight(t *testing.T) {
	pool := []Candidate{candidate("a", "u1", -1, nil)}
	state := NewSelectionState(0, nil, pool)

	_, err := Select(SelectionConfig{BatchPool: pool, State: state, Quota: 1, Rand: seeded(1)})
	assert.Error(t, err)
}

func TestSelectionState_TrackUsers(t *testing.T) {
	pool := []Candidate{candidate("c1", "u1", 1, nil)}
	userData := []model.UserData{
		{UserID: "lapsed", LatestWeight: 0.5, TotalSelectedCount: 2},
	}
	state := NewSelectionState(0, userData, pool)
	state.TrackUsers([]string{"u1", "lapsed", "newcomer"})

	require.Len(t, state.Users, 3)
	assert.Equal(t, 0.5, state.Users["lapsed"].LatestWeight, "Known users keep their state")
	assert.Equal(t, 2, state.Users["lapsed"].TotalSelectedCount)
	assert.Equal(t, model.DefaultUserWeight, state.Users["newcomer"].LatestWeight)
	assert.False(t, state.SeriesExhausted(), "Tracked users do not join the pool")
}
