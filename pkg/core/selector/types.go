package selector

import (
	"slices"
	"strings"

	"github.com/jakechorley/creator-selection/pkg/core/eligibility"
	"github.com/jakechorley/creator-selection/pkg/core/model"
)

// Candidate is an eligible pool member with its resolved draw parameters
type Candidate struct {
	ID     string
	UserID string

	// Weight is the EffectiveWeight from eligibility resolution
	Weight float64

	// Wave is the selection tier (nil is drawn last)
	Wave *int
}

// UserState is the mutable fairness state of one user during a run
type UserState struct {
	LatestWeight       float64
	SelectedCount      int
	TotalSelectedCount int
}

// RecordKind discriminates the records produced by a run
type RecordKind string

const (
	RecordPicked RecordKind = "picked"
	RecordEvent  RecordKind = "event"
)

// Record is one step of the run in the order it happened.
// Positions and IDs are assigned by the caller when persisting.
type Record struct {
	Kind        RecordKind
	CandidateID string
	UserID      string
	Cycle       int
	EventKind   model.EventKind
}

// StopReason explains why a run stopped drawing
type StopReason string

const (
	// StopQuotaFilled means the requested number of entries was selected
	StopQuotaFilled StopReason = "quota_filled"

	// StopPoolExhausted means no drawable candidate remained in the batch pool
	StopPoolExhausted StopReason = "pool_exhausted"

	// StopCycleBoundary means the cycle completed and restarts were not allowed
	StopCycleBoundary StopReason = "cycle_boundary"
)

// SelectionState is the state of the series while a run is in progress
type SelectionState struct {
	// Cycle is the zero based number of the cycle in progress
	Cycle int

	// CompletedCycles counts cycles completed during this run
	CompletedCycles int

	// Users holds fairness state for every known user, keyed by user ID
	Users map[string]*UserState

	// SeriesPool is every eligible candidate in the series, regardless of label filters.
	// Used to detect when a cycle is complete.
	SeriesPool []Candidate

	// Records produced so far, in order
	Records []Record
}

// NewSelectionState builds the run state from persisted user data.
// Users in the series pool without persisted data get the default weight.
func NewSelectionState(cycle int, userData []model.UserData, seriesPool []Candidate) *SelectionState {
	state := &SelectionState{
		Cycle:      cycle,
		Users:      make(map[string]*UserState, len(userData)),
		SeriesPool: seriesPool,
	}

	for _, ud := range userData {
		state.Users[ud.UserID] = &UserState{
			LatestWeight:       ud.LatestWeight,
			SelectedCount:      ud.SelectedCount,
			TotalSelectedCount: ud.TotalSelectedCount,
		}
	}

	for _, candidate := range seriesPool {
		state.ensureUser(candidate.UserID)
	}

	return state
}

// TrackUsers gives every evaluated user a fairness row, eligible or not
func (s *SelectionState) TrackUsers(userIDs []string) {
	for _, userID := range userIDs {
		s.ensureUser(userID)
	}
}

func (s *SelectionState) ensureUser(userID string) *UserState {
	user, ok := s.Users[userID]
	if !ok {
		user = &UserState{LatestWeight: model.DefaultUserWeight}
		s.Users[userID] = user
	}
	return user
}

// IsUserSelected reports whether the user was already picked in the current cycle
func (s *SelectionState) IsUserSelected(userID string) bool {
	user, ok := s.Users[userID]
	return ok && user.SelectedCount > 0
}

// IsDrawable reports whether a candidate can still be picked in the current cycle
func (s *SelectionState) IsDrawable(candidate Candidate) bool {
	return !s.IsUserSelected(candidate.UserID)
}

// Pick records a selection and updates the owner's fairness state
func (s *SelectionState) Pick(candidateID, userID string) {
	user := s.ensureUser(userID)
	user.SelectedCount = 1
	user.TotalSelectedCount++

	s.Records = append(s.Records, Record{
		Kind:        RecordPicked,
		CandidateID: candidateID,
		UserID:      userID,
		Cycle:       s.Cycle,
	})
}

// SeriesExhausted reports whether every eligible candidate in the series belongs to a user
// already selected in this cycle. An empty pool is never exhausted.
func (s *SelectionState) SeriesExhausted() bool {
	if len(s.SeriesPool) == 0 {
		return false
	}
	for _, candidate := range s.SeriesPool {
		if s.IsDrawable(candidate) {
			return false
		}
	}
	return true
}

// CompleteCycle records the cycle boundary and resets every user's selection for the new cycle
func (s *SelectionState) CompleteCycle() {
	s.Records = append(s.Records, Record{
		Kind:      RecordEvent,
		Cycle:     s.Cycle,
		EventKind: model.EventCycleCompleted,
	})

	for _, user := range s.Users {
		user.SelectedCount = 0
	}

	s.Cycle++
	s.CompletedCycles++
}

// Restart records that drawing continues into the new cycle
func (s *SelectionState) Restart() {
	s.Records = append(s.Records, Record{
		Kind:      RecordEvent,
		Cycle:     s.Cycle,
		EventKind: model.EventRestartTriggered,
	})
}

// PickedCount returns the number of picks recorded so far
func (s *SelectionState) PickedCount() int {
	count := 0
	for _, record := range s.Records {
		if record.Kind == RecordPicked {
			count++
		}
	}
	return count
}

// UserData converts the run state back to persisted rows for the given series
func (s *SelectionState) UserData(seriesID string) []model.UserData {
	result := make([]model.UserData, 0, len(s.Users))
	for userID, user := range s.Users {
		result = append(result, model.UserData{
			SeriesID:           seriesID,
			UserID:             userID,
			LatestWeight:       user.LatestWeight,
			SelectedCount:      user.SelectedCount,
			TotalSelectedCount: user.TotalSelectedCount,
		})
	}
	slices.SortFunc(result, func(a, b model.UserData) int {
		return strings.Compare(a.UserID, b.UserID)
	})
	return result
}

// tiers groups candidates by wave, in draw order
func tiers(candidates []Candidate) [][]Candidate {
	waves := make([]*int, 0, len(candidates))
	for _, c := range candidates {
		waves = append(waves, c.Wave)
	}

	ordered := eligibility.SortWaves(waves)
	result := make([][]Candidate, 0, len(ordered))
	for _, wave := range ordered {
		tier := make([]Candidate, 0)
		for _, c := range candidates {
			if eligibility.SameWave(c.Wave, wave) {
				tier = append(tier, c)
			}
		}
		result = append(result, tier)
	}
	return result
}
