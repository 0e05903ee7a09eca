package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/creator-selection/pkg/core/eligibility"
	"github.com/jakechorley/creator-selection/pkg/core/model"
	"github.com/jakechorley/creator-selection/pkg/db"
)

// mockCandidateSource implements CandidateSource for testing
type mockCandidateSource struct {
	candidates []model.Candidate
	err        error
}

func (m *mockCandidateSource) ListCandidates(ctx context.Context, series model.Series) ([]model.Candidate, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.candidates, nil
}

// mockFeed implements eligibility.SupportStatusFeed for testing
type mockFeed struct {
	mu    sync.Mutex
	plans map[string][]string
}

func (m *mockFeed) ActivePlans(ctx context.Context, seriesID string, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.plans[userID], nil
}

// barrierStore holds every caller in GetUserData until all expected runs have loaded their state
type barrierStore struct {
	*db.MemoryDB
	loaded *sync.WaitGroup
}

func (b *barrierStore) GetUserData(ctx context.Context, seriesID string) ([]model.UserData, error) {
	userData, err := b.MemoryDB.GetUserData(ctx, seriesID)
	b.loaded.Done()
	b.loaded.Wait()
	return userData, err
}

// mockEvaluator implements EligibilityEvaluator for testing
type mockEvaluator struct {
	err error
}

func (m *mockEvaluator) EvaluateAll(ctx context.Context, seriesID string, cfg model.EligibilityConfiguration, candidates []model.Candidate, force bool) (map[string]model.EligibilityResult, error) {
	return nil, m.err
}

func testOptions() []model.EligibilityOption {
	return []model.EligibilityOption{
		{PlanID: "gold", PriorityGroup: "patrons", PriorityModifier: 3, SelectionWave: eligibility.Wave(1)},
		{PlanID: "bronze", PriorityGroup: "supporters", PriorityModifier: 1, SelectionWave: eligibility.Wave(2)},
		{PlanID: "follower", PriorityGroup: "public", PriorityModifier: 0.5},
	}
}

func newTestEvaluator(plans map[string][]string) *eligibility.Evaluator {
	return eligibility.NewEvaluator(&mockFeed{plans: plans}, nil, 2, zap.NewNop())
}

func setupSeries(t *testing.T, store db.SeriesStore) model.Series {
	t.Helper()
	result, err := DefineSeries(context.Background(), store, zap.NewNop(), DefineSeriesParams{
		Name:            "Monthly giveaway",
		OwnershipType:   model.OwnershipQuestionnaire,
		QuestionnaireID: "questionnaire-1",
		Options:         testOptions(),
	})
	require.NoError(t, err)
	return result.Series
}

// makeCandidates creates one submission per user, numbered from 1, each user on the given plan
func makeCandidates(prefix string, count int, plan string, plans map[string][]string) []model.Candidate {
	candidates := make([]model.Candidate, 0, count)
	for i := 1; i <= count; i++ {
		userID := fmt.Sprintf("%s-user-%d", prefix, i)
		candidates = append(candidates, model.Candidate{
			ID:              fmt.Sprintf("%s-sub-%d", prefix, i),
			UserID:          userID,
			Number:          i,
			UserDisplayName: fmt.Sprintf("%s %d", prefix, i),
		})
		if plan != "" {
			plans[userID] = []string{plan}
		}
	}
	return candidates
}
