package services

import (
	"context"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/jakechorley/creator-selection/pkg/core/model"
	"github.com/jakechorley/creator-selection/pkg/core/selector"
)

// CandidateSource enumerates the candidates of a series with their owners and labels
type CandidateSource interface {
	ListCandidates(ctx context.Context, series model.Series) ([]model.Candidate, error)
}

// EligibilityEvaluator resolves eligibility for a set of candidates, keyed by candidate ID
type EligibilityEvaluator interface {
	EvaluateAll(ctx context.Context, seriesID string, cfg model.EligibilityConfiguration, candidates []model.Candidate, force bool) (map[string]model.EligibilityResult, error)
}

// NewRand returns a non-deterministic random source for production runs
func NewRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// NewSeededRand returns a reproducible random source
func NewSeededRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func newMarker() string {
	return uuid.New().String()
}

// filterByLabels keeps candidates that carry none of the excluded labels and, when included is
// non-empty, at least one of the included labels
func filterByLabels(candidates []model.Candidate, included, excluded []string) []model.Candidate {
	includedSet := toSet(included)
	excludedSet := toSet(excluded)

	filtered := make([]model.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.HasAnyLabel(excludedSet) {
			continue
		}
		if len(includedSet) > 0 && !c.HasAnyLabel(includedSet) {
			continue
		}
		filtered = append(filtered, c)
	}
	return filtered
}

func candidateUserIDs(candidates []model.Candidate) []string {
	userIDs := make([]string, 0, len(candidates))
	for _, c := range candidates {
		userIDs = append(userIDs, c.UserID)
	}
	return userIDs
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

// eligiblePool converts the eligible candidates to draw candidates, preserving input order
func eligiblePool(candidates []model.Candidate, results map[string]model.EligibilityResult) []selector.Candidate {
	pool := make([]selector.Candidate, 0, len(candidates))
	for _, c := range candidates {
		result, ok := results[c.ID]
		if !ok || !result.IsEligible {
			continue
		}
		pool = append(pool, selector.Candidate{
			ID:     c.ID,
			UserID: c.UserID,
			Weight: result.EffectiveWeight,
			Wave:   result.SelectionWave,
		})
	}
	return pool
}

// recordsToRows assigns IDs and positions to a run's records.
// Entries continue from entryStart; audit events keep their own sequence starting at eventStart.
func recordsToRows(records []selector.Record, batchID string, entryStart, eventStart int) ([]model.Entry, []model.Event) {
	entries := make([]model.Entry, 0, len(records))
	events := []model.Event{}

	for i, r := range records {
		entry := model.Entry{
			ID:            uuid.New().String(),
			BatchID:       batchID,
			BatchPosition: entryStart + i,
			Cycle:         r.Cycle,
		}

		switch r.Kind {
		case selector.RecordPicked:
			entry.Kind = model.EntryKindPicked
			entry.CandidateID = r.CandidateID
			entry.UserID = r.UserID
		case selector.RecordEvent:
			entry.Kind = model.EntryKindEvent
			entry.EventKind = r.EventKind
			events = append(events, model.Event{
				ID:            uuid.New().String(),
				BatchID:       batchID,
				BatchPosition: eventStart + len(events),
				Kind:          r.EventKind,
				Cycle:         r.Cycle,
			})
		}

		entries = append(entries, entry)
	}

	return entries, events
}

func countPicked(entries []model.Entry) int {
	count := 0
	for _, e := range entries {
		if e.IsPicked() {
			count++
		}
	}
	return count
}
