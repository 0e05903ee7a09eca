package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/creator-selection/pkg/core/model"
	"github.com/jakechorley/creator-selection/pkg/core/selector"
	"github.com/jakechorley/creator-selection/pkg/db"
)

// SkipReason explains why a manually requested candidate was not added
type SkipReason string

const (
	SkipNotFound        SkipReason = "NotFound"
	SkipAlreadySelected SkipReason = "AlreadySelected"
	SkipDuplicate       SkipReason = "Duplicate"
)

// SkippedSubmission reports one candidate that was not added
type SkippedSubmission struct {
	CandidateID     string
	Number          int
	UserDisplayName string
	Reason          SkipReason
}

// ManualAddResult contains the outcome of a manual add
type ManualAddResult struct {
	AddedCount         int
	BatchID            string
	Entries            []model.Entry
	CycleCompleted     bool
	SkippedSubmissions []SkippedSubmission
}

// ManualAddEntries force-adds candidates to the series' latest batch, or to a new manual batch when
// the series has none. Candidates are checked in request order; problems with individual
// candidates are reported as skips and never abort the add.
// Manual picks bypass eligibility, but cycle completion is still judged against the eligible pool.
func ManualAddEntries(
	ctx context.Context,
	store db.SelectionStore,
	candidateSource CandidateSource,
	evaluator EligibilityEvaluator,
	logger *zap.Logger,
	seriesID string,
	candidateIDs []string,
) (*ManualAddResult, error) {
	if len(candidateIDs) == 0 {
		return nil, validationError("at least one candidate ID is required")
	}

	startedAt := time.Now().UTC()
	logger.Debug("Starting manual add",
		zap.String("series_id", seriesID),
		zap.Strings("candidate_ids", candidateIDs))

	// Step 1: Load series state
	series, err := store.GetSeries(ctx, seriesID)
	if err != nil {
		return nil, fmt.Errorf("failed to load series: %w", err)
	}
	cfg, err := store.GetEligibilityConfiguration(ctx, seriesID)
	if err != nil {
		return nil, fmt.Errorf("failed to load eligibility configuration: %w", err)
	}
	userData, err := store.GetUserData(ctx, seriesID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user data: %w", err)
	}

	// Step 2: Fetch candidates and the eligible pool
	candidates, err := candidateSource.ListCandidates(ctx, *series)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	results, err := evaluator.EvaluateAll(ctx, seriesID, *cfg, candidates, false)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate eligibility: %w", err)
	}

	candidatesByID := make(map[string]model.Candidate, len(candidates))
	for _, c := range candidates {
		candidatesByID[c.ID] = c
	}

	// Step 3: Apply requested picks in order
	state := selector.NewSelectionState(series.CurrentCycle(), userData, eligiblePool(candidates, results))
	state.TrackUsers(candidateUserIDs(candidates))
	result := &ManualAddResult{}
	requested := make(map[string]bool, len(candidateIDs))

	for _, id := range candidateIDs {
		candidate, ok := candidatesByID[id]
		if !ok {
			result.SkippedSubmissions = append(result.SkippedSubmissions, SkippedSubmission{
				CandidateID: id,
				Reason:      SkipNotFound,
			})
			continue
		}

		skip := SkippedSubmission{
			CandidateID:     candidate.ID,
			Number:          candidate.Number,
			UserDisplayName: candidate.UserDisplayName,
		}
		switch {
		case requested[id]:
			skip.Reason = SkipDuplicate
		case state.IsUserSelected(candidate.UserID):
			skip.Reason = SkipAlreadySelected
		}
		requested[id] = true

		if skip.Reason != "" {
			result.SkippedSubmissions = append(result.SkippedSubmissions, skip)
			continue
		}

		state.Pick(candidate.ID, candidate.UserID)
		result.AddedCount++
	}

	for _, skip := range result.SkippedSubmissions {
		logger.Warn("Skipped manual entry",
			zap.String("candidate_id", skip.CandidateID),
			zap.String("reason", string(skip.Reason)))
	}

	if result.AddedCount == 0 {
		logger.Info("No entries added", zap.String("series_id", seriesID))
		return result, nil
	}

	// Step 4: Cycle bookkeeping, without restarts
	if state.SeriesExhausted() {
		state.CompleteCycle()
		result.CycleCompleted = true
	}

	// Step 5: Target batch and positions
	batch, entryStart, eventStart, newBatch, err := manualTargetBatch(ctx, store, seriesID, startedAt)
	if err != nil {
		return nil, err
	}
	if newBatch {
		batch.RollCompletedAt = time.Now().UTC()
	}

	entries, events := recordsToRows(state.Records, batch.ID, entryStart, eventStart)
	result.BatchID = batch.ID
	result.Entries = entries

	// Step 6: Commit
	commit := db.BatchCommit{
		SeriesID:            seriesID,
		ExpectedMarker:      series.ConcurrencyMarker,
		NewMarker:           newMarker(),
		CompleteCyclesCount: series.CompleteCyclesCount + state.CompletedCycles,
		Batch:               batch,
		NewBatch:            newBatch,
		Entries:             entries,
		Events:              events,
		UserData:            state.UserData(seriesID),
	}
	if err := store.CommitBatch(ctx, commit); err != nil {
		return nil, fmt.Errorf("failed to commit manual entries: %w", err)
	}

	logger.Info("Manual entries added",
		zap.String("series_id", seriesID),
		zap.String("batch_id", batch.ID),
		zap.Int("added", result.AddedCount),
		zap.Int("skipped", len(result.SkippedSubmissions)))

	return result, nil
}

// manualTargetBatch returns the batch manual entries go into and the next free entry and event positions
func manualTargetBatch(ctx context.Context, store db.SelectionStore, seriesID string, startedAt time.Time) (model.Batch, int, int, bool, error) {
	latest, err := store.GetLatestBatch(ctx, seriesID)
	if err != nil {
		return model.Batch{}, 0, 0, false, fmt.Errorf("failed to load latest batch: %w", err)
	}

	if latest == nil {
		return model.Batch{
			ID:            uuid.New().String(),
			SeriesID:      seriesID,
			Kind:          model.BatchKindManual,
			RollStartedAt: startedAt,
		}, 0, 0, true, nil
	}

	entries, err := store.GetEntries(ctx, latest.ID)
	if err != nil {
		return model.Batch{}, 0, 0, false, fmt.Errorf("failed to load batch entries: %w", err)
	}
	events, err := store.GetEvents(ctx, latest.ID)
	if err != nil {
		return model.Batch{}, 0, 0, false, fmt.Errorf("failed to load batch events: %w", err)
	}

	entryStart := 0
	for _, e := range entries {
		entryStart = max(entryStart, e.BatchPosition+1)
	}
	eventStart := 0
	for _, e := range events {
		eventStart = max(eventStart, e.BatchPosition+1)
	}

	return *latest, entryStart, eventStart, false, nil
}
