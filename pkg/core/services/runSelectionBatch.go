package services

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/creator-selection/pkg/core/model"
	"github.com/jakechorley/creator-selection/pkg/core/selector"
	"github.com/jakechorley/creator-selection/pkg/db"
)

// RunSelectionBatchOptions controls one automatic batch
type RunSelectionBatchOptions struct {
	AllowRestarts               bool
	ForceRecalculateEligibility bool
	NumberOfEntriesToSelect     int `validate:"min=1"`
	IncludedLabelIDs            []string
	ExcludedLabelIDs            []string

	// DryRun computes the batch without committing it
	DryRun bool
}

// RunSelectionBatchResult contains the committed (or, for a dry run, computed) batch
type RunSelectionBatchResult struct {
	Series          model.Series
	Batch           model.Batch
	Entries         []model.Entry
	Events          []model.Event
	PickedCount     int
	CompletedCycles int
	StopReason      selector.StopReason
	DryRun          bool
}

// RunSelectionBatch fills up to NumberOfEntriesToSelect picks for a series and commits them
// atomically. A concurrent run that commits first makes this one fail with
// db.ErrConcurrencyConflict; nothing is written in that case and the caller may retry.
// A nil rng uses a non-deterministic source.
func RunSelectionBatch(
	ctx context.Context,
	store db.SelectionStore,
	candidateSource CandidateSource,
	evaluator EligibilityEvaluator,
	rng *rand.Rand,
	logger *zap.Logger,
	seriesID string,
	opts RunSelectionBatchOptions,
) (*RunSelectionBatchResult, error) {
	if err := validateInput(opts); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = NewRand()
	}

	rollStartedAt := time.Now().UTC()
	logger.Debug("Starting selection batch",
		zap.String("series_id", seriesID),
		zap.Int("entries_to_select", opts.NumberOfEntriesToSelect),
		zap.Bool("allow_restarts", opts.AllowRestarts),
		zap.Bool("force_recalculate", opts.ForceRecalculateEligibility),
		zap.Bool("dry_run", opts.DryRun))

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
	logger.Debug("Loaded series",
		zap.String("marker", series.ConcurrencyMarker),
		zap.Int("cycle", series.CurrentCycle()),
		zap.Int("configuration_version", cfg.Version),
		zap.Int("known_users", len(userData)))

	// Step 2: Fetch candidates
	candidates, err := candidateSource.ListCandidates(ctx, *series)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	batchCandidates := filterByLabels(candidates, opts.IncludedLabelIDs, opts.ExcludedLabelIDs)
	logger.Debug("Fetched candidates",
		zap.Int("series_candidates", len(candidates)),
		zap.Int("after_label_filter", len(batchCandidates)))

	// Step 3: Resolve eligibility for the whole series.
	// Cycle completion is judged against every eligible candidate, not just this batch's labels.
	results, err := evaluator.EvaluateAll(ctx, seriesID, *cfg, candidates, opts.ForceRecalculateEligibility)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate eligibility: %w", err)
	}
	seriesPool := eligiblePool(candidates, results)
	batchPool := eligiblePool(batchCandidates, results)
	logger.Debug("Resolved eligibility",
		zap.Int("series_pool", len(seriesPool)),
		zap.Int("batch_pool", len(batchPool)))

	// Step 4: Draw
	state := selector.NewSelectionState(series.CurrentCycle(), userData, seriesPool)
	state.TrackUsers(candidateUserIDs(candidates))
	outcome, err := selector.Select(selector.SelectionConfig{
		BatchPool:     batchPool,
		State:         state,
		Quota:         opts.NumberOfEntriesToSelect,
		AllowRestarts: opts.AllowRestarts,
		Rand:          rng,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to select entries: %w", err)
	}
	logger.Debug("Selection complete",
		zap.Int("picked", outcome.PickedCount),
		zap.Int("completed_cycles", state.CompletedCycles),
		zap.String("stop_reason", string(outcome.StopReason)))

	// Step 5: Build rows
	batch := model.Batch{
		ID:            uuid.New().String(),
		SeriesID:      seriesID,
		Kind:          model.BatchKindAutomatic,
		RollStartedAt: rollStartedAt,
	}
	entries, events := recordsToRows(state.Records, batch.ID, 0, 0)

	updatedSeries := *series
	updatedSeries.CompleteCyclesCount += state.CompletedCycles

	result := &RunSelectionBatchResult{
		Series:          updatedSeries,
		Batch:           batch,
		Entries:         entries,
		Events:          events,
		PickedCount:     outcome.PickedCount,
		CompletedCycles: state.CompletedCycles,
		StopReason:      outcome.StopReason,
		DryRun:          opts.DryRun,
	}

	if opts.DryRun {
		result.Batch.RollCompletedAt = time.Now().UTC()
		logger.Info("Dry run - batch not committed",
			zap.String("series_id", seriesID),
			zap.Int("picked", outcome.PickedCount))
		return result, nil
	}

	// Step 6: Commit
	result.Batch.RollCompletedAt = time.Now().UTC()
	updatedSeries.ConcurrencyMarker = newMarker()
	commit := db.BatchCommit{
		SeriesID:            seriesID,
		ExpectedMarker:      series.ConcurrencyMarker,
		NewMarker:           updatedSeries.ConcurrencyMarker,
		CompleteCyclesCount: updatedSeries.CompleteCyclesCount,
		Batch:               result.Batch,
		NewBatch:            true,
		Entries:             entries,
		Events:              events,
		UserData:            state.UserData(seriesID),
	}
	if err := store.CommitBatch(ctx, commit); err != nil {
		if db.IsRetryable(err) {
			logger.Warn("Series changed during selection", zap.String("series_id", seriesID))
		}
		return nil, fmt.Errorf("failed to commit batch: %w", err)
	}
	result.Series = updatedSeries

	logger.Info("Selection batch committed",
		zap.String("series_id", seriesID),
		zap.String("batch_id", batch.ID),
		zap.Int("picked", outcome.PickedCount),
		zap.Int("completed_cycles", state.CompletedCycles))

	return result, nil
}
