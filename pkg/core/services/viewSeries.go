package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/creator-selection/pkg/core/model"
	"github.com/jakechorley/creator-selection/pkg/db"
)

// BatchView is a batch with its entries and audit events
type BatchView struct {
	Batch   model.Batch
	Entries []model.Entry
	Events  []model.Event
}

// PickedCount returns the number of picked entries in the batch
func (b BatchView) PickedCount() int {
	return countPicked(b.Entries)
}

// SeriesView is the full persisted state of a series
type SeriesView struct {
	Series        model.Series
	Configuration model.EligibilityConfiguration
	UserData      []model.UserData
	Batches       []BatchView
}

// ViewSeries loads a series with its configuration, fairness state and batch history
func ViewSeries(ctx context.Context, store db.SelectionStore, logger *zap.Logger, seriesID string) (*SeriesView, error) {
	logger.Debug("Loading series", zap.String("series_id", seriesID))

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
	batches, err := store.ListBatches(ctx, seriesID)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}

	view := &SeriesView{
		Series:        *series,
		Configuration: *cfg,
		UserData:      userData,
		Batches:       make([]BatchView, 0, len(batches)),
	}

	for _, batch := range batches {
		entries, err := store.GetEntries(ctx, batch.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load entries for batch %s: %w", batch.ID, err)
		}
		events, err := store.GetEvents(ctx, batch.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load events for batch %s: %w", batch.ID, err)
		}
		view.Batches = append(view.Batches, BatchView{Batch: batch, Entries: entries, Events: events})
	}

	logger.Debug("Series loaded",
		zap.Int("users", len(view.UserData)),
		zap.Int("batches", len(view.Batches)))

	return view, nil
}
