package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/creator-selection/internal/config"
	"github.com/jakechorley/creator-selection/pkg/core/model"
	"github.com/jakechorley/creator-selection/pkg/db"
)

// DueRoll is a scheduled batch that has not been run yet
type DueRoll struct {
	Schedule config.RollSchedule
	Series   model.Series

	// Occurrence is the most recent scheduled time at or before now
	Occurrence time.Time
}

// Options converts the schedule into batch options
func (d DueRoll) Options() RunSelectionBatchOptions {
	return RunSelectionBatchOptions{
		AllowRestarts:           d.Schedule.AllowRestarts,
		NumberOfEntriesToSelect: d.Schedule.EntriesToSelect,
		IncludedLabelIDs:        d.Schedule.IncludedLabelIDs,
		ExcludedLabelIDs:        d.Schedule.ExcludedLabelIDs,
	}
}

// DueRolls reports which configured schedules have an occurrence since the series' last roll.
// The recurrence is anchored at the series' creation time; a series with no batches is due once
// its first occurrence has passed.
func DueRolls(ctx context.Context, store db.SelectionStore, cfg *config.Config, logger *zap.Logger, now time.Time) ([]DueRoll, error) {
	logger.Debug("Checking roll schedules", zap.Int("schedules", len(cfg.RollSchedules)), zap.Time("now", now))

	var due []DueRoll
	for _, schedule := range cfg.RollSchedules {
		series, err := store.GetSeries(ctx, schedule.SeriesID)
		if err != nil {
			return nil, fmt.Errorf("failed to load series for schedule: %w", err)
		}

		rule, err := schedule.Rule(series.CreatedAt)
		if err != nil {
			return nil, err
		}

		latest, err := store.GetLatestBatch(ctx, series.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load latest batch: %w", err)
		}

		// Occurrences strictly after the last roll
		since := series.CreatedAt
		inclusive := true
		if latest != nil {
			since = latest.RollStartedAt
			inclusive = false
		}

		occurrences := rule.Between(since, now, inclusive)
		if len(occurrences) == 0 {
			logger.Debug("Series not due", zap.String("series_id", series.ID), zap.Time("since", since))
			continue
		}

		due = append(due, DueRoll{
			Schedule:   schedule,
			Series:     *series,
			Occurrence: occurrences[len(occurrences)-1],
		})
		logger.Debug("Series due",
			zap.String("series_id", series.ID),
			zap.Int("missed_occurrences", len(occurrences)))
	}

	return due, nil
}
