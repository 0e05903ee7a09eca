package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/creator-selection/pkg/core/model"
	"github.com/jakechorley/creator-selection/pkg/db"
)

// UpdateEligibility replaces a series' eligibility options.
// The configuration version and the series marker both change, so cached results are not reused
// and any run that read the old configuration fails to commit.
func UpdateEligibility(ctx context.Context, store db.SeriesStore, logger *zap.Logger, seriesID string, options []model.EligibilityOption) (*model.EligibilityConfiguration, error) {
	if err := validateOptions(options); err != nil {
		return nil, err
	}

	series, err := store.GetSeries(ctx, seriesID)
	if err != nil {
		return nil, fmt.Errorf("failed to load series: %w", err)
	}

	cfg, err := store.ReplaceEligibilityOptions(ctx, seriesID, series.ConcurrencyMarker, newMarker(), options)
	if err != nil {
		return nil, fmt.Errorf("failed to replace eligibility options: %w", err)
	}

	logger.Info("Eligibility updated",
		zap.String("series_id", seriesID),
		zap.Int("version", cfg.Version),
		zap.Int("options", len(cfg.Options)))

	return cfg, nil
}
