package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/creator-selection/pkg/db"
)

// SetUserWeight sets the multiplier applied to all of a user's draws in a series
func SetUserWeight(ctx context.Context, store db.SelectionStore, logger *zap.Logger, seriesID, userID string, weight float64) error {
	if userID == "" {
		return validationError("user ID is required")
	}
	if weight <= 0 {
		return validationError("weight must be positive, got %g", weight)
	}

	series, err := store.GetSeries(ctx, seriesID)
	if err != nil {
		return fmt.Errorf("failed to load series: %w", err)
	}

	if err := store.SetUserWeight(ctx, seriesID, userID, weight, series.ConcurrencyMarker, newMarker()); err != nil {
		return fmt.Errorf("failed to set user weight: %w", err)
	}

	logger.Info("User weight set",
		zap.String("series_id", seriesID),
		zap.String("user_id", userID),
		zap.Float64("weight", weight))

	return nil
}
