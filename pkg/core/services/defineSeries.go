package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/creator-selection/pkg/core/model"
	"github.com/jakechorley/creator-selection/pkg/db"
)

// DefineSeriesParams describes a new selection series
type DefineSeriesParams struct {
	Name            string                    `validate:"required"`
	OwnershipType   model.OwnershipType       `validate:"required,oneof=poll questionnaire"`
	QuestionnaireID string                    `validate:"required_if=OwnershipType questionnaire"`
	Options         []model.EligibilityOption `validate:"dive"`
}

// DefineSeriesResult represents the result of defining a new series
type DefineSeriesResult struct {
	Series        model.Series
	Configuration model.EligibilityConfiguration
}

// DefineSeries creates a series with an empty fairness state and configuration version 1
func DefineSeries(ctx context.Context, store db.SeriesStore, logger *zap.Logger, params DefineSeriesParams) (*DefineSeriesResult, error) {
	if err := validateInput(params); err != nil {
		return nil, err
	}
	if err := validateOptions(params.Options); err != nil {
		return nil, err
	}

	logger.Debug("Defining new series",
		zap.String("name", params.Name),
		zap.String("ownership_type", string(params.OwnershipType)),
		zap.Int("options", len(params.Options)))

	series := model.Series{
		ID:                uuid.New().String(),
		Name:              params.Name,
		OwnershipType:     params.OwnershipType,
		QuestionnaireID:   params.QuestionnaireID,
		ConcurrencyMarker: newMarker(),
		CreatedAt:         time.Now().UTC(),
	}
	cfg := model.EligibilityConfiguration{
		ID:       uuid.New().String(),
		SeriesID: series.ID,
		Version:  1,
		Options:  params.Options,
	}

	if err := store.InsertSeries(ctx, series, cfg); err != nil {
		return nil, fmt.Errorf("failed to insert series: %w", err)
	}

	logger.Info("Series defined", zap.String("series_id", series.ID), zap.String("name", series.Name))

	return &DefineSeriesResult{Series: series, Configuration: cfg}, nil
}

// validateOptions checks per-option rules and that each plan appears once
func validateOptions(options []model.EligibilityOption) error {
	seen := make(map[string]bool, len(options))
	for i, option := range options {
		if err := validateInput(option); err != nil {
			return fmt.Errorf("option %d: %w", i, err)
		}
		if seen[option.PlanID] {
			return validationError("plan %s is configured more than once", option.PlanID)
		}
		seen[option.PlanID] = true
	}
	return nil
}
