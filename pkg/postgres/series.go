package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/creator-selection/pkg/core/model"
	"github.com/jakechorley/creator-selection/pkg/db"
)

const seriesColumns = `id, name, ownership_type, questionnaire_id, complete_cycles_count, concurrency_marker, created_at`

func scanSeries(row pgx.Row) (model.Series, error) {
	var s model.Series
	var ownership string
	var questionnaireID *string
	if err := row.Scan(&s.ID, &s.Name, &ownership, &questionnaireID, &s.CompleteCyclesCount, &s.ConcurrencyMarker, &s.CreatedAt); err != nil {
		return model.Series{}, err
	}
	s.OwnershipType = model.OwnershipType(ownership)
	if questionnaireID != nil {
		s.QuestionnaireID = *questionnaireID
	}
	return s, nil
}

// GetSeries retrieves a series by ID
func (d *DB) GetSeries(ctx context.Context, seriesID string) (*model.Series, error) {
	row := d.pool.QueryRow(ctx, `SELECT `+seriesColumns+` FROM selection_series WHERE id = $1`, seriesID)
	s, err := scanSeries(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("series %s: %w", seriesID, db.ErrNotFound)
	}
	if err != nil {
		return nil, persistenceError("failed to get series", err)
	}
	return &s, nil
}

// ListSeries returns every series ordered by creation time
func (d *DB) ListSeries(ctx context.Context) ([]model.Series, error) {
	rows, err := d.pool.Query(ctx, `SELECT `+seriesColumns+` FROM selection_series ORDER BY created_at, id`)
	if err != nil {
		return nil, persistenceError("failed to query series", err)
	}
	defer rows.Close()

	var result []model.Series
	for rows.Next() {
		s, err := scanSeries(rows)
		if err != nil {
			return nil, persistenceError("failed to scan series", err)
		}
		result = append(result, s)
	}

	if err := rows.Err(); err != nil {
		return nil, persistenceError("error iterating series", err)
	}

	return result, nil
}

// InsertSeries stores a new series together with its eligibility configuration
func (d *DB) InsertSeries(ctx context.Context, series model.Series, cfg model.EligibilityConfiguration) error {
	return pgx.BeginFunc(ctx, d.pool, func(tx pgx.Tx) error {
		var questionnaireID *string
		if series.QuestionnaireID != "" {
			questionnaireID = &series.QuestionnaireID
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO selection_series (id, name, ownership_type, questionnaire_id, complete_cycles_count, concurrency_marker, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, series.ID, series.Name, string(series.OwnershipType), questionnaireID, series.CompleteCyclesCount, series.ConcurrencyMarker, series.CreatedAt.UTC())
		if err != nil {
			return persistenceError("failed to insert series", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO eligibility_configuration (id, series_id, version)
			VALUES ($1, $2, $3)
		`, cfg.ID, series.ID, cfg.Version)
		if err != nil {
			return persistenceError("failed to insert eligibility configuration", err)
		}

		return insertOptions(ctx, tx, cfg.ID, cfg.Options)
	})
}

// GetEligibilityConfiguration retrieves the configuration attached to a series with its options in configured order
func (d *DB) GetEligibilityConfiguration(ctx context.Context, seriesID string) (*model.EligibilityConfiguration, error) {
	cfg := model.EligibilityConfiguration{SeriesID: seriesID}
	err := d.pool.QueryRow(ctx, `
		SELECT id, version FROM eligibility_configuration WHERE series_id = $1
	`, seriesID).Scan(&cfg.ID, &cfg.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("eligibility configuration for series %s: %w", seriesID, db.ErrNotFound)
	}
	if err != nil {
		return nil, persistenceError("failed to get eligibility configuration", err)
	}

	rows, err := d.pool.Query(ctx, `
		SELECT plan_id, priority_group, priority_modifier, selection_wave
		FROM eligibility_option
		WHERE configuration_id = $1
		ORDER BY position
	`, cfg.ID)
	if err != nil {
		return nil, persistenceError("failed to query eligibility options", err)
	}
	defer rows.Close()

	for rows.Next() {
		var o model.EligibilityOption
		if err := rows.Scan(&o.PlanID, &o.PriorityGroup, &o.PriorityModifier, &o.SelectionWave); err != nil {
			return nil, persistenceError("failed to scan eligibility option", err)
		}
		cfg.Options = append(cfg.Options, o)
	}

	if err := rows.Err(); err != nil {
		return nil, persistenceError("error iterating eligibility options", err)
	}

	return &cfg, nil
}

// ReplaceEligibilityOptions swaps the series' options, bumps the configuration version and the series marker
func (d *DB) ReplaceEligibilityOptions(ctx context.Context, seriesID, expectedMarker, newMarker string, options []model.EligibilityOption) (*model.EligibilityConfiguration, error) {
	err := pgx.BeginFunc(ctx, d.pool, func(tx pgx.Tx) error {
		if err := swapMarker(ctx, tx, seriesID, expectedMarker, newMarker, nil); err != nil {
			return err
		}

		var configurationID string
		err := tx.QueryRow(ctx, `
			UPDATE eligibility_configuration SET version = version + 1
			WHERE series_id = $1
			RETURNING id
		`, seriesID).Scan(&configurationID)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("eligibility configuration for series %s: %w", seriesID, db.ErrNotFound)
		}
		if err != nil {
			return persistenceError("failed to bump configuration version", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM eligibility_option WHERE configuration_id = $1`, configurationID); err != nil {
			return persistenceError("failed to clear eligibility options", err)
		}
		return insertOptions(ctx, tx, configurationID, options)
	})
	if err != nil {
		return nil, err
	}

	return d.GetEligibilityConfiguration(ctx, seriesID)
}

func insertOptions(ctx context.Context, tx pgx.Tx, configurationID string, options []model.EligibilityOption) error {
	if len(options) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(options))
	for i, o := range options {
		rows = append(rows, []any{configurationID, i, o.PlanID, o.PriorityGroup, o.PriorityModifier, o.SelectionWave})
	}

	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"eligibility_option"},
		[]string{"configuration_id", "position", "plan_id", "priority_group", "priority_modifier", "selection_wave"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return persistenceError("failed to insert eligibility options", err)
	}
	return nil
}
