package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/creator-selection/pkg/core/model"
)

const upsertUserDataSQL = `
	INSERT INTO selection_user_data (series_id, user_id, latest_weight, selected_count, total_selected_count)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (series_id, user_id) DO UPDATE
	SET latest_weight = EXCLUDED.latest_weight,
		selected_count = EXCLUDED.selected_count,
		total_selected_count = EXCLUDED.total_selected_count
`

// GetUserData returns the fairness state of every known user in a series, ordered by user ID
func (d *DB) GetUserData(ctx context.Context, seriesID string) ([]model.UserData, error) {
	if _, err := d.GetSeries(ctx, seriesID); err != nil {
		return nil, err
	}

	rows, err := d.pool.Query(ctx, `
		SELECT series_id, user_id, latest_weight, selected_count, total_selected_count
		FROM selection_user_data
		WHERE series_id = $1
		ORDER BY user_id
	`, seriesID)
	if err != nil {
		return nil, persistenceError("failed to query user data", err)
	}

	userData, err := pgx.CollectRows(rows, pgx.RowToStructByPos[model.UserData])
	if err != nil {
		return nil, persistenceError("failed to scan user data", err)
	}
	return userData, nil
}

// SetUserWeight sets a user's LatestWeight, creating the user's row if needed
func (d *DB) SetUserWeight(ctx context.Context, seriesID, userID string, weight float64, expectedMarker, newMarker string) error {
	return pgx.BeginFunc(ctx, d.pool, func(tx pgx.Tx) error {
		if err := swapMarker(ctx, tx, seriesID, expectedMarker, newMarker, nil); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO selection_user_data (series_id, user_id, latest_weight)
			VALUES ($1, $2, $3)
			ON CONFLICT (series_id, user_id) DO UPDATE SET latest_weight = EXCLUDED.latest_weight
		`, seriesID, userID, weight)
		if err != nil {
			return persistenceError(fmt.Sprintf("failed to set weight for user %s", userID), err)
		}
		return nil
	})
}

func upsertUserData(ctx context.Context, tx pgx.Tx, seriesID string, userData []model.UserData) error {
	if len(userData) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, ud := range userData {
		batch.Queue(upsertUserDataSQL, seriesID, ud.UserID, ud.LatestWeight, ud.SelectedCount, ud.TotalSelectedCount)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return persistenceError("failed to upsert user data", err)
	}
	return nil
}
