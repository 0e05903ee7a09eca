package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/creator-selection/pkg/core/model"
	"github.com/jakechorley/creator-selection/pkg/db"
)

const batchColumns = `id, series_id, kind, roll_started_at, roll_completed_at`

func scanBatch(row pgx.Row) (model.Batch, error) {
	var b model.Batch
	var kind string
	if err := row.Scan(&b.ID, &b.SeriesID, &kind, &b.RollStartedAt, &b.RollCompletedAt); err != nil {
		return model.Batch{}, err
	}
	b.Kind = model.BatchKind(kind)
	return b, nil
}

// GetLatestBatch returns the most recently committed batch, or nil if the series has none
func (d *DB) GetLatestBatch(ctx context.Context, seriesID string) (*model.Batch, error) {
	if _, err := d.GetSeries(ctx, seriesID); err != nil {
		return nil, err
	}

	row := d.pool.QueryRow(ctx, `
		SELECT `+batchColumns+`
		FROM selection_batch
		WHERE series_id = $1
		ORDER BY seq DESC
		LIMIT 1
	`, seriesID)
	b, err := scanBatch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, persistenceError("failed to get latest batch", err)
	}
	return &b, nil
}

// ListBatches returns a series' batches in commit order
func (d *DB) ListBatches(ctx context.Context, seriesID string) ([]model.Batch, error) {
	if _, err := d.GetSeries(ctx, seriesID); err != nil {
		return nil, err
	}

	rows, err := d.pool.Query(ctx, `
		SELECT `+batchColumns+`
		FROM selection_batch
		WHERE series_id = $1
		ORDER BY seq
	`, seriesID)
	if err != nil {
		return nil, persistenceError("failed to query batches", err)
	}
	defer rows.Close()

	var batches []model.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, persistenceError("failed to scan batch", err)
		}
		batches = append(batches, b)
	}

	if err := rows.Err(); err != nil {
		return nil, persistenceError("error iterating batches", err)
	}

	return batches, nil
}

func (d *DB) batchExists(ctx context.Context, batchID string) error {
	var exists bool
	if err := d.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM selection_batch WHERE id = $1)`, batchID).Scan(&exists); err != nil {
		return persistenceError("failed to check batch", err)
	}
	if !exists {
		return fmt.Errorf("batch %s: %w", batchID, db.ErrNotFound)
	}
	return nil
}

// GetEntries returns a batch's entries ordered by BatchPosition
func (d *DB) GetEntries(ctx context.Context, batchID string) ([]model.Entry, error) {
	if err := d.batchExists(ctx, batchID); err != nil {
		return nil, err
	}

	rows, err := d.pool.Query(ctx, `
		SELECT id, batch_id, batch_position, kind, candidate_id, user_id, cycle, event_kind
		FROM selection_entry
		WHERE batch_id = $1
		ORDER BY batch_position
	`, batchID)
	if err != nil {
		return nil, persistenceError("failed to query entries", err)
	}
	defer rows.Close()

	var entries []model.Entry
	for rows.Next() {
		var e model.Entry
		var kind string
		var candidateID, userID, eventKind *string
		if err := rows.Scan(&e.ID, &e.BatchID, &e.BatchPosition, &kind, &candidateID, &userID, &e.Cycle, &eventKind); err != nil {
			return nil, persistenceError("failed to scan entry", err)
		}
		e.Kind = model.EntryKind(kind)
		if candidateID != nil {
			e.CandidateID = *candidateID
		}
		if userID != nil {
			e.UserID = *userID
		}
		if eventKind != nil {
			e.EventKind = model.EventKind(*eventKind)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, persistenceError("error iterating entries", err)
	}

	return entries, nil
}

// GetEvents returns a batch's audit events ordered by BatchPosition
func (d *DB) GetEvents(ctx context.Context, batchID string) ([]model.Event, error) {
	if err := d.batchExists(ctx, batchID); err != nil {
		return nil, err
	}

	rows, err := d.pool.Query(ctx, `
		SELECT id, batch_id, batch_position, kind, cycle, detail
		FROM selection_event
		WHERE batch_id = $1
		ORDER BY batch_position
	`, batchID)
	if err != nil {
		return nil, persistenceError("failed to query events", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		var kind string
		if err := rows.Scan(&e.ID, &e.BatchID, &e.BatchPosition, &kind, &e.Cycle, &e.Detail); err != nil {
			return nil, persistenceError("failed to scan event", err)
		}
		e.Kind = model.EventKind(kind)
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, persistenceError("error iterating events", err)
	}

	return events, nil
}

// CommitBatch applies a batch run in one transaction.
// The series marker is swapped first so a losing writer fails before writing anything.
func (d *DB) CommitBatch(ctx context.Context, commit db.BatchCommit) error {
	return pgx.BeginFunc(ctx, d.pool, func(tx pgx.Tx) error {
		cycles := commit.CompleteCyclesCount
		if err := swapMarker(ctx, tx, commit.SeriesID, commit.ExpectedMarker, commit.NewMarker, &cycles); err != nil {
			return err
		}

		batchID := commit.Batch.ID
		if commit.NewBatch {
			if batchID == "" {
				batchID = uuid.New().String()
			}
			_, err := tx.Exec(ctx, `
				INSERT INTO selection_batch (id, series_id, kind, roll_started_at, roll_completed_at)
				VALUES ($1, $2, $3, $4, $5)
			`, batchID, commit.SeriesID, string(commit.Batch.Kind), commit.Batch.RollStartedAt.UTC(), commit.Batch.RollCompletedAt.UTC())
			if err != nil {
				return persistenceError("failed to insert batch", err)
			}
		} else {
			var exists bool
			err := tx.QueryRow(ctx, `
				SELECT EXISTS (SELECT 1 FROM selection_batch WHERE id = $1 AND series_id = $2)
			`, batchID, commit.SeriesID).Scan(&exists)
			if err != nil {
				return persistenceError("failed to check batch", err)
			}
			if !exists {
				return fmt.Errorf("batch %s: %w", batchID, db.ErrNotFound)
			}
		}

		if err := insertEntries(ctx, tx, batchID, commit.Entries); err != nil {
			return err
		}
		if err := insertEvents(ctx, tx, batchID, commit.Events); err != nil {
			return err
		}
		return upsertUserData(ctx, tx, commit.SeriesID, commit.UserData)
	})
}

func insertEntries(ctx context.Context, tx pgx.Tx, batchID string, entries []model.Entry) error {
	for _, e := range entries {
		var candidateID, userID, eventKind *string
		if e.IsPicked() {
			candidateID = &e.CandidateID
			userID = &e.UserID
		} else {
			kind := string(e.EventKind)
			eventKind = &kind
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO selection_entry (id, batch_id, batch_position, kind, candidate_id, user_id, cycle, event_kind)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, e.ID, batchID, e.BatchPosition, string(e.Kind), candidateID, userID, e.Cycle, eventKind)
		if err != nil {
			return persistenceError(fmt.Sprintf("failed to insert entry at position %d", e.BatchPosition), err)
		}
	}
	return nil
}

func insertEvents(ctx context.Context, tx pgx.Tx, batchID string, events []model.Event) error {
	for _, e := range events {
		_, err := tx.Exec(ctx, `
			INSERT INTO selection_event (id, batch_id, batch_position, kind, cycle, detail)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, e.ID, batchID, e.BatchPosition, string(e.Kind), e.Cycle, e.Detail)
		if err != nil {
			return persistenceError(fmt.Sprintf("failed to insert event at position %d", e.BatchPosition), err)
		}
	}
	return nil
}
