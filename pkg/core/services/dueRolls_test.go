package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/creator-selection/internal/config"
	"github.com/jakechorley/creator-selection/pkg/core/model"
	"github.com/jakechorley/creator-selection/pkg/db"
)

func insertSeriesAt(t *testing.T, store *db.MemoryDB, id string, createdAt time.Time) {
	t.Helper()
	err := store.InsertSeries(context.Background(), model.Series{
		ID:                id,
		Name:              id,
		OwnershipType:     model.OwnershipPoll,
		ConcurrencyMarker: "m0",
		CreatedAt:         createdAt,
	}, model.EligibilityConfiguration{ID: id + "-cfg", Version: 1})
	require.NoError(t, err)
}

func TestDueRolls(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryDB()
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) // Sunday
	insertSeriesAt(t, store, "weekly", created)
	insertSeriesAt(t, store, "monthly", created)

	cfg := &config.Config{
		RollSchedules: []config.RollSchedule{
			{SeriesID: "weekly", RRule: "FREQ=WEEKLY;BYDAY=SU", EntriesToSelect: 2, AllowRestarts: true},
			{SeriesID: "monthly", RRule: "FREQ=MONTHLY;BYMONTHDAY=15", EntriesToSelect: 1},
		},
	}

	t.Run("first occurrence makes a new series due", func(t *testing.T) {
		due, err := DueRolls(ctx, store, cfg, zap.NewNop(), created.Add(time.Hour))
		require.NoError(t, err)

		require.Len(t, due, 1)
		assert.Equal(t, "weekly", due[0].Series.ID)
		assert.Equal(t, created, due[0].Occurrence)

		opts := due[0].Options()
		assert.Equal(t, 2, opts.NumberOfEntriesToSelect)
		assert.True(t, opts.AllowRestarts)
	})

	t.Run("latest occurrence is reported", func(t *testing.T) {
		now := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
		due, err := DueRolls(ctx, store, cfg, zap.NewNop(), now)
		require.NoError(t, err)

		require.Len(t, due, 2)
		assert.Equal(t, time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC), due[0].Occurrence)
		assert.Equal(t, "monthly", due[1].Series.ID)
	})

	t.Run("a roll after the occurrence clears it", func(t *testing.T) {
		rolledAt := time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)
		err := store.CommitBatch(ctx, db.BatchCommit{
			SeriesID:       "weekly",
			ExpectedMarker: "m0",
			NewMarker:      "m1",
			Batch:          model.Batch{ID: "b1", Kind: model.BatchKindAutomatic, RollStartedAt: rolledAt, RollCompletedAt: rolledAt},
			NewBatch:       true,
		})
		require.NoError(t, err)

		due, err := DueRolls(ctx, store, cfg, zap.NewNop(), time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, "monthly", due[0].Series.ID)

		due, err = DueRolls(ctx, store, cfg, zap.NewNop(), time.Date(2026, 3, 22, 12, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		require.Len(t, due, 2)
		assert.Equal(t, time.Date(2026, 3, 22, 9, 0, 0, 0, time.UTC), due[0].Occurrence)
	})
}

func TestDueRolls_UnknownSeries(t *testing.T) {
	cfg := &config.Config{
		RollSchedules: []config.RollSchedule{{SeriesID: "missing", RRule: "FREQ=DAILY", EntriesToSelect: 1}},
	}

	_, err := DueRolls(context.Background(), db.NewMemoryDB(), cfg, zap.NewNop(), time.Now())
	assert.ErrorIs(t, err, db.ErrNotFound)
}
