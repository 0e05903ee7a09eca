package db

import (
	"context"

	"github.com/jakechorley/creator-selection/pkg/core/model"
)

// BatchCommit is everything one engine run or manual add writes, applied atomically.
// The commit only succeeds if the series marker still equals ExpectedMarker.
type BatchCommit struct {
	SeriesID       string
	ExpectedMarker string
	NewMarker      string

	// CompleteCyclesCount is the series' new completed cycle count
	CompleteCyclesCount int

	// Batch is inserted when NewBatch is set. Otherwise only its ID is used: entries and events are
	// appended to that existing batch and the batch row itself is left as committed.
	Batch    model.Batch
	NewBatch bool

	Entries []model.Entry
	Events  []model.Event

	// UserData rows are upserted by (SeriesID, UserID)
	UserData []model.UserData
}

// SeriesStore defines the interface for series and eligibility configuration operations
type SeriesStore interface {
	GetSeries(ctx context.Context, seriesID string) (*model.Series, error)
	ListSeries(ctx context.Context) ([]model.Series, error)
	InsertSeries(ctx context.Context, series model.Series, cfg model.EligibilityConfiguration) error
	GetEligibilityConfiguration(ctx context.Context, seriesID string) (*model.EligibilityConfiguration, error)
	ReplaceEligibilityOptions(ctx context.Context, seriesID, expectedMarker, newMarker string, options []model.EligibilityOption) (*model.EligibilityConfiguration, error)
}

// SelectionStore defines the interface for all selection state operations.
// Both the in-memory MemoryDB and postgres.DB implement this interface.
type SelectionStore interface {
	SeriesStore

	GetUserData(ctx context.Context, seriesID string) ([]model.UserData, error)
	SetUserWeight(ctx context.Context, seriesID, userID string, weight float64, expectedMarker, newMarker string) error

	GetLatestBatch(ctx context.Context, seriesID string) (*model.Batch, error)
	ListBatches(ctx context.Context, seriesID string) ([]model.Batch, error)
	GetEntries(ctx context.Context, batchID string) ([]model.Entry, error)
	GetEvents(ctx context.Context, batchID string) ([]model.Event, error)

	CommitBatch(ctx context.Context, commit BatchCommit) error
}
