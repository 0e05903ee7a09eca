package db

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jakechorley/creator-selection/pkg/core/model"
)

type userKey struct {
	seriesID string
	userID   string
}

// memoryState holds identifier-keyed tables. Relations are stored as IDs, never pointers.
type memoryState struct {
	series         map[string]model.Series
	configurations map[string]model.EligibilityConfiguration // keyed by series ID
	batches        map[string]model.Batch
	batchOrder     map[string][]string // series ID -> batch IDs in commit order
	entries        map[string][]model.Entry
	events         map[string][]model.Event
	userData       map[userKey]model.UserData
}

func newMemoryState() memoryState {
	return memoryState{
		series:         make(map[string]model.Series),
		configurations: make(map[string]model.EligibilityConfiguration),
		batches:        make(map[string]model.Batch),
		batchOrder:     make(map[string][]string),
		entries:        make(map[string][]model.Entry),
		events:         make(map[string][]model.Event),
		userData:       make(map[userKey]model.UserData),
	}
}

// MemoryDB is an in-process SelectionStore. Writes are applied to a copy of the touched tables
// and swapped in under the lock, so a failed commit leaves nothing behind.
type MemoryDB struct {
	mu    sync.RWMutex
	state memoryState
}

// NewMemoryDB creates an empty in-memory store
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{state: newMemoryState()}
}

// GetSeries retrieves a series by ID
func (m *MemoryDB) GetSeries(ctx context.Context, seriesID string) (*model.Series, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	series, ok := m.state.series[seriesID]
	if !ok {
		return nil, fmt.Errorf("series %s: %w", seriesID, ErrNotFound)
	}
	return &series, nil
}

// ListSeries returns every series ordered by creation time
func (m *MemoryDB) ListSeries(ctx context.Context) ([]model.Series, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]model.Series, 0, len(m.state.series))
	for _, series := range m.state.series {
		result = append(result, series)
	}
	slices.SortFunc(result, func(a, b model.Series) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return result, nil
}

// InsertSeries stores a new series together with its eligibility configuration
func (m *MemoryDB) InsertSeries(ctx context.Context, series model.Series, cfg model.EligibilityConfiguration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.state.series[series.ID]; exists {
		return fmt.Errorf("series %s already exists: %w", series.ID, ErrPersistence)
	}

	cfg.SeriesID = series.ID
	cfg.Options = slices.Clone(cfg.Options)
	m.state.series[series.ID] = series
	m.state.configurations[series.ID] = cfg
	return nil
}

// GetEligibilityConfiguration retrieves the configuration attached to a series
func (m *MemoryDB) GetEligibilityConfiguration(ctx context.Context, seriesID string) (*model.EligibilityConfiguration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg, ok := m.state.configurations[seriesID]
	if !ok {
		return nil, fmt.Errorf("eligibility configuration for series %s: %w", seriesID, ErrNotFound)
	}
	cfg.Options = slices.Clone(cfg.Options)
	return &cfg, nil
}

// ReplaceEligibilityOptions swaps the series' options, bumps the configuration version and the series marker
func (m *MemoryDB) ReplaceEligibilityOptions(ctx context.Context, seriesID, expectedMarker, newMarker string, options []model.EligibilityOption) (*model.EligibilityConfiguration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	series, err := m.checkMarker(seriesID, expectedMarker)
	if err != nil {
		return nil, err
	}

	cfg := m.state.configurations[seriesID]
	cfg.Version++
	cfg.Options = slices.Clone(options)
	series.ConcurrencyMarker = newMarker

	m.state.configurations[seriesID] = cfg
	m.state.series[seriesID] = series

	result := cfg
	result.Options = slices.Clone(cfg.Options)
	return &result, nil
}

// GetUserData returns the fairness state of every known user in a series, ordered by user ID
func (m *MemoryDB) GetUserData(ctx context.Context, seriesID string) ([]model.UserData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.state.series[seriesID]; !ok {
		return nil, fmt.Errorf("series %s: %w", seriesID, ErrNotFound)
	}

	result := []model.UserData{}
	for key, ud := range m.state.userData {
		if key.seriesID == seriesID {
			result = append(result, ud)
		}
	}
	slices.SortFunc(result, func(a, b model.UserData) int {
		return strings.Compare(a.UserID, b.UserID)
	})
	return result, nil
}

// SetUserWeight sets a user's LatestWeight, creating the user's row if needed
func (m *MemoryDB) SetUserWeight(ctx context.Context, seriesID, userID string, weight float64, expectedMarker, newMarker string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	series, err := m.checkMarker(seriesID, expectedMarker)
	if err != nil {
		return err
	}

	key := userKey{seriesID: seriesID, userID: userID}
	ud, ok := m.state.userData[key]
	if !ok {
		ud = model.NewUserData(seriesID, userID)
	}
	ud.LatestWeight = weight
	series.ConcurrencyMarker = newMarker

	m.state.userData[key] = ud
	m.state.series[seriesID] = series
	return nil
}

// GetLatestBatch returns the most recently committed batch, or nil if the series has none
func (m *MemoryDB) GetLatestBatch(ctx context.Context, seriesID string) (*model.Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.state.series[seriesID]; !ok {
		return nil, fmt.Errorf("series %s: %w", seriesID, ErrNotFound)
	}

	order := m.state.batchOrder[seriesID]
	if len(order) == 0 {
		return nil, nil
	}
	batch := m.state.batches[order[len(order)-1]]
	return &batch, nil
}

// ListBatches returns a series' batches in commit order
func (m *MemoryDB) ListBatches(ctx context.Context, seriesID string) ([]model.Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.state.series[seriesID]; !ok {
		return nil, fmt.Errorf("series %s: %w", seriesID, ErrNotFound)
	}

	order := m.state.batchOrder[seriesID]
	result := make([]model.Batch, 0, len(order))
	for _, id := range order {
		result = append(result, m.state.batches[id])
	}
	return result, nil
}

// GetEntries returns a batch's entries ordered by BatchPosition
func (m *MemoryDB) GetEntries(ctx context.Context, batchID string) ([]model.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.state.batches[batchID]; !ok {
		return nil, fmt.Errorf("batch %s: %w", batchID, ErrNotFound)
	}
	return slices.Clone(m.state.entries[batchID]), nil
}

// GetEvents returns a batch's audit events ordered by BatchPosition
func (m *MemoryDB) GetEvents(ctx context.Context, batchID string) ([]model.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.state.batches[batchID]; !ok {
		return nil, fmt.Errorf("batch %s: %w", batchID, ErrNotFound)
	}
	return slices.Clone(m.state.events[batchID]), nil
}

// CommitBatch applies a batch run atomically if the series marker is unchanged
func (m *MemoryDB) CommitBatch(ctx context.Context, commit BatchCommit) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit cancelled: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	series, err := m.checkMarker(commit.SeriesID, commit.ExpectedMarker)
	if err != nil {
		return err
	}

	batchID := commit.Batch.ID
	if commit.NewBatch {
		if batchID == "" {
			batchID = uuid.New().String()
			commit.Batch.ID = batchID
		}
		if _, exists := m.state.batches[batchID]; exists {
			return fmt.Errorf("batch %s already exists: %w", batchID, ErrPersistence)
		}
	} else if existing, ok := m.state.batches[batchID]; !ok || existing.SeriesID != commit.SeriesID {
		return fmt.Errorf("batch %s: %w", batchID, ErrNotFound)
	}

	// Stage the touched rows so a validation failure leaves the state untouched
	entries := slices.Clone(m.state.entries[batchID])
	taken := make(map[int]bool, len(entries)+len(commit.Entries))
	for _, e := range entries {
		taken[e.BatchPosition] = true
	}
	for _, e := range commit.Entries {
		if taken[e.BatchPosition] {
			return fmt.Errorf("entry position %d in batch %s is taken: %w", e.BatchPosition, batchID, ErrPersistence)
		}
		taken[e.BatchPosition] = true
		e.BatchID = batchID
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b model.Entry) int { return a.BatchPosition - b.BatchPosition })

	events := slices.Clone(m.state.events[batchID])
	takenEvents := make(map[int]bool, len(events)+len(commit.Events))
	for _, e := range events {
		takenEvents[e.BatchPosition] = true
	}
	for _, e := range commit.Events {
		if takenEvents[e.BatchPosition] {
			return fmt.Errorf("event position %d in batch %s is taken: %w", e.BatchPosition, batchID, ErrPersistence)
		}
		takenEvents[e.BatchPosition] = true
		e.BatchID = batchID
		events = append(events, e)
	}
	slices.SortFunc(events, func(a, b model.Event) int { return a.BatchPosition - b.BatchPosition })

	// Apply
	if commit.NewBatch {
		batch := commit.Batch
		batch.SeriesID = commit.SeriesID
		m.state.batches[batchID] = batch
		m.state.batchOrder[commit.SeriesID] = append(m.state.batchOrder[commit.SeriesID], batchID)
	}
	m.state.entries[batchID] = entries
	m.state.events[batchID] = events

	for _, ud := range commit.UserData {
		ud.SeriesID = commit.SeriesID
		m.state.userData[userKey{seriesID: commit.SeriesID, userID: ud.UserID}] = ud
	}

	series.ConcurrencyMarker = commit.NewMarker
	series.CompleteCyclesCount = commit.CompleteCyclesCount
	m.state.series[commit.SeriesID] = series

	return nil
}

// checkMarker loads a series and verifies its marker. Callers must hold the write lock.
func (m *MemoryDB) checkMarker(seriesID, expectedMarker string) (model.Series, error) {
	series, ok := m.state.series[seriesID]
	if !ok {
		return model.Series{}, fmt.Errorf("series %s: %w", seriesID, ErrNotFound)
	}
	if series.ConcurrencyMarker != expectedMarker {
		return model.Series{}, fmt.Errorf("series %s changed since it was read: %w", seriesID, ErrConcurrencyConflict)
	}
	return series, nil
}
