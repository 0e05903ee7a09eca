package sheetsclient

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jakechorley/creator-selection/pkg/sheetssql"
)

// supporterRow is one row of the supporters tab.
// A blank Series ID means the plan applies to every series.
type supporterRow struct {
	UserID   string `ssql_header:"User ID"`
	PlanID   string `ssql_header:"Plan ID"`
	Status   string `ssql_header:"Status"`
	SeriesID string `ssql_header:"Series ID"`
}

type planKey struct {
	seriesID string
	userID   string
}

// SupportFeed answers active plan lookups from the supporters tab.
// The tab is read on first use and kept until Refresh, so every lookup in a run sees the same facts.
type SupportFeed struct {
	reader        sheetssql.ValueReader
	spreadsheetID string
	tab           string

	mu    sync.RWMutex
	plans map[planKey][]string // nil until the tab has been read
}

// NewSupportFeed creates a feed over one tab
func NewSupportFeed(reader sheetssql.ValueReader, spreadsheetID, tab string) *SupportFeed {
	return &SupportFeed{reader: reader, spreadsheetID: spreadsheetID, tab: tab}
}

// ActivePlans returns the plans a user currently holds for a series
func (f *SupportFeed) ActivePlans(ctx context.Context, seriesID string, userID string) ([]string, error) {
	index, err := f.snapshot()
	if err != nil {
		return nil, err
	}

	plans := append([]string{}, index[planKey{userID: userID}]...)
	plans = append(plans, index[planKey{seriesID: seriesID, userID: userID}]...)
	return plans, nil
}

// Refresh re-reads the tab. On failure the previous facts are kept.
func (f *SupportFeed) Refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	index, err := f.read()
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.plans = index
	f.mu.Unlock()
	return nil
}

func (f *SupportFeed) snapshot() (map[planKey][]string, error) {
	f.mu.RLock()
	index := f.plans
	f.mu.RUnlock()
	if index != nil {
		return index, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.plans != nil {
		return f.plans, nil
	}
	index, err := f.read()
	if err != nil {
		return nil, err
	}
	f.plans = index
	return index, nil
}

func (f *SupportFeed) read() (map[planKey][]string, error) {
	rows, err := sheetssql.GetTableAs[supporterRow](f.reader, f.spreadsheetID, f.tab)
	if err != nil {
		return nil, fmt.Errorf("failed to read supporters: %w", err)
	}
	return indexActivePlans(rows), nil
}

// indexActivePlans keeps rows whose status is "Active" (case-insensitive)
func indexActivePlans(rows []supporterRow) map[planKey][]string {
	plans := make(map[planKey][]string)
	for _, row := range rows {
		if !strings.EqualFold(row.Status, "Active") || row.UserID == "" || row.PlanID == "" {
			continue
		}
		key := planKey{seriesID: row.SeriesID, userID: row.UserID}
		plans[key] = append(plans[key], row.PlanID)
	}
	return plans
}
