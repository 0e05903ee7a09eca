package sheetsclient

import (
	"context"
	"fmt"

	"github.com/jakechorley/creator-selection/pkg/core/model"
	"github.com/jakechorley/creator-selection/pkg/sheetssql"
)

// submissionRow is one row of the submissions tab
type submissionRow struct {
	ID          string   `ssql_header:"Submission ID"`
	SeriesID    string   `ssql_header:"Series ID"`
	UserID      string   `ssql_header:"User ID"`
	Number      int      `ssql_header:"Number"`
	DisplayName string   `ssql_header:"Display name"`
	Labels      []string `ssql_header:"Labels"`
}

// SubmissionSource lists candidates from the submissions tab
type SubmissionSource struct {
	reader        sheetssql.ValueReader
	spreadsheetID string
	tab           string
}

// NewSubmissionSource creates a candidate source over one tab
func NewSubmissionSource(reader sheetssql.ValueReader, spreadsheetID, tab string) *SubmissionSource {
	return &SubmissionSource{reader: reader, spreadsheetID: spreadsheetID, tab: tab}
}

// ListCandidates returns the submissions belonging to a series, in sheet order
func (s *SubmissionSource) ListCandidates(ctx context.Context, series model.Series) ([]model.Candidate, error) {
	rows, err := sheetssql.GetTableAs[submissionRow](s.reader, s.spreadsheetID, s.tab)
	if err != nil {
		return nil, fmt.Errorf("failed to read submissions: %w", err)
	}

	return candidatesForSeries(rows, series.ID)
}

func candidatesForSeries(rows []submissionRow, seriesID string) ([]model.Candidate, error) {
	seen := make(map[string]bool)
	candidates := make([]model.Candidate, 0)
	for _, row := range rows {
		if row.SeriesID != seriesID {
			continue
		}
		if row.ID == "" || row.UserID == "" {
			return nil, fmt.Errorf("submission %d in series %s is missing its ID or user", row.Number, seriesID)
		}
		if seen[row.ID] {
			return nil, fmt.Errorf("duplicate submission ID %s", row.ID)
		}
		seen[row.ID] = true

		candidates = append(candidates, model.Candidate{
			ID:              row.ID,
			UserID:          row.UserID,
			Number:          row.Number,
			UserDisplayName: row.DisplayName,
			LabelIDs:        row.Labels,
		})
	}
	return candidates, nil
}
