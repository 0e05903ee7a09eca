package sheetsclient

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Client wraps the Google Sheets API client
type Client struct {
	service *sheets.Service
}

// NewClient creates a read-only Sheets client.
// credentialsFile is a service account key; when empty, Application Default Credentials are used.
func NewClient(ctx context.Context, credentialsFile string) (*Client, error) {
	var creds *google.Credentials
	var err error
	if credentialsFile != "" {
		data, readErr := os.ReadFile(credentialsFile)
		if readErr != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", readErr)
		}
		creds, err = google.CredentialsFromJSON(ctx, data, sheets.SpreadsheetsReadonlyScope)
	} else {
		creds, err = google.FindDefaultCredentials(ctx, sheets.SpreadsheetsReadonlyScope)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load google credentials: %w", err)
	}

	// Create sheets service
	service, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Client{service: service}, nil
}

// GetValues reads values from a spreadsheet range
func (c *Client) GetValues(spreadsheetID, sheetRange string) ([][]interface{}, error) {
	resp, err := c.service.Spreadsheets.Values.Get(spreadsheetID, sheetRange).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get values: %w", err)
	}

	return resp.Values, nil
}
