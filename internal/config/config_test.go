package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Database: DatabaseConfig{Driver: DriverPostgres, URL: "postgres://localhost/selection"},
		Sheets: SheetsConfig{
			SpreadsheetID:  "sheet123",
			SubmissionsTab: "Submissions",
			SupportersTab:  "Supporters",
		},
		RollSchedules: []RollSchedule{
			{
				SeriesID:         "series-1",
				RRule:            "FREQ=WEEKLY;BYDAY=SU",
				EntriesToSelect:  5,
				IncludedLabelIDs: []string{"art"},
			},
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	err := Validate(validConfig())
	assert.NoError(t, err)
}

func TestValidate_MemoryDriverNeedsNoURL(t *testing.T) {
	cfg := validConfig()
	cfg.Database = DatabaseConfig{Driver: DriverMemory}

	err := Validate(cfg)
	assert.NoError(t, err)
}

func TestValidate_PostgresDriverNeedsURL(t *testing.T) {
	cfg := validConfig()
	cfg.Database.URL = ""

	err := Validate(cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Driver = "sqlite"

	err := Validate(cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestValidate_MissingRequiredField(t *testing.T) {
	cfg := validConfig()
	cfg.Sheets.SupportersTab = ""

	err := Validate(cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestValidate_InvalidRRule(t *testing.T) {
	cfg := validConfig()
	cfg.RollSchedules[0].RRule = "INVALID_RRULE_SYNTAX"

	err := Validate(cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid rrule")
}

func TestValidate_ScheduleNeedsPositiveEntries(t *testing.T) {
	cfg := validConfig()
	cfg.RollSchedules[0].EntriesToSelect = 0

	err := Validate(cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestValidate_DuplicateSchedule(t *testing.T) {
	cfg := validConfig()
	cfg.RollSchedules = append(cfg.RollSchedules, RollSchedule{
		SeriesID:        "series-1",
		RRule:           "FREQ=MONTHLY;BYMONTHDAY=1",
		EntriesToSelect: 1,
	})

	err := Validate(cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate roll schedule")
}

func TestCommitAttempts(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, DefaultMaxCommitAttempts, cfg.CommitAttempts())

	cfg.Selection.MaxCommitAttempts = 7
	assert.Equal(t, 7, cfg.CommitAttempts())
}

func TestRollSchedule_Rule(t *testing.T) {
	schedule := RollSchedule{SeriesID: "series-1", RRule: "FREQ=WEEKLY;BYDAY=SU"}
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) // a Sunday

	rule, err := schedule.Rule(start)
	require.NoError(t, err)

	occurrences := rule.Between(start, start.AddDate(0, 0, 14), true)
	assert.Len(t, occurrences, 3)
}

func TestLoadFromPath_ValidConfig(t *testing.T) {
	t.Setenv(DatabaseURLEnv, "")
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.yaml")

	content := `
database:
  driver: postgres
  url: "postgres://localhost/selection"
sheets:
  credentialsFile: "service_account.json"
  spreadsheetID: "sheet123"
  submissionsTab: "Submissions"
  supportersTab: "Supporters"
selection:
  eligibilityWorkers: 4
  maxCommitAttempts: 5
rollSchedules:
  - seriesID: "series-1"
    rrule: "FREQ=MONTHLY;BYMONTHDAY=1"
    entriesToSelect: 3
    allowRestarts: true
    excludedLabelIDs:
      - "spam"
`

	err := os.WriteFile(configPath, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := LoadFromPath(configPath)
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "postgres://localhost/selection", cfg.Database.URL)
	assert.Equal(t, "service_account.json", cfg.Sheets.CredentialsFile)
	assert.Equal(t, "Supporters", cfg.Sheets.SupportersTab)
	assert.Equal(t, 4, cfg.Selection.EligibilityWorkers)
	assert.Equal(t, 5, cfg.CommitAttempts())

	require.Len(t, cfg.RollSchedules, 1)
	schedule := cfg.RollSchedules[0]
	assert.Equal(t, "series-1", schedule.SeriesID)
	assert.Equal(t, 3, schedule.EntriesToSelect)
	assert.True(t, schedule.AllowRestarts)
	assert.Equal(t, []string{"spam"}, schedule.ExcludedLabelIDs)
	assert.Empty(t, schedule.IncludedLabelIDs)
}

func TestLoadFromPath_EnvOverridesDatabaseURL(t *testing.T) {
	t.Setenv(DatabaseURLEnv, "postgres://override/selection")
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "env_config.yaml")

	// The url is missing from the file; the environment supplies it
	content := `
database:
  driver: postgres
sheets:
  spreadsheetID: "sheet123"
  submissionsTab: "Submissions"
  supportersTab: "Supporters"
`

	err := os.WriteFile(configPath, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := LoadFromPath(configPath)
	require.NoError(t, err)
	assert.Equal(t, "postgres://override/selection", cfg.Database.URL)
}

func TestLoadFromPath_InvalidRRule(t *testing.T) {
	t.Setenv(DatabaseURLEnv, "")
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_rrule.yaml")

	content := `
database:
  driver: memory
sheets:
  spreadsheetID: "sheet123"
  submissionsTab: "Submissions"
  supportersTab: "Supporters"
rollSchedules:
  - seriesID: "series-1"
    rrule: "INVALID_RRULE_SYNTAX"
    entriesToSelect: 1
`

	err := os.WriteFile(configPath, []byte(content), 0644)
	require.NoError(t, err)

	_, err = LoadFromPath(configPath)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid rrule")
}

func TestLoadFromPath_InvalidYAML(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "unclosed flow sequence",
			yaml: "database: [unclosed\n",
		},
		{
			name: "unterminated quoted scalar",
			yaml: "database:\n  driver: \"memory\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "invalid_yaml.yaml")
			err := os.WriteFile(configPath, []byte(tt.yaml), 0644)
			require.NoError(t, err)

			_, err = LoadFromPath(configPath)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "failed to parse config file")
		})
	}
}

func TestLoadFromPath_FileNotFound(t *testing.T) {
	_, err := LoadFromPath("/nonexistent/path/config.yaml")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestConfigFileName(t *testing.T) {
	assert.Equal(t, "selection_config.yaml", configFileName(""))
	assert.Equal(t, "selection_config.test.yaml", configFileName("test"))
}
