package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"
)

const (
	// DatabaseURLEnv overrides database.url when set (directly or through .env)
	DatabaseURLEnv = "SELECTION_DATABASE_URL"

	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	DefaultMaxCommitAttempts = 3
)

// DatabaseConfig selects the selection state store
type DatabaseConfig struct {
	Driver string `yaml:"driver" validate:"required,oneof=postgres memory"`
	URL    string `yaml:"url,omitempty" validate:"required_if=Driver postgres"`
}

// SheetsConfig points at the spreadsheet holding submissions and supporter plans
type SheetsConfig struct {
	CredentialsFile string `yaml:"credentialsFile,omitempty"`
	SpreadsheetID   string `yaml:"spreadsheetID" validate:"required"`
	SubmissionsTab  string `yaml:"submissionsTab" validate:"required"`
	SupportersTab   string `yaml:"supportersTab" validate:"required"`
}

// SelectionConfig tunes the engine
type SelectionConfig struct {
	EligibilityWorkers int `yaml:"eligibilityWorkers,omitempty" validate:"omitempty,min=1"`
	MaxCommitAttempts  int `yaml:"maxCommitAttempts,omitempty" validate:"omitempty,min=1"`
}

// RollSchedule defines when a series is due for an automatic batch and how it is run
type RollSchedule struct {
	SeriesID         string   `yaml:"seriesID" validate:"required"`
	RRule            string   `yaml:"rrule" validate:"required"`
	EntriesToSelect  int      `yaml:"entriesToSelect" validate:"min=1"`
	AllowRestarts    bool     `yaml:"allowRestarts,omitempty"`
	IncludedLabelIDs []string `yaml:"includedLabelIDs,omitempty"`
	ExcludedLabelIDs []string `yaml:"excludedLabelIDs,omitempty"`
}

// Rule parses the schedule's recurrence anchored at dtstart
func (s RollSchedule) Rule(dtstart time.Time) (*rrule.RRule, error) {
	rule, err := rrule.StrToRRule(s.RRule)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rrule for series %s: %w", s.SeriesID, err)
	}
	rule.DTStart(dtstart)
	return rule, nil
}

// Config represents the application configuration
type Config struct {
	Database      DatabaseConfig  `yaml:"database"`
	Sheets        SheetsConfig    `yaml:"sheets"`
	Selection     SelectionConfig `yaml:"selection,omitempty"`
	RollSchedules []RollSchedule  `yaml:"rollSchedules,omitempty" validate:"dive"`
}

// CommitAttempts returns how many times a conflicting commit is attempted
func (c *Config) CommitAttempts() int {
	if c.Selection.MaxCommitAttempts <= 0 {
		return DefaultMaxCommitAttempts
	}
	return c.Selection.MaxCommitAttempts
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Load loads and validates the configuration from selection_config.yaml
// It looks for the config file in the current directory first, then in the user's home directory
func Load() (*Config, error) {
	return LoadWithEnv("")
}

// LoadWithEnv loads selection_config.<env>.yaml, or selection_config.yaml when env is empty
func LoadWithEnv(env string) (*Config, error) {
	configPath, err := findConfigFile(configFileName(env))
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path.
// A .env file in the working directory is loaded first; existing variables are not overridden.
func LoadFromPath(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if url := os.Getenv(DatabaseURLEnv); url != "" {
		cfg.Database.URL = url
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the configuration struct and checks rrule syntax
func Validate(cfg *Config) error {
	// Run struct validation
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	seen := make(map[string]bool, len(cfg.RollSchedules))
	for i, schedule := range cfg.RollSchedules {
		if _, err := rrule.StrToRRule(schedule.RRule); err != nil {
			return fmt.Errorf("invalid rrule in rollSchedules[%d]: %w", i, err)
		}
		if seen[schedule.SeriesID] {
			return fmt.Errorf("duplicate roll schedule for series %s", schedule.SeriesID)
		}
		seen[schedule.SeriesID] = true
	}

	return nil
}

func configFileName(env string) string {
	if env == "" {
		return "selection_config.yaml"
	}
	return fmt.Sprintf("selection_config.%s.yaml", env)
}

// findConfigFile searches for the named config file in current directory and home directory
func findConfigFile(name string) (string, error) {
	// Check current directory
	if _, err := os.Stat(name); err == nil {
		return name, nil
	}

	// Check home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homeConfigPath := filepath.Join(homeDir, name)
	if _, err := os.Stat(homeConfigPath); err == nil {
		return homeConfigPath, nil
	}

	return "", fmt.Errorf("%s not found in current directory or home directory", name)
}
