package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/jakechorley/creator-selection/cmd/cli/commands"
	"github.com/jakechorley/creator-selection/internal/config"
	"github.com/jakechorley/creator-selection/pkg/clients/sheetsclient"
	"github.com/jakechorley/creator-selection/pkg/core/eligibility"
	"github.com/jakechorley/creator-selection/pkg/db"
	"github.com/jakechorley/creator-selection/pkg/postgres"
	"github.com/jakechorley/creator-selection/pkg/utils/logging"
)

var (
	env      string
	driver   string
	verbose  bool
	closeDB  func()
	stopCtx  context.CancelFunc
	appState = &commands.AppContext{}
)

func main() {
	rootCmd := commands.NewRootCmd(appState)
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return initApp(cmd.Flags())
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		shutdown()
	}

	// Add persistent flags
	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.PersistentFlags().StringVar(&driver, "db", "", "Override database.driver (postgres or memory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to the console")
	rootCmd.MarkPersistentFlagRequired("env")

	if err := rootCmd.Execute(); err != nil {
		if appState.Logger != nil {
			appState.Logger.Error("Command failed", zap.Error(err))
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		shutdown()
		os.Exit(1)
	}
}

// initApp sets up logger, config, store and collaborators
func initApp(flags *pflag.FlagSet) error {
	var err error

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	stopCtx = stop
	appState.Ctx = ctx

	// Initialize logger
	appState.Logger, err = logging.InitLogger(env, verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger := appState.Logger

	logger.Info("Starting application", zap.String("environment", env))

	// Load configuration
	logger.Info("Loading configuration")
	appState.Cfg, err = config.LoadWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if flags.Changed("db") {
		appState.Cfg.Database.Driver = driver
		if err := config.Validate(appState.Cfg); err != nil {
			return fmt.Errorf("invalid --db override: %w", err)
		}
	}
	logger.Debug("Configuration loaded successfully", zap.String("driver", appState.Cfg.Database.Driver))

	// Initialize store
	switch appState.Cfg.Database.Driver {
	case config.DriverPostgres:
		logger.Info("Connecting to database")
		pg, err := postgres.NewDB(ctx, appState.Cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		closeDB = pg.Close
		if err := pg.RunMigrations(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		appState.Store = pg
	case config.DriverMemory:
		logger.Warn("Using in-memory store, nothing will be persisted after this command")
		appState.Store = db.NewMemoryDB()
	}
	logger.Debug("Store initialized successfully")

	// Initialize sheets client
	logger.Info("Initializing sheets client")
	sheets, err := sheetsclient.NewClient(ctx, appState.Cfg.Sheets.CredentialsFile)
	if err != nil {
		return fmt.Errorf("failed to create sheets client: %w", err)
	}
	logger.Debug("Sheets client initialized successfully")

	sheetsCfg := appState.Cfg.Sheets
	appState.Candidates = sheetsclient.NewSubmissionSource(sheets, sheetsCfg.SpreadsheetID, sheetsCfg.SubmissionsTab)
	feed := sheetsclient.NewSupportFeed(sheets, sheetsCfg.SpreadsheetID, sheetsCfg.SupportersTab)
	appState.Evaluator = eligibility.NewEvaluator(feed, eligibility.NewCache(), appState.Cfg.Selection.EligibilityWorkers, logger)

	return nil
}

func shutdown() {
	if closeDB != nil {
		closeDB()
		closeDB = nil
	}
	if stopCtx != nil {
		stopCtx()
		stopCtx = nil
	}
	if appState.Logger != nil {
		appState.Logger.Sync()
	}
}
