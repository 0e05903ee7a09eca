package commands

import (
	"context"

	"go.uber.org/zap"

	"github.com/jakechorley/creator-selection/internal/config"
	"github.com/jakechorley/creator-selection/pkg/core/services"
	"github.com/jakechorley/creator-selection/pkg/db"
)

// AppContext holds the application dependencies shared across all commands
type AppContext struct {
	Cfg        *config.Config
	Store      db.SelectionStore
	Candidates services.CandidateSource
	Evaluator  services.EligibilityEvaluator
	Logger     *zap.Logger
	Ctx        context.Context
}
