package commands

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/creator-selection/pkg/core/services"
)

// ManualAddCmd creates the manualAdd command
func ManualAddCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "manualAdd <series_id> <candidate_id>...",
		Short: "Add specific candidates to the latest batch of a series",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			seriesID, candidateIDs := args[0], args[1:]

			app.Logger.Debug("manualAdd command",
				zap.String("series_id", seriesID),
				zap.Strings("candidate_ids", candidateIDs))

			result, err := services.RetryOnConflict(app.Ctx, app.Cfg.CommitAttempts(), app.Logger,
				func(ctx context.Context) (*services.ManualAddResult, error) {
					return services.ManualAddEntries(ctx, app.Store, app.Candidates, app.Evaluator, app.Logger, seriesID, candidateIDs)
				})
			if err != nil {
				return err
			}

			renderManualAdd(cmd.OutOrStdout(), result)
			return nil
		},
	}
}
