package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/creator-selection/pkg/core/services"
)

// DueRollsCmd creates the dueRolls command
func DueRollsCmd(app *AppContext) *cobra.Command {
	var run bool

	cmd := &cobra.Command{
		Use:   "dueRolls",
		Short: "List scheduled batches that are due, optionally running them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			due, err := services.DueRolls(app.Ctx, app.Store, app.Cfg, app.Logger, time.Now().UTC())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			renderDueRolls(out, due)
			if !run {
				return nil
			}

			// A failing series does not stop the others
			var failed int
			for _, roll := range due {
				result, err := services.RetryOnConflict(app.Ctx, app.Cfg.CommitAttempts(), app.Logger,
					func(ctx context.Context) (*services.RunSelectionBatchResult, error) {
						return services.RunSelectionBatch(ctx, app.Store, app.Candidates, app.Evaluator, nil, app.Logger, roll.Series.ID, roll.Options())
					})
				if err != nil {
					failed++
					app.Logger.Error("Scheduled roll failed", zap.String("series_id", roll.Series.ID), zap.Error(err))
					fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("✗ %s: %v", roll.Series.Name, err)))
					continue
				}
				renderBatchResult(out, result)
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d scheduled rolls failed", failed, len(due))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&run, "run", false, "Run every due batch")
	return cmd
}
