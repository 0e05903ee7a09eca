package commands

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/creator-selection/pkg/core/services"
)

// RunSelectionBatchCmd creates the runBatch command
func RunSelectionBatchCmd(app *AppContext) *cobra.Command {
	var (
		opts services.RunSelectionBatchOptions
		seed uint64
	)

	cmd := &cobra.Command{
		Use:   "runBatch <series_id>",
		Short: "Select the next batch of candidates for a series",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seriesID := args[0]
			seeded := cmd.Flags().Changed("seed")

			app.Logger.Debug("runBatch command",
				zap.String("series_id", seriesID),
				zap.Int("count", opts.NumberOfEntriesToSelect),
				zap.Bool("seeded", seeded))

			rng := services.NewRand()
			if seeded {
				rng = services.NewSeededRand(seed)
			}

			result, err := services.RetryOnConflict(app.Ctx, app.Cfg.CommitAttempts(), app.Logger,
				func(ctx context.Context) (*services.RunSelectionBatchResult, error) {
					return services.RunSelectionBatch(ctx, app.Store, app.Candidates, app.Evaluator, rng, app.Logger, seriesID, opts)
				})
			if err != nil {
				return err
			}

			renderBatchResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.NumberOfEntriesToSelect, "count", "n", 1, "Number of candidates to select")
	cmd.Flags().BoolVar(&opts.AllowRestarts, "allow-restarts", false, "Start a new cycle when the current one completes mid-batch")
	cmd.Flags().BoolVar(&opts.ForceRecalculateEligibility, "force-eligibility", false, "Ignore cached eligibility results")
	cmd.Flags().StringSliceVar(&opts.IncludedLabelIDs, "include", nil, "Only draw candidates with one of these labels")
	cmd.Flags().StringSliceVar(&opts.ExcludedLabelIDs, "exclude", nil, "Never draw candidates with one of these labels")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Seed the draw for a reproducible result")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Show the result without committing it")

	return cmd
}
