package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command with every subcommand attached.
// The commands read app when they run, so it may be populated by a PersistentPreRunE hook.
func NewRootCmd(app *AppContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "selection",
		Short:         "Creator selection - fair weighted draws for polls and questionnaires",
		Long:          `A CLI tool for defining selection series, drawing batches of candidates and reviewing selection history.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(DefineSeriesCmd(app))
	rootCmd.AddCommand(UpdateEligibilityCmd(app))
	rootCmd.AddCommand(SetUserWeightCmd(app))
	rootCmd.AddCommand(RunSelectionBatchCmd(app))
	rootCmd.AddCommand(ManualAddCmd(app))
	rootCmd.AddCommand(ViewSeriesCmd(app))
	rootCmd.AddCommand(ListSeriesCmd(app))
	rootCmd.AddCommand(DueRollsCmd(app))

	return rootCmd
}
