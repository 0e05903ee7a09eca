package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/jakechorley/creator-selection/pkg/core/model"
	"github.com/jakechorley/creator-selection/pkg/core/services"
)

// seriesDefinition is the file format accepted by defineSeries and updateEligibility.
// updateEligibility only reads the options.
type seriesDefinition struct {
	Name            string                    `yaml:"name"`
	OwnershipType   string                    `yaml:"ownershipType"`
	QuestionnaireID string                    `yaml:"questionnaireID,omitempty"`
	Options         []model.EligibilityOption `yaml:"options"`
}

func loadSeriesDefinition(path string) (*seriesDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read series definition: %w", err)
	}

	var def seriesDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse series definition: %w", err)
	}
	return &def, nil
}

func (d *seriesDefinition) params() services.DefineSeriesParams {
	return services.DefineSeriesParams{
		Name:            d.Name,
		OwnershipType:   model.OwnershipType(d.OwnershipType),
		QuestionnaireID: d.QuestionnaireID,
		Options:         d.Options,
	}
}

// DefineSeriesCmd creates the defineSeries command
func DefineSeriesCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "defineSeries <definition.yaml>",
		Short: "Create a selection series with its eligibility options",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := loadSeriesDefinition(args[0])
			if err != nil {
				return err
			}

			app.Logger.Debug("defineSeries command", zap.String("name", def.Name), zap.Int("options", len(def.Options)))

			result, err := services.DefineSeries(app.Ctx, app.Store, app.Logger, def.params())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, successStyle.Render("✓ Series created"))
			renderSeriesHeader(out, result.Series)
			renderConfiguration(out, result.Configuration)
			return nil
		},
	}
}

// UpdateEligibilityCmd creates the updateEligibility command
func UpdateEligibilityCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "updateEligibility <series_id> <definition.yaml>",
		Short: "Replace the eligibility options of a series",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			seriesID := args[0]
			def, err := loadSeriesDefinition(args[1])
			if err != nil {
				return err
			}

			app.Logger.Debug("updateEligibility command", zap.String("series_id", seriesID), zap.Int("options", len(def.Options)))

			cfg, err := services.UpdateEligibility(app.Ctx, app.Store, app.Logger, seriesID, def.Options)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✓ Eligibility updated to version %d", cfg.Version)))
			renderConfiguration(out, *cfg)
			return nil
		},
	}
}

// SetUserWeightCmd creates the setUserWeight command
func SetUserWeightCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "setUserWeight <series_id> <user_id> <weight>",
		Short: "Set the draw weight multiplier of a user in a series",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			seriesID, userID := args[0], args[1]
			weight, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("weight must be a number: %w", err)
			}

			app.Logger.Debug("setUserWeight command", zap.String("series_id", seriesID), zap.String("user_id", userID), zap.Float64("weight", weight))

			if err := services.SetUserWeight(app.Ctx, app.Store, app.Logger, seriesID, userID, weight); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("✓ Weight of %s set to %s", userID, formatFloat(weight))))
			return nil
		},
	}
}

// ViewSeriesCmd creates the viewSeries command
func ViewSeriesCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "viewSeries <series_id>",
		Short: "Show a series with its fairness state and batch history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := services.ViewSeries(app.Ctx, app.Store, app.Logger, args[0])
			if err != nil {
				return err
			}

			renderSeriesView(cmd.OutOrStdout(), view)
			return nil
		},
	}
}

// ListSeriesCmd creates the listSeries command
func ListSeriesCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "listSeries",
		Short: "List all selection series",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			series, err := app.Store.ListSeries(app.Ctx)
			if err != nil {
				return fmt.Errorf("failed to list series: %w", err)
			}

			renderSeriesList(cmd.OutOrStdout(), series)
			return nil
		},
	}
}
