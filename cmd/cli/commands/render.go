package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jakechorley/creator-selection/pkg/core/model"
	"github.com/jakechorley/creator-selection/pkg/core/selector"
	"github.com/jakechorley/creator-selection/pkg/core/services"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	eventStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Italic(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	keyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0")).Width(14)
)

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatWave(wave *int) string {
	if wave == nil {
		return "-"
	}
	return strconv.Itoa(*wave)
}

func stopReasonText(reason selector.StopReason) string {
	switch reason {
	case selector.StopQuotaFilled:
		return "requested number of entries selected"
	case selector.StopPoolExhausted:
		return "no eligible candidates left"
	case selector.StopCycleBoundary:
		return "cycle completed (restarts not allowed)"
	default:
		return string(reason)
	}
}

func keyValue(w io.Writer, key string, value any) {
	fmt.Fprintf(w, "%s %v\n", keyStyle.Render(key+":"), value)
}

// renderEntries prints picked entries numbered from 1 with cycle events inline
func renderEntries(w io.Writer, entries []model.Entry) {
	picked := 0
	for _, entry := range entries {
		if entry.IsPicked() {
			picked++
			fmt.Fprintf(w, "  %3d. %s %s\n", picked, entry.CandidateID, dimStyle.Render(fmt.Sprintf("(user %s, cycle %d)", entry.UserID, entry.Cycle)))
			continue
		}
		fmt.Fprintf(w, "       %s\n", eventStyle.Render(eventText(entry.EventKind)))
	}
}

func eventText(kind model.EventKind) string {
	switch kind {
	case model.EventCycleCompleted:
		return "── cycle completed ──"
	case model.EventRestartTriggered:
		return "── new cycle started ──"
	default:
		return "── " + string(kind) + " ──"
	}
}

func renderBatchResult(w io.Writer, result *services.RunSelectionBatchResult) {
	fmt.Fprintln(w)
	if result.DryRun {
		fmt.Fprintln(w, warnStyle.Render("Dry run: nothing was committed"))
	} else {
		fmt.Fprintln(w, successStyle.Render("✓ Batch committed"))
	}

	keyValue(w, "Series", fmt.Sprintf("%s (%s)", result.Series.Name, result.Series.ID))
	keyValue(w, "Batch", result.Batch.ID)
	keyValue(w, "Picked", result.PickedCount)
	keyValue(w, "Stopped", stopReasonText(result.StopReason))
	if result.CompletedCycles > 0 {
		keyValue(w, "Cycles done", result.CompletedCycles)
	}
	fmt.Fprintln(w)

	if result.PickedCount == 0 && len(result.Entries) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No candidates were selected."))
		return
	}
	renderEntries(w, result.Entries)
	fmt.Fprintln(w)
}

func renderManualAdd(w io.Writer, result *services.ManualAddResult) {
	fmt.Fprintln(w)
	if result.AddedCount > 0 {
		fmt.Fprintln(w, successStyle.Render(fmt.Sprintf("✓ Added %d candidate(s) to batch %s", result.AddedCount, result.BatchID)))
		renderEntries(w, result.Entries)
	} else {
		fmt.Fprintln(w, warnStyle.Render("No candidates were added"))
	}

	if result.CycleCompleted {
		fmt.Fprintln(w, eventStyle.Render("The current cycle is now complete"))
	}

	if len(result.SkippedSubmissions) > 0 {
		fmt.Fprintf(w, "\n%s\n", warnStyle.Render(fmt.Sprintf("Skipped %d candidate(s):", len(result.SkippedSubmissions))))
		for _, skip := range result.SkippedSubmissions {
			label := skip.CandidateID
			if skip.UserDisplayName != "" {
				label = fmt.Sprintf("#%d %s (%s)", skip.Number, skip.UserDisplayName, skip.CandidateID)
			}
			fmt.Fprintf(w, "  ✗ %s: %s\n", label, skipReasonText(skip.Reason))
		}
	}
	fmt.Fprintln(w)
}

func skipReasonText(reason services.SkipReason) string {
	switch reason {
	case services.SkipNotFound:
		return "not found in this series"
	case services.SkipAlreadySelected:
		return "user already selected this cycle"
	case services.SkipDuplicate:
		return "listed more than once"
	default:
		return string(reason)
	}
}

func renderSeriesHeader(w io.Writer, series model.Series) {
	keyValue(w, "ID", series.ID)
	keyValue(w, "Name", series.Name)
	ownership := string(series.OwnershipType)
	if series.QuestionnaireID != "" {
		ownership += " " + series.QuestionnaireID
	}
	keyValue(w, "Ownership", ownership)
	keyValue(w, "Cycle", series.CurrentCycle()+1)
	keyValue(w, "Created", series.CreatedAt.Format("2006-01-02 15:04"))
}

func renderConfiguration(w io.Writer, cfg model.EligibilityConfiguration) {
	fmt.Fprintf(w, "\n%s\n", titleStyle.Render(fmt.Sprintf("Eligibility (version %d)", cfg.Version)))
	if len(cfg.Options) == 0 {
		fmt.Fprintln(w, dimStyle.Render("  No options: nobody is eligible"))
		return
	}
	fmt.Fprintf(w, "  %-20s %-16s %8s %5s\n", "Plan", "Group", "Modifier", "Wave")
	for _, opt := range cfg.Options {
		fmt.Fprintf(w, "  %-20s %-16s %8s %5s\n", opt.PlanID, opt.PriorityGroup, formatFloat(opt.PriorityModifier), formatWave(opt.SelectionWave))
	}
}

func renderSeriesView(w io.Writer, view *services.SeriesView) {
	fmt.Fprintln(w)
	renderSeriesHeader(w, view.Series)
	renderConfiguration(w, view.Configuration)

	fmt.Fprintf(w, "\n%s\n", titleStyle.Render("Users"))
	if len(view.UserData) == 0 {
		fmt.Fprintln(w, dimStyle.Render("  No users yet"))
	} else {
		fmt.Fprintf(w, "  %-24s %6s %9s %6s\n", "User", "Weight", "Selected", "Total")
		for _, ud := range view.UserData {
			selected := "no"
			if ud.SelectedCount > 0 {
				selected = "yes"
			}
			fmt.Fprintf(w, "  %-24s %6s %9s %6d\n", ud.UserID, formatFloat(ud.LatestWeight), selected, ud.TotalSelectedCount)
		}
	}

	fmt.Fprintf(w, "\n%s\n", titleStyle.Render(fmt.Sprintf("Batches (%d)", len(view.Batches))))
	for _, bv := range view.Batches {
		fmt.Fprintf(w, "%s %s %s\n",
			bv.Batch.RollStartedAt.Format("2006-01-02 15:04"),
			bv.Batch.ID,
			dimStyle.Render(fmt.Sprintf("[%s, %d picked]", bv.Batch.Kind, bv.PickedCount())))
		renderEntries(w, bv.Entries)
	}
	fmt.Fprintln(w)
}

func renderSeriesList(w io.Writer, series []model.Series) {
	if len(series) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No series defined"))
		return
	}
	fmt.Fprintf(w, "%-36s  %-24s %-13s %5s\n", "ID", "Name", "Ownership", "Cycle")
	for _, s := range series {
		fmt.Fprintf(w, "%-36s  %-24s %-13s %5d\n", s.ID, truncate(s.Name, 24), s.OwnershipType, s.CurrentCycle()+1)
	}
}

func renderDueRolls(w io.Writer, due []services.DueRoll) {
	if len(due) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No rolls are due"))
		return
	}
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%d roll(s) due", len(due))))
	for _, roll := range due {
		opts := roll.Options()
		var flags []string
		if opts.AllowRestarts {
			flags = append(flags, "restarts")
		}
		if len(opts.IncludedLabelIDs) > 0 {
			flags = append(flags, "include="+strings.Join(opts.IncludedLabelIDs, ","))
		}
		if len(opts.ExcludedLabelIDs) > 0 {
			flags = append(flags, "exclude="+strings.Join(opts.ExcludedLabelIDs, ","))
		}
		fmt.Fprintf(w, "  %s  %s  select %d %s\n",
			roll.Occurrence.Format("2006-01-02 15:04"),
			roll.Series.Name,
			opts.NumberOfEntriesToSelect,
			dimStyle.Render(strings.Join(flags, " ")))
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
