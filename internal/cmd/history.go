package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/bookcheck/internal/history"
	"github.com/harrison/bookcheck/internal/report"
)

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent validation runs",
		Long: `Show the runs recorded in the history database, most recent first.

Examples:
  bookcheck history
  bookcheck history --mode heredoc --limit 5
  bookcheck history --prune 50         # keep only the newest 50 runs`,
		Args: cobra.NoArgs,
		RunE: historyCommand,
	}
	cmd.Flags().Int("limit", 20, "Maximum number of runs to show (0 = all)")
	cmd.Flags().String("mode", "", "Only show runs of this mode (run, heredoc, coverage, status)")
	cmd.Flags().Int("prune", -1, "Delete all but the newest N runs before listing")
	return cmd
}

func historyCommand(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	if !a.cfg.History.Enabled {
		return fmt.Errorf("run history is disabled (history.enabled: false)")
	}
	store, err := history.NewStore(a.cfg.History.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	if keep, _ := cmd.Flags().GetInt("prune"); cmd.Flags().Changed("prune") {
		removed, err := store.Prune(ctx, keep)
		if err != nil {
			return err
		}
		a.console.LogInfo(fmt.Sprintf("Pruned %d runs", removed))
	}

	limit, _ := cmd.Flags().GetInt("limit")
	mode, _ := cmd.Flags().GetString("mode")
	fetch := limit
	if mode != "" {
		fetch = 0
	}
	runs, err := store.ListRuns(ctx, fetch)
	if err != nil {
		return err
	}

	out := a.stdout
	shown := 0
	for _, r := range runs {
		if mode != "" && r.Mode != mode {
			continue
		}
		if limit > 0 && shown == limit {
			break
		}
		if shown == 0 {
			fmt.Fprintf(out, "%-19s  %-8s  %-10s  %8s  %-5s  %s\n", "STARTED", "MODE", "SELECTION", "PASS", "GATE", "RUN")
		}
		shown++

		gateLabel := "pass"
		if !r.GatePassed {
			gateLabel = "FAIL"
		}
		selection := r.Selection
		if selection == "" {
			selection = "-"
		}
		fmt.Fprintf(out, "%-19s  %-8s  %-10s  %7.1f%%  %-5s  %s %s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Mode,
			selection,
			r.PassRate,
			gateLabel,
			report.StatusIcon(r.PassRate),
			r.ID[:min(8, len(r.ID))],
		)
	}
	if shown == 0 {
		fmt.Fprintln(out, "No runs recorded yet")
	}
	return nil
}
