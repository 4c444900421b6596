package cmd

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/harrison/bookcheck/internal/gate"
	"github.com/harrison/bookcheck/internal/gitinfo"
	"github.com/harrison/bookcheck/internal/report"
)

// defaultLCOVPath is read when no report is given.
const defaultLCOVPath = "coverage.lcov"

// NewCoverageCommand creates the coverage command
func NewCoverageCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "coverage [lcov-file]",
		Short: "Check an LCOV coverage report against the coverage gate",
		Long: `Read an LCOV report, compute line, function and branch coverage and
the weighted overall figure (0.5 lines + 0.3 functions + 0.2 branches), and
compare it with gates.coverage.min_overall_coverage.

Examples:
  bookcheck coverage                   # coverage.lcov at the book root
  bookcheck coverage build/lcov.info`,
		Args: cobra.MaximumNArgs(1),
		RunE: coverageCommand,
	}
}

func coverageCommand(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	path := filepath.Join(a.root, defaultLCOVPath)
	if len(args) == 1 {
		path = args[0]
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return a.missingInput("coverage report", path)
	}

	cov, err := report.LoadLCOV(path)
	if err != nil {
		return err
	}

	rep := report.Aggregate(report.Input{
		RunID:        uuid.NewString(),
		Mode:         modeCoverage,
		GeneratedAt:  time.Now(),
		BookRevision: gitinfo.Describe(a.root),
		Coverage:     &cov,
	})
	rep = gate.Apply(rep, gate.Evaluate(rep, a.thresholds(a.cfg.Gates.Coverage)))

	store := a.openHistory()
	if store != nil {
		defer store.Close()
	}
	return a.finish(cmd.Context(), rep, store)
}
