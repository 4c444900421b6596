package cmd

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/harrison/bookcheck/internal/extract"
	"github.com/harrison/bookcheck/internal/gate"
	"github.com/harrison/bookcheck/internal/gitinfo"
	"github.com/harrison/bookcheck/internal/models"
	"github.com/harrison/bookcheck/internal/registry"
	"github.com/harrison/bookcheck/internal/report"
)

// Names under which annotation results appear in the status report.
const (
	statusPhase      = "docs"
	statusTool       = "status-annotation"
	headerViolation  = "doc_status_header"
	missingStatusMsg = "no status annotation"
)

// NewStatusCommand creates the status command
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status [chapter]",
		Short: "Check that every example declares its status",
		Long: `Audit the chapters' status annotations without running any tool.

Every example must carry a status marker (working, not implemented, broken,
planned), and every chapter with examples must open with a
<!-- DOC_STATUS_START --> ... <!-- DOC_STATUS_END --> block. The annotated
share is gated by gates.status.min_pass_rate; a missing header block always
fails the gate.

Examples:
  bookcheck status
  bookcheck status ch02`,
		Args: cobra.MaximumNArgs(1),
		RunE: statusCommand,
	}
}

func statusCommand(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	selection := ""
	if len(args) == 1 {
		selection = args[0]
	}

	files, err := extract.ListChapters(a.cfg.BookDir, selection)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("%w in %s", extract.ErrNoSources, a.cfg.BookDir)
	}

	extractor := extract.New(extract.Options{Language: a.cfg.Language, Extension: a.cfg.Extension})
	start := time.Now()
	statuses, err := extractor.LintFiles(files)
	if err != nil {
		return err
	}

	rep := statusReport(statuses, selection, a.thresholds(a.cfg.Gates.Status))
	rep.BookRevision = gitinfo.Describe(a.root)
	rep.WallClockMs = time.Since(start).Milliseconds()

	for _, st := range statuses {
		for _, issue := range st.Issues() {
			a.console.LogWarn(issue)
		}
	}

	store := a.openHistory()
	if store != nil {
		defer store.Close()
	}
	return a.finish(cmd.Context(), rep, store)
}

// statusReport turns the annotation audit into a gated report: one outcome
// per example, passing when the example is annotated.
func statusReport(statuses []extract.FileStatus, selection string, thresholds gate.Thresholds) models.ValidationReport {
	var examples []models.Example
	var outcomes []models.ToolOutcome
	missingHeaders := 0

	for _, st := range statuses {
		if st.Examples > 0 && !st.HasHeader {
			missingHeaders++
		}
		unannotated := make(map[int]models.Example, len(st.Unannotated))
		for _, ex := range st.Unannotated {
			unannotated[ex.Ordinal] = ex
		}
		for ordinal := 1; ordinal <= st.Examples; ordinal++ {
			ex, missing := unannotated[ordinal]
			if !missing {
				ex = models.Example{SourceFile: st.File, Ordinal: ordinal}
			}
			o := models.ToolOutcome{
				ExampleIndex: len(examples),
				ExampleKey:   ex.Key(),
				ToolName:     statusTool,
				Kind:         models.OutcomePass,
			}
			if missing {
				o.Kind = models.OutcomeFail
				o.RootCause = missingStatusMsg
			}
			examples = append(examples, ex)
			outcomes = append(outcomes, o)
		}
	}

	rep := report.Aggregate(report.Input{
		RunID:       uuid.NewString(),
		Mode:        modeStatus,
		Selection:   selection,
		GeneratedAt: time.Now(),
		Examples:    examples,
		Outcomes:    outcomes,
		Phases:      []registry.Phase{{Name: statusPhase, Tools: []models.ToolSpec{{Name: statusTool}}}},
	})

	verdict := gate.Evaluate(rep, thresholds)
	if missingHeaders > 0 {
		verdict.Passed = false
		verdict.ExitCode = gate.ExitFailed
		verdict.Violations = append(verdict.Violations, models.Violation{
			Threshold: headerViolation,
			Actual:    float64(missingHeaders),
			Message:   fmt.Sprintf("%d chapter(s) with examples lack a DOC_STATUS header block", missingHeaders),
		})
	}
	return gate.Apply(rep, verdict)
}
