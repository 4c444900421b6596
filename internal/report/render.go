package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/harrison/bookcheck/internal/models"
)

// maxListed caps the failure, skip and change listings.
const maxListed = 50

// palette holds the colors used by the renderer. Every color is enabled or
// disabled together so output to a pipe never carries escape codes.
type palette struct {
	bold    *color.Color
	success *color.Color
	fail    *color.Color
	warn    *color.Color
	label   *color.Color
	muted   *color.Color
}

func newPalette(enabled bool) *palette {
	p := &palette{
		bold:    color.New(color.Bold),
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		label:   color.New(color.FgCyan),
		muted:   color.New(color.FgHiBlack),
	}
	for _, c := range []*color.Color{p.bold, p.success, p.fail, p.warn, p.label, p.muted} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Renderer writes the human-readable summary of a ValidationReport.
type Renderer struct {
	w       io.Writer
	colors  *palette
	verbose bool
}

// NewRenderer creates a renderer. colorOutput should be true only when w is a terminal.
func NewRenderer(w io.Writer, colorOutput bool) *Renderer {
	return &Renderer{w: w, colors: newPalette(colorOutput)}
}

// SetVerbose includes captured output for each failing outcome.
func (r *Renderer) SetVerbose(verbose bool) {
	r.verbose = verbose
}

// StatusIcon marks a pass rate: ✅ at 100%, ⚠️ at 80% or more, ❌ below.
func StatusIcon(passRate float64) string {
	switch {
	case passRate >= 100:
		return "✅"
	case passRate >= 80:
		return "⚠️"
	default:
		return "❌"
	}
}

// Render writes the full summary. Sections with nothing to show are omitted.
func (r *Renderer) Render(rep models.ValidationReport) error {
	var b strings.Builder

	r.header(&b, rep)
	if len(rep.Tools) > 0 {
		r.toolTable(&b, rep)
	}
	if len(rep.Phases) > 1 {
		r.groupTable(&b, "Phases", rep.Phases)
	}
	if len(rep.Dispositions) > 0 {
		r.groupTable(&b, "Dispositions", rep.Dispositions)
	}
	if len(rep.Chapters) > 1 {
		r.chapterTable(&b, rep.Chapters)
	}
	r.failures(&b, rep)
	r.skipped(&b, rep)
	r.changes(&b, rep.Changes)
	if rep.Timing.Count > 0 {
		r.timing(&b, rep)
	}
	if rep.Coverage != nil {
		r.coverage(&b, *rep.Coverage)
	}
	r.verdict(&b, rep)

	_, err := io.WriteString(r.w, b.String())
	return err
}

func (r *Renderer) section(b *strings.Builder, title string) {
	fmt.Fprintf(b, "\n%s\n", r.colors.bold.Sprintf("=== %s ===", title))
}

func (r *Renderer) header(b *strings.Builder, rep models.ValidationReport) {
	title := "Validation Report"
	if rep.Mode != "" {
		title = fmt.Sprintf("Validation Report (%s)", rep.Mode)
	}
	fmt.Fprintf(b, "%s\n", r.colors.bold.Sprintf("=== %s ===", title))
	if rep.Selection != "" {
		fmt.Fprintf(b, "%s %s\n", r.colors.label.Sprint("Selection:"), rep.Selection)
	}
	if rep.ToolchainVersion != "" {
		fmt.Fprintf(b, "%s %s\n", r.colors.label.Sprint("Toolchain:"), rep.ToolchainVersion)
	}
	if rep.BookRevision != "" {
		fmt.Fprintf(b, "%s %s\n", r.colors.label.Sprint("Revision:"), shortRevision(rep.BookRevision))
	}
	if rep.RunID != "" {
		fmt.Fprintf(b, "%s %s\n", r.colors.label.Sprint("Run:"), rep.RunID)
	}
	if len(rep.Examples) > 0 {
		fmt.Fprintf(b, "%s %d (%d skipped)\n", r.colors.label.Sprint("Examples:"), len(rep.Examples), rep.Skipped)
	}
	if rep.Totals.Total() > 0 {
		fmt.Fprintf(b, "%s %s passed, %d expected failures, %s, %d baseline\n",
			r.colors.label.Sprint("Outcomes:"),
			r.colors.success.Sprintf("%d", rep.Totals.Passed),
			rep.Totals.ExpectedFail,
			r.failedText(rep.Totals.Failed),
			rep.Totals.Baseline)
		fmt.Fprintf(b, "%s %s\n", r.colors.label.Sprint("Pass rate:"), r.rate(rep.PassRate))
	}
	if rep.Blocked > 0 {
		fmt.Fprintf(b, "%s %d tool runs skipped after a blocking failure\n", r.colors.warn.Sprint("Blocked:"), rep.Blocked)
	}
}

func (r *Renderer) failedText(n int) string {
	text := fmt.Sprintf("%d failed", n)
	if n > 0 {
		return r.colors.fail.Sprint(text)
	}
	return text
}

func (r *Renderer) rate(passRate float64) string {
	text := fmt.Sprintf("%.1f%%", passRate)
	switch {
	case passRate >= 100:
		return r.colors.success.Sprint(text)
	case passRate >= 80:
		return r.colors.warn.Sprint(text)
	default:
		return r.colors.fail.Sprint(text)
	}
}

func (r *Renderer) toolTable(b *strings.Builder, rep models.ValidationReport) {
	r.section(b, "Tools")
	fmt.Fprintf(b, "   %-18s %-10s %6s %6s %6s %6s %8s %9s\n", "TOOL", "PHASE", "PASS", "XFAIL", "FAIL", "BASE", "RATE", "AVG")
	for _, t := range rep.Tools {
		if t.Total == 0 {
			fmt.Fprintf(b, "%s %-18s %-10s %s\n", "  ", t.Tool, t.Phase, r.colors.muted.Sprint("not run"))
			continue
		}
		fmt.Fprintf(b, "%s %-18s %-10s %6d %6d %6d %6d %7.1f%% %8.0fms\n",
			StatusIcon(t.PassRate), t.Tool, t.Phase,
			t.Counts.Passed, t.Counts.ExpectedFail, t.Counts.Failed, t.Counts.Baseline,
			t.PassRate, t.Timing.AvgMs)
	}
}

func (r *Renderer) groupTable(b *strings.Builder, title string, groups []models.GroupSummary) {
	r.section(b, title)
	for _, g := range groups {
		fmt.Fprintf(b, "%s %-16s %4d/%-4d scored passing, %d baseline (%.1f%%)\n",
			StatusIcon(g.PassRate), g.Name,
			g.Counts.Passed+g.Counts.ExpectedFail, g.Counts.Scored(),
			g.Counts.Baseline, g.PassRate)
	}
}

func (r *Renderer) chapterTable(b *strings.Builder, chapters []models.ChapterSummary) {
	r.section(b, "Chapters")
	for _, c := range chapters {
		fmt.Fprintf(b, "%s %-28s %3d examples: %d passed, %s, %d skipped\n",
			StatusIcon(c.PassRate), c.Chapter, c.Examples, c.Passed, r.failedText(c.Failed), c.Skipped)
	}
}

func (r *Renderer) failures(b *strings.Builder, rep models.ValidationReport) {
	failed := rep.FailedExamples()
	if len(failed) == 0 {
		return
	}
	r.section(b, fmt.Sprintf("Failures (%d)", len(failed)))
	for i, ex := range failed {
		if i == maxListed {
			fmt.Fprintf(b, "  ... and %d more\n", len(failed)-maxListed)
			break
		}
		label := ex.Key
		if ex.Description != "" {
			label = fmt.Sprintf("%s (%s)", ex.Key, ex.Description)
		}
		fmt.Fprintf(b, "%s %s %s\n", r.colors.fail.Sprint("✗"), label, r.colors.muted.Sprintf("%s:%d", ex.SourceFile, ex.StartLine))
		for _, o := range ex.Outcomes {
			if o.Kind != models.OutcomeFail {
				continue
			}
			fmt.Fprintf(b, "    %-18s exit %-18s", o.ToolName, o.ExitLabel())
			if o.Category != models.CategoryNone {
				fmt.Fprintf(b, " [%s]", r.colors.warn.Sprint(o.Category))
			}
			if o.RootCause != "" {
				fmt.Fprintf(b, " %s", o.RootCause)
			}
			b.WriteString("\n")
			if r.verbose {
				r.capturedOutput(b, o)
			}
		}
	}
}

func (r *Renderer) capturedOutput(b *strings.Builder, o models.ToolOutcome) {
	for _, stream := range []string{o.Stderr, o.Stdout} {
		for _, line := range strings.Split(strings.TrimRight(stream, "\n"), "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			fmt.Fprintf(b, "      %s\n", r.colors.muted.Sprint(line))
		}
	}
	if o.Truncated {
		fmt.Fprintf(b, "      %s\n", r.colors.muted.Sprint("(output truncated)"))
	}
}

func (r *Renderer) skipped(b *strings.Builder, rep models.ValidationReport) {
	if rep.Skipped == 0 {
		return
	}
	r.section(b, fmt.Sprintf("Skipped (%d)", rep.Skipped))
	listed := 0
	for _, ex := range rep.Examples {
		if !ex.Skipped {
			continue
		}
		if listed == maxListed {
			fmt.Fprintf(b, "  ... and %d more\n", rep.Skipped-maxListed)
			break
		}
		listed++
		fmt.Fprintf(b, "  - %s: %s\n", ex.Key, ex.SkipReason)
	}
}

func (r *Renderer) changes(b *strings.Builder, changes []models.OutcomeChange) {
	if len(changes) == 0 {
		return
	}
	r.section(b, "Changes Since Previous Run")
	if regressions := Regressions(changes); len(regressions) > 0 {
		fmt.Fprintf(b, "  %s\n", r.colors.fail.Sprintf("%d of %d changes are regressions", len(regressions), len(changes)))
	}
	for i, c := range changes {
		if i == maxListed {
			fmt.Fprintf(b, "  ... and %d more\n", len(changes)-maxListed)
			break
		}
		var kind string
		switch c.Kind {
		case models.ChangeRegression:
			kind = r.colors.fail.Sprint("REGRESSION")
		case models.ChangeNewlyWorking:
			kind = r.colors.success.Sprint("NEWLY WORKING")
		default:
			kind = r.colors.warn.Sprint("BASELINE DRIFT")
		}
		fmt.Fprintf(b, "  %s %s %s: %s -> %s (exit %s -> %s)\n", kind, c.ExampleKey, c.ToolName,
			c.From, c.To, exitLabel(c.FromExit), exitLabel(c.ToExit))
	}
}

func exitLabel(code int) string {
	return models.ToolOutcome{ExitCode: code}.ExitLabel()
}

func (r *Renderer) timing(b *strings.Builder, rep models.ValidationReport) {
	r.section(b, "Timing")
	t := rep.Timing
	fmt.Fprintf(b, "  %d runs, total %dms, avg %.0fms, min %dms, max %dms\n", t.Count, t.TotalMs, t.AvgMs, t.MinMs, t.MaxMs)
	if t.SlowestKey != "" {
		fmt.Fprintf(b, "  Slowest: %s %s (%dms)\n", t.SlowestKey, t.SlowestTool, t.MaxMs)
	}
	if rep.WallClockMs > 0 {
		fmt.Fprintf(b, "  Wall clock: %dms\n", rep.WallClockMs)
	}
}

func (r *Renderer) coverage(b *strings.Builder, cov models.Coverage) {
	r.section(b, "Coverage")
	fmt.Fprintf(b, "  Lines:     %6.2f%% (%d/%d)\n", cov.Line, cov.LinesHit, cov.LinesFound)
	fmt.Fprintf(b, "  Functions: %6.2f%% (%d/%d)\n", cov.Function, cov.FunctionsHit, cov.FunctionsFound)
	fmt.Fprintf(b, "  Branches:  %6.2f%% (%d/%d)\n", cov.Branch, cov.BranchesHit, cov.BranchesFound)
	fmt.Fprintf(b, "  Overall:   %s (weighted %.1f/%.1f/%.1f)\n",
		r.rate(cov.Overall), LineWeight, FunctionWeight, BranchWeight)
}

func (r *Renderer) verdict(b *strings.Builder, rep models.ValidationReport) {
	r.section(b, "Verdict")
	if rep.GatePassed {
		fmt.Fprintf(b, "%s\n", r.colors.success.Sprint("✅ All gates passed"))
		return
	}
	fmt.Fprintf(b, "%s\n", r.colors.fail.Sprint("❌ Quality gate failed"))
	for _, v := range rep.Violations {
		fmt.Fprintf(b, "  - %s\n", v.Message)
	}
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}
