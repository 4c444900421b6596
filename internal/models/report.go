package models

import "time"

// Counts tallies classified outcomes.
type Counts struct {
	Passed       int `json:"passed"`
	ExpectedFail int `json:"expected_fail"`
	Failed       int `json:"failed"`
	Baseline     int `json:"baseline"`
}

// Add buckets one classified outcome.
func (c *Counts) Add(kind OutcomeKind) {
	switch kind {
	case OutcomePass:
		c.Passed++
	case OutcomeExpectedFail:
		c.ExpectedFail++
	case OutcomeFail:
		c.Failed++
	case OutcomeBaseline:
		c.Baseline++
	}
}

// Total counts every recorded outcome, baseline included.
func (c Counts) Total() int {
	return c.Passed + c.ExpectedFail + c.Failed + c.Baseline
}

// Scored counts the outcomes that participate in the pass rate.
func (c Counts) Scored() int {
	return c.Passed + c.ExpectedFail + c.Failed
}

// PassRate returns (Passed+ExpectedFail)/Scored as a percentage.
// A set holding only baseline outcomes has nothing failing and reports 100;
// an empty set reports 0 so an empty run can never satisfy a pass-rate gate.
func (c Counts) PassRate() float64 {
	scored := c.Scored()
	if scored == 0 {
		if c.Baseline > 0 {
			return 100
		}
		return 0
	}
	return float64(c.Passed+c.ExpectedFail) / float64(scored) * 100
}

// TimingStats summarizes durations over a set of outcomes.
type TimingStats struct {
	Count       int     `json:"count"`
	TotalMs     int64   `json:"total_ms"`
	AvgMs       float64 `json:"avg_ms"`
	MinMs       int64   `json:"min_ms"`
	MaxMs       int64   `json:"max_ms"`
	SlowestKey  string  `json:"slowest_example,omitempty"`
	SlowestTool string  `json:"slowest_tool,omitempty"`
}

// ToolSummary is one row of the per-tool table.
type ToolSummary struct {
	Tool     string      `json:"tool"`
	Phase    string      `json:"phase"`
	Counts   Counts      `json:"counts"`
	Total    int         `json:"total"`
	PassRate float64     `json:"pass_rate"`
	Timing   TimingStats `json:"timing"`
}

// GroupSummary tallies outcomes under a phase or disposition label.
type GroupSummary struct {
	Name     string  `json:"name"`
	Counts   Counts  `json:"counts"`
	PassRate float64 `json:"pass_rate"`
}

// ExampleVerdict is the overall result for one example.
type ExampleVerdict struct {
	Key         string        `json:"key"`
	SourceFile  string        `json:"source_file"`
	StartLine   int           `json:"start_line"`
	Description string        `json:"description,omitempty"`
	Disposition Disposition   `json:"disposition"`
	Passed      bool          `json:"passed"`
	Skipped     bool          `json:"skipped,omitempty"`
	SkipReason  string        `json:"skip_reason,omitempty"`
	Counts      Counts        `json:"counts"`
	Outcomes    []ToolOutcome `json:"outcomes,omitempty"`
}

// ChapterSummary groups example verdicts by source file.
type ChapterSummary struct {
	Chapter  string  `json:"chapter"`
	Examples int     `json:"examples"`
	Passed   int     `json:"passed"`
	Failed   int     `json:"failed"`
	Skipped  int     `json:"skipped"`
	PassRate float64 `json:"pass_rate"`
}

// ChangeKind labels a difference against the previous run.
type ChangeKind string

const (
	ChangeRegression    ChangeKind = "regression"     // Pass or ExpectedFail became Fail
	ChangeBaselineDrift ChangeKind = "baseline_drift" // Baseline now fails differently
	ChangeNewlyWorking  ChangeKind = "newly_working"  // Baseline became Pass
)

// OutcomeChange records one (example, tool) pair whose outcome moved since the previous run.
type OutcomeChange struct {
	Kind       ChangeKind  `json:"kind"`
	ExampleKey string      `json:"example"`
	ToolName   string      `json:"tool"`
	From       OutcomeKind `json:"from"`
	To         OutcomeKind `json:"to"`
	FromExit   int         `json:"from_exit"`
	ToExit     int         `json:"to_exit"`
}

// Coverage holds parsed coverage totals and the derived percentages.
type Coverage struct {
	LinesFound     int     `json:"lines_found"`
	LinesHit       int     `json:"lines_hit"`
	FunctionsFound int     `json:"functions_found"`
	FunctionsHit   int     `json:"functions_hit"`
	BranchesFound  int     `json:"branches_found"`
	BranchesHit    int     `json:"branches_hit"`
	Line           float64 `json:"line"`
	Function       float64 `json:"function"`
	Branch         float64 `json:"branch"`
	Overall        float64 `json:"overall"`
}

// Violation describes one failed threshold.
type Violation struct {
	Threshold string  `json:"threshold"`
	Actual    float64 `json:"actual"`
	Required  float64 `json:"required"`
	Shortfall float64 `json:"shortfall"`
	Message   string  `json:"message"`
}

// ValidationReport is the aggregate artifact for one run. It is built once by
// the aggregator; the gate verdict is attached by copying, never in place.
type ValidationReport struct {
	RunID            string    `json:"run_id"`
	Mode             string    `json:"mode"`
	Selection        string    `json:"selection,omitempty"`
	GeneratedAt      time.Time `json:"generated_at"`
	ToolchainVersion string    `json:"toolchain_version,omitempty"`
	BookRevision     string    `json:"book_revision,omitempty"`

	Totals       Counts           `json:"totals"`
	PassRate     float64          `json:"pass_rate"`
	Tools        []ToolSummary    `json:"tools"`
	Phases       []GroupSummary   `json:"phases"`
	Dispositions []GroupSummary   `json:"dispositions"`
	Examples     []ExampleVerdict `json:"examples"`
	Chapters     []ChapterSummary `json:"chapters"`
	Timing       TimingStats      `json:"timing"`
	WallClockMs  int64            `json:"wall_clock_ms"`
	Skipped      int              `json:"skipped"`
	Blocked      int              `json:"blocked"`

	Coverage *Coverage      `json:"coverage,omitempty"`
	Changes  []OutcomeChange `json:"changes,omitempty"`

	GatePassed bool        `json:"gate_passed"`
	Violations []Violation `json:"violations,omitempty"`
}

// FailedExamples returns the verdicts that did not pass, in extraction order.
func (r ValidationReport) FailedExamples() []ExampleVerdict {
	var failed []ExampleVerdict
	for _, ex := range r.Examples {
		if !ex.Passed && !ex.Skipped {
			failed = append(failed, ex)
		}
	}
	return failed
}

// Outcomes flattens the per-example outcomes in report order.
func (r ValidationReport) Outcomes() []ToolOutcome {
	var out []ToolOutcome
	for _, ex := range r.Examples {
		out = append(out, ex.Outcomes...)
	}
	return out
}

// WithVerdict returns a copy of the report carrying the gate result.
func (r ValidationReport) WithVerdict(passed bool, violations []Violation) ValidationReport {
	r.GatePassed = passed
	r.Violations = append([]Violation(nil), violations...)
	return r
}
