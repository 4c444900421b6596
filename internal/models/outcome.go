package models

import (
	"fmt"
	"math"
)

// Exit code sentinels. Real exit codes are 0-255 (or -1 when a process is
// killed by a signal), so the sentinels sit at the bottom of the int32 range.
const (
	ExitTimedOut     = math.MinInt32
	ExitLaunchFailed = math.MinInt32 + 1
)

// OutcomeKind is the classified result of one tool run.
type OutcomeKind string

const (
	OutcomePass         OutcomeKind = "pass"          // Worked as documented
	OutcomeExpectedFail OutcomeKind = "expected_fail" // Failed, and the example says it should
	OutcomeFail         OutcomeKind = "fail"
	OutcomeBaseline     OutcomeKind = "baseline" // Known-unimplemented; tracked, not scored
)

// ErrorCategory groups failing output by likely cause.
type ErrorCategory string

const (
	CategoryNone    ErrorCategory = ""
	CategoryParser  ErrorCategory = "PARSER_ERROR"
	CategoryMethod  ErrorCategory = "METHOD_ERROR"
	CategoryImport  ErrorCategory = "IMPORT_ERROR"
	CategoryPlanned ErrorCategory = "PLANNED"
	CategoryTimeout ErrorCategory = "TIMEOUT"
	CategoryLaunch  ErrorCategory = "LAUNCH"
	CategoryUnknown ErrorCategory = "UNKNOWN"
)

// ToolOutcome is the recorded result of running one ToolSpec against one Example.
// Values are created by the runner, classified once, and never mutated.
type ToolOutcome struct {
	ExampleIndex int      `json:"-"`                      // Index of the example in extraction order
	ExampleKey   string   `json:"example"`                // Example.Key()
	ToolName     string   `json:"tool"`
	ExitCode     int      `json:"exit_code"`
	Stdout       string   `json:"stdout,omitempty"`       // Bounded capture
	Stderr       string   `json:"stderr,omitempty"`       // Bounded capture
	Truncated    bool     `json:"truncated,omitempty"`    // Either stream exceeded the capture budget
	Markers      []string `json:"markers,omitempty"`      // Configured marker strings seen anywhere in the full output
	LaunchError  string   `json:"launch_error,omitempty"` // Why the process could not be started
	DurationMs   int64    `json:"duration_ms"`

	Kind      OutcomeKind   `json:"outcome"`
	Category  ErrorCategory `json:"category,omitempty"`
	RootCause string        `json:"root_cause,omitempty"`
}

// TimedOut reports whether the tool was killed at its deadline.
func (o ToolOutcome) TimedOut() bool {
	return o.ExitCode == ExitTimedOut
}

// LaunchFailed reports whether the tool process never started.
func (o ToolOutcome) LaunchFailed() bool {
	return o.ExitCode == ExitLaunchFailed
}

// ClassifiedPass is true for passes and intended failures.
func (o ToolOutcome) ClassifiedPass() bool {
	return o.Kind == OutcomePass || o.Kind == OutcomeExpectedFail
}

// Scored reports whether the outcome counts toward the pass rate.
func (o ToolOutcome) Scored() bool {
	return o.Kind != OutcomeBaseline && o.Kind != ""
}

// HasMarker reports whether marker was seen in the tool's output.
func (o ToolOutcome) HasMarker(marker string) bool {
	for _, m := range o.Markers {
		if m == marker {
			return true
		}
	}
	return false
}

// Classified returns a copy of the outcome carrying the classification.
func (o ToolOutcome) Classified(kind OutcomeKind, category ErrorCategory, rootCause string) ToolOutcome {
	c := o
	c.Markers = append([]string(nil), o.Markers...)
	c.Kind = kind
	c.Category = category
	c.RootCause = rootCause
	return c
}

// ExitLabel renders the exit code, naming the sentinels.
func (o ToolOutcome) ExitLabel() string {
	switch o.ExitCode {
	case ExitTimedOut:
		return "timed-out"
	case ExitLaunchFailed:
		return "could-not-execute"
	default:
		return fmt.Sprintf("%d", o.ExitCode)
	}
}
