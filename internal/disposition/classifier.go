// Package disposition decides what a tool result means for an example,
// given what the example declares about itself.
//
// Outcomes are four-way: Pass, ExpectedFail (an intentional error was
// reported), Fail, and Baseline (a known-unimplemented feature, tracked but
// not scored).
package disposition

import (
	"fmt"
	"strings"

	"github.com/harrison/bookcheck/internal/models"
)

// Markers are the recognized strings the classifier reacts to.
type Markers struct {
	HardError      []string // In tool output: the tool failed even if it exited 0
	NotImplemented []string // In tool output: the feature is not available yet
	ExpectedError  []string // In example code: the example is meant to fail
}

// DefaultMarkers returns the marker vocabulary of the toolchain's diagnostics.
func DefaultMarkers() Markers {
	return Markers{
		HardError:      []string{"Error:"},
		NotImplemented: []string{"not yet implemented", "not implemented"},
		ExpectedError:  []string{"expect-error", "expected error", "should fail"},
	}
}

// Classifier applies the disposition rules to raw tool outcomes.
type Classifier struct {
	markers Markers
}

// New creates a Classifier.
func New(markers Markers) *Classifier {
	return &Classifier{markers: markers}
}

// OutputMarkers lists every marker the runner must look for in tool output
// for tool, including the tool's own pass patterns.
func (c *Classifier) OutputMarkers(tool models.ToolSpec) []string {
	var out []string
	seen := make(map[string]bool)
	for _, group := range [][]string{c.markers.HardError, c.markers.NotImplemented, tool.PassPatterns} {
		for _, m := range group {
			if m == "" || seen[m] {
				continue
			}
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// ExpectsError reports whether the example is meant to fail: it is declared
// Broken or its code carries an expected-error marker.
func (c *Classifier) ExpectsError(ex models.Example) bool {
	if ex.DeclaredStatus == models.DispositionBroken {
		return true
	}
	lower := strings.ToLower(ex.Code)
	for _, m := range c.markers.ExpectedError {
		if m != "" && strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

func unimplemented(d models.Disposition) bool {
	return d == models.DispositionNotImplemented || d == models.DispositionPlanned
}

func (c *Classifier) seenAny(raw models.ToolOutcome, markers []string) bool {
	for _, m := range markers {
		if raw.HasMarker(m) {
			return true
		}
	}
	return false
}

// Classify returns a copy of raw with its outcome kind, error category and
// root-cause hint set. Rules, first match wins:
//
//  1. A tool that never launched is a Fail attributed to the tool.
//  2. A timeout is Baseline for NotImplemented, Planned and Broken examples
//     and a Fail otherwise.
//  3. Examples expected to fail: a syntax-checking tool reporting an error
//     is ExpectedFail, one reporting success is a Fail (the docs are stale);
//     other tools are Baseline.
//  4. NotImplemented or Planned examples, or output carrying a
//     not-implemented marker, are Baseline.
//  5. Otherwise Pass iff the exit code is zero and no hard-error marker was
//     printed. A tool pass pattern in the output forces a Pass.
func (c *Classifier) Classify(ex models.Example, tool models.ToolSpec, raw models.ToolOutcome) models.ToolOutcome {
	output := raw.Stdout + "\n" + raw.Stderr
	hardError := c.seenAny(raw, c.markers.HardError)
	failed := raw.ExitCode != 0 || hardError

	if raw.LaunchFailed() {
		binary := tool.Name
		if len(tool.Command) > 0 {
			binary = tool.Command[0]
		}
		return raw.Classified(models.OutcomeFail, models.CategoryLaunch,
			fmt.Sprintf("could not execute %s: %s", binary, raw.LaunchError))
	}

	if raw.TimedOut() {
		cause := fmt.Sprintf("exceeded %v timeout", tool.Timeout)
		if unimplemented(ex.DeclaredStatus) || ex.DeclaredStatus == models.DispositionBroken {
			return raw.Classified(models.OutcomeBaseline, models.CategoryTimeout, cause)
		}
		return raw.Classified(models.OutcomeFail, models.CategoryTimeout, cause)
	}

	if c.ExpectsError(ex) {
		if !tool.ChecksSyntax {
			return raw.Classified(models.OutcomeBaseline, models.CategoryNone, "")
		}
		if failed {
			return raw.Classified(models.OutcomeExpectedFail, models.CategoryNone, "")
		}
		return raw.Classified(models.OutcomeFail, models.CategoryUnknown,
			"example is marked as failing but now succeeds; update its status")
	}

	if unimplemented(ex.DeclaredStatus) || c.seenAny(raw, c.markers.NotImplemented) {
		return raw.Classified(models.OutcomeBaseline, models.CategoryPlanned, "")
	}

	if c.seenAny(raw, tool.PassPatterns) || !failed {
		return raw.Classified(models.OutcomePass, models.CategoryNone, "")
	}
	return raw.Classified(models.OutcomeFail, Categorize(output), RootCause(output))
}
