// Package gate compares a ValidationReport against configured thresholds.
package gate

import (
	"fmt"

	"github.com/harrison/bookcheck/internal/models"
)

// Exit codes. No others are defined.
const (
	ExitPassed = 0
	ExitFailed = 1
)

// Threshold names used in violations.
const (
	ThresholdPassRate = "min_pass_rate"
	ThresholdCoverage = "min_overall_coverage"
	ThresholdDuration = "max_total_duration_ms"
)

// Thresholds are the configured minimums and budgets. A zero value disables
// that check.
type Thresholds struct {
	MinPassRate        float64 // Percent, 0-100
	MinOverallCoverage float64 // Percent, 0-100
	MaxTotalDurationMs int64
}

// Enabled reports whether any threshold is configured.
func (t Thresholds) Enabled() bool {
	return t.MinPassRate > 0 || t.MinOverallCoverage > 0 || t.MaxTotalDurationMs > 0
}

// Verdict is the gate decision for one report.
type Verdict struct {
	Passed     bool
	ExitCode   int
	Violations []models.Violation
}

// Evaluate checks every configured threshold. Violations are reported in a
// fixed order: pass rate, coverage, duration. Raising any minimum (or
// lowering the duration budget) can only add violations.
func Evaluate(report models.ValidationReport, t Thresholds) Verdict {
	var violations []models.Violation

	if t.MinPassRate > 0 && report.PassRate < t.MinPassRate {
		shortfall := t.MinPassRate - report.PassRate
		violations = append(violations, models.Violation{
			Threshold: ThresholdPassRate,
			Actual:    report.PassRate,
			Required:  t.MinPassRate,
			Shortfall: shortfall,
			Message:   fmt.Sprintf("pass rate %.2f%% is below target %.2f%% by %.2f%%", report.PassRate, t.MinPassRate, shortfall),
		})
	}

	if t.MinOverallCoverage > 0 {
		actual := 0.0
		if report.Coverage != nil {
			actual = report.Coverage.Overall
		}
		if actual < t.MinOverallCoverage {
			shortfall := t.MinOverallCoverage - actual
			msg := fmt.Sprintf("overall coverage %.2f%% is below target %.2f%% by %.2f%%", actual, t.MinOverallCoverage, shortfall)
			if report.Coverage == nil {
				msg = fmt.Sprintf("no coverage data; target is %.2f%%", t.MinOverallCoverage)
			}
			violations = append(violations, models.Violation{
				Threshold: ThresholdCoverage,
				Actual:    actual,
				Required:  t.MinOverallCoverage,
				Shortfall: shortfall,
				Message:   msg,
			})
		}
	}

	if t.MaxTotalDurationMs > 0 && report.WallClockMs > t.MaxTotalDurationMs {
		over := report.WallClockMs - t.MaxTotalDurationMs
		violations = append(violations, models.Violation{
			Threshold: ThresholdDuration,
			Actual:    float64(report.WallClockMs),
			Required:  float64(t.MaxTotalDurationMs),
			Shortfall: float64(over),
			Message:   fmt.Sprintf("total duration %dms exceeds budget %dms by %dms", report.WallClockMs, t.MaxTotalDurationMs, over),
		})
	}

	if len(violations) > 0 {
		return Verdict{Passed: false, ExitCode: ExitFailed, Violations: violations}
	}
	return Verdict{Passed: true, ExitCode: ExitPassed}
}

// Apply returns a copy of report carrying the verdict.
func Apply(report models.ValidationReport, v Verdict) models.ValidationReport {
	return report.WithVerdict(v.Passed, v.Violations)
}
