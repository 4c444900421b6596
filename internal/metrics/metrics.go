// Package metrics exports run results as a Prometheus textfile for CI
// scrapers such as the node_exporter textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/harrison/bookcheck/internal/models"
)

// Metrics holds the Prometheus collectors for one bookcheck invocation.
//
// All metrics are prefixed with "bookcheck_":
//   - bookcheck_tool_outcomes_total{mode,tool,outcome}
//   - bookcheck_tool_duration_seconds{mode,tool}
//   - bookcheck_pass_rate_percent{mode}
//   - bookcheck_gate_passed{mode}
//   - bookcheck_gate_violations{mode}
//   - bookcheck_examples{mode,state}
//   - bookcheck_coverage_percent{kind}
//   - bookcheck_last_run_timestamp_seconds{mode}
type Metrics struct {
	registry *prometheus.Registry

	OutcomesTotal *prometheus.CounterVec
	ToolDuration  *prometheus.HistogramVec
	PassRate      *prometheus.GaugeVec
	GatePassed    *prometheus.GaugeVec
	Violations    *prometheus.GaugeVec
	Examples      *prometheus.GaugeVec
	Coverage      *prometheus.GaugeVec
	LastRun       *prometheus.GaugeVec
}

// New registers the collectors on a private registry, so several Metrics
// values can coexist in one process.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		OutcomesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookcheck_tool_outcomes_total",
				Help: "Classified tool outcomes by tool and kind",
			},
			[]string{"mode", "tool", "outcome"},
		),
		ToolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bookcheck_tool_duration_seconds",
				Help:    "Wall time of individual tool runs",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
			},
			[]string{"mode", "tool"},
		),
		PassRate: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bookcheck_pass_rate_percent",
				Help: "Share of scored outcomes that passed",
			},
			[]string{"mode"},
		),
		GatePassed: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bookcheck_gate_passed",
				Help: "1 when every configured threshold held, 0 otherwise",
			},
			[]string{"mode"},
		),
		Violations: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bookcheck_gate_violations",
				Help: "Number of violated thresholds",
			},
			[]string{"mode"},
		),
		Examples: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bookcheck_examples",
				Help: "Examples by overall state",
			},
			[]string{"mode", "state"}, // "passed", "failed", "skipped"
		),
		Coverage: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bookcheck_coverage_percent",
				Help: "Coverage percentages from the last coverage check",
			},
			[]string{"kind"}, // "line", "function", "branch", "overall"
		),
		LastRun: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bookcheck_last_run_timestamp_seconds",
				Help: "Unix time the report was generated",
			},
			[]string{"mode"},
		),
	}
}

// Registry exposes the underlying registry as a gatherer.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveReport records a gated report.
func (m *Metrics) ObserveReport(rep models.ValidationReport) {
	mode := rep.Mode

	var passed, failed, skipped float64
	for _, ex := range rep.Examples {
		switch {
		case ex.Skipped:
			skipped++
		case ex.Passed:
			passed++
		default:
			failed++
		}
		for _, o := range ex.Outcomes {
			m.OutcomesTotal.WithLabelValues(mode, o.ToolName, string(o.Kind)).Inc()
			if o.DurationMs > 0 {
				m.ToolDuration.WithLabelValues(mode, o.ToolName).Observe(float64(o.DurationMs) / 1000)
			}
		}
	}
	m.Examples.WithLabelValues(mode, "passed").Set(passed)
	m.Examples.WithLabelValues(mode, "failed").Set(failed)
	m.Examples.WithLabelValues(mode, "skipped").Set(skipped)

	m.PassRate.WithLabelValues(mode).Set(rep.PassRate)
	gate := 0.0
	if rep.GatePassed {
		gate = 1
	}
	m.GatePassed.WithLabelValues(mode).Set(gate)
	m.Violations.WithLabelValues(mode).Set(float64(len(rep.Violations)))

	if cov := rep.Coverage; cov != nil {
		m.Coverage.WithLabelValues("line").Set(cov.Line)
		m.Coverage.WithLabelValues("function").Set(cov.Function)
		m.Coverage.WithLabelValues("branch").Set(cov.Branch)
		m.Coverage.WithLabelValues("overall").Set(cov.Overall)
	}
	if !rep.GeneratedAt.IsZero() {
		m.LastRun.WithLabelValues(mode).Set(float64(rep.GeneratedAt.Unix()))
	}
}

// WriteTextfile writes every collected metric to path in the Prometheus text
// exposition format. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
