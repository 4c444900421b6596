package executor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/bookcheck/internal/gate"
	"github.com/harrison/bookcheck/internal/models"
	"github.com/harrison/bookcheck/internal/registry"
	"github.com/harrison/bookcheck/internal/report"
)

// Logger receives pipeline progress events.
type Logger interface {
	LogStage(stage Stage)
	LogRunStart(examples, runnable, tools, maxConcurrency int)
	LogOutcome(example models.Example, outcome models.ToolOutcome)
	LogRunComplete(report models.ValidationReport, duration time.Duration)
	LogWarn(message string)
}

// ExtractFunc produces the examples for one run. A returned error aborts the
// run before any tool is started.
type ExtractFunc func() ([]models.Example, error)

// RunConfig carries the per-run labels and gate settings.
type RunConfig struct {
	Mode             string
	Selection        string
	RunID            string // Generated when empty
	ToolchainVersion string
	BookRevision     string
	Thresholds       gate.Thresholds
	Previous         []models.ToolOutcome // Outcomes of the previous comparable run, for change detection
}

// PipelineResult is the outcome of a completed run.
type PipelineResult struct {
	Report   models.ValidationReport // Carries the gate verdict
	Verdict  gate.Verdict
	Examples []models.Example
}

// Pipeline drives one validation run: extract, classify, run, aggregate, gate.
type Pipeline struct {
	pool   *Pool
	phases []registry.Phase
	logger Logger

	mu    sync.Mutex
	stage Stage
}

// NewPipeline creates a Pipeline over the tools of reg. The logger is optional.
func NewPipeline(pool *Pool, reg *registry.Registry, logger Logger) *Pipeline {
	if pool == nil {
		panic("pool cannot be nil")
	}
	if reg == nil {
		panic("registry cannot be nil")
	}
	return &Pipeline{
		pool:   pool,
		phases: reg.Phases(),
		logger: logger,
	}
}

// Stage returns the stage the pipeline is currently in.
func (p *Pipeline) Stage() Stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stage
}

func (p *Pipeline) enter(stage Stage) {
	p.mu.Lock()
	p.stage = stage
	p.mu.Unlock()
	if p.logger != nil {
		p.logger.LogStage(stage)
	}
}

// Run executes the whole pipeline. Per-tool failures and timeouts are data in
// the report; the only errors returned are extraction failures (format or
// missing input) and cancellation of ctx. A failing gate is not an error here:
// inspect PipelineResult.Verdict.
func (p *Pipeline) Run(ctx context.Context, cfg RunConfig, extract ExtractFunc) (*PipelineResult, error) {
	generatedAt := time.Now()
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}

	p.enter(StageExtracting)
	examples, err := extract()
	if err != nil {
		p.enter(StageIdle)
		return nil, NewStageError(StageExtracting, "failed to extract examples", err)
	}

	p.enter(StageClassifying)
	runnable := 0
	for _, ex := range examples {
		if !ex.Skipped() {
			runnable++
		}
	}
	toolCount := 0
	for _, ph := range p.phases {
		toolCount += len(ph.Tools)
	}
	if p.logger != nil {
		if runnable == 0 {
			p.logger.LogWarn("no runnable examples found")
		}
		p.logger.LogRunStart(len(examples), runnable, toolCount, p.pool.MaxConcurrency())
	}

	p.enter(StageRunning)
	if p.logger != nil {
		p.pool.SetObserver(p.logger.LogOutcome)
	}
	start := time.Now()
	result, err := p.pool.Run(ctx, examples, p.phases)
	wallClock := time.Since(start)
	if err != nil {
		p.enter(StageIdle)
		return nil, NewStageError(StageRunning, "run cancelled", err)
	}

	p.enter(StageAggregating)
	rep := report.Aggregate(report.Input{
		RunID:            cfg.RunID,
		Mode:             cfg.Mode,
		Selection:        cfg.Selection,
		GeneratedAt:      generatedAt,
		ToolchainVersion: cfg.ToolchainVersion,
		BookRevision:     cfg.BookRevision,
		Examples:         examples,
		Outcomes:         result.Outcomes,
		Phases:           p.phases,
		Blocked:          result.Blocked,
		WallClockMs:      wallClock.Milliseconds(),
		Previous:         cfg.Previous,
	})

	p.enter(StageGating)
	verdict := gate.Evaluate(rep, cfg.Thresholds)
	rep = gate.Apply(rep, verdict)

	p.enter(StageDone)
	if p.logger != nil {
		p.logger.LogRunComplete(rep, wallClock)
	}
	return &PipelineResult{Report: rep, Verdict: verdict, Examples: examples}, nil
}
