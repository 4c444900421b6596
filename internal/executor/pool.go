package executor

import (
	"context"
	"runtime"
	"sync"

	"github.com/harrison/bookcheck/internal/models"
	"github.com/harrison/bookcheck/internal/registry"
)

// Classifier turns a raw outcome into a classified one.
type Classifier interface {
	Classify(example models.Example, tool models.ToolSpec, raw models.ToolOutcome) models.ToolOutcome
}

// OutcomeObserver is notified as each outcome is classified. It is called
// from worker goroutines and must be safe for concurrent use.
type OutcomeObserver func(example models.Example, outcome models.ToolOutcome)

// PoolResult is everything a sweep produced, in deterministic order.
type PoolResult struct {
	Outcomes []models.ToolOutcome // Extraction order, then registry order
	Blocked  int                  // (example, tool) pairs skipped after a blocking failure
}

// Pool fans (example, tool) runs out over a bounded number of concurrent
// subprocesses. For each example, phases run in declared order and the tools
// of a phase run concurrently.
type Pool struct {
	runner         ToolRunner
	classifier     Classifier
	maxConcurrency int
	observer       OutcomeObserver
}

// NewPool creates a Pool. maxConcurrency <= 0 means runtime.NumCPU().
func NewPool(runner ToolRunner, classifier Classifier, maxConcurrency int) *Pool {
	if maxConcurrency <= 0 {
		maxConcurrency = runtime.NumCPU()
	}
	return &Pool{
		runner:         runner,
		classifier:     classifier,
		maxConcurrency: maxConcurrency,
	}
}

// SetObserver registers a callback for classified outcomes.
func (p *Pool) SetObserver(observer OutcomeObserver) {
	p.observer = observer
}

// MaxConcurrency returns the subprocess cap.
func (p *Pool) MaxConcurrency() int {
	return p.maxConcurrency
}

// exampleSweep is the per-example working state. Each worker writes only its
// own slot, so no locking is needed.
type exampleSweep struct {
	outcomes []models.ToolOutcome
	ran      []bool
	blocked  int
}

// Run executes every tool in phases against every non-skipped example.
// Tool timeouts and launch failures are outcomes, not errors; the only error
// returned is ctx's, when the sweep is cancelled, alongside whatever
// outcomes completed before that.
func (p *Pool) Run(ctx context.Context, examples []models.Example, phases []registry.Phase) (PoolResult, error) {
	toolCount := 0
	for _, ph := range phases {
		toolCount += len(ph.Tools)
	}

	sweeps := make([]exampleSweep, len(examples))
	for i := range sweeps {
		sweeps[i] = exampleSweep{
			outcomes: make([]models.ToolOutcome, toolCount),
			ran:      make([]bool, toolCount),
		}
	}

	semaphore := make(chan struct{}, p.maxConcurrency)
	var wg sync.WaitGroup
	for i, example := range examples {
		if example.Skipped() || toolCount == 0 {
			continue
		}
		wg.Add(1)
		go func(index int, example models.Example) {
			defer wg.Done()
			p.sweepExample(ctx, index, example, phases, semaphore, &sweeps[index])
		}(i, example)
	}
	wg.Wait()

	var result PoolResult
	for _, sweep := range sweeps {
		for slot, ok := range sweep.ran {
			if ok {
				result.Outcomes = append(result.Outcomes, sweep.outcomes[slot])
			}
		}
		result.Blocked += sweep.blocked
	}
	return result, ctx.Err()
}

func (p *Pool) sweepExample(ctx context.Context, index int, example models.Example, phases []registry.Phase, semaphore chan struct{}, sweep *exampleSweep) {
	slot := 0
	for phaseIdx, phase := range phases {
		if ctx.Err() != nil {
			return
		}

		var wg sync.WaitGroup
		for j, tool := range phase.Tools {
			wg.Add(1)
			go func(slot int, tool models.ToolSpec) {
				defer wg.Done()
				select {
				case semaphore <- struct{}{}:
				case <-ctx.Done():
					return
				}
				defer func() { <-semaphore }()

				raw := p.runner.Run(ctx, example, tool)
				raw.ExampleIndex = index
				raw.ExampleKey = example.Key()
				raw.ToolName = tool.Name
				outcome := raw
				if p.classifier != nil {
					outcome = p.classifier.Classify(example, tool, raw)
				}
				sweep.outcomes[slot] = outcome
				sweep.ran[slot] = true
				if p.observer != nil {
					p.observer(example, outcome)
				}
			}(slot+j, tool)
		}
		wg.Wait()

		phaseStart := slot
		slot += len(phase.Tools)
		if blockedBy(phase.Tools, sweep, phaseStart) {
			for _, later := range phases[phaseIdx+1:] {
				sweep.blocked += len(later.Tools)
			}
			return
		}
	}
}

// blockedBy reports whether a blocking tool of the phase just run failed.
func blockedBy(tools []models.ToolSpec, sweep *exampleSweep, start int) bool {
	for j, tool := range tools {
		if tool.Blocking && sweep.ran[start+j] && sweep.outcomes[start+j].Kind == models.OutcomeFail {
			return true
		}
	}
	return false
}
