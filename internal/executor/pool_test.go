package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/bookcheck/internal/disposition"
	"github.com/harrison/bookcheck/internal/models"
	"github.com/harrison/bookcheck/internal/registry"
)

// fakeRunner returns scripted exit codes and tracks concurrency.
type fakeRunner struct {
	exitCodes map[string]int // by tool name; default 0
	delay     func(example models.Example, tool models.ToolSpec) time.Duration

	mu      sync.Mutex
	calls   []string
	running int32
	peak    int32
}

func (f *fakeRunner) Run(ctx context.Context, example models.Example, tool models.ToolSpec) models.ToolOutcome {
	n := atomic.AddInt32(&f.running, 1)
	defer atomic.AddInt32(&f.running, -1)
	for {
		peak := atomic.LoadInt32(&f.peak)
		if n <= peak || atomic.CompareAndSwapInt32(&f.peak, peak, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, example.Key()+"/"+tool.Name)
	f.mu.Unlock()

	if f.delay != nil {
		select {
		case <-time.After(f.delay(example, tool)):
		case <-ctx.Done():
		}
	}
	return models.ToolOutcome{ExitCode: f.exitCodes[tool.Name], DurationMs: 1}
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func poolPhases(blocking bool) []registry.Phase {
	tool := func(name string) models.ToolSpec {
		return models.ToolSpec{Name: name, Command: []string{name}, Timeout: time.Second}
	}
	compile := tool("compile")
	compile.Blocking = blocking
	return registry.MustNew(
		registry.Phase{Name: "core", Tools: []models.ToolSpec{tool("run"), compile}},
		registry.Phase{Name: "quality", Tools: []models.ToolSpec{tool("lint"), tool("fmt")}},
	).Phases()
}

func poolExamples(n int) []models.Example {
	examples := make([]models.Example, n)
	for i := range examples {
		examples[i] = models.Example{SourceFile: "ch01.md", Ordinal: i + 1, Code: fmt.Sprintf("x%d", i)}
	}
	return examples
}

func TestPool_DeterministicOrder(t *testing.T) {
	// Later examples and tools finish first.
	runner := &fakeRunner{delay: func(ex models.Example, tool models.ToolSpec) time.Duration {
		return time.Duration(10-ex.Ordinal) * 3 * time.Millisecond
	}}
	pool := NewPool(runner, disposition.New(disposition.DefaultMarkers()), 8)

	result, err := pool.Run(context.Background(), poolExamples(5), poolPhases(false))
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 20)

	var got []string
	for _, o := range result.Outcomes[:4] {
		got = append(got, o.ExampleKey+"/"+o.ToolName)
	}
	assert.Equal(t, []string{"ch01.md#1/run", "ch01.md#1/compile", "ch01.md#1/lint", "ch01.md#1/fmt"}, got)
	for i, o := range result.Outcomes {
		assert.Equal(t, i/4, o.ExampleIndex)
		assert.Equal(t, models.OutcomePass, o.Kind, "outcomes are classified")
	}
}

func TestPool_ConcurrencyCap(t *testing.T) {
	runner := &fakeRunner{delay: func(models.Example, models.ToolSpec) time.Duration { return 20 * time.Millisecond }}
	pool := NewPool(runner, nil, 3)
	assert.Equal(t, 3, pool.MaxConcurrency())

	result, err := pool.Run(context.Background(), poolExamples(6), poolPhases(false))
	require.NoError(t, err)
	assert.Len(t, result.Outcomes, 24)
	assert.LessOrEqual(t, atomic.LoadInt32(&runner.peak), int32(3))
	assert.Greater(t, atomic.LoadInt32(&runner.peak), int32(1), "work should fan out")
}

func TestPool_DefaultConcurrency(t *testing.T) {
	pool := NewPool(&fakeRunner{}, nil, 0)
	assert.Greater(t, pool.MaxConcurrency(), 0)
}

func TestPool_BlockingFailureSkipsLaterPhases(t *testing.T) {
	runner := &fakeRunner{exitCodes: map[string]int{"compile": 1}}
	pool := NewPool(runner, disposition.New(disposition.DefaultMarkers()), 4)

	result, err := pool.Run(context.Background(), poolExamples(2), poolPhases(true))
	require.NoError(t, err)

	assert.Len(t, result.Outcomes, 4, "only the core phase ran")
	assert.Equal(t, 4, result.Blocked)
	for _, o := range result.Outcomes {
		assert.Contains(t, []string{"run", "compile"}, o.ToolName)
	}
}

func TestPool_NonBlockingFailureContinues(t *testing.T) {
	runner := &fakeRunner{exitCodes: map[string]int{"compile": 1}}
	pool := NewPool(runner, disposition.New(disposition.DefaultMarkers()), 4)

	result, err := pool.Run(context.Background(), poolExamples(2), poolPhases(false))
	require.NoError(t, err)
	assert.Len(t, result.Outcomes, 8)
	assert.Zero(t, result.Blocked)
}

func TestPool_SkippedExamplesNotRun(t *testing.T) {
	examples := poolExamples(3)
	examples[1].SkipReason = "marked as skip-test"
	runner := &fakeRunner{}
	pool := NewPool(runner, nil, 2)

	result, err := pool.Run(context.Background(), examples, poolPhases(false))
	require.NoError(t, err)
	assert.Len(t, result.Outcomes, 8)
	assert.Equal(t, 8, runner.callCount())
	for _, o := range result.Outcomes {
		assert.NotEqual(t, 1, o.ExampleIndex)
	}
}

func TestPool_Observer(t *testing.T) {
	pool := NewPool(&fakeRunner{}, nil, 4)
	var seen int32
	pool.SetObserver(func(models.Example, models.ToolOutcome) { atomic.AddInt32(&seen, 1) })

	_, err := pool.Run(context.Background(), poolExamples(3), poolPhases(false))
	require.NoError(t, err)
	assert.Equal(t, int32(12), atomic.LoadInt32(&seen))
}

func TestPool_Cancelled(t *testing.T) {
	runner := &fakeRunner{delay: func(models.Example, models.ToolSpec) time.Duration { return time.Second }}
	pool := NewPool(runner, nil, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := pool.Run(ctx, poolExamples(10), poolPhases(false))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}
