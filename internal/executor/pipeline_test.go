package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/bookcheck/internal/disposition"
	"github.com/harrison/bookcheck/internal/gate"
	"github.com/harrison/bookcheck/internal/models"
	"github.com/harrison/bookcheck/internal/registry"
)

type recordingLogger struct {
	mu       sync.Mutex
	stages   []Stage
	outcomes int
	warnings []string
	started  bool
	done     bool
}

func (l *recordingLogger) LogStage(stage Stage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stages = append(l.stages, stage)
}

func (l *recordingLogger) LogRunStart(examples, runnable, tools, maxConcurrency int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = true
}

func (l *recordingLogger) LogOutcome(models.Example, models.ToolOutcome) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outcomes++
}

func (l *recordingLogger) LogRunComplete(models.ValidationReport, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.done = true
}

func (l *recordingLogger) LogWarn(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, message)
}

func staticExtract(examples ...models.Example) ExtractFunc {
	return func() ([]models.Example, error) { return examples, nil }
}

func singleToolRegistry(t *testing.T, command ...string) *registry.Registry {
	t.Helper()
	reg, err := registry.New(registry.Phase{Name: "core", Tools: []models.ToolSpec{
		{Name: "run", Command: command, Timeout: 5 * time.Second, ChecksSyntax: true},
	}})
	require.NoError(t, err)
	return reg
}

func TestPipeline_SingleExamplePasses(t *testing.T) {
	bin := writeTool(t, "ruchy", `echo 4`)
	classifier := disposition.New(disposition.DefaultMarkers())
	runner := NewProcessRunner(t.TempDir(), WithMarkers(classifier))
	logger := &recordingLogger{}
	p := NewPipeline(NewPool(runner, classifier, 2), singleToolRegistry(t, bin), logger)
	assert.Equal(t, StageIdle, p.Stage())

	ex := models.Example{SourceFile: "ch01.md", StartLine: 4, Ordinal: 1, Code: "println(2+2)", DeclaredStatus: models.DispositionUnannotated}
	res, err := p.Run(context.Background(), RunConfig{Mode: "run", Thresholds: gate.Thresholds{MinPassRate: 100}}, staticExtract(ex))
	require.NoError(t, err)

	assert.Equal(t, StageDone, p.Stage())
	assert.Equal(t, 1, res.Report.Totals.Passed)
	assert.Equal(t, 0, res.Report.Totals.Failed)
	assert.True(t, res.Verdict.Passed)
	assert.Equal(t, gate.ExitPassed, res.Verdict.ExitCode)
	assert.True(t, res.Report.GatePassed)
	assert.NotEmpty(t, res.Report.RunID)
	assert.False(t, res.Report.GeneratedAt.IsZero())

	assert.Equal(t, []Stage{StageExtracting, StageClassifying, StageRunning, StageAggregating, StageGating, StageDone}, logger.stages)
	assert.True(t, logger.started)
	assert.True(t, logger.done)
	assert.Equal(t, 1, logger.outcomes)
}

func TestPipeline_TimeoutDoesNotStopSiblings(t *testing.T) {
	dir := t.TempDir()
	slow := filepath.Join(dir, "slow")
	fast := filepath.Join(dir, "fast")
	require.NoError(t, os.WriteFile(slow, []byte("#!/bin/sh\nexec sleep 10\n"), 0o755))
	require.NoError(t, os.WriteFile(fast, []byte("#!/bin/sh\nexit 0\n"), 0o755))
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("needs /bin/sh")
	}

	reg, err := registry.New(registry.Phase{Name: "core", Tools: []models.ToolSpec{
		{Name: "slow", Command: []string{slow}, Timeout: 300 * time.Millisecond},
		{Name: "fast", Command: []string{fast}, Timeout: 5 * time.Second},
	}})
	require.NoError(t, err)
	classifier := disposition.New(disposition.DefaultMarkers())
	runner := NewProcessRunner(t.TempDir(), WithKillGrace(200*time.Millisecond))
	p := NewPipeline(NewPool(runner, classifier, 4), reg, nil)

	examples := []models.Example{
		{SourceFile: "ch01.md", Ordinal: 1, Code: "a"},
		{SourceFile: "ch01.md", Ordinal: 2, Code: "b"},
	}
	start := time.Now()
	res, err := p.Run(context.Background(), RunConfig{Thresholds: gate.Thresholds{MinPassRate: 90}}, staticExtract(examples...))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 8*time.Second)

	require.Len(t, res.Report.Tools, 2)
	assert.Equal(t, 2, res.Report.Tools[0].Counts.Failed, "timeouts fail on working examples")
	assert.Equal(t, 2, res.Report.Tools[1].Counts.Passed)
	for _, o := range res.Report.Examples[0].Outcomes {
		if o.ToolName == "slow" {
			assert.Equal(t, models.ExitTimedOut, o.ExitCode)
			assert.Equal(t, models.CategoryTimeout, o.Category)
		}
	}
	assert.False(t, res.Verdict.Passed)
	assert.Equal(t, gate.ExitFailed, res.Verdict.ExitCode)
}

func TestPipeline_MissingBinaryIsAnOutcome(t *testing.T) {
	classifier := disposition.New(disposition.DefaultMarkers())
	p := NewPipeline(NewPool(NewProcessRunner(t.TempDir()), classifier, 2),
		singleToolRegistry(t, filepath.Join(t.TempDir(), "ruchy")), nil)

	ex := models.Example{SourceFile: "ch01.md", Ordinal: 1, Code: "x"}
	res, err := p.Run(context.Background(), RunConfig{}, staticExtract(ex))
	require.NoError(t, err)

	require.Len(t, res.Report.Examples, 1)
	require.Len(t, res.Report.Examples[0].Outcomes, 1)
	o := res.Report.Examples[0].Outcomes[0]
	assert.Equal(t, models.ExitLaunchFailed, o.ExitCode)
	assert.Equal(t, models.OutcomeFail, o.Kind)
	assert.Equal(t, models.CategoryLaunch, o.Category)
	assert.True(t, res.Verdict.Passed, "no thresholds configured, so only the gate decides")
}

func TestPipeline_ExtractionErrorAborts(t *testing.T) {
	runner := &fakeRunner{}
	logger := &recordingLogger{}
	p := NewPipeline(NewPool(runner, nil, 2), singleToolRegistry(t, "ruchy"), logger)

	cause := errors.New("ch01.md:3: unterminated code fence")
	res, err := p.Run(context.Background(), RunConfig{}, func() ([]models.Example, error) { return nil, cause })

	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsStageError(err))
	assert.Zero(t, runner.callCount(), "no tool runs after a format error")
	assert.Equal(t, StageIdle, p.Stage())
}

func TestPipeline_NoRunnableExamplesWarns(t *testing.T) {
	logger := &recordingLogger{}
	p := NewPipeline(NewPool(&fakeRunner{}, nil, 2), singleToolRegistry(t, "ruchy"), logger)

	ex := models.Example{SourceFile: "ch01.md", Ordinal: 1, Code: "x", SkipReason: "manual"}
	res, err := p.Run(context.Background(), RunConfig{Thresholds: gate.Thresholds{MinPassRate: 50}}, staticExtract(ex))
	require.NoError(t, err)

	assert.Equal(t, []string{"no runnable examples found"}, logger.warnings)
	assert.Equal(t, 1, res.Report.Skipped)
	assert.False(t, res.Verdict.Passed, "an empty run cannot satisfy a pass-rate gate")
}

func TestPipeline_CarriesLabelsAndPrevious(t *testing.T) {
	runner := &fakeRunner{exitCodes: map[string]int{"run": 1}}
	classifier := disposition.New(disposition.DefaultMarkers())
	p := NewPipeline(NewPool(runner, classifier, 2), singleToolRegistry(t, "ruchy"), nil)

	ex := models.Example{SourceFile: "ch01.md", Ordinal: 1, Code: "x"}
	previous := []models.ToolOutcome{{ExampleKey: ex.Key(), ToolName: "run", Kind: models.OutcomePass}}
	res, err := p.Run(context.Background(), RunConfig{
		Mode:             "run",
		Selection:        "ch01",
		RunID:            "fixed-id",
		ToolchainVersion: "ruchy 3.1.0",
		BookRevision:     "abc123",
		Previous:         previous,
	}, staticExtract(ex))
	require.NoError(t, err)

	assert.Equal(t, "fixed-id", res.Report.RunID)
	assert.Equal(t, "ch01", res.Report.Selection)
	assert.Equal(t, "ruchy 3.1.0", res.Report.ToolchainVersion)
	assert.Equal(t, "abc123", res.Report.BookRevision)
	require.Len(t, res.Report.Changes, 1)
	assert.Equal(t, models.ChangeRegression, res.Report.Changes[0].Kind)
	assert.Len(t, res.Examples, 1)
}

func TestPipeline_Cancelled(t *testing.T) {
	runner := &fakeRunner{delay: func(models.Example, models.ToolSpec) time.Duration { return time.Second }}
	p := NewPipeline(NewPool(runner, nil, 1), singleToolRegistry(t, "ruchy"), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Run(ctx, RunConfig{}, staticExtract(models.Example{SourceFile: "a.md", Ordinal: 1, Code: "x"}))
	assert.ErrorIs(t, err, context.Canceled)
}
