package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/harrison/bookcheck/internal/executor"
	"github.com/harrison/bookcheck/internal/models"
)

// latestLink is the symlink kept pointing at the newest run log.
const latestLink = "latest.log"

// RunLogger writes one JSON line per pipeline event to a per-run log file.
// Every outcome is recorded regardless of the console verbosity, so the
// file is the place to look when a CI run needs to be reconstructed.
type RunLogger struct {
	log  *zap.Logger
	file *os.File
	path string
}

// NewRunLogger creates logDir if needed, opens run-YYYYMMDD-HHMMSS-<id>.log in
// it and points latest.log at the new file. The id is the first eight
// characters of runID, so runs started in the same second get separate files.
func NewRunLogger(logDir string, runID string) (*RunLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	name := "run-" + time.Now().Format("20060102-150405")
	if id := sanitizeRunID(runID); id != "" {
		name += "-" + id
	}
	runFile := filepath.Join(logDir, name+".log")
	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, latestLink)
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(file), zapcore.DebugLevel)

	rl := NewRunLoggerWithCore(core, runID)
	rl.file = file
	rl.path = runFile
	return rl, nil
}

// sanitizeRunID keeps the first eight file-name-safe characters of runID.
func sanitizeRunID(runID string) string {
	id := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return -1
	}, runID)
	if len(id) > 8 {
		id = id[:8]
	}
	return id
}

// NewRunLoggerWithCore builds a RunLogger on an existing zap core.
// Path is empty and Close only flushes the core.
func NewRunLoggerWithCore(core zapcore.Core, runID string) *RunLogger {
	log := zap.New(core)
	if runID != "" {
		log = log.With(zap.String("run_id", runID))
	}
	return &RunLogger{log: log}
}

// Path returns the run log file, or "" for a core-backed logger.
func (rl *RunLogger) Path() string {
	return rl.path
}

// Close flushes buffered entries and closes the log file.
func (rl *RunLogger) Close() error {
	_ = rl.log.Sync()
	if rl.file == nil {
		return nil
	}
	return rl.file.Close()
}

func (rl *RunLogger) LogStage(stage executor.Stage) {
	rl.log.Debug("stage", zap.Stringer("stage", stage))
}

func (rl *RunLogger) LogRunStart(examples, runnable, tools, maxConcurrency int) {
	rl.log.Info("run started",
		zap.Int("examples", examples),
		zap.Int("runnable", runnable),
		zap.Int("tools", tools),
		zap.Int("max_concurrency", maxConcurrency),
	)
}

// LogOutcome records one classified tool run. Failures are logged at warn
// level together with their root cause.
func (rl *RunLogger) LogOutcome(example models.Example, outcome models.ToolOutcome) {
	fields := []zap.Field{
		zap.String("example", example.Key()),
		zap.String("tool", outcome.ToolName),
		zap.Int("exit_code", outcome.ExitCode),
		zap.Int64("duration_ms", outcome.DurationMs),
		zap.String("outcome", string(outcome.Kind)),
	}
	if outcome.Category != models.CategoryNone {
		fields = append(fields, zap.String("category", string(outcome.Category)))
	}
	if outcome.Kind != models.OutcomeFail {
		rl.log.Debug("outcome", fields...)
		return
	}
	if outcome.RootCause != "" {
		fields = append(fields, zap.String("root_cause", outcome.RootCause))
	}
	if outcome.LaunchError != "" {
		fields = append(fields, zap.String("launch_error", outcome.LaunchError))
	}
	rl.log.Warn("outcome", fields...)
}

func (rl *RunLogger) LogRunComplete(report models.ValidationReport, duration time.Duration) {
	rl.log.Info("run complete",
		zap.String("mode", report.Mode),
		zap.Int("passed", report.Totals.Passed),
		zap.Int("expected_fail", report.Totals.ExpectedFail),
		zap.Int("failed", report.Totals.Failed),
		zap.Int("baseline", report.Totals.Baseline),
		zap.Int("blocked", report.Blocked),
		zap.Float64("pass_rate", report.PassRate),
		zap.Bool("gate_passed", report.GatePassed),
		zap.Duration("duration", duration),
	)
}

func (rl *RunLogger) LogWarn(message string) {
	rl.log.Warn(message)
}
