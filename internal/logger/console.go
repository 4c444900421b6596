// Package logger provides logging implementations for bookcheck runs.
//
// ConsoleLogger prints human-oriented progress with [HH:MM:SS] timestamps;
// RunLogger writes a structured JSON log per run. Both implement
// executor.Logger and are safe for concurrent use, since outcomes arrive
// from many worker goroutines at once.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/harrison/bookcheck/internal/executor"
	"github.com/harrison/bookcheck/internal/models"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// progressStep is how many percentage points pass between progress lines.
const progressStep = 10

// ConsoleLogger logs run progress to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps.
// It supports log level filtering to control message verbosity.
// Color output is enabled automatically when writing to a terminal.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool

	progress     *ProgressBar
	lastReported int
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// Valid levels: trace, debug, info, warn, error (case-insensitive).
// If logLevel is empty or invalid, defaults to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// SetColor forces color output on or off.
func (cl *ConsoleLogger) SetColor(enabled bool) {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	cl.colorOutput = enabled
}

// isTerminal reports whether w is a terminal that should receive colors.
// NO_COLOR (via fatih/color) always wins.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	if color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	switch normalized {
	case "trace", "debug", "info", "warn", "error":
		return normalized
	default:
		return "info"
	}
}

// shouldLog checks if a message at the given level should be logged.
func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

// LogTrace logs a trace-level message (most verbose).
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) {
	cl.logWithLevel("ERROR", message)
}

func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil {
		return
	}
	if !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	cl.writeLocked(level, message)
}

// writeLocked formats and writes one line. The caller holds the mutex.
func (cl *ConsoleLogger) writeLocked(level, message string) {
	ts := timestamp()
	if cl.colorOutput {
		fmt.Fprintf(cl.writer, "[%s] [%s] %s\n", ts, colorLevel(level), message)
		return
	}
	fmt.Fprintf(cl.writer, "[%s] [%s] %s\n", ts, level, message)
}

func colorLevel(level string) string {
	switch level {
	case "TRACE":
		return paint(color.FgHiBlack, level)
	case "DEBUG":
		return paint(color.FgCyan, level)
	case "INFO":
		return paint(color.FgBlue, level)
	case "WARN":
		return paint(color.FgYellow, level)
	case "ERROR":
		return paint(color.FgRed, level)
	default:
		return level
	}
}

// paint colors s unconditionally; the caller has already decided color is wanted.
func paint(attr color.Attribute, s string) string {
	c := color.New(attr)
	c.EnableColor()
	return c.Sprint(s)
}

// LogStage logs pipeline stage transitions at TRACE level.
func (cl *ConsoleLogger) LogStage(stage executor.Stage) {
	cl.LogTrace(fmt.Sprintf("stage: %s", stage))
}

// LogRunStart announces the sweep and resets the progress bar.
// Format: "[HH:MM:SS] [INFO] Validating 12 examples (1 skipped) with 3 tools, up to 8 in parallel"
func (cl *ConsoleLogger) LogRunStart(examples, runnable, tools, maxConcurrency int) {
	cl.mutex.Lock()
	cl.progress = NewProgressBar(runnable*tools, 20, cl.colorOutput)
	cl.lastReported = 0
	cl.mutex.Unlock()

	cl.LogInfo(fmt.Sprintf("Validating %d examples (%d skipped) with %d tools, up to %d in parallel",
		examples, examples-runnable, tools, maxConcurrency))
}

// LogOutcome logs each classified outcome at DEBUG level and a progress line
// at INFO level every progressStep percent.
func (cl *ConsoleLogger) LogOutcome(example models.Example, outcome models.ToolOutcome) {
	if cl.writer == nil {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	if cl.shouldLog("debug") {
		cl.writeLocked("DEBUG", formatOutcome(example, outcome, cl.colorOutput))
	}

	if cl.progress == nil || !cl.shouldLog("info") {
		return
	}
	perc := cl.progress.Increment()
	if perc >= cl.lastReported+progressStep || (perc == 100 && cl.lastReported < 100) {
		cl.lastReported = perc - perc%progressStep
		if perc == 100 {
			cl.lastReported = 100
		}
		cl.writeLocked("INFO", "Progress: "+cl.progress.Render())
	}
}

// formatOutcome renders "src/ch01.md#3 run: fail (exit 1, 12ms) PARSER_ERROR".
func formatOutcome(example models.Example, o models.ToolOutcome, colorOutput bool) string {
	kind := string(o.Kind)
	if colorOutput {
		switch o.Kind {
		case models.OutcomePass, models.OutcomeExpectedFail:
			kind = paint(color.FgGreen, kind)
		case models.OutcomeFail:
			kind = paint(color.FgRed, kind)
		case models.OutcomeBaseline:
			kind = paint(color.FgYellow, kind)
		}
	}
	msg := fmt.Sprintf("%s %s: %s (exit %s, %dms)", example.Key(), o.ToolName, kind, o.ExitLabel(), o.DurationMs)
	if o.Category != models.CategoryNone {
		msg += " " + string(o.Category)
	}
	return msg
}

// LogRunComplete logs the outcome totals at INFO level.
// Format: "[HH:MM:SS] [INFO] Run complete in 3s: 40 passed, 2 expected failures, 1 failed, 5 baseline (pass rate 97.6%)"
func (cl *ConsoleLogger) LogRunComplete(report models.ValidationReport, duration time.Duration) {
	t := report.Totals
	cl.LogInfo(fmt.Sprintf("Run complete in %s: %d passed, %d expected failures, %d failed, %d baseline (pass rate %.1f%%)",
		formatDuration(duration), t.Passed, t.ExpectedFail, t.Failed, t.Baseline, report.PassRate))
	if report.Blocked > 0 {
		cl.LogWarn(fmt.Sprintf("%d tool runs skipped after blocking failures", report.Blocked))
	}
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}

// formatDuration converts a time.Duration to a human-readable string.
// Examples: "850ms", "5s", "1m30s", "2h15m"
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		hours := d / time.Hour
		remainder := d % time.Hour
		if remainder == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		minutes := remainder / time.Minute
		remainder = remainder % time.Minute
		if remainder == 0 {
			return fmt.Sprintf("%dh%dm", hours, minutes)
		}
		seconds := remainder / time.Second
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	case d >= time.Minute:
		minutes := d / time.Minute
		remainder := d % time.Minute
		if remainder == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		seconds := remainder / time.Second
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%ds", int64(d.Seconds()))
	}
}

// NoOpLogger discards all events. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) LogStage(executor.Stage) {}
func (n *NoOpLogger) LogRunStart(int, int, int, int) {}
func (n *NoOpLogger) LogOutcome(models.Example, models.ToolOutcome) {}
func (n *NoOpLogger) LogRunComplete(models.ValidationReport, time.Duration) {}
func (n *NoOpLogger) LogWarn(string) {}
