package logger

import (
	"bytes"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/harrison/bookcheck/internal/executor"
	"github.com/harrison/bookcheck/internal/models"
)

var linePattern = regexp.MustCompile(`^\[\d{2}:\d{2}:\d{2}\] \[(TRACE|DEBUG|INFO|WARN|ERROR)\] `)

func sampleExample() models.Example {
	return models.Example{SourceFile: "src/ch01.md", StartLine: 10, Ordinal: 2, Code: "println(1)"}
}

func failOutcome() models.ToolOutcome {
	return models.ToolOutcome{
		ExampleKey: "src/ch01.md#2",
		ToolName:   "run",
		ExitCode:   1,
		DurationMs: 12,
		Kind:       models.OutcomeFail,
		Category:   models.CategoryParser,
	}
}

func TestConsoleLoggerLevelFiltering(t *testing.T) {
	tests := []struct {
		level string
		want  []string
	}{
		{level: "trace", want: []string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR"}},
		{level: "info", want: []string{"INFO", "WARN", "ERROR"}},
		{level: "ERROR", want: []string{"ERROR"}},
		{level: "bogus", want: []string{"INFO", "WARN", "ERROR"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			cl := NewConsoleLogger(&buf, tt.level)
			cl.LogTrace("t")
			cl.LogDebug("d")
			cl.LogInfo("i")
			cl.LogWarn("w")
			cl.LogError("e")

			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			if len(lines) != len(tt.want) {
				t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(tt.want), buf.String())
			}
			for i, line := range lines {
				m := linePattern.FindStringSubmatch(line)
				if m == nil {
					t.Fatalf("line %q does not match [HH:MM:SS] [LEVEL] format", line)
				}
				if m[1] != tt.want[i] {
					t.Errorf("line %d level = %s, want %s", i, m[1], tt.want[i])
				}
			}
		})
	}
}

func TestConsoleLoggerNilWriter(t *testing.T) {
	cl := NewConsoleLogger(nil, "trace")
	cl.LogInfo("dropped")
	cl.LogOutcome(sampleExample(), failOutcome())
}

func TestConsoleLoggerRunEvents(t *testing.T) {
	var buf bytes.Buffer
	cl := NewConsoleLogger(&buf, "debug")

	cl.LogStage(executor.StageRunning)
	cl.LogRunStart(5, 4, 3, 8)
	cl.LogOutcome(sampleExample(), failOutcome())

	out := buf.String()
	if strings.Contains(out, "stage:") {
		t.Errorf("stage transitions are trace level, got:\n%s", out)
	}
	if !strings.Contains(out, "Validating 5 examples (1 skipped) with 3 tools, up to 8 in parallel") {
		t.Errorf("missing run start line:\n%s", out)
	}
	if !strings.Contains(out, "[DEBUG] src/ch01.md#2 run: fail (exit 1, 12ms) PARSER_ERROR") {
		t.Errorf("missing outcome line:\n%s", out)
	}
}

func TestConsoleLoggerProgress(t *testing.T) {
	var buf bytes.Buffer
	cl := NewConsoleLogger(&buf, "info")
	cl.LogRunStart(2, 2, 2, 1)

	pass := models.ToolOutcome{ToolName: "run", Kind: models.OutcomePass}
	for i := 0; i < 4; i++ {
		cl.LogOutcome(sampleExample(), pass)
	}

	out := buf.String()
	if strings.Contains(out, "[DEBUG]") {
		t.Errorf("outcomes are debug level, got:\n%s", out)
	}
	if got := strings.Count(out, "Progress: "); got != 4 {
		t.Errorf("got %d progress lines, want one per 25%% step:\n%s", got, out)
	}
	if !strings.Contains(out, "4/4 (100%)") {
		t.Errorf("missing final progress line:\n%s", out)
	}
}

func TestConsoleLoggerRunComplete(t *testing.T) {
	var buf bytes.Buffer
	cl := NewConsoleLogger(&buf, "info")

	rep := models.ValidationReport{
		Totals:   models.Counts{Passed: 40, ExpectedFail: 2, Failed: 1, Baseline: 5},
		PassRate: 97.67,
		Blocked:  2,
	}
	cl.LogRunComplete(rep, 3*time.Second)

	out := buf.String()
	if !strings.Contains(out, "Run complete in 3s: 40 passed, 2 expected failures, 1 failed, 5 baseline (pass rate 97.7%)") {
		t.Errorf("unexpected summary:\n%s", out)
	}
	if !strings.Contains(out, "[WARN] 2 tool runs skipped after blocking failures") {
		t.Errorf("missing blocked warning:\n%s", out)
	}
}

func TestConsoleLoggerColor(t *testing.T) {
	var buf bytes.Buffer
	cl := NewConsoleLogger(&buf, "info")
	cl.SetColor(true)
	cl.LogWarn("careful")

	if !strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("expected ANSI codes, got %q", buf.String())
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{850 * time.Millisecond, "850ms"},
		{5 * time.Second, "5s"},
		{90 * time.Second, "1m30s"},
		{2 * time.Minute, "2m"},
		{2*time.Hour + 15*time.Minute, "2h15m"},
		{time.Hour + time.Minute + time.Second, "1h1m1s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
