package logger

import (
	"time"

	"github.com/harrison/bookcheck/internal/executor"
	"github.com/harrison/bookcheck/internal/models"
)

// MultiLogger forwards every event to each of its loggers in order.
type MultiLogger struct {
	loggers []executor.Logger
}

// NewMultiLogger drops nil entries.
func NewMultiLogger(loggers ...executor.Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		if l != nil {
			m.loggers = append(m.loggers, l)
		}
	}
	return m
}

func (m *MultiLogger) LogStage(stage executor.Stage) {
	for _, l := range m.loggers {
		l.LogStage(stage)
	}
}

func (m *MultiLogger) LogRunStart(examples, runnable, tools, maxConcurrency int) {
	for _, l := range m.loggers {
		l.LogRunStart(examples, runnable, tools, maxConcurrency)
	}
}

func (m *MultiLogger) LogOutcome(example models.Example, outcome models.ToolOutcome) {
	for _, l := range m.loggers {
		l.LogOutcome(example, outcome)
	}
}

func (m *MultiLogger) LogRunComplete(report models.ValidationReport, duration time.Duration) {
	for _, l := range m.loggers {
		l.LogRunComplete(report, duration)
	}
}

func (m *MultiLogger) LogWarn(message string) {
	for _, l := range m.loggers {
		l.LogWarn(message)
	}
}
