package executor

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrGateFailed is returned after a run whose report violated at least one
// threshold. The report has already been rendered and written when it is
// returned; callers only need to map it to a non-zero exit.
var ErrGateFailed = errors.New("quality gate failed")

// Stage is a step of the validation pipeline. A run moves through the stages
// strictly in order: Idle, Extracting, Classifying, Running, Aggregating,
// Gating, Done.
type Stage int

const (
	StageIdle Stage = iota
	StageExtracting
	StageClassifying
	StageRunning
	StageAggregating
	StageGating
	StageDone
)

// String returns the string representation of Stage.
func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageExtracting:
		return "extracting"
	case StageClassifying:
		return "classifying"
	case StageRunning:
		return "running"
	case StageAggregating:
		return "aggregating"
	case StageGating:
		return "gating"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// StageError reports which pipeline stage aborted a run.
type StageError struct {
	Stage     Stage
	Message   string
	Err       error
	Timestamp time.Time
}

// NewStageError creates a StageError with the current timestamp.
func NewStageError(stage Stage, msg string, err error) *StageError {
	return &StageError{
		Stage:     stage,
		Message:   msg,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface for StageError.
func (e *StageError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: %s", e.Stage, e.Message))
	if e.Err != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Err))
	}
	return sb.String()
}

// Unwrap returns the underlying error for error wrapping support.
func (e *StageError) Unwrap() error {
	return e.Err
}

// IsStageError checks if the error is or wraps a StageError.
func IsStageError(err error) bool {
	if err == nil {
		return false
	}
	var se *StageError
	return errors.As(err, &se)
}
