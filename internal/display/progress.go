package display

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/fatih/color"
)

// ProgressIndicator reports chapter-by-chapter scanning progress.
type ProgressIndicator struct {
	writer  io.Writer
	total   int
	current int
	step    *color.Color
	done    *color.Color
}

// NewProgressIndicator creates a new progress indicator
func NewProgressIndicator(w io.Writer, total int, colorOutput bool) *ProgressIndicator {
	step, done := color.New(color.FgCyan), color.New(color.FgGreen)
	if colorOutput {
		step.EnableColor()
		done.EnableColor()
	} else {
		step.DisableColor()
		done.DisableColor()
	}
	return &ProgressIndicator{writer: w, total: total, step: step, done: done}
}

// Start displays the header message
func (p *ProgressIndicator) Start() {
	fmt.Fprintf(p.writer, "Scanning chapters:\n")
}

// Step displays progress for the current file: [N/Total] name
func (p *ProgressIndicator) Step(filename string) {
	p.current++
	fmt.Fprintln(p.writer, p.step.Sprintf("  [%d/%d] %s", p.current, p.total, filepath.Base(filename)))
}

// Complete displays the success line with the number of examples found.
func (p *ProgressIndicator) Complete(examples int) {
	fmt.Fprintf(p.writer, "%s Extracted %d examples from %d files\n", p.done.Sprint("✓"), examples, p.total)
}
