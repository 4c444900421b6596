package logger

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// ProgressBar counts completed tool runs against the planned total.
// It is printed as a log line, never redrawn in place.
type ProgressBar struct {
	mu      sync.Mutex
	done    int
	total   int
	width   int
	colored bool
	prefix  string
}

// NewProgressBar creates a bar of width cells. Widths below 1 become 10.
func NewProgressBar(total, width int, colored bool) *ProgressBar {
	if width < 1 {
		width = 10
	}
	return &ProgressBar{total: total, width: width, colored: colored}
}

// Update sets the number of completed runs.
func (pb *ProgressBar) Update(done int) {
	pb.mu.Lock()
	pb.done = done
	pb.mu.Unlock()
}

// Increment records one more completed run and returns the new percentage.
func (pb *ProgressBar) Increment() int {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.done++
	return pb.percent()
}

// Done returns the number of completed runs.
func (pb *ProgressBar) Done() int {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return pb.done
}

// Percentage returns completion clamped to 0-100. A zero total is 0%.
func (pb *ProgressBar) Percentage() int {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return pb.percent()
}

func (pb *ProgressBar) percent() int {
	if pb.total <= 0 {
		return 0
	}
	return min(max(pb.done*100/pb.total, 0), 100)
}

// SetPrefix sets text printed before the bar.
func (pb *ProgressBar) SetPrefix(prefix string) {
	pb.mu.Lock()
	pb.prefix = prefix
	pb.mu.Unlock()
}

// Render returns e.g. "[=====     ] 12/24 (50%)"; cyan while running and
// green when complete if color is on.
func (pb *ProgressBar) Render() string {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	perc := pb.percent()
	filled := perc * pb.width / 100
	line := fmt.Sprintf("%s[%s%s] %d/%d (%d%%)", pb.prefix,
		strings.Repeat("=", filled), strings.Repeat(" ", pb.width-filled),
		pb.done, pb.total, perc)
	if !pb.colored {
		return line
	}

	attr := color.FgCyan
	if perc == 100 {
		attr = color.FgGreen
	}
	return paint(attr, line)
}
