package logger

import (
	"strings"
	"sync"
	"testing"
)

func TestProgressBarRender(t *testing.T) {
	tests := []struct {
		name     string
		current  int
		total    int
		width    int
		expected string
	}{
		{name: "empty progress", current: 0, total: 10, width: 10, expected: "[          ] 0/10 (0%)"},
		{name: "half progress", current: 5, total: 10, width: 10, expected: "[=====     ] 5/10 (50%)"},
		{name: "full progress", current: 10, total: 10, width: 10, expected: "[==========] 10/10 (100%)"},
		{name: "large width", current: 30, total: 100, width: 20, expected: "[======              ] 30/100 (30%)"},
		{name: "overshoot clamps", current: 12, total: 10, width: 4, expected: "[====] 12/10 (100%)"},
		{name: "zero total", current: 0, total: 0, width: 4, expected: "[    ] 0/0 (0%)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pb := NewProgressBar(tt.total, tt.width, false)
			pb.Update(tt.current)
			if got := pb.Render(); got != tt.expected {
				t.Errorf("Render() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestProgressBarPrefixAndColor(t *testing.T) {
	pb := NewProgressBar(4, 4, true)
	pb.SetPrefix("run ")
	pb.Increment()

	got := pb.Render()
	if !strings.Contains(got, "run [=   ] 1/4 (25%)") {
		t.Errorf("Render() = %q, want prefixed bar", got)
	}
	if !strings.Contains(got, "\x1b[") {
		t.Errorf("Render() = %q, want ANSI color codes", got)
	}
}

func TestProgressBarConcurrentIncrement(t *testing.T) {
	pb := NewProgressBar(100, 10, false)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pb.Increment()
		}()
	}
	wg.Wait()

	if pb.Done() != 100 || pb.Percentage() != 100 {
		t.Errorf("Done() = %d, Percentage() = %d, want 100/100", pb.Done(), pb.Percentage())
	}
}
