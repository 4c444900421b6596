package executor

import (
	"bytes"
	"strings"
)

// DefaultOutputLimit is the per-stream capture budget in bytes.
const DefaultOutputLimit = 500

// boundedCapture is an io.Writer that keeps the first limit bytes of a stream
// and scans all of it for marker strings, so classification still sees a
// marker printed after the budget is exhausted. Matching is case-insensitive
// and survives markers split across writes.
type boundedCapture struct {
	limit     int
	buf       bytes.Buffer
	truncated bool

	names  []string
	needle [][]byte
	found  []bool
	tail   []byte
	keep   int
}

func newBoundedCapture(limit int, markers []string) *boundedCapture {
	if limit <= 0 {
		limit = DefaultOutputLimit
	}
	c := &boundedCapture{limit: limit}
	for _, m := range markers {
		if m == "" {
			continue
		}
		lower := bytes.ToLower([]byte(m))
		c.names = append(c.names, m)
		c.needle = append(c.needle, lower)
		if len(lower)-1 > c.keep {
			c.keep = len(lower) - 1
		}
	}
	c.found = make([]bool, len(c.names))
	return c
}

// Write implements io.Writer. It never fails, so the child process is never
// blocked on a full pipe.
func (c *boundedCapture) Write(p []byte) (int, error) {
	if room := c.limit - c.buf.Len(); room > 0 {
		n := len(p)
		if n > room {
			n = room
			c.truncated = true
		}
		c.buf.Write(p[:n])
	} else if len(p) > 0 {
		c.truncated = true
	}
	c.scan(p)
	return len(p), nil
}

func (c *boundedCapture) scan(p []byte) {
	if len(c.needle) == 0 || len(p) == 0 {
		return
	}
	window := make([]byte, 0, len(c.tail)+len(p))
	window = append(window, c.tail...)
	window = append(window, bytes.ToLower(p)...)
	for i, n := range c.needle {
		if !c.found[i] && bytes.Contains(window, n) {
			c.found[i] = true
		}
	}
	keep := c.keep
	if keep > len(window) {
		keep = len(window)
	}
	c.tail = append(c.tail[:0], window[len(window)-keep:]...)
}

// String returns the captured prefix, with any rune cut at the budget boundary dropped.
func (c *boundedCapture) String() string {
	return strings.ToValidUTF8(c.buf.String(), "")
}

// Truncated reports whether output beyond the budget was discarded.
func (c *boundedCapture) Truncated() bool {
	return c.truncated
}

// Markers returns the configured markers seen in the stream, in configured order.
func (c *boundedCapture) Markers() []string {
	var seen []string
	for i, ok := range c.found {
		if ok {
			seen = append(seen, c.names[i])
		}
	}
	return seen
}

// mergeMarkers unions marker lists preserving first-seen order.
func mergeMarkers(lists ...[]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, m := range list {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}
