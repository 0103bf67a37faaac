package execute

import (
	"strings"
	"sync"
)

// DefaultDiagnosticLines bounds the retained backend output.
const DefaultDiagnosticLines = 40

// diagnostics keeps the last N non-empty lines written by a backend.
type diagnostics struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
}

func newDiagnostics(limit int) *diagnostics {
	if limit <= 0 {
		limit = DefaultDiagnosticLines
	}
	return &diagnostics{lines: make([]string, limit)}
}

func (d *diagnostics) add(line string) {
	line = strings.TrimRight(line, "\r\n\t ")
	if strings.TrimSpace(line) == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lines[d.next] = line
	d.next = (d.next + 1) % len(d.lines)
	if d.next == 0 {
		d.full = true
	}
}

// snapshot returns the retained lines oldest first.
func (d *diagnostics) snapshot() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.full {
		return append([]string(nil), d.lines[:d.next]...)
	}
	out := make([]string, 0, len(d.lines))
	out = append(out, d.lines[d.next:]...)
	return append(out, d.lines[:d.next]...)
}
