// Package progress turns a backend's key=value progress stream into
// normalized, monotonic progress events.
//
// ffmpeg's -progress output arrives in blocks terminated by a
// progress=continue or progress=end line. One event is produced per block.
// Backends without a progress stream are reported through Tick, which only
// carries elapsed time.
package progress

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Event is one progress observation. When Determinate is false only Elapsed
// is meaningful and renderers should show a spinner.
type Event struct {
	Determinate bool          `json:"determinate"`
	Fraction    float64       `json:"fraction,omitempty"`
	ETA         time.Duration `json:"eta,omitempty"`
	HasETA      bool          `json:"has_eta,omitempty"`
	Elapsed     time.Duration `json:"elapsed"`
	Done        bool          `json:"done,omitempty"`
}

// Percent returns the fraction scaled to 0-100.
func (e Event) Percent() float64 {
	return e.Fraction * 100
}

// Option configures a Parser.
type Option func(*Parser)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		if now != nil {
			p.now = now
		}
	}
}

// Parser tracks one run. It is not safe for concurrent use.
type Parser struct {
	total     time.Duration
	now       func() time.Time
	start     time.Time
	processed time.Duration
	last      float64
	seen      bool
}

// NewParser starts a run whose source lasts total. A non-positive total
// yields indeterminate events.
func NewParser(total time.Duration, opts ...Option) *Parser {
	p := &Parser{total: total, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	p.start = p.now()
	return p
}

// Line consumes one line of backend output. It reports an event at every
// block boundary. Malformed lines are ignored.
func (p *Parser) Line(line string) (Event, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return Event{}, false
	}
	value = strings.TrimSpace(value)
	switch key {
	case "out_time_us", "out_time_ms":
		// ffmpeg reports both in microseconds.
		if us, err := strconv.ParseInt(value, 10, 64); err == nil && us >= 0 {
			p.observe(time.Duration(us) * time.Microsecond)
		}
	case "out_time":
		if d, ok := parseClock(value); ok {
			p.observe(d)
		}
	case "progress":
		done := value == "end"
		if !done && value != "continue" {
			return Event{}, false
		}
		return p.event(done), true
	}
	return Event{}, false
}

// Tick returns an event for the current instant without new input.
func (p *Parser) Tick() Event {
	return p.event(false)
}

// Stream reads r until EOF, calling emit for every event. It stops early
// when ctx is done. Read errors end the stream silently: progress is
// advisory and never fails a run.
func (p *Parser) Stream(ctx context.Context, r io.Reader, emit func(Event)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if ev, ok := p.Line(scanner.Text()); ok && emit != nil {
			emit(ev)
		}
	}
}

func (p *Parser) observe(d time.Duration) {
	p.processed = d
	p.seen = true
}

func (p *Parser) event(done bool) Event {
	ev := Event{Elapsed: p.now().Sub(p.start), Done: done}
	if ev.Elapsed < 0 {
		ev.Elapsed = 0
	}
	if p.total <= 0 {
		return ev
	}
	fraction := p.last
	if p.seen {
		fraction = float64(p.processed) / float64(p.total)
	}
	if done {
		fraction = 1
	}
	if fraction > 1 {
		fraction = 1
	}
	if fraction < p.last {
		fraction = p.last
	}
	p.last = fraction

	ev.Determinate = true
	ev.Fraction = fraction
	if fraction > 0 {
		ev.HasETA = true
		ev.ETA = time.Duration(float64(ev.Elapsed) * (1 - fraction) / fraction)
	}
	return ev
}

// parseClock parses HH:MM:SS.ffffff.
func parseClock(value string) (time.Duration, bool) {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return 0, false
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 {
		return 0, false
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || seconds < 0 || seconds >= 60 {
		return 0, false
	}
	total := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
	return total + time.Duration(seconds*float64(time.Second)), true
}

// Sink is a buffered event channel that never blocks the producer. When the
// buffer is full the oldest pending event is discarded.
type Sink struct {
	mu sync.Mutex
	ch chan Event
}

// NewSink wraps ch. A nil ch yields a sink that discards everything.
func NewSink(ch chan Event) *Sink {
	return &Sink{ch: ch}
}

// Publish delivers ev without blocking.
func (s *Sink) Publish(ev Event) {
	if s == nil || s.ch == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case s.ch <- ev:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- ev:
	default:
	}
}
