package tracectx

import (
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"
)

// Telemetry receives finished reporting records. Implementations are
// fire-and-forget: the layer never observes delivery failure, and retrying
// is the sink's business.
type Telemetry interface {
	ReportSpan(Span)
	ReportEvent(Event)
}

// Blackhole discards every record. Useful when trace output is disabled
// and as a stand-in sink in benchmarks.
type Blackhole struct{}

func (Blackhole) ReportSpan(Span) {}

func (Blackhole) ReportEvent(Event) {}

// Capture is an in-memory sink that retains every record it receives.
// Intended for tests. Safe for concurrent use.
type Capture struct {
	mu     sync.Mutex
	spans  []Span
	events []Event
}

// NewCapture creates an empty capture sink.
func NewCapture() *Capture {
	return &Capture{}
}

func (c *Capture) ReportSpan(s Span) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s.Fields = copyFields(s.Fields)
	c.spans = append(c.spans, s)
}

func (c *Capture) ReportEvent(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e.Fields = copyFields(e.Fields)
	c.events = append(c.events, e)
}

// Spans returns a copy of every captured span, in arrival order.
func (c *Capture) Spans() []Span {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Span, len(c.spans))
	copy(out, c.spans)
	return out
}

// Events returns a copy of every captured event, in arrival order.
func (c *Capture) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Reset discards everything captured so far.
func (c *Capture) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spans = nil
	c.events = nil
}

// recordEnvelope distinguishes span and event records on the wire.
type recordEnvelope struct {
	Span  *Span  `json:"span,omitempty"`
	Event *Event `json:"event,omitempty"`
}

// Writer publishes records as JSON lines to an io.Writer, one envelope per
// record. Encode and write failures never propagate; they increment a drop
// counter instead. Safe for concurrent use.
type Writer struct {
	mu      sync.Mutex
	enc     *json.Encoder
	dropped atomic.Uint64
}

// NewWriter creates a sink publishing to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

func (w *Writer) ReportSpan(s Span) {
	w.write(recordEnvelope{Span: &s})
}

func (w *Writer) ReportEvent(e Event) {
	w.write(recordEnvelope{Event: &e})
}

func (w *Writer) write(env recordEnvelope) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(env); err != nil {
		w.dropped.Add(1)
	}
}

// Dropped returns the number of records lost to encode or write failures.
func (w *Writer) Dropped() uint64 {
	return w.dropped.Load()
}
