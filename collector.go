package tracectx

import (
	"sync"
	"sync/atomic"
	"time"
)

// collectorRecord carries either a span or an event through the channel.
type collectorRecord struct {
	span  *Span
	event *Event
}

// Collector is a Telemetry sink that buffers finished records for batch
// export. Safe for concurrent use by multiple goroutines.
//
//nolint:govet // Field alignment optimized for readability over memory efficiency
type Collector struct {
	spans        []Span
	events       []Event
	recordsCh    chan collectorRecord
	stopCh       chan struct{}
	done         chan struct{}
	droppedCount atomic.Int64
	name         string
	mu           sync.Mutex
	closed       atomic.Bool // Track if collector is closed.
	syncMode     bool        // Bypass channel for synchronous collection.
}

// NewCollector creates a new collector with the specified name and buffer size.
func NewCollector(name string, bufferSize int) *Collector {
	c := &Collector{
		name:      name,
		spans:     make([]Span, 0, 8), // Start with small capacity.
		events:    make([]Event, 0, 8),
		recordsCh: make(chan collectorRecord, bufferSize),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	go c.start()
	return c
}

// start runs the collector's main loop, receiving records from the channel.
func (c *Collector) start() {
	defer close(c.done)

	for {
		select {
		case <-c.stopCh:
			// Drain remaining records before shutdown.
			for {
				select {
				case rec := <-c.recordsCh:
					c.buffer(rec)
				default:
					return // Clean shutdown.
				}
			}
		case rec := <-c.recordsCh:
			c.buffer(rec)
		}
	}
}

// Close shuts down the collector gracefully, draining queued records.
func (c *Collector) Close() {
	if c.closed.Swap(true) {
		return
	}
	close(c.stopCh)
	select {
	case <-c.done:
		// Clean shutdown completed.
	case <-time.After(100 * time.Millisecond):
		// Timeout - records still in flight are abandoned.
	}
}

// ReportSpan buffers a span with backpressure protection. If the internal
// channel is full the record is dropped and the drop counter incremented.
func (c *Collector) ReportSpan(s Span) {
	s.Fields = copyFields(s.Fields)
	c.collect(collectorRecord{span: &s})
}

// ReportEvent buffers an event with backpressure protection.
func (c *Collector) ReportEvent(e Event) {
	e.Fields = copyFields(e.Fields)
	c.collect(collectorRecord{event: &e})
}

func (c *Collector) collect(rec collectorRecord) {
	if c.syncMode {
		// Direct synchronous collection for deterministic tests.
		if c.closed.Load() {
			c.droppedCount.Add(1)
			return
		}
		c.buffer(rec)
		return
	}

	select {
	case c.recordsCh <- rec:
		// Successfully queued.
	default:
		// Channel full - drop record to prevent blocking.
		c.droppedCount.Add(1)
	}
}

// buffer adds a record to the appropriate internal buffer.
func (c *Collector) buffer(rec collectorRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case rec.span != nil:
		c.spans = append(c.spans, *rec.span)
	case rec.event != nil:
		c.events = append(c.events, *rec.event)
	}
}

// ExportSpans returns a copy of all buffered spans and clears the span
// buffer. The returned slice is safe to modify.
func (c *Collector) ExportSpans() []Span {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.spans) == 0 {
		return nil
	}

	result := make([]Span, len(c.spans))
	for i := range c.spans {
		result[i] = c.spans[i]
		result[i].Fields = copyFields(c.spans[i].Fields)
	}

	// Only shrink if the buffer is very oversized to avoid allocation churn.
	if cap(c.spans) > 256 && len(c.spans) < cap(c.spans)/8 {
		newCap := cap(c.spans) / 4
		if newCap < 32 {
			newCap = 32
		}
		c.spans = make([]Span, 0, newCap)
	} else {
		c.spans = c.spans[:0] // Keep capacity, reset length.
	}

	return result
}

// ExportEvents returns a copy of all buffered events and clears the event
// buffer. The returned slice is safe to modify.
func (c *Collector) ExportEvents() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.events) == 0 {
		return nil
	}

	result := make([]Event, len(c.events))
	for i := range c.events {
		result[i] = c.events[i]
		result[i].Fields = copyFields(c.events[i].Fields)
	}

	if cap(c.events) > 256 && len(c.events) < cap(c.events)/8 {
		newCap := cap(c.events) / 4
		if newCap < 32 {
			newCap = 32
		}
		c.events = make([]Event, 0, newCap)
	} else {
		c.events = c.events[:0]
	}

	return result
}

// Name returns the collector's name.
func (c *Collector) Name() string {
	return c.name
}

// Count returns the current number of buffered spans plus events.
func (c *Collector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.spans) + len(c.events)
}

// DroppedCount returns the total number of records dropped due to backpressure.
func (c *Collector) DroppedCount() int64 {
	return c.droppedCount.Load()
}

// SetSyncMode enables synchronous collection for testing. When enabled,
// records bypass the channel, making tests deterministic.
func (c *Collector) SetSyncMode(sync bool) {
	c.syncMode = sync
}

// Reset clears all buffered records and resets the drop counter.
// Does not affect the running goroutine - use Close for that.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.spans = c.spans[:0]
	c.events = c.events[:0]
	c.droppedCount.Store(0)
}
