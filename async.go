package tracectx

import (
	"errors"
	"sync"
	"sync/atomic"
)

// AsyncTelemetry forwards records to a wrapped sink from a bounded worker
// pool, so a slow publisher never blocks the hook path. When the queue is
// full records are dropped and counted rather than queued unboundedly.
//
//nolint:govet // Field order optimized for functionality over memory
type AsyncTelemetry struct {
	next    Telemetry
	tasks   chan func()
	stop    chan struct{}
	dropped atomic.Uint64
	wg      sync.WaitGroup
	once    sync.Once
}

// NewAsyncTelemetry wraps next behind workers goroutines and a queue of
// queueSize pending records.
func NewAsyncTelemetry(next Telemetry, workers, queueSize int) (*AsyncTelemetry, error) {
	if next == nil {
		return nil, errors.New("next telemetry must not be nil")
	}
	if workers <= 0 {
		return nil, errors.New("workers must be > 0")
	}
	if queueSize <= 0 {
		return nil, errors.New("queueSize must be > 0")
	}

	a := &AsyncTelemetry{
		next:  next,
		tasks: make(chan func(), queueSize),
		stop:  make(chan struct{}),
	}
	a.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go a.run()
	}
	return a, nil
}

func (a *AsyncTelemetry) run() {
	defer a.wg.Done()
	for {
		select {
		case task := <-a.tasks:
			task()
		case <-a.stop:
			return
		}
	}
}

func (a *AsyncTelemetry) submit(task func()) {
	select {
	case a.tasks <- task:
	default:
		a.dropped.Add(1)
	}
}

func (a *AsyncTelemetry) ReportSpan(s Span) {
	a.submit(func() { a.next.ReportSpan(s) })
}

func (a *AsyncTelemetry) ReportEvent(e Event) {
	a.submit(func() { a.next.ReportEvent(e) })
}

// Dropped returns the number of records lost to a full queue.
func (a *AsyncTelemetry) Dropped() uint64 {
	return a.dropped.Load()
}

// Close stops the workers. Safe to call multiple times.
func (a *AsyncTelemetry) Close() {
	a.once.Do(func() {
		close(a.stop)
		a.wg.Wait()
	})
}
