package tracectx

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

func TestNewTracer(t *testing.T) {
	tracer := NewTracer("test-svc", NewCapture())

	if tracer == nil {
		t.Fatal("Expected tracer to be created")
	}
	if tracer.Layer() == nil {
		t.Error("Expected tracer to expose its layer")
	}
}

func TestTracerStartSpanParentLinkage(t *testing.T) {
	tracer := NewTracer("test-svc", NewCapture())

	ctx, parent := tracer.StartSpan(context.Background(), "parent-op")
	_, child := tracer.StartSpan(ctx, "child-op")

	if parent.ID() == child.ID() {
		t.Error("Expected child to have a different local id from parent")
	}

	// The tree records the structural link.
	ref, ok := tracer.tree.Span(child.ID())
	if !ok {
		t.Fatal("Expected child span in tree")
	}
	p, ok := ref.Parent()
	if !ok || p.ID() != parent.ID() {
		t.Errorf("Expected child's parent %d, got %v %v", parent.ID(), p, ok)
	}
}

func TestTracerStartSpanNilContext(t *testing.T) {
	tracer := NewTracer("test-svc", NewCapture())

	//nolint:staticcheck // Explicitly testing nil context handling
	ctx, span := tracer.StartSpan(nil, "test-op")
	if ctx == nil {
		t.Error("Expected a usable context")
	}
	if span == nil {
		t.Error("Expected a span")
	}
	span.Finish()
}

// TestTracerDistributedTraceScenario walks the canonical lifecycle: a root
// registered on span A, children B and C, an event under C, then closes
// from the leaf up.
func TestTracerDistributedTraceScenario(t *testing.T) {
	capture := NewCapture()
	clock := clockz.NewFakeClock()
	tracer := NewTracer("test-svc", capture, WithClock(clock))

	ctxA, spanA := tracer.StartSpan(context.Background(), "A")
	if err := tracer.RegisterRoot(ctxA, "T1", nil); err != nil {
		t.Fatalf("RegisterRoot failed: %v", err)
	}

	ctxB, spanB := tracer.StartSpan(ctxA, "B")
	ctxC, spanC := tracer.StartSpan(ctxB, "C")

	tracer.Event(ctxC, Metadata{Name: "evt", Level: LevelInfo}, Fields{"foo": "bar"})

	spanC.Finish()
	spanB.Finish()
	spanA.Finish()

	events := capture.Events()
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if events[0].TraceID != "T1" {
		t.Errorf("Expected event trace id T1, got %s", events[0].TraceID)
	}
	if events[0].ParentID == nil || *events[0].ParentID != spanC.SpanID() {
		t.Errorf("Expected event parent %v, got %v", spanC.SpanID(), events[0].ParentID)
	}
	if events[0].Fields["foo"] != "bar" {
		t.Errorf("Expected event field, got %v", events[0].Fields)
	}

	spans := capture.Spans()
	if len(spans) != 3 {
		t.Fatalf("Expected 3 span records, got %d", len(spans))
	}

	// Close order: C, B, A.
	recC, recB, recA := spans[0], spans[1], spans[2]
	for _, rec := range spans {
		if rec.TraceID != "T1" {
			t.Errorf("Expected span %s in trace T1, got %s", rec.Name, rec.TraceID)
		}
	}
	if recC.ParentID == nil || *recC.ParentID != spanB.SpanID() {
		t.Errorf("Expected C's parent = B (%v), got %v", spanB.SpanID(), recC.ParentID)
	}
	if recB.ParentID == nil || *recB.ParentID != spanA.SpanID() {
		t.Errorf("Expected B's parent = A (%v), got %v", spanA.SpanID(), recB.ParentID)
	}
	// A's own TraceCtx carried no explicit parent and A has no structural
	// parent either.
	if recA.ParentID != nil {
		t.Errorf("Expected A to have no parent, got %v", recA.ParentID)
	}
}

func TestTracerRemoteParentScenario(t *testing.T) {
	capture := NewCapture()
	tracer := NewTracer("test-svc", capture)

	remote := SpanID{Instance: 5678, Local: 1234}
	ctx, span := tracer.StartSpan(context.Background(), "local-root")
	if err := tracer.RegisterRoot(ctx, "remote-trace", &remote); err != nil {
		t.Fatalf("RegisterRoot failed: %v", err)
	}
	span.Finish()

	spans := capture.Spans()
	if len(spans) != 1 {
		t.Fatalf("Expected 1 span record, got %d", len(spans))
	}
	if spans[0].ParentID == nil || *spans[0].ParentID != remote {
		t.Errorf("Expected remote parent %v preserved, got %v", remote, spans[0].ParentID)
	}
}

func TestTracerUntracedProducesNothing(t *testing.T) {
	capture := NewCapture()
	tracer := NewTracer("test-svc", capture)

	ctx, span := tracer.StartSpan(context.Background(), "untraced", WithFields(Fields{"k": "v"}))
	span.RecordFields(Fields{"more": 1})
	tracer.Event(ctx, Metadata{Name: "evt"}, nil)
	_, child := tracer.StartSpan(ctx, "child")
	child.Finish()
	span.Finish()

	if len(capture.Spans()) != 0 || len(capture.Events()) != 0 {
		t.Error("Expected zero records for spans outside any registered trace")
	}
}

func TestTracerElapsedTime(t *testing.T) {
	capture := NewCapture()
	clock := clockz.NewFakeClock()
	tracer := NewTracer("test-svc", capture, WithClock(clock))

	ctx, span := tracer.StartSpan(context.Background(), "timed-op")
	if err := tracer.RegisterRoot(ctx, "T1", nil); err != nil {
		t.Fatalf("RegisterRoot failed: %v", err)
	}

	clock.Advance(1500 * time.Millisecond)
	span.Finish()

	spans := capture.Spans()
	if len(spans) != 1 {
		t.Fatalf("Expected 1 span record, got %d", len(spans))
	}
	if spans[0].ElapsedMs != 1500 {
		t.Errorf("Expected 1500 elapsed ms, got %d", spans[0].ElapsedMs)
	}
}

func TestTracerFinishIdempotent(t *testing.T) {
	capture := NewCapture()
	tracer := NewTracer("test-svc", capture)

	ctx, span := tracer.StartSpan(context.Background(), "op")
	if err := tracer.RegisterRoot(ctx, "T1", nil); err != nil {
		t.Fatalf("RegisterRoot failed: %v", err)
	}

	span.Finish()
	// Second finish is a no-op, not a panic.
	span.Finish()

	if got := len(capture.Spans()); got != 1 {
		t.Errorf("Expected exactly 1 span record, got %d", got)
	}

	// Mutations after finish are no-ops.
	span.RecordFields(Fields{"late": true})
	span.Event(Metadata{Name: "late-event"}, nil)
	if got := len(capture.Events()); got != 0 {
		t.Errorf("Expected no event after finish, got %d", got)
	}
}

func TestTracerActiveSpanEvent(t *testing.T) {
	capture := NewCapture()
	tracer := NewTracer("test-svc", capture)

	ctx, span := tracer.StartSpan(context.Background(), "op")
	if err := tracer.RegisterRoot(ctx, "T1", nil); err != nil {
		t.Fatalf("RegisterRoot failed: %v", err)
	}

	// No context needed: the span itself is the explicit parent.
	span.Event(Metadata{Name: "checkpoint", Level: LevelDebug}, Fields{"n": 1})

	events := capture.Events()
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if events[0].ParentID == nil || *events[0].ParentID != span.SpanID() {
		t.Errorf("Expected parent %v, got %v", span.SpanID(), events[0].ParentID)
	}
	span.Finish()
}

func TestTracerLateRegistrationClaimsInFlightSpans(t *testing.T) {
	capture := NewCapture()
	tracer := NewTracer("test-svc", capture)

	ctxA, spanA := tracer.StartSpan(context.Background(), "A")
	ctxB, spanB := tracer.StartSpan(ctxA, "B")

	// Event before registration: dropped.
	tracer.Event(ctxB, Metadata{Name: "early"}, nil)
	if got := len(capture.Events()); got != 0 {
		t.Fatalf("Expected early event dropped, got %d", got)
	}

	// The failed walk cached nothing, so a late root still claims B.
	if err := tracer.RegisterRoot(ctxA, "T1", nil); err != nil {
		t.Fatalf("RegisterRoot failed: %v", err)
	}
	tracer.Event(ctxB, Metadata{Name: "late"}, nil)

	events := capture.Events()
	if len(events) != 1 {
		t.Fatalf("Expected late event reported, got %d", len(events))
	}
	if events[0].TraceID != "T1" {
		t.Errorf("Expected trace T1, got %s", events[0].TraceID)
	}

	spanB.Finish()
	spanA.Finish()
}

func TestTracerCurrentTraceContext(t *testing.T) {
	tracer := NewTracer("test-svc", NewCapture())

	ctx, span := tracer.StartSpan(context.Background(), "op")
	if err := tracer.RegisterRoot(ctx, "T1", nil); err != nil {
		t.Fatalf("RegisterRoot failed: %v", err)
	}

	traceID, spanID, err := tracer.CurrentTraceContext(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if traceID != "T1" {
		t.Errorf("Expected trace id T1, got %s", traceID)
	}
	if spanID != span.SpanID() {
		t.Errorf("Expected span id %v, got %v", span.SpanID(), spanID)
	}
	span.Finish()
}

func TestTracerConcurrentSpans(t *testing.T) {
	capture := NewCapture()
	tracer := NewTracer("test-svc", capture)

	ctx, root := tracer.StartSpan(context.Background(), "root")
	if err := tracer.RegisterRoot(ctx, "T1", nil); err != nil {
		t.Fatalf("RegisterRoot failed: %v", err)
	}

	var wg sync.WaitGroup
	numGoroutines := 10
	spansPerGoroutine := 20

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < spansPerGoroutine; j++ {
				childCtx, span := tracer.StartSpan(ctx, "worker-op")
				tracer.Event(childCtx, Metadata{Name: "tick"}, nil)
				span.Finish()
			}
		}()
	}
	wg.Wait()
	root.Finish()

	want := numGoroutines*spansPerGoroutine + 1
	spans := capture.Spans()
	if len(spans) != want {
		t.Fatalf("Expected %d span records, got %d", want, len(spans))
	}
	for _, rec := range spans {
		if rec.TraceID != "T1" {
			t.Errorf("Expected every span in trace T1, got %s", rec.TraceID)
		}
	}
	if got := len(capture.Events()); got != numGoroutines*spansPerGoroutine {
		t.Errorf("Expected %d events, got %d", numGoroutines*spansPerGoroutine, got)
	}
}
