package tracectx

import (
	"context"
	"sync"
)

// Tracer couples an in-memory SpanTree with a Layer, for processes that
// drive spans by hand rather than through an instrumentation framework.
// Safe for concurrent use by multiple goroutines.
type Tracer struct {
	tree  *SpanTree
	layer *Layer
}

// NewTracer creates a tracer reporting to telemetry under serviceName.
func NewTracer(serviceName string, telemetry Telemetry, opts ...LayerOption) *Tracer {
	tree := NewSpanTree()
	return &Tracer{
		tree:  tree,
		layer: NewLayer(serviceName, tree, telemetry, opts...),
	}
}

// Layer returns the underlying layer, for hosts that want to drive hooks
// directly alongside the facade.
func (t *Tracer) Layer() *Layer {
	return t.layer
}

// spanConfig collects per-span options.
type spanConfig struct {
	target string
	level  Level
	fields Fields
}

// SpanOption configures a started span.
type SpanOption func(*spanConfig)

// WithLevel sets the span's level. Defaults to LevelInfo.
func WithLevel(level Level) SpanOption {
	return func(cfg *spanConfig) { cfg.level = level }
}

// WithTarget sets the span's target (the instrumented code path).
func WithTarget(target string) SpanOption {
	return func(cfg *spanConfig) { cfg.target = target }
}

// WithFields sets the span's initial attribute values.
func WithFields(fields Fields) SpanOption {
	return func(cfg *spanConfig) { cfg.fields = fields }
}

// StartSpan creates a new span and returns it wrapped in an ActiveSpan.
// If the context carries an ambient span, the new span becomes its child.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, *ActiveSpan) {
	// Handle nil context by creating a new one.
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := spanConfig{level: LevelInfo}
	for _, opt := range opts {
		opt(&cfg)
	}

	var parent LocalID
	if id, ok := t.tree.CurrentSpan(ctx); ok {
		parent = id
	}

	id := t.tree.NewSpan(Metadata{Name: name, Target: cfg.target, Level: cfg.level}, parent)
	t.layer.OnSpanCreated(id, cfg.fields)

	return ContextWithSpan(ctx, id), &ActiveSpan{tracer: t, id: id}
}

// Event reports an occurrence parented to the ambient span on ctx. Events
// with no ambient span, or outside any trace, are dropped silently.
func (t *Tracer) Event(ctx context.Context, meta Metadata, fields Fields) {
	t.layer.OnEvent(ctx, EventData{Metadata: meta, Fields: fields})
}

// RegisterRoot marks the ambient span on ctx as a distributed-trace root.
func (t *Tracer) RegisterRoot(ctx context.Context, traceID TraceID, remoteParent *SpanID) error {
	return t.layer.RegisterRoot(ctx, traceID, remoteParent)
}

// CurrentTraceContext resolves the ambient span on ctx to its trace.
func (t *Tracer) CurrentTraceContext(ctx context.Context) (TraceID, SpanID, error) {
	return t.layer.CurrentTraceContext(ctx)
}

// ActiveSpan is a handle to an open span.
// Safe for concurrent use by multiple goroutines.
type ActiveSpan struct {
	tracer   *Tracer
	id       LocalID
	mu       sync.Mutex
	finished bool
}

// ID returns the span's host-local identifier.
func (a *ActiveSpan) ID() LocalID {
	return a.id
}

// SpanID returns the span's globally unique identifier.
func (a *ActiveSpan) SpanID() SpanID {
	return a.tracer.layer.SpanID(a.id)
}

// RecordFields merges fields into the span's attribute table. Later values
// for a key overwrite earlier ones.
// No-op if the span is already finished.
func (a *ActiveSpan) RecordFields(fields Fields) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finished {
		return
	}
	a.tracer.layer.OnFieldsRecorded(a.id, fields)
}

// Event reports an occurrence explicitly parented to this span.
// No-op if the span is already finished.
func (a *ActiveSpan) Event(meta Metadata, fields Fields) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finished {
		return
	}
	id := a.id
	a.tracer.layer.OnEvent(context.Background(), EventData{Metadata: meta, Fields: fields, Parent: &id})
}

// Finish closes the span, reporting it if it belongs to a trace, and
// removes it from the tree.
// Safe to call multiple times - subsequent calls are no-ops.
func (a *ActiveSpan) Finish() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finished {
		return
	}
	a.finished = true

	a.tracer.layer.OnSpanClosed(a.id)
	a.tracer.tree.Remove(a.id)
}
