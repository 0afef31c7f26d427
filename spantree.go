package tracectx

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// spanKeyType is a private type for context keys to avoid collisions.
type spanKeyType string

const spanKey spanKeyType = "tracectx"

// ContextWithSpan returns a context carrying id as the ambient span.
func ContextWithSpan(ctx context.Context, id LocalID) context.Context {
	return context.WithValue(ctx, spanKey, id)
}

// SpanTree is an in-memory span-tree host: it owns span creation, parent
// linkage, per-span extension slots, and the ambient-span association via
// context. It is the reference Host implementation, for processes without
// an instrumentation framework of their own and for tests.
// Safe for concurrent use by multiple goroutines.
type SpanTree struct {
	mu     sync.RWMutex
	spans  map[LocalID]*spanNode
	nextID atomic.Uint64
}

// NewSpanTree creates an empty tree. Span ids start at 1; the zero LocalID
// means "no parent".
func NewSpanTree() *SpanTree {
	return &SpanTree{spans: make(map[LocalID]*spanNode)}
}

// NewSpan registers a span under parent (zero for a top-level span) and
// returns its id. The parent need not exist; a dangling parent simply ends
// the ancestor chain.
func (t *SpanTree) NewSpan(meta Metadata, parent LocalID) LocalID {
	id := LocalID(t.nextID.Add(1))
	node := &spanNode{tree: t, id: id, parent: parent, meta: meta}

	t.mu.Lock()
	t.spans[id] = node
	t.mu.Unlock()

	return id
}

// Remove forgets a span. Call after the close hook for it has run;
// descendants still open lose their ancestor linkage past this point.
func (t *SpanTree) Remove(id LocalID) {
	t.mu.Lock()
	delete(t.spans, id)
	t.mu.Unlock()
}

// Span implements Host.
func (t *SpanTree) Span(id LocalID) (SpanRef, bool) {
	t.mu.RLock()
	node, ok := t.spans[id]
	t.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return node, true
}

// CurrentSpan implements Host, reading the ambient span off ctx.
func (*SpanTree) CurrentSpan(ctx context.Context) (LocalID, bool) {
	if ctx == nil {
		return 0, false
	}
	id, ok := ctx.Value(spanKey).(LocalID)
	return id, ok
}

// Len returns the number of live spans.
func (t *SpanTree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.spans)
}

// spanNode is one live span plus its extension slots.
type spanNode struct {
	tree   *SpanTree
	id     LocalID
	parent LocalID // zero = no parent
	meta   Metadata
	ext    spanExtensions
}

func (n *spanNode) ID() LocalID { return n.id }

func (n *spanNode) Parent() (SpanRef, bool) {
	if n.parent == 0 {
		return nil, false
	}
	return n.tree.Span(n.parent)
}

func (n *spanNode) Metadata() Metadata { return n.meta }

func (n *spanNode) Extensions() Extensions { return &n.ext }

// spanExtensions backs the three per-span slots. The mutex serializes slot
// access; the layer's write-once discipline on the trace-context slot is
// enforced here.
type spanExtensions struct {
	mu       sync.Mutex
	traceCtx *TraceCtx
	fields   Fields
	started  *time.Time
}

func (e *spanExtensions) TraceCtx() (TraceCtx, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.traceCtx == nil {
		return TraceCtx{}, false
	}
	return *e.traceCtx, true
}

func (e *spanExtensions) SetTraceCtx(tc TraceCtx) {
	e.mu.Lock()
	defer e.mu.Unlock()
	// Write-once: concurrent resolutions of one lineage write the same
	// value, so keeping the first is equivalent to keeping the last.
	if e.traceCtx != nil {
		return
	}
	e.traceCtx = &tc
}

func (e *spanExtensions) Fields() Fields {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fields
}

func (e *spanExtensions) SetFields(f Fields) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fields = f
}

func (e *spanExtensions) TakeFields() (Fields, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fields == nil {
		return nil, false
	}
	f := e.fields
	e.fields = nil
	return f, true
}

func (e *spanExtensions) SetStartTime(t time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.started = &t
}

func (e *spanExtensions) TakeStartTime() (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started == nil {
		return time.Time{}, false
	}
	t := *e.started
	e.started = nil
	return t, true
}
