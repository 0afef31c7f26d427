package tracectx

import (
	"context"
	"errors"
	"fmt"

	"github.com/zoobzio/clockz"
)

// Errors returned by the caller-facing trace-context accessors.
var (
	// ErrNoActiveSpan indicates the calling context carries no ambient span.
	ErrNoActiveSpan = errors.New("tracectx: no active span")

	// ErrNoTraceContext indicates the ambient span belongs to no trace.
	ErrNoTraceContext = errors.New("tracectx: span is not part of a trace")

	// ErrSpanNotFound indicates the host no longer knows the span id.
	ErrSpanNotFound = errors.New("tracectx: span not found in host")
)

// EventData describes an observed event as supplied by the host.
type EventData struct {
	Metadata Metadata
	Fields   Fields

	// Parent is the event's explicitly declared parent span, if any.
	Parent *LocalID

	// Root marks the event as explicitly parentless. A root event belongs
	// to no trace and is never reported.
	Root bool
}

// Layer resolves distributed trace contexts for a span-tree host and turns
// closed spans and observed events into reporting records.
// Safe for concurrent use across spans; hooks for a single span must be
// serialized by the host, as their ordering is meaningful.
//
//nolint:govet // Field order optimized for readability over memory
type Layer struct {
	host        Host
	telemetry   Telemetry
	sampler     Sampler
	roots       *rootRegistry
	serviceName string
	instanceID  uint64
	clock       clockz.Clock
}

// LayerOption configures a Layer at construction.
type LayerOption func(*Layer)

// WithClock injects a clock. Enables deterministic elapsed-time tests.
func WithClock(clock clockz.Clock) LayerOption {
	return func(l *Layer) { l.clock = clock }
}

// WithSampler wires a sampling decision between resolution and the sink.
func WithSampler(s Sampler) LayerOption {
	return func(l *Layer) { l.sampler = s }
}

// NewLayer creates a layer over host that reports to telemetry. The
// serviceName is stamped on every record. A random instance id is drawn
// once here and pairs with host-local span ids for global uniqueness.
func NewLayer(serviceName string, host Host, telemetry Telemetry, opts ...LayerOption) *Layer {
	l := &Layer{
		host:        host,
		telemetry:   telemetry,
		roots:       newRootRegistry(),
		serviceName: serviceName,
		clock:       clockz.RealClock,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.instanceID = newInstanceID(l.clock)
	return l
}

// SpanID maps a host-local span id into a globally unique identifier.
func (l *Layer) SpanID(id LocalID) SpanID {
	return SpanID{Instance: l.instanceID, Local: id}
}

// OnSpanCreated must be invoked by the host when a span is created, before
// any other hook for that span. It stamps the start time and installs the
// field table from the span's declared attributes. No trace resolution
// happens here; resolution is deferred to first use.
func (l *Layer) OnSpanCreated(id LocalID, fields Fields) {
	ref, ok := l.host.Span(id)
	if !ok {
		panic(fmt.Sprintf("tracectx: span %d not found during OnSpanCreated", id))
	}

	ext := ref.Extensions()
	ext.SetStartTime(l.clock.Now())

	table := make(Fields, len(fields))
	for k, v := range fields {
		table[k] = v
	}
	ext.SetFields(table)
}

// OnFieldsRecorded merges newly recorded attribute values into the span's
// field table. Later values for a key overwrite earlier ones. May be
// invoked any number of times between creation and close.
func (l *Layer) OnFieldsRecorded(id LocalID, fields Fields) {
	ref, ok := l.host.Span(id)
	if !ok {
		panic(fmt.Sprintf("tracectx: span %d not found during OnFieldsRecorded", id))
	}

	table := ref.Extensions().Fields()
	if table == nil {
		panic(fmt.Sprintf("tracectx: field table missing for span %d: OnSpanCreated never ran", id))
	}
	for k, v := range fields {
		table[k] = v
	}
}

// OnEvent handles an observed event. The event's logical parent is chosen
// in order: an explicitly declared parent, none if the event is marked
// root, else the ambient span on ctx. Events with no parent, and events
// whose parent resolves to no trace, are dropped silently.
func (l *Layer) OnEvent(ctx context.Context, ev EventData) {
	var parent LocalID
	var ok bool
	switch {
	case ev.Parent != nil:
		parent, ok = *ev.Parent, true
	case ev.Root:
		// Explicitly parentless; skip the ambient lookup.
	default:
		parent, ok = l.host.CurrentSpan(ctx)
	}
	if !ok {
		// Not part of any trace.
		return
	}

	ref, found := l.host.Span(parent)
	if !found {
		panic(fmt.Sprintf("tracectx: span %d not found during OnEvent", parent))
	}
	tc, resolved := l.evalCtx(ref)
	if !resolved {
		return
	}

	parentID := l.SpanID(parent)
	rec := Event{
		TraceID:     tc.TraceID,
		ParentID:    &parentID,
		StartedAt:   l.clock.Now(),
		Level:       ev.Metadata.Level,
		Name:        ev.Metadata.Name,
		Target:      ev.Metadata.Target,
		ServiceName: l.serviceName,
		Fields:      copyFields(ev.Fields),
	}

	if l.sampler != nil && !l.sampler.Sample(rec.TraceID) {
		return
	}
	l.telemetry.ReportEvent(rec)
}

// OnSpanClosed handles a span close. An unresolved span is dropped
// silently. For a resolved span the field table and start timestamp are
// consumed; their absence means the creation hook never ran, which is an
// unrecoverable ordering defect and panics rather than reporting a record
// with undefined timing.
func (l *Layer) OnSpanClosed(id LocalID) {
	ref, ok := l.host.Span(id)
	if !ok {
		panic(fmt.Sprintf("tracectx: span %d not found during OnSpanClosed", id))
	}

	tc, resolved := l.evalCtx(ref)
	if !resolved {
		// Outside any registered trace: never reported.
		return
	}

	ext := ref.Extensions()
	fields, ok := ext.TakeFields()
	if !ok {
		panic(fmt.Sprintf("tracectx: field table missing for span %d at close: OnSpanCreated never ran", id))
	}
	startedAt, ok := ext.TakeStartTime()
	if !ok {
		panic(fmt.Sprintf("tracectx: start timestamp missing for span %d at close: OnSpanCreated never ran", id))
	}

	elapsed := l.clock.Now().Sub(startedAt).Milliseconds()

	// An explicit parent from the registration point wins; otherwise the
	// structural parent, if the span has one.
	var parentID *SpanID
	if tc.Parent != nil {
		p := *tc.Parent
		parentID = &p
	} else if p, haveParent := ref.Parent(); haveParent {
		pid := l.SpanID(p.ID())
		parentID = &pid
	}

	meta := ref.Metadata()
	rec := Span{
		ID:          l.SpanID(id),
		TraceID:     tc.TraceID,
		ParentID:    parentID,
		Name:        meta.Name,
		Target:      meta.Target,
		Level:       meta.Level,
		StartedAt:   startedAt,
		ElapsedMs:   elapsed,
		ServiceName: l.serviceName,
		Fields:      fields,
	}

	if l.sampler != nil && !l.sampler.Sample(rec.TraceID) {
		return
	}
	l.telemetry.ReportSpan(rec)
}

// RegisterRoot marks the ambient span on ctx as the local root of a
// distributed trace. Every unresolved descendant of that span, at any
// depth, resolves to traceID from now on. A non-nil remoteParent becomes
// the root span's explicit parent, overriding structural parentage.
//
// Registering the same span twice overwrites the earlier context: last
// writer wins, silently.
func (l *Layer) RegisterRoot(ctx context.Context, traceID TraceID, remoteParent *SpanID) error {
	id, ok := l.host.CurrentSpan(ctx)
	if !ok {
		return ErrNoActiveSpan
	}

	tc := TraceCtx{TraceID: traceID}
	if remoteParent != nil {
		p := *remoteParent
		tc.Parent = &p
	}
	l.roots.register(id, tc)
	return nil
}

// CurrentTraceContext resolves the ambient span on ctx and returns the
// trace it belongs to along with the span's own global identifier, for
// correlating external work with the local trace.
func (l *Layer) CurrentTraceContext(ctx context.Context) (TraceID, SpanID, error) {
	id, ok := l.host.CurrentSpan(ctx)
	if !ok {
		return "", SpanID{}, ErrNoActiveSpan
	}
	ref, found := l.host.Span(id)
	if !found {
		return "", SpanID{}, ErrSpanNotFound
	}
	tc, resolved := l.evalCtx(ref)
	if !resolved {
		return "", SpanID{}, ErrNoTraceContext
	}
	return tc.TraceID, l.SpanID(id), nil
}
