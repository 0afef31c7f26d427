// Package tracectx resolves distributed trace context for trees of nested
// spans and point-in-time events.
//
// A caller registers one span as the local root of a distributed trace,
// supplying the trace id (and optionally a remote parent span). Every
// descendant span and event then resolves to that trace lazily, on first
// use, by walking its ancestor chain. Resolutions are memoized per span,
// so the walk cost is paid once per lineage rather than on every span
// close or event.
//
// Core Components:
//   - Layer: the four lifecycle hooks a span-tree host drives, plus the
//     caller-facing RegisterRoot and CurrentTraceContext entry points.
//   - Host, SpanRef, Extensions: the boundary a span-tree host implements.
//   - Telemetry: the sink that receives finished Span and Event records.
//   - SpanTree, Tracer: an in-memory host and a hand-driven facade over it.
//
// Basic Usage:
//
//	capture := tracectx.NewCapture()
//	tracer := tracectx.NewTracer("checkout", capture)
//
//	ctx, span := tracer.StartSpan(context.Background(), "handle-request")
//	defer span.Finish()
//
//	// Mark this span as the root of a distributed trace.
//	tracer.RegisterRoot(ctx, tracectx.NewTraceID(), nil)
//
//	// Everything below resolves to the same trace.
//	childCtx, child := tracer.StartSpan(ctx, "db-query")
//	tracer.Event(childCtx, tracectx.Metadata{Name: "cache-miss"}, nil)
//	child.Finish()
//
// Spans and events whose ancestry contains no registered root are dropped
// silently - an untraced span is a normal outcome, not an error.
//
// Thread Safety:
//
// Layer is safe for concurrent use by multiple goroutines. The root
// registry is read on every event and span close and written only on
// registration. Per-span extension slots are serialized by the host;
// the trace-context slot is write-once, so two goroutines resolving the
// same lineage concurrently write the same value and the race is benign.
//
// Resolution:
//
// A span's trace context is never computed at creation. The first event
// or close anywhere in its lineage walks ancestors until it finds either
// a cached context or an explicit registration, then backfills every
// unresolved span it visited. An unresolved lineage is never cached
// negatively, so a root registered late still claims in-flight spans.
package tracectx

// Fields holds the attribute values captured from a span or event.
type Fields = map[string]any
