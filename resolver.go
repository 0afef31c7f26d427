package tracectx

// evalCtx resolves the trace context applicable to ref by walking its
// ancestor chain, nearest first. The walk stops at the first span that
// either carries a cached context or has an explicit root registration;
// every unresolved span visited on the way is backfilled with the trace
// id so later resolutions along the same lineage hit the cache directly.
//
// A lineage with no hit anywhere is not cached: a root registration may
// still arrive for an in-flight span, and caching the miss would hide it.
func (l *Layer) evalCtx(ref SpanRef) (TraceCtx, bool) {
	var path []SpanRef

	for cur, ok := ref, true; ok; cur, ok = cur.Parent() {
		ext := cur.Extensions()

		if tc, hit := ext.TraceCtx(); hit {
			return resolveAt(tc, path), true
		}

		if tc, hit := l.roots.lookup(cur.ID()); hit {
			ext.SetTraceCtx(tc)
			return resolveAt(tc, path), true
		}

		path = append(path, cur)
	}

	return TraceCtx{}, false
}

// resolveAt computes the context for the span the walk started at and
// backfills the unresolved strict descendants visited before the hit.
// Only the resolution point keeps its explicit parent; descendants
// inherit the trace id alone, their parentage being structural.
func resolveAt(tc TraceCtx, path []SpanRef) TraceCtx {
	res := tc
	if len(path) > 0 {
		res = TraceCtx{TraceID: tc.TraceID}
	}
	for _, ref := range path {
		ref.Extensions().SetTraceCtx(TraceCtx{TraceID: tc.TraceID})
	}
	return res
}
