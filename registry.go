package tracectx

import "sync"

// rootRegistry maps host span ids to explicitly registered trace contexts.
// Reads dominate: every event and span close performs a lookup, while
// writes happen only when a caller marks a span as a trace root.
//
// Entries are never removed during normal operation. A descendant may
// resolve long after its root span closed, so the registry grows for the
// lifetime of the process. That tradeoff is deliberate.
type rootRegistry struct {
	mu    sync.RWMutex
	roots map[LocalID]TraceCtx
}

func newRootRegistry() *rootRegistry {
	return &rootRegistry{roots: make(map[LocalID]TraceCtx)}
}

// register stores tc for id. Re-registering the same span overwrites the
// earlier context: last writer wins, silently.
func (r *rootRegistry) register(id LocalID, tc TraceCtx) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roots[id] = tc
}

// lookup returns a copy of the registered context for id, if any.
func (r *rootRegistry) lookup(id LocalID) (TraceCtx, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tc, ok := r.roots[id]
	return tc, ok
}
