package tracectx

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/zoobzio/clockz"
)

// TraceID identifies one distributed trace across process boundaries.
// It is opaque: remote callers may propagate any non-empty string, local
// roots typically use NewTraceID. Equality is value equality.
type TraceID string

// LocalID is the span identifier assigned by the span-tree host. It is
// unique only within one process instance.
type LocalID uint64

// SpanID globally identifies a span. The host-local id is paired with a
// random per-layer instance id, so spans from different process instances
// never collide even when their local ids repeat after a restart.
type SpanID struct {
	Instance uint64  `json:"instance_id"`
	Local    LocalID `json:"local_id"`
}

func (s SpanID) String() string {
	return fmt.Sprintf("%x-%x", uint64(s.Local), s.Instance)
}

// TraceCtx associates a span with a distributed trace. A non-nil Parent is
// an explicit (possibly remote) parent that overrides structural parentage
// at the point of registration.
type TraceCtx struct {
	TraceID TraceID `json:"trace_id"`
	Parent  *SpanID `json:"parent_span,omitempty"`
}

// newInstanceID draws the random per-layer instance identifier.
func newInstanceID(clock clockz.Clock) uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// Fallback to a time-derived value if crypto/rand fails.
		return uint64(clock.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(b[:])
}
