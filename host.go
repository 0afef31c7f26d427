package tracectx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Level indicates the severity of a span or event.
type Level uint8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", uint8(l))
	}
}

// MarshalJSON renders the level as its name.
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON accepts a level name produced by MarshalJSON.
func (l *Level) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "DEBUG":
		*l = LevelDebug
	case "INFO":
		*l = LevelInfo
	case "WARN":
		*l = LevelWarn
	case "ERROR":
		*l = LevelError
	default:
		return fmt.Errorf("tracectx: unknown level %q", s)
	}
	return nil
}

// Metadata describes a span or event as declared at its creation site.
type Metadata struct {
	Name   string `json:"name"`
	Target string `json:"target,omitempty"`
	Level  Level  `json:"level"`
}

// Extensions is the per-span slot storage supplied by the span-tree host.
// The host must serialize access per span; the layer never mutates the
// same span's slots from two goroutines itself.
type Extensions interface {
	// TraceCtx returns the cached resolved trace context, if any.
	TraceCtx() (TraceCtx, bool)

	// SetTraceCtx caches a resolved trace context. The slot is write-once:
	// once a value is present, later writes must be ignored.
	SetTraceCtx(TraceCtx)

	// Fields returns the span's live field table, or nil if the creation
	// hook never installed one.
	Fields() Fields

	// SetFields installs the span's field table.
	SetFields(Fields)

	// TakeFields removes and returns the field table.
	TakeFields() (Fields, bool)

	// SetStartTime records when the span was created.
	SetStartTime(time.Time)

	// TakeStartTime removes and returns the recorded start time.
	TakeStartTime() (time.Time, bool)
}

// SpanRef is a handle to a live span in the host's tree.
type SpanRef interface {
	ID() LocalID

	// Parent returns the span's immediate structural parent, if any.
	Parent() (SpanRef, bool)

	Metadata() Metadata

	Extensions() Extensions
}

// Host is the span-tree a Layer instruments. The host owns span creation,
// parent linkage, and the ambient-span association; the layer only reads
// them.
type Host interface {
	// Span returns the handle for a live span id.
	Span(id LocalID) (SpanRef, bool)

	// CurrentSpan reports the ambient span attached to ctx, if any.
	CurrentSpan(ctx context.Context) (LocalID, bool)
}
