package tracectx

import "time"

// Span is the reporting payload for one closed span. It is assembled once
// the span resolves to a trace and handed to the telemetry sink by value.
//
//nolint:govet // Field alignment optimized for JSON serialization order
type Span struct {
	ID          SpanID    `json:"id"`
	TraceID     TraceID   `json:"trace_id"`
	ParentID    *SpanID   `json:"parent_id,omitempty"`
	Name        string    `json:"name"`
	Target      string    `json:"target,omitempty"`
	Level       Level     `json:"level"`
	StartedAt   time.Time `json:"started_at"`
	ElapsedMs   int64     `json:"elapsed_ms"`
	ServiceName string    `json:"service_name"`
	Fields      Fields    `json:"fields,omitempty"`
}

// Event is the reporting payload for one observed event. Events are not
// timed; StartedAt is the moment of observation.
//
//nolint:govet // Field alignment optimized for JSON serialization order
type Event struct {
	TraceID     TraceID   `json:"trace_id"`
	ParentID    *SpanID   `json:"parent_id,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	Level       Level     `json:"level"`
	Name        string    `json:"name"`
	Target      string    `json:"target,omitempty"`
	ServiceName string    `json:"service_name"`
	Fields      Fields    `json:"fields,omitempty"`
}

// copyFields returns a shallow copy of f, or nil for an empty table.
func copyFields(f Fields) Fields {
	if len(f) == 0 {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
