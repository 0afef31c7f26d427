package tracectx

import "hash/fnv"

// Sampler decides whether a finished record is forwarded to the sink.
// Decisions key on the trace id so that every span and event of one trace
// receives the same verdict and traces stay whole.
type Sampler interface {
	Sample(TraceID) bool
}

// RateSampler keeps one trace in every rate traces, chosen by a
// deterministic hash of the trace id.
type RateSampler struct {
	rate uint32
}

// NewRateSampler creates a sampler keeping 1-in-rate traces. A rate below
// one keeps everything.
func NewRateSampler(rate int) *RateSampler {
	if rate < 1 {
		rate = 1
	}
	return &RateSampler{rate: uint32(rate)}
}

func (s *RateSampler) Sample(id TraceID) bool {
	if s.rate == 1 {
		return true
	}
	h := fnv.New32a()
	h.Write([]byte(id))
	return h.Sum32()%s.rate == 0
}
