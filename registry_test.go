package tracectx

import (
	"fmt"
	"sync"
	"testing"
)

func TestRootRegistryRegisterAndLookup(t *testing.T) {
	reg := newRootRegistry()

	if _, ok := reg.lookup(1); ok {
		t.Error("Expected miss for unregistered span")
	}

	reg.register(1, TraceCtx{TraceID: "t1"})
	tc, ok := reg.lookup(1)
	if !ok || tc.TraceID != "t1" {
		t.Errorf("Expected t1, got %v %v", tc, ok)
	}
}

func TestRootRegistryLastWriterWins(t *testing.T) {
	reg := newRootRegistry()

	parent := SpanID{Instance: 1, Local: 2}
	reg.register(7, TraceCtx{TraceID: "first", Parent: &parent})
	reg.register(7, TraceCtx{TraceID: "second"})

	tc, ok := reg.lookup(7)
	if !ok {
		t.Fatal("Expected hit")
	}
	if tc.TraceID != "second" || tc.Parent != nil {
		t.Errorf("Expected silent overwrite with 'second', got %v", tc)
	}
}

func TestRootRegistryConcurrentReadsAndWrites(t *testing.T) {
	reg := newRootRegistry()

	var wg sync.WaitGroup
	numWriters := 4
	numReaders := 8
	iterations := 500

	for w := 0; w < numWriters; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				id := LocalID(w*iterations + i)
				reg.register(id, TraceCtx{TraceID: TraceID(fmt.Sprintf("trace-%d", w))})
			}
		}(w)
	}
	for r := 0; r < numReaders; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				reg.lookup(LocalID(i))
			}
		}()
	}
	wg.Wait()

	// Every write must be visible afterwards.
	for w := 0; w < numWriters; w++ {
		for i := 0; i < iterations; i++ {
			id := LocalID(w*iterations + i)
			if _, ok := reg.lookup(id); !ok {
				t.Fatalf("Registration for span %d lost", id)
			}
		}
	}
}
