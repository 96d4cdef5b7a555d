// Package heap implements the PolyPool typed arena of spec.md §4.1: a
// central allocator for polymorphically-sized heap objects that lets the
// GC enumerate every live candidate without relying on language-level
// finalization. Object identity is stable across GC — a Handle is never
// relocated, only released.
package heap

import (
	"fmt"

	"derkjs/pkg/value"
)

// ErrBadAlloc is returned by Allocate when, even after a GC pass, the
// live-object count would exceed the configured cap (spec.md §4.1
// `bad_heap_alloc`).
type ErrBadAlloc struct {
	Cap int
}

func (e *ErrBadAlloc) Error() string {
	return fmt.Sprintf("heap allocation failed: live object cap (%d) exceeded after GC", e.Cap)
}

// Collector is the minimal surface the heap needs from the GC to satisfy
// spec.md §4.1's "may trigger GC first" allocation rule, without the heap
// package depending on pkg/gc (which itself depends on pkg/heap to walk
// live objects) — the VM wires the two together at construction time.
// Named CollectForAlloc rather than Collect since pkg/gc.GC's own
// Collect() returns a Stats value the heap has no need to see.
type Collector interface {
	CollectForAlloc()
}

// Heap is the PolyPool arena. Entries slice holds every object ever
// allocated (by Handle); once released, a slot's Object is nil'd out so it
// becomes eligible for Go's own GC, but the slot index itself is retired,
// never reused, so Handle identity is never confused across generations.
type Heap struct {
	entries   []value.HeapObject
	live      int
	cap       int // configured live-object cap (0 = unbounded)
	threshold int // GC trigger threshold (spec.md §4.8)
	gc        Collector
}

// Handle is a stable, non-owning reference to a heap object (Glossary).
type Handle int

// New constructs an empty heap. cap <= 0 means unbounded; threshold <= 0
// disables automatic GC (a host may still call gc.GC's Collect()
// directly, e.g. from a `gc()` native for test harnesses).
func New(cap, threshold int) *Heap {
	return &Heap{cap: cap, threshold: threshold}
}

// Bind wires the GC used by automatic pre-allocation collection; done
// after construction because pkg/gc.GC needs a *Heap to read roots from.
func (h *Heap) Bind(gc Collector) { h.gc = gc }

// Len reports the number of live (non-released) objects.
func (h *Heap) Len() int { return h.live }

// Cap reports the configured live-object cap (0 = unbounded).
func (h *Heap) Cap() int { return h.cap }

// Allocate installs obj in the arena and returns a stable handle. Per
// spec.md §4.1, this may trigger GC first once the live count exceeds the
// configured threshold, and fails loudly if the cap would still be
// exceeded afterward.
func (h *Heap) Allocate(obj value.HeapObject) (Handle, error) {
	if h.gc != nil && h.threshold > 0 && h.live >= h.threshold {
		h.gc.CollectForAlloc()
	}
	if h.cap > 0 && h.live >= h.cap {
		return -1, &ErrBadAlloc{Cap: h.cap}
	}
	h.entries = append(h.entries, obj)
	h.live++
	return Handle(len(h.entries) - 1), nil
}

// Get dereferences a handle; nil means the slot was released by a prior
// sweep (a caller holding such a handle would violate spec.md §3.5's
// invariant, so this should never observe nil in a correct program).
func (h *Heap) Get(hdl Handle) value.HeapObject {
	if int(hdl) < 0 || int(hdl) >= len(h.entries) {
		return nil
	}
	return h.entries[hdl]
}

// ForEachLive visits every currently-allocated (non-released) slot; the
// GC's sweep phase uses this to decide what to release.
func (h *Heap) ForEachLive(visit func(Handle, value.HeapObject)) {
	for i, obj := range h.entries {
		if obj != nil {
			visit(Handle(i), obj)
		}
	}
}

// Release retires a slot (GC sweep only — spec.md §4.1: "called only by
// GC sweep").
func (h *Heap) Release(hdl Handle) {
	if int(hdl) < 0 || int(hdl) >= len(h.entries) {
		return
	}
	if h.entries[hdl] != nil {
		h.entries[hdl] = nil
		h.live--
	}
}
