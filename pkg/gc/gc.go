// Package gc implements the stop-the-world mark-and-sweep collector of
// spec.md §4.8: a breadth-first mark from the VM's roots over the heap's
// object graph, followed by a sweep that releases everything left
// unmarked. It knows nothing about bytecode or the VM's call stack beyond
// the RootProvider interface — the VM supplies roots, the heap supplies
// live objects to visit, and gc.GC only orchestrates the two.
package gc

import (
	"derkjs/pkg/heap"
	"derkjs/pkg/value"
)

// marker is the GC mark-bit surface every heap object exposes (promoted
// from values.ObjectBase; matched structurally so this package never has
// to import pkg/values).
type marker interface {
	SetGCUnknown()
	SetGCLive()
	IsGCLive() bool
}

// traversable is implemented by every heap object class to enqueue its
// outgoing edges (own property values, prototype, and any class-specific
// extra edges such as a capture's parent or a lambda's capture).
type traversable interface {
	Traverse(visit func(value.Value))
}

// RootProvider is implemented by the VM: every Value currently reachable
// from the running program without going through the heap itself (spec.md
// §4.8 "Roots").
type RootProvider interface {
	// Roots appends every root Value to out and returns the result. This
	// includes the operand stack, every frame's this/callee/capture, all
	// globally preloaded handles, and the pending-error slot.
	Roots(out []value.Value) []value.Value
}

// Stats summarizes one collection cycle, surfaced to diagnostics/hosts.
type Stats struct {
	LiveBefore int
	LiveAfter  int
	Collected  int
}

// GC coordinates mark-and-sweep over a *heap.Heap using roots from a
// RootProvider. It is not safe for concurrent use — spec.md §5 requires a
// single-threaded VM, and "Running GC mid-allocation is forbidden" (§4.8).
type GC struct {
	heap  *heap.Heap
	roots RootProvider
	// LastStats records the most recent cycle for diagnostics.
	LastStats Stats
}

func New(h *heap.Heap, roots RootProvider) *GC {
	return &GC{heap: h, roots: roots}
}

// CollectForAlloc satisfies heap.Collector for the heap's own
// pre-allocation trigger (spec.md §4.1); it discards the Stats Collect
// itself returns since the heap has no use for them.
func (g *GC) CollectForAlloc() { g.Collect() }

// Collect runs one full mark-and-sweep cycle. Mark bits are reset between
// cycles (spec.md §4.8 invariant): every live object starts each cycle as
// markUnknown via resetMarks, then mark() promotes reachable ones to live.
func (g *GC) Collect() Stats {
	before := g.heap.Len()

	g.resetMarks()
	g.mark()
	collected := g.sweep()

	g.LastStats = Stats{LiveBefore: before, LiveAfter: before - collected, Collected: collected}
	return g.LastStats
}

func (g *GC) resetMarks() {
	g.heap.ForEachLive(func(_ heap.Handle, obj value.HeapObject) {
		if m, ok := obj.(marker); ok {
			m.SetGCUnknown()
		}
	})
}

// mark performs the breadth-first traversal from roots (spec.md §4.8).
func (g *GC) mark() {
	roots := g.roots.Roots(nil)
	queue := make([]value.HeapObject, 0, len(roots))
	for _, v := range roots {
		if v.IsHeapRef() && v.AsHeapObject() != nil {
			queue = append(queue, v.AsHeapObject())
		}
	}

	for len(queue) > 0 {
		obj := queue[0]
		queue = queue[1:]

		m, ok := obj.(marker)
		if ok && m.IsGCLive() {
			continue // already visited — BFS must not requeue live nodes
		}
		if ok {
			m.SetGCLive()
		}

		if t, ok := obj.(traversable); ok {
			t.Traverse(func(child value.Value) {
				if child.IsHeapRef() && child.AsHeapObject() != nil {
					queue = append(queue, child.AsHeapObject())
				}
			})
		}
	}
}

// sweep releases every heap slot whose mark is not live (spec.md §4.8:
// "any object whose mark is not live is released"). Interned key strings
// are never swept here because the intern table never hands the heap a
// Handle for its keys to own independently — key identity lives in
// pkg/intern, outside this heap's reach, matching spec.md's note that
// "interned key handles kept by the global intern map remain live."
func (g *GC) sweep() int {
	collected := 0
	g.heap.ForEachLive(func(hdl heap.Handle, obj value.HeapObject) {
		m, ok := obj.(marker)
		if ok && m.IsGCLive() {
			return
		}
		g.heap.Release(hdl)
		collected++
	})
	return collected
}
