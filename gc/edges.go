package gc

import "sync"

// discoveredPool recycles the scratch []ObjectReference buffers an
// EdgePacket.Do call fills in with newly-discovered objects, mirroring
// the teacher's sync/pool-1.15.go victim-cache pattern for exactly this
// kind of per-GC, capacity-bounded scratch slice (runtime itself cannot
// use sync.Pool on its own workbufs, since the pool is implemented in
// terms of the GC; this package has no such constraint).
var discoveredPool = sync.Pool{
	New: func() any {
		s := make([]ObjectReference, 0, edgeCapacity)
		return &s
	},
}

// edgeCapacity bounds how many edges a single packet batches before the
// engine flushes it as a unit of schedulable work, mirroring the
// teacher's workbuf sizing in mgcwork.go (a fixed-capacity buffer that
// is handed off wholesale rather than grown). scheduler/gc_works.rs uses
// the same constant for its EdgesWorkBuffer.
const edgeCapacity = 4096

// EdgeKind distinguishes an ordinary pointer-sized slot from an interior
// pointer that must first be resolved to its containing object's head
// via the alloc bitmap before it can be traced (spec §4.1, §4.4).
type EdgeKind int

const (
	NormalEdges EdgeKind = iota
	InteriorEdges
)

// EdgePacket is a bounded batch of edges (object slots) awaiting
// tracing, the fundamental unit the scheduler moves between buckets.
// Grounded on runtime/mgcwork.go's workbuf (a capacity-bounded slice
// handed between a producer and the global work list) combined with
// scheduler/gc_works.rs's ProcessEdgesWork/ProcessEdgesBase, which adds
// the normal/interior preprocessing split this plan needs.
type EdgePacket struct {
	kind  EdgeKind
	edges []Address
	plan  *GenCopyPlan
	om    ObjectModelAccessor
}

// NewEdgePacket wraps a batch of edges of the given kind. The size is
// not checked here: scheduleEdgesOfKind splits root and remembered-set
// edges into batches of at most edgeCapacity, while ScanObjectsPacket.Do
// passes every edge its objects yield in one packet.
func NewEdgePacket(kind EdgeKind, edges []Address, plan *GenCopyPlan, om ObjectModelAccessor) *EdgePacket {
	return &EdgePacket{kind: kind, edges: edges, plan: plan, om: om}
}

// Do implements WorkPacket: it processes every edge in the batch,
// tracing the object it points to and writing back the (possibly moved)
// reference, then hands any newly discovered children on to the
// scheduler as further ScanObjects packets (spec §4.4's process loop).
func (p *EdgePacket) Do(worker *GCWorker) {
	p.plan.recordScanWork()
	semantics := SemanticsDefault
	discoveredPtr := discoveredPool.Get().(*[]ObjectReference)
	discovered := (*discoveredPtr)[:0]
	for _, slot := range p.edges {
		newObj, ok := p.processEdge(worker, slot, semantics)
		if !ok {
			continue
		}
		discovered = append(discovered, newObj)
	}
	retained := p.flushDiscovered(worker, discovered)
	if !retained {
		*discoveredPtr = discovered[:0]
		discoveredPool.Put(discoveredPtr)
	}
}

// processEdge resolves one slot to the object it currently points at
// (applying interior-pointer preprocessing first, if this packet is
// InteriorEdges), traces that object through the plan's active spaces,
// writes the forwarded reference back into the slot, and returns the
// traced object plus whether it should be scanned for further children.
//
// This mirrors ProcessEdgesBase::trace_object dispatching across spaces
// by InSpace membership, generalized here to the plan's fixed
// nursery/semispace/common layout rather than an open space list.
func (p *EdgePacket) processEdge(worker *GCWorker, slot Address, semantics AllocationSemantics) (ObjectReference, bool) {
	raw := loadObjectReference(slot)
	if raw.IsNull() {
		return nullObject, false
	}

	var object ObjectReference
	if p.kind == InteriorEdges {
		object = p.plan.Bitmap().FindObject(raw.ToAddress())
	} else {
		object = raw
	}

	traced, firstVisit := p.traceObject(worker, object, semantics)

	if p.kind == InteriorEdges {
		// The slot held offset = raw - object; preserve that offset into
		// the (possibly relocated) copy, per spec §4.1's interior-pointer
		// rewrite rule.
		offset := raw.ToAddress().Diff(object.ToAddress())
		storeObjectReference(slot, ObjectReference(traced.ToAddress().Add(uintptr(offset))))
	} else {
		storeObjectReference(slot, traced)
	}

	if !firstVisit {
		return nullObject, false
	}
	registerIfReferenceObject(worker, p.plan, traced)
	return traced, true
}

// registerIfReferenceObject asks worker's binding, if it implements the
// optional ReferenceGlue capability, whether obj is a reference object;
// if so it is recorded in the plan's reference table so RefClosure can
// later decide whether it survived this GC. A binding with no
// ReferenceGlue never populates the table, and RefClosure's Clear stays
// an honest no-op (spec §7).
func registerIfReferenceObject(worker *GCWorker, plan *GenCopyPlan, obj ObjectReference) {
	rg, ok := worker.Binding().(ReferenceGlue)
	if !ok || !rg.IsReferenceObject(obj) {
		return
	}
	plan.References().Register(obj)
}

// traceObject dispatches to whichever space currently owns object,
// returning the (possibly new) reference plus whether this is the first
// time this GC that the object was traced (used to decide whether to
// enqueue it for child-scanning).
func (p *EdgePacket) traceObject(worker *GCWorker, object ObjectReference, semantics AllocationSemantics) (ObjectReference, bool) {
	plan := p.plan
	switch {
	case plan.Nursery().InSpace(object):
		return plan.Nursery().TraceObject(p.om, object, semantics, worker.CopyContext())
	case plan.Tospace().InSpace(object):
		return plan.Tospace().TraceObject(p.om, object, semantics, worker.CopyContext())
	case plan.Fromspace().InSpace(object):
		if plan.Kind() == KindNursery {
			// A nursery GC never condemns the mature generation: the
			// fromspace role only becomes meaningful on a mature GC, so
			// any live edge reaching in here this round points at a
			// stable mature object that keeps its address and is not
			// rescanned (see trace_nursery.go).
			return object, false
		}
		return plan.Fromspace().TraceObject(p.om, object, semantics, worker.CopyContext())
	default:
		return plan.Common().TraceObject(object)
	}
}

// flushDiscovered batches newly-discovered objects into ScanObjects
// packets of at most edgeCapacity each and schedules them into the
// Closure bucket, unless SCAN_OBJECTS_IMMEDIATELY applies (small
// batches are scanned inline on the current worker instead of paying a
// scheduling round-trip — scheduler/gc_works.rs's optimization of the
// same name). It reports whether discovered's backing array was handed
// off to a scheduled packet (retained=true): the caller must not return
// a retained buffer to discoveredPool, since a sibling worker may still
// be reading it.
func (p *EdgePacket) flushDiscovered(worker *GCWorker, discovered []ObjectReference) (retained bool) {
	if len(discovered) == 0 {
		return false
	}
	if len(discovered) <= scanObjectsImmediatelyThreshold {
		(&ScanObjectsPacket{objects: discovered, plan: p.plan, om: p.om}).Do(worker)
		return false
	}
	for start := 0; start < len(discovered); start += edgeCapacity {
		end := start + edgeCapacity
		if end > len(discovered) {
			end = len(discovered)
		}
		batch := discovered[start:end]
		worker.Scheduler().Closure().Add(&ScanObjectsPacket{objects: batch, plan: p.plan, om: p.om})
	}
	return true
}

// scanObjectsImmediatelyThreshold is the cutover point below which
// scanning inline beats a scheduler round-trip; chosen the same way the
// original's SCAN_OBJECTS_IMMEDIATELY flag is: small enough that queueing
// overhead would dominate actual scan work.
const scanObjectsImmediatelyThreshold = 1

// ScanObjectsPacket scans a batch of already-traced objects for their
// outgoing edges, handing each object's fields to the VM binding's
// ScanObjects callback and re-packaging whatever edges come back into a
// fresh EdgePacket for the next round of tracing. Grounded on
// scheduler/gc_works.rs's ScanObjects packet.
type ScanObjectsPacket struct {
	objects    []ObjectReference
	plan       *GenCopyPlan
	om         ObjectModelAccessor
	Concurrent bool // plumbed but always false for this plan; see SPEC_FULL §7
}

// Do implements WorkPacket.
func (s *ScanObjectsPacket) Do(worker *GCWorker) {
	var collector edgeCollector
	worker.Binding().ScanObjects(s.objects, &collector)
	if len(collector.edges) == 0 {
		return
	}
	pkt := NewEdgePacket(NormalEdges, collector.edges, s.plan, s.om)
	pkt.Do(worker)
}

// edgeCollector adapts vm.EdgeVisitor to a plain slice so ScanObjects'
// push-style callback can be replayed as a batch EdgePacket.
type edgeCollector struct {
	edges []Address
}

func (c *edgeCollector) VisitEdge(slot Address) {
	c.edges = append(c.edges, slot)
}

func loadObjectReference(slot Address) ObjectReference {
	return *(*ObjectReference)(addressPointer(slot))
}

func storeObjectReference(slot Address, value ObjectReference) {
	*(*ObjectReference)(addressPointer(slot)) = value
}
