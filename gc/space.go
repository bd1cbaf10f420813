package gc

import "sync"

// Space is the uniform tracing contract every policy space implements
// (spec §3's "common/immortal/large/VM... traced via a generic policy
// contract without copying", §4.4's dispatch across spaces). Copying
// spaces (Nursery, Semispace) additionally implement CopyingSpace.
type Space interface {
	// Name identifies the space for diagnostics.
	Name() string
	// InSpace reports whether obj currently resides in this space.
	InSpace(obj ObjectReference) bool
	// AddressInSpace reports whether a raw slot address falls within this
	// space's backing region (used for fromspace-containment asserts).
	AddressInSpace(addr Address) bool
}

// copyingSpace is implemented by spaces that evacuate objects when traced
// (Nursery and Semispace), as opposed to CommonSpace which only marks.
type copyingSpace interface {
	Space
	// TraceObject traces obj: if unmarked, claims the forward, copies via
	// cc into the space semantics describes, installs forwarding, and
	// returns the new reference; if already forwarded, returns the
	// installed forwarding pointer (spec §4.4, the CAS race resolution).
	// firstVisit reports whether this call is the one that newly claimed
	// obj (or newly marked it resident), the signal callers use to decide
	// whether to enqueue its children for scanning.
	TraceObject(om ObjectModelAccessor, obj ObjectReference, semantics AllocationSemantics, cc *CopyContext) (traced ObjectReference, firstVisit bool)
}

// ObjectModelAccessor is the narrow slice of vm.ObjectModel the space
// layer needs; defined here (rather than importing vm in every file) so
// space.go and plan.go stay readable. A vm.Binding satisfies it directly
// (it embeds vm.ObjectModel), so packets pass the worker's binding.
type ObjectModelAccessor interface {
	IsForwarded(obj ObjectReference) bool
	TryForward(obj ObjectReference) bool
	InstallForwardingPointer(obj, newObj ObjectReference)
	ForwardedObject(obj ObjectReference) ObjectReference
	ClearForwardingBits(obj ObjectReference)
	CopyObject(original ObjectReference, newAddr Address, bytes int) ObjectReference
	ObjectSize(obj ObjectReference) int
}

// Nursery is the bump-allocated young generation: always evacuated,
// source of young objects (spec §3). Unlike a GCWorker's per-worker
// CopyContext allocator, the nursery's mutator-facing allocator is
// shared across every allocating mutator and therefore guarded by a
// mutex rather than owned exclusively.
type Nursery struct {
	region *Region
	bitmap *AllocBitmap

	allocMu   sync.Mutex
	allocator Allocator
}

// NewNursery creates a nursery of the given size backed by its own region.
func NewNursery(sizeBytes int, bitmap *AllocBitmap) *Nursery {
	n := &Nursery{region: NewRegion(sizeBytes), bitmap: bitmap}
	n.allocator.Rebind(n.region)
	return n
}

// Alloc bump-allocates bytes of new object space for tls, returning
// ErrOutOfSpace once the nursery is exhausted. Safe for concurrent use
// by multiple mutators.
func (n *Nursery) Alloc(tls OpaquePointer, bytes, align, offset int) (Address, error) {
	n.allocMu.Lock()
	defer n.allocMu.Unlock()
	n.allocator.Init(tls)
	addr, err := n.allocator.Alloc(bytes, align, offset)
	if err != nil {
		return 0, err
	}
	n.bitmap.SetAllocBit(addr)
	return addr, nil
}

// ResetAllocator rebinds the nursery's bump allocator back to its own
// region's base, discarding every allocation made since the last GC.
// Every GC, nursery or mature, fully evacuates the nursery and then
// calls this at Release.
func (n *Nursery) ResetAllocator() {
	n.allocMu.Lock()
	n.region.Reset()
	n.allocator.Rebind(n.region)
	n.allocMu.Unlock()
}

func (n *Nursery) Name() string { return "nursery" }

func (n *Nursery) InSpace(obj ObjectReference) bool {
	return n.region.Contains(obj.ToAddress())
}

func (n *Nursery) AddressInSpace(addr Address) bool {
	return n.region.Contains(addr)
}

// Region exposes the backing region so the plan can reset it on release.
func (n *Nursery) Region() *Region { return n.region }

// TraceObject evacuates obj out of the nursery into the space cc is bound
// to (the active tospace), claiming the forward atomically, copying,
// installing forwarding, and clearing the copy's forwarding bits (spec
// §4.4's nursery-trace delegation, §4.2's alloc_copy/post_copy contract).
func (n *Nursery) TraceObject(om ObjectModelAccessor, obj ObjectReference, semantics AllocationSemantics, cc *CopyContext) (ObjectReference, bool) {
	return traceAndEvacuate(om, obj, semantics, cc, true)
}

// traceAndEvacuate is the shared forward-claim/copy/install sequence used
// by every copying space's TraceObject (spec §4.4 "the only race on
// forwarding is resolved by a per-object CAS"). promoted marks whether
// this copy counts as a nursery-to-mature promotion for stats purposes;
// evacuating an already-mature object between semispaces is not.
func traceAndEvacuate(om ObjectModelAccessor, obj ObjectReference, semantics AllocationSemantics, cc *CopyContext, promoted bool) (ObjectReference, bool) {
	if om.IsForwarded(obj) {
		// Either already forwarded, or another thread is racing to
		// forward it; spin until the pointer is installed. Idempotent
		// per spec §8 "re-running trace on an already-forwarded object
		// is idempotent".
		return waitForForward(om, obj), false
	}
	if !om.TryForward(obj) {
		return waitForForward(om, obj), false
	}
	bytes := om.ObjectSize(obj)
	newAddr, err := cc.AllocCopy(obj, bytes, wordBytes, 0, semantics)
	if err != nil {
		fatal("gc: alloc_copy failed during evacuation: %v", err)
	}
	newObj := om.CopyObject(obj, newAddr, bytes)
	cc.plan.Bitmap().SetAllocBit(newAddr)
	om.InstallForwardingPointer(obj, newObj)
	cc.PostCopy(newObj, 0, bytes, semantics)
	cc.plan.recordCopy(bytes, promoted)
	return newObj, true
}

func waitForForward(om ObjectModelAccessor, obj ObjectReference) ObjectReference {
	for {
		fwd := om.ForwardedObject(obj)
		if !fwd.IsNull() {
			return fwd
		}
		// Losing racer: the winner has claimed the forward but not yet
		// installed the pointer. Busy-wait; the window is the length of
		// one memcpy plus a pointer store.
	}
}

// Semispace is one half of the mature generation's from/to pair. Roles
// swap at each mature GC (spec §3's From-/To-space).
type Semispace struct {
	name    string
	region  *Region
	bitmap  *AllocBitmap
	scanned map[ObjectReference]bool // open question #5: mark-only no-op-on-scanned for already-forwarded tospace residents
}

// NewSemispace creates a semispace of the given size.
func NewSemispace(name string, sizeBytes int, bitmap *AllocBitmap) *Semispace {
	return &Semispace{name: name, region: NewRegion(sizeBytes), bitmap: bitmap, scanned: make(map[ObjectReference]bool)}
}

func (s *Semispace) Name() string { return s.name }

func (s *Semispace) InSpace(obj ObjectReference) bool {
	return s.region.Contains(obj.ToAddress())
}

func (s *Semispace) AddressInSpace(addr Address) bool {
	return s.region.Contains(addr)
}

func (s *Semispace) Region() *Region { return s.region }

// TraceObject implements copyingSpace. When s is the active tospace
// (SPEC_FULL §8 open question #5), an object already resident there is
// from an earlier promotion or scan this same GC: it is already "forward
// to itself" — we mark it scanned-once so MatureTrace can enqueue its
// children exactly once instead of re-copying it.
func (s *Semispace) TraceObject(om ObjectModelAccessor, obj ObjectReference, semantics AllocationSemantics, cc *CopyContext) (ObjectReference, bool) {
	if s.isActiveTospace(cc) {
		return obj, s.markScannedOnce(obj)
	}
	return traceAndEvacuate(om, obj, semantics, cc, false)
}

func (s *Semispace) isActiveTospace(cc *CopyContext) bool {
	return cc.allocator.region == s.region
}

func (s *Semispace) markScannedOnce(obj ObjectReference) (first bool) {
	// Guarded by the caller's single-worker-per-object-during-a-GC
	// assumption is too strong across workers; use a tiny per-call lock
	// since scanned is only consulted, never hot-looped, during closure.
	scanMu.Lock()
	defer scanMu.Unlock()
	if s.scanned[obj] {
		return false
	}
	s.scanned[obj] = true
	return true
}

// ResetScanned clears the scanned-this-GC set; called by the plan's
// Release for both semispaces at the end of a mature GC.
func (s *Semispace) ResetScanned() {
	scanMu.Lock()
	s.scanned = make(map[ObjectReference]bool)
	scanMu.Unlock()
}

// scanMu guards the scanned/marked bookkeeping maps on Semispace and
// CommonSpace. Contention is low: each map entry is touched at most once
// per object per GC, on the already-synchronized closure path.
var scanMu sync.Mutex

// CommonSpace covers immortal/large/VM objects: traced via a uniform
// mark, never copied (spec §3, §4.4 "non-copying trace").
type CommonSpace struct {
	region *Region
	marked map[ObjectReference]bool
}

// NewCommonSpace wraps an externally-managed region (e.g. large object
// space) that the core only marks, never allocates into directly.
func NewCommonSpace(region *Region) *CommonSpace {
	return &CommonSpace{region: region, marked: make(map[ObjectReference]bool)}
}

func (c *CommonSpace) Name() string { return "common" }

func (c *CommonSpace) InSpace(obj ObjectReference) bool {
	return c.region.Contains(obj.ToAddress())
}

func (c *CommonSpace) AddressInSpace(addr Address) bool {
	return c.region.Contains(addr)
}

// TraceObject marks obj live without copying it, returning it unchanged.
// The bool result reports whether this is the first time it was marked
// this GC (callers enqueue for scanning only on first mark).
func (c *CommonSpace) TraceObject(obj ObjectReference) (unchanged ObjectReference, firstMark bool) {
	scanMu.Lock()
	defer scanMu.Unlock()
	if c.marked[obj] {
		return obj, false
	}
	c.marked[obj] = true
	return obj, true
}

// ResetMarks clears the mark set; called by the plan's Release.
func (c *CommonSpace) ResetMarks() {
	scanMu.Lock()
	c.marked = make(map[ObjectReference]bool)
	scanMu.Unlock()
}
