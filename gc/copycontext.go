package gc

// CopyContext is the per-worker evacuation allocator, bound to the
// plan's active tospace at the start of every GC and rebound again at
// Prepare if the plan flips spaces between GCs. Grounded on
// plan/gencopy/gc_works.rs's GenCopyCopyContext, which wraps exactly one
// CopySpace bump allocator and a handful of pass-through methods onto it.
type CopyContext struct {
	allocator Allocator
	om        ObjectModelAccessor
	plan      *GenCopyPlan
}

// NewCopyContext constructs a CopyContext bound to plan, with an
// allocator that is not yet rebound to a region; Prepare must be called
// before any AllocCopy.
func NewCopyContext(plan *GenCopyPlan, om ObjectModelAccessor, tls OpaquePointer) *CopyContext {
	cc := &CopyContext{plan: plan, om: om}
	cc.allocator.Init(tls)
	return cc
}

// Prepare rebinds the copy context's allocator to the plan's current
// copy-space target (the nursery evacuates into the active tospace; a
// mature GC evacuates survivors into the plan's inactive semispace,
// which becomes the new tospace for the duration of that GC). Called
// once per worker at the start of every GC (spec §4.2).
func (cc *CopyContext) Prepare() {
	cc.allocator.Rebind(cc.plan.copyTargetRegion())
}

// Release is intentionally a no-op: the bump allocator's state is fully
// captured by its cursor/limit, which the next GC's Prepare overwrites
// by rebinding. SPEC_FULL §8 open question #4 preserves this behavior
// verbatim from GenCopyCopyContext::release, which is likewise empty.
func (cc *CopyContext) Release() {}

// AllocCopy bump-allocates room for a copy of size bytes in the bound
// tospace region, aligned to align with the object's data starting
// offset bytes into the allocation. semantics is accepted for interface
// symmetry with the wider MMTk-style alloc_copy contract; this plan
// always copies into the same region regardless of semantics value.
func (cc *CopyContext) AllocCopy(original ObjectReference, bytes, align, offset int, semantics AllocationSemantics) (Address, error) {
	if cc.plan.currentPhase() == phaseIdle {
		fatal("gc: AllocCopy called while no GC is in progress")
	}
	_ = original
	_ = semantics
	return cc.allocator.Alloc(bytes, align, offset)
}

// PostCopy clears the forwarding bits freshly copied-into newObj may
// carry over from the original's header layout, per
// GenCopyCopyContext::post_copy delegating straight to
// ObjectModel::clear_forwarding_bits.
func (cc *CopyContext) PostCopy(newObj ObjectReference, offset, bytes int, semantics AllocationSemantics) {
	_ = offset
	_ = bytes
	_ = semantics
	cc.om.ClearForwardingBits(newObj)
}
