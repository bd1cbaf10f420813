package gc

// ReferenceProcessors is the home of the RefClosure stage's real work:
// processing weak/soft/phantom reference objects discovered during the
// preceding Closure stage. Supplemented from original_source per
// SPEC_FULL §7 (the distilled spec names the RefClosure bucket but does
// not say what runs in it beyond "follows Closure"); the original's
// ReferenceProcessors.clear() is the concrete operation this bucket
// exists for, and is preserved here even though this plan does not
// implement reference strength classification itself. Classification is
// delegated to the VM binding's optional vm.ReferenceGlue: a binding
// that implements it gets its reference objects registered as they are
// traced (see registerIfReferenceObject in edges.go); a binding that
// doesn't leaves this table permanently empty, and RefClosure's Clear is
// an honest no-op rather than a silently-dead feature.
type ReferenceProcessors struct {
	references []ObjectReference
}

// NewReferenceProcessors returns an empty table.
func NewReferenceProcessors() *ReferenceProcessors {
	return &ReferenceProcessors{}
}

// Register records a reference object discovered as a root or edge
// target so Clear can later decide whether its referent survived. The
// only caller is registerIfReferenceObject, gated on the binding
// implementing vm.ReferenceGlue.
func (r *ReferenceProcessors) Register(ref ObjectReference) {
	r.references = append(r.references, ref)
}

// ResetForGC empties the table ahead of a new GC's Closure stage, so
// each collection registers only the reference objects it actually
// traces rather than accumulating them across GCs.
func (r *ReferenceProcessors) ResetForGC() {
	r.references = nil
}

// Clear filters the table down to references whose referent was
// forwarded during Closure (i.e. traced live this GC), dropping the
// rest. It does not empty the table: surviving entries remain until the
// next GC's ResetForGC clears it, since a host may want to read the
// live set between RefClosure and the next collection.
func (r *ReferenceProcessors) Clear(om ObjectModelAccessor) {
	live := r.references[:0]
	for _, ref := range r.references {
		if om.IsForwarded(ref) {
			live = append(live, ref)
		}
	}
	r.references = live
}

// refClosurePacket is the RefClosure bucket's sole entry point: it asks
// the plan's reference table to clear dead entries. Grounded on
// scheduler/gc_works.rs's RefClosure bucket, whose real payload in the
// original plan is exactly a reference-processor clear call.
type refClosurePacket struct {
	plan *GenCopyPlan
}

func (p *refClosurePacket) Do(w *GCWorker) {
	p.plan.refs.Clear(w.Binding())
}
