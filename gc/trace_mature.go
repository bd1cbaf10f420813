package gc

// MatureProcessEdges constructs the edge-processing packet used for
// mature (full-heap) collections: every object reached, whether in the
// nursery, the condemned fromspace, or already resident in the active
// tospace, is traced through the same forward-or-mark-once path (spec
// §4.4); nothing is left unscanned, since a mature GC is what retires
// the remembered set entirely (spec §4.3). Grounded on
// plan/gencopy/gc_works.rs's GenCopyMatureProcessEdges, which differs
// from the nursery variant only in tracing into both copyspaces instead
// of stopping at the nursery boundary.
func MatureProcessEdges(kind EdgeKind, edges []Address, plan *GenCopyPlan, om ObjectModelAccessor) *EdgePacket {
	return NewEdgePacket(kind, edges, plan, om)
}
