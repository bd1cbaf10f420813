package gc

// NurseryProcessEdges constructs the edge-processing packet used for
// nursery collections: every nursery object reached is evacuated into
// the current tospace, mature objects already in the tospace keep their
// address and are scanned the first time they are reached since the last
// mature GC (see Semispace.TraceObject), anything reached in the
// fromspace is left as a leaf (see edges.go's traceObject KindNursery
// branch), and the common space is marked but not copied. Grounded on plan/gencopy/gc_works.rs's
// GenCopyNurseryProcessEdges, which is ProcessEdgesWork specialized to
// trace only into the nursery space.
func NurseryProcessEdges(kind EdgeKind, edges []Address, plan *GenCopyPlan, om ObjectModelAccessor) *EdgePacket {
	return NewEdgePacket(kind, edges, plan, om)
}
