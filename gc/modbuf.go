package gc

import "sync"

// ModBuf is the write-barrier's remembered set: the two vectors spec §3
// describes — modified nodes (mature objects a barrier fired on) and
// modified edges (the slots written into) — recorded independently so a
// nursery GC can find nursery-pointing edges without tracing the whole
// mature generation. Grounded on the teacher's write-barrier shading in
// runtime/mbarrier.go (a Dijkstra write barrier recording newly-stored
// pointers) combined with plan/gencopy/gc_works.rs's GenCopyProcessModBuf,
// which drains both vectors independently.
type ModBuf struct {
	mu    sync.Mutex
	nodes []ObjectReference
	edges []Address
}

// NewModBuf returns an empty remembered set.
func NewModBuf() *ModBuf { return &ModBuf{} }

// RecordEdge appends slot to the remembered set. Called by the VM
// binding's write barrier whenever a mature-space object's field is
// stored into (spec §4.3); nursery-to-nursery and nursery-to-mature
// writes need no barrier, since nursery objects are always traced in
// full.
func (m *ModBuf) RecordEdge(slot Address) {
	m.mu.Lock()
	m.edges = append(m.edges, slot)
	m.mu.Unlock()
}

// RecordNode appends node — the mature object a write barrier fired on
// — to the remembered set, independent of the edge vector (spec §3's
// "two vectors: modified nodes and modified edges").
func (m *ModBuf) RecordNode(node ObjectReference) {
	m.mu.Lock()
	m.nodes = append(m.nodes, node)
	m.mu.Unlock()
}

// DrainEdges removes and returns every recorded edge slot, resetting
// that half of the buffer.
func (m *ModBuf) DrainEdges() []Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	edges := m.edges
	m.edges = nil
	return edges
}

// DrainNodes removes and returns every recorded modified node, resetting
// that half of the buffer.
func (m *ModBuf) DrainNodes() []ObjectReference {
	m.mu.Lock()
	defer m.mu.Unlock()
	nodes := m.nodes
	m.nodes = nil
	return nodes
}

// ProcessModBufPacket replays the mutators' recorded remembered-set
// contents as work, but only on a nursery GC: a mature GC traces the
// entire heap from scratch, so whatever the mod buffer holds is already
// subsumed and is simply discarded (spec §4.3's gating). Grounded on
// GenCopyProcessModBuf, which — on a nursery GC — enqueues a ScanObjects
// packet for the modified nodes and a fresh edge-processing packet for
// the modified edges.
type ProcessModBufPacket struct {
	plan   *GenCopyPlan
	modBuf *ModBuf
}

// NewProcessModBufPacket packages buf's current contents for replay.
func NewProcessModBufPacket(plan *GenCopyPlan, buf *ModBuf) *ProcessModBufPacket {
	return &ProcessModBufPacket{plan: plan, modBuf: buf}
}

func (p *ProcessModBufPacket) Do(w *GCWorker) {
	if p.plan.Kind() == KindMature {
		// Mature GC subsumes the remembered set entirely; drain and
		// discard both vectors so the next nursery GC starts empty.
		p.modBuf.DrainNodes()
		p.modBuf.DrainEdges()
		return
	}
	if nodes := p.modBuf.DrainNodes(); len(nodes) > 0 {
		w.Scheduler().Closure().Add(&ScanObjectsPacket{objects: nodes, plan: p.plan, om: w.Binding()})
	}
	if edges := p.modBuf.DrainEdges(); len(edges) > 0 {
		// todo is this meant to be normal(?) — preserved from the original's
		// own inline comment on this exact hardcoding.
		scheduleEdgesOfKind(w, p.plan, NormalEdges, edges)
	}
}
