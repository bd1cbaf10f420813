package gc

// This file catalogs the fixed set of work packets that drive a single
// collection from trigger to completion, grounded on
// scheduler/gc_works.rs's StopMutators / Prepare / {Prepare,Release}{Mutator,Collector}
// / ScanStackRoot(s) / ScanVMSpecificRoots / EndOfGC packets, combined
// with the teacher's stopTheWorldWithSema/startTheWorldWithSema pairing
// in runtime/proc.go for the mutator quiesce/resume bracketing.

// requeueIfNotCoordinator implements the Coordination Glue's routing
// rule (spec §2, §4.6): ScheduleCollection, StopMutators and EndOfGC
// must run on the scheduler's single coordinator worker. A bucket is
// drained by every worker racing Poll, so an ordinary worker can just as
// easily pop a coordinator packet; when that happens it puts the packet
// straight back into bucket rather than executing it, mirroring the
// original's GCWork::do_work_with_stat requeue-as-coordinator-work path
// (scheduler/gc_works.rs:176-213). It reports whether it requeued, so
// the caller's Do can return immediately.
func requeueIfNotCoordinator(w *GCWorker, bucket *WorkBucket, p WorkPacket) bool {
	if w.IsCoordinator() {
		return false
	}
	bucket.Add(p)
	return true
}

// ScheduleCollectionPacket is the very first packet run on a GC trigger:
// it decides nursery vs mature, resets the plan's per-GC bookkeeping,
// and seeds the Unconstrained bucket with StopMutators. A coordinator
// packet (spec §4.6).
type ScheduleCollectionPacket struct {
	plan *GenCopyPlan
}

func (p *ScheduleCollectionPacket) Do(w *GCWorker) {
	if requeueIfNotCoordinator(w, w.Scheduler().Unconstrained(), p) {
		return
	}
	kind := p.plan.DetermineCollectionKind()
	p.plan.SetKind(kind)
	p.plan.recordCollection(kind)
	p.plan.References().ResetForGC()
	w.Scheduler().resetMutatorsPaused()
	p.plan.setPhase(phaseStopped)
	w.Scheduler().Unconstrained().Add(&StopMutatorsPacket{plan: p.plan})
}

// StopMutatorsPacket quiesces every mutator thread via the binding's
// Collection.StopAllMutators, then seeds Prepare. A coordinator packet
// (spec §4.6): only the coordinator worker is allowed to bring mutators
// to a safepoint and flip notifyMutatorsPaused.
type StopMutatorsPacket struct {
	plan *GenCopyPlan
}

func (p *StopMutatorsPacket) Do(w *GCWorker) {
	if requeueIfNotCoordinator(w, w.Scheduler().Unconstrained(), p) {
		return
	}
	if scanned := p.plan.ScannedStacks(); scanned != 0 {
		fatal("gc: StopMutators: scanned_stacks must be zero before root scanning, got %d", scanned)
	}
	w.Binding().StopAllMutators(w.TLS())
	w.Scheduler().notifyMutatorsPaused()
	w.Scheduler().Prepare().Add(&PreparePacket{plan: p.plan})
}

// PreparePacket runs once: it flips the active tospace for a mature GC
// (a nursery GC reuses the existing tospace), then fans out
// PrepareMutator and PrepareCollector packets for every registered
// mutator and worker.
type PreparePacket struct {
	plan *GenCopyPlan
}

func (p *PreparePacket) Do(w *GCWorker) {
	if p.plan.Kind() == KindMature {
		p.plan.FlipSpaces()
	}
	sched := w.Scheduler()
	for _, m := range w.Binding().Mutators() {
		m := m
		sched.Prepare().Add(&PrepareMutatorPacket{mutator: m, tls: w.TLS(), plan: p.plan})
	}
	for _, worker := range sched.Workers() {
		sched.Prepare().Add(&PrepareCollectorPacket{worker: worker})
	}
	sched.Prepare().Add(&rootScanSeedPacket{plan: p.plan})
}

// PrepareMutatorPacket lets the binding reset any per-mutator allocation
// state (e.g. a TLAB) ahead of root scanning.
type PrepareMutatorPacket struct {
	mutator *Mutator
	tls     OpaquePointer
	plan    *GenCopyPlan
}

func (p *PrepareMutatorPacket) Do(w *GCWorker) {
	w.Binding().PrepareMutator(p.tls, p.mutator)
}

// PrepareCollectorPacket rebinds worker's CopyContext to the plan's
// current copy target.
type PrepareCollectorPacket struct {
	worker *GCWorker
}

func (p *PrepareCollectorPacket) Do(w *GCWorker) {
	p.worker.prepare()
}

// rootScanSeedPacket fans out the actual root-scanning packets. It is
// queued into Prepare alongside the per-mutator/per-worker prepares and
// may run before them (buckets pop in LIFO order), but the packets it
// adds go into Closure, which only opens once every Prepare packet has
// finished, so no root is traced before every copy context is prepared.
type rootScanSeedPacket struct {
	plan *GenCopyPlan
}

func (p *rootScanSeedPacket) Do(w *GCWorker) {
	sched := w.Scheduler()
	binding := w.Binding()

	if binding.SingleThreadMutatorScanning() {
		sched.Closure().Add(&ScanThreadRootsPacket{plan: p.plan})
	} else {
		for _, m := range binding.Mutators() {
			m := m
			sched.Closure().Add(&ScanThreadRootPacket{mutator: m, plan: p.plan})
		}
	}
	sched.Closure().Add(&ScanVMSpecificRootsPacket{plan: p.plan})
	sched.Closure().Add(NewProcessModBufPacket(p.plan, p.plan.ModBuf()))
}

// ScanThreadRootsPacket scans every mutator's roots from a single
// worker, used when the binding reports SingleThreadMutatorScanning.
type ScanThreadRootsPacket struct {
	plan *GenCopyPlan
}

func (p *ScanThreadRootsPacket) Do(w *GCWorker) {
	var collector edgeCollector
	w.Binding().ScanThreadRoots(&collector)
	scheduleRootEdges(w, p.plan, collector.edges)
	// This single packet already scans every mutator's stack in one
	// call, so there is no per-mutator completion to count against
	// NumberOfMutators the way ScanThreadRootPacket does below; it sets
	// the GcProper transition directly instead (spec §4.6's
	// single-thread ScanStackRoots variant).
	p.plan.setPhase(phaseTracing)
	w.Binding().NotifyInitialThreadScanComplete(false, w.TLS())
}

// ScanThreadRootPacket scans a single mutator's roots; one of these is
// scheduled per mutator when the binding wants per-thread packets
// (spec §4.5, "one packet per stack" mode).
type ScanThreadRootPacket struct {
	mutator *Mutator
	plan    *GenCopyPlan
}

func (p *ScanThreadRootPacket) Do(w *GCWorker) {
	var collector edgeCollector
	w.Binding().ScanThreadRoot(p.mutator, p.mutator.GetTLS(), &collector)
	scheduleRootEdges(w, p.plan, collector.edges)
	p.plan.IncScannedStacks()
	checkStacksScanned(w, p.plan, uint32(w.Binding().NumberOfMutators()))
}

// checkStacksScanned notifies the binding once every registered
// mutator's stack has been scanned this GC, so a binding that defers
// some work until roots are fully known (e.g. releasing a global lock)
// has a well-defined hook.
func checkStacksScanned(w *GCWorker, plan *GenCopyPlan, mutatorCount uint32) {
	if plan.AllStacksScanned(mutatorCount) {
		plan.setPhase(phaseTracing)
		w.Binding().NotifyInitialThreadScanComplete(false, w.TLS())
	}
}

// ScanVMSpecificRootsPacket scans host-specific root sets (globals,
// JIT code caches, whatever the binding considers a root beyond
// mutator stacks), split into normal and interior edge batches exactly
// as vm.Scanning.ScanVMSpecificRoots expects.
type ScanVMSpecificRootsPacket struct {
	plan *GenCopyPlan
}

func (p *ScanVMSpecificRootsPacket) Do(w *GCWorker) {
	var normal, interior edgeCollector
	w.Binding().ScanVMSpecificRoots(&normal, &interior)
	scheduleEdgesOfKind(w, p.plan, NormalEdges, normal.edges)
	scheduleEdgesOfKind(w, p.plan, InteriorEdges, interior.edges)
}

func scheduleRootEdges(w *GCWorker, plan *GenCopyPlan, edges []Address) {
	scheduleEdgesOfKind(w, plan, NormalEdges, edges)
}

func scheduleEdgesOfKind(w *GCWorker, plan *GenCopyPlan, kind EdgeKind, edges []Address) {
	for start := 0; start < len(edges); start += edgeCapacity {
		end := start + edgeCapacity
		if end > len(edges) {
			end = len(edges)
		}
		batch := edges[start:end]
		var pkt *EdgePacket
		if plan.Kind() == KindMature {
			pkt = MatureProcessEdges(kind, batch, plan, w.Binding())
		} else {
			pkt = NurseryProcessEdges(kind, batch, plan, w.Binding())
		}
		w.Scheduler().Closure().Add(pkt)
	}
}

// ReleasePacket runs once Closure (and RefClosure) have fully drained:
// it fans out ReleaseMutator/ReleaseCollector, resets the nursery,
// clears per-GC mark bookkeeping, and reclaims the vacated fromspace on
// a mature GC.
type ReleasePacket struct {
	plan *GenCopyPlan
}

func (p *ReleasePacket) Do(w *GCWorker) {
	p.plan.setPhase(phaseReleasing)
	sched := w.Scheduler()
	for _, m := range w.Binding().Mutators() {
		m := m
		sched.Release().Add(&ReleaseMutatorPacket{mutator: m, tls: w.TLS()})
	}
	for _, worker := range sched.Workers() {
		sched.Release().Add(&ReleaseCollectorPacket{worker: worker})
	}
	sched.Release().Add(&releaseSpacesPacket{plan: p.plan})
}

// ReleaseMutatorPacket is a hook for binding-side per-mutator teardown.
// The GenCopy plan itself needs nothing from mutators at release time;
// this packet exists so a binding overriding allocation fast paths has
// somewhere to reset them.
type ReleaseMutatorPacket struct {
	mutator *Mutator
	tls     OpaquePointer
}

func (p *ReleaseMutatorPacket) Do(w *GCWorker) {}

// ReleaseCollectorPacket releases worker's CopyContext.
type ReleaseCollectorPacket struct {
	worker *GCWorker
}

func (p *ReleaseCollectorPacket) Do(w *GCWorker) {
	p.worker.release()
}

// releaseSpacesPacket performs the plan-level end-of-GC bookkeeping:
// resetting the nursery cursor and the common-space marks after every
// GC, and, after a mature GC, clearing both semispaces' scanned sets and
// reclaiming the vacated fromspace.
type releaseSpacesPacket struct {
	plan *GenCopyPlan
}

func (p *releaseSpacesPacket) Do(w *GCWorker) {
	p.plan.Nursery().ResetAllocator()
	p.plan.Common().ResetMarks()
	if p.plan.Kind() == KindMature {
		p.plan.Fromspace().ResetScanned()
		p.plan.Tospace().ResetScanned()
		// The condemned fromspace has had every live object copied out
		// of it by now; reclaim its whole span so it is empty when the
		// next mature GC's Prepare makes it the tospace.
		p.plan.Fromspace().Region().Reset()
	}
	w.Scheduler().Final().Add(&EndOfGCPacket{plan: p.plan})
}

// EndOfGCPacket sets the plan's GC status back to idle ("not in GC",
// spec §4.6) and resumes mutators via the binding's
// Collection.ResumeMutators, the mirror image of StopMutatorsPacket. A
// coordinator packet (spec §4.6).
type EndOfGCPacket struct {
	plan *GenCopyPlan
}

func (p *EndOfGCPacket) Do(w *GCWorker) {
	if requeueIfNotCoordinator(w, w.Scheduler().Final(), p) {
		return
	}
	p.plan.setPhase(phaseIdle)
	w.Binding().ResumeMutators(w.TLS())
}
