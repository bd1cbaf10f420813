package gc

// GCWorker is a single GC worker's execution context: its own
// CopyContext (so concurrent copies never share a bump allocator), a
// handle back to the Scheduler that dispatches it, and the VM binding
// it was launched with. Grounded on plan/gencopy/gc_works.rs's
// GenCopyCopyContext being a field directly on the per-worker struct
// (open question #1 in SPEC_FULL §8: a typed field, not a downcast from
// an untyped WorkerLocal as the original's generic scheduler does,
// since Go has no equivalent of Rust's Any-style WorkerLocalPtr).
type GCWorker struct {
	id          int
	tls         OpaquePointer
	cc          *CopyContext
	sched       *Scheduler
	binding     Binding
	coordinator bool
}

// newGCWorker constructs a worker bound to plan's copy target and
// registered with sched. Called once per worker goroutine at Scheduler
// startup. Worker 0 is always the coordinator (spec §2, §4.6): the
// scheduler only ever builds one, and it is the only worker allowed to
// execute a coordinator packet (ScheduleCollection, StopMutators,
// EndOfGC).
func newGCWorker(id int, tls OpaquePointer, plan *GenCopyPlan, binding Binding, sched *Scheduler) *GCWorker {
	cc := NewCopyContext(plan, binding, tls)
	return &GCWorker{id: id, tls: tls, cc: cc, sched: sched, binding: binding, coordinator: id == 0}
}

// IsCoordinator reports whether this worker is the scheduler's
// designated coordinator. Grounded on the original's
// GCWorker::is_coordinator, which gates exactly the same set of packets
// (scheduler/gc_works.rs:176-213).
func (w *GCWorker) IsCoordinator() bool { return w.coordinator }

// ID returns the worker's ordinal, used only for diagnostics and stats
// labels.
func (w *GCWorker) ID() int { return w.id }

// TLS returns the worker's opaque thread handle.
func (w *GCWorker) TLS() OpaquePointer { return w.tls }

// CopyContext returns the worker's private evacuation allocator.
func (w *GCWorker) CopyContext() *CopyContext { return w.cc }

// Scheduler returns the scheduler this worker pulls packets from.
func (w *GCWorker) Scheduler() *Scheduler { return w.sched }

// Binding returns the VM binding passed to MMTK.Init.
func (w *GCWorker) Binding() Binding { return w.binding }

// prepare rebinds the worker's copy context ahead of a new GC.
func (w *GCWorker) prepare() { w.cc.Prepare() }

// release tears down any per-GC worker state. A no-op today (see
// CopyContext.Release) but kept as a distinct step so a future space
// that does need per-GC teardown has somewhere to hook in without
// touching the scheduler's control flow.
func (w *GCWorker) release() { w.cc.Release() }
