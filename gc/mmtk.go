package gc

import "context"

// Options configures an MMTK instance's heap geometry. Grounded on the
// original's GenCopyPlan constructor taking nursery/semispace ratios
// from an Options struct at boot, rather than the teacher's compile-time
// arena constants (runtime GC sizing is not configurable at this level
// in the teacher, since the teacher is the Go runtime's own GC).
type Options struct {
	NurseryBytes   int
	SemispaceBytes int
	CommonBytes    int
	NumWorkers     int
}

// DefaultOptions returns a small but workable heap geometry, suitable
// for tests and examples.
func DefaultOptions() Options {
	return Options{
		NurseryBytes:   4 << 20,
		SemispaceBytes: 16 << 20,
		CommonBytes:    4 << 20,
		NumWorkers:     4,
	}
}

// MMTK is the collector's top-level handle: the plan, the scheduler
// bound to it, and the VM binding the embedding host supplied. A host
// constructs exactly one and keeps it alive for the process lifetime
// (SPEC_FULL §8 open question #2: a plain pointer owned by the
// long-lived MMTK, not behind a second indirection or global registry,
// since this plan never needs more than one heap instance).
type MMTK struct {
	plan    *GenCopyPlan
	sched   *Scheduler
	binding Binding
}

// Init constructs an MMTK bound to binding with the given heap geometry.
// The binding must already be ready to answer Collection/ActivePlan/
// Scanning/ObjectModel calls; Init performs no I/O itself beyond the
// interior-pointer bitmap's lazy chunk mapping, which happens on first
// use, not here.
func Init(binding Binding, opts Options) *MMTK {
	common := NewRegion(opts.CommonBytes)
	plan := NewGenCopyPlan(opts.NurseryBytes, opts.SemispaceBytes, common)

	tls := make([]OpaquePointer, opts.NumWorkers)
	sched := NewScheduler(plan, binding, opts.NumWorkers, tls)

	return &MMTK{plan: plan, sched: sched, binding: binding}
}

// Plan returns the bound plan.
func (m *MMTK) Plan() *GenCopyPlan { return m.plan }

// RegisterStats attaches a prometheus-backed counters instance to the
// plan. Optional; call it once after Init if the host wants metrics.
func (m *MMTK) RegisterStats(s *Stats) { m.plan.SetStats(s) }

// Scheduler returns the bound scheduler.
func (m *MMTK) Scheduler() *Scheduler { return m.sched }

// Alloc bump-allocates bytes of new object space in the nursery on
// behalf of tls, aligned to align. A nursery exhaustion is reported to
// the plan so the next TriggerCollection picks mature-vs-nursery
// correctly, then returned to the caller as ErrOutOfSpace: this plan
// does not implicitly trigger a GC from inside Alloc (spec §7's
// allocator-side recovery is left to the host).
func (m *MMTK) Alloc(tls OpaquePointer, bytes, align, offset int) (Address, error) {
	addr, err := m.plan.Nursery().Alloc(tls, bytes, align, offset)
	if err != nil {
		m.plan.MarkNurseryFull()
		return 0, err
	}
	return addr, nil
}

// TriggerCollection runs one full stop-the-world collection to
// completion, blocking the caller until mutators are resumed.
func (m *MMTK) TriggerCollection(ctx context.Context) error {
	return m.sched.RunGC(ctx)
}
