package gc

import "sync/atomic"

// GCKind distinguishes a nursery-only collection from a full mature
// collection that traces the whole heap (spec §3, §4.3's remembered-set
// gating: mature GCs subsume the nursery's remembered set).
type GCKind int

const (
	// KindNursery traces only roots plus the nursery's remembered set.
	KindNursery GCKind = iota
	// KindMature traces the entire live heap; a GenCopy plan promotes
	// everything reachable on a mature GC (no old/young distinction
	// survives it).
	KindMature
)

func (k GCKind) String() string {
	if k == KindMature {
		return "mature"
	}
	return "nursery"
}

// gcPhase tracks where in a single collection cycle the plan currently
// is, mirroring the teacher's world-stopped/world-started bracketing in
// proc.go's stopTheWorld/startTheWorld pairing (spec §4.5).
type gcPhase int32

const (
	phaseIdle gcPhase = iota
	phaseStopped
	phaseTracing
	phaseReleasing
)

// GenCopyPlan owns the generational-copying heap layout: one Nursery and
// two Semispaces (mature from/to), plus a CommonSpace for objects this
// plan never copies. Grounded on plan/gencopy/global.rs's GenCopy plan
// struct (nursery + copyspace0 + copyspace1) combined with the teacher's
// mheap as "the thing that owns all spaces" (runtime/mheap.go).
type GenCopyPlan struct {
	nursery *Nursery
	spaceA  *Semispace
	spaceB  *Semispace
	common  *CommonSpace
	bitmap  *AllocBitmap
	refs    *ReferenceProcessors
	modBuf  *ModBuf
	stats   *Stats

	hiActive int32 // 0: spaceA is tospace, 1: spaceB is tospace

	phase       int32 // gcPhase, accessed atomically from StopMutators/EndOfGC
	kind        int32 // GCKind, set once per GC at ScheduleCollection
	nurseryFull int32 // 1 once the nursery has exhausted its region, 0 otherwise

	// scannedStacks is a monotonically advancing counter of completed
	// per-mutator stack scans, compared against the mutator count to
	// detect "all roots scanned" (spec §4.5). It is never reset to a
	// literal zero: completion is detected by subtracting the mutator
	// count via CAS and is allowed to wrap, exactly as the design note
	// preserved from the original implementation specifies.
	scannedStacks uint32
}

// NewGenCopyPlan builds a plan with the given nursery and per-semispace
// sizes, plus an externally-owned common-space region (immortal/large
// objects the plan never evacuates).
func NewGenCopyPlan(nurserySize, semispaceSize int, commonRegion *Region) *GenCopyPlan {
	bitmap := NewAllocBitmap()
	return &GenCopyPlan{
		nursery: NewNursery(nurserySize, bitmap),
		spaceA:  NewSemispace("copyspace0", semispaceSize, bitmap),
		spaceB:  NewSemispace("copyspace1", semispaceSize, bitmap),
		common:  NewCommonSpace(commonRegion),
		bitmap:  bitmap,
		refs:    NewReferenceProcessors(),
		modBuf:  NewModBuf(),
	}
}

// Nursery returns the plan's nursery space.
func (p *GenCopyPlan) Nursery() *Nursery { return p.nursery }

// Bitmap returns the plan's shared interior-pointer side metadata.
func (p *GenCopyPlan) Bitmap() *AllocBitmap { return p.bitmap }

// Common returns the plan's non-copying space.
func (p *GenCopyPlan) Common() *CommonSpace { return p.common }

// References returns the plan's reference-processor table.
func (p *GenCopyPlan) References() *ReferenceProcessors { return p.refs }

// ModBuf returns the plan's remembered set, the VM binding's write
// barrier target.
func (p *GenCopyPlan) ModBuf() *ModBuf { return p.modBuf }

// SetStats attaches a counters instance. Optional: a plan with none
// attached simply skips recording.
func (p *GenCopyPlan) SetStats(s *Stats) { p.stats = s }

func (p *GenCopyPlan) recordCopy(bytes int, promoted bool) {
	if p.stats != nil {
		p.stats.RecordCopy(bytes, promoted)
	}
}

func (p *GenCopyPlan) recordScanWork() {
	if p.stats != nil {
		p.stats.RecordScanWork()
	}
}

func (p *GenCopyPlan) recordCollection(kind GCKind) {
	if p.stats != nil {
		p.stats.RecordCollection(kind)
	}
}

// Tospace returns the semispace currently receiving copies: nursery
// survivors during a nursery GC, and the inactive mature space during a
// mature GC (the two roles coincide, since a mature GC also discards the
// nursery).
func (p *GenCopyPlan) Tospace() *Semispace {
	if atomic.LoadInt32(&p.hiActive) == 0 {
		return p.spaceA
	}
	return p.spaceB
}

// Fromspace returns the semispace being traced out of on a mature GC
// (the previous tospace, now condemned).
func (p *GenCopyPlan) Fromspace() *Semispace {
	if atomic.LoadInt32(&p.hiActive) == 0 {
		return p.spaceB
	}
	return p.spaceA
}

// copyTargetRegion is what every worker's CopyContext rebinds its
// allocator to at Prepare: always the current tospace, regardless of GC
// kind, since nursery survivors and mature survivors are copied to the
// same place (SPEC_FULL §6).
func (p *GenCopyPlan) copyTargetRegion() *Region {
	return p.Tospace().Region()
}

// FlipSpaces swaps the active tospace/fromspace roles. Called once by
// Prepare at the start of a mature GC, before any copy context is
// rebound; a nursery-only GC never flips, since the mature spaces are
// untouched.
func (p *GenCopyPlan) FlipSpaces() {
	if atomic.LoadInt32(&p.hiActive) == 0 {
		atomic.StoreInt32(&p.hiActive, 1)
	} else {
		atomic.StoreInt32(&p.hiActive, 0)
	}
}

// Kind reports the in-progress (or most recently run) GC's kind.
func (p *GenCopyPlan) Kind() GCKind { return GCKind(atomic.LoadInt32(&p.kind)) }

// SetKind is called once at ScheduleCollection: the plan decides nursery
// vs mature based on nursery occupancy (DetermineCollectionKind), and
// every work packet for the rest of the GC consults
// it via Kind.
func (p *GenCopyPlan) SetKind(k GCKind) { atomic.StoreInt32(&p.kind, int32(k)) }

// MarkNurseryFull records that the bump allocator in the nursery could
// not satisfy an allocation request; this is the trigger
// DetermineCollectionKind inspects.
func (p *GenCopyPlan) MarkNurseryFull() { atomic.StoreInt32(&p.nurseryFull, 1) }

// DetermineCollectionKind decides nursery vs mature for the next GC: a
// mature GC runs whenever the previous nursery-full flag is set AND the
// tospace cannot absorb a full nursery's worth of survivors (promotion
// would itself run out of room); otherwise a plain nursery GC suffices.
// Grounded on plan/gencopy/global.rs's next_gc_full_heap logic.
func (p *GenCopyPlan) DetermineCollectionKind() GCKind {
	full := atomic.SwapInt32(&p.nurseryFull, 0) != 0
	if !full {
		return KindNursery
	}
	tospace := p.Tospace()
	used := uintptr(p.nursery.Region().top) - uintptr(p.nursery.Region().base)
	claimed := atomic.LoadUintptr(&tospace.Region().cursor)
	remaining := uintptr(tospace.Region().Top()) - uintptr(tospace.Region().Base()) - claimed
	if remaining < used {
		return KindMature
	}
	return KindNursery
}

// ResetScannedStacks stores zero in the completed-stack-scan counter.
// The collector itself never calls it: each GC starts from whatever the
// previous one left, and AllStacksScanned's CAS subtraction brings the
// counter back down once every mutator's stack has been counted.
func (p *GenCopyPlan) ResetScannedStacks() { atomic.StoreUint32(&p.scannedStacks, 0) }

// IncScannedStacks records one more mutator's stack as fully scanned.
func (p *GenCopyPlan) IncScannedStacks() { atomic.AddUint32(&p.scannedStacks, 1) }

// ScannedStacks peeks at the completed-stack-scan counter without
// modifying it. StopMutators asserts this is zero before root scanning
// begins (spec §4.6, §5): a nonzero value here means a previous GC's
// scanning never reached the AllStacksScanned CAS, and this GC would
// start root-scanning on top of stale bookkeeping.
func (p *GenCopyPlan) ScannedStacks() uint32 { return atomic.LoadUint32(&p.scannedStacks) }

// AllStacksScanned reports whether scannedStacks has reached mutatorCount,
// via the same CAS-subtract-by-N idiom the teacher uses for its
// scanned-stacks reference count in proc.go's markroot bookkeeping:
// completion is detected without ever comparing against a fixed literal,
// so the counter is free to keep counting across GCs without resetting.
func (p *GenCopyPlan) AllStacksScanned(mutatorCount uint32) bool {
	for {
		cur := atomic.LoadUint32(&p.scannedStacks)
		if cur < mutatorCount {
			return false
		}
		if atomic.CompareAndSwapUint32(&p.scannedStacks, cur, cur-mutatorCount) {
			return true
		}
	}
}

func (p *GenCopyPlan) setPhase(ph gcPhase) { atomic.StoreInt32(&p.phase, int32(ph)) }
func (p *GenCopyPlan) currentPhase() gcPhase { return gcPhase(atomic.LoadInt32(&p.phase)) }
