package gc

import (
	"sync/atomic"

	"github.com/tinygc/gencopy/internal/lfstack"
)

// WorkBucketStage names the scheduler's fixed total order of buckets
// (spec §5). A bucket only opens once every bucket before it has fully
// drained, and the scheduler only advances to EndOfGC once every bucket
// has drained with nothing left to schedule.
type WorkBucketStage int

const (
	StageUnconstrained WorkBucketStage = iota
	StagePrepare
	StageClosure
	StageRefClosure
	StageRelease
	StageFinal

	numStages
)

func (s WorkBucketStage) String() string {
	switch s {
	case StageUnconstrained:
		return "Unconstrained"
	case StagePrepare:
		return "Prepare"
	case StageClosure:
		return "Closure"
	case StageRefClosure:
		return "RefClosure"
	case StageRelease:
		return "Release"
	case StageFinal:
		return "Final"
	default:
		return "Unknown"
	}
}

// WorkPacket is anything the scheduler's workers can execute. Grounded
// on scheduler/gc_works.rs's GCWork trait: a single do_work entry point
// given the worker executing it.
type WorkPacket interface {
	Do(w *GCWorker)
}

// WorkBucket is one stage's queue of pending packets, built on the
// lock-free stack adapted from the teacher's lfstack (runtime/lfstack.go)
// rather than a mutex-guarded slice, since packets are pushed from
// arbitrary worker goroutines while other workers are concurrently
// popping (spec §5's "workers pull from a shared, concurrently-pushed
// queue").
type WorkBucket struct {
	stage WorkBucketStage
	queue lfstack.Stack[WorkPacket]

	// pending counts packets currently queued plus packets currently
	// being executed by a worker that pulled them from this bucket. It
	// only reaches zero once nothing queued and nothing in flight could
	// still call Add on this same bucket (a Closure-stage ScanObjects
	// packet routinely re-adds to Closure while it runs), which is the
	// actual termination condition the scheduler waits for — an empty
	// Poll alone is not enough, since a sibling worker may be mid-Do and
	// about to push more work.
	pending int64
}

func newWorkBucket(stage WorkBucketStage) *WorkBucket {
	return &WorkBucket{stage: stage}
}

// Add enqueues a packet. Callers may add to a bucket that has not yet
// opened (the scheduler fills Prepare, Closure, etc. ahead of time as
// tracing discovers more work); Add never itself blocks on stage order.
func (b *WorkBucket) Add(p WorkPacket) {
	atomic.AddInt64(&b.pending, 1)
	b.queue.Push(lfstack.NewNode(&p))
}

// Poll pops one packet, or reports ok=false if the bucket is currently
// empty. Emptiness here is advisory only: a concurrent Add can still
// race a Poll that just observed empty, which is why the scheduler
// treats "bucket looks empty" as "try another scan", never as permanent.
// The caller must call Done once it has finished executing the returned
// packet.
func (b *WorkBucket) Poll() (p WorkPacket, ok bool) {
	n := b.queue.Pop()
	if n == nil {
		return nil, false
	}
	return *n.Value(), true
}

// Done marks one packet pulled via Poll as finished executing. The
// scheduler calls this after a packet's Do returns, including any
// further Add calls that packet made on this or other buckets.
func (b *WorkBucket) Done() {
	atomic.AddInt64(&b.pending, -1)
}

// Drained reports whether the bucket has nothing queued and nothing
// in flight. This is the real completion signal (see pending's doc
// comment) as opposed to IsEmpty, which only reflects the queue.
func (b *WorkBucket) Drained() bool {
	return atomic.LoadInt64(&b.pending) == 0
}

// IsEmpty reports whether the bucket currently has no queued packets
// (ignoring in-flight work). Useful for diagnostics; the scheduler uses
// Drained to decide when a stage is complete.
func (b *WorkBucket) IsEmpty() bool {
	return b.queue.Empty()
}
