package gc

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Scheduler owns the fixed total order of work buckets (spec §5) and
// the pool of GCWorker goroutines that drain them. Grounded on
// scheduler/scheduler.rs's GCWorkScheduler combined with the teacher's
// worker-pool fan-out idiom in proc.go's startTheWorldWithSema (a fixed
// set of OS threads released together); here the pool is a fixed set of
// goroutines coordinated with golang.org/x/sync/errgroup rather than
// hand-rolled semaphores, since ordinary Go code reaches for errgroup
// the way the runtime reaches for its own scheduler primitives.
type Scheduler struct {
	plan    *GenCopyPlan
	binding Binding

	buckets [numStages]*WorkBucket

	workers []*GCWorker
	mu      sync.Mutex // not used by the drain loop; RunGC drains buckets one stage at a time

	mutatorsPaused int32 // 1 once StopMutators has quiesced every mutator this GC
}

// NewScheduler builds a scheduler with one bucket per stage and
// numWorkers worker contexts, each bound to its own CopyContext.
func NewScheduler(plan *GenCopyPlan, binding Binding, numWorkers int, tls []OpaquePointer) *Scheduler {
	s := &Scheduler{plan: plan, binding: binding}
	for i := range s.buckets {
		s.buckets[i] = newWorkBucket(WorkBucketStage(i))
	}
	s.workers = make([]*GCWorker, numWorkers)
	for i := 0; i < numWorkers; i++ {
		var t OpaquePointer
		if i < len(tls) {
			t = tls[i]
		}
		s.workers[i] = newGCWorker(i, t, plan, binding, s)
	}
	return s
}

// Bucket returns the bucket for stage.
func (s *Scheduler) Bucket(stage WorkBucketStage) *WorkBucket { return s.buckets[stage] }

func (s *Scheduler) Unconstrained() *WorkBucket { return s.buckets[StageUnconstrained] }
func (s *Scheduler) Prepare() *WorkBucket       { return s.buckets[StagePrepare] }
func (s *Scheduler) Closure() *WorkBucket       { return s.buckets[StageClosure] }
func (s *Scheduler) RefClosure() *WorkBucket    { return s.buckets[StageRefClosure] }
func (s *Scheduler) Release() *WorkBucket       { return s.buckets[StageRelease] }
func (s *Scheduler) Final() *WorkBucket         { return s.buckets[StageFinal] }

// Workers returns the fixed pool of worker contexts.
func (s *Scheduler) Workers() []*GCWorker { return s.workers }

// Plan returns the bound plan.
func (s *Scheduler) Plan() *GenCopyPlan { return s.plan }

// Binding returns the bound VM binding.
func (s *Scheduler) Binding() Binding { return s.binding }

// notifyMutatorsPaused records that StopMutators has finished quiescing
// every mutator thread for the in-progress GC (spec §2, §4.6's
// Coordination Glue). Grounded on GCWorkScheduler::notify_mutators_paused.
func (s *Scheduler) notifyMutatorsPaused() {
	atomic.StoreInt32(&s.mutatorsPaused, 1)
}

// MutatorsPaused reports whether notifyMutatorsPaused has fired this GC.
func (s *Scheduler) MutatorsPaused() bool {
	return atomic.LoadInt32(&s.mutatorsPaused) != 0
}

// resetMutatorsPaused clears the flag at the start of a new GC.
func (s *Scheduler) resetMutatorsPaused() {
	atomic.StoreInt32(&s.mutatorsPaused, 0)
}

// RunGC drives one full collection through the fixed stage order,
// draining each bucket to exhaustion with all workers in parallel before
// opening the next (spec §5's "a bucket only opens once every bucket
// before it has fully drained"). Each stage is an errgroup barrier:
// workers race to drain the bucket, and RunGC only advances once every
// worker reports the bucket empty and stays empty.
//
// Unconstrained, RefClosure, and Release each start from a single
// seeded packet (ScheduleCollection, which is a coordinator packet, the
// reference-closure packet, and Release respectively); Prepare, Closure, and Final are
// populated transitively by packets run in the stage before them, the
// same "earlier stage schedules the next" relationship scheduler.rs's
// bucket-open callbacks encode.
func (s *Scheduler) RunGC(ctx context.Context) error {
	s.Unconstrained().Add(&ScheduleCollectionPacket{plan: s.plan})
	for stage := WorkBucketStage(0); stage < numStages; stage++ {
		if stage == StageRefClosure {
			s.RefClosure().Add(&refClosurePacket{plan: s.plan})
		}
		if stage == StageRelease {
			s.Release().Add(&ReleasePacket{plan: s.plan})
		}
		if err := s.drainStage(ctx, stage); err != nil {
			return err
		}
	}
	return nil
}

// drainStage runs every worker concurrently against one bucket until
// nothing is queued in it or in flight (WorkBucket.Drained); an empty
// Poll alone is not enough, since a packet still running may Add more
// work, mirroring scheduler.rs's open_bucket loop.
func (s *Scheduler) drainStage(ctx context.Context, stage WorkBucketStage) error {
	bucket := s.buckets[stage]
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range s.workers {
		w := w
		g.Go(func() error {
			return drainWorker(gctx, bucket, w)
		})
	}
	return g.Wait()
}

func drainWorker(ctx context.Context, bucket *WorkBucket, w *GCWorker) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		packet, ok := bucket.Poll()
		if !ok {
			if bucket.Drained() {
				return nil
			}
			// Another worker is mid-Do on a packet that may still push
			// more work into this bucket; yield and look again.
			continue
		}
		packet.Do(w)
		bucket.Done()
	}
}
