package gc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinygc/gencopy/internal/testvm"
)

// TestSchedulerRunGCPromotesReachableObjects drives a full nursery GC
// through the scheduler end to end: one root points at a nursery object
// with one outgoing pointer field to a second nursery object; after
// RunGC both must be resident in the tospace, and the root must have
// been rewritten to point at the (moved) first object.
func TestSchedulerRunGCPromotesReachableObjects(t *testing.T) {
	common := NewRegion(4096)
	plan := NewGenCopyPlan(1<<16, 1<<16, common)
	fake := testvm.New()

	tls := make([]OpaquePointer, 2)
	sched := NewScheduler(plan, fake, 2, tls)

	var a Allocator
	a.Rebind(plan.Nursery().Region())
	childAddr, err := a.Alloc(wordBytes, wordBytes, 0)
	require.NoError(t, err)
	child := ObjectReference(childAddr)
	fake.RegisterObject(child, wordBytes, nil)

	parentAddr, err := a.Alloc(2*wordBytes, wordBytes, 0)
	require.NoError(t, err)
	parent := ObjectReference(parentAddr)
	childSlot := parentAddr.Add(wordBytes)
	storeObjectReference(childSlot, child)
	fake.RegisterObject(parent, 2*wordBytes, []Address{childSlot})

	rootRegion := NewRegion(wordBytes)
	rootSlot := rootRegion.Base()
	storeObjectReference(rootSlot, parent)
	fake.AddRoot(rootSlot)

	require.NoError(t, sched.RunGC(context.Background()))

	movedParent := loadObjectReference(rootSlot)
	assert.True(t, plan.Tospace().InSpace(movedParent))
	assert.NotEqual(t, parent, movedParent)

	movedChildSlot := movedParent.ToAddress().Add(wordBytes)
	movedChild := loadObjectReference(movedChildSlot)
	assert.True(t, plan.Tospace().InSpace(movedChild))
}

// drainAllPending runs every packet in bucket on worker until nothing is
// queued or in flight.
func drainAllPending(t *testing.T, bucket *WorkBucket, worker *GCWorker) {
	t.Helper()
	for {
		pkt, ok := bucket.Poll()
		if !ok {
			if bucket.Drained() {
				return
			}
			continue
		}
		pkt.Do(worker)
		bucket.Done()
	}
}

// TestModeGatingSkipsRememberedSetOnMatureGC exercises the
// nursery-vs-mature ModBuf gating directly: a mature GC must drain and
// discard the remembered set rather than replaying it as edges.
func TestModeGatingSkipsRememberedSetOnMatureGC(t *testing.T) {
	common := NewRegion(4096)
	plan := NewGenCopyPlan(4096, 4096, common)
	fake := testvm.New()
	sched := NewScheduler(plan, fake, 1, nil)
	worker := sched.Workers()[0]

	plan.SetKind(KindMature)
	buf := NewModBuf()
	buf.RecordEdge(Address(0x1000))
	buf.RecordNode(ObjectReference(0x2000))
	pkt := NewProcessModBufPacket(plan, buf)
	pkt.Do(worker)

	assert.Empty(t, buf.DrainEdges(), "mod buffer edges must be emptied regardless of GC kind")
	assert.Empty(t, buf.DrainNodes(), "mod buffer nodes must be emptied regardless of GC kind")
}

func TestModeGatingReplaysRememberedSetOnNurseryGC(t *testing.T) {
	common := NewRegion(4096)
	plan := NewGenCopyPlan(1<<16, 1<<16, common)
	fake := testvm.New()
	sched := NewScheduler(plan, fake, 1, nil)
	worker := sched.Workers()[0]
	worker.prepare()
	plan.setPhase(phaseTracing)

	var a Allocator
	a.Rebind(plan.Nursery().Region())
	objAddr, err := a.Alloc(wordBytes, wordBytes, 0)
	require.NoError(t, err)
	obj := ObjectReference(objAddr)
	fake.RegisterObject(obj, wordBytes, nil)

	slotRegion := NewRegion(wordBytes)
	slot := slotRegion.Base()
	storeObjectReference(slot, obj)

	plan.SetKind(KindNursery)
	buf := NewModBuf()
	buf.RecordEdge(slot)
	pkt := NewProcessModBufPacket(plan, buf)
	pkt.Do(worker)
	drainAllPending(t, sched.Closure(), worker)

	moved := loadObjectReference(slot)
	assert.True(t, plan.Tospace().InSpace(moved))
}

// TestModeGatingRecordedNodesEnqueueScanObjectsOnNurseryGC exercises the
// other half of ProcessModBuf's nursery gating: a recorded node (a
// mature object a write barrier fired on, as opposed to the slot
// itself) must be scanned for its outgoing edges via a ScanObjects
// packet, which in turn discovers and traces the nursery child it
// points at.
func TestModeGatingRecordedNodesEnqueueScanObjectsOnNurseryGC(t *testing.T) {
	common := NewRegion(4096)
	plan := NewGenCopyPlan(1<<16, 1<<16, common)
	fake := testvm.New()
	sched := NewScheduler(plan, fake, 1, nil)
	worker := sched.Workers()[0]
	worker.prepare()
	plan.setPhase(phaseTracing)

	var a Allocator
	a.Rebind(plan.Nursery().Region())
	childAddr, err := a.Alloc(wordBytes, wordBytes, 0)
	require.NoError(t, err)
	child := ObjectReference(childAddr)
	fake.RegisterObject(child, wordBytes, nil)

	nodeRegion := NewRegion(2 * wordBytes)
	nodeAddr := nodeRegion.Base()
	node := ObjectReference(nodeAddr)
	childSlot := nodeAddr.Add(wordBytes)
	storeObjectReference(childSlot, child)
	fake.RegisterObject(node, 2*wordBytes, []Address{childSlot})

	plan.SetKind(KindNursery)
	buf := NewModBuf()
	buf.RecordNode(node)
	pkt := NewProcessModBufPacket(plan, buf)
	pkt.Do(worker)
	drainAllPending(t, sched.Closure(), worker)

	moved := loadObjectReference(childSlot)
	assert.True(t, plan.Tospace().InSpace(moved))
}
