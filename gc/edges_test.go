package gc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinygc/gencopy/internal/testvm"
)

func newEdgeTestRig(t *testing.T) (*GenCopyPlan, *testvm.VM, *GCWorker) {
	t.Helper()
	common := NewRegion(4096)
	plan := NewGenCopyPlan(1<<16, 1<<16, common)
	fake := testvm.New()
	sched := NewScheduler(plan, fake, 1, nil)
	return plan, fake, sched.Workers()[0]
}

// allocSlot carves out one word-sized slot from a Region for use as an
// edge, and one object-sized span to stand in for an object body.
func allocSlot(t *testing.T, r *Region, size int) Address {
	t.Helper()
	a := Allocator{}
	a.Rebind(r)
	addr, err := a.Alloc(size, wordBytes, 0)
	require.NoError(t, err)
	return addr
}

// TestPromotionEvacuatesNurseryObjectIntoTospace exercises the core
// promotion path: an object allocated in the nursery, reachable from a
// root slot, ends up copied into the active tospace and the root's slot
// is rewritten to point at the copy.
func TestPromotionEvacuatesNurseryObjectIntoTospace(t *testing.T) {
	plan, fake, worker := newEdgeTestRig(t)
	worker.prepare()
	plan.setPhase(phaseTracing)

	objAddr := allocSlot(t, plan.Nursery().Region(), wordBytes)
	obj := ObjectReference(objAddr)
	fake.RegisterObject(obj, wordBytes, nil)

	rootRegion := NewRegion(wordBytes)
	rootSlot := rootRegion.Base()
	storeObjectReference(rootSlot, obj)

	pkt := NewEdgePacket(NormalEdges, []Address{rootSlot}, plan, fake)
	pkt.Do(worker)

	moved := loadObjectReference(rootSlot)
	assert.NotEqual(t, obj, moved, "object should have moved out of the nursery")
	assert.True(t, plan.Tospace().InSpace(moved), "promoted object should land in the active tospace")
	assert.False(t, plan.Nursery().InSpace(moved))
}

// TestInteriorPointerRewritePreservesOffset exercises the interior-edge
// path: a slot holding an address partway into an object must, after
// tracing, hold the same byte offset into wherever the object moved.
func TestInteriorPointerRewritePreservesOffset(t *testing.T) {
	plan, fake, worker := newEdgeTestRig(t)
	worker.prepare()
	plan.setPhase(phaseTracing)

	const objSize = 64
	const interiorOffset = 24

	objAddr := allocSlot(t, plan.Nursery().Region(), objSize)
	obj := ObjectReference(objAddr)
	fake.RegisterObject(obj, objSize, nil)
	plan.Bitmap().SetAllocBit(objAddr)

	rootRegion := NewRegion(wordBytes)
	rootSlot := rootRegion.Base()
	storeObjectReference(rootSlot, ObjectReference(objAddr.Add(interiorOffset)))

	pkt := NewEdgePacket(InteriorEdges, []Address{rootSlot}, plan, fake)
	pkt.Do(worker)

	rewritten := loadObjectReference(rootSlot)
	newObjAddr := plan.Bitmap().FindObject(rewritten.ToAddress())
	assert.Equal(t, interiorOffset, int(rewritten.ToAddress().Diff(newObjAddr)))
}

// TestForwardingRaceConvergesOnSingleCopy exercises the CAS-resolved
// forwarding race: many goroutines concurrently trace edges to the same
// object, and exactly one of them wins the forward while the rest spin
// on ForwardedObject until it resolves, all ending up with the same
// result.
func TestForwardingRaceConvergesOnSingleCopy(t *testing.T) {
	plan, fake, _ := newEdgeTestRig(t)
	plan.setPhase(phaseTracing)

	objAddr := allocSlot(t, plan.Nursery().Region(), wordBytes)
	obj := ObjectReference(objAddr)
	fake.RegisterObject(obj, wordBytes, nil)

	const racers = 16
	results := make([]ObjectReference, racers)
	var wg sync.WaitGroup
	sched := NewScheduler(plan, fake, racers, nil)
	for _, w := range sched.Workers() {
		w.prepare()
	}

	wg.Add(racers)
	for i := 0; i < racers; i++ {
		i, w := i, sched.Workers()[i]
		go func() {
			defer wg.Done()
			results[i], _ = traceAndEvacuate(fake, obj, SemanticsDefault, w.CopyContext(), true)
		}()
	}
	wg.Wait()

	for i := 1; i < racers; i++ {
		assert.Equal(t, results[0], results[i], "all racers must converge on the same forwarded copy")
	}
	assert.True(t, plan.Tospace().InSpace(results[0]))
}
