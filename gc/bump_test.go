package gc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocatorBumpsMonotonically(t *testing.T) {
	r := NewRegion(1 << 16)
	var a Allocator
	a.Rebind(r)

	first, err := a.Alloc(32, 8, 0)
	require.NoError(t, err)
	second, err := a.Alloc(32, 8, 0)
	require.NoError(t, err)

	assert.True(t, second >= first.Add(32))
	assert.True(t, r.Contains(first))
	assert.True(t, r.Contains(second))
}

func TestAllocatorReportsOutOfSpace(t *testing.T) {
	r := NewRegion(16)
	var a Allocator
	a.Rebind(r)

	_, err := a.Alloc(1<<20, 8, 0)
	assert.Error(t, err)
}

// TestConcurrentAllocatorsNeverOverlap exercises the block-claiming
// design directly: many Allocators bound to the same Region, bump
// allocating concurrently, must never hand out overlapping spans.
func TestConcurrentAllocatorsNeverOverlap(t *testing.T) {
	r := NewRegion(4 << 20)
	const workers = 8
	const allocsPerWorker = 200
	const objSize = 64

	type span struct{ start, end Address }
	results := make([][]span, workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		i := i
		go func() {
			defer wg.Done()
			var a Allocator
			a.Rebind(r)
			spans := make([]span, 0, allocsPerWorker)
			for j := 0; j < allocsPerWorker; j++ {
				addr, err := a.Alloc(objSize, 8, 0)
				require.NoError(t, err)
				spans = append(spans, span{addr, addr.Add(objSize)})
			}
			results[i] = spans
		}()
	}
	wg.Wait()

	var all []span
	for _, spans := range results {
		all = append(all, spans...)
	}
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			overlap := all[i].start < all[j].end && all[j].start < all[i].end
			assert.False(t, overlap, "spans %v and %v overlap", all[i], all[j])
		}
	}
}
