package gc

import (
	"sync/atomic"

	"github.com/pkg/errors"
)

// localBlockBytes is how much of a Region's span an Allocator claims at
// a time from the shared cursor before it needs to claim more. Sizing
// this well above a typical object keeps the atomic claim off the hot
// path of most allocations, the same trade the teacher's per-P mcache
// makes against the central mheap (runtime/mheap.go) — here expressed
// as a single atomic bump on Region rather than a size-class free list,
// since a copying nursery/semispace has no notion of size classes.
const localBlockBytes = 32 * 1024

// Allocator is a per-worker bump-pointer allocator bound to one Region
// at a time. It is adapted from the teacher's fixalloc
// (runtime/mfixalloc.go): the same cursor/limit-and-rebind shape,
// generalized from fixed-size objects to arbitrary aligned allocation
// requests, since a copying collector's copies are not uniformly sized
// the way runtime metadata objects are.
//
// Allocator is not safe for concurrent use: each CopyContext owns
// exactly one (spec §3 "each worker exclusively owns its copy
// context"). Concurrent workers targeting the same Region never
// collide, because each Allocator's [cursor, limit) span was claimed
// from the Region's shared atomic cursor and is exclusively theirs
// until exhausted.
type Allocator struct {
	tls    OpaquePointer
	region *Region // the semispace region currently bound
	cursor Address
	limit  Address
}

// Region is a contiguous span of raw memory one or more Allocators bump
// from. Semispace and Nursery each own one Region; CopyContext.Prepare
// rebinds its Allocator to the plan's current tospace Region each GC.
type Region struct {
	base   Address
	top    Address
	bytes  []byte  // backing storage; kept alive for the slice header's GC root
	cursor uintptr // shared claim cursor, offset from base; advanced only via CAS
}

// NewRegion allocates and zeroes a backing buffer of n bytes and wraps it
// as a bump-allocatable region.
func NewRegion(n int) *Region {
	buf := make([]byte, n)
	base := Address(sliceDataAddr(buf))
	return &Region{base: base, top: base.Add(uintptr(n)), bytes: buf}
}

// Base returns the region's starting address.
func (r *Region) Base() Address { return r.base }

// Top returns the address one past the region's last byte.
func (r *Region) Top() Address { return r.top }

// Contains reports whether addr falls within [base, top).
func (r *Region) Contains(addr Address) bool {
	return addr >= r.base && addr < r.top
}

// Reset rewinds the shared claim cursor back to the region's base,
// discarding every block any Allocator had claimed. Called on the
// vacated fromspace at the end of a mature GC, and by
// Nursery.ResetAllocator after every GC.
func (r *Region) Reset() {
	atomic.StoreUintptr(&r.cursor, 0)
}

// claimBlock atomically reserves an at-least-bytes span of the region
// for the calling Allocator's exclusive use, returning its bounds. Two
// Allocators calling claimBlock concurrently always receive disjoint
// spans, which is what makes per-worker Allocator.Alloc safe without
// its own locking.
func (r *Region) claimBlock(bytes int) (Address, Address, error) {
	size := uintptr(bytes)
	if size < localBlockBytes {
		size = localBlockBytes
	}
	capacity := uintptr(r.top) - uintptr(r.base)
	for {
		old := atomic.LoadUintptr(&r.cursor)
		if old+size > capacity {
			// Not enough room for a full block; try to hand out exactly
			// what remains, so a request that itself fits can still
			// succeed even when the region is nearly exhausted.
			if old+uintptr(bytes) > capacity {
				return 0, 0, errors.Wrapf(ErrOutOfSpace, "region exhausted: %d of %d bytes claimed", old, capacity)
			}
			size = uintptr(bytes)
		}
		if atomic.CompareAndSwapUintptr(&r.cursor, old, old+size) {
			start := r.base.Add(old)
			return start, start.Add(size), nil
		}
	}
}

// Rebind points the allocator at region. The allocator claims no block
// until its first Alloc call; rebinding alone does no atomic work.
func (a *Allocator) Rebind(region *Region) {
	a.region = region
	a.cursor = 0
	a.limit = 0
}

// Init records the owner's TLS handle. Mirrors fixalloc.init's setup;
// a CopyContext calls it once per worker at construction, while
// Nursery.Alloc calls it on every allocation with the allocating
// mutator's handle.
func (a *Allocator) Init(tls OpaquePointer) {
	a.tls = tls
}

// Alloc bump-allocates bytes aligned to align, with the object's base
// offset by offset from the allocation's start (interior-pointer-bearing
// headers sometimes need an offset field before the object proper; the
// signature exists to mirror the wider AllocCopy contract even though the
// generational plan always passes offset=0). When the allocator's
// locally-claimed block cannot satisfy the request, it claims a fresh
// block from the bound Region's shared cursor.
func (a *Allocator) Alloc(bytes int, align int, offset int) (Address, error) {
	if a.region == nil {
		return 0, errors.Wrap(ErrOutOfSpace, "bump allocator has no bound region")
	}
	start := alignUp(a.cursor.Add(uintptr(offset)), align).Sub(uintptr(offset))
	end := start.Add(uintptr(bytes))
	if a.cursor == 0 && a.limit == 0 || end > a.limit {
		blockStart, blockEnd, err := a.region.claimBlock(bytes)
		if err != nil {
			return 0, err
		}
		a.cursor = blockStart
		a.limit = blockEnd
		start = alignUp(a.cursor.Add(uintptr(offset)), align).Sub(uintptr(offset))
		end = start.Add(uintptr(bytes))
		if end > a.limit {
			return 0, errors.Wrapf(ErrOutOfSpace, "need %d bytes, claimed block too small", bytes)
		}
	}
	a.cursor = end
	return start, nil
}

func alignUp(addr Address, align int) Address {
	if align <= 1 {
		return addr
	}
	mask := uintptr(align - 1)
	return Address((uintptr(addr) + mask) &^ mask)
}
