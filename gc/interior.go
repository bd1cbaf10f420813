package gc

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Side-metadata layout constants (spec §4.1, §6): one bit per managed
// word, addressed by chunk. chunkSize mirrors the teacher's arena-chunk
// granularity (mheap.go's heapArenaBytes) scaled down to a size sane for a
// userland demo heap rather than a 64MB production arena.
const (
	logWordBytes = 3 // 8 bytes per managed word on a 64-bit host
	wordBytes    = 1 << logWordBytes
	chunkSize    = 1 << 20 // 1MiB chunk granularity
	bitsPerWord  = 32
	// metaWordsForChunk is meta_bytes_per_chunk(log_min_obj_size=log_word,
	// log_num_of_bits=0) expressed in uint32 words: one bit per managed
	// word of the chunk, packed 32 to a uint32.
	metaWordsForChunk = chunkSize / wordBytes / bitsPerWord
)

// chunkAlignDown rounds addr down to its containing chunk's base address.
func chunkAlignDown(addr Address) Address {
	return Address(uintptr(addr) &^ (chunkSize - 1))
}

// AllocBitmap is the global one-bit-per-word "is this the head of a live
// allocation" side table, organized by chunk and mapped lazily (spec
// §4.1). It is adapted from mmtk-core's util/interior/metadata.rs
// (ACTIVE_CHUNKS + side-metadata spec) combined with the teacher's
// on-demand arena mapping in runtime/mheap.go; the mmap call itself uses
// golang.org/x/sys/unix rather than the teacher's runtime-internal mmap.go
// (which is implemented in assembly and unreachable from ordinary Go).
type AllocBitmap struct {
	mu           sync.RWMutex // guards activeChunks, per spec §5 "readers-writer lock"
	activeChunks map[Address][]uint32
}

// NewAllocBitmap constructs an empty bitmap with no chunks mapped yet.
func NewAllocBitmap() *AllocBitmap {
	return &AllocBitmap{activeChunks: make(map[Address][]uint32)}
}

// MetaSpaceMapped reports whether the chunk containing address has had its
// metadata page mapped.
func (b *AllocBitmap) MetaSpaceMapped(address Address) bool {
	chunk := chunkAlignDown(address)
	b.mu.RLock()
	_, ok := b.activeChunks[chunk]
	b.mu.RUnlock()
	return ok
}

// MapMetaSpaceForChunk is idempotent: it inserts chunkStart into the
// active-chunks set and mmaps one metadata chunk sized by
// meta_bytes_per_chunk(log_word, 0), unless another caller already did so.
func (b *AllocBitmap) MapMetaSpaceForChunk(chunkStart Address) {
	chunkStart = chunkAlignDown(chunkStart)

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.activeChunks[chunkStart]; ok {
		return
	}
	mem, err := unix.Mmap(-1, 0, metaWordsForChunk*4,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		// A failed mmap of a small metadata page is not a condition the
		// core can meaningfully recover from; it means the host is out
		// of address space for bookkeeping, not for heap memory.
		fatal("gc: map_meta_space_for_chunk: mmap failed: %v", err)
	}
	b.activeChunks[chunkStart] = bytesToUint32s(mem)
}

// bytesToUint32s reinterprets a page-aligned mmap'd byte slice as a slice
// of naturally-aligned uint32 words so sync/atomic can operate on them
// directly, without per-byte atomic emulation.
func bytesToUint32s(mem []byte) []uint32 {
	return unsafe.Slice((*uint32)(unsafe.Pointer(&mem[0])), len(mem)/4)
}

func (b *AllocBitmap) metaFor(address Address) []uint32 {
	chunk := chunkAlignDown(address)
	b.mu.RLock()
	mem, ok := b.activeChunks[chunk]
	b.mu.RUnlock()
	if !ok {
		fatal("gc: address %v has no mapped metadata chunk", address)
	}
	return mem
}

func wordIndex(address Address) (wordIdx int, bitMask uint32) {
	word := (uintptr(address) & (chunkSize - 1)) >> logWordBytes
	return int(word / bitsPerWord), 1 << (word % bitsPerWord)
}

// SetAllocBit atomically marks a as the head of a live allocation,
// mapping a's metadata chunk first if this is the first allocation
// touching it (spec §4.1's "lazily mapped" side metadata).
func (b *AllocBitmap) SetAllocBit(a Address) {
	b.MapMetaSpaceForChunk(a)
	mem := b.metaFor(a)
	idx, mask := wordIndex(a)
	orUint32(&mem[idx], mask)
}

// UnsetAllocBit atomically clears a's alloc bit.
func (b *AllocBitmap) UnsetAllocBit(a Address) {
	mem := b.metaFor(a)
	idx, mask := wordIndex(a)
	andUint32(&mem[idx], ^mask)
}

// IsAlloced reports whether object's address is marked as an allocation
// head, loading atomically after verifying the chunk is mapped.
func (b *AllocBitmap) IsAlloced(object ObjectReference) bool {
	addr := object.ToAddress()
	if !b.MetaSpaceMapped(addr) {
		return false
	}
	mem := b.metaFor(addr)
	idx, mask := wordIndex(addr)
	return atomic.LoadUint32(&mem[idx])&mask != 0
}

// FindObject walks backward one word at a time from interiorPtr until it
// finds a set alloc bit, returning the object head. The caller guarantees
// interiorPtr lies within an allocated object; violating that is a fatal
// assertion (spec §4.1). Complexity is O(object size in words).
func (b *AllocBitmap) FindObject(interiorPtr Address) ObjectReference {
	addr := Address(uintptr(interiorPtr) &^ (wordBytes - 1))
	for {
		if !b.MetaSpaceMapped(addr) {
			fatal("gc: find_object: %v is not in a mapped chunk", addr)
		}
		mem := b.metaFor(addr)
		idx, mask := wordIndex(addr)
		if atomic.LoadUint32(&mem[idx])&mask != 0 {
			return ObjectReference(addr)
		}
		addr = addr.Sub(wordBytes)
	}
}

func orUint32(p *uint32, mask uint32) {
	for {
		old := atomic.LoadUint32(p)
		if old&mask == mask {
			return
		}
		if atomic.CompareAndSwapUint32(p, old, old|mask) {
			return
		}
	}
}

func andUint32(p *uint32, mask uint32) {
	for {
		old := atomic.LoadUint32(p)
		if old&mask == old {
			return
		}
		if atomic.CompareAndSwapUint32(p, old, old&mask) {
			return
		}
	}
}
