package gc

import "unsafe"

// sliceDataAddr returns the address of a byte slice's backing array. Used
// only to hand the bump allocator a stable base address for a Region; the
// slice itself is kept alive by the Region struct that owns it.
func sliceDataAddr(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}

// addressPointer views a raw managed-heap address as a Go pointer so the
// edge-processing engine can load and store the ObjectReference word
// living at that slot. Every caller has already established that addr is
// a live, word-aligned slot inside a space this collector manages.
func addressPointer(addr Address) unsafe.Pointer {
	return unsafe.Pointer(uintptr(addr))
}
