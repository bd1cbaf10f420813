package gc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllocBitmapSetAndQuery(t *testing.T) {
	b := NewAllocBitmap()
	r := NewRegion(1 << 16)

	var a Allocator
	a.Rebind(r)
	addr, err := a.Alloc(64, 8, 0)
	assert.NoError(t, err)

	assert.False(t, b.IsAlloced(ObjectReference(addr)))
	b.SetAllocBit(addr)
	assert.True(t, b.IsAlloced(ObjectReference(addr)))
	b.UnsetAllocBit(addr)
	assert.False(t, b.IsAlloced(ObjectReference(addr)))
}

func TestFindObjectWalksBackToHead(t *testing.T) {
	b := NewAllocBitmap()
	r := NewRegion(1 << 16)

	var a Allocator
	a.Rebind(r)
	addr, err := a.Alloc(64, 8, 0)
	assert.NoError(t, err)
	b.SetAllocBit(addr)

	interior := addr.Add(40)
	assert.Equal(t, ObjectReference(addr), b.FindObject(interior))
}

func TestFindObjectPanicsOutsideMappedChunk(t *testing.T) {
	b := NewAllocBitmap()
	assert.Panics(t, func() {
		b.FindObject(Address(0xdeadbeef0000))
	})
}

func TestMapMetaSpaceForChunkIsIdempotent(t *testing.T) {
	b := NewAllocBitmap()
	chunk := Address(3 * chunkSize)
	assert.False(t, b.MetaSpaceMapped(chunk))
	b.MapMetaSpaceForChunk(chunk)
	b.MapMetaSpaceForChunk(chunk)
	assert.True(t, b.MetaSpaceMapped(chunk))
}
