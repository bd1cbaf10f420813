// Package testvm implements a minimal vm.Binding for exercising package
// gc without a real embedding host. Objects are plain Go structs kept
// alive by a map keyed on their allocated address, with a forwarding
// word modeled explicitly (mirroring the three-state header the real
// contract describes) rather than relying on Go's own GC to track
// liveness, since the whole point is to exercise the collector under
// test, not to lean on the runtime's.
package testvm

import (
	"sync"
	"unsafe"

	"github.com/tinygc/gencopy/vm"
)

type forwardState int32

const (
	stateUnmarked forwardState = iota
	stateBeingForwarded
	stateForwarded
)

type header struct {
	mu       sync.Mutex
	state    forwardState
	target   vm.ObjectReference
	size     int
	fields   []vm.Address // addresses of this object's outgoing pointer slots
}

// VM is a fake host binding. Tests construct one, register mutators and
// objects on it, and pass it to gc.Init.
type VM struct {
	mu       sync.Mutex
	objects  map[vm.ObjectReference]*header
	mutators []*vm.Mutator
	roots    []vm.Address

	scanMutatorsAtSafepoint bool
	singleThreadScanning    bool
}

// New returns an empty fake VM configured for single-threaded root
// scanning, the simplest mode for a test to drive directly via AddRoot.
func New() *VM {
	return &VM{objects: make(map[vm.ObjectReference]*header), singleThreadScanning: true}
}

// SetSingleThreadMutatorScanning overrides the scanning mode a test
// wants to exercise.
func (v *VM) SetSingleThreadMutatorScanning(b bool) {
	v.mu.Lock()
	v.singleThreadScanning = b
	v.mu.Unlock()
}

// RegisterObject tells the fake VM about an object living at ref, with
// the given size and outgoing pointer fields (each a slot address the
// edge engine will load/store through).
func (v *VM) RegisterObject(ref vm.ObjectReference, size int, fields []vm.Address) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.objects[ref] = &header{size: size, fields: fields}
}

// RegisterMutator adds a mutator whose roots will be scanned.
func (v *VM) RegisterMutator(m *vm.Mutator) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.mutators = append(v.mutators, m)
}

// AddRoot registers a slot address as a global root.
func (v *VM) AddRoot(slot vm.Address) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.roots = append(v.roots, slot)
}

func (v *VM) headerFor(obj vm.ObjectReference) *header {
	v.mu.Lock()
	h := v.objects[obj]
	v.mu.Unlock()
	if h == nil {
		panic("testvm: unregistered object referenced")
	}
	return h
}

// Collection

func (v *VM) StopAllMutators(tls vm.OpaquePointer) {}
func (v *VM) ResumeMutators(tls vm.OpaquePointer)  {}
func (v *VM) PrepareMutator(tls vm.OpaquePointer, mutator *vm.Mutator) {}

// ActivePlan

func (v *VM) Mutators() []*vm.Mutator {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]*vm.Mutator, len(v.mutators))
	copy(out, v.mutators)
	return out
}

func (v *VM) NumberOfMutators() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.mutators)
}

// Scanning

func (v *VM) ScanMutatorsInSafepoint() bool      { return v.scanMutatorsAtSafepoint }
func (v *VM) SingleThreadMutatorScanning() bool  { return v.singleThreadScanning }

func (v *VM) ScanThreadRoots(visitor vm.EdgeVisitor) {
	v.mu.Lock()
	roots := append([]vm.Address(nil), v.roots...)
	v.mu.Unlock()
	for _, r := range roots {
		visitor.VisitEdge(r)
	}
}

func (v *VM) ScanThreadRoot(mutator *vm.Mutator, tls vm.OpaquePointer, visitor vm.EdgeVisitor) {
	// The fake VM keeps all roots global; per-mutator scanning has
	// nothing additional to contribute in tests that use this mode.
}

func (v *VM) ScanVMSpecificRoots(normal, interior vm.EdgeVisitor) {}

func (v *VM) ScanObjects(buffer []vm.ObjectReference, visitor vm.EdgeVisitor) {
	for _, obj := range buffer {
		h := v.headerFor(obj)
		for _, slot := range h.fields {
			visitor.VisitEdge(slot)
		}
	}
}

func (v *VM) NotifyInitialThreadScanComplete(partial bool, tls vm.OpaquePointer) {}

// ObjectModel

func (v *VM) IsForwarded(obj vm.ObjectReference) bool {
	h := v.headerFor(obj)
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state != stateUnmarked
}

func (v *VM) TryForward(obj vm.ObjectReference) bool {
	h := v.headerFor(obj)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != stateUnmarked {
		return false
	}
	h.state = stateBeingForwarded
	return true
}

func (v *VM) InstallForwardingPointer(obj, newObj vm.ObjectReference) {
	h := v.headerFor(obj)
	h.mu.Lock()
	h.target = newObj
	h.state = stateForwarded
	h.mu.Unlock()
}

func (v *VM) ForwardedObject(obj vm.ObjectReference) vm.ObjectReference {
	h := v.headerFor(obj)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != stateForwarded {
		return 0
	}
	return h.target
}

func (v *VM) ClearForwardingBits(obj vm.ObjectReference) {
	h := v.headerFor(obj)
	h.mu.Lock()
	h.state = stateUnmarked
	h.target = 0
	h.mu.Unlock()
}

func (v *VM) CopyObject(original vm.ObjectReference, newAddr vm.Address, bytes int) vm.ObjectReference {
	newObj := vm.ObjectReference(newAddr)
	old := v.headerFor(original)
	old.mu.Lock()
	size := old.size
	fields := make([]vm.Address, len(old.fields))
	for i, f := range old.fields {
		// Slots inside the original object move with it.
		if f >= original.ToAddress() && f < original.ToAddress().Add(uintptr(size)) {
			f = newAddr.Add(f.Diff(original.ToAddress()))
		}
		fields[i] = f
	}
	old.mu.Unlock()

	copy(unsafe.Slice(*(**byte)(unsafe.Pointer(&newAddr)), bytes),
		unsafe.Slice(*(**byte)(unsafe.Pointer(&original)), bytes))

	v.mu.Lock()
	v.objects[newObj] = &header{size: size, fields: fields}
	v.mu.Unlock()
	return newObj
}

func (v *VM) ObjectSize(obj vm.ObjectReference) int {
	return v.headerFor(obj).size
}

var _ vm.Binding = (*VM)(nil)
