package gc

import "github.com/tinygc/gencopy/vm"

// Address and ObjectReference are re-exported from package vm so the rest
// of the core can refer to them without importing vm directly everywhere.
type (
	Address         = vm.Address
	ObjectReference = vm.ObjectReference
	OpaquePointer   = vm.OpaquePointer
	EdgeVisitor     = vm.EdgeVisitor
	Binding         = vm.Binding
	Mutator         = vm.Mutator
	ReferenceGlue   = vm.ReferenceGlue
)

const zeroAddress Address = 0
const nullObject ObjectReference = 0

// AllocationSemantics distinguishes the kind of allocation a copy is made
// for. The generational copying plan only ever passes SemanticsDefault,
// and AllocCopy ignores the value, but the type exists so CopyContext.AllocCopy's signature
// matches the wider contract a non-generational plan would need.
type AllocationSemantics int

const (
	SemanticsDefault AllocationSemantics = iota
	SemanticsSemispace
)
