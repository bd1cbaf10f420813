// Package vm defines the capability set a host VM must implement to embed
// the generational copying collector in package gc. Everything here is a
// contract, not an implementation: the host owns thread stop/resume, root
// and object scanning, and the object header layout.
package vm

// OpaquePointer is a host-defined, core-opaque handle to an OS thread or
// mutator context. The core never dereferences it; it only threads it
// through to the binding.
type OpaquePointer uintptr

// Mutator is the host's per-thread allocation/root-scanning context. The
// core holds a pointer to it only for the duration of a single GC.
type Mutator struct {
	TLS OpaquePointer
}

// GetTLS returns the opaque thread handle associated with this mutator.
func (m *Mutator) GetTLS() OpaquePointer { return m.TLS }

// Collection is the subset of host capabilities needed to quiesce and
// resume mutator threads around a collection.
type Collection interface {
	StopAllMutators(tls OpaquePointer)
	ResumeMutators(tls OpaquePointer)
	PrepareMutator(tls OpaquePointer, mutator *Mutator)
}

// ActivePlan enumerates the mutators currently registered with the host.
type ActivePlan interface {
	Mutators() []*Mutator
	NumberOfMutators() int
}

// Scanning drives root and object enumeration. EdgeVisitor is supplied by
// the core (an edge-processing work packet); the binding calls it once per
// discovered slot address.
type Scanning interface {
	// ScanMutatorsInSafepoint reports whether mutators are scanned while
	// already paused at a safepoint (as opposed to being scanned lazily).
	ScanMutatorsInSafepoint() bool
	// SingleThreadMutatorScanning reports whether all mutator stacks are
	// scanned from one worker (true) or one packet per mutator (false).
	SingleThreadMutatorScanning() bool

	ScanThreadRoots(visitor EdgeVisitor)
	ScanThreadRoot(mutator *Mutator, tls OpaquePointer, visitor EdgeVisitor)
	ScanVMSpecificRoots(normal, interior EdgeVisitor)
	// ScanObjects hands each object in buffer to the host, which calls
	// visitor.VisitEdge once per outgoing pointer field it finds.
	ScanObjects(buffer []ObjectReference, visitor EdgeVisitor)
	NotifyInitialThreadScanComplete(partial bool, tls OpaquePointer)
}

// EdgeVisitor receives slot addresses discovered during root scanning.
type EdgeVisitor interface {
	VisitEdge(slot Address)
}

// EdgeVisitorFunc adapts a plain function to EdgeVisitor.
type EdgeVisitorFunc func(Address)

func (f EdgeVisitorFunc) VisitEdge(slot Address) { f(slot) }

// Binding aggregates the full external capability set from spec §6.
type Binding interface {
	Collection
	ActivePlan
	Scanning
	ObjectModel
}

// ReferenceGlue is an optional capability a binding may implement to
// classify an object discovered during tracing as a weak/soft/phantom
// reference object, so the core's RefClosure stage can track and later
// clear it (spec §7's reference-processor plumbing). A binding that
// does not implement this simply never has anything registered, and
// RefClosure's Clear stays a no-op.
type ReferenceGlue interface {
	IsReferenceObject(obj ObjectReference) bool
}
