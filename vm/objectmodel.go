package vm

// Address is a raw memory address within the managed heap or a mutator's
// stack. It is never dereferenced by the core except through ObjectModel
// and the host-supplied Scanning callbacks.
type Address uintptr

// IsZero reports whether this is the null address.
func (a Address) IsZero() bool { return a == 0 }

// Add returns a+n.
func (a Address) Add(n uintptr) Address { return a + Address(n) }

// Sub returns a-n.
func (a Address) Sub(n uintptr) Address { return a - Address(n) }

// Diff returns a-b as an unsigned extent; it wraps if a is below b.
func (a Address) Diff(b Address) uintptr { return uintptr(a) - uintptr(b) }

// ObjectReference is the address of the beginning of a heap object. The
// zero value denotes a null reference.
type ObjectReference Address

// IsNull reports whether this reference is null.
func (o ObjectReference) IsNull() bool { return o == 0 }

// ToAddress views the reference as a raw address.
func (o ObjectReference) ToAddress() Address { return Address(o) }

// ObjectModel is the host's object-header contract: the only part of an
// object's layout the core needs to know about is the forwarding state
// embedded in its header word (spec §3, §6). All three states —
// unmarked, forwarded(to), being-forwarded — are represented by the host;
// the core only ever calls these primitives.
type ObjectModel interface {
	// IsForwarded reports whether obj has already been forwarded to a
	// copy (it may still be racing another thread's forward — see
	// TryForward).
	IsForwarded(obj ObjectReference) bool

	// TryForward attempts to atomically transition obj from unmarked to
	// being-forwarded. On success the caller owns the forwarding race and
	// must eventually call InstallForwardingPointer. On failure (another
	// thread won the race or already completed it) it returns false and
	// the caller must re-read the installed pointer via ForwardedObject,
	// spinning if it is not yet installed.
	TryForward(obj ObjectReference) bool

	// InstallForwardingPointer completes a forward this thread won via
	// TryForward, publishing newObj to racing readers.
	InstallForwardingPointer(obj, newObj ObjectReference)

	// ForwardedObject returns the installed forwarding pointer for an
	// object already forwarded or being forwarded. It must not be called
	// unless IsForwarded(obj) is true.
	ForwardedObject(obj ObjectReference) ObjectReference

	// ClearForwardingBits clears the forwarding metadata on a freshly
	// copied object so subsequent traces see it purely via the forwarding
	// pointer installed on the original, not via the bits on the copy.
	ClearForwardingBits(obj ObjectReference)

	// CopyObject copies bytes from original's current location to newAddr
	// and returns the new object reference. Called only after the caller
	// has claimed the forward and allocated newAddr via CopyContext.
	CopyObject(original ObjectReference, newAddr Address, bytes int) ObjectReference

	// ObjectSize returns the size in bytes of obj, used when no explicit
	// size is supplied to a trace call.
	ObjectSize(obj ObjectReference) int
}
