package gc

import (
	"fmt"

	"github.com/pkg/errors"
)

// fatal mirrors the teacher's runtime.throw: an invariant violation here
// reflects a bug in the plan, the scheduler wiring, or the VM binding, not
// a recoverable condition (spec §7). It panics with a wrapped error so a
// recovering caller (tests, mostly) gets a stack trace.
func fatal(format string, args ...any) {
	panic(errors.WithStack(fmt.Errorf(format, args...)))
}

// ErrOutOfSpace is returned by a bump allocator when its bound semispace
// has no room left. Per spec §7 this spec does not define allocator-side
// recovery: the space layer decides whether to escalate to a full GC or
// abort. Wrapped with pkg/errors so the escalation path can attach the
// semispace name and requested size without losing the original site.
var ErrOutOfSpace = errors.New("gc: bump allocator out of space")
