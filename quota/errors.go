package quota

import (
	"errors"
	"fmt"

	"github.com/joshuapare/memquota/alloc"
)

var (
	// ErrQuotaExceeded indicates a reservation was rejected by a guard.
	ErrQuotaExceeded = errors.New("quota: exceeded")

	// ErrUnknownContext indicates an operation on a context with no guard attached.
	ErrUnknownContext = errors.New("quota: unknown execution context")

	// ErrNoContext indicates the empty context identity was used where one is required.
	ErrNoContext = errors.New("quota: empty execution context")

	// ErrTooManyContexts indicates the registry's context limit was reached.
	ErrTooManyContexts = errors.New("quota: too many execution contexts")
)

// ExceededError describes a rejected reservation.
// It matches both ErrQuotaExceeded and alloc.ErrOutOfMemory via errors.Is.
type ExceededError struct {
	Context   ContextID // Context whose guard rejected the request
	Cap       uint64    // Cap at the time of rejection
	Used      uint64    // Usage at the time of rejection
	Requested uint64    // Bytes requested
	Overflow  bool      // The usage counter could not represent used+requested
}

func (e *ExceededError) Error() string {
	if e.Overflow {
		return fmt.Sprintf("quota exceeded for context %q: %d + %d overflows the usage counter",
			e.Context, e.Used, e.Requested)
	}
	return fmt.Sprintf("quota exceeded for context %q: used %d + requested %d > cap %d",
		e.Context, e.Used, e.Requested, e.Cap)
}

// Is reports whether target is ErrQuotaExceeded or alloc.ErrOutOfMemory.
func (e *ExceededError) Is(target error) bool {
	return target == ErrQuotaExceeded || target == alloc.ErrOutOfMemory
}
