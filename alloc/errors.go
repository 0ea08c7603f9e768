package alloc

import "errors"

var (
	// ErrOutOfMemory indicates the underlying allocator could not provide memory.
	// Quota rejections also match this error via errors.Is so that callers can
	// keep a single out-of-memory path.
	ErrOutOfMemory = errors.New("alloc: out of memory")

	// ErrNegativeSize indicates a request for a negative number of bytes.
	ErrNegativeSize = errors.New("alloc: negative size")

	// ErrTooLarge indicates the request exceeds the pool's largest size class.
	ErrTooLarge = errors.New("alloc: request exceeds largest size class")

	// ErrForeignBlock indicates a block that was not handed out by this allocator.
	ErrForeignBlock = errors.New("alloc: block not owned by allocator")
)
