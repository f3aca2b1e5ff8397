package alloc

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfMemory indicates the memory source could not supply another block.
	ErrOutOfMemory = errors.New("alloc: out of memory")

	// ErrBadAlignment indicates an alignment that is not a power of two.
	ErrBadAlignment = errors.New("alloc: alignment must be a power of two")

	// ErrBadSize indicates a memory source request that is zero or not page aligned.
	ErrBadSize = errors.New("alloc: size must be a non-zero multiple of the page size")

	// ErrCorrupt indicates a sentinel mismatch or a broken free list.
	ErrCorrupt = errors.New("alloc: heap corruption detected")

	// ErrForeignPointer indicates a pointer that does not belong to any mapped block.
	ErrForeignPointer = errors.New("alloc: pointer not owned by allocator")

	// ErrUnsupported indicates the platform has no anonymous mapping primitive.
	ErrUnsupported = errors.New("alloc: anonymous mappings unsupported on this platform")
)

// CorruptionError is the panic value raised when the allocator detects misuse
// or inconsistent metadata. Continuing after one is never safe.
type CorruptionError struct {
	Op   string  // "allocate", "deallocate" or "verify"
	Addr uintptr // address of the structure that failed validation
	Err  error   // ErrCorrupt or ErrForeignPointer
	Msg  string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("%v: %s at %#x: %s", e.Err, e.Op, e.Addr, e.Msg)
}

func (e *CorruptionError) Unwrap() error { return e.Err }
