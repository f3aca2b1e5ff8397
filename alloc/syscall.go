package alloc

import "unsafe"

// MemorySource hands out zeroed, page-aligned read/write spans straight from
// the operating system. Spans are never returned.
//
// Acquire must not route through an Allocator: the allocator obtains its own
// metadata (mapping table pages) from the source directly.
type MemorySource interface {
	// Acquire maps size bytes. size must be a non-zero multiple of PageSize.
	// A nil pointer and a non-nil error signal exhaustion.
	Acquire(size uintptr) (unsafe.Pointer, error)

	// PageSize reports the OS page size in bytes.
	PageSize() uintptr
}

// OSMemory returns the platform's anonymous-mapping memory source.
func OSMemory() MemorySource { return osMemory{} }

type osMemory struct{}

func checkAcquireSize(size, page uintptr) error {
	if size == 0 || size%page != 0 {
		return ErrBadSize
	}
	return nil
}
