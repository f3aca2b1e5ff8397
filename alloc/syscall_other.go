//go:build !unix

package alloc

import (
	"os"
	"unsafe"
)

func (osMemory) PageSize() uintptr { return uintptr(os.Getpagesize()) }

// Acquire always fails; callers observe it as out-of-memory.
func (osMemory) Acquire(uintptr) (unsafe.Pointer, error) {
	return nil, ErrUnsupported
}
