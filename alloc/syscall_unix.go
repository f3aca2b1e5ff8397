//go:build unix

package alloc

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

func (osMemory) PageSize() uintptr { return uintptr(unix.Getpagesize()) }

func (m osMemory) Acquire(size uintptr) (unsafe.Pointer, error) {
	if err := checkAcquireSize(size, m.PageSize()); err != nil {
		return nil, err
	}
	if size > uintptr(int(^uint(0)>>1)) {
		return nil, fmt.Errorf("mmap %d bytes: %w", size, ErrOutOfMemory)
	}

	// fd -1 with MAP_ANON: no backing file, pages are zero-filled on first touch.
	mem, err := unix.Mmap(-1, 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON,
	)
	if err != nil {
		return nil, fmt.Errorf("mmap %d bytes: %w: %w", size, ErrOutOfMemory, err)
	}
	return unsafe.Pointer(unsafe.SliceData(mem)), nil
}
