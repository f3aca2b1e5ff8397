package alloc

import (
	"fmt"
	"unsafe"
)

// RegionInfo describes one free region inside a mapped block.
type RegionInfo struct {
	Offset uintptr // from the block start
	Size   uintptr // header and footer included
}

// BlockInfo describes one mapped block.
type BlockInfo struct {
	Start       uintptr
	Length      uintptr
	LargestHint uintptr
	Free        []RegionInfo
}

// Snapshot copies the free list of every mapped block, in mapping order.
func (a *Allocator) Snapshot() []BlockInfo {
	if a.ready() != nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []BlockInfo
	a.eachBlock(func(b *mappedBlock) {
		info := BlockInfo{Start: b.base(), Length: b.length, LargestHint: b.largest}
		n := uintptr(0)
		for off := b.head; off != noRegion && n <= b.maxRegions(); n++ {
			r, ok := b.lookup(off)
			if !ok {
				break
			}
			info.Free = append(info.Free, RegionInfo{Offset: off, Size: r.size})
			off = r.next
		}
		out = append(out, info)
	})
	return out
}

// Verify checks every block's free list: intact markers on headers and
// footers, strictly increasing addresses, symmetric links, no two adjacent
// free regions, and a size hint that bounds the largest region.
func (a *Allocator) Verify() error {
	if err := a.ready(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	var err error
	a.eachBlock(func(b *mappedBlock) {
		if err == nil {
			err = verifyBlock(b)
		}
	})
	return err
}

func (a *Allocator) eachBlock(fn func(b *mappedBlock)) {
	for t := a.table; t != nil; t = t.next {
		for i := uintptr(0); i < t.slots; i++ {
			b := t.slot(i)
			if !b.inUse() {
				return
			}
			fn(b)
		}
	}
}

func verifyBlock(b *mappedBlock) error {
	fail := func(off uintptr, format string, args ...any) error {
		return fmt.Errorf("%w: block %#x offset %#x: %s", ErrCorrupt, b.base(), off, fmt.Sprintf(format, args...))
	}
	if b.length == 0 || b.base()%wordAlign != 0 {
		return fail(0, "bad extent length=%d", b.length)
	}

	prev := noRegion
	prevEnd := uintptr(0)
	largest := uintptr(0)
	n := uintptr(0)
	for off := b.head; off != noRegion; n++ {
		if n > b.maxRegions() {
			return fail(off, "free list cycle")
		}
		r, ok := b.lookup(off)
		if !ok {
			return fail(off, "invalid free region")
		}
		if r.prev != prev {
			return fail(off, "prev link %#x, want %#x", r.prev, prev)
		}
		if prev != noRegion {
			switch {
			case off < prevEnd:
				return fail(off, "overlaps previous region ending at %#x", prevEnd)
			case off == prevEnd:
				return fail(off, "adjacent to previous free region")
			}
		}
		if uintptr(unsafe.Pointer(r.footer()))+footerSize != b.base()+off+r.size {
			return fail(off, "footer misplaced")
		}
		largest = max(largest, r.size)
		prev, prevEnd = off, off+r.size
		off = r.next
	}
	if b.largest < largest {
		return fail(0, "size hint %d below largest free region %d", b.largest, largest)
	}
	return nil
}
