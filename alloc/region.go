package alloc

import (
	"math/bits"
	"unsafe"
)

// Block layout & metadata
//
// Every byte of a mapped block belongs to exactly one free region or one
// allocation span. Both start and end on an 8-byte boundary.
//
//	free region:     [HEADER=32][.......unused.......][FOOTER=16]
//	allocation span: [pad][RECORD=40][USABLE...][tail pad]
//	                  ^ span start    ^ pointer handed to the caller
//
// Free regions are threaded into a doubly linked list in address order. Links
// are byte offsets from the block start rather than raw pointers, so a
// corrupted link can be bounds-checked before it is followed.

var (
	regionMagic = [8]byte{'R', 'E', 'G', 'S', 'T', 'A', 'R', 'T'}
	footerMagic = [8]byte{0, 0, 'R', 'E', 'G', 'E', 'N', 'D'}
	recordStart = [8]byte{'T', 'A', 'G', 'S', 'T', 'A', 'R', 'T'}
	recordEnd   = [8]byte{0, 0, 'T', 'A', 'G', 'E', 'N', 'D'}
)

// noRegion marks the end of a free list.
const noRegion = ^uintptr(0)

// wordAlign is the alignment of every metadata structure and span boundary.
const wordAlign = 8

// freeRegion is the header at the start of every free span.
type freeRegion struct {
	magic [8]byte
	prev  uintptr // block offset of the previous free region, or noRegion
	next  uintptr // block offset of the next free region, or noRegion
	size  uintptr // whole span, header and footer included
}

// regionFooter closes every free span so the span after it can find it.
type regionFooter struct {
	size  uintptr
	magic [8]byte
}

// allocRecord sits immediately before every pointer handed to a caller.
type allocRecord struct {
	start    [8]byte
	prevFree uintptr // free region preceding this span when it was carved
	size     uintptr // whole span, from span start to the next boundary
	offset   uintptr // span start to record start
	end      [8]byte
}

const (
	headerSize = unsafe.Sizeof(freeRegion{})
	footerSize = unsafe.Sizeof(regionFooter{})
	recordSize = unsafe.Sizeof(allocRecord{})

	// minRegionSize is the smallest span that can be turned into a free region.
	minRegionSize = headerSize + footerSize
)

// alignUp rounds n up to a multiple of align, which must be a power of two.
//
//	alignUp(1, 8)  = 8
//	alignUp(8, 8)  = 8
//	alignUp(9, 16) = 16
func alignUp(n, align uintptr) uintptr {
	return (n + align - 1) &^ (align - 1)
}

func isPowerOfTwo(n uintptr) bool {
	return n != 0 && n&(n-1) == 0
}

// nextPowerOfTwo returns the smallest power of two >= n, or 0 on overflow.
func nextPowerOfTwo(n uintptr) uintptr {
	if n <= 1 {
		return 1
	}
	shift := bits.Len64(uint64(n - 1))
	if shift >= bits.UintSize {
		return 0
	}
	return 1 << shift
}

// effectiveAlign normalises a caller alignment. Zero means word alignment.
func effectiveAlign(align uintptr) uintptr {
	if align < wordAlign {
		return wordAlign
	}
	return align
}

// spanBound returns the worst-case span a request can occupy from any
// word-aligned region start, and false if it overflows.
func spanBound(size, align uintptr) (uintptr, bool) {
	pad := align - wordAlign
	body := alignUp(size, wordAlign)
	if body < size {
		return 0, false
	}
	need := recordSize + pad + body
	if need < body {
		return 0, false
	}
	return max(need, minRegionSize), true
}

// carve describes how a request is laid out inside a free region.
type carve struct {
	record    uintptr // address of the allocation record
	usable    uintptr // pointer returned to the caller
	successor uintptr // first byte after the allocation span
}

// plan lays out size bytes at align (already normalised) from start. The
// result may extend beyond the region; callers compare successor to the end.
func plan(start, size, align uintptr) carve {
	usable := alignUp(start+recordSize, align)
	successor := max(alignUp(usable+size, wordAlign), start+minRegionSize)
	return carve{
		record:    usable - recordSize,
		usable:    usable,
		successor: successor,
	}
}

func regionAt(p unsafe.Pointer) *freeRegion { return (*freeRegion)(p) }

func (r *freeRegion) footer() *regionFooter {
	return (*regionFooter)(unsafe.Add(unsafe.Pointer(r), r.size-footerSize))
}

// writeRegion formats [p, p+size) as a free region.
func writeRegion(p unsafe.Pointer, size, prev, next uintptr) *freeRegion {
	r := regionAt(p)
	*r = freeRegion{magic: regionMagic, prev: prev, next: next, size: size}
	*r.footer() = regionFooter{size: size, magic: footerMagic}
	return r
}

// valid reports whether the header and its footer both carry their markers
// and agree on the size.
func (r *freeRegion) valid() bool {
	if r.magic != regionMagic || r.size < minRegionSize || r.size%wordAlign != 0 {
		return false
	}
	f := r.footer()
	return f.magic == footerMagic && f.size == r.size
}

func (r *freeRegion) wipe() {
	r.magic = [8]byte{}
}

func wipeFooter(end unsafe.Pointer) {
	f := (*regionFooter)(unsafe.Add(end, -int(footerSize)))
	*f = regionFooter{}
}

func recordFor(usable unsafe.Pointer) *allocRecord {
	return (*allocRecord)(unsafe.Add(usable, -int(recordSize)))
}

func (t *allocRecord) valid() bool {
	return t.start == recordStart && t.end == recordEnd &&
		t.size >= minRegionSize && t.size%wordAlign == 0
}

func (t *allocRecord) wipe() {
	t.start = [8]byte{}
	t.end = [8]byte{}
}

// spanStart returns the first byte of the span this record describes.
func (t *allocRecord) spanStart() unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(t), -int(t.offset))
}
