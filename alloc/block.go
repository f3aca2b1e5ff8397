package alloc

import "unsafe"

// mappedBlock describes one acquisition from the memory source. Descriptors
// live in mapping table pages, never on the Go heap.
type mappedBlock struct {
	start   unsafe.Pointer // nil for an unused slot
	length  uintptr
	largest uintptr // upper bound on the largest free region
	head    uintptr // block offset of the first free region, or noRegion
}

// tablePage is the header of one mapping table page. Slots follow it.
type tablePage struct {
	next  *tablePage
	slots uintptr
}

const (
	blockDescSize   = unsafe.Sizeof(mappedBlock{})
	tableHeaderSize = (unsafe.Sizeof(tablePage{}) + unsafe.Alignof(mappedBlock{}) - 1) &^ (unsafe.Alignof(mappedBlock{}) - 1)
)

// slotsPerPage is how many block descriptors fit in a table page of size bytes.
func slotsPerPage(size uintptr) uintptr {
	if size <= tableHeaderSize {
		return 0
	}
	return (size - tableHeaderSize) / blockDescSize
}

func newTablePage(p unsafe.Pointer, slots uintptr) *tablePage {
	t := (*tablePage)(p)
	t.next = nil
	t.slots = slots
	return t
}

func (t *tablePage) slot(i uintptr) *mappedBlock {
	return (*mappedBlock)(unsafe.Add(unsafe.Pointer(t), tableHeaderSize+i*blockDescSize))
}

func (b *mappedBlock) inUse() bool { return b.start != nil }

func (b *mappedBlock) base() uintptr { return uintptr(b.start) }

func (b *mappedBlock) contains(addr uintptr) bool {
	return b.inUse() && addr >= b.base() && addr-b.base() < b.length
}

// initBlock turns a fresh span into a block holding one free region.
func (b *mappedBlock) initBlock(p unsafe.Pointer, length uintptr) {
	writeRegion(p, length, noRegion, noRegion)
	*b = mappedBlock{start: p, length: length, largest: length, head: 0}
}

func (b *mappedBlock) at(off uintptr) *freeRegion {
	return regionAt(unsafe.Add(b.start, off))
}

func (b *mappedBlock) offsetOf(p unsafe.Pointer) uintptr {
	return uintptr(p) - b.base()
}

// lookup returns the free region at off if its markers are intact and it
// lies entirely inside the block.
func (b *mappedBlock) lookup(off uintptr) (*freeRegion, bool) {
	if off == noRegion || off%wordAlign != 0 || off >= b.length || b.length-off < minRegionSize {
		return nil, false
	}
	r := b.at(off)
	if r.magic != regionMagic || r.size > b.length-off || !r.valid() {
		return nil, false
	}
	return r, true
}

// linked reports whether off holds a valid free region that its neighbours
// in the free list agree is there.
func (b *mappedBlock) linked(off uintptr) (*freeRegion, bool) {
	r, ok := b.lookup(off)
	if !ok {
		return nil, false
	}
	if r.prev == noRegion {
		if b.head != off {
			return nil, false
		}
	} else {
		p, ok := b.lookup(r.prev)
		if !ok || p.next != off {
			return nil, false
		}
	}
	if r.next != noRegion {
		n, ok := b.lookup(r.next)
		if !ok || n.prev != off {
			return nil, false
		}
	}
	return r, true
}

// setNext points prev (or the list head) at off.
func (b *mappedBlock) setNext(prev, off uintptr) {
	if prev == noRegion {
		b.head = off
		return
	}
	b.at(prev).next = off
}

// setPrev points next back at off.
func (b *mappedBlock) setPrev(next, off uintptr) {
	if next != noRegion {
		b.at(next).prev = off
	}
}

func (b *mappedBlock) unlink(r *freeRegion) {
	b.setNext(r.prev, r.next)
	b.setPrev(r.next, r.prev)
}

// relink makes the neighbours recorded in the region at off point at it.
func (b *mappedBlock) relink(off uintptr) {
	r := b.at(off)
	b.setNext(r.prev, off)
	b.setPrev(r.next, off)
}

// maxRegions bounds free list walks so a cycle cannot spin forever.
func (b *mappedBlock) maxRegions() uintptr {
	return b.length/minRegionSize + 1
}

// exactLargest walks the free list. ok is false if a link is broken.
func (b *mappedBlock) exactLargest() (largest uintptr, ok bool) {
	n := uintptr(0)
	for off := b.head; off != noRegion; n++ {
		r, valid := b.lookup(off)
		if !valid || n > b.maxRegions() {
			return 0, false
		}
		largest = max(largest, r.size)
		off = r.next
	}
	return largest, true
}
