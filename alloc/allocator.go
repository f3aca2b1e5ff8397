package alloc

import (
	"fmt"
	"log/slog"
	"math/bits"
	"sync"
	"unsafe"
)

// Allocator carves caller allocations out of blocks mapped from a
// MemorySource. All state is guarded by one spin lock; every method is safe
// for concurrent use.
//
// The zero value is ready to use with DefaultConfig. Nothing is mapped until
// the first allocation.
type Allocator struct {
	mu spinLock

	once    sync.Once
	initErr error

	cfg      Config
	log      *slog.Logger
	source   MemorySource
	pageSize uintptr
	growth   uintptr // minimum mapped block size
	slots    uintptr // block slots per table page
	table    *tablePage
	blocks   int
}

var std Allocator

// Default returns the process-wide allocator.
func Default() *Allocator { return &std }

// NewAllocator returns an allocator using cfg. A nil cfg selects DefaultConfig.
func NewAllocator(cfg *Config) *Allocator {
	a := &Allocator{}
	if cfg != nil {
		a.cfg = *cfg
	}
	return a
}

// Allocate reserves size bytes at align from the process-wide allocator.
func Allocate(size, align uintptr) unsafe.Pointer { return std.Allocate(size, align) }

// Deallocate releases p back to the process-wide allocator.
func Deallocate(p unsafe.Pointer) { std.Deallocate(p) }

// init resolves sizing policy and maps the first table page. It runs once.
func (a *Allocator) init() {
	cfg := a.cfg.withDefaults()
	a.cfg = cfg
	a.log = cfg.Logger
	a.source = cfg.Source

	page := a.source.PageSize()
	if !isPowerOfTwo(page) || slotsPerPage(page) == 0 {
		a.initErr = fmt.Errorf("alloc: unusable page size %d", page)
		return
	}
	a.pageSize = page

	growth := nextPowerOfTwo(max(cfg.GrowthFloor, page))
	if growth == 0 {
		a.initErr = fmt.Errorf("alloc: growth floor %d: %w", cfg.GrowthFloor, ErrOutOfMemory)
		return
	}
	a.growth = growth

	a.slots = slotsPerPage(page)
	if cfg.TableSlots > 0 && uintptr(cfg.TableSlots) < a.slots {
		a.slots = uintptr(cfg.TableSlots)
	}

	t, err := a.newTablePage()
	if err != nil {
		a.initErr = fmt.Errorf("alloc: mapping table: %w", err)
		return
	}
	a.table = t
	a.log.Debug("allocator ready", "page_size", page, "growth", growth, "slots_per_page", a.slots)
}

func (a *Allocator) ready() error {
	a.once.Do(a.init)
	return a.initErr
}

// newTablePage maps a page for block descriptors. Table pages come straight
// from the memory source so the allocator never allocates through itself.
func (a *Allocator) newTablePage() (*tablePage, error) {
	p, err := a.source.Acquire(a.pageSize)
	if err != nil {
		return nil, err
	}
	return newTablePage(p, a.slots), nil
}

// Allocate returns size bytes aligned to align, or nil if no memory could be
// mapped. align must be zero or a power of two.
func (a *Allocator) Allocate(size, align uintptr) unsafe.Pointer {
	p, _ := a.TryAllocate(size, align)
	return p
}

// TryAllocate is Allocate with the reason for a nil result.
func (a *Allocator) TryAllocate(size, align uintptr) (unsafe.Pointer, error) {
	if align != 0 && !isPowerOfTwo(align) {
		panic(fmt.Errorf("%w: %d", ErrBadAlignment, align))
	}
	align = effectiveAlign(align)

	if err := a.ready(); err != nil {
		return nil, err
	}

	need, ok := spanBound(size, align)
	if !ok {
		return nil, fmt.Errorf("allocate %d bytes: %w", size, ErrOutOfMemory)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	b, r, err := a.findBlock(need, size, align)
	if err != nil {
		a.log.Warn("allocation failed", "size", size, "align", align, "err", err)
		return nil, fmt.Errorf("allocate %d bytes: %w", size, err)
	}
	return a.carve(b, r, size, align), nil
}

// findBlock returns the first block whose hint admits need together with a
// free region in it that fits. Unused slots get a fresh block; a full table
// page gets an overflow page.
func (a *Allocator) findBlock(need, size, align uintptr) (*mappedBlock, *freeRegion, error) {
	for t := a.table; ; t = t.next {
		for i := uintptr(0); i < t.slots; i++ {
			b := t.slot(i)
			if !b.inUse() {
				if err := a.mapBlock(b, need); err != nil {
					return nil, nil, err
				}
				return b, b.at(b.head), nil
			}
			if b.largest < need {
				continue
			}
			if r := a.firstFit(b, size, align); r != nil {
				return b, r, nil
			}
			// The hint was stale-high. Tighten it so the block is skipped next time.
			largest, ok := b.exactLargest()
			if !ok {
				a.corrupt("allocate", b.base(), ErrCorrupt, "free list broken while recomputing hint")
			}
			a.log.Debug("tightened block hint", "block", b.base(), "from", b.largest, "to", largest)
			b.largest = largest
		}
		if t.next == nil {
			next, err := a.newTablePage()
			if err != nil {
				return nil, nil, err
			}
			t.next = next
			a.log.Debug("mapping table grew", "blocks", a.blocks)
		}
	}
}

// mapBlock fills an unused slot with a block large enough for need.
func (a *Allocator) mapBlock(b *mappedBlock, need uintptr) error {
	length := nextPowerOfTwo(need)
	if length == 0 {
		return ErrOutOfMemory
	}
	length = max(length, a.growth)
	if rounded := alignUp(length, a.pageSize); rounded >= length {
		length = rounded
	} else {
		return ErrOutOfMemory
	}

	p, err := a.source.Acquire(length)
	if err != nil {
		return err
	}
	b.initBlock(p, length)
	a.blocks++
	a.log.Debug("mapped block", "index", a.blocks-1, "start", b.base(), "length", length)
	return nil
}

// firstFit walks b's free list from the head and returns the first region
// the request fits in.
func (a *Allocator) firstFit(b *mappedBlock, size, align uintptr) *freeRegion {
	n := uintptr(0)
	for off := b.head; off != noRegion; n++ {
		r, ok := b.lookup(off)
		if !ok || n > b.maxRegions() {
			a.corrupt("allocate", b.base()+off, ErrCorrupt, "invalid free region in list")
		}
		start := uintptr(unsafe.Pointer(r))
		if c := plan(start, size, align); c.successor-start <= r.size {
			return r
		}
		off = r.next
	}
	return nil
}

// carve splits r into an allocation span and, if the tail is big enough, a
// new free region that takes r's place in the list.
func (a *Allocator) carve(b *mappedBlock, r *freeRegion, size, align uintptr) unsafe.Pointer {
	start := uintptr(unsafe.Pointer(r))
	regionSize := r.size
	end := start + regionSize
	prev, next := r.prev, r.next
	c := plan(start, size, align)

	spanEnd := end
	if end-c.successor < minRegionSize {
		// Too small to stand alone: fold the tail into the allocation.
		b.setNext(prev, next)
		b.setPrev(next, prev)
		wipeFooter(unsafe.Add(b.start, end-b.base()))
	} else {
		off := c.successor - b.base()
		writeRegion(unsafe.Add(b.start, off), end-c.successor, prev, next)
		b.relink(off)
		spanEnd = c.successor
	}
	if c.record != start {
		r.wipe()
	}

	rec := (*allocRecord)(unsafe.Add(b.start, c.record-b.base()))
	*rec = allocRecord{
		start:    recordStart,
		prevFree: prev,
		size:     spanEnd - start,
		offset:   c.record - start,
		end:      recordEnd,
	}

	if regionSize >= b.largest {
		largest, ok := b.exactLargest()
		if !ok {
			a.corrupt("allocate", b.base(), ErrCorrupt, "free list broken after split")
		}
		b.largest = largest
	}
	return unsafe.Add(b.start, c.usable-b.base())
}

// Deallocate returns p to the allocator and coalesces it with free
// neighbours. nil is ignored. A pointer that is not live panics with a
// *CorruptionError.
func (a *Allocator) Deallocate(p unsafe.Pointer) {
	if p == nil {
		return
	}
	if err := a.ready(); err != nil {
		a.corrupt("deallocate", uintptr(p), ErrForeignPointer, "allocator never initialised")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	b, rec := a.recordOf("deallocate", p)
	spanOff := b.offsetOf(rec.spanStart())
	spanSize := rec.size
	hint := rec.prevFree
	rec.wipe()

	off, size := spanOff, spanSize

	// Forward: a free region starting right where the span ends.
	if end := off + size; end < b.length {
		if nr, ok := b.linked(end); ok {
			b.unlink(nr)
			size += nr.size
			nr.wipe()
		}
	}

	// Backward: the footer of a free region ending right where the span starts.
	if off >= minRegionSize {
		f := (*regionFooter)(unsafe.Add(b.start, off-footerSize))
		if f.magic == footerMagic && f.size >= minRegionSize && f.size <= off {
			if pr, ok := b.linked(off - f.size); ok && pr.size == f.size {
				b.unlink(pr)
				off -= f.size
				size += f.size
				*f = regionFooter{}
			}
		}
	}

	prev := a.insertionPoint(b, off, hint)
	next := b.head
	if prev != noRegion {
		next = b.at(prev).next
	}
	writeRegion(unsafe.Add(b.start, off), size, prev, next)
	b.relink(off)
	b.largest = max(b.largest, size)
}

// UsableSize reports how many bytes starting at p belong to its allocation.
func (a *Allocator) UsableSize(p unsafe.Pointer) uintptr {
	if err := a.ready(); err != nil {
		a.corrupt("usable size", uintptr(p), ErrForeignPointer, "allocator never initialised")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	_, rec := a.recordOf("usable size", p)
	return uintptr(rec.spanStart()) + rec.size - uintptr(p)
}

// recordOf finds the block owning p and validates the record before it.
// Callers hold the lock.
func (a *Allocator) recordOf(op string, p unsafe.Pointer) (*mappedBlock, *allocRecord) {
	addr := uintptr(p)
	b := a.owner(addr)
	if b == nil {
		a.corrupt(op, addr, ErrForeignPointer, "no mapped block contains pointer")
	}
	if addr%wordAlign != 0 || addr-b.base() < recordSize {
		a.corrupt(op, addr, ErrForeignPointer, "pointer cannot be preceded by a record")
	}

	rec := recordFor(p)
	if !rec.valid() {
		a.corrupt(op, addr, ErrCorrupt, "allocation record markers damaged (double free or wrong pointer)")
	}
	recOff := b.offsetOf(unsafe.Pointer(rec))
	if rec.offset > recOff || rec.offset%wordAlign != 0 {
		a.corrupt(op, addr, ErrCorrupt, "allocation record offset out of range")
	}
	spanOff := recOff - rec.offset
	if rec.size > b.length-spanOff || spanOff+rec.size < recOff+recordSize {
		a.corrupt(op, addr, ErrCorrupt, "allocation record size out of range")
	}
	return b, rec
}

// owner returns the block containing addr, or nil.
func (a *Allocator) owner(addr uintptr) *mappedBlock {
	for t := a.table; t != nil; t = t.next {
		for i := uintptr(0); i < t.slots; i++ {
			b := t.slot(i)
			if !b.inUse() {
				return nil
			}
			if b.contains(addr) {
				return b
			}
		}
	}
	return nil
}

// insertionPoint returns the offset of the free region that should precede
// off, or noRegion if off becomes the head. hint, the region that preceded
// the span when it was carved, is used as the starting point while it is
// still a linked region below off.
func (a *Allocator) insertionPoint(b *mappedBlock, off, hint uintptr) uintptr {
	cur := noRegion
	if hint != noRegion && hint < off {
		if _, ok := b.linked(hint); ok {
			cur = hint
		}
	}

	next := b.head
	if cur != noRegion {
		next = b.at(cur).next
	}
	for n := uintptr(0); next != noRegion && next < off; n++ {
		r, ok := b.lookup(next)
		if !ok || n > b.maxRegions() {
			a.corrupt("deallocate", b.base()+next, ErrCorrupt, "invalid free region in list")
		}
		cur = next
		next = r.next
	}
	return cur
}

func (a *Allocator) corrupt(op string, addr uintptr, err error, msg string) {
	e := &CorruptionError{Op: op, Addr: addr, Err: err, Msg: msg}
	if a.log != nil {
		a.log.Error("fatal allocator error", "op", op, "addr", addr, "err", err, "msg", msg)
	}
	panic(e)
}

// New allocates a zeroed T from the process-wide allocator. T must not hold
// pointers into the Go heap: the garbage collector does not scan allocator
// memory.
func New[T any]() *T { return NewWith[T](&std) }

// NewWith is New on a specific allocator.
func NewWith[T any](a *Allocator) *T {
	var zero T
	p := a.Allocate(unsafe.Sizeof(zero), unsafe.Alignof(zero))
	if p == nil {
		return nil
	}
	t := (*T)(p)
	*t = zero
	return t
}

// MakeSlice allocates a zeroed slice of n elements, or nil if n <= 0 or
// memory is exhausted. The same restriction on T applies as for New.
func MakeSlice[T any](n int) []T { return MakeSliceWith[T](&std, n) }

// MakeSliceWith is MakeSlice on a specific allocator.
func MakeSliceWith[T any](a *Allocator, n int) []T {
	if n <= 0 {
		return nil
	}
	var zero T
	hi, size := bits.Mul(uint(n), uint(unsafe.Sizeof(zero)))
	if hi != 0 {
		return nil
	}
	p := a.Allocate(uintptr(size), unsafe.Alignof(zero))
	if p == nil {
		return nil
	}
	s := unsafe.Slice((*T)(p), n)
	clear(s)
	return s
}

// Free releases a value obtained from New.
func Free[T any](p *T) { FreeWith(&std, p) }

// FreeWith is Free on a specific allocator.
func FreeWith[T any](a *Allocator, p *T) {
	a.Deallocate(unsafe.Pointer(p))
}

// FreeSlice releases a slice obtained from MakeSlice. It must be passed a
// slice starting at the first element, not a re-slice with a moved start.
func FreeSlice[T any](s []T) { FreeSliceWith(&std, s) }

// FreeSliceWith is FreeSlice on a specific allocator.
func FreeSliceWith[T any](a *Allocator, s []T) {
	if cap(s) == 0 {
		return
	}
	a.Deallocate(unsafe.Pointer(unsafe.SliceData(s)))
}
