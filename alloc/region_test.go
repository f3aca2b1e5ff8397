package alloc

import (
	"fmt"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlignUp(t *testing.T) {
	tests := []struct {
		n, align, want uintptr
	}{
		{0, 8, 0},
		{1, 8, 8},
		{8, 8, 8},
		{9, 8, 16},
		{9, 16, 16},
		{17, 16, 32},
		{4095, 4096, 4096},
		{4097, 4096, 8192},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, alignUp(tt.n, tt.align), "alignUp(%d, %d)", tt.n, tt.align)
	}
}

func TestNextPowerOfTwo(t *testing.T) {
	assert.Equal(t, uintptr(1), nextPowerOfTwo(0))
	assert.Equal(t, uintptr(1), nextPowerOfTwo(1))
	assert.Equal(t, uintptr(2), nextPowerOfTwo(2))
	assert.Equal(t, uintptr(4), nextPowerOfTwo(3))
	assert.Equal(t, uintptr(1<<20), nextPowerOfTwo(1<<20))
	assert.Equal(t, uintptr(1<<21), nextPowerOfTwo(1<<20+1))
	assert.Equal(t, uintptr(0), nextPowerOfTwo(^uintptr(0)), "overflow reports zero")
}

func TestIsPowerOfTwo(t *testing.T) {
	for _, n := range []uintptr{1, 2, 8, 64, 4096} {
		assert.True(t, isPowerOfTwo(n), "%d", n)
	}
	for _, n := range []uintptr{0, 3, 6, 12, 4097} {
		assert.False(t, isPowerOfTwo(n), "%d", n)
	}
}

func TestLayoutSizes(t *testing.T) {
	if unsafe.Sizeof(uintptr(0)) != 8 {
		t.Skip("layout constants are checked on 64-bit platforms")
	}
	assert.Equal(t, uintptr(32), headerSize)
	assert.Equal(t, uintptr(16), footerSize)
	assert.Equal(t, uintptr(40), recordSize)
	assert.Equal(t, uintptr(48), minRegionSize)
	assert.Equal(t, uintptr(32), blockDescSize)
	assert.Equal(t, uintptr(16), tableHeaderSize)
	assert.Equal(t, uintptr(127), slotsPerPage(4096))
}

func TestPlan(t *testing.T) {
	for _, align := range []uintptr{8, 16, 32, 64, 256, 4096} {
		for _, size := range []uintptr{0, 1, 7, 8, 63, 64, 1000} {
			for _, start := range []uintptr{0x10000, 0x10008, 0x10030, 0x10ff8} {
				t.Run(fmt.Sprintf("a%d_s%d_%x", align, size, start), func(t *testing.T) {
					c := plan(start, size, align)
					bound, ok := spanBound(size, align)
					require.True(t, ok)

					assert.Zero(t, c.usable%align, "usable pointer misaligned")
					assert.Equal(t, c.usable-recordSize, c.record, "record must sit right before usable")
					assert.GreaterOrEqual(t, c.record, start)
					assert.Zero(t, c.record%wordAlign)
					assert.Zero(t, c.successor%wordAlign)
					assert.GreaterOrEqual(t, c.successor, c.usable+size)
					assert.GreaterOrEqual(t, c.successor-start, minRegionSize, "span must be able to become a free region")
					assert.LessOrEqual(t, c.successor-start, bound, "bound must cover any start")
				})
			}
		}
	}
}

func TestSpanBoundOverflow(t *testing.T) {
	_, ok := spanBound(^uintptr(0)-3, 8)
	assert.False(t, ok)
	_, ok = spanBound(^uintptr(0)-64, 4096)
	assert.False(t, ok)
}

func TestEffectiveAlign(t *testing.T) {
	assert.Equal(t, uintptr(8), effectiveAlign(0))
	assert.Equal(t, uintptr(8), effectiveAlign(1))
	assert.Equal(t, uintptr(8), effectiveAlign(4))
	assert.Equal(t, uintptr(64), effectiveAlign(64))
}

func TestWriteRegion(t *testing.T) {
	buf := make([]uint64, 64)
	p := unsafe.Pointer(&buf[0])

	r := writeRegion(p, 256, noRegion, 512)
	require.True(t, r.valid())
	assert.Equal(t, uintptr(256), r.size)
	assert.Equal(t, noRegion, r.prev)
	assert.Equal(t, uintptr(512), r.next)
	assert.Equal(t, footerMagic, r.footer().magic)
	assert.Equal(t, uintptr(256), r.footer().size)

	r.footer().magic[7] ^= 0xff
	assert.False(t, r.valid(), "damaged footer must invalidate the region")
	r.footer().magic = footerMagic
	require.True(t, r.valid())

	r.footer().size = 128
	assert.False(t, r.valid(), "footer size must agree with header")
	r.footer().size = 256

	r.wipe()
	assert.False(t, r.valid())
}

func TestAllocRecord(t *testing.T) {
	buf := make([]uint64, 16)
	rec := (*allocRecord)(unsafe.Pointer(&buf[2]))
	*rec = allocRecord{start: recordStart, size: 104, offset: 16, end: recordEnd}

	usable := unsafe.Add(unsafe.Pointer(rec), recordSize)
	require.Equal(t, rec, recordFor(usable))
	assert.True(t, rec.valid())
	assert.Equal(t, unsafe.Pointer(&buf[0]), rec.spanStart())

	rec.wipe()
	assert.False(t, rec.valid(), "wiped records must fail validation")
}
