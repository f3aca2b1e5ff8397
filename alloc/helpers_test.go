package alloc

import (
	"errors"
	"sort"
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

// testGrowth keeps test blocks small; anonymous mappings are never returned.
const testGrowth = 64 << 10

// countingSource wraps the OS source, records every acquisition and can be
// told to fail once a budget of acquisitions is spent.
type countingSource struct {
	MemorySource

	mu       sync.Mutex
	sizes    []uintptr
	budget   int // acquisitions allowed; negative is unlimited
	failures int
}

func newCountingSource(budget int) *countingSource {
	return &countingSource{MemorySource: OSMemory(), budget: budget}
}

func (s *countingSource) Acquire(size uintptr) (unsafe.Pointer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.budget >= 0 && len(s.sizes) >= s.budget {
		s.failures++
		return nil, ErrOutOfMemory
	}
	p, err := s.MemorySource.Acquire(size)
	if err != nil {
		return nil, err
	}
	s.sizes = append(s.sizes, size)
	return p, nil
}

func (s *countingSource) acquired() []uintptr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uintptr(nil), s.sizes...)
}

func newTestAllocator(t *testing.T, cfg Config) *Allocator {
	t.Helper()
	if cfg.GrowthFloor == 0 {
		cfg.GrowthFloor = testGrowth
	}
	a := NewAllocator(&cfg)
	t.Cleanup(func() {
		require.NoError(t, a.Verify(), "free lists inconsistent at end of test")
	})
	return a
}

// requirePanicsIs runs fn and requires a panic whose value is an error
// matching target.
func requirePanicsIs(t *testing.T, target error, fn func()) {
	t.Helper()
	var got any
	func() {
		defer func() { got = recover() }()
		fn()
	}()
	require.NotNil(t, got, "expected panic")
	err, ok := got.(error)
	require.True(t, ok, "panic value %v is not an error", got)
	require.True(t, errors.Is(err, target), "panic %v is not %v", err, target)
}

type span struct{ lo, hi uintptr }

// requireDisjoint fails if any two spans overlap.
func requireDisjoint(t *testing.T, spans []span) {
	t.Helper()
	sorted := append([]span(nil), spans...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].lo < sorted[j].lo })
	for i := 1; i < len(sorted); i++ {
		require.LessOrEqual(t, sorted[i-1].hi, sorted[i].lo,
			"span [%#x,%#x) overlaps [%#x,%#x)", sorted[i-1].lo, sorted[i-1].hi, sorted[i].lo, sorted[i].hi)
	}
}

// requireFullyCoalesced asserts every block is one free region covering it.
func requireFullyCoalesced(t *testing.T, a *Allocator) {
	t.Helper()
	for _, b := range a.Snapshot() {
		require.Len(t, b.Free, 1, "block %#x has %d free regions", b.Start, len(b.Free))
		require.Equal(t, RegionInfo{Offset: 0, Size: b.Length}, b.Free[0])
		require.Equal(t, b.Length, b.LargestHint)
	}
}

func fill(p unsafe.Pointer, n uintptr, v byte) {
	b := unsafe.Slice((*byte)(p), n)
	for i := range b {
		b[i] = v
	}
}

func holds(p unsafe.Pointer, n uintptr, v byte) bool {
	for _, c := range unsafe.Slice((*byte)(p), n) {
		if c != v {
			return false
		}
	}
	return true
}
