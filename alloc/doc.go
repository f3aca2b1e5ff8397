// Package alloc is a general-purpose allocator that carves memory out of
// large anonymous mappings obtained straight from the operating system.
//
// # Overview
//
// Memory is requested from a MemorySource in mapped blocks of at least the
// growth increment (16 MiB by default, rounded to a power-of-two multiple of
// the page size). Each block keeps an address-ordered, doubly linked list of
// free regions inside its own memory, plus a hint bounding the largest one.
// Block descriptors live in mapping table pages that also come from the
// memory source, so the allocator never allocates through itself.
//
//	p := alloc.Allocate(64, 8)
//	if p == nil {
//	    // out of memory
//	}
//	defer alloc.Deallocate(p)
//
// Typed helpers wrap the raw entry points:
//
//	n := alloc.New[node]()
//	defer alloc.Free(n)
//
//	buf := alloc.MakeSlice[uint64](1024)
//	defer alloc.FreeSlice(buf)
//
// # Selection
//
// Allocation is first-fit twice over: the first block whose hint admits the
// request, then the first free region in that block's list that fits. The
// region is split into an allocation span and a trailing free region; tails
// too small to hold a free region are folded into the allocation.
//
// # Release
//
// Deallocate recovers the record in front of the pointer, checks its
// sentinels, turns the span back into a free region and merges it with a
// free region directly before or after it. After every allocation in a block
// is released the block is again a single free region.
//
// # Errors
//
// Running out of memory is an ordinary nil result (or an error wrapping
// ErrOutOfMemory from TryAllocate). Freeing a pointer that is not live, a
// non-power-of-two alignment, and damaged metadata all panic: carrying on
// with a corrupt heap is never safe.
//
// # Thread Safety
//
// A single spin lock serialises every operation on an Allocator. The lock
// and the lazy initialisation never allocate.
//
// Allocator memory is invisible to the garbage collector. Values stored in
// it must not be the only reference to Go heap objects.
//
// Set FREELIST_LOG_ALLOC to any value to get debug logs on stderr.
package alloc
