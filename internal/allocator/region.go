package allocator

import "unsafe"

// Region is a contiguous span of memory donated by the environment: its
// base address and byte size, a per-policy strategy vector, and a
// pointer into its own circular free list. Regions are never removed
// once installed (spec.md §3 Lifecycle).
type Region struct {
	mem      []byte // backing storage for every header and payload this region ever hands out
	base     uintptr
	size     uintptr // usable bytes, after alignment and the region-header reservation
	first    *blockHeader
	policies StrategyVector
	next     *Region
}

// alignUp rounds v up to the next multiple of align, a power of two.
func alignUp(v, align uintptr) uintptr {
	return (v + align - 1) &^ (align - 1)
}

// newRegion builds a Region from donated memory, per spec.md §4.1:
// the base is aligned up to one cell, one cell is reserved for the
// region's own bookkeeping, and the remainder becomes a single free
// block whose ring is a self-loop. Returns nil if the usable span
// after alignment and header reservation is less than four cells —
// too small to ever hold even a minimum split.
func newRegion(mem []byte, policies StrategyVector) *Region {
	if len(mem) == 0 {
		return nil
	}

	base := uintptr(unsafe.Pointer(&mem[0]))
	alignedBase := alignUp(base, cellSize)
	skip := alignedBase - base

	if skip > uintptr(len(mem)) {
		return nil
	}

	mem = mem[skip:]
	if uintptr(len(mem)) < cellSize {
		return nil
	}

	mem = mem[cellSize:] // reserve one cell for the region's own header

	usableCells := uintptr(len(mem)) / cellSize
	if usableCells < 4 {
		return nil
	}

	mem = mem[:usableCells*cellSize]

	first := (*blockHeader)(unsafe.Pointer(&mem[0]))
	first.size = usableCells
	first.magic = magicFree
	first.prev = first
	first.next = first

	return &Region{
		mem:      mem,
		base:     uintptr(unsafe.Pointer(&mem[0])),
		size:     usableCells * cellSize,
		first:    first,
		policies: policies,
	}
}

// contains reports whether addr falls in (base, base+size]: the range a
// payload pointer can take, since every payload sits at least one
// header cell past base. It is used to locate the owning region of a
// pointer handed to Free or Resize.
func (r *Region) contains(addr uintptr) bool {
	return addr > r.base && addr <= r.base+r.size
}

// full reports the O(1) "region full" fast path: once the final free
// block is allocated away, first is left pointing at what is now an
// allocated header (the sentinel described in spec.md §4.3).
func (r *Region) full() bool {
	return r.first.magic == magicAlloc
}
