// Package allocator's Heap is the process-wide registry: an ordered
// linked list of regions sorted by ascending capacity, whose head is
// the sole module-level handle (spec.md §2).
package allocator

import (
	"unsafe"

	"github.com/orizon-lang/orizon-bootmm/internal/bootmmerr"
)

// Heap is the allocator's top-level handle. The zero value is ready to
// use once at least one region has been registered. A freestanding
// target keeps exactly one Heap as a package-level singleton (see
// Default in default.go); tests and the simulation harness may construct
// independent heaps.
type Heap struct {
	head  *Region
	hooks ReclaimHooks
}

// New creates an empty heap with the given reclamation hooks. Passing
// nil hooks is valid; reclamation then has nothing to try and goes
// straight to out-of-memory.
func New(hooks ReclaimHooks) *Heap {
	return &Heap{hooks: hooks}
}

// SetHooks replaces the heap's reclamation hooks.
func (h *Heap) SetHooks(hooks ReclaimHooks) {
	h.hooks = hooks
}

// RegisterRegion installs mem as a memory span the heap may allocate
// from, with the given per-policy strategy vector (spec.md §4.1). mem
// must not be touched by the caller again: ownership transfers to the
// heap. Regions too small to hold even a minimum split (after
// alignment and header reservation) are silently ignored — this is a
// best-effort bootstrap routine with no error return.
func (h *Heap) RegisterRegion(mem []byte, policies StrategyVector) {
	r := newRegion(mem, policies)
	if r == nil {
		return
	}

	// Insert before the first existing region of strictly greater size,
	// preserving ascending-capacity order (spec.md §3 invariant 6).
	pp := &h.head

	for *pp != nil && (*pp).size <= r.size {
		pp = &(*pp).next
	}

	r.next = *pp
	*pp = r
}

// Allocate is the default-policy allocation, with no special alignment.
func (h *Heap) Allocate(sizeBytes uintptr) unsafe.Pointer {
	return h.AllocatePolicy(0, sizeBytes, DEFAULT)
}

// AllocateAligned allocates sizeBytes aligned to align, which must be a
// power of two (or 0, treated as 1).
func (h *Heap) AllocateAligned(align, sizeBytes uintptr) unsafe.Pointer {
	return h.AllocatePolicy(align, sizeBytes, DEFAULT)
}

// AllocateZeroed is Allocate with the result zero-filled on success.
func (h *Heap) AllocateZeroed(sizeBytes uintptr) unsafe.Pointer {
	p := h.Allocate(sizeBytes)
	if p == nil {
		return nil
	}

	zero := unsafe.Slice((*byte)(p), sizeBytes)
	for i := range zero {
		zero[i] = 0
	}

	return p
}

// AllocatePolicy allocates sizeBytes aligned to align (0 meaning no
// special alignment) using the placement strategy region registrations
// assigned to policy. Returns nil, having recorded an out-of-memory
// error on the process-wide channel, if no region can satisfy the
// request even after the reclamation sequence in §4.6 runs.
func (h *Heap) AllocatePolicy(align, sizeBytes uintptr, policy Policy) unsafe.Pointer {
	n := cellsNeeded(sizeBytes)
	alignC := alignCells(align)

	for attempt := 0; ; attempt++ {
		for r := h.head; r != nil; r = r.next {
			if int(policy) >= len(r.policies) || r.policies[policy] == SKIP {
				continue
			}

			if hdr := r.allocate(alignC, n, r.policies[policy]); hdr != nil {
				return payload(hdr)
			}
		}

		if !h.reclaim(attempt) {
			bootmmerr.Error(bootmmerr.OutOfMemory())

			return nil
		}
	}
}

// reclaim runs the attempt-th step of the reclamation sequence
// (spec.md §4.6) and reports whether a retry is warranted.
func (h *Heap) reclaim(attempt int) bool {
	if h.hooks == nil {
		return false
	}

	switch attempt {
	case 0:
		h.hooks.InvalidateDiskCache()

		return true
	case 1:
		h.hooks.UnloadUnneededModules()

		return true
	default:
		return false
	}
}

// Free returns p, previously returned by an Allocate variant, to its
// owning region. p == nil is a no-op.
func (h *Heap) Free(p unsafe.Pointer) {
	if p == nil {
		return
	}

	hdr, r := h.headerFor(p)
	r.free(hdr)
}

// Resize changes the size of the block at p to sizeBytes, using
// DEFAULT placement if a fresh allocation is required. See ResizePolicy
// for the full contract.
func (h *Heap) Resize(p unsafe.Pointer, sizeBytes uintptr) unsafe.Pointer {
	return h.ResizePolicy(p, 0, sizeBytes, DEFAULT)
}

// ResizePolicy implements spec.md §4.5:
//
//   - p == nil delegates to AllocatePolicy.
//   - sizeBytes == 0 frees p and returns nil.
//   - a block already big enough is returned unchanged (no shrink).
//   - growth first tries in place, then falls back to allocate-copy-free.
//
// On allocation failure during the copy fallback, the original block is
// left intact and nil is returned — callers retain their old pointer.
func (h *Heap) ResizePolicy(p unsafe.Pointer, align, sizeBytes uintptr, policy Policy) unsafe.Pointer {
	if p == nil {
		return h.AllocatePolicy(align, sizeBytes, policy)
	}

	if sizeBytes == 0 {
		h.Free(p)

		return nil
	}

	n := cellsNeeded(sizeBytes)
	hdr, r := h.headerFor(p)

	if hdr.size >= n {
		return p
	}

	if r.growInPlace(hdr, n) {
		return p
	}

	newP := h.AllocatePolicy(align, sizeBytes, policy)
	if newP == nil {
		return nil
	}

	oldBytes := (hdr.size - 1) * cellSize
	copyBytes := oldBytes
	if sizeBytes < copyBytes {
		copyBytes = sizeBytes
	}

	copy(unsafe.Slice((*byte)(newP), copyBytes), unsafe.Slice((*byte)(p), copyBytes))
	h.Free(p)

	return newP
}

// headerFor rewinds a caller pointer to its header and locates the
// owning region, validating both along the way. Corruption here is
// always fatal (spec.md §7): an unaligned pointer, a pointer outside
// every known region, or a header whose magic isn't ALLOC are all bugs
// in the caller, not conditions the allocator can recover from.
func (h *Heap) headerFor(p unsafe.Pointer) (*blockHeader, *Region) {
	addr := uintptr(p)
	if addr%cellSize != 0 {
		bootmmerr.Fatal(bootmmerr.UnalignedPointer(addr))
	}

	for r := h.head; r != nil; r = r.next {
		if r.contains(addr) {
			hdr := headerFromPayload(p)
			if hdr.magic != magicAlloc {
				bootmmerr.Fatal(bootmmerr.BrokenMagic("alloc", headerAddr(hdr), uint32(hdr.magic)))
			}

			return hdr, r
		}
	}

	bootmmerr.Fatal(bootmmerr.OutOfRangePointer(addr))

	panic("unreachable")
}
