package allocator

import "unsafe"

// magic is the sentinel word stamped on every block header. It is the
// allocator's sole line of defense against use-after-free and
// double-free corruption in an environment with no debugger — a
// sanity guard, not a security boundary (spec.md Non-goals).
type magic uint32

const (
	// magicFree and magicAlloc reuse the exact sentinel values from the
	// source this design was ported from (GRUB's kern/mm.c), so a core
	// dump taken on the freestanding target and one taken from this
	// hosted port read identically.
	magicFree  magic = 0x2d3c2808
	magicAlloc magic = 0x6db08fa4
)

// blockHeader is prepended to every block, allocated or free. It lives
// inside the memory it describes — there is no side table — so prev
// and next are themselves pointers into a region's backing buffer.
// Allocated headers keep only size and magic live; prev/next storage
// is reusable but is never cleared on allocation.
type blockHeader struct {
	size  uintptr // size in cells, including this header cell
	magic magic
	prev  *blockHeader
	next  *blockHeader
}

// headerAddr returns the address of h for ordering comparisons and
// diagnostics. Two headers compare by address exactly as two cells of
// donated physical memory would.
func headerAddr(h *blockHeader) uintptr {
	return uintptr(unsafe.Pointer(h))
}

// advance returns the header n cells past h. Used for both ring
// arithmetic within a region's byte buffer and for locating the
// payload pointer returned to callers (advance(h, 1)).
func advance(h *blockHeader, cells uintptr) *blockHeader {
	return (*blockHeader)(unsafe.Add(unsafe.Pointer(h), cells*cellSize))
}

// payload returns the address handed to a caller for an allocated
// header: one cell past the header itself (§3 invariant 7).
func payload(h *blockHeader) unsafe.Pointer {
	return unsafe.Pointer(advance(h, 1))
}

// headerFromPayload rewinds a caller-returned pointer back to its
// header.
func headerFromPayload(p unsafe.Pointer) *blockHeader {
	return (*blockHeader)(unsafe.Add(p, -int(cellSize)))
}
