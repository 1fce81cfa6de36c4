package allocator

import (
	"testing"
	"unsafe"
)

func newTestHeap(sizes ...int) *Heap {
	h := New(nil)
	for _, s := range sizes {
		h.RegisterRegion(make([]byte, s), NormalPolicies())
	}

	return h
}

// Scenario 1: register a single 4 KiB region; allocate 100 bytes;
// allocate 200 bytes; free the first; free the second. The region must
// end as one free block of its full usable size.
func TestScenarioRoundTripSingleRegion(t *testing.T) {
	h := newTestHeap(4096)
	want := h.head.size

	a := h.Allocate(100)
	if a == nil {
		t.Fatal("allocate 100 failed")
	}

	b := h.Allocate(200)
	if b == nil {
		t.Fatal("allocate 200 failed")
	}

	h.Free(a)
	h.Free(b)

	r := h.head
	if r.first.magic != magicFree {
		t.Fatalf("region did not return to a single free block: first.magic = %#x", r.first.magic)
	}

	if r.first.next != r.first || r.first.prev != r.first {
		t.Fatal("region's ring is not a self-loop after round trip")
	}

	if got := r.first.size * cellSize; got != want {
		t.Fatalf("region usable size = %d, want %d", got, want)
	}
}

// Scenario 1 variant: free in reverse order of allocation.
func TestScenarioRoundTripReverseFree(t *testing.T) {
	h := newTestHeap(4096)
	want := h.head.size

	a := h.Allocate(100)
	b := h.Allocate(200)
	c := h.Allocate(50)

	h.Free(c)
	h.Free(b)
	h.Free(a)

	r := h.head
	if r.first.magic != magicFree {
		t.Fatalf("region did not return to a single free block: first.magic = %#x", r.first.magic)
	}

	if got := r.first.size * cellSize; got != want {
		t.Fatalf("region usable size = %d, want %d", got, want)
	}
}

// Scenario 2: allocate with alignment 256 for a size of 1 byte; the
// returned pointer is divisible by 256; freeing it and re-allocating
// with alignment 1 reuses a block at or below the first pointer's
// address.
func TestScenarioAlignedAllocation(t *testing.T) {
	h := newTestHeap(8192)

	p := h.AllocateAligned(256, 1)
	if p == nil {
		t.Fatal("aligned allocate failed")
	}

	if uintptr(p)%256 != 0 {
		t.Fatalf("pointer %#x not aligned to 256", p)
	}

	h.Free(p)

	q := h.AllocateAligned(1, 1)
	if q == nil {
		t.Fatal("re-allocate failed")
	}

	if uintptr(q) > uintptr(p) {
		t.Fatalf("re-allocated pointer %#x is above first pointer %#x", q, p)
	}
}

// Scenario 3: register two regions of sizes 1 KiB and 16 KiB; request
// 8 KiB; the allocator must attempt the 1 KiB region first (ascending
// size order), fail there, then succeed in the 16 KiB region.
func TestScenarioAscendingRegionSearch(t *testing.T) {
	h := newTestHeap(1024, 16*1024)

	p := h.Allocate(8 * 1024)
	if p == nil {
		t.Fatal("allocate 8KiB failed despite a large enough region")
	}

	// The winning region must be the larger one.
	addr := uintptr(p)

	small := h.head
	large := h.head.next

	if small.size > large.size {
		small, large = large, small
	}

	if small.contains(addr) {
		t.Fatal("allocation was satisfied by the smaller region")
	}

	if !large.contains(addr) {
		t.Fatal("allocation was not satisfied by the larger region")
	}
}

// Scenario 4: register a region large enough for exactly two 1 KiB
// allocations (plus headers). Two successive 1 KiB allocations
// succeed; a third returns null; after freeing either, a third 1 KiB
// allocation succeeds.
func TestScenarioExhaustionAndRecovery(t *testing.T) {
	// Sized so that, even in the worst case of base-address misalignment
	// (up to cellSize-1 bytes skipped) plus the region's own header
	// cell, two 1KiB allocations (cellsNeeded(1024) cells each) always
	// fit, while three never do.
	perAlloc := cellsNeeded(1024) * cellSize
	h := newTestHeap(int(2*perAlloc + 2*cellSize - 1))

	a := h.Allocate(1024)
	if a == nil {
		t.Fatal("first 1KiB allocation failed")
	}

	b := h.Allocate(1024)
	if b == nil {
		t.Fatal("second 1KiB allocation failed")
	}

	if p := h.Allocate(1024); p != nil {
		t.Fatal("third 1KiB allocation unexpectedly succeeded")
	}

	h.Free(a)

	if p := h.Allocate(1024); p == nil {
		t.Fatal("allocation after free unexpectedly failed")
	}
}

// Scenario 5: grow in place. Allocate A (1 KiB), allocate B (1 KiB),
// free B, resize A to 1.5 KiB. A's address is unchanged.
func TestScenarioGrowInPlace(t *testing.T) {
	h := newTestHeap(16 * 1024)

	a := h.Allocate(1024)
	if a == nil {
		t.Fatal("allocate A failed")
	}

	b := h.Allocate(1024)
	if b == nil {
		t.Fatal("allocate B failed")
	}

	h.Free(b)

	grown := h.Resize(a, 1536)
	if grown == nil {
		t.Fatal("resize failed")
	}

	if grown != a {
		t.Fatalf("grow-in-place moved the block: %#x -> %#x", a, grown)
	}
}

// Scenario 6: grow by copy. Allocate A (1 KiB), allocate B (1 KiB),
// resize A to 1.5 KiB. A moves; old bytes are copied; old slot becomes
// free and coalesces with surrounding free space.
func TestScenarioGrowByCopy(t *testing.T) {
	h := newTestHeap(16 * 1024)

	a := h.Allocate(1024)
	if a == nil {
		t.Fatal("allocate A failed")
	}

	pattern := unsafe.Slice((*byte)(a), 1024)
	for i := range pattern {
		pattern[i] = byte(i)
	}

	b := h.Allocate(1024)
	if b == nil {
		t.Fatal("allocate B failed")
	}

	grown := h.Resize(a, 1536)
	if grown == nil {
		t.Fatal("resize failed")
	}

	if grown == a {
		t.Fatal("expected grow-by-copy to move the block")
	}

	movedPattern := unsafe.Slice((*byte)(grown), 1024)
	for i := range movedPattern {
		if movedPattern[i] != byte(i) {
			t.Fatalf("byte %d = %d, want %d after grow-by-copy", i, movedPattern[i], byte(i))
		}
	}
}

// Resize to a smaller size does not shrink: the same pointer comes back.
func TestResizeShrinkKeepsPointer(t *testing.T) {
	h := newTestHeap(8192)

	a := h.Allocate(1024)
	if a == nil {
		t.Fatal("allocate failed")
	}

	shrunk := h.Resize(a, 16)
	if shrunk != a {
		t.Fatalf("shrink moved the block: %#x -> %#x", a, shrunk)
	}
}

// Resize with size 0 frees and returns nil.
func TestResizeToZeroFrees(t *testing.T) {
	h := newTestHeap(4096)

	a := h.Allocate(64)
	if a == nil {
		t.Fatal("allocate failed")
	}

	if got := h.Resize(a, 0); got != nil {
		t.Fatalf("Resize(p, 0) = %v, want nil", got)
	}

	r := h.head
	if r.first.magic != magicFree {
		t.Fatal("region did not return the freed block")
	}
}

// Free of nil is a no-op.
func TestFreeNilIsNoop(t *testing.T) {
	h := newTestHeap(4096)
	h.Free(nil) // must not panic
}

// Scenario 7: reclamation. Saturate all regions; arrange the
// unload-modules hook to free a known block; the next allocation equal
// in size succeeds on the second internal retry.
type reclaimSpy struct {
	invalidateCalls int
	unloadCalls     int
	onUnload        func()
}

func (s *reclaimSpy) InvalidateDiskCache() { s.invalidateCalls++ }

func (s *reclaimSpy) UnloadUnneededModules() {
	s.unloadCalls++
	if s.onUnload != nil {
		s.onUnload()
	}
}

func TestScenarioReclamationRetry(t *testing.T) {
	h := newTestHeap(4096)

	// Saturate the region with 512-byte blocks.
	var held []unsafe.Pointer
	for {
		p := h.Allocate(512)
		if p == nil {
			break
		}

		held = append(held, p)
	}

	if len(held) == 0 {
		t.Fatal("setup failed: no allocations succeeded")
	}

	spy := &reclaimSpy{onUnload: func() {
		h.Free(held[0])
		held = held[1:]
	}}
	h.SetHooks(spy)

	p := h.Allocate(512)
	if p == nil {
		t.Fatal("allocation did not succeed after reclamation")
	}

	if spy.invalidateCalls != 1 {
		t.Errorf("InvalidateDiskCache called %d times, want 1", spy.invalidateCalls)
	}

	if spy.unloadCalls != 1 {
		t.Errorf("UnloadUnneededModules called %d times, want 1", spy.unloadCalls)
	}
}

func TestAllocateZeroedIsZeroFilled(t *testing.T) {
	h := newTestHeap(4096)

	p := h.AllocateZeroed(256)
	if p == nil {
		t.Fatal("allocate failed")
	}

	data := unsafe.Slice((*byte)(p), 256)
	for i, b := range data {
		if b != 0 {
			t.Fatalf("byte %d = %d, want 0", i, b)
		}
	}
}

func TestAllocateZeroSizeStillReturnsUsablePointer(t *testing.T) {
	h := newTestHeap(4096)

	p := h.Allocate(0)
	if p == nil {
		t.Fatal("allocate 0 bytes should still return a valid header-sized block")
	}

	h.Free(p)
}
