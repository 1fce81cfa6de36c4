package allocator

import "unsafe"

// Default is the package-level heap a freestanding target keeps as its
// sole module-level handle (spec.md §2). Package-level Allocate, Free,
// Resize and RegisterRegion operate on it; tests and the simulation
// harness are free to construct their own Heap values instead.
var Default = New(nil)

// RegisterRegion installs mem into the default heap.
func RegisterRegion(mem []byte, policies StrategyVector) {
	Default.RegisterRegion(mem, policies)
}

// Allocate allocates from the default heap.
func Allocate(sizeBytes uintptr) unsafe.Pointer {
	return Default.Allocate(sizeBytes)
}

// AllocateAligned allocates from the default heap with alignment.
func AllocateAligned(align, sizeBytes uintptr) unsafe.Pointer {
	return Default.AllocateAligned(align, sizeBytes)
}

// AllocateZeroed allocates zero-filled memory from the default heap.
func AllocateZeroed(sizeBytes uintptr) unsafe.Pointer {
	return Default.AllocateZeroed(sizeBytes)
}

// AllocatePolicy allocates from the default heap under policy.
func AllocatePolicy(align, sizeBytes uintptr, policy Policy) unsafe.Pointer {
	return Default.AllocatePolicy(align, sizeBytes, policy)
}

// Free returns p to the default heap.
func Free(p unsafe.Pointer) {
	Default.Free(p)
}

// Resize resizes p in the default heap.
func Resize(p unsafe.Pointer, sizeBytes uintptr) unsafe.Pointer {
	return Default.Resize(p, sizeBytes)
}

// ResizePolicy resizes p in the default heap under policy.
func ResizePolicy(p unsafe.Pointer, align, sizeBytes uintptr, policy Policy) unsafe.Pointer {
	return Default.ResizePolicy(p, align, sizeBytes, policy)
}

// SetHooks installs reclamation hooks on the default heap.
func SetHooks(hooks ReclaimHooks) {
	Default.SetHooks(hooks)
}
