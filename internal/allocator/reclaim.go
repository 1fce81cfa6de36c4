package allocator

// ReclaimHooks are the two externally supplied callbacks invoked on
// allocation failure (spec.md §4.6). The allocator has no knowledge of
// their internals — it only knows it may retry the whole scan once
// after each step runs. Errors from either hook are ignored; the
// allocator always proceeds to the next step.
type ReclaimHooks interface {
	// InvalidateDiskCache must be idempotent and must not itself
	// allocate.
	InvalidateDiskCache()
	// UnloadUnneededModules may free blocks; it must not allocate.
	UnloadUnneededModules()
}
