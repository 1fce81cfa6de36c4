package allocator

// Policy is a named index selecting a per-region placement Strategy.
// The policy count and names are part of the public ABI (spec.md §6):
// adding a policy is a coordinated change across every region
// registration, tracked by dlmodule's ABI-version gate.
type Policy int

const (
	// DEFAULT is the allocator's default policy, used by Allocate,
	// AllocateAligned and AllocateZeroed.
	DEFAULT Policy = iota
	// LOW prefers low memory, for callers that need it (e.g. real-mode
	// trampolines on x86).
	LOW
	// LOW_END draws allocations to the top of low memory, away from the
	// low boundary, when top-down placement is required.
	LOW_END

	// NumPolicies is the width of every region's strategy vector.
	NumPolicies = 3
)

// Strategy is the concrete traversal and placement rule a region uses
// for a given policy.
type Strategy int

const (
	// SKIP makes the region invisible to the policy.
	SKIP Strategy = iota
	// FIRST walks the ring starting at first, stopping at the first fit.
	FIRST
	// SECOND starts at first.next and wraps at first; it is the
	// allocator's own default, since skipping the head reduces repeated
	// splitting of the same block.
	SECOND
	// LAST walks the ring backwards from first.prev, placing the
	// allocation at the high end of the fitting free block.
	LAST
)

// StrategyVector is the per-region array of placement strategies,
// indexed by Policy.
type StrategyVector [NumPolicies]Strategy

// NormalPolicies is the strategy vector for a region populated from
// ordinary memory: DEFAULT uses SECOND placement, and the low-memory
// policies are SKIP — the region is invisible to them.
func NormalPolicies() StrategyVector {
	return StrategyVector{DEFAULT: SECOND, LOW: SKIP, LOW_END: SKIP}
}

// LowMemoryPolicies is the strategy vector for a region populated from
// low-memory firmware maps: LOW uses FIRST placement to pull
// allocations toward low memory, LOW_END uses LAST placement to draw
// them to the top of the low region, and DEFAULT still uses SECOND.
func LowMemoryPolicies() StrategyVector {
	return StrategyVector{DEFAULT: SECOND, LOW: FIRST, LOW_END: LAST}
}
