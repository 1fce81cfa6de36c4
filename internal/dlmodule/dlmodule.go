// Package dlmodule is the allocator's module-unload reclamation
// collaborator (spec.md §4.6, step two), modeled on GRUB's dynamic
// module loader (grub_dl_unload_unneeded, original_source's
// include/grub/i386/efi/loader.h). A loaded module occupies a single
// heap block for its code and data; unloading one frees that block.
//
// Every module declares, as a semver constraint, the allocator ABI
// versions it was built against. UnloadUnneededModules drops every module
// whose constraint excludes the heap's running ABI — the simulation
// harness's stand-in for GRUB's own "is anyone still holding a
// reference to this module" refcount check, which has no meaningful
// hosted analogue.
package dlmodule

import (
	"fmt"
	"sort"
	"unsafe"

	semver "github.com/Masterminds/semver/v3"
)

// Freer is the subset of allocator.Heap a module registry needs to
// drop a module's memory. It is a narrow interface so dlmodule never
// imports the allocator package's full surface.
type Freer interface {
	Free(p unsafe.Pointer)
}

// Module is one loaded module.
type Module struct {
	Name       string
	Constraint *semver.Constraints
	Addr       unsafe.Pointer
}

// Registry tracks the modules currently loaded against a single heap.
type Registry struct {
	heap    Freer
	abi     *semver.Version
	modules map[string]Module
}

// New creates a registry bound to heap, reporting ABI as the running
// allocator's version for constraint checks.
func New(heap Freer, abi *semver.Version) *Registry {
	return &Registry{heap: heap, abi: abi, modules: make(map[string]Module)}
}

// ParseConstraint parses a module's declared ABI compatibility range,
// e.g. ">=1.0.0, <2.0.0".
func ParseConstraint(expr string) (*semver.Constraints, error) {
	c, err := semver.NewConstraint(expr)
	if err != nil {
		return nil, fmt.Errorf("dlmodule: parsing constraint %q: %w", expr, err)
	}

	return c, nil
}

// Register records a loaded module. addr must be the block returned by
// the allocator for the module's image; the registry keeps it and
// passes it to the heap's Free when the module is unloaded.
func (r *Registry) Register(name string, constraint *semver.Constraints, addr unsafe.Pointer) {
	r.modules[name] = Module{Name: name, Constraint: constraint, Addr: addr}
}

// Loaded reports whether name is currently registered.
func (r *Registry) Loaded(name string) bool {
	_, ok := r.modules[name]

	return ok
}

// UnloadUnneededModules frees every module whose ABI constraint
// excludes the registry's running ABI version and drops it from the
// registry. It implements the allocator.ReclaimHooks half of the same
// name: it never allocates and reports nothing back, since the
// allocator has no way to surface a result. Modules with a nil
// constraint are always kept.
func (r *Registry) UnloadUnneededModules() {
	var stale []string

	for name, m := range r.modules {
		if m.Constraint != nil && !m.Constraint.Check(r.abi) {
			stale = append(stale, name)
		}
	}

	// Deterministic order for tests and logs.
	sort.Strings(stale)

	for _, name := range stale {
		m := r.modules[name]
		r.heap.Free(m.Addr)
		delete(r.modules, name)
	}
}

// InvalidateDiskCache satisfies allocator.ReclaimHooks when a registry
// is used standalone (without a diskcache.Cache); a module registry
// has no cache of its own, so this is a no-op.
func (r *Registry) InvalidateDiskCache() {}
