package main

import (
	"testing"

	"github.com/orizon-lang/orizon-bootmm/internal/allocator"
	"github.com/orizon-lang/orizon-bootmm/internal/cli"
	"github.com/orizon-lang/orizon-bootmm/internal/diskcache"
	"github.com/orizon-lang/orizon-bootmm/internal/dlmodule"
	"github.com/orizon-lang/orizon-bootmm/internal/physmap"
)

func TestRegisterDescriptorsSkipsUnusable(t *testing.T) {
	heap := allocator.New(nil)
	log := cli.NewLogger(false, false)
	var cleanups []func()

	descs := []physmap.Descriptor{
		{Base: 0, Size: 4096, Kind: physmap.KindRAM},
		{Base: 4096, Size: 4096, Kind: physmap.KindReserved},
		{Base: 8192, Size: 4096, Kind: physmap.KindLowMemory},
	}

	n := registerDescriptors(heap, descs, false, log, &cleanups)
	if n != 2 {
		t.Fatalf("registerDescriptors() registered %d regions, want 2", n)
	}

	if p := heap.Allocate(64); p == nil {
		t.Fatal("heap cannot satisfy a small allocation after registering usable descriptors")
	}
}

func TestCombinedHooksDelegates(t *testing.T) {
	heap := allocator.New(nil)
	cache := diskcache.New(4)
	modules := dlmodule.New(heap, abiVersion)

	cache.Put("sector-0", []byte("data"))

	hooks := &combinedHooks{cache: cache, modules: modules}

	hooks.InvalidateDiskCache()
	if _, ok := cache.Get("sector-0"); ok {
		t.Fatal("combinedHooks.InvalidateDiskCache did not clear the disk cache")
	}

	// UnloadUnneededModules should run without panicking even with no
	// modules registered.
	hooks.UnloadUnneededModules()
}
