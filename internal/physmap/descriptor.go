// Package physmap reads the firmware-reported physical memory map and
// turns it into donatable spans for the allocator. On real hardware
// this comes from a BIOS/UEFI call the bootloader makes before any Go
// code runs; the hosted simulation harness in this module reads the
// same shape from a JSON file instead (see cmd/orizon-bootmm).
package physmap

import (
	"encoding/json"
	"fmt"
	"os"
)

// Kind classifies a physical memory descriptor the way a firmware
// memory map does.
type Kind string

const (
	// KindRAM is ordinary available memory, usable for general
	// allocation.
	KindRAM Kind = "ram"
	// KindReserved is memory firmware claims for its own use; it must
	// never be registered with the allocator.
	KindReserved Kind = "reserved"
	// KindACPI is memory holding ACPI tables, reclaimable once the
	// tables have been copied elsewhere.
	KindACPI Kind = "acpi"
	// KindLowMemory is RAM below the platform's low-memory boundary
	// (historically 1 MiB on x86), registered under the LOW/LOW_END
	// policies instead of DEFAULT.
	KindLowMemory Kind = "low_memory"
)

// Descriptor is one entry of a physical memory map, grounded on GRUB's
// grub_machine_mmap_iterate hook (original_source/include/grub/i386/memory.h)
// and its i386 mmap chunk structure.
type Descriptor struct {
	Base uintptr `json:"base"`
	Size uintptr `json:"size"`
	Kind Kind    `json:"kind"`
}

// Usable reports whether the descriptor should ever be registered with
// the allocator.
func (d Descriptor) Usable() bool {
	return d.Kind == KindRAM || d.Kind == KindLowMemory
}

// LoadMap reads a JSON-encoded memory map from path. The file holds an
// array of Descriptor objects; it stands in for the firmware memory-map
// call (int 0x15, e820 on x86, or the UEFI GetMemoryMap equivalent)
// that is out of scope for this module (spec.md §1).
func LoadMap(path string) ([]Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("physmap: reading %s: %w", path, err)
	}

	var descs []Descriptor
	if err := json.Unmarshal(data, &descs); err != nil {
		return nil, fmt.Errorf("physmap: parsing %s: %w", path, err)
	}

	for i, d := range descs {
		if d.Size == 0 {
			return nil, fmt.Errorf("physmap: descriptor %d has zero size", i)
		}
	}

	return descs, nil
}
