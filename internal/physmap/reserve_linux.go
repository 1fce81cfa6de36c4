//go:build linux

package physmap

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Reserve donates a host-backed span of size bytes standing in for a
// physical memory region, via an anonymous mmap (golang.org/x/sys/unix).
// The real freestanding target instead carves this span directly out of
// firmware-reported RAM; cleanup must be called exactly once, after the
// allocator has released every block inside the span.
func Reserve(size int) (mem []byte, cleanup func(), err error) {
	if size <= 0 {
		return nil, nil, fmt.Errorf("physmap: reserve size must be positive, got %d", size)
	}

	mem, err = unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, fmt.Errorf("physmap: mmap %d bytes: %w", size, err)
	}

	cleanup = func() {
		_ = unix.Munmap(mem)
	}

	return mem, cleanup, nil
}
