//go:build !linux

package physmap

import "fmt"

// Reserve is unsupported outside the Linux simulation harness: there is
// no portable anonymous-mmap primitive in golang.org/x/sys for every
// platform the pack depends on, and the real target never calls this
// function at all (it registers firmware-donated memory directly).
func Reserve(size int) (mem []byte, cleanup func(), err error) {
	return nil, nil, fmt.Errorf("physmap: Reserve is only implemented on linux")
}
