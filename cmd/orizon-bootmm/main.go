// Command orizon-bootmm is a hosted simulation harness for the boot
// memory manager: it reads a JSON firmware memory map, registers its
// usable descriptors with the allocator, runs a scripted
// allocate/resize/free sequence through an illustrative serial console,
// and prints a report. It is not the freestanding bootloader itself —
// see internal/allocator for the allocator a real target embeds.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	semver "github.com/Masterminds/semver/v3"
	"github.com/fsnotify/fsnotify"

	"github.com/orizon-lang/orizon-bootmm/internal/allocator"
	"github.com/orizon-lang/orizon-bootmm/internal/cli"
	"github.com/orizon-lang/orizon-bootmm/internal/diskcache"
	"github.com/orizon-lang/orizon-bootmm/internal/dlmodule"
	"github.com/orizon-lang/orizon-bootmm/internal/physmap"
	"github.com/orizon-lang/orizon-bootmm/internal/serial8250"
)

// abiVersion is the running allocator's ABI version, checked against
// every registered module's declared compatibility range.
var abiVersion = semver.MustParse("1.0.0")

// stdoutConsole satisfies io.ReadWriter for a console that never
// receives input in the simulation harness.
type stdoutConsole struct{}

func (stdoutConsole) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdoutConsole) Read(p []byte) (int, error)  { return 0, io.EOF }

func main() {
	var (
		mmapPath string
		watch    bool
		verbose  bool
		debug    bool
		hostMmap bool
	)

	flag.StringVar(&mmapPath, "mmap", "mmap.json", "path to a JSON firmware memory map")
	flag.BoolVar(&watch, "watch", false, "hot-reload the memory map file and register new regions as they appear (dev/simulation only)")
	flag.BoolVar(&verbose, "verbose", false, "log informational messages")
	flag.BoolVar(&debug, "debug", false, "log debug messages")
	flag.BoolVar(&hostMmap, "host-mmap", false, "donate regions via golang.org/x/sys/unix.Mmap instead of plain Go slices (linux only)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Boot memory manager simulation harness.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	log := cli.NewLogger(verbose, debug)

	descs, err := physmap.LoadMap(mmapPath)
	if err != nil {
		cli.HandleError(fmt.Errorf("loading memory map: %w", err), log)
	}

	heap := allocator.New(nil)

	var cleanups []func()
	defer func() {
		for _, c := range cleanups {
			c()
		}
	}()

	registered := registerDescriptors(heap, descs, hostMmap, log, &cleanups)
	if registered == 0 {
		cli.ExitWithError("no usable regions found in %s", mmapPath)
	}

	log.Info("registered %d regions from %s", registered, mmapPath)

	cache := diskcache.New(256)
	modules := dlmodule.New(heap, abiVersion)
	modules.Register("legacy-video", mustConstraint(">=0.5.0, <1.0.0"), nil)
	modules.Register("disk-ahci", mustConstraint(">=1.0.0"), nil)

	heap.SetHooks(&combinedHooks{cache: cache, modules: modules})

	console, err := serial8250.Open(heap, stdoutConsole{}, serial8250.Config{
		Speed:    serial8250.Speed115200,
		Parity:   serial8250.ParityNone,
		StopBits: serial8250.StopBits1,
	}, 512)
	if err != nil {
		cli.HandleError(fmt.Errorf("opening console: %w", err), log)
	}
	defer console.Close()

	runScript(heap, console, log)

	if watch {
		watchMemoryMap(heap, mmapPath, hostMmap, log, &cleanups)
	}
}

func mustConstraint(expr string) *semver.Constraints {
	c, err := dlmodule.ParseConstraint(expr)
	if err != nil {
		panic(err)
	}

	return c
}

// registerDescriptors registers every usable descriptor with heap,
// returning the count registered. Reserved/ACPI descriptors are
// skipped; low-memory descriptors get LowMemoryPolicies so LOW/LOW_END
// allocations can find them.
func registerDescriptors(heap *allocator.Heap, descs []physmap.Descriptor, hostMmap bool, log *cli.Logger, cleanups *[]func()) int {
	count := 0

	for _, d := range descs {
		if !d.Usable() {
			log.Debug("skipping non-usable descriptor base=%#x size=%d kind=%s", d.Base, d.Size, d.Kind)

			continue
		}

		var mem []byte

		if hostMmap {
			m, cleanup, err := physmap.Reserve(int(d.Size))
			if err != nil {
				log.Warn("host-mmap reserve failed for base=%#x size=%d: %v", d.Base, d.Size, err)

				continue
			}

			mem = m
			*cleanups = append(*cleanups, cleanup)
		} else {
			mem = make([]byte, d.Size)
		}

		policies := allocator.NormalPolicies()
		if d.Kind == physmap.KindLowMemory {
			policies = allocator.LowMemoryPolicies()
		}

		heap.RegisterRegion(mem, policies)
		count++

		log.Info("registered region base=%#x size=%d kind=%s", d.Base, d.Size, d.Kind)
	}

	return count
}

// combinedHooks composes the disk-cache and module-unload reclamation
// collaborators into the single allocator.ReclaimHooks the heap calls.
type combinedHooks struct {
	cache   *diskcache.Cache
	modules *dlmodule.Registry
}

func (h *combinedHooks) InvalidateDiskCache()   { h.cache.InvalidateDiskCache() }
func (h *combinedHooks) UnloadUnneededModules() { h.modules.UnloadUnneededModules() }

// runScript exercises the allocator through an illustrative sequence:
// allocate, resize, free, reporting progress over the serial console.
func runScript(heap *allocator.Heap, console *serial8250.Port, log *cli.Logger) {
	var report bytes.Buffer

	fmt.Fprintf(&report, "orizon-bootmm: running allocation script\n")

	a := heap.Allocate(128)
	fmt.Fprintf(&report, "allocate(128) -> %v\n", a)

	b := heap.AllocateAligned(64, 256)
	fmt.Fprintf(&report, "allocate_aligned(64, 256) -> %v\n", b)

	grown := heap.Resize(a, 512)
	fmt.Fprintf(&report, "resize(a, 512) -> %v\n", grown)

	heap.Free(b)
	heap.Free(grown)

	fmt.Fprintf(&report, "script complete\n")

	if _, err := console.Write(report.Bytes()); err != nil {
		log.Warn("writing report to console: %v", err)
	}
}

// watchMemoryMap hot-reloads mmapPath and registers any newly appeared
// descriptors. This is a development/simulation affordance only: a
// freestanding target never re-registers memory at runtime (spec.md
// §4.1 assumes regions are fixed after boot).
func watchMemoryMap(heap *allocator.Heap, mmapPath string, hostMmap bool, log *cli.Logger, cleanups *[]func()) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn("fsnotify unavailable: %v", err)

		return
	}
	defer watcher.Close()

	if err := watcher.Add(mmapPath); err != nil {
		log.Warn("watching %s: %v", mmapPath, err)

		return
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)

	log.Info("watching %s for changes (ctrl-c to stop)", mmapPath)

	// Descriptors already in the file were registered at startup; mark
	// them seen so a reload only registers what is new.
	seen := make(map[uintptr]bool)
	if initial, err := physmap.LoadMap(mmapPath); err == nil {
		for _, d := range initial {
			seen[d.Base] = true
		}
	}

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}

			if ev.Op&fsnotify.Write == 0 {
				continue
			}

			descs, err := physmap.LoadMap(mmapPath)
			if err != nil {
				log.Warn("reloading %s: %v", mmapPath, err)

				continue
			}

			var fresh []physmap.Descriptor

			for _, d := range descs {
				if !seen[d.Base] {
					fresh = append(fresh, d)
					seen[d.Base] = true
				}
			}

			registerDescriptors(heap, fresh, hostMmap, log, cleanups)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}

			log.Warn("watcher error: %v", err)
		case <-sig:
			return
		}
	}
}
