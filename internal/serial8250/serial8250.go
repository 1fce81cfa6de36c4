// Package serial8250 is an illustrative consumer of the heap allocator
// (spec.md §1: the serial driver itself is out of scope; it is kept
// here only to exercise allocator.AllocateAligned against a realistic
// caller). It models the baud-divisor table and line-configuration
// validation of a 16550 UART, grounded on original_source's
// term/ns8250.c, re-expressed over an io.ReadWriter instead of port I/O
// instructions. No FIFO or modem-control (DTR/RTS) register setup is
// modeled.
package serial8250

import (
	"fmt"
	"io"
	"unsafe"

	"github.com/orizon-lang/orizon-bootmm/internal/allocator"
)

// Speed is one of the baud rates the divisor table recognizes.
type Speed uint

const (
	Speed2400   Speed = 2400
	Speed4800   Speed = 4800
	Speed9600   Speed = 9600
	Speed19200  Speed = 19200
	Speed38400  Speed = 38400
	Speed57600  Speed = 57600
	Speed115200 Speed = 115200
)

// divisorTable mirrors ns8250.c's serial_get_divisor table: the UART's
// input clock (1.8432 MHz) divided by speed*16.
var divisorTable = map[Speed]uint16{
	Speed2400:   0x0030,
	Speed4800:   0x0018,
	Speed9600:   0x000C,
	Speed19200:  0x0006,
	Speed38400:  0x0003,
	Speed57600:  0x0002,
	Speed115200: 0x0001,
}

// Divisor returns the UART baud-rate divisor for speed, mirroring
// serial_get_divisor. It returns (0, false) for an unsupported speed,
// exactly as the original returns 0 for "not in the table".
func Divisor(speed Speed) (uint16, bool) {
	d, ok := divisorTable[speed]

	return d, ok
}

// Parity selects the UART's parity mode.
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

// StopBits selects the UART's stop-bit count.
type StopBits int

const (
	StopBits1 StopBits = iota
	StopBits2
)

// Config is the subset of grub_serial_config this driver models.
type Config struct {
	Speed    Speed
	Parity   Parity
	StopBits StopBits
}

// ringAlignment is the alignment requested for the output ring
// buffer's backing storage; it has no hardware significance here, it
// simply exercises allocator.AllocateAligned the way a DMA-capable UART
// would for its FIFO shadow buffer.
const ringAlignment = 64

// Port is a serial port driver over an underlying transport (a real
// terminal, a loopback pipe, or any io.ReadWriter standing in for the
// UART's wire). Its output ring buffer is allocated from the boot heap
// rather than a Go slice literal, mirroring how ns8250.c's driver lives
// entirely inside memory the allocator owns.
type Port struct {
	transport  io.ReadWriter
	config     Config
	divisor    uint16
	configured bool

	heap *allocator.Heap
	ring unsafe.Pointer
	cap  int
	head int
	tail int
	len  int
}

// Open configures a port for transport at the given configuration,
// allocating its output ring buffer (capacity bytes) from heap.
// It mirrors serial_hw_configure's validation: an unsupported speed,
// parity, or stop-bit count is rejected before anything is allocated.
func Open(heap *allocator.Heap, transport io.ReadWriter, config Config, capacity int) (*Port, error) {
	divisor, ok := Divisor(config.Speed)
	if !ok {
		return nil, fmt.Errorf("serial8250: unsupported speed %d", config.Speed)
	}

	if config.Parity != ParityNone && config.Parity != ParityOdd && config.Parity != ParityEven {
		return nil, fmt.Errorf("serial8250: unsupported parity %d", config.Parity)
	}

	if config.StopBits != StopBits1 && config.StopBits != StopBits2 {
		return nil, fmt.Errorf("serial8250: unsupported stop bits %d", config.StopBits)
	}

	if capacity <= 0 {
		capacity = 256
	}

	ring := heap.AllocateAligned(ringAlignment, uintptr(capacity))
	if ring == nil {
		return nil, fmt.Errorf("serial8250: out of memory allocating a %d-byte ring buffer", capacity)
	}

	return &Port{
		transport: transport,
		config:    config,
		divisor:   divisor,
		heap:      heap,
		ring:      ring,
		cap:       capacity,
	}, nil
}

// Close returns the ring buffer's memory to the heap. The port must not
// be used afterward.
func (p *Port) Close() {
	p.heap.Free(p.ring)
	p.ring = nil
}

// Divisor returns the port's configured baud-rate divisor.
func (p *Port) Divisor() uint16 { return p.divisor }

// Write buffers data in the ring and flushes completed chunks to the
// transport, mirroring serial_hw_put's wait-for-empty-then-transmit
// loop without the hardware timeout (the transport is assumed
// reliable; io errors are returned instead of silently dropped).
func (p *Port) Write(data []byte) (int, error) {
	buf := unsafe.Slice((*byte)(p.ring), p.cap)

	for _, b := range data {
		if p.len == p.cap {
			if err := p.flushOne(buf); err != nil {
				return 0, err
			}
		}

		buf[p.tail] = b
		p.tail = (p.tail + 1) % p.cap
		p.len++
	}

	for p.len > 0 {
		if err := p.flushOne(buf); err != nil {
			return 0, err
		}
	}

	return len(data), nil
}

func (p *Port) flushOne(buf []byte) error {
	b := buf[p.head]

	if _, err := p.transport.Write([]byte{b}); err != nil {
		return fmt.Errorf("serial8250: transmit: %w", err)
	}

	p.head = (p.head + 1) % p.cap
	p.len--

	return nil
}

// Read fetches available bytes from the transport, mirroring
// serial_hw_fetch's "data ready or not" check: it returns
// (0, nil) rather than blocking when nothing is available and the
// transport is a non-blocking reader.
func (p *Port) Read(into []byte) (int, error) {
	n, err := p.transport.Read(into)
	if err == io.EOF {
		return n, nil
	}

	return n, err
}
