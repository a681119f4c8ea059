package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Buffer is memory the DMA engine can read
type Buffer interface {
	// Addr is the bus address of the first byte
	Addr() uint32
	Bytes() []byte
	Close() error
}

// heapBuffer backs the DMA buffer of a mock card
type heapBuffer struct {
	mem  []byte
	addr uint32
}

func newHeapBuffer(size int) *heapBuffer {
	return &heapBuffer{mem: make([]byte, size), addr: 0x1000_0000}
}

func (b *heapBuffer) Addr() uint32  { return b.addr }
func (b *heapBuffer) Bytes() []byte { return b.mem }
func (b *heapBuffer) Close() error  { return nil }

// udmaBuffer is a physically contiguous buffer from the u-dma-buf kernel
// module, mapped into this process
type udmaBuffer struct {
	mem  []byte
	addr uint32
}

const udmaClass = "/sys/class/u-dma-buf"

func readSysfsUint(path string) (uint64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(string(b))
	if strings.HasPrefix(s, "0x") {
		return strconv.ParseUint(s[2:], 16, 64)
	}
	return strconv.ParseUint(s, 10, 64)
}

// openUDMABuffer maps at least size bytes of the u-dma-buf device name,
// e.g. udmabuf0
func openUDMABuffer(name string, size int) (*udmaBuffer, error) {
	phys, err := readSysfsUint(filepath.Join(udmaClass, name, "phys_addr"))
	if err != nil {
		return nil, err
	}
	total, err := readSysfsUint(filepath.Join(udmaClass, name, "size"))
	if err != nil {
		return nil, err
	}
	if total < uint64(size) {
		return nil, fmt.Errorf("%s holds %d bytes, need %d", name, total, size)
	}
	if phys+uint64(size) > math.MaxUint32 {
		return nil, fmt.Errorf("%s at %#x is out of reach of 32-bit DMA", name, phys)
	}

	f, err := os.OpenFile(filepath.Join("/dev", name), os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	mem, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, &os.PathError{Op: "mmap", Path: f.Name(), Err: err}
	}
	return &udmaBuffer{mem: mem, addr: uint32(phys)}, nil
}

func (b *udmaBuffer) Addr() uint32  { return b.addr }
func (b *udmaBuffer) Bytes() []byte { return b.mem }
func (b *udmaBuffer) Close() error  { return unix.Munmap(b.mem) }
