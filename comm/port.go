package comm

import (
	"encoding/binary"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// Port is the I/O window of a PCIDevice.  Each access is one pread or pwrite
// of exactly the register width at the register's offset.
//
// The Bus interface has no error returns, so the first failed access is
// kept and reported by Err; later reads return zero.
type Port struct {
	f *os.File

	mu  sync.Mutex
	err error
}

// Err returns the first access error, if any
func (p *Port) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Port) fail(err error) {
	p.mu.Lock()
	if p.err == nil {
		p.err = err
	}
	p.mu.Unlock()
}

func (p *Port) read(reg uint, b []byte) {
	n, err := unix.Pread(int(p.f.Fd()), b, int64(reg))
	if err == nil && n != len(b) {
		err = unix.EIO
	}
	if err != nil {
		p.fail(&os.PathError{Op: "pread", Path: p.f.Name(), Err: err})
		for i := range b {
			b[i] = 0
		}
	}
}

func (p *Port) write(reg uint, b []byte) {
	n, err := unix.Pwrite(int(p.f.Fd()), b, int64(reg))
	if err == nil && n != len(b) {
		err = unix.EIO
	}
	if err != nil {
		p.fail(&os.PathError{Op: "pwrite", Path: p.f.Name(), Err: err})
	}
}

func (p *Port) Read8(reg uint) uint8 {
	var b [1]byte
	p.read(reg, b[:])
	return b[0]
}

func (p *Port) Read16(reg uint) uint16 {
	var b [2]byte
	p.read(reg, b[:])
	return binary.LittleEndian.Uint16(b[:])
}

func (p *Port) Read32(reg uint) uint32 {
	var b [4]byte
	p.read(reg, b[:])
	return binary.LittleEndian.Uint32(b[:])
}

func (p *Port) Write8(reg uint, value uint8) {
	p.write(reg, []byte{value})
}

func (p *Port) Write16(reg uint, value uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], value)
	p.write(reg, b[:])
}

func (p *Port) Write32(reg uint, value uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], value)
	p.write(reg, b[:])
}
