package comm

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// UIO delivers the interrupts of a device bound to uio_pci_generic.  The
// kernel masks the line after each interrupt; Wait unmasks it before
// blocking.
type UIO struct {
	f *os.File

	// Poll is how often Wait looks at its context while the line is quiet
	Poll time.Duration

	count uint32
}

// OpenUIO opens a UIO node such as /dev/uio0
func OpenUIO(path string) (*UIO, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &UIO{f: f, Poll: 50 * time.Millisecond}, nil
}

// Count is the kernel's interrupt count at the last Wait
func (u *UIO) Count() uint32 {
	return u.count
}

// Wait blocks until the next interrupt or until ctx is done
func (u *UIO) Wait(ctx context.Context) error {
	fd := int(u.f.Fd())
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], 1)
	if _, err := unix.Write(fd, b[:]); err != nil {
		return &os.PathError{Op: "unmask", Path: u.f.Name(), Err: err}
	}

	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := unix.Poll(fds, int(u.Poll/time.Millisecond))
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return &os.PathError{Op: "poll", Path: u.f.Name(), Err: err}
		}
		if n == 0 {
			continue
		}
		if _, err = unix.Read(fd, b[:]); err != nil {
			return &os.PathError{Op: "read", Path: u.f.Name(), Err: err}
		}
		u.count = binary.LittleEndian.Uint32(b[:])
		return nil
	}
}

// Close closes the UIO node
func (u *UIO) Close() error {
	return u.f.Close()
}

// PollingIRQ stands in for an interrupt line by firing at a fixed interval.
// The handler reads the interrupt status each time and reports when the
// card had nothing pending.
type PollingIRQ struct {
	t *time.Ticker
}

// NewPollingIRQ returns a source that fires every interval
func NewPollingIRQ(interval time.Duration) *PollingIRQ {
	if interval <= 0 {
		interval = time.Millisecond
	}
	return &PollingIRQ{t: time.NewTicker(interval)}
}

func (p *PollingIRQ) Wait(ctx context.Context) error {
	select {
	case <-p.t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *PollingIRQ) Close() error {
	p.t.Stop()
	return nil
}
