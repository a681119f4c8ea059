package oxygen

import (
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
)

const (
	ac97Attempts = 5
	ac97Timeout  = time.Millisecond
)

var (
	errAC97Timeout   = errors.New("oxygen: AC'97 completion not observed")
	errAC97Unconfirm = errors.New("oxygen: AC'97 write not yet confirmed")
	errAC97Mismatch  = errors.New("oxygen: AC'97 read values disagree")
)

// AC97 is the controller's AC'97 codec interface.  Transactions on it are
// unreliable (roughly one in ten is lost), so every access is retried and
// confirmed; an access that cannot be confirmed is logged and dropped.
//
// AC97 does no locking of its own.  Callers serialize transactions, which is
// also what keeps the shadow consistent.
type AC97 struct {
	regs *Regs
	done chan struct{}

	// Sleep is used for the short bus delays, tests replace it
	Sleep func(time.Duration)

	// Timeout bounds each wait for a completion interrupt
	Timeout time.Duration

	Logger *log.Logger

	shadow [2][AC97NumRegs]uint16

	readFailures  atomic.Uint64
	writeFailures atomic.Uint64
}

// NewAC97 returns an AC'97 interface over regs.  A nil logger logs to
// log.Default().
func NewAC97(regs *Regs, logger *log.Logger) *AC97 {
	if logger == nil {
		logger = log.Default()
	}
	return &AC97{
		regs:    regs,
		done:    make(chan struct{}, 1),
		Sleep:   time.Sleep,
		Timeout: ac97Timeout,
		Logger:  logger,
	}
}

// Signal wakes a transaction waiting for completion.  It never blocks and is
// called from the interrupt handler.
func (a *AC97) Signal() {
	select {
	case a.done <- struct{}{}:
	default:
	}
}

// wait accumulates AC'97 interrupt status until a bit of mask is seen or the
// timeout passes.  Reading the status register clears it, so every observed
// bit is kept.
func (a *AC97) wait(mask uint8) bool {
	var status uint8
	timer := time.NewTimer(a.Timeout)
	defer timer.Stop()
	for {
		status |= a.regs.Read8(AC97InterruptStatus)
		if status&mask != 0 {
			return true
		}
		select {
		case <-a.done:
		case <-timer.C:
			// one last poll in case the interrupt was lost
			status |= a.regs.Read8(AC97InterruptStatus)
			return status&mask != 0
		}
	}
}

func (a *AC97) policy() backoff.BackOff {
	return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, ac97Attempts-1)
}

// Write writes data to register index of codec.  The write counts as done
// only after two consecutive attempts report completion.
func (a *AC97) Write(codec, index uint, data uint16) {
	reg := uint32(data) | uint32(index)<<AC97RegAddrShift |
		AC97RegDirWrite | uint32(codec)<<AC97RegCodecShift
	succeeded := 0
	op := func() error {
		a.Sleep(5 * time.Microsecond)
		a.regs.Write32(AC97Regs, reg)
		if !a.wait(AC97IntWriteDone) {
			succeeded = 0
			return errAC97Timeout
		}
		succeeded++
		if succeeded < 2 {
			return errAC97Unconfirm
		}
		return nil
	}
	if err := backoff.Retry(op, a.policy()); err != nil {
		a.writeFailures.Add(1)
		a.Logger.Printf("AC'97 write timeout on codec %d reg %#02x", codec, index)
		return
	}
	a.shadow[codec&1][(index/2)%AC97NumRegs] = data
}

// Read reads register index of codec.  A value is trusted once two
// consecutive attempts return it; 0 is returned if that never happens.
func (a *AC97) Read(codec, index uint) uint16 {
	reg := uint32(index)<<AC97RegAddrShift | AC97RegDirRead |
		uint32(codec)<<AC97RegCodecShift
	last := -1
	var value uint16
	op := func() error {
		a.Sleep(5 * time.Microsecond)
		a.regs.Write32(AC97Regs, reg)
		a.Sleep(10 * time.Microsecond)
		if !a.wait(AC97IntReadDone) {
			return errAC97Timeout
		}
		value = a.regs.Read16(AC97Regs)
		if int(value) == last {
			return nil
		}
		last = int(value)
		// the data field is ignored on reads; flipping it keeps two
		// corrupt reads from matching by accident
		reg ^= AC97RegDataMask
		return errAC97Mismatch
	}
	if err := backoff.Retry(op, a.policy()); err != nil {
		a.readFailures.Add(1)
		a.Logger.Printf("AC'97 read timeout on codec %d reg %#02x", codec, index)
		return 0
	}
	return value
}

// WriteMasked replaces the bits of mask in a codec register with those of data
func (a *AC97) WriteMasked(codec, index uint, data, mask uint16) {
	cur := a.Read(codec, index)
	a.Write(codec, index, (cur&^mask)|(data&mask))
}

// SetBits sets bits in a codec register
func (a *AC97) SetBits(codec, index uint, bits uint16) {
	a.WriteMasked(codec, index, bits, bits)
}

// ClearBits clears bits in a codec register
func (a *AC97) ClearBits(codec, index uint, bits uint16) {
	a.WriteMasked(codec, index, 0, bits)
}

// Shadow returns the last confirmed value written to a codec register
func (a *AC97) Shadow(codec, index uint) uint16 {
	return a.shadow[codec&1][(index/2)%AC97NumRegs]
}

// ReadFailures is the number of reads that exhausted their attempts
func (a *AC97) ReadFailures() uint64 { return a.readFailures.Load() }

// WriteFailures is the number of writes that were dropped
func (a *AC97) WriteFailures() uint64 { return a.writeFailures.Load() }
