package oxygen

import (
	"sync/atomic"
	"time"
)

// I2CSettle is how long the 2-wire engine is given between transactions.
// The datasheet asks for ~300us, this is rounded up.
const I2CSettle = time.Millisecond

// I2C is the controller's 2-wire bus master.  Writes are fire-and-forget: the
// engine returns no acknowledgement, so the caller must keep its own record of
// what it sent.
type I2C struct {
	regs *Regs

	// Sleep is used for the settle delay, tests replace it
	Sleep func(time.Duration)

	writes atomic.Uint64
}

// NewI2C returns a 2-wire master over regs
func NewI2C(regs *Regs) *I2C {
	return &I2C{regs: regs, Sleep: time.Sleep}
}

// WriteRegister writes data to register reg of the device at (8-bit) address dev
func (c *I2C) WriteRegister(dev, reg, data uint8) {
	c.Sleep(I2CSettle)
	c.regs.Write8(TwoWireMap, reg)
	c.regs.Write8(TwoWireData, data)
	c.regs.Write8(TwoWireControl, dev|TwoWireDirWrite)
	c.writes.Add(1)
}

// Writes is the number of transactions issued so far
func (c *I2C) Writes() uint64 {
	return c.writes.Load()
}
