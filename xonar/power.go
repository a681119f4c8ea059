package xonar

import (
	"errors"
	"fmt"

	"github.com/TPiechocki/OS-xonar-driver/oxygen"
)

// worker runs deferred work queued by the interrupt handler until the queue is closed
func (c *Chip) worker() {
	defer close(c.workDone)
	for range c.work {
		c.checkExternalPower()
	}
}

// checkExternalPower re-reads the power sense pin after a GPIO interrupt
func (c *Chip) checkExternalPower() {
	c.mu.Lock()
	defer c.mu.Unlock()

	has := c.regs.Read8(oxygen.GPIData)&GPIExtPower != 0
	if has == c.hasPower {
		return
	}
	c.hasPower = has
	if has {
		c.log.Printf("%s: power restored", c.id)
		if c.state == SuspendedNoPower {
			c.setState(Running)
		}
		return
	}

	c.log.Printf("%s: Hey! Don't unplug the power cable!", c.id)
	if c.state != Running {
		return
	}
	c.setState(SuspendedNoPower)
	if c.model.StopOnPowerLoss {
		c.lock.Lock()
		c.running = 0
		c.regs.Write8(oxygen.DMAStatus, 0)
		c.lock.Unlock()
		c.log.Printf("%s: all streams stopped", c.id)
	}
}

// HasExternalPower reports the last sensed state of the power cable
func (c *Chip) HasExternalPower() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasPower
}

// quiesce stops all DMA and disables every interrupt source
func (c *Chip) quiesce() {
	c.lock.Lock()
	c.interruptMask = 0
	c.running = 0
	c.regs.Write16(oxygen.DMAStatus, 0)
	c.regs.Write16(oxygen.InterruptMask, 0)
	c.lock.Unlock()
}

// Shutdown silences the card for a system shutdown: DMA and interrupts are
// stopped, the output relay opened, the DACs powered down and the codecs held
// in reset.  The device stays claimed.  Shutdown may be called more than once.
func (c *Chip) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Freed {
		return
	}
	c.quiesce()
	c.setState(ShuttingDown)

	// output off before the DACs lose power, or it pops
	c.disableOutput()
	c.dac.PowerDown()
	c.regs.ClearBits8(oxygen.Function, oxygen.FunctionResetCodec)
}

// Free stops the card and releases the device.  Pending deferred work is run
// before the worker exits.  The chip is unusable afterwards; Free may be
// called more than once.
func (c *Chip) Free() error {
	c.freeOnce.Do(func() { c.freeErr = c.free() })
	return c.freeErr
}

func (c *Chip) free() error {
	c.quiesce()

	c.stopIRQ()
	<-c.irqDone
	c.lock.Lock()
	c.freed = true
	close(c.work)
	c.lock.Unlock()
	<-c.workDone

	c.mu.Lock()
	c.setState(Freed)
	c.mu.Unlock()
	c.metrics.detach(c)

	var errs []error
	if err := c.busErr(); err != nil {
		errs = append(errs, err)
	}
	if err := c.irq.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.dev.ReleaseRegions(); err != nil {
		errs = append(errs, err)
	}
	if err := c.dev.Disable(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) != 0 {
		return fmt.Errorf("xonar: releasing %s: %w", c.dev, errors.Join(errs...))
	}
	return nil
}
