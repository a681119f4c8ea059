package xonar

import (
	"context"

	"github.com/TPiechocki/OS-xonar-driver/oxygen"
)

// channelBits are the DMA channel interrupt sources
const channelBits = oxygen.ChannelA | oxygen.ChannelB | oxygen.ChannelC |
	oxygen.ChannelSPDIF | oxygen.ChannelMultich | oxygen.ChannelAC97

// HandleInterrupt services the card's (shared) interrupt line.  It returns
// false if the card did not raise it.  It never blocks: period notifications
// are delivered after the register lock is dropped, power sensing is handed to
// the worker and AC'97 waiters are only woken.
func (c *Chip) HandleInterrupt() bool {
	status := c.regs.Read16(oxygen.InterruptStatus)
	if status == 0 {
		return false
	}

	c.lock.Lock()
	ack := status & (channelBits | oxygen.IntSPDIFInDetect | oxygen.IntGPIO | oxygen.IntAC97)
	if ack != 0 {
		if ack&oxygen.IntSPDIFInDetect != 0 {
			c.interruptMask &^= oxygen.IntSPDIFInDetect
		}
		// dropping the sources from the mask acknowledges them
		c.regs.Write16(oxygen.InterruptMask, c.interruptMask&^ack)
		c.regs.Write16(oxygen.InterruptMask, c.interruptMask)
	}
	elapsed := uint8(status) & c.running
	var notify []*stream
	if elapsed != 0 {
		for bit, s := range c.streams {
			if elapsed&bit != 0 {
				notify = append(notify, s)
			}
		}
	}
	if status&oxygen.IntGPIO != 0 && !c.freed {
		select {
		case c.work <- struct{}{}:
		default:
		}
	}
	c.lock.Unlock()

	for _, s := range notify {
		s.periodElapsed()
	}
	if status&oxygen.IntAC97 != 0 {
		c.ac97.Signal()
	}
	c.metrics.interrupt(c, status, len(notify))
	return true
}

// serveIRQ runs HandleInterrupt every time the line fires until ctx is done
func (c *Chip) serveIRQ(ctx context.Context) {
	defer close(c.irqDone)
	for {
		if err := c.irq.Wait(ctx); err != nil {
			if ctx.Err() == nil {
				c.log.Printf("%s: interrupt source failed: %v", c.id, err)
			}
			return
		}
		c.HandleInterrupt()
	}
}
