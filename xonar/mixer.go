package xonar

import (
	"fmt"

	"github.com/TPiechocki/OS-xonar-driver/cs43xx"
	"github.com/TPiechocki/OS-xonar-driver/oxygen"
	"github.com/TPiechocki/OS-xonar-driver/util"
)

// VolumeRange is the number of volume channels and the bounds of their levels
func (c *Chip) VolumeRange() (channels, lo, hi int) {
	return cs43xx.Channels, int(c.model.VolumeMin), int(c.model.VolumeMax)
}

// Volume returns the level of every channel, front pair first
func (c *Chip) Volume() ([]int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOperational(); err != nil {
		return nil, err
	}
	out := make([]int, len(c.volume))
	for i, v := range c.volume {
		out[i] = int(v)
	}
	return out, nil
}

// SetVolume sets the level of every channel.  levels must hold one level per
// channel, each within VolumeRange; otherwise nothing is changed.  Only the
// DAC registers whose value changes are written.
func (c *Chip) SetVolume(levels []int) (changed bool, err error) {
	if len(levels) != cs43xx.Channels {
		return false, fmt.Errorf("%w: %d volume levels for %d channels", ErrInvalidArgument, len(levels), cs43xx.Channels)
	}
	for i, l := range levels {
		if !util.InRange(l, int(c.model.VolumeMin), int(c.model.VolumeMax)) {
			return false, fmt.Errorf("%w: level %d of channel %d outside [%d, %d]",
				ErrInvalidArgument, l, i, c.model.VolumeMin, c.model.VolumeMax)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOperational(); err != nil {
		return false, err
	}
	for i, l := range levels {
		if c.volume[i] != uint8(l) {
			c.volume[i] = uint8(l)
			changed = true
		}
	}
	if changed {
		c.dac.ApplyVolume(c.volume, c.mute)
	}
	return changed, nil
}

// Mute reports whether the outputs are muted
func (c *Chip) Mute() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOperational(); err != nil {
		return false, err
	}
	return c.mute, nil
}

// SetMute mutes or unmutes every output.  The levels are kept.
func (c *Chip) SetMute(mute bool) (changed bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOperational(); err != nil {
		return false, err
	}
	if c.mute == mute {
		return false, nil
	}
	c.mute = mute
	c.dac.ApplyMute(c.volume, c.mute)
	return true, nil
}

// GPIOBitInvert, or'ed into the value of a Switch, makes it report and take
// the opposite of the pin state
const GPIOBitInvert = 1 << 16

// Switch is an on/off control backed by one GPIO pin
type Switch struct {
	chip  *Chip
	name  string
	value uint32
}

// GPIOSwitch returns a control for the GPIO pins in the low 16 bits of value,
// inverted if value has GPIOBitInvert
func (c *Chip) GPIOSwitch(name string, value uint32) *Switch {
	return &Switch{chip: c, name: name, value: value}
}

// FrontPanel is the switch that routes the headphone output to the front panel
func (c *Chip) FrontPanel() *Switch {
	return c.GPIOSwitch("Front Panel Playback Switch", GPIOFrontPanel)
}

// Name is the name of the control
func (s *Switch) Name() string { return s.name }

func (s *Switch) bit() uint16   { return uint16(s.value) }
func (s *Switch) invert() bool { return s.value&GPIOBitInvert != 0 }

// Get returns the state of the switch
func (s *Switch) Get() (bool, error) {
	c := s.chip
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOperational(); err != nil {
		return false, err
	}
	on := c.regs.Read16(oxygen.GPIOData)&s.bit() != 0
	return on != s.invert(), nil
}

// Put sets the switch; the pin is written only when it changes
func (s *Switch) Put(on bool) (changed bool, err error) {
	c := s.chip
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOperational(); err != nil {
		return false, err
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	old := c.regs.Read16(oxygen.GPIOData)
	v := util.SetBits(old, s.bit(), on != s.invert())
	if v == old {
		return false, nil
	}
	c.regs.Write16(oxygen.GPIOData, v)
	return true, nil
}
