package xonar

import (
	"fmt"
	"strings"
	"time"

	"github.com/TPiechocki/OS-xonar-driver/cs43xx"
	"github.com/TPiechocki/OS-xonar-driver/oxygen"
)

// GPIO wiring of the Xonar DX
const (
	GPIOOutputEnable = 0x0001
	GPIOFrontPanel   = 0x0002
	GPIOMagic        = 0x00c0
	GPIOInputRoute   = 0x0100

	GPIOCS53x1MMask   = 0x000c
	GPIOCS53x1MSingle = 0x0000
	GPIOCS53x1MDouble = 0x0004
	GPIOCS53x1MQuad   = 0x0008

	GPIExtPower = 0x01
)

// Profile is the volume and mute state a card starts with
type Profile string

const (
	// ProfileMuted starts every channel at the minimum level, muted
	ProfileMuted Profile = "muted"

	// ProfileUnmuted starts every channel at 0dB, unmuted
	ProfileUnmuted Profile = "unmuted"
)

// ParseProfile parses "muted" or "unmuted", case insensitive
func ParseProfile(s string) (Profile, error) {
	switch p := Profile(strings.ToLower(strings.TrimSpace(s))); p {
	case ProfileMuted, ProfileUnmuted:
		return p, nil
	}
	return "", fmt.Errorf("%w: cold profile %q", ErrInvalidArgument, s)
}

// Model is what differs between cards built on the same controller
type Model struct {
	ShortName string
	LongName  string

	// VolumeMin and VolumeMax bound the per channel levels; 127 is 0dB
	VolumeMin uint8
	VolumeMax uint8

	// I2SFormat is the data format of the DAC I2S bus
	I2SFormat uint16

	// MCLKs are the MCLK/LRCK ratios for single, double and quad speed, see oxygen.MCLKs
	MCLKs uint16

	// AntiPopDelay separates setting the output enable pin to an output from driving it
	AntiPopDelay time.Duration

	ColdProfile Profile

	// StopOnPowerLoss stops all streams when the power cable is pulled
	StopOnPowerLoss bool
}

// XonarDX describes the Asus Xonar DX
func XonarDX() Model {
	return Model{
		ShortName:    "Xonar DX",
		LongName:     "Asus Virtuoso 100",
		VolumeMin:    127 - 60,
		VolumeMax:    127,
		I2SFormat:    oxygen.I2SFormatLJust,
		MCLKs:        oxygen.MCLKs(256, 128, 128),
		AntiPopDelay: 800 * time.Millisecond,
		ColdProfile:  ProfileMuted,
	}
}

// coldLevels is the volume and mute state the model starts with
func (m Model) coldLevels() (volume [cs43xx.Channels]uint8, mute bool) {
	level := m.VolumeMin
	mute = true
	if m.ColdProfile == ProfileUnmuted {
		level = m.VolumeMax
		mute = false
	}
	for i := range volume {
		volume[i] = level
	}
	return volume, mute
}
