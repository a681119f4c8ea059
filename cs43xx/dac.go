// Package cs43xx controls the Cirrus Logic CS4398 (front) and CS4362A
// (multichannel) DACs of Xonar D1/DX boards.
//
// The DACs are write-only over the 2-wire bus, so the driver keeps an image
// of every register it has written and skips writes that would not change
// anything.  The DAC does no locking; the chip's control mutex covers it.
package cs43xx

import (
	"fmt"
	"io"

	"github.com/TPiechocki/OS-xonar-driver/util"
)

// Chip selects one of the two DACs
type Chip int

const (
	// Front is the CS4398 driving the front stereo pair
	Front Chip = iota

	// Multichannel is the CS4362A driving surround, center/LFE and back
	Multichannel
)

func (c Chip) String() string {
	switch c {
	case Front:
		return "CS4398"
	case Multichannel:
		return "CS4362A"
	}
	return fmt.Sprintf("Chip(%d)", int(c))
}

// Addr is the 2-wire address of the chip
func (c Chip) Addr() uint8 {
	if c == Front {
		return AddrCS4398
	}
	return AddrCS4362A
}

// RegisterWriter writes one register of a 2-wire device, oxygen.I2C is one
type RegisterWriter interface {
	WriteRegister(dev, reg, data uint8)
}

// Family is the speed class of a sample rate
type Family int

const (
	// SingleSpeed covers rates up to 50kHz
	SingleSpeed Family = iota
	// DoubleSpeed covers rates up to 100kHz
	DoubleSpeed
	// QuadSpeed covers everything above
	QuadSpeed
)

// FamilyOf classifies a sample rate in Hz
func FamilyOf(rate int) Family {
	switch {
	case rate <= 50000:
		return SingleSpeed
	case rate <= 100000:
		return DoubleSpeed
	default:
		return QuadSpeed
	}
}

// Channels is the number of output channels over both DACs
const Channels = 8

// DAC is the pair of DACs and the image of their registers
type DAC struct {
	bus    RegisterWriter
	cs4398 [cs4398Regs]uint8
	cs4362 [cs4362aRegs]uint8
}

// New returns the DACs of a Xonar D1/DX with their register images at the
// power-down defaults for the given volumes (one level 0..127 per channel,
// front pair first) and mute state.  No I/O is done until Init.
func New(bus RegisterWriter, volume [Channels]uint8, mute bool) *DAC {
	d := &DAC{bus: bus}

	d.cs4398[CS4398Mode] = CS4398FMSingle | CS4398DEMNone | CS4398DIFLJust
	d.cs4398[CS4398Mixing] = CS4398ATAPIBR | CS4398ATAPIAL
	d.cs4398[CS4398MuteCtl] = cs4398MuteBits(mute)
	d.cs4398[CS4398VolA] = cs4398Level(volume[0])
	d.cs4398[CS4398VolB] = cs4398Level(volume[1])
	d.cs4398[CS4398Ramp] = CS4398RmpDn | CS4398RmpUp | CS4398ZeroCross | CS4398SoftRamp

	d.cs4362[CS4362AMode1] = CS4362APDN | CS4362ACPEn
	d.cs4362[CS4362AMode2] = CS4362ADIFLJust
	d.cs4362[CS4362AMode3] = CS4362AMuteC6 | CS4362AAMute | CS4362ARmpUp | CS4362AZeroCross | CS4362ASoftRamp
	d.cs4362[CS4362AFilter] = CS4362ARmpDn | CS4362ADEMNone
	d.cs4362[CS4362AMix1] = CS4362AFMSingle | CS4362AATAPIBR | CS4362AATAPIAL
	d.cs4362[CS4362AMix2] = d.cs4362[CS4362AMix1]
	d.cs4362[CS4362AMix3] = d.cs4362[CS4362AMix1]
	for i := 0; i < 6; i++ {
		d.cs4362[cs4362aVolReg(i)] = cs4362aLevel(volume[2+i], mute)
	}
	return d
}

func cs4398Level(v uint8) uint8 {
	return (127 - v&0x7f) * 2
}

func cs4362aLevel(v uint8, mute bool) uint8 {
	l := 127 - v&0x7f
	if mute {
		l |= CS4362AMute
	}
	return l
}

func cs4398MuteBits(mute bool) uint8 {
	reg := uint8(CS4398MutepLow | CS4398PAMute)
	if mute {
		reg |= CS4398MuteB | CS4398MuteA
	}
	return reg
}

func (d *DAC) image(c Chip) []uint8 {
	if c == Front {
		return d.cs4398[:]
	}
	return d.cs4362[:]
}

// Write always sends value to reg of chip c and records it in the image.
// Registers outside the image (CS4398 register 8) are written but not recorded.
func (d *DAC) Write(c Chip, reg, value uint8) {
	d.bus.WriteRegister(c.Addr(), reg, value)
	if img := d.image(c); int(reg) < len(img) {
		img[reg] = value
	}
}

// WriteCached sends value only if it differs from the image
func (d *DAC) WriteCached(c Chip, reg, value uint8) {
	img := d.image(c)
	if int(reg) < len(img) && img[reg] == value {
		return
	}
	d.Write(c, reg, value)
}

// Register returns the image of reg of chip c
func (d *DAC) Register(c Chip, reg uint8) uint8 {
	img := d.image(c)
	if int(reg) >= len(img) {
		return 0
	}
	return img[reg]
}

// Image returns a copy of the register image of chip c
func (d *DAC) Image(c Chip) []uint8 {
	img := d.image(c)
	out := make([]uint8, len(img))
	copy(out, img)
	return out
}

// Init powers both DACs up.  They are put into control port mode while powered
// down, configured from the image, then released from power down.
func (d *DAC) Init() {
	d.Write(Front, CS4398Misc, CS4398CPEn|CS4398PDN)
	d.Write(Multichannel, CS4362AMode1, CS4362APDN|CS4362ACPEn)

	for reg := uint8(CS4398Mode); reg <= CS4398Ramp; reg++ {
		d.Write(Front, reg, d.cs4398[reg])
	}
	for reg := uint8(CS4362AMode2); reg < cs4362aRegs; reg++ {
		d.Write(Multichannel, reg, d.cs4362[reg])
	}

	d.Write(Front, CS4398Misc, CS4398CPEn)
	d.Write(Multichannel, CS4362AMode1, CS4362ACPEn)
}

// SetSampleRateFamily switches the speed mode of both DACs for rate,
// keeping every other bit of the format registers.  A rate in the current
// family causes no bus traffic.
func (d *DAC) SetSampleRateFamily(rate int) {
	var fm4398, fm4362 uint8
	switch FamilyOf(rate) {
	case SingleSpeed:
		fm4398, fm4362 = CS4398FMSingle, CS4362AFMSingle
	case DoubleSpeed:
		fm4398, fm4362 = CS4398FMDouble, CS4362AFMDouble
	default:
		fm4398, fm4362 = CS4398FMQuad, CS4362AFMQuad
	}
	d.WriteCached(Front, CS4398Mode, util.Masked(d.cs4398[CS4398Mode], fm4398, CS4398FMMask))
	for _, reg := range []uint8{CS4362AMix1, CS4362AMix3, CS4362AMix2} {
		d.WriteCached(Multichannel, reg, util.Masked(d.cs4362[reg], fm4362, CS4362AFMMask))
	}
}

// ApplyVolume writes the attenuation of every channel.  The front pair uses
// 0.5dB steps, the others 1dB steps with the mute flag carried in the same
// register.
func (d *DAC) ApplyVolume(volume [Channels]uint8, mute bool) {
	d.WriteCached(Front, CS4398VolA, cs4398Level(volume[0]))
	d.WriteCached(Front, CS4398VolB, cs4398Level(volume[1]))
	d.applyMultichannel(volume, mute)
}

// ApplyMute writes the mute state of every channel
func (d *DAC) ApplyMute(volume [Channels]uint8, mute bool) {
	d.WriteCached(Front, CS4398MuteCtl, cs4398MuteBits(mute))
	d.applyMultichannel(volume, mute)
}

// ApplyVolumeAndMute brings volume and mute up to date in one pass
func (d *DAC) ApplyVolumeAndMute(volume [Channels]uint8, mute bool) {
	d.WriteCached(Front, CS4398MuteCtl, cs4398MuteBits(mute))
	d.ApplyVolume(volume, mute)
}

func (d *DAC) applyMultichannel(volume [Channels]uint8, mute bool) {
	for i := 0; i < 6; i++ {
		d.WriteCached(Multichannel, cs4362aVolReg(i), cs4362aLevel(volume[2+i], mute))
	}
}

// PowerDown puts the multichannel DAC back into power down.  Output must have
// been disabled first.
func (d *DAC) PowerDown() {
	d.Write(Multichannel, CS4362AMode1, CS4362APDN|CS4362ACPEn)
}

// Dump prints both register images
func (d *DAC) Dump(w io.Writer) {
	fmt.Fprint(w, "\nCS4398:")
	for i := CS4398Mode; i < cs4398Regs; i++ {
		fmt.Fprintf(w, " %02x", d.cs4398[i])
	}
	fmt.Fprint(w, "\nCS4362A:")
	for i := CS4362AMode1; i < cs4362aRegs; i++ {
		fmt.Fprintf(w, " %02x", d.cs4362[i])
	}
	fmt.Fprintln(w)
}
