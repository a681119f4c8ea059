package cs43xx

// 2-wire addresses of the two DACs on Xonar D1/DX boards
const (
	AddrCS4398  = 0x9e // 1001111x, front
	AddrCS4362A = 0x30 // 0011000x, surround, center/LFE and back
)

// CS4398 registers
const (
	CS4398ChipID = 1

	// register 2, mode control
	CS4398Mode       = 2
	CS4398FMMask     = 0x03
	CS4398FMSingle   = 0x00
	CS4398FMDouble   = 0x01
	CS4398FMQuad     = 0x02
	CS4398FMDSD      = 0x03
	CS4398DEMMask    = 0x0c
	CS4398DEMNone    = 0x00
	CS4398DEM44100   = 0x04
	CS4398DEM48000   = 0x08
	CS4398DEM32000   = 0x0c
	CS4398DIFMask    = 0x70
	CS4398DIFLJust   = 0x00
	CS4398DIFI2S     = 0x10
	CS4398DIFRJust16 = 0x20
	CS4398DIFRJust24 = 0x30
	CS4398DIFRJust20 = 0x40
	CS4398DIFRJust18 = 0x50
	CS4398DSDSrc     = 0x80

	// register 3, volume, mixing and inversion
	CS4398Mixing  = 3
	CS4398ATAPIBR = 0x01
	CS4398ATAPIBL = 0x02
	CS4398ATAPIAR = 0x04
	CS4398ATAPIAL = 0x08
	CS4398InvertB = 0x20
	CS4398InvertA = 0x40
	CS4398VolBA   = 0x80

	// register 4, mute control
	CS4398MuteCtl  = 4
	CS4398MutepLow = 0x02
	CS4398MuteB    = 0x08
	CS4398MuteA    = 0x10
	CS4398PAMute   = 0x80

	// registers 5 and 6, channel A and B attenuation in 0.5dB steps
	CS4398VolA = 5
	CS4398VolB = 6

	// register 7, ramp and filter control
	CS4398Ramp      = 7
	CS4398RmpDn     = 0x01
	CS4398RmpUp     = 0x02
	CS4398FiltSel   = 0x04
	CS4398InvSlow   = 0x08
	CS4398ZeroCross = 0x40
	CS4398SoftRamp  = 0x80

	// register 8, misc control.  Not part of the register image.
	CS4398Misc   = 8
	CS4398Freeze = 0x20
	CS4398CPEn   = 0x40
	CS4398PDN    = 0x80
)

// CS4362A registers
const (
	// register 1, mode control 1
	CS4362AMode1   = 1
	CS4362APDN     = 0x01
	CS4362APDN1    = 0x02
	CS4362APDN2    = 0x04
	CS4362APDN3    = 0x08
	CS4362AMCLKDiv = 0x20
	CS4362AFreeze  = 0x40
	CS4362ACPEn    = 0x80

	// register 2, mode control 2
	CS4362AMode2    = 2
	CS4362ADIFLJust = 0x00
	CS4362ADIFI2S   = 0x10

	// register 3, mode control 3
	CS4362AMode3     = 3
	CS4362AMuteC6    = 0x00
	CS4362AAMute     = 0x04
	CS4362ARmpUp     = 0x10
	CS4362AZeroCross = 0x40
	CS4362ASoftRamp  = 0x80

	// register 4, filter control
	CS4362AFilter  = 4
	CS4362ARmpDn   = 0x01
	CS4362ADEMNone = 0x00
	CS4362AFiltSel = 0x10

	// register 5, invert control
	CS4362AInvert = 5

	// registers 6, 9 and 12 hold the mixing and speed of one channel pair
	CS4362AMix1     = 6
	CS4362AMix2     = 9
	CS4362AMix3     = 12
	CS4362AFMMask   = 0x03
	CS4362AFMSingle = 0x00
	CS4362AFMDouble = 0x01
	CS4362AFMQuad   = 0x02
	CS4362AATAPIBR  = 0x04
	CS4362AATAPIBL  = 0x08
	CS4362AATAPIAR  = 0x10
	CS4362AATAPIAL  = 0x20

	// registers 7, 8, 10, 11, 13 and 14, channel attenuation in 1dB steps
	CS4362AVolMask = 0x7f
	CS4362AMute    = 0x80
)

const (
	cs4398Regs  = 8
	cs4362aRegs = 15
)

// cs4362aVolReg is the attenuation register of multichannel DAC channel i
// (0..5); each channel pair shares a mixing register ahead of its two
// volume registers.
func cs4362aVolReg(i int) uint8 {
	return uint8(7 + i + i/2)
}
