package oxygen

// Register offsets and bit layouts of the CMI8788 I/O window.  These are a
// hardware contract; every value must match the silicon.

// IOSize is the length of the controller's I/O window in bytes
const IOSize = 0x100

// DMA engines
const (
	DMAAAddress       = 0x00 // 32-bit base address
	DMAACount         = 0x04 // buffer counter (dwords)
	DMAATCount        = 0x06 // interrupt counter (dwords)
	DMABAddress       = 0x08
	DMABCount         = 0x0c
	DMABTCount        = 0x0e
	DMACAddress       = 0x10
	DMACCount         = 0x14
	DMACTCount        = 0x16
	DMASPDIFAddress   = 0x18
	DMASPDIFCount     = 0x1c
	DMASPDIFTCount    = 0x1e
	DMAMultichAddress = 0x20
	DMAMultichCount   = 0x24 // 24 bits
	DMAMultichTCount  = 0x28 // 24 bits
	DMAAC97Address    = 0x30
	DMAAC97Count      = 0x34
	DMAAC97TCount     = 0x36
)

// DMA control; the values are channel bits
const (
	DMAStatus = 0x40 // 1 = running
	DMAPause  = 0x41
	DMAReset  = 0x42
	DMAFlush  = 0xe1
)

// Channel bits, shared by DMA status/pause/flush and the interrupt registers
const (
	ChannelA       = 0x01
	ChannelB       = 0x02
	ChannelC       = 0x04
	ChannelSPDIF   = 0x08
	ChannelMultich = 0x10
	ChannelAC97    = 0x20
)

// PlayChannels and its fields
const (
	PlayChannels        = 0x43
	PlayChannelsMask    = 0x03
	PlayChannels2       = 0x00
	PlayChannels4       = 0x01
	PlayChannels6       = 0x02
	PlayChannels8       = 0x03
	DMAABurstMask       = 0x04
	DMAABurst8          = 0x00
	DMAABurst16         = 0x04
	DMAMultichBurstMask = 0x08
	DMAMultichBurst8    = 0x00
	DMAMultichBurst16   = 0x08
)

// Interrupt mask (0x44) and status (0x46).  The low byte holds Channel* bits.
const (
	InterruptMask   = 0x44
	InterruptStatus = 0x46

	IntSPDIFInDetect = 0x0100
	IntMCU           = 0x0200
	Int2Wire         = 0x0400
	IntGPIO          = 0x0800
	IntMIDI          = 0x1000
	IntMCB           = 0x2000
	IntAC97          = 0x4000
)

// Misc
const (
	Misc                = 0x48
	MiscWritePCISubID   = 0x01
	MiscLatency3F       = 0x02
	MiscRecCFromSPDIF   = 0x04
	MiscRecBFromAC97    = 0x08
	MiscRecAFromMultich = 0x10
	MiscPCIMemW1Clock   = 0x20
	MiscMIDI            = 0x40
)

// Sample formats
const (
	RecFormat       = 0x4a
	RecFormatAShift = 0
	RecFormatBShift = 2
	RecFormatCShift = 4

	PlayFormat         = 0x4b
	SPDIFFormatMask    = 0x03
	SPDIFFormatShift   = 0
	MultichFormatMask  = 0x0c
	MultichFormatShift = 2

	Format16 = 0x00
	Format24 = 0x01
	Format32 = 0x02

	RecChannels      = 0x4c
	RecChannelsMask  = 0x07
	RecChannels2_2_2 = 0x00
	RecChannels4_2_2 = 0x01
	RecChannels6_0_2 = 0x02
	RecChannels6_2_0 = 0x03
	RecChannels8_0_0 = 0x04
)

// Function
const (
	Function             = 0x50
	FunctionClockMask    = 0x01
	FunctionClockPLL     = 0x00
	FunctionClockCrystal = 0x01
	FunctionResetCodec   = 0x02
	FunctionResetPol     = 0x04
	FunctionPwdn         = 0x08
	FunctionPwdnEn       = 0x10
	FunctionPwdnPol      = 0x20
	Function2WireSPIMask = 0x40
	FunctionSPI          = 0x00
	Function2Wire        = 0x40
	FunctionEnableSPI4_5 = 0x80
)

// I2S formats, one 16-bit register per bus
const (
	I2SMultichFormat = 0x60
	I2SAFormat       = 0x62
	I2SBFormat       = 0x64
	I2SCFormat       = 0x66

	I2SRateMask = 0x0007 // LRCK
	Rate32000   = 0x0000
	Rate44100   = 0x0001
	Rate48000   = 0x0002
	Rate64000   = 0x0003
	Rate88200   = 0x0004
	Rate96000   = 0x0005
	Rate176400  = 0x0006
	Rate192000  = 0x0007

	I2SFormatMask  = 0x0008
	I2SFormatI2S   = 0x0000
	I2SFormatLJust = 0x0008

	I2SMCLKMask  = 0x0030 // MCLK/LRCK
	I2SMCLKShift = 4
	MCLK128      = 0
	MCLK256      = 1
	MCLK512      = 2

	I2SBitsMask = 0x00c0
	I2SBits16   = 0x0000
	I2SBits20   = 0x0040
	I2SBits24   = 0x0080
	I2SBits32   = 0x00c0

	I2SMaster   = 0x0100
	I2SBCLKMask = 0x0600 // BCLK/LRCK
	I2SBCLK64   = 0x0000
	I2SBCLK128  = 0x0200
	I2SBCLK256  = 0x0400
	I2SMuteMCLK = 0x0800
)

// I2SMCLK encodes an MCLK/LRCK ratio selector into its register field
func I2SMCLK(f uint16) uint16 {
	return (f & 3) << I2SMCLKShift
}

// MCLKs packs the MCLK selectors for single, double and quad speed rates
func MCLKs(single, double, quad uint16) uint16 {
	sel := func(f uint16) uint16 {
		switch f {
		case 512:
			return MCLK512
		case 256:
			return MCLK256
		default:
			return MCLK128
		}
	}
	return sel(single)<<0 | sel(double)<<2 | sel(quad)<<4
}

// S/PDIF
const (
	SPDIFControl   = 0x70
	SPDIFOutEnable = 0x00000002
	SPDIFLoopback  = 0x00000004
	SPDIFSenseMask = 0x00000008
	SPDIFLockMask  = 0x00000010
	SPDIFRateMask  = 0x00000020

	SPDIFOutputBits    = 0x74
	SPDIFNonAudio      = 0x00000002
	SPDIFC             = 0x00000004
	SPDIFPreemphasis   = 0x00000008
	SPDIFCategoryMask  = 0x000007f0
	SPDIFCategoryShift = 4
	SPDIFOriginal      = 0x00000800

	// IEC958 consumer category "PCM coder"
	IEC958CategoryPCMCoder = 0x02
)

// EEPROM
const (
	EEPROMControl = 0x80
	EEPROMData    = 0x82
)

// 2-wire (I2C) bus
const (
	TwoWireControl      = 0x90
	TwoWireDirMask      = 0x01
	TwoWireDirWrite     = 0x00
	TwoWireDirRead      = 0x01
	TwoWireAddressMask  = 0xfe
	TwoWireAddressShift = 1

	TwoWireMap  = 0x91 // register index, 8 bits
	TwoWireData = 0x92 // 16 bits

	TwoWireBusStatus     = 0x94
	TwoWireBusy          = 0x0001
	TwoWireLengthMask    = 0x0002
	TwoWireLength8       = 0x0000
	TwoWireLength16      = 0x0002
	TwoWireManualRead    = 0x0004
	TwoWireWriteMapOnly  = 0x0008
	TwoWireInterruptMask = 0x0040
	TwoWireSpeedMask     = 0x0100
	TwoWireSpeedStandard = 0x0000
	TwoWireSpeedFast     = 0x0100
	TwoWireClockSync     = 0x0200
	TwoWireBusReset      = 0x0400
)

// MPU-401
const (
	MPU401         = 0xa0
	MPU401Control  = 0xa2
	MPU401Loopback = 0x01
)

// GPI/GPIO control, data and interrupt triples
const (
	GPIData           = 0xa4
	GPIInterruptMask  = 0xa5
	GPIOData          = 0xa6
	GPIOControl       = 0xa8 // 0 = input, 1 = output
	GPIOInterruptMask = 0xaa
	DeviceSense       = 0xac
)

// Playback and record routing
const (
	PlayRouting         = 0xc0
	PlayMute01          = 0x0001
	PlayMute23          = 0x0002
	PlayMute45          = 0x0004
	PlayMute67          = 0x0008
	PlayMultichMask     = 0x0010
	PlayMultichI2SDAC   = 0x0000
	PlayMultichAC97     = 0x0010
	PlaySPDIFMask       = 0x00e0
	PlaySPDIFSPDIF      = 0x0000
	PlayDAC0SourceMask  = 0x0300
	PlayDAC0SourceShift = 8
	PlayDAC1SourceMask  = 0x0c00
	PlayDAC1SourceShift = 10
	PlayDAC2SourceMask  = 0x3000
	PlayDAC2SourceShift = 12
	PlayDAC3SourceMask  = 0xc000
	PlayDAC3SourceShift = 14

	RecRouting       = 0xc2
	RecARouteMask    = 0x07
	RecARouteI2SADC1 = 0x00
	RecBRouteMask    = 0x18
	RecBRouteI2SADC2 = 0x00
	RecCRouteMask    = 0x20
	RecCRouteSPDIF   = 0x00

	ADCMonitor = 0xc3

	AMonitorRouting     = 0xc4
	AMonitorRoute0Shift = 0
	AMonitorRoute1Shift = 2
	AMonitorRoute2Shift = 4
	AMonitorRoute3Shift = 6
)

// AC'97 controller
const (
	AC97Control       = 0xd0
	AC97ColdReset     = 0x0001
	AC97SuspendState  = 0x0010
	AC97ResumeProcess = 0x0020
	AC97ResumeState   = 0x0040
	AC97Codec0        = 0x0080
	AC97Codec1        = 0x0100
	AC97ClockDisable  = 0x0200
	AC97NoCodec0      = 0x0400

	AC97InterruptMask   = 0xd2
	AC97InterruptStatus = 0xd3 // read clears
	AC97IntReadDone     = 0x01
	AC97IntWriteDone    = 0x02
	AC97IntCodec0       = 0x10
	AC97IntCodec1       = 0x20

	AC97OutConfig   = 0xd4
	AC97Codec1Slot3 = 0x00000100
	AC97Codec1Slot4 = 0x00000200
	AC97InConfig    = 0xd8

	AC97Regs          = 0xdc
	AC97RegDataMask   = 0x0000ffff
	AC97RegAddrMask   = 0x007f0000
	AC97RegAddrShift  = 16
	AC97RegDirMask    = 0x00800000
	AC97RegDirWrite   = 0x00000000
	AC97RegDirRead    = 0x00800000
	AC97RegCodecMask  = 0x01000000
	AC97RegCodecShift = 24
)

// Identification
const (
	Test         = 0xe0
	CodecVersion = 0xe4
	Revision     = 0xe6

	Revision2     = 0x08
	PackageIDMask = 0x07
	PackageID8786 = 0x04
	PackageID8787 = 0x06
	PackageID8788 = 0x07
)

// RateBits maps a sample rate in Hz to its I2S rate field.  ok is false for
// rates the I2S engine cannot generate.
func RateBits(hz int) (bits uint16, ok bool) {
	switch hz {
	case 32000:
		return Rate32000, true
	case 44100:
		return Rate44100, true
	case 48000:
		return Rate48000, true
	case 64000:
		return Rate64000, true
	case 88200:
		return Rate88200, true
	case 96000:
		return Rate96000, true
	case 176400:
		return Rate176400, true
	case 192000:
		return Rate192000, true
	}
	return 0, false
}
