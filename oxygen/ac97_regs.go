package oxygen

// AC'97 codec registers, as seen through the AC97Regs transaction register.
const (
	AC97Reset          = 0x00
	AC97Master         = 0x02
	AC97Headphone      = 0x04
	AC97MasterMono     = 0x06
	AC97PCBeep         = 0x0a
	AC97Phone          = 0x0c
	AC97Mic            = 0x0e
	AC97Line           = 0x10
	AC97CD             = 0x12
	AC97Video          = 0x14
	AC97Aux            = 0x16
	AC97PCM            = 0x18
	AC97RecSel         = 0x1a
	AC97RecGain        = 0x1c
	AC97GeneralPurpose = 0x20
	AC97Powerdown      = 0x26
	AC97ExtendedID     = 0x28
	AC97ExtendedStatus = 0x2a
	AC97CenterLFE      = 0x36
	AC97Surround       = 0x38
	AC97VendorID1      = 0x7c
	AC97VendorID2      = 0x7e

	// AC97NumRegs is the number of 16-bit registers of one codec
	AC97NumRegs = 0x40
)

// Powerdown and extended status bits
const (
	AC97PDPR0 = 0x0100 // ADC
	AC97PDPR1 = 0x0200 // DAC

	AC97EAPRI = 0x0800 // center DAC
	AC97EAPRJ = 0x1000 // surround DAC
	AC97EAPRK = 0x2000 // LFE DAC
)

// CM9780 vendor registers on codec 0 of Xonar boards
const (
	CM9780Jack       = 0x62
	CM9780RSOE       = 0x0001
	CM9780CBOE       = 0x0002
	CM9780SSOE       = 0x0004
	CM9780FROE       = 0x0008
	CM9780MIC2MIC    = 0x0040
	CM9780LI2LI      = 0x0080
	CM9780Mixer      = 0x64
	CM9780BSTSEL     = 0x0001
	CM9780STROMIC    = 0x0002
	CM9780MIX2FR     = 0x0010
	CM9780PCBSW      = 0x8000
	CM9780GPIOSetup  = 0x70
	CM9780GPIO0IO    = 0x0001
	CM9780GPIO1IO    = 0x0002
	CM9780GPIOStatus = 0x72
	CM9780GPO0       = 0x0001
	CM9780GPO1       = 0x0002
)

// AC97Write is one register assignment of a codec setup sequence
type AC97Write struct {
	Reg   uint
	Value uint16
}

// CM9780Defaults are the plain register writes of the codec 0 bring-up:
// analog inputs muted except line, master and PCM at 0dB.
var CM9780Defaults = []AC97Write{
	{AC97Master, 0x0000},
	{AC97PCBeep, 0x8000},
	{AC97Mic, 0x8808},
	{AC97Line, 0x0808},
	{AC97CD, 0x8808},
	{AC97Video, 0x8808},
	{AC97Aux, 0x8808},
	{AC97RecGain, 0x8000},
	{AC97CenterLFE, 0x8080},
	{AC97Surround, 0x8080},
}

// Codec1Defaults is the register setup of a second (front panel) codec
var Codec1Defaults = []AC97Write{
	{AC97Master, 0x0000},
	{AC97Headphone, 0x8000},
	{AC97PCBeep, 0x8000},
	{AC97Mic, 0x880f},
	{AC97Line, 0x8808},
	{AC97CD, 0x8808},
	{AC97Aux, 0x8808},
	{AC97PCM, 0x0808},
	{AC97RecSel, 0x0000},
	{AC97RecGain, 0x0000},
}
