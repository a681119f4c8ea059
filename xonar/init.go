package xonar

import (
	"context"
	"fmt"
	"time"

	"github.com/TPiechocki/OS-xonar-driver/cs43xx"
	"github.com/TPiechocki/OS-xonar-driver/oxygen"
)

// Probe brings the card on dev from cold to running.  Failing to acquire the
// device is fatal: whatever was acquired is released in reverse order and no
// chip is returned.  Once the I/O window is ours nothing can fail; lost AC'97
// transactions are logged and skipped.
func Probe(dev oxygen.Device, cfg Config) (*Chip, error) {
	c := newChip(dev, cfg)
	if err := c.enableBus(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.configureRegisters()
	c.configureCodecs()
	c.configureDACs()
	c.enableOutput()
	c.mu.Unlock()

	c.lock.Lock()
	c.regs.Write16(oxygen.InterruptMask, c.interruptMask)
	c.lock.Unlock()

	if err := c.busErr(); err != nil {
		c.log.Printf("%s: register access failed during bring-up: %v", c.id, err)
	}
	c.metrics.attach(c)
	c.log.Printf("%s: %s ready", c.id, c.name)
	return c, nil
}

// enableBus enables the device, claims its I/O window, turns on bus mastering
// and starts serving its interrupt
func (c *Chip) enableBus() (err error) {
	if err = c.dev.Enable(); err != nil {
		return fmt.Errorf("xonar: enabling %s: %w", c.dev, err)
	}
	defer func() {
		if err != nil {
			c.dev.Disable()
		}
	}()

	var bus oxygen.Bus
	bus, err = c.dev.RequestRegions()
	if err != nil {
		return fmt.Errorf("xonar: claiming the I/O window of %s: %w", c.dev, err)
	}
	defer func() {
		if err != nil {
			c.dev.ReleaseRegions()
		}
	}()

	if err = c.dev.SetMaster(); err != nil {
		return fmt.Errorf("xonar: enabling bus mastering on %s: %w", c.dev, err)
	}

	var irq oxygen.IRQSource
	irq, err = c.dev.OpenIRQ()
	if err != nil {
		return fmt.Errorf("xonar: interrupt of %s: %w", c.dev, err)
	}

	c.irq = irq
	c.regs = oxygen.NewRegs(bus)
	c.fault, _ = bus.(oxygen.FaultReporter)
	c.i2c = oxygen.NewI2C(c.regs)
	c.i2c.Sleep = c.sleep
	c.ac97 = oxygen.NewAC97(c.regs, c.log)
	c.ac97.Sleep = c.sleep
	c.dac = cs43xx.New(c.i2c, c.volume, c.mute)

	ctx, cancel := context.WithCancel(context.Background())
	c.stopIRQ = cancel
	c.irqDone = make(chan struct{})
	c.workDone = make(chan struct{})
	go c.serveIRQ(ctx)
	go c.worker()

	c.mu.Lock()
	c.setState(BusEnabled)
	c.mu.Unlock()
	return nil
}

// configureRegisters sets the controller to a known state: DMA, formats,
// routing, S/PDIF and the AC'97 link.  All interrupts stay disabled.
func (c *Chip) configureRegisters() {
	r := c.regs

	if r.Read8(oxygen.Revision)&oxygen.Revision2 == 0 {
		r.SetBits8(oxygen.Misc, oxygen.MiscPCIMemW1Clock)
	}

	ctl := r.Read16(oxygen.AC97Control)
	c.hasAC97[0] = ctl&oxygen.AC97Codec0 != 0
	c.hasAC97[1] = ctl&oxygen.AC97Codec1 != 0
	anyCodec := c.hasAC97[0] || c.hasAC97[1]

	r.WriteMasked8(oxygen.Function,
		oxygen.FunctionResetCodec|oxygen.Function2Wire,
		oxygen.FunctionResetCodec|oxygen.Function2WireSPIMask|oxygen.FunctionEnableSPI4_5)

	c.lock.Lock()
	c.running = 0
	c.interruptMask = 0
	r.Write16(oxygen.DMAStatus, 0) // and DMA pause
	r.Write8(oxygen.PlayChannels, oxygen.PlayChannels2|oxygen.DMAABurst8|oxygen.DMAMultichBurst8)
	r.Write16(oxygen.InterruptMask, 0)
	c.lock.Unlock()

	r.WriteMasked8(oxygen.Misc, 0, oxygen.MiscWritePCISubID|oxygen.MiscRecCFromSPDIF|
		oxygen.MiscRecBFromAC97|oxygen.MiscRecAFromMultich|oxygen.MiscMIDI)
	r.Write8(oxygen.RecFormat, oxygen.Format16<<oxygen.RecFormatAShift|
		oxygen.Format16<<oxygen.RecFormatBShift|oxygen.Format16<<oxygen.RecFormatCShift)
	r.Write8(oxygen.PlayFormat, oxygen.Format16<<oxygen.SPDIFFormatShift|oxygen.Format16<<oxygen.MultichFormatShift)
	r.Write8(oxygen.RecChannels, oxygen.RecChannels2_2_2)

	r.Write16(oxygen.I2SMultichFormat, oxygen.Rate44100|c.model.I2SFormat|oxygen.I2SMCLK(c.model.MCLKs)|
		oxygen.I2SBits16|oxygen.I2SMaster|oxygen.I2SBCLK64)
	for _, reg := range []uint{oxygen.I2SAFormat, oxygen.I2SBFormat, oxygen.I2SCFormat} {
		r.Write16(reg, oxygen.I2SMaster|oxygen.I2SMuteMCLK)
	}

	r.ClearBits32(oxygen.SPDIFControl, oxygen.SPDIFOutEnable|oxygen.SPDIFLoopback)
	r.ClearBits32(oxygen.SPDIFControl, oxygen.SPDIFSenseMask|oxygen.SPDIFLockMask|oxygen.SPDIFRateMask)
	r.Write32(oxygen.SPDIFOutputBits, oxygen.SPDIFC|oxygen.SPDIFOriginal|
		oxygen.IEC958CategoryPCMCoder<<oxygen.SPDIFCategoryShift)

	r.Write16(oxygen.TwoWireBusStatus, oxygen.TwoWireLength8|oxygen.TwoWireInterruptMask|oxygen.TwoWireSpeedStandard)
	r.ClearBits8(oxygen.MPU401Control, oxygen.MPU401Loopback)
	r.Write8(oxygen.GPIInterruptMask, 0)
	r.Write16(oxygen.GPIOInterruptMask, 0)

	r.Write16(oxygen.PlayRouting, oxygen.PlayMultichI2SDAC|oxygen.PlaySPDIFSPDIF|
		0<<oxygen.PlayDAC0SourceShift|1<<oxygen.PlayDAC1SourceShift|
		2<<oxygen.PlayDAC2SourceShift|3<<oxygen.PlayDAC3SourceShift)
	r.Write8(oxygen.RecRouting, oxygen.RecARouteI2SADC1|oxygen.RecBRouteI2SADC2|oxygen.RecCRouteSPDIF)
	r.Write8(oxygen.ADCMonitor, 0)
	r.Write8(oxygen.AMonitorRouting, 0<<oxygen.AMonitorRoute0Shift|1<<oxygen.AMonitorRoute1Shift|
		2<<oxygen.AMonitorRoute2Shift|3<<oxygen.AMonitorRoute3Shift)

	if anyCodec {
		r.Write8(oxygen.AC97InterruptMask, oxygen.AC97IntReadDone|oxygen.AC97IntWriteDone)
		// takes effect when the mask is written at the end of Probe; until
		// then AC'97 transactions are polled
		c.lock.Lock()
		c.interruptMask |= oxygen.IntAC97
		c.lock.Unlock()
	} else {
		r.Write8(oxygen.AC97InterruptMask, 0)
	}
	r.Write32(oxygen.AC97OutConfig, 0)
	r.Write32(oxygen.AC97InConfig, 0)
	if !anyCodec {
		r.SetBits16(oxygen.AC97Control, oxygen.AC97ClockDisable)
	}
	if !c.hasAC97[0] {
		r.SetBits16(oxygen.AC97Control, oxygen.AC97NoCodec0)
	}

	c.setState(RegistersConfigured)
}

// configureCodecs resets the AC'97 codecs that are present and loads their defaults
func (c *Chip) configureCodecs() {
	if c.hasAC97[0] {
		c.initCM9780()
	}
	if c.hasAC97[1] {
		c.initCodec1()
	}
	c.setState(CodecsConfigured)
}

func (c *Chip) initCM9780() {
	a := c.ac97
	a.Write(0, oxygen.AC97Reset, 0)
	c.sleep(time.Millisecond)
	a.SetBits(0, oxygen.CM9780GPIOSetup, oxygen.CM9780GPIO0IO|oxygen.CM9780GPIO1IO)
	a.SetBits(0, oxygen.CM9780Mixer, oxygen.CM9780BSTSEL|oxygen.CM9780STROMIC|
		oxygen.CM9780MIX2FR|oxygen.CM9780PCBSW)
	a.SetBits(0, oxygen.CM9780Jack, oxygen.CM9780RSOE|oxygen.CM9780CBOE|oxygen.CM9780SSOE|
		oxygen.CM9780FROE|oxygen.CM9780MIC2MIC|oxygen.CM9780LI2LI)
	for _, w := range oxygen.CM9780Defaults {
		a.Write(0, w.Reg, w.Value)
	}
	a.ClearBits(0, oxygen.CM9780GPIOStatus, oxygen.CM9780GPO0)
	// the internal ADC and DAC paths are unused
	a.SetBits(0, oxygen.AC97Powerdown, oxygen.AC97PDPR0|oxygen.AC97PDPR1)
	a.SetBits(0, oxygen.AC97ExtendedStatus, oxygen.AC97EAPRI|oxygen.AC97EAPRJ|oxygen.AC97EAPRK)
}

func (c *Chip) initCodec1() {
	a := c.ac97
	c.regs.SetBits32(oxygen.AC97OutConfig, oxygen.AC97Codec1Slot3|oxygen.AC97Codec1Slot4)
	a.Write(1, oxygen.AC97Reset, 0)
	c.sleep(time.Millisecond)
	for _, w := range oxygen.Codec1Defaults {
		a.Write(1, w.Reg, w.Value)
	}
	a.SetBits(1, 0x6a, 0x0040)
}

// configureDACs arms the power sense, switches the 2-wire bus to fast mode,
// powers both DACs up and sets up the GPIO pins and the ADC
func (c *Chip) configureDACs() {
	r := c.regs

	r.SetBits8(oxygen.GPIInterruptMask, GPIExtPower)
	c.lock.Lock()
	c.interruptMask |= oxygen.IntGPIO
	c.lock.Unlock()
	c.hasPower = r.Read8(oxygen.GPIData)&GPIExtPower != 0
	if !c.hasPower {
		c.log.Printf("%s: no power cable connected, outputs will be silent", c.id)
	}

	r.Write16(oxygen.TwoWireBusStatus, oxygen.TwoWireLength8|oxygen.TwoWireInterruptMask|oxygen.TwoWireSpeedFast)
	c.dac.Init()

	c.lock.Lock()
	r.SetBits16(oxygen.GPIOControl, GPIOFrontPanel|GPIOMagic|GPIOInputRoute)
	r.ClearBits16(oxygen.GPIOData, GPIOFrontPanel|GPIOInputRoute)
	// CS5361, single speed
	r.SetBits16(oxygen.GPIOControl, GPIOCS53x1MMask)
	r.WriteMasked16(oxygen.GPIOData, GPIOCS53x1MSingle, GPIOCS53x1MMask)
	c.lock.Unlock()

	c.setState(DacsConfigured)
}

// enableOutput drives the output relay.  The pin is made an output first and
// only driven after the analog stage has settled.
func (c *Chip) enableOutput() {
	c.lock.Lock()
	c.regs.SetBits16(oxygen.GPIOControl, GPIOOutputEnable)
	c.lock.Unlock()

	c.sleep(c.model.AntiPopDelay)

	c.lock.Lock()
	c.regs.SetBits16(oxygen.GPIOData, GPIOOutputEnable)
	c.lock.Unlock()

	c.setState(Running)
	if !c.hasPower {
		c.setState(SuspendedNoPower)
	}
}

// disableOutput is the reverse of enableOutput, without the delay
func (c *Chip) disableOutput() {
	c.lock.Lock()
	c.regs.ClearBits16(oxygen.GPIOData, GPIOOutputEnable)
	c.lock.Unlock()
}
