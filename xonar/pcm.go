package xonar

import (
	"fmt"
	"sync/atomic"

	"github.com/TPiechocki/OS-xonar-driver/cs43xx"
	"github.com/TPiechocki/OS-xonar-driver/oxygen"
)

// TriggerCmd is a DMA state change requested by the PCM layer
type TriggerCmd int

const (
	TriggerStop TriggerCmd = iota
	TriggerStart
	TriggerPausePush
	TriggerPauseRelease
	TriggerSuspend
)

func (t TriggerCmd) String() string {
	switch t {
	case TriggerStop:
		return "stop"
	case TriggerStart:
		return "start"
	case TriggerPausePush:
		return "pause push"
	case TriggerPauseRelease:
		return "pause release"
	case TriggerSuspend:
		return "suspend"
	}
	return fmt.Sprintf("TriggerCmd(%d)", int(t))
}

// StreamKind selects where a playback stream's samples go
type StreamKind int

const (
	// Multichannel plays through the I2S DACs, 2 to 8 channels
	Multichannel StreamKind = iota

	// AC97Passthrough routes the multichannel DMA to the AC'97 link, stereo at 48kHz
	AC97Passthrough
)

func (k StreamKind) String() string {
	switch k {
	case Multichannel:
		return "multichannel"
	case AC97Passthrough:
		return "AC'97 passthrough"
	}
	return fmt.Sprintf("StreamKind(%d)", int(k))
}

// BytesPerSample is the width of the only supported sample format, S16_LE
const BytesPerSample = 2

// maxDMACount is the largest dword count of the multichannel DMA counters
const maxDMACount = 1 << 24

// HWParams describe the buffer of a stream
type HWParams struct {
	Rate     int
	Channels int

	// DMAAddr is the bus address of the buffer
	DMAAddr uint32

	// BufferBytes and PeriodBytes are multiples of 4; a period interrupt
	// is raised every PeriodBytes
	BufferBytes int
	PeriodBytes int
}

// FrameBytes is the size of one frame
func (p HWParams) FrameBytes() int {
	return p.Channels * BytesPerSample
}

func (p HWParams) check() error {
	switch {
	case p.BufferBytes <= 0 || p.BufferBytes%4 != 0 || p.BufferBytes/4 > maxDMACount:
		return fmt.Errorf("%w: buffer of %d bytes", ErrInvalidArgument, p.BufferBytes)
	case p.PeriodBytes <= 0 || p.PeriodBytes%4 != 0 || p.PeriodBytes > p.BufferBytes:
		return fmt.Errorf("%w: period of %d bytes", ErrInvalidArgument, p.PeriodBytes)
	}
	return nil
}

// Stream is a playback stream as the PCM layer drives it
type Stream interface {
	Kind() StreamKind

	// Channel is the DMA channel bit of the stream
	Channel() uint8

	Open() error
	Close() error
	HWParams(p HWParams) error
	HWFree() error

	// Prepare flushes the DMA engine.  With noPeriodWakeup the period
	// interrupt stays disabled and the PCM layer polls Pointer instead.
	Prepare(noPeriodWakeup bool) error

	Trigger(cmd TriggerCmd) error

	// Pointer is the DMA position in frames from the start of the buffer
	Pointer() (int, error)

	// Periods is the number of period interrupts delivered so far
	Periods() uint64
}

// NewStream returns a playback stream of the given kind.  periodElapsed, if
// not nil, is called from the interrupt handler, outside of any lock, at the
// end of every period.
func (c *Chip) NewStream(kind StreamKind, periodElapsed func()) (Stream, error) {
	switch kind {
	case Multichannel:
		s := &multichStream{}
		s.init(c, periodElapsed)
		return s, nil
	case AC97Passthrough:
		if has := c.HasAC97(); !has[0] && !has[1] {
			return nil, fmt.Errorf("%w: no AC'97 codec for %s", ErrInvalidArgument, kind)
		}
		s := &ac97Stream{}
		s.init(c, periodElapsed)
		return s, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrInvalidArgument, kind)
}

// stream is what both kinds of streams share; everything but the routing
// done in HWParams
type stream struct {
	chip   *Chip
	bit    uint8
	notify func()

	// under the control mutex
	open       bool
	configured bool
	params     HWParams

	periods atomic.Uint64
}

func (s *stream) init(c *Chip, notify func()) {
	s.chip = c
	s.bit = oxygen.ChannelMultich
	s.notify = notify
}

func (s *stream) Channel() uint8 { return s.bit }

func (s *stream) Periods() uint64 { return s.periods.Load() }

func (s *stream) periodElapsed() {
	s.periods.Add(1)
	if s.notify != nil {
		s.notify()
	}
}

// Open claims the DMA channel
func (s *stream) Open() error {
	c := s.chip
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOperational(); err != nil {
		return err
	}
	if c.active&s.bit != 0 {
		return ErrBusy
	}
	c.active |= s.bit
	s.open = true
	c.lock.Lock()
	c.streams[s.bit] = s
	c.lock.Unlock()
	return nil
}

// Close releases the DMA channel, stopping it first if it still runs
func (s *stream) Close() error {
	c := s.chip
	c.mu.Lock()
	defer c.mu.Unlock()
	if !s.open {
		return fmt.Errorf("%w: stream not open", ErrBadState)
	}
	c.active &^= s.bit
	s.open = false
	s.configured = false
	c.lock.Lock()
	if !c.freed && c.running&s.bit != 0 {
		c.running &^= s.bit
		c.regs.Write8(oxygen.DMAStatus, c.running)
	}
	delete(c.streams, s.bit)
	c.lock.Unlock()
	return nil
}

// checkOpen is called with the control mutex held
func (s *stream) checkOpen() error {
	if err := s.chip.checkOperational(); err != nil {
		return err
	}
	if !s.open {
		return fmt.Errorf("%w: stream not open", ErrBadState)
	}
	return nil
}

// programDMA points the multichannel DMA engine at the buffer; the caller holds mu
func (s *stream) programDMA(p HWParams) {
	r := s.chip.regs
	r.Write32(oxygen.DMAMultichAddress, p.DMAAddr)
	r.Write32(oxygen.DMAMultichCount, uint32(p.BufferBytes/4-1))
	r.Write32(oxygen.DMAMultichTCount, uint32(p.PeriodBytes/4-1))
	s.params = p
	s.configured = true
}

// HWFree disables the period interrupt and flushes the channel
func (s *stream) HWFree() error {
	c := s.chip
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	c.lock.Lock()
	c.interruptMask &^= uint16(s.bit)
	c.regs.Write16(oxygen.InterruptMask, c.interruptMask)
	c.regs.SetBits8(oxygen.DMAFlush, s.bit)
	c.regs.ClearBits8(oxygen.DMAFlush, s.bit)
	c.lock.Unlock()
	s.configured = false
	return nil
}

func (s *stream) Prepare(noPeriodWakeup bool) error {
	c := s.chip
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	if !s.configured {
		return fmt.Errorf("%w: no hardware parameters", ErrBadState)
	}
	c.lock.Lock()
	c.regs.SetBits8(oxygen.DMAFlush, s.bit)
	c.regs.ClearBits8(oxygen.DMAFlush, s.bit)
	if noPeriodWakeup {
		c.interruptMask &^= uint16(s.bit)
	} else {
		c.interruptMask |= uint16(s.bit)
	}
	c.regs.Write16(oxygen.InterruptMask, c.interruptMask)
	c.lock.Unlock()
	return nil
}

// Trigger applies cmd to the stream's channel.  Stopping only needs the
// stream to be open; the other commands need hardware parameters.
func (s *stream) Trigger(cmd TriggerCmd) error {
	c := s.chip
	c.mu.Lock()
	defer c.mu.Unlock()
	if !s.open {
		return fmt.Errorf("%w: stream not open", ErrBadState)
	}
	if cmd == TriggerStop || cmd == TriggerSuspend {
		return c.TriggerMask(cmd, s.bit)
	}
	if err := c.checkOperational(); err != nil {
		return err
	}
	if !s.configured {
		return fmt.Errorf("%w: no hardware parameters", ErrBadState)
	}
	return c.TriggerMask(cmd, s.bit)
}

func (s *stream) Pointer() (int, error) {
	c := s.chip
	c.mu.Lock()
	p, ok := s.params, s.configured
	c.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("%w: no hardware parameters", ErrBadState)
	}
	cur := c.regs.Read32(oxygen.DMAMultichAddress)
	return int(cur-p.DMAAddr) / p.FrameBytes(), nil
}

// Trigger applies cmd to several streams at once, as the PCM layer does for
// linked streams
func (c *Chip) Trigger(cmd TriggerCmd, streams ...Stream) error {
	var mask uint8
	for _, s := range streams {
		mask |= s.Channel()
	}
	return c.TriggerMask(cmd, mask)
}

// TriggerMask applies cmd to the DMA channels in mask.  The running mask is
// written to the DMA status register as a whole on every change, so the
// interrupt handler never sees a channel as running that the hardware has
// not started.
func (c *Chip) TriggerMask(cmd TriggerCmd, mask uint8) error {
	if mask&^channelBits != 0 {
		return fmt.Errorf("%w: channel mask %#02x", ErrInvalidArgument, mask)
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.freed {
		return fmt.Errorf("%w: %s", ErrBadState, Freed)
	}
	switch cmd {
	case TriggerStart:
		c.running |= mask
		c.regs.Write8(oxygen.DMAStatus, c.running)
	case TriggerStop, TriggerSuspend:
		c.running &^= mask
		c.regs.Write8(oxygen.DMAStatus, c.running)
	case TriggerPausePush:
		c.regs.SetBits8(oxygen.DMAPause, mask)
	case TriggerPauseRelease:
		c.regs.ClearBits8(oxygen.DMAPause, mask)
	default:
		return fmt.Errorf("%w: trigger %s", ErrInvalidArgument, cmd)
	}
	return nil
}

// multichStream plays through the I2S DACs
type multichStream struct {
	stream
}

func (s *multichStream) Kind() StreamKind { return Multichannel }

func playChannels(n int) (uint8, bool) {
	switch n {
	case 2:
		return oxygen.PlayChannels2, true
	case 4:
		return oxygen.PlayChannels4, true
	case 6:
		return oxygen.PlayChannels6, true
	case 8:
		return oxygen.PlayChannels8, true
	}
	return 0, false
}

// mclk picks the MCLK/LRCK ratio of the model for rate
func (m Model) mclk(rate int) uint16 {
	switch cs43xx.FamilyOf(rate) {
	case cs43xx.SingleSpeed:
		return oxygen.I2SMCLK(m.MCLKs)
	case cs43xx.DoubleSpeed:
		return oxygen.I2SMCLK(m.MCLKs >> 2)
	}
	return oxygen.I2SMCLK(m.MCLKs >> 4)
}

// HWParams programs the DMA engine, the I2S bus and the DAC speed mode
func (s *multichStream) HWParams(p HWParams) error {
	rate, ok := oxygen.RateBits(p.Rate)
	if !ok {
		return fmt.Errorf("%w: rate %d Hz", ErrInvalidArgument, p.Rate)
	}
	chans, ok := playChannels(p.Channels)
	if !ok {
		return fmt.Errorf("%w: %d channels", ErrInvalidArgument, p.Channels)
	}
	if err := p.check(); err != nil {
		return err
	}

	c := s.chip
	r := c.regs
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.programDMA(p)

	c.lock.Lock()
	r.WriteMasked8(oxygen.PlayChannels, chans, oxygen.PlayChannelsMask)
	r.WriteMasked8(oxygen.PlayFormat, oxygen.Format16<<oxygen.MultichFormatShift, oxygen.MultichFormatMask)
	r.WriteMasked16(oxygen.I2SMultichFormat,
		rate|c.model.I2SFormat|c.model.mclk(p.Rate)|oxygen.I2SBits16,
		oxygen.I2SRateMask|oxygen.I2SFormatMask|oxygen.I2SMCLKMask|oxygen.I2SBitsMask)
	r.ClearBits32(oxygen.SPDIFControl, oxygen.SPDIFOutEnable)
	c.lock.Unlock()

	c.dac.SetSampleRateFamily(p.Rate)

	c.lock.Lock()
	r.WriteMasked16(oxygen.PlayRouting,
		oxygen.PlayMultichI2SDAC|0<<oxygen.PlayDAC0SourceShift|1<<oxygen.PlayDAC1SourceShift|
			2<<oxygen.PlayDAC2SourceShift|3<<oxygen.PlayDAC3SourceShift,
		oxygen.PlayMultichMask|oxygen.PlayDAC0SourceMask|oxygen.PlayDAC1SourceMask|
			oxygen.PlayDAC2SourceMask|oxygen.PlayDAC3SourceMask)
	c.lock.Unlock()
	return nil
}

// ac97Stream sends the multichannel DMA to the AC'97 codec instead of the DACs
type ac97Stream struct {
	stream
}

func (s *ac97Stream) Kind() StreamKind { return AC97Passthrough }

// AC97Rate is the fixed frame rate of the AC'97 link
const AC97Rate = 48000

// HWParams programs the DMA engine for a stereo stream and routes it to AC'97
func (s *ac97Stream) HWParams(p HWParams) error {
	if p.Rate != AC97Rate {
		return fmt.Errorf("%w: rate %d Hz, AC'97 runs at %d Hz", ErrInvalidArgument, p.Rate, AC97Rate)
	}
	if p.Channels != 2 {
		return fmt.Errorf("%w: %d channels, AC'97 is stereo", ErrInvalidArgument, p.Channels)
	}
	if err := p.check(); err != nil {
		return err
	}

	c := s.chip
	r := c.regs
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.programDMA(p)

	c.lock.Lock()
	r.WriteMasked8(oxygen.PlayChannels, oxygen.PlayChannels2, oxygen.PlayChannelsMask)
	r.WriteMasked8(oxygen.PlayFormat, oxygen.Format16<<oxygen.MultichFormatShift, oxygen.MultichFormatMask)
	r.WriteMasked16(oxygen.PlayRouting, oxygen.PlayMultichAC97, oxygen.PlayMultichMask)
	c.lock.Unlock()
	return nil
}
