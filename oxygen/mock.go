package oxygen

import (
	"context"
	"encoding/binary"
	"sync"
)

// I2CTransaction is one write latched by the 2-wire engine of a MockCard
type I2CTransaction struct {
	Device uint8
	Reg    uint8
	Data   uint8
}

// MockOptions describe the board a MockCard pretends to be
type MockOptions struct {
	// Codecs marks which of the two AC'97 codec slots are populated
	Codecs [2]bool

	// Revision is the value of the revision register
	Revision uint8

	// ExternalPower is the initial state of the power connector sense (GPI 0)
	ExternalPower bool
}

// DefaultMockOptions describe a Xonar DX: a CMI8788 rev 2 with the CM9780 on
// codec 0 and the power cable plugged in
func DefaultMockOptions() MockOptions {
	return MockOptions{
		Codecs:        [2]bool{true, false},
		Revision:      Revision2 | PackageID8788,
		ExternalPower: true,
	}
}

// MockCard is an in-memory CMI8788.  It implements Bus, acts on the side
// effects the driver depends on (AC'97 and 2-wire transactions, interrupt
// status and mask, DMA position) and delivers interrupts through Wait.
type MockCard struct {
	sync.Mutex
	mem  [IOSize]byte
	ac97 [2][AC97NumRegs]uint16
	i2c  map[uint8]*[16]uint8
	log  []I2CTransaction
	reqs []uint32
	irq  chan struct{}

	dmaBase uint32

	enabled, claimed, master bool

	// FailRequest and FailIRQ, if set, are returned by RequestRegions and OpenIRQ
	FailRequest error
	FailIRQ     error

	// Fault, if set, is reported by Err as a lost access
	Fault error

	// AC97ReadHook, if not nil, replaces the value a codec read returns
	AC97ReadHook func(codec, index uint, stored uint16) uint16

	// AC97Drop, if not nil, is asked for every AC'97 transaction; when it
	// returns true the transaction never completes
	AC97Drop func() bool
}

// NewMockCard returns a powered-up mock controller
func NewMockCard(opts MockOptions) *MockCard {
	m := &MockCard{
		i2c: make(map[uint8]*[16]uint8),
		irq: make(chan struct{}, 1),
	}
	var ctl uint16
	if opts.Codecs[0] {
		ctl |= AC97Codec0
	}
	if opts.Codecs[1] {
		ctl |= AC97Codec1
	}
	m.put16(AC97Control, ctl)
	m.mem[Revision] = opts.Revision
	if opts.ExternalPower {
		m.mem[GPIData] |= 0x01
	}
	return m
}

func (m *MockCard) put16(reg uint, v uint16) {
	binary.LittleEndian.PutUint16(m.mem[reg:reg+2], v)
}

func (m *MockCard) get16(reg uint) uint16 {
	return binary.LittleEndian.Uint16(m.mem[reg : reg+2])
}

// Read8 implements Bus.  Reading the AC'97 interrupt status clears it.
func (m *MockCard) Read8(reg uint) uint8 {
	m.Lock()
	defer m.Unlock()
	v := m.mem[reg]
	if reg == AC97InterruptStatus {
		m.mem[reg] = 0
	}
	return v
}

// Read16 implements Bus
func (m *MockCard) Read16(reg uint) uint16 {
	m.Lock()
	defer m.Unlock()
	return m.get16(reg)
}

// Read32 implements Bus
func (m *MockCard) Read32(reg uint) uint32 {
	m.Lock()
	defer m.Unlock()
	return binary.LittleEndian.Uint32(m.mem[reg : reg+4])
}

// Write8 implements Bus
func (m *MockCard) Write8(reg uint, value uint8) {
	m.Lock()
	defer m.Unlock()
	m.mem[reg] = value
	if reg == TwoWireControl && value&TwoWireDirMask == TwoWireDirWrite {
		m.latchI2C(value & TwoWireAddressMask)
	}
}

// Write16 implements Bus
func (m *MockCard) Write16(reg uint, value uint16) {
	m.Lock()
	defer m.Unlock()
	m.put16(reg, value)
	if reg == InterruptMask {
		// masking a source acknowledges it
		m.put16(InterruptStatus, m.get16(InterruptStatus)&value)
	}
}

// Write32 implements Bus
func (m *MockCard) Write32(reg uint, value uint32) {
	m.Lock()
	defer m.Unlock()
	binary.LittleEndian.PutUint32(m.mem[reg:reg+4], value)
	switch reg {
	case AC97Regs:
		m.ac97Transaction(value)
	case DMAMultichAddress:
		m.dmaBase = value
	}
}

func (m *MockCard) latchI2C(dev uint8) {
	t := I2CTransaction{Device: dev, Reg: m.mem[TwoWireMap], Data: m.mem[TwoWireData]}
	m.log = append(m.log, t)
	regs, ok := m.i2c[dev]
	if !ok {
		regs = new([16]uint8)
		m.i2c[dev] = regs
	}
	regs[t.Reg&0x0f] = t.Data
}

func (m *MockCard) ac97Transaction(word uint32) {
	m.reqs = append(m.reqs, word)
	if m.AC97Drop != nil && m.AC97Drop() {
		return
	}
	codec := (word & AC97RegCodecMask) >> AC97RegCodecShift
	index := uint((word & AC97RegAddrMask) >> AC97RegAddrShift)
	var done uint8
	if word&AC97RegDirMask == AC97RegDirRead {
		v := m.ac97[codec][index/2]
		if m.AC97ReadHook != nil {
			v = m.AC97ReadHook(uint(codec), index, v)
		}
		m.put16(AC97Regs, v)
		done = AC97IntReadDone
	} else {
		if index == AC97Reset {
			m.ac97[codec] = [AC97NumRegs]uint16{}
		} else {
			m.ac97[codec][index/2] = uint16(word)
		}
		done = AC97IntWriteDone
	}
	m.mem[AC97InterruptStatus] |= done
	if m.mem[AC97InterruptMask]&done != 0 {
		m.raise(IntAC97)
	}
}

// raise latches an interrupt source if it is enabled and signals the line
func (m *MockCard) raise(bits uint16) {
	bits &= m.get16(InterruptMask)
	if bits == 0 {
		return
	}
	m.put16(InterruptStatus, m.get16(InterruptStatus)|bits)
	select {
	case m.irq <- struct{}{}:
	default:
	}
}

// Wait blocks until the mock raises its interrupt line or ctx is done
func (m *MockCard) Wait(ctx context.Context) error {
	select {
	case <-m.irq:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements IRQSource; the mock has nothing to release
func (m *MockCard) Close() error {
	return nil
}

// Err implements FaultReporter
func (m *MockCard) Err() error {
	m.Lock()
	defer m.Unlock()
	return m.Fault
}

// Poke changes a byte of the hardware without going through the driver
func (m *MockCard) Poke(reg uint, value uint8) {
	m.Lock()
	defer m.Unlock()
	m.mem[reg] = value
}

// Peek returns a byte of the hardware without side effects
func (m *MockCard) Peek(reg uint) uint8 {
	m.Lock()
	defer m.Unlock()
	return m.mem[reg]
}

// Peek16 returns a 16-bit word of the hardware without side effects
func (m *MockCard) Peek16(reg uint) uint16 {
	m.Lock()
	defer m.Unlock()
	return m.get16(reg)
}

// SetExternalPower plugs or unplugs the power cable, raising a GPIO
// interrupt when the GPI interrupt for it is enabled
func (m *MockCard) SetExternalPower(on bool) {
	m.Lock()
	defer m.Unlock()
	was := m.mem[GPIData]&0x01 != 0
	if on {
		m.mem[GPIData] |= 0x01
	} else {
		m.mem[GPIData] &^= 0x01
	}
	if was != on && m.mem[GPIInterruptMask]&0x01 != 0 {
		m.raise(IntGPIO)
	}
}

// PeriodElapsed signals the end of a DMA period on every running channel of
// channels
func (m *MockCard) PeriodElapsed(channels uint8) {
	m.Lock()
	defer m.Unlock()
	m.raise(uint16(channels & m.mem[DMAStatus]))
}

// SetDMAPosition moves the multichannel DMA pointer to offset bytes past the
// buffer base
func (m *MockCard) SetDMAPosition(offset uint32) {
	m.Lock()
	defer m.Unlock()
	binary.LittleEndian.PutUint32(m.mem[DMAMultichAddress:DMAMultichAddress+4], m.dmaBase+offset)
}

// I2CLog returns a copy of every 2-wire write latched so far
func (m *MockCard) I2CLog() []I2CTransaction {
	m.Lock()
	defer m.Unlock()
	out := make([]I2CTransaction, len(m.log))
	copy(out, m.log)
	return out
}

// ResetI2CLog forgets the latched 2-wire writes
func (m *MockCard) ResetI2CLog() {
	m.Lock()
	defer m.Unlock()
	m.log = nil
}

// I2CRegister returns the last byte written to reg of the 2-wire device dev
func (m *MockCard) I2CRegister(dev, reg uint8) uint8 {
	m.Lock()
	defer m.Unlock()
	regs, ok := m.i2c[dev]
	if !ok {
		return 0
	}
	return regs[reg&0x0f]
}

// AC97Requests returns every word written to the AC'97 transaction register
func (m *MockCard) AC97Requests() []uint32 {
	m.Lock()
	defer m.Unlock()
	out := make([]uint32, len(m.reqs))
	copy(out, m.reqs)
	return out
}

// AC97Register returns a codec register as the codec holds it
func (m *MockCard) AC97Register(codec, index uint) uint16 {
	m.Lock()
	defer m.Unlock()
	return m.ac97[codec&1][(index/2)%AC97NumRegs]
}

// SetAC97Register changes a codec register behind the driver's back
func (m *MockCard) SetAC97Register(codec, index uint, value uint16) {
	m.Lock()
	defer m.Unlock()
	m.ac97[codec&1][(index/2)%AC97NumRegs] = value
}
