package oxygen_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TPiechocki/OS-xonar-driver/oxygen"
)

func newRegs() (*oxygen.MockCard, *oxygen.Regs) {
	m := oxygen.NewMockCard(oxygen.DefaultMockOptions())
	return m, oxygen.NewRegs(m)
}

func TestWriteUpdatesShadowLittleEndian(t *testing.T) {
	m, r := newRegs()
	r.Write32(oxygen.SPDIFOutputBits, 0x11223344)
	assert.Equal(t, uint32(0x11223344), r.Shadow32(oxygen.SPDIFOutputBits))
	assert.Equal(t, uint8(0x44), r.Shadow8(oxygen.SPDIFOutputBits))
	assert.Equal(t, uint8(0x11), r.Shadow8(oxygen.SPDIFOutputBits+3))
	assert.Equal(t, uint16(0x3344), r.Shadow16(oxygen.SPDIFOutputBits))
	assert.Equal(t, uint8(0x33), m.Peek(oxygen.SPDIFOutputBits+1))
}

func TestWriteMaskedReadsHardware(t *testing.T) {
	m, r := newRegs()
	r.Write16(oxygen.GPIOData, 0x00f0)
	m.Poke(oxygen.GPIOData, 0x0f) // hardware changed the low byte
	r.WriteMasked16(oxygen.GPIOData, 0x0100, 0x0101)
	assert.Equal(t, uint16(0x010e), r.Read16(oxygen.GPIOData))
	assert.Equal(t, uint16(0x010e), r.Shadow16(oxygen.GPIOData))
}

func TestSetClearBits(t *testing.T) {
	_, r := newRegs()
	r.Write8(oxygen.Function, 0x00)
	r.SetBits8(oxygen.Function, oxygen.FunctionResetCodec|oxygen.Function2Wire)
	assert.Equal(t, uint8(0x42), r.Read8(oxygen.Function))
	r.ClearBits8(oxygen.Function, oxygen.FunctionResetCodec)
	assert.Equal(t, uint8(0x40), r.Read8(oxygen.Function))
	assert.Equal(t, uint8(0x40), r.Shadow8(oxygen.Function))

	r.Write32(oxygen.SPDIFControl, 0xffffffff)
	r.ClearBits32(oxygen.SPDIFControl, oxygen.SPDIFOutEnable|oxygen.SPDIFLoopback)
	assert.Equal(t, uint32(0xfffffff9), r.Shadow32(oxygen.SPDIFControl))
}

// the shadow of every address equals the last value the driver wrote there,
// whatever the hardware does elsewhere in the window
func TestShadowConsistencyRandomized(t *testing.T) {
	m, r := newRegs()
	rng := rand.New(rand.NewSource(1))
	var want [oxygen.IOSize]byte
	// stay clear of registers with side effects in the mock
	usable := func(reg uint, width uint) bool {
		for a := reg; a < reg+width; a++ {
			switch {
			case a >= oxygen.InterruptMask && a < oxygen.InterruptStatus+2,
				a >= oxygen.TwoWireControl && a <= oxygen.TwoWireControl,
				a >= oxygen.AC97Regs && a < oxygen.AC97Regs+4,
				a == oxygen.AC97InterruptStatus:
				return false
			}
		}
		return true
	}
	for i := 0; i < 2000; i++ {
		width := uint(1) << uint(rng.Intn(3))
		reg := uint(rng.Intn(oxygen.IOSize/int(width))) * width
		if !usable(reg, width) {
			continue
		}
		switch rng.Intn(5) {
		case 0:
			// hardware-only mutation somewhere
			m.Poke(uint(rng.Intn(oxygen.IOSize)), uint8(rng.Intn(256)))
			continue
		case 1, 2:
			v := rng.Uint32()
			switch width {
			case 1:
				r.Write8(reg, uint8(v))
			case 2:
				r.Write16(reg, uint16(v))
			case 4:
				r.Write32(reg, v)
			}
		default:
			v, mask := rng.Uint32(), rng.Uint32()
			switch width {
			case 1:
				r.WriteMasked8(reg, uint8(v), uint8(mask))
			case 2:
				r.WriteMasked16(reg, uint16(v), uint16(mask))
			case 4:
				r.WriteMasked32(reg, v, mask)
			}
		}
		for a := reg; a < reg+width; a++ {
			want[a] = m.Peek(a)
		}
		snap := r.Snapshot()
		require.Equal(t, want[reg:reg+width], snap[reg:reg+width], "iteration %d reg %#x", i, reg)
	}
	snap := r.Snapshot()
	for a := uint(0); a < oxygen.IOSize; a++ {
		if want[a] != 0 {
			assert.Equal(t, want[a], snap[a], "address %#x", a)
		}
	}
}
