/*Package oxygen drives the C-Media CMI8788 ("Oxygen") PCI audio controller.

The controller is programmed through a 256 byte I/O window.  Everything in
this package rides on a Bus, the raw byte/word/dword accessor to that window;
Regs layers the driver's shadow copy on top of it, I2C and AC97 implement the
two serial protocols the controller speaks to its codecs.

Bus implementations are provided by package comm (sysfs PCI resource) and by
MockCard, an in-memory model of the controller used for tests and dry runs.
*/
package oxygen

import (
	"encoding/binary"
	"sync"

	"github.com/TPiechocki/OS-xonar-driver/util"
)

// Bus is raw access to the I/O window of the controller.  Accesses are assumed
// to always succeed; there is no transaction level failure on the PCI I/O bus.
type Bus interface {
	Read8(reg uint) uint8
	Read16(reg uint) uint16
	Read32(reg uint) uint32

	Write8(reg uint, value uint8)
	Write16(reg uint, value uint16)
	Write32(reg uint, value uint32)
}

// FaultReporter is implemented by buses that can lose accesses, such as a
// port file of a device that went away.  Err returns the first failure.
type FaultReporter interface {
	Err() error
}

// Regs is the register bus of the driver.  Every write goes to the hardware
// and to a shadow copy of the window; reads always go to the hardware.
//
// The shadow holds the last value this driver wrote to each address, which is
// not necessarily what the hardware holds for read-only or volatile registers.
//
// Masked writes are read-modify-write sequences and are not atomic; callers
// that need several of them to be seen as a unit hold the chip lock.
type Regs struct {
	bus Bus

	mu     sync.Mutex // guards shadow only
	shadow [IOSize]byte
}

// NewRegs returns a Regs over bus with a zeroed shadow
func NewRegs(bus Bus) *Regs {
	return &Regs{bus: bus}
}

// Bus returns the underlying bus
func (r *Regs) Bus() Bus {
	return r.bus
}

// Read8 reads a byte from the hardware
func (r *Regs) Read8(reg uint) uint8 {
	return r.bus.Read8(reg)
}

// Read16 reads a 16-bit word from the hardware
func (r *Regs) Read16(reg uint) uint16 {
	return r.bus.Read16(reg)
}

// Read32 reads a 32-bit dword from the hardware
func (r *Regs) Read32(reg uint) uint32 {
	return r.bus.Read32(reg)
}

// Write8 writes a byte and records it in the shadow
func (r *Regs) Write8(reg uint, value uint8) {
	r.bus.Write8(reg, value)
	r.mu.Lock()
	r.shadow[reg] = value
	r.mu.Unlock()
}

// Write16 writes a 16-bit word and records it in the shadow
func (r *Regs) Write16(reg uint, value uint16) {
	r.bus.Write16(reg, value)
	r.mu.Lock()
	binary.LittleEndian.PutUint16(r.shadow[reg:reg+2], value)
	r.mu.Unlock()
}

// Write32 writes a 32-bit dword and records it in the shadow
func (r *Regs) Write32(reg uint, value uint32) {
	r.bus.Write32(reg, value)
	r.mu.Lock()
	binary.LittleEndian.PutUint32(r.shadow[reg:reg+4], value)
	r.mu.Unlock()
}

// WriteMasked8 replaces the bits of mask in reg with those of value
func (r *Regs) WriteMasked8(reg uint, value, mask uint8) {
	cur := r.bus.Read8(reg)
	r.Write8(reg, util.Masked(cur, value, mask))
}

// WriteMasked16 replaces the bits of mask in reg with those of value
func (r *Regs) WriteMasked16(reg uint, value, mask uint16) {
	cur := r.bus.Read16(reg)
	r.Write16(reg, util.Masked(cur, value, mask))
}

// WriteMasked32 replaces the bits of mask in reg with those of value
func (r *Regs) WriteMasked32(reg uint, value, mask uint32) {
	cur := r.bus.Read32(reg)
	r.Write32(reg, util.Masked(cur, value, mask))
}

// SetBits8 sets bits in an 8-bit register
func (r *Regs) SetBits8(reg uint, bits uint8) { r.WriteMasked8(reg, bits, bits) }

// SetBits16 sets bits in a 16-bit register
func (r *Regs) SetBits16(reg uint, bits uint16) { r.WriteMasked16(reg, bits, bits) }

// SetBits32 sets bits in a 32-bit register
func (r *Regs) SetBits32(reg uint, bits uint32) { r.WriteMasked32(reg, bits, bits) }

// ClearBits8 clears bits in an 8-bit register
func (r *Regs) ClearBits8(reg uint, bits uint8) { r.WriteMasked8(reg, 0, bits) }

// ClearBits16 clears bits in a 16-bit register
func (r *Regs) ClearBits16(reg uint, bits uint16) { r.WriteMasked16(reg, 0, bits) }

// ClearBits32 clears bits in a 32-bit register
func (r *Regs) ClearBits32(reg uint, bits uint32) { r.WriteMasked32(reg, 0, bits) }

// Shadow8 returns the last byte written to reg
func (r *Regs) Shadow8(reg uint) uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shadow[reg]
}

// Shadow16 returns the last 16-bit value written at reg
func (r *Regs) Shadow16(reg uint) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return binary.LittleEndian.Uint16(r.shadow[reg : reg+2])
}

// Shadow32 returns the last 32-bit value written at reg
func (r *Regs) Shadow32(reg uint) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return binary.LittleEndian.Uint32(r.shadow[reg : reg+4])
}

// Snapshot copies the whole shadow
func (r *Regs) Snapshot() [IOSize]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shadow
}
