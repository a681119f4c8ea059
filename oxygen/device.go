package oxygen

import (
	"context"
	"fmt"
)

// Device is the PCI function of a card as the host exposes it.  The methods
// follow the bring-up order; each acquisition has a matching release.
type Device interface {
	// Enable wakes the function up
	Enable() error

	// RequestRegions claims the I/O window exclusively and returns access to it.
	// It fails if BAR 0 is not an I/O resource of at least IOSize bytes.
	RequestRegions() (Bus, error)

	// SetMaster allows the function to initiate DMA
	SetMaster() error

	// OpenIRQ returns the source of the function's (shared) interrupt
	OpenIRQ() (IRQSource, error)

	ReleaseRegions() error
	Disable() error

	// String names the device, e.g. its PCI address
	String() string
}

// IRQSource delivers interrupts of a (possibly shared) line
type IRQSource interface {
	// Wait blocks until the line fires or ctx is done
	Wait(ctx context.Context) error

	Close() error
}

// the device side of MockCard

// Enable implements Device
func (m *MockCard) Enable() error {
	m.Lock()
	defer m.Unlock()
	m.enabled = true
	return nil
}

// RequestRegions implements Device; FailRequest makes it fail
func (m *MockCard) RequestRegions() (Bus, error) {
	m.Lock()
	defer m.Unlock()
	if m.FailRequest != nil {
		return nil, m.FailRequest
	}
	m.claimed = true
	return m, nil
}

// SetMaster implements Device
func (m *MockCard) SetMaster() error {
	m.Lock()
	defer m.Unlock()
	m.master = true
	return nil
}

// OpenIRQ implements Device; FailIRQ makes it fail
func (m *MockCard) OpenIRQ() (IRQSource, error) {
	m.Lock()
	defer m.Unlock()
	if m.FailIRQ != nil {
		return nil, m.FailIRQ
	}
	return m, nil
}

// ReleaseRegions implements Device
func (m *MockCard) ReleaseRegions() error {
	m.Lock()
	defer m.Unlock()
	m.claimed = false
	return nil
}

// Disable implements Device
func (m *MockCard) Disable() error {
	m.Lock()
	defer m.Unlock()
	m.enabled = false
	m.master = false
	return nil
}

func (m *MockCard) String() string {
	return fmt.Sprintf("mock CMI878x rev %#02x", m.Peek(Revision))
}

// Held reports whether the device is enabled and its regions claimed
func (m *MockCard) Held() (enabled, claimed, master bool) {
	m.Lock()
	defer m.Unlock()
	return m.enabled, m.claimed, m.master
}
