/*Package xonar drives an Asus Xonar DX sound card: a CMI8788 controller, a
CS4398 front DAC, a CS4362A multichannel DAC, a CS5361 ADC and a CM9780
AC'97 codec.

A Chip is created by Probe, which walks the card from cold to running:

	Cold -> BusEnabled -> RegistersConfigured -> CodecsConfigured ->
	DacsConfigured -> Running -> ShuttingDown -> Freed

Running tolerates any number of volume, mute and sample rate updates.  When
the auxiliary power cable is pulled the chip drops to SuspendedNoPower and
returns to Running once power is back.

Two locks guard a Chip.  The register lock is held only for short
read-modify-write sequences and covers the interrupt mask, the DMA status
and pause registers, GPIO data and the running mask; the interrupt handler
takes it.  The control mutex covers everything that may sleep: DAC and AC'97
traffic, the volume and mute state and lifecycle transitions.  When both are
needed the control mutex is taken first.
*/
package xonar

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/TPiechocki/OS-xonar-driver/cs43xx"
	"github.com/TPiechocki/OS-xonar-driver/oxygen"
)

var (
	// ErrInvalidArgument is returned for malformed requests; nothing is changed
	ErrInvalidArgument = errors.New("xonar: invalid argument")

	// ErrBadState is returned when the chip is not in a state that allows the operation
	ErrBadState = errors.New("xonar: operation not allowed in this state")

	// ErrBusy is returned when opening a stream that is already open
	ErrBusy = errors.New("xonar: stream busy")
)

// State is a step of the chip's lifecycle
type State int

const (
	Cold State = iota
	BusEnabled
	RegistersConfigured
	CodecsConfigured
	DacsConfigured
	Running
	SuspendedNoPower
	ShuttingDown
	Freed
)

func (s State) String() string {
	switch s {
	case Cold:
		return "cold"
	case BusEnabled:
		return "bus enabled"
	case RegistersConfigured:
		return "registers configured"
	case CodecsConfigured:
		return "codecs configured"
	case DacsConfigured:
		return "DACs configured"
	case Running:
		return "running"
	case SuspendedNoPower:
		return "suspended (no power)"
	case ShuttingDown:
		return "shutting down"
	case Freed:
		return "freed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// operational is true in states where controls and streams may be used
func (s State) operational() bool {
	return s == Running || s == SuspendedNoPower
}

// Config is the per-card configuration handed to Probe
type Config struct {
	Model Model

	// Index and ID name the card, as the index and id module parameters did
	Index int
	ID    string

	// Logger defaults to log.Default()
	Logger *log.Logger

	// Sleep is used for every hardware delay; tests replace it.  Defaults to time.Sleep.
	Sleep func(time.Duration)

	// Metrics, if not nil, receives the card's counters
	Metrics *Metrics
}

// Chip is one card.  All of its methods are safe for concurrent use.
type Chip struct {
	model Model
	index int
	id    string
	name  string
	log   *log.Logger
	sleep func(time.Duration)

	dev   oxygen.Device
	irq   oxygen.IRQSource
	regs  *oxygen.Regs
	fault oxygen.FaultReporter
	i2c   *oxygen.I2C
	ac97  *oxygen.AC97
	dac   *cs43xx.DAC

	metrics *Metrics

	// register lock
	lock          sync.Mutex
	interruptMask uint16
	running       uint8
	streams       map[uint8]*stream
	freed         bool

	// control mutex
	mu       sync.Mutex
	state    State
	volume   [cs43xx.Channels]uint8
	mute     bool
	hasPower bool
	hasAC97  [2]bool
	active   uint8

	work     chan struct{}
	stopIRQ  context.CancelFunc
	irqDone  chan struct{}
	workDone chan struct{}
	freeOnce sync.Once
	freeErr  error
}

func newChip(dev oxygen.Device, cfg Config) *Chip {
	c := &Chip{
		model:   cfg.Model,
		index:   cfg.Index,
		id:      cfg.ID,
		log:     cfg.Logger,
		sleep:   cfg.Sleep,
		dev:     dev,
		metrics: cfg.Metrics,
		streams: make(map[uint8]*stream),
		work:    make(chan struct{}, 1),
	}
	if c.log == nil {
		c.log = log.Default()
	}
	if c.sleep == nil {
		c.sleep = time.Sleep
	}
	if c.id == "" {
		c.id = c.model.ShortName
	}
	c.name = fmt.Sprintf("%s at %s", c.model.LongName, dev)
	c.volume, c.mute = c.model.coldLevels()
	return c
}

// Index is the card's index in its registry
func (c *Chip) Index() int { return c.index }

// ID is the card's identifier
func (c *Chip) ID() string { return c.id }

// Name is the long name of the card, including the device it sits on
func (c *Chip) Name() string { return c.name }

// Model returns the model description the chip was probed with
func (c *Chip) Model() Model { return c.model }

// State returns the lifecycle state
func (c *Chip) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// HasAC97 reports which AC'97 codec slots are populated
func (c *Chip) HasAC97() [2]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasAC97
}

// RunningMask is the set of DMA channels currently started
func (c *Chip) RunningMask() uint8 {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.running
}

// InterruptMask is the driver's copy of the interrupt enable register
func (c *Chip) InterruptMask() uint16 {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.interruptMask
}

// I2CWrites is the number of 2-wire transactions issued to the DACs
func (c *Chip) I2CWrites() uint64 {
	if c.i2c == nil {
		return 0
	}
	return c.i2c.Writes()
}

// AC97Failures returns the number of dropped AC'97 reads and writes
func (c *Chip) AC97Failures() (reads, writes uint64) {
	if c.ac97 == nil {
		return 0, 0
	}
	return c.ac97.ReadFailures(), c.ac97.WriteFailures()
}

// Shadow8 returns the last byte the driver wrote to reg
func (c *Chip) Shadow8(reg uint) uint8 {
	return c.regs.Shadow8(reg)
}

// DACRegister returns the image of a DAC register
func (c *Chip) DACRegister(chip cs43xx.Chip, reg uint8) uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dac.Register(chip, reg)
}

// DACImage returns a copy of every register image of a DAC
func (c *Chip) DACImage(chip cs43xx.Chip) []uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dac.Image(chip)
}

// setState moves the lifecycle forward; the caller holds mu
func (c *Chip) setState(s State) {
	if c.state != s {
		c.log.Printf("%s: %s -> %s", c.id, c.state, s)
	}
	c.state = s
}

// busErr returns the first lost register access, if the bus keeps track
func (c *Chip) busErr() error {
	if c.fault == nil {
		return nil
	}
	return c.fault.Err()
}

// checkOperational returns ErrBadState unless controls may be used; the caller holds mu
func (c *Chip) checkOperational() error {
	if !c.state.operational() {
		return fmt.Errorf("%w: %s", ErrBadState, c.state)
	}
	return nil
}
