package xonar

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/TPiechocki/OS-xonar-driver/oxygen"
)

var (
	// ErrDisabled is returned by Registry.Probe for a slot that is switched off
	ErrDisabled = errors.New("xonar: card disabled")

	// ErrNoDevice is returned by Registry.Probe when every slot has been used
	ErrNoDevice = errors.New("xonar: no more card slots")
)

// MaxCards is the default number of slots of a Registry
const MaxCards = 8

// Slot is the configuration of one card position
type Slot struct {
	Index  int
	ID     string
	Enable bool
}

// DefaultSlots returns n enabled slots with automatic indexes
func DefaultSlots(n int) []Slot {
	out := make([]Slot, n)
	for i := range out {
		out[i] = Slot{Index: -1, Enable: true}
	}
	return out
}

// Registry tracks the cards of a process.  Probes consume slots in order;
// a failed probe does not consume its slot.
type Registry struct {
	mu    sync.Mutex
	slots []Slot
	next  int
	cards map[int]*Chip
}

// NewRegistry returns a registry with the given slots
func NewRegistry(slots []Slot) *Registry {
	return &Registry{slots: slots, cards: make(map[int]*Chip)}
}

// Probe brings up the card on dev in the next slot.  cfg's Index and ID are
// taken from the slot; a slot with a negative index gets the lowest free one.
func (r *Registry) Probe(dev oxygen.Device, cfg Config) (*Chip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.next >= len(r.slots) {
		return nil, ErrNoDevice
	}
	slot := r.slots[r.next]
	if !slot.Enable {
		r.next++
		return nil, fmt.Errorf("%w: slot %d", ErrDisabled, r.next-1)
	}

	idx := slot.Index
	if idx < 0 {
		for idx = 0; r.cards[idx] != nil; idx++ {
		}
	} else if r.cards[idx] != nil {
		return nil, fmt.Errorf("xonar: card index %d already in use", idx)
	}
	cfg.Index = idx
	if slot.ID != "" {
		cfg.ID = slot.ID
	}
	if cfg.ID == "" {
		cfg.ID = fmt.Sprintf("card%d", idx)
	}

	c, err := Probe(dev, cfg)
	if err != nil {
		return nil, err
	}
	r.cards[idx] = c
	r.next++
	return c, nil
}

// Remove frees a card and forgets it
func (r *Registry) Remove(c *Chip) error {
	r.mu.Lock()
	if r.cards[c.Index()] == c {
		delete(r.cards, c.Index())
	}
	r.mu.Unlock()
	return c.Free()
}

// Shutdown silences every card
func (r *Registry) Shutdown() {
	for _, c := range r.Cards() {
		c.Shutdown()
	}
}

// Card returns the card with the given index
func (r *Registry) Card(index int) (*Chip, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cards[index]
	return c, ok
}

// Cards returns every card, ordered by index
func (r *Registry) Cards() []*Chip {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Chip, 0, len(r.cards))
	for _, c := range r.cards {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index() < out[j].Index() })
	return out
}
