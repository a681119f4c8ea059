package oxygen_test

import (
	"bytes"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/TPiechocki/OS-xonar-driver/oxygen"
)

func newAC97() (*oxygen.MockCard, *oxygen.AC97, *bytes.Buffer) {
	m, r := newRegs()
	buf := &bytes.Buffer{}
	a := oxygen.NewAC97(r, log.New(buf, "", 0))
	a.Sleep = func(time.Duration) {}
	a.Timeout = 50 * time.Microsecond
	return m, a, buf
}

func TestAC97ReadStableValue(t *testing.T) {
	m, a, buf := newAC97()
	m.SetAC97Register(0, oxygen.AC97Line, 0x0808)
	assert.Equal(t, uint16(0x0808), a.Read(0, oxygen.AC97Line))
	assert.Zero(t, a.ReadFailures())
	assert.Empty(t, buf.String())
}

func TestAC97ReadUnstableValueReturnsZero(t *testing.T) {
	m, a, buf := newAC97()
	n := uint16(0)
	m.AC97ReadHook = func(codec, index uint, stored uint16) uint16 {
		n++
		return n
	}
	assert.Equal(t, uint16(0), a.Read(0, oxygen.AC97Mic))
	assert.Equal(t, uint16(5), n, "every attempt is used")
	assert.Equal(t, uint64(1), a.ReadFailures())
	assert.Contains(t, buf.String(), "AC'97 read timeout")
}

func TestAC97ReadInvertsRequestOnMismatch(t *testing.T) {
	m, a, _ := newAC97()
	calls := 0
	m.AC97ReadHook = func(codec, index uint, stored uint16) uint16 {
		calls++
		if calls == 1 {
			return 0x1234 // corrupt first answer
		}
		return 0x00ff
	}
	assert.Equal(t, uint16(0x00ff), a.Read(1, oxygen.AC97PCM))
	words := m.AC97Requests()
	assert.Len(t, words, 3)
	assert.Equal(t, words[0]^0xffff, words[1])
	assert.Equal(t, words[1]^0xffff, words[2])
	// address, direction and codec are never touched
	assert.Equal(t, words[0]&^0xffff, words[2]&^0xffff)
	assert.Equal(t, uint32(oxygen.AC97RegDirRead|oxygen.AC97PCM<<16|1<<24), words[0]&^0xffff)
}

func TestAC97WriteNeedsTwoConfirmations(t *testing.T) {
	m, a, buf := newAC97()
	a.Write(0, oxygen.AC97Master, 0x0808)
	assert.Equal(t, uint16(0x0808), m.AC97Register(0, oxygen.AC97Master))
	assert.Equal(t, uint16(0x0808), a.Shadow(0, oxygen.AC97Master))
	assert.Empty(t, buf.String())

	// every other transaction lost: never two in a row
	drop := false
	m.AC97Drop = func() bool { drop = !drop; return drop }
	a.Write(0, oxygen.AC97Master, 0x0000)
	assert.Equal(t, uint16(0x0808), a.Shadow(0, oxygen.AC97Master), "unconfirmed write leaves the shadow alone")
	assert.Equal(t, uint64(1), a.WriteFailures())
	assert.Contains(t, buf.String(), "AC'97 write timeout")
}

func TestAC97WriteToleratesOneLostTransaction(t *testing.T) {
	m, a, buf := newAC97()
	n := 0
	m.AC97Drop = func() bool { n++; return n == 1 }
	a.Write(0, oxygen.AC97Aux, 0x8808)
	assert.Equal(t, uint16(0x8808), a.Shadow(0, oxygen.AC97Aux))
	assert.Equal(t, 3, n)
	assert.Empty(t, buf.String())
}

func TestAC97SignalWakesWaiter(t *testing.T) {
	m, a, _ := newAC97()
	a.Timeout = 5 * time.Second
	// signals never block, even with nobody waiting
	a.Signal()
	a.Signal()

	// completions arrive only through the interrupt path
	m.AC97Drop = func() bool { return true }
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		tick := time.NewTicker(time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tick.C:
				m.Poke(oxygen.AC97InterruptStatus, oxygen.AC97IntWriteDone)
				a.Signal()
			}
		}
	}()
	start := time.Now()
	a.Write(0, oxygen.AC97CD, 0x8808)
	assert.Less(t, time.Since(start), time.Second)
	assert.Zero(t, a.WriteFailures())
	assert.Equal(t, uint16(0x8808), a.Shadow(0, oxygen.AC97CD))
}

func TestAC97SetBits(t *testing.T) {
	m, a, _ := newAC97()
	m.SetAC97Register(0, oxygen.CM9780Jack, 0x0100)
	a.SetBits(0, oxygen.CM9780Jack, oxygen.CM9780RSOE|oxygen.CM9780LI2LI)
	assert.Equal(t, uint16(0x0181), m.AC97Register(0, oxygen.CM9780Jack))
	a.ClearBits(0, oxygen.CM9780Jack, 0x0100)
	assert.Equal(t, uint16(0x0081), m.AC97Register(0, oxygen.CM9780Jack))
}
