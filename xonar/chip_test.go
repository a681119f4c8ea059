package xonar_test

import (
	"bytes"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TPiechocki/OS-xonar-driver/cs43xx"
	"github.com/TPiechocki/OS-xonar-driver/oxygen"
	"github.com/TPiechocki/OS-xonar-driver/xonar"
)

// logBuffer is a bytes.Buffer safe for the worker goroutine to log into
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func config(logs *logBuffer) xonar.Config {
	return xonar.Config{
		Model:  xonar.XonarDX(),
		Logger: log.New(logs, "", 0),
		Sleep:  func(time.Duration) {},
	}
}

func probe(t *testing.T, opts oxygen.MockOptions, edit func(*xonar.Config)) (*oxygen.MockCard, *xonar.Chip, *logBuffer) {
	t.Helper()
	m := oxygen.NewMockCard(opts)
	logs := &logBuffer{}
	cfg := config(logs)
	if edit != nil {
		edit(&cfg)
	}
	c, err := xonar.Probe(m, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Free() })
	return m, c, logs
}

func unmuted(cfg *xonar.Config) {
	cfg.Model.ColdProfile = xonar.ProfileUnmuted
}

func TestProbeReachesRunning(t *testing.T) {
	m, c, _ := probe(t, oxygen.DefaultMockOptions(), nil)
	assert.Equal(t, xonar.Running, c.State())

	enabled, claimed, master := m.Held()
	assert.True(t, enabled)
	assert.True(t, claimed)
	assert.True(t, master)

	assert.Equal(t, uint16(oxygen.IntAC97|oxygen.IntGPIO), m.Peek16(oxygen.InterruptMask))
	assert.Equal(t, uint16(oxygen.IntAC97|oxygen.IntGPIO), c.InterruptMask())
	assert.NotZero(t, m.Peek16(oxygen.GPIOControl)&xonar.GPIOOutputEnable)
	assert.NotZero(t, m.Peek16(oxygen.GPIOData)&xonar.GPIOOutputEnable)
	assert.Zero(t, m.Peek16(oxygen.GPIOData)&(xonar.GPIOFrontPanel|xonar.GPIOInputRoute))
	assert.Equal(t, uint16(oxygen.TwoWireSpeedFast), m.Peek16(oxygen.TwoWireBusStatus)&oxygen.TwoWireSpeedMask)
	assert.Equal(t, [2]bool{true, false}, c.HasAC97())
	assert.True(t, c.HasExternalPower())
}

func TestProbeConfiguresCodec0(t *testing.T) {
	m, _, logs := probe(t, oxygen.DefaultMockOptions(), nil)
	assert.Equal(t, uint16(0x00cf), m.AC97Register(0, oxygen.CM9780Jack))
	assert.Equal(t, uint16(0x8013), m.AC97Register(0, oxygen.CM9780Mixer))
	assert.Equal(t, uint16(0x0003), m.AC97Register(0, oxygen.CM9780GPIOSetup))
	assert.Equal(t, uint16(0x0808), m.AC97Register(0, oxygen.AC97Line))
	assert.Equal(t, uint16(0x8808), m.AC97Register(0, oxygen.AC97Mic))
	assert.Equal(t, uint16(oxygen.AC97PDPR0|oxygen.AC97PDPR1), m.AC97Register(0, oxygen.AC97Powerdown))
	assert.Equal(t, uint16(oxygen.AC97EAPRI|oxygen.AC97EAPRJ|oxygen.AC97EAPRK),
		m.AC97Register(0, oxygen.AC97ExtendedStatus))
	assert.NotContains(t, logs.String(), "AC'97")
}

func TestProbeConfiguresCodec1(t *testing.T) {
	opts := oxygen.DefaultMockOptions()
	opts.Codecs = [2]bool{true, true}
	m, _, _ := probe(t, opts, nil)
	assert.Equal(t, uint16(0x880f), m.AC97Register(1, oxygen.AC97Mic))
	assert.Equal(t, uint16(0x0040), m.AC97Register(1, 0x6a))
	assert.Equal(t, uint8(0x03), m.Peek(oxygen.AC97OutConfig+1))
}

func TestProbeWithoutCodecs(t *testing.T) {
	opts := oxygen.DefaultMockOptions()
	opts.Codecs = [2]bool{}
	m, c, _ := probe(t, opts, nil)
	assert.Empty(t, m.AC97Requests())
	ctl := m.Peek16(oxygen.AC97Control)
	assert.NotZero(t, ctl&oxygen.AC97ClockDisable)
	assert.NotZero(t, ctl&oxygen.AC97NoCodec0)
	assert.Equal(t, uint16(oxygen.IntGPIO), c.InterruptMask())

	_, err := c.NewStream(xonar.AC97Passthrough, nil)
	assert.ErrorIs(t, err, xonar.ErrInvalidArgument)
}

func TestProbeOldRevision(t *testing.T) {
	opts := oxygen.DefaultMockOptions()
	opts.Revision = oxygen.PackageID8788
	m, _, _ := probe(t, opts, nil)
	assert.NotZero(t, m.Peek(oxygen.Misc)&oxygen.MiscPCIMemW1Clock)
}

func TestProbeDACSequence(t *testing.T) {
	m, _, _ := probe(t, oxygen.DefaultMockOptions(), nil)
	tx := m.I2CLog()
	require.Len(t, tx, 23)
	assert.Equal(t, oxygen.I2CTransaction{Device: cs43xx.AddrCS4398, Reg: cs43xx.CS4398Misc,
		Data: cs43xx.CS4398CPEn | cs43xx.CS4398PDN}, tx[0])
	assert.Equal(t, oxygen.I2CTransaction{Device: cs43xx.AddrCS4362A, Reg: cs43xx.CS4362AMode1,
		Data: cs43xx.CS4362ACPEn}, tx[22])
}

func TestProbeFailureReleasesDevice(t *testing.T) {
	m := oxygen.NewMockCard(oxygen.DefaultMockOptions())
	m.FailIRQ = errors.New("no interrupt line")
	c, err := xonar.Probe(m, config(&logBuffer{}))
	assert.Nil(t, c)
	assert.ErrorIs(t, err, m.FailIRQ)
	enabled, claimed, _ := m.Held()
	assert.False(t, enabled)
	assert.False(t, claimed)

	m = oxygen.NewMockCard(oxygen.DefaultMockOptions())
	m.FailRequest = errors.New("region busy")
	_, err = xonar.Probe(m, config(&logBuffer{}))
	assert.ErrorIs(t, err, m.FailRequest)
	enabled, _, _ = m.Held()
	assert.False(t, enabled)
}

func TestLostAccessIsReported(t *testing.T) {
	m := oxygen.NewMockCard(oxygen.DefaultMockOptions())
	m.Fault = errors.New("pread: no such device")
	logs := &logBuffer{}
	c, err := xonar.Probe(m, config(logs))
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "register access failed during bring-up: pread: no such device")

	err = c.Free()
	assert.ErrorIs(t, err, m.Fault)
	assert.Equal(t, xonar.Freed, c.State())
	enabled, claimed, _ := m.Held()
	assert.False(t, enabled, "the device is released anyway")
	assert.False(t, claimed)
}

func TestColdProfiles(t *testing.T) {
	_, c, _ := probe(t, oxygen.DefaultMockOptions(), nil)
	vol, err := c.Volume()
	require.NoError(t, err)
	assert.Equal(t, []int{67, 67, 67, 67, 67, 67, 67, 67}, vol)
	mute, _ := c.Mute()
	assert.True(t, mute)
	assert.Equal(t, uint8(120), c.DACRegister(cs43xx.Front, cs43xx.CS4398VolA))

	_, c, _ = probe(t, oxygen.DefaultMockOptions(), unmuted)
	vol, _ = c.Volume()
	assert.Equal(t, []int{127, 127, 127, 127, 127, 127, 127, 127}, vol)
	mute, _ = c.Mute()
	assert.False(t, mute)
	assert.Equal(t, uint8(0), c.DACRegister(cs43xx.Front, cs43xx.CS4398VolA))
}

func TestParseProfile(t *testing.T) {
	p, err := xonar.ParseProfile(" Unmuted ")
	assert.NoError(t, err)
	assert.Equal(t, xonar.ProfileUnmuted, p)
	_, err = xonar.ParseProfile("loud")
	assert.ErrorIs(t, err, xonar.ErrInvalidArgument)
}

func TestShutdownIsIdempotent(t *testing.T) {
	m, c, _ := probe(t, oxygen.DefaultMockOptions(), nil)
	c.Shutdown()
	front, multi := c.DACImage(cs43xx.Front), c.DACImage(cs43xx.Multichannel)
	c.Shutdown()
	assert.Equal(t, front, c.DACImage(cs43xx.Front))
	assert.Equal(t, multi, c.DACImage(cs43xx.Multichannel))
	assert.Equal(t, uint8(cs43xx.CS4362APDN|cs43xx.CS4362ACPEn), multi[cs43xx.CS4362AMode1])

	assert.Equal(t, xonar.ShuttingDown, c.State())
	assert.Zero(t, m.Peek16(oxygen.GPIOData)&xonar.GPIOOutputEnable)
	assert.Zero(t, m.Peek(oxygen.Function)&oxygen.FunctionResetCodec)
	assert.Zero(t, m.Peek16(oxygen.InterruptMask))
	assert.Zero(t, m.Peek(oxygen.DMAStatus))

	_, err := c.SetVolume([]int{67, 67, 67, 67, 67, 67, 67, 67})
	assert.ErrorIs(t, err, xonar.ErrBadState)
}

func TestFreeReleasesDevice(t *testing.T) {
	m, c, _ := probe(t, oxygen.DefaultMockOptions(), nil)
	require.NoError(t, c.Free())
	assert.Equal(t, xonar.Freed, c.State())
	enabled, claimed, master := m.Held()
	assert.False(t, enabled)
	assert.False(t, claimed)
	assert.False(t, master)
	assert.Zero(t, m.Peek16(oxygen.InterruptMask))

	assert.NoError(t, c.Free())
	assert.ErrorIs(t, c.TriggerMask(xonar.TriggerStart, oxygen.ChannelMultich), xonar.ErrBadState)
	_, err := c.Mute()
	assert.ErrorIs(t, err, xonar.ErrBadState)
	c.Shutdown() // no-op once freed
	assert.Equal(t, xonar.Freed, c.State())
}

func TestDump(t *testing.T) {
	opts := oxygen.DefaultMockOptions()
	opts.Codecs = [2]bool{true, true}
	_, c, _ := probe(t, opts, nil)
	buf := &bytes.Buffer{}
	require.NoError(t, c.Dump(buf))
	out := buf.String()
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("CMI8788:\n00:")))
	assert.Contains(t, out, "\nf0:")
	assert.Contains(t, out, "\nAC97 2:\n00: 0000")
	assert.Contains(t, out, "\nCS4398:")
	assert.Contains(t, out, "\nCS4362A:")
}
