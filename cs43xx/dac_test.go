package cs43xx_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TPiechocki/OS-xonar-driver/cs43xx"
)

type write struct {
	dev, reg, data uint8
}

type recorder struct {
	writes []write
}

func (r *recorder) WriteRegister(dev, reg, data uint8) {
	r.writes = append(r.writes, write{dev, reg, data})
}

func (r *recorder) reset() { r.writes = nil }

func flat(v uint8) [cs43xx.Channels]uint8 {
	var out [cs43xx.Channels]uint8
	for i := range out {
		out[i] = v
	}
	return out
}

func newDAC(vol uint8, mute bool) (*recorder, *cs43xx.DAC) {
	rec := &recorder{}
	return rec, cs43xx.New(rec, flat(vol), mute)
}

func TestWriteCachedDeduplicates(t *testing.T) {
	rec, d := newDAC(67, true)
	d.WriteCached(cs43xx.Front, cs43xx.CS4398VolA, 10)
	d.WriteCached(cs43xx.Front, cs43xx.CS4398VolA, 10)
	assert.Len(t, rec.writes, 1)

	rec.reset()
	for i := 0; i < 6; i++ {
		d.WriteCached(cs43xx.Multichannel, 7, uint8(i%2))
	}
	assert.Len(t, rec.writes, 6, "one transaction per change")

	rec.reset()
	d.Write(cs43xx.Multichannel, 7, 1)
	d.Write(cs43xx.Multichannel, 7, 1)
	assert.Len(t, rec.writes, 2, "Write never skips")
}

func TestInitSequence(t *testing.T) {
	rec, d := newDAC(67, true)
	d.Init()
	require.NotEmpty(t, rec.writes)
	w := rec.writes

	// control port + power down first, on both chips
	assert.Equal(t, write{cs43xx.AddrCS4398, 8, cs43xx.CS4398CPEn | cs43xx.CS4398PDN}, w[0])
	assert.Equal(t, write{cs43xx.AddrCS4362A, 1, cs43xx.CS4362APDN | cs43xx.CS4362ACPEn}, w[1])
	// power down released last
	n := len(w)
	assert.Equal(t, write{cs43xx.AddrCS4398, 8, cs43xx.CS4398CPEn}, w[n-2])
	assert.Equal(t, write{cs43xx.AddrCS4362A, 1, cs43xx.CS4362ACPEn}, w[n-1])
	// CS4398 2..7, CS4362A 2..14
	assert.Len(t, w, 2+6+13+2)

	assert.Equal(t, uint8(120), d.Register(cs43xx.Front, cs43xx.CS4398VolA))
	assert.Equal(t, uint8(60|cs43xx.CS4362AMute), d.Register(cs43xx.Multichannel, 7))
	assert.Equal(t, uint8(cs43xx.CS4398MutepLow|cs43xx.CS4398MuteB|cs43xx.CS4398MuteA|cs43xx.CS4398PAMute),
		d.Register(cs43xx.Front, cs43xx.CS4398MuteCtl))
}

func TestUnmutedProfile(t *testing.T) {
	_, d := newDAC(127, false)
	assert.Equal(t, uint8(0), d.Register(cs43xx.Front, cs43xx.CS4398VolA))
	assert.Equal(t, uint8(0), d.Register(cs43xx.Multichannel, 14))
	assert.Equal(t, uint8(cs43xx.CS4398MutepLow|cs43xx.CS4398PAMute), d.Register(cs43xx.Front, cs43xx.CS4398MuteCtl))
}

func TestVolumeMapping(t *testing.T) {
	rec, d := newDAC(67, false)
	d.Init()
	rec.reset()
	d.ApplyVolume([cs43xx.Channels]uint8{127, 127, 100, 100, 100, 100, 100, 100}, false)
	assert.Equal(t, uint8(0), d.Register(cs43xx.Front, 5))
	assert.Equal(t, uint8(0), d.Register(cs43xx.Front, 6))
	for _, reg := range []uint8{7, 8, 10, 11, 13, 14} {
		assert.Equal(t, uint8(27), d.Register(cs43xx.Multichannel, reg), "reg %d", reg)
	}
	// mixing registers are never touched by volume changes
	for _, w := range rec.writes {
		if w.dev == cs43xx.AddrCS4362A {
			assert.NotContains(t, []uint8{6, 9, 12}, w.reg)
		}
	}
	assert.Len(t, rec.writes, 8)

	rec.reset()
	d.ApplyVolume([cs43xx.Channels]uint8{127, 127, 100, 100, 100, 100, 100, 100}, false)
	assert.Empty(t, rec.writes, "unchanged volume costs nothing")
}

func TestMuteKeepsLevels(t *testing.T) {
	_, d := newDAC(67, false)
	d.Init()
	vol := [cs43xx.Channels]uint8{127, 127, 100, 100, 100, 100, 100, 100}
	d.ApplyVolume(vol, false)
	d.ApplyMute(vol, true)
	assert.Equal(t, uint8(cs43xx.CS4398MuteA|cs43xx.CS4398MuteB),
		d.Register(cs43xx.Front, cs43xx.CS4398MuteCtl)&(cs43xx.CS4398MuteA|cs43xx.CS4398MuteB))
	for _, reg := range []uint8{7, 8, 10, 11, 13, 14} {
		assert.Equal(t, uint8(27|cs43xx.CS4362AMute), d.Register(cs43xx.Multichannel, reg))
	}
	d.ApplyMute(vol, false)
	assert.Equal(t, uint8(27), d.Register(cs43xx.Multichannel, 13))
}

func TestSampleRateFamily(t *testing.T) {
	rec, d := newDAC(67, true)
	d.Init()
	before2 := d.Register(cs43xx.Front, cs43xx.CS4398Mode)
	before6 := d.Register(cs43xx.Multichannel, cs43xx.CS4362AMix1)

	rec.reset()
	d.SetSampleRateFamily(48000)
	assert.Empty(t, rec.writes, "same family, no traffic")

	d.SetSampleRateFamily(96000)
	assert.Len(t, rec.writes, 4)
	after2 := d.Register(cs43xx.Front, cs43xx.CS4398Mode)
	assert.Equal(t, uint8(cs43xx.CS4398FMDouble), after2&cs43xx.CS4398FMMask)
	assert.Equal(t, before2&^cs43xx.CS4398FMMask, after2&^cs43xx.CS4398FMMask)
	for _, reg := range []uint8{cs43xx.CS4362AMix1, cs43xx.CS4362AMix2, cs43xx.CS4362AMix3} {
		v := d.Register(cs43xx.Multichannel, reg)
		assert.Equal(t, uint8(cs43xx.CS4362AFMDouble), v&cs43xx.CS4362AFMMask)
		assert.Equal(t, before6&^cs43xx.CS4362AFMMask, v&^cs43xx.CS4362AFMMask)
	}

	d.SetSampleRateFamily(192000)
	assert.Equal(t, uint8(cs43xx.CS4398FMQuad), d.Register(cs43xx.Front, cs43xx.CS4398Mode)&cs43xx.CS4398FMMask)
}

func TestFamilyOf(t *testing.T) {
	assert.Equal(t, cs43xx.SingleSpeed, cs43xx.FamilyOf(50000))
	assert.Equal(t, cs43xx.DoubleSpeed, cs43xx.FamilyOf(50001))
	assert.Equal(t, cs43xx.DoubleSpeed, cs43xx.FamilyOf(100000))
	assert.Equal(t, cs43xx.QuadSpeed, cs43xx.FamilyOf(176400))
}

func TestPowerDownIdempotent(t *testing.T) {
	_, d := newDAC(67, true)
	d.Init()
	d.PowerDown()
	front, multi := d.Image(cs43xx.Front), d.Image(cs43xx.Multichannel)
	d.PowerDown()
	assert.Equal(t, front, d.Image(cs43xx.Front))
	assert.Equal(t, multi, d.Image(cs43xx.Multichannel))
	assert.Equal(t, uint8(cs43xx.CS4362APDN|cs43xx.CS4362ACPEn), multi[cs43xx.CS4362AMode1])
}

func TestDump(t *testing.T) {
	_, d := newDAC(127, false)
	buf := &bytes.Buffer{}
	d.Dump(buf)
	assert.Contains(t, buf.String(), "CS4398: 00 09 82 00 00 c3")
	assert.Contains(t, buf.String(), "CS4362A: 81 00 d4 01 00 24 00 00 24 00 00 24 00 00")
}
