package main

import (
	"context"
	"encoding/binary"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TPiechocki/OS-xonar-driver/oxygen"
	"github.com/TPiechocki/OS-xonar-driver/xonar"
)

// writeWAV writes samples, interleaved, to a temp file and opens a decoder on it
func writeWAV(t *testing.T, rate, depth, chans int, samples []int) *wav.Decoder {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	enc := wav.NewEncoder(f, rate, depth, chans, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: chans, SampleRate: rate},
		Data:           samples,
		SourceBitDepth: depth,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	r, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	dec := wav.NewDecoder(r)
	require.True(t, dec.IsValidFile())
	return dec
}

func sample(b []byte, frame, ch, channels int) int16 {
	return int16(binary.LittleEndian.Uint16(b[(frame*channels+ch)*2:]))
}

func TestGeometry(t *testing.T) {
	g, err := geometryOf(writeWAV(t, 48000, 16, 3, make([]int, 12)), 256, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, g.Channels, "odd channel counts are padded")
	assert.Equal(t, 8, g.FrameBytes())
	assert.Equal(t, 256*8, g.PeriodBytes())
	assert.Equal(t, 4*256*8, g.BufferBytes())

	_, err = geometryOf(writeWAV(t, 48000, 16, 2, make([]int, 4)), 256, 1)
	assert.Error(t, err)
}

func TestFillConvertsSamples(t *testing.T) {
	dec := writeWAV(t, 48000, 16, 1, []int{1, 2, 3, -4, 5, 6})
	g, err := geometryOf(dec, 4, 2)
	require.NoError(t, err)
	buf := newHeapBuffer(g.BufferBytes())
	p, err := NewPlayer(dec, g, buf)
	require.NoError(t, err)

	n, err := p.fill(0)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	for f, want := range []int16{1, 2, 3, -4} {
		assert.Equal(t, want, sample(buf.Bytes(), f, 0, 2))
		assert.Equal(t, want, sample(buf.Bytes(), f, 1, 2), "mono is doubled")
	}

	n, err = p.fill(1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int16(6), sample(buf.Bytes(), 5, 1, 2))
	assert.Zero(t, sample(buf.Bytes(), 6, 0, 2), "the rest of the period is silent")

	n, err = p.fill(0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFillScales24Bit(t *testing.T) {
	dec := writeWAV(t, 96000, 24, 2, []int{0x123456, -0x100000, 0, 0})
	g, err := geometryOf(dec, 2, 2)
	require.NoError(t, err)
	buf := newHeapBuffer(g.BufferBytes())
	p, err := NewPlayer(dec, g, buf)
	require.NoError(t, err)
	_, err = p.fill(0)
	require.NoError(t, err)
	assert.Equal(t, int16(0x1234), sample(buf.Bytes(), 0, 0, 2))
	assert.Equal(t, int16(-0x1000), sample(buf.Bytes(), 0, 1, 2))
}

func TestPlayOnMockCard(t *testing.T) {
	m := oxygen.NewMockCard(oxygen.DefaultMockOptions())
	chip, err := xonar.Probe(m, xonar.Config{
		Model:  xonar.XonarDX(),
		Logger: log.New(io.Discard, "", 0),
		Sleep:  func(time.Duration) {},
	})
	require.NoError(t, err)
	defer chip.Free()

	samples := make([]int, 2*1000)
	for i := range samples {
		samples[i] = i
	}
	dec := writeWAV(t, 48000, 16, 2, samples)
	g, err := geometryOf(dec, 64, 4)
	require.NoError(t, err)
	p, err := NewPlayer(dec, g, newHeapBuffer(g.BufferBytes()))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var played int
	p.Progress = func(frames int) { played = frames }
	p.Started = func() {
		assert.Equal(t, uint8(oxygen.ChannelMultich), chip.RunningMask())
		go simulate(ctx, m, g, 10)
	}
	require.NoError(t, p.Play(ctx, chip))

	// 1000 frames need 16 periods of 64
	assert.Equal(t, 16*64, played)
	assert.Zero(t, chip.RunningMask())
}
