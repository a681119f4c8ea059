package main

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/TPiechocki/OS-xonar-driver/xonar"
)

// wavFloat is the format tag of IEEE float samples
const wavFloat = 3

// Geometry is the layout of the DMA buffer for one file
type Geometry struct {
	Rate         int
	SrcChannels  int
	Channels     int
	BitDepth     int
	PeriodFrames int
	Periods      int
}

// geometryOf fits a WAV file to the multichannel engine: 16-bit samples in
// 2, 4, 6 or 8 channels.  Mono is doubled; odd channel counts get a silent
// extra channel.
func geometryOf(dec *wav.Decoder, periodFrames, periods int) (Geometry, error) {
	g := Geometry{
		Rate:         int(dec.SampleRate),
		SrcChannels:  int(dec.NumChans),
		BitDepth:     int(dec.BitDepth),
		PeriodFrames: periodFrames,
		Periods:      periods,
	}
	if dec.WavAudioFormat == wavFloat {
		return g, errors.New("float samples are not supported")
	}
	if g.BitDepth < 16 || g.BitDepth > 32 {
		return g, fmt.Errorf("%d-bit samples are not supported", g.BitDepth)
	}
	if g.SrcChannels < 1 || g.SrcChannels > 8 {
		return g, fmt.Errorf("%d channels are not supported", g.SrcChannels)
	}
	if periodFrames < 2 || periods < 2 {
		return g, fmt.Errorf("need at least 2 periods of 2 frames, got %d of %d", periods, periodFrames)
	}
	g.Channels = g.SrcChannels + g.SrcChannels%2
	return g, nil
}

// FrameBytes is the size of one frame in the buffer
func (g Geometry) FrameBytes() int { return g.Channels * xonar.BytesPerSample }

// PeriodBytes is the size of one period in the buffer
func (g Geometry) PeriodBytes() int { return g.PeriodFrames * g.FrameBytes() }

// BufferBytes is the size of the whole ring
func (g Geometry) BufferBytes() int { return g.Periods * g.PeriodBytes() }

// PeriodTime is how long the card takes to play one period
func (g Geometry) PeriodTime() time.Duration {
	return time.Duration(g.PeriodFrames) * time.Second / time.Duration(g.Rate)
}

// Player streams a WAV file through the multichannel playback stream of a
// card.  The file is decoded into the DMA ring one period at a time; every
// period-elapsed notification refills the period the card just finished.
type Player struct {
	geo  Geometry
	dec  *wav.Decoder
	buf  Buffer
	pcm  *audio.IntBuffer
	eof  bool
	tick chan struct{}

	// Started is called once the stream runs, if set
	Started func()

	// Progress is called after every period with the frames played so far
	Progress func(frames int)
}

// NewPlayer plays dec into buf, which must hold g.BufferBytes()
func NewPlayer(dec *wav.Decoder, g Geometry, buf Buffer) (*Player, error) {
	if len(buf.Bytes()) < g.BufferBytes() {
		return nil, fmt.Errorf("buffer of %d bytes, need %d", len(buf.Bytes()), g.BufferBytes())
	}
	return &Player{
		geo: g,
		dec: dec,
		buf: buf,
		pcm: &audio.IntBuffer{
			Format: &audio.Format{NumChannels: g.SrcChannels, SampleRate: g.Rate},
			Data:   make([]int, g.PeriodFrames*g.SrcChannels),
		},
		tick: make(chan struct{}, g.Periods),
	}, nil
}

func (p *Player) elapsed() {
	select {
	case p.tick <- struct{}{}:
	default:
	}
}

// fill decodes the next period into slot k of the ring and pads it with
// silence.  It returns the number of frames taken from the file.
func (p *Player) fill(k int) (int, error) {
	g := p.geo
	out := p.buf.Bytes()[k*g.PeriodBytes() : (k+1)*g.PeriodBytes()]
	for i := range out {
		out[i] = 0
	}
	if p.eof {
		return 0, nil
	}
	n, err := p.dec.PCMBuffer(p.pcm)
	if err != nil {
		return 0, err
	}
	if n < len(p.pcm.Data) {
		p.eof = true
	}
	frames := n / g.SrcChannels
	shift := g.BitDepth - 16
	for f := 0; f < frames; f++ {
		src := p.pcm.Data[f*g.SrcChannels : (f+1)*g.SrcChannels]
		dst := out[f*g.FrameBytes():]
		for ch := 0; ch < g.Channels; ch++ {
			var v int
			switch {
			case ch < g.SrcChannels:
				v = src[ch]
			case g.SrcChannels == 1:
				v = src[0]
			}
			binary.LittleEndian.PutUint16(dst[ch*2:], uint16(int16(v>>shift)))
		}
	}
	return frames, nil
}

// Play runs the file to its end on chip, or until ctx is done
func (p *Player) Play(ctx context.Context, chip *xonar.Chip) error {
	g := p.geo
	s, err := chip.NewStream(xonar.Multichannel, p.elapsed)
	if err != nil {
		return err
	}
	if err = s.Open(); err != nil {
		return err
	}
	defer s.Close()

	err = s.HWParams(xonar.HWParams{
		Rate:        g.Rate,
		Channels:    g.Channels,
		DMAAddr:     p.buf.Addr(),
		BufferBytes: g.BufferBytes(),
		PeriodBytes: g.PeriodBytes(),
	})
	if err != nil {
		return err
	}
	defer s.HWFree()

	queued, played := 0, 0
	for k := 0; k < g.Periods; k++ {
		n, err := p.fill(k)
		if err != nil {
			return err
		}
		if n > 0 {
			queued++
		}
	}
	if queued == 0 {
		return nil
	}

	if err = s.Prepare(false); err != nil {
		return err
	}
	if err = s.Trigger(xonar.TriggerStart); err != nil {
		return err
	}
	defer s.Trigger(xonar.TriggerStop)
	if p.Started != nil {
		p.Started()
	}

	for queued > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.tick:
		}
		k := played % g.Periods
		played++
		queued--
		if p.Progress != nil {
			p.Progress(played * g.PeriodFrames)
		}
		n, err := p.fill(k)
		if err != nil {
			return err
		}
		if n > 0 {
			queued++
		}
	}
	return nil
}
