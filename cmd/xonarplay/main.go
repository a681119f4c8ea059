// Command xonarplay plays a WAV file on a Xonar DX through the driver's
// playback stream, either on a real card or on an in-memory one.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/go-audio/wav"
	"github.com/theckman/yacspin"

	"github.com/TPiechocki/OS-xonar-driver/comm"
	"github.com/TPiechocki/OS-xonar-driver/oxygen"
	"github.com/TPiechocki/OS-xonar-driver/util"
	"github.com/TPiechocki/OS-xonar-driver/xonar"
)

// simulate plays the part of the DMA engine of a mock card: every period
// time (divided by speed) it moves the position one period on and raises
// the period interrupt
func simulate(ctx context.Context, m *oxygen.MockCard, g Geometry, speed float64) {
	t := time.NewTicker(time.Duration(float64(g.PeriodTime()) / speed))
	defer t.Stop()
	pos := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		pos = (pos + g.PeriodBytes()) % g.BufferBytes()
		m.SetDMAPosition(uint32(pos))
		m.PeriodElapsed(oxygen.ChannelMultich)
	}
}

func main() {
	var (
		mock         bool
		pciAddr      string
		uio          string
		udmabuf      string
		periodFrames int
		periods      int
		volume       int
		speed        float64
	)
	flag.BoolVar(&mock, "mock", false, "Play on an in-memory card")
	flag.StringVar(&pciAddr, "pci", "", "PCI address of the card (empty = first CMI8788 found)")
	flag.StringVar(&uio, "uio", "", "UIO node bound to the card (empty = poll)")
	flag.StringVar(&udmabuf, "udmabuf", "udmabuf0", "u-dma-buf device holding the DMA buffer")
	flag.IntVar(&periodFrames, "period-size", 1024, "The size of a period in frames")
	flag.IntVar(&periods, "period-count", 4, "The number of periods")
	flag.IntVar(&volume, "volume", 100, "Level of every channel, 67 (-60 dB) to 127 (0 dB)")
	flag.Float64Var(&speed, "speed", 1, "Playback speed of the in-memory card")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <wav-file>\n\nOptions:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	if speed <= 0 {
		log.Fatal("speed must be positive")
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		log.Fatal("invalid WAV file")
	}
	g, err := geometryOf(dec, periodFrames, periods)
	if err != nil {
		log.Fatal(err)
	}

	var (
		dev  oxygen.Device
		card *oxygen.MockCard
		buf  Buffer
	)
	if mock {
		card = oxygen.NewMockCard(oxygen.DefaultMockOptions())
		dev = card
		buf = newHeapBuffer(g.BufferBytes())
	} else {
		if pciAddr == "" {
			found, err := comm.Find(comm.SysfsRoot)
			if err != nil || len(found) == 0 {
				log.Fatal("no CMI8788 found")
			}
			pciAddr = found[0]
		}
		pci := comm.NewPCIDevice(pciAddr)
		pci.UIO = uio
		dev = pci
		buf, err = openUDMABuffer(udmabuf, g.BufferBytes())
		if err != nil {
			log.Fatal(err)
		}
	}
	defer buf.Close()

	chip, err := xonar.Probe(dev, xonar.Config{Model: xonar.XonarDX()})
	if err != nil {
		log.Fatal(err)
	}
	defer chip.Free()

	n, lo, hi := chip.VolumeRange()
	levels := make([]int, n)
	for i := range levels {
		levels[i] = util.ClampInt(volume, lo, hi)
	}
	if _, err = chip.SetVolume(levels); err != nil {
		log.Fatal(err)
	}
	if _, err = chip.SetMute(false); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Playing %s on %s\n", flag.Arg(0), chip.Name())
	fmt.Printf("%d Hz, %d-bit, %d channels into %d, %d periods of %d frames\n",
		g.Rate, g.BitDepth, g.SrcChannels, g.Channels, g.Periods, g.PeriodFrames)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	p, err := NewPlayer(dec, g, buf)
	if err != nil {
		log.Fatal(err)
	}
	spin, err := yacspin.New(yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[9],
		Suffix:          " playing",
		SuffixAutoColon: true,
		StopCharacter:   "✓",
		StopColors:      []string{"fgGreen"},
	})
	if err == nil && spin.Start() == nil {
		p.Progress = func(frames int) {
			spin.Message(fmt.Sprintf("%.1fs", float64(frames)/float64(g.Rate)))
		}
		defer spin.Stop()
	}
	if card != nil {
		p.Started = func() { go simulate(ctx, card, g, speed) }
	}
	if err = p.Play(ctx, chip); err != nil {
		log.Println(err)
	}
}
