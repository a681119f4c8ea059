package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/theckman/yacspin"

	"github.com/TPiechocki/OS-xonar-driver/comm"
	"github.com/TPiechocki/OS-xonar-driver/generichttp"
	"github.com/TPiechocki/OS-xonar-driver/generichttp/mixer"
	"github.com/TPiechocki/OS-xonar-driver/oxygen"
	"github.com/TPiechocki/OS-xonar-driver/server"
	"github.com/TPiechocki/OS-xonar-driver/server/middleware/locker"
	"github.com/TPiechocki/OS-xonar-driver/xonar"
)

// ModelSetup overrides parts of the Xonar DX model
type ModelSetup struct {
	// AntiPopDelayMS is the wait between enabling and driving the output
	// enable pin; zero keeps the model default
	AntiPopDelayMS int `yaml:"AntiPopDelayMS" koanf:"AntiPopDelayMS"`

	// ColdProfile is "muted" or "unmuted"
	ColdProfile string `yaml:"ColdProfile" koanf:"ColdProfile"`

	StopOnPowerLoss bool `yaml:"StopOnPowerLoss" koanf:"StopOnPowerLoss"`
}

// CardSetup holds the parameters of one card
type CardSetup struct {
	// Endpoint is the path the card's routes are served under,
	// e.g. "/xonar0" produces /xonar0/volume and so on.  It defaults to
	// /xonar<index>.
	Endpoint string `yaml:"Endpoint" koanf:"Endpoint"`

	// PCIAddr is the sysfs address of the card, e.g. 0000:05:04.0.  When
	// empty the next CMI8788 found on the bus is used.
	PCIAddr string `yaml:"PCIAddr" koanf:"PCIAddr"`

	// UIO is the UIO node bound to the card.  Without one the interrupt
	// status is polled.
	UIO string `yaml:"UIO" koanf:"UIO"`

	// Enable, Index and ID are the card's registry slot; a negative Index
	// picks the lowest free one
	Enable bool   `yaml:"Enable" koanf:"Enable"`
	Index  int    `yaml:"Index" koanf:"Index"`
	ID     string `yaml:"ID" koanf:"ID"`

	Model ModelSetup `yaml:"Model" koanf:"Model"`
}

// Config is the configuration of xonarsrv
type Config struct {
	// Addr is the address to listen at
	Addr string `yaml:"Addr" koanf:"Addr"`

	// Mock replaces every card with an in-memory CMI8788
	Mock bool `yaml:"Mock" koanf:"Mock"`

	MetricsPath string `yaml:"MetricsPath" koanf:"MetricsPath"`

	// ControlRate is the number of control writes per second allowed per card
	ControlRate float64 `yaml:"ControlRate" koanf:"ControlRate"`

	Cards []CardSetup `yaml:"Cards" koanf:"Cards"`
}

// DefaultConfig has one enabled card with automatic placement
func DefaultConfig() Config {
	return Config{
		Addr:        ":8000",
		MetricsPath: "/metrics",
		ControlRate: 50,
		Cards: []CardSetup{{
			Endpoint: "/xonar0",
			Enable:   true,
			Index:    -1,
			Model: ModelSetup{
				AntiPopDelayMS: 800,
				ColdProfile:    string(xonar.ProfileMuted),
			},
		}},
	}
}

func (m ModelSetup) model() (xonar.Model, error) {
	model := xonar.XonarDX()
	if m.AntiPopDelayMS > 0 {
		model.AntiPopDelay = time.Duration(m.AntiPopDelayMS) * time.Millisecond
	}
	if m.ColdProfile != "" {
		p, err := xonar.ParseProfile(m.ColdProfile)
		if err != nil {
			return model, err
		}
		model.ColdProfile = p
	}
	model.StopOnPowerLoss = m.StopOnPowerLoss
	return model, nil
}

// Card is a probed card and where it is served
type Card struct {
	Chip     *xonar.Chip
	Endpoint string
}

// Cards is the running state of the server
type Cards struct {
	Registry *xonar.Registry
	Metrics  *prometheus.Registry
	List     []Card
}

// Close shuts every card down and releases it
func (cs *Cards) Close() error {
	cs.Registry.Shutdown()
	var errs []error
	for _, c := range cs.List {
		errs = append(errs, cs.Registry.Remove(c.Chip))
	}
	return errors.Join(errs...)
}

// spinner returns a progress spinner on w, or nil if w is nil
func spinner(w io.Writer, msg string) *yacspin.Spinner {
	if w == nil {
		return nil
	}
	s, err := yacspin.New(yacspin.Config{
		Frequency:         100 * time.Millisecond,
		Writer:            w,
		CharSet:           yacspin.CharSets[14],
		Suffix:            " " + msg,
		SuffixAutoColon:   true,
		StopCharacter:     "✓",
		StopColors:        []string{"fgGreen"},
		StopFailCharacter: "✗",
		StopFailColors:    []string{"fgRed"},
	})
	if err != nil {
		return nil
	}
	if err = s.Start(); err != nil {
		return nil
	}
	return s
}

// ProbeCards brings up the configured cards.  Disabled cards are skipped;
// any other failure aborts and releases the cards probed so far.  Progress
// is drawn on progress when it is not nil.
func ProbeCards(c Config, logger *log.Logger, progress io.Writer) (*Cards, error) {
	slots := make([]xonar.Slot, len(c.Cards))
	for i, cs := range c.Cards {
		slots[i] = xonar.Slot{Index: cs.Index, ID: cs.ID, Enable: cs.Enable}
	}
	reg := prometheus.NewRegistry()
	metrics, err := xonar.NewMetrics(reg)
	if err != nil {
		return nil, err
	}
	cards := &Cards{Registry: xonar.NewRegistry(slots), Metrics: reg}

	var found []string
	if !c.Mock {
		found, err = comm.Find(comm.SysfsRoot)
		if err != nil {
			logger.Printf("listing PCI devices: %v", err)
		}
	}

	for i, cs := range c.Cards {
		model, err := cs.Model.model()
		if err != nil {
			cards.Close()
			return nil, fmt.Errorf("card %d: %w", i, err)
		}
		var dev oxygen.Device
		if c.Mock {
			dev = oxygen.NewMockCard(oxygen.DefaultMockOptions())
		} else {
			addr := cs.PCIAddr
			if addr == "" && cs.Enable {
				if len(found) == 0 {
					cards.Close()
					return nil, fmt.Errorf("card %d: %w", i, xonar.ErrNoDevice)
				}
				addr, found = found[0], found[1:]
			}
			pci := comm.NewPCIDevice(addr)
			pci.UIO = cs.UIO
			dev = pci
		}

		spin := spinner(progress, fmt.Sprintf("probing %s", dev))
		chip, err := cards.Registry.Probe(dev, xonar.Config{Model: model, Logger: logger, Metrics: metrics})
		if spin != nil {
			if err != nil {
				spin.StopFailMessage(err.Error())
				spin.StopFail()
			} else {
				spin.StopMessage(chip.Name())
				spin.Stop()
			}
		}
		if errors.Is(err, xonar.ErrDisabled) {
			logger.Printf("card %d disabled", i)
			continue
		}
		if err != nil {
			cards.Close()
			return nil, fmt.Errorf("card %d: %w", i, err)
		}

		endpoint := cs.Endpoint
		if endpoint == "" {
			endpoint = fmt.Sprintf("xonar%d", chip.Index())
		}
		cards.List = append(cards.List, Card{Chip: chip, Endpoint: generichttp.SubMuxSanitize(endpoint)})
	}
	return cards, nil
}

// BuildMux serves every card under its endpoint with a lock of its own,
// the list of all routes at /endpoints and the metrics at c.MetricsPath
func BuildMux(c Config, cards *Cards) chi.Router {
	root := chi.NewRouter()
	root.Use(middleware.Logger)
	supergraph := map[string][]string{}

	for _, card := range cards.List {
		httper := mixer.NewHTTPMixer(card.Chip, card.Chip.FrontPanel(), c.ControlRate)
		lock := locker.New()
		locker.Inject(httper, lock)
		supergraph[card.Endpoint] = httper.RT().Endpoints()

		r := chi.NewRouter()
		r.Use(lock.Check)
		httper.RT().Bind(r)
		root.Mount(card.Endpoint, r)
	}

	if c.MetricsPath != "" {
		root.Handle(c.MetricsPath, promhttp.HandlerFor(cards.Metrics, promhttp.HandlerOpts{}))
	}
	root.Get("/endpoints", func(w http.ResponseWriter, r *http.Request) {
		server.Respond(w, supergraph)
	})
	return root
}
