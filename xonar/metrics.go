package xonar

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/TPiechocki/OS-xonar-driver/oxygen"
)

// Metrics exports the counters of every card probed with it.  A nil
// *Metrics is valid and does nothing.
type Metrics struct {
	reg prometheus.Registerer

	interrupts *prometheus.CounterVec
	periods    *prometheus.CounterVec

	mu    sync.Mutex
	cards map[*Chip][]prometheus.Collector
}

// NewMetrics registers the shared card metrics with reg
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		reg: reg,
		interrupts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xonar_interrupts_total",
			Help: "interrupts serviced, by source",
		}, []string{"card", "source"}),
		periods: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xonar_period_elapsed_total",
			Help: "DMA period notifications delivered",
		}, []string{"card"}),
		cards: make(map[*Chip][]prometheus.Collector),
	}
	for _, col := range []prometheus.Collector{m.interrupts, m.periods} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) attach(c *Chip) {
	if m == nil {
		return
	}
	card := prometheus.Labels{"card": c.ID()}
	failures := func(op string, get func() uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name:        "xonar_ac97_failures_total",
			Help:        "AC'97 transactions dropped after exhausting their attempts",
			ConstLabels: prometheus.Labels{"card": c.ID(), "op": op},
		}, func() float64 { return float64(get()) })
	}
	cols := []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name:        "xonar_i2c_writes_total",
			Help:        "2-wire transactions sent to the DACs",
			ConstLabels: card,
		}, func() float64 { return float64(c.I2CWrites()) }),
		failures("read", func() uint64 { r, _ := c.AC97Failures(); return r }),
		failures("write", func() uint64 { _, w := c.AC97Failures(); return w }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "xonar_external_power",
			Help:        "1 if the auxiliary power cable is connected",
			ConstLabels: card,
		}, func() float64 {
			if c.HasExternalPower() {
				return 1
			}
			return 0
		}),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, col := range cols {
		if err := m.reg.Register(col); err != nil {
			c.log.Printf("%s: metrics: %v", c.ID(), err)
			continue
		}
		m.cards[c] = append(m.cards[c], col)
	}
}

func (m *Metrics) detach(c *Chip) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, col := range m.cards[c] {
		m.reg.Unregister(col)
	}
	delete(m.cards, c)
	m.interrupts.DeletePartialMatch(prometheus.Labels{"card": c.ID()})
	m.periods.DeleteLabelValues(c.ID())
}

func (m *Metrics) interrupt(c *Chip, status uint16, periods int) {
	if m == nil {
		return
	}
	count := func(source string) { m.interrupts.WithLabelValues(c.ID(), source).Inc() }
	if status&channelBits != 0 {
		count("dma")
	}
	if status&oxygen.IntGPIO != 0 {
		count("gpio")
	}
	if status&oxygen.IntAC97 != 0 {
		count("ac97")
	}
	if status&oxygen.IntSPDIFInDetect != 0 {
		count("spdif")
	}
	if periods != 0 {
		m.periods.WithLabelValues(c.ID()).Add(float64(periods))
	}
}
