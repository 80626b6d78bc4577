package ratemon

import (
	"github.com/nuclab/mcfd16/mesytec"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes the newest rate of every channel and the poll statistics
// of a Session as prometheus metrics.  Values are read from the History at
// scrape time.
type Collector struct {
	s *Session

	rate   *prometheus.Desc
	cycles *prometheus.Desc
	seq    *prometheus.Desc
}

// NewCollector returns a Collector for s
func NewCollector(s *Session) *Collector {
	return &Collector{
		s: s,
		rate: prometheus.NewDesc("mcfd16_rate_khz",
			"Most recent count rate of the channel in kHz.",
			[]string{"channel"}, nil),
		cycles: prometheus.NewDesc("mcfd16_poll_cycles_total",
			"Number of poll cycles by outcome.",
			[]string{"outcome"}, nil),
		seq: prometheus.NewDesc("mcfd16_sequence",
			"Sequence number of the last committed poll cycle.",
			nil, nil),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.rate
	ch <- c.cycles
	ch <- c.seq
}

// Collect implements prometheus.Collector.  Channels with no data yet are
// left out.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for i := 0; i < mesytec.NumChannels; i++ {
		chn := mesytec.Channel(i)
		if f, ok := c.s.History.Latest(chn); ok {
			ch <- prometheus.MustNewConstMetric(c.rate, prometheus.GaugeValue, f, chn.String())
		}
	}
	st := c.s.Poller.Stats()
	ch <- prometheus.MustNewConstMetric(c.cycles, prometheus.CounterValue, float64(st.Committed), "committed")
	ch <- prometheus.MustNewConstMetric(c.cycles, prometheus.CounterValue, float64(st.Discarded), "discarded")
	ch <- prometheus.MustNewConstMetric(c.seq, prometheus.GaugeValue, float64(c.s.Poller.Seq()))
}
