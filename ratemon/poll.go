package ratemon

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nuclab/mcfd16/mesytec"
	log "github.com/sirupsen/logrus"
)

// Cycle is one complete read of every rate channel
type Cycle struct {
	Seq     int                                 `json:"seq"`
	Time    time.Time                           `json:"time"`
	Samples [mesytec.NumChannels]mesytec.Sample `json:"samples"`
}

// Values returns the rate of every channel in channel order
func (c Cycle) Values() []float64 {
	out := make([]float64, len(c.Samples))
	for i, s := range c.Samples {
		out[i] = s.KHz
	}
	return out
}

// Stats counts the outcome of poll cycles
type Stats struct {
	Committed int    `json:"committed"`
	Discarded int    `json:"discarded"`
	LastError string `json:"lastError,omitempty"`
}

// Poller reads every channel of a module and commits complete cycles to a
// History and a Sink.  A cycle in which any channel fails is discarded
// entirely.
type Poller struct {
	Dev     *mesytec.MCFD16
	History *History
	Sink    Sink
	Clock   Clock

	mu    sync.RWMutex
	seq   int
	stats Stats
}

// NewPoller returns a Poller using the wall clock
func NewPoller(dev *mesytec.MCFD16, h *History, sink Sink) *Poller {
	return &Poller{Dev: dev, History: h, Sink: sink, Clock: RealClock}
}

// Seq returns the sequence number of the last committed cycle, 0 if none
func (p *Poller) Seq() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.seq
}

// Stats returns a copy of the poll statistics
func (p *Poller) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}

func (p *Poller) discard(err error) {
	p.mu.Lock()
	p.stats.Discarded++
	p.stats.LastError = err.Error()
	p.mu.Unlock()
}

// Poll reads channels 0~19 in order.  If every channel yields a sample the
// cycle is appended to the Sink, then pushed into the History, and its
// sequence number is returned with it.  Otherwise nothing is committed:
// a *mesytec.ParseError means the cycle was spoiled by the device's answer,
// any other error comes from the transport or the sink.
func (p *Poller) Poll() (Cycle, error) {
	var c Cycle
	for i := 0; i < mesytec.NumChannels; i++ {
		ch := mesytec.Channel(i)
		s, err := p.Dev.ReadRate(ch)
		if err != nil {
			p.discard(err)
			var perr *mesytec.ParseError
			if errors.As(err, &perr) {
				return Cycle{}, err
			}
			return Cycle{}, fmt.Errorf("ratemon: reading %v: %w", ch, err)
		}
		c.Samples[i] = s
	}

	clk := p.Clock
	if clk == nil {
		clk = RealClock
	}
	c.Time = clk.Now().UTC()
	c.Seq = p.Seq() + 1
	if p.Sink != nil {
		if err := p.Sink.Append(c); err != nil {
			p.discard(err)
			return Cycle{}, fmt.Errorf("ratemon: appending cycle %d to log: %w", c.Seq, err)
		}
	}
	if p.History != nil {
		p.History.PushCycle(c)
	}

	p.mu.Lock()
	p.seq = c.Seq
	p.stats.Committed++
	p.mu.Unlock()
	log.Debugf("ratemon: committed cycle %d", c.Seq)
	return c, nil
}
