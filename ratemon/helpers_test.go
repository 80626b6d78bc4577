package ratemon_test

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nuclab/mcfd16/comm"
	"github.com/nuclab/mcfd16/ratemon"
)

// rateLine returns the line the module prints for channel ch
func rateLine(ch int, value string) string {
	switch {
	case ch < 16:
		return fmt.Sprintf("rate channel %d: %s", ch, value)
	case ch < 19:
		return fmt.Sprintf("trigger rate%d: %s", ch-16, value)
	default:
		return "sum rate : " + value
	}
}

// scriptRates registers one answer for every "ra n" on f.  Inputs read
// n+0.5 kHz, triggers 1200 Hz and the sum 2.0 MHz.
func scriptRates(f *comm.Fake) {
	for ch := 0; ch < 20; ch++ {
		var v string
		switch {
		case ch < 16:
			v = fmt.Sprintf("%d.5 kHz", ch)
		case ch < 19:
			v = "1200 Hz"
		default:
			v = "2.0 MHz"
		}
		f.Reply(fmt.Sprintf("ra %d", ch), rateLine(ch, v), "mcfd-16>")
	}
}

// wantLine is the log line of a cycle read from a device set up by scriptRates
func wantLine() string {
	vals := make([]string, 20)
	for i := 0; i < 16; i++ {
		vals[i] = fmt.Sprintf("%d.5", i)
	}
	vals[16], vals[17], vals[18] = "1.2", "1.2", "1.2"
	vals[19] = "2000"
	return strings.Join(vals, "\t")
}

// memSink keeps cycles in memory
type memSink struct {
	cycles  []ratemon.Cycle
	flushes int
	err     error
}

func (m *memSink) Append(c ratemon.Cycle) error {
	if m.err != nil {
		return m.err
	}
	m.cycles = append(m.cycles, c)
	return nil
}

func (m *memSink) Flush() error {
	m.flushes++
	return nil
}

var errDiskFull = errors.New("disk full")

// fakeClock advances only when waited on.  If cancel is set it is called on
// wait number cancelAt and that wait never fires.
type fakeClock struct {
	now      time.Time
	waits    []time.Duration
	cancelAt int
	cancel   func()
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.waits = append(c.waits, d)
	if c.cancel != nil && len(c.waits) == c.cancelAt {
		c.cancel()
		return nil
	}
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}
