package ratemon

import (
	"context"
	"errors"
	"time"

	"github.com/nuclab/mcfd16/mesytec"
	log "github.com/sirupsen/logrus"
)

// DefaultInterval is the wait between two ticks
const DefaultInterval = 60 * time.Second

// Clock is the source of time for the loop and the poller
type Clock interface {
	Now() time.Time
	After(time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock is the wall clock
var RealClock Clock = realClock{}

// Stamp records when a committed cycle was taken
type Stamp struct {
	Seq  int       `json:"seq"`
	Time time.Time `json:"time"`
}

// Loop runs a Poller on a fixed schedule.  Ticks are numbered 0 to Ticks-1,
// a cycle is polled on every even tick and every tick but the last is
// followed by a wait of Interval.
type Loop struct {
	Ticks    int
	Interval time.Duration
	Clock    Clock
	Poller   *Poller
}

func (l *Loop) clock() Clock {
	if l.Clock == nil {
		return RealClock
	}
	return l.Clock
}

// Run executes the schedule and returns a Stamp for every committed cycle.
//
// Cancelling ctx stops the loop at the next tick boundary or during a wait;
// a cycle that has started always runs to completion.  Cancellation is a
// normal stop and is not returned as an error.  Discarded cycles are logged
// and the loop carries on; any other poll error ends it.
func (l *Loop) Run(ctx context.Context) ([]Stamp, error) {
	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	clk := l.clock()
	var stamps []Stamp
	for tick := 0; tick < l.Ticks; tick++ {
		if ctx.Err() != nil {
			log.Infof("ratemon: stopped before tick %d", tick)
			return stamps, nil
		}
		if tick%2 == 0 {
			c, err := l.Poller.Poll()
			if err != nil {
				var perr *mesytec.ParseError
				if !errors.As(err, &perr) {
					return stamps, err
				}
				log.Warnf("ratemon: tick %d, cycle discarded: %v", tick, err)
			} else {
				stamps = append(stamps, Stamp{Seq: c.Seq, Time: c.Time})
				log.Infof("ratemon: tick %d, cycle %d at %s", tick, c.Seq, c.Time.Format(time.RFC3339))
			}
		}
		if tick == l.Ticks-1 {
			break
		}
		select {
		case <-ctx.Done():
			log.Infof("ratemon: stopped after tick %d", tick)
			return stamps, nil
		case <-clk.After(interval):
		}
	}
	return stamps, nil
}
