package ratemon_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nuclab/mcfd16/comm"
	"github.com/nuclab/mcfd16/ratemon"
)

func TestLoopPollsEvenTicks(t *testing.T) {
	f := comm.NewFake()
	scriptRates(f)
	clk := newFakeClock()
	p := newPoller(f, &memSink{})
	p.Clock = clk
	l := ratemon.Loop{Ticks: 5, Interval: time.Minute, Clock: clk, Poller: p}
	start := clk.Now()
	stamps, err := l.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(stamps) != 3 {
		t.Fatalf("expected polls on ticks 0, 2 and 4, got %d stamps", len(stamps))
	}
	for i, s := range stamps {
		if s.Seq != i+1 {
			t.Errorf("stamp %d: expected sequence %d, got %d", i, i+1, s.Seq)
		}
		want := start.Add(time.Duration(2*i) * time.Minute)
		if !s.Time.Equal(want) {
			t.Errorf("stamp %d: expected %v, got %v", i, want, s.Time)
		}
	}
	if len(clk.waits) != 4 {
		t.Errorf("expected 4 waits between 5 ticks, got %d", len(clk.waits))
	}
	for _, w := range clk.waits {
		if w != time.Minute {
			t.Errorf("expected every wait to be the interval, got %v", w)
		}
	}
}

func TestLoopDefaultInterval(t *testing.T) {
	f := comm.NewFake()
	scriptRates(f)
	clk := newFakeClock()
	l := ratemon.Loop{Ticks: 2, Clock: clk, Poller: newPoller(f, &memSink{})}
	if _, err := l.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(clk.waits) != 1 || clk.waits[0] != ratemon.DefaultInterval {
		t.Errorf("expected one wait of %v, got %v", ratemon.DefaultInterval, clk.waits)
	}
}

func TestLoopZeroTicks(t *testing.T) {
	f := comm.NewFake()
	l := ratemon.Loop{Ticks: 0, Clock: newFakeClock(), Poller: newPoller(f, &memSink{})}
	stamps, err := l.Run(context.Background())
	if err != nil || len(stamps) != 0 || len(f.Written) != 0 {
		t.Errorf("expected nothing to happen, got %v %v %q", stamps, err, f.Written)
	}
}

func TestLoopContinuesAfterDiscard(t *testing.T) {
	f := comm.NewFake()
	f.Reply("ra 7", "rate channel 7: ?? kHz")
	scriptRates(f)
	clk := newFakeClock()
	p := newPoller(f, &memSink{})
	l := ratemon.Loop{Ticks: 3, Interval: time.Second, Clock: clk, Poller: p}
	stamps, err := l.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(stamps) != 1 || stamps[0].Seq != 1 {
		t.Errorf("expected only the second cycle to commit as sequence 1, got %+v", stamps)
	}
	if st := p.Stats(); st.Discarded != 1 {
		t.Errorf("expected 1 discarded cycle, got %+v", st)
	}
}

func TestLoopCancelDuringWait(t *testing.T) {
	f := comm.NewFake()
	scriptRates(f)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clk := newFakeClock()
	clk.cancel = cancel
	clk.cancelAt = 3
	l := ratemon.Loop{Ticks: 100, Interval: time.Second, Clock: clk, Poller: newPoller(f, &memSink{})}
	stamps, err := l.Run(ctx)
	if err != nil {
		t.Fatalf("expected cancellation to be a clean stop, got %v", err)
	}
	// ticks 0, 1, 2 ran; the wait after tick 2 was cancelled
	if len(stamps) != 2 {
		t.Errorf("expected 2 cycles before cancellation, got %d", len(stamps))
	}
	if len(f.Written) != 40 {
		t.Errorf("expected no cycle to start after cancellation, %d requests sent", len(f.Written))
	}
}

func TestLoopCancelledBeforeStart(t *testing.T) {
	f := comm.NewFake()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := ratemon.Loop{Ticks: 10, Clock: newFakeClock(), Poller: newPoller(f, &memSink{})}
	stamps, err := l.Run(ctx)
	if err != nil || len(stamps) != 0 || len(f.Written) != 0 {
		t.Errorf("expected nothing to run, got %v %v %d writes", stamps, err, len(f.Written))
	}
}

func TestLoopStopsOnTransportError(t *testing.T) {
	f := comm.NewFake()
	f.WriteErr = errors.New("port vanished")
	clk := newFakeClock()
	l := ratemon.Loop{Ticks: 10, Clock: clk, Poller: newPoller(f, &memSink{})}
	_, err := l.Run(context.Background())
	var terr *comm.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected *comm.TransportError, got %v", err)
	}
	if len(clk.waits) != 0 {
		t.Errorf("expected the loop to end at the first tick, waited %d times", len(clk.waits))
	}
}
