/*
Package ratemon records the count rates of an MCFD-16 over time.

A Session owns the transport to one module.  It identifies the module,
configures it with the canonical script and then runs a Loop which polls all
twenty rate channels every other tick.  Each complete poll is written to a tab
separated log and kept in a rolling per-channel History that can be served
over HTTP while the session runs.
*/
package ratemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nuclab/mcfd16/comm"
	"github.com/nuclab/mcfd16/mesytec"
	log "github.com/sirupsen/logrus"
)

// Config holds the parameters of a recording session
type Config struct {
	// Ticks is the number of scheduler ticks, a cycle is polled every other tick
	Ticks int

	// Interval is the wait between ticks, DefaultInterval if zero
	Interval time.Duration

	// History is the number of values kept per channel, DefaultCapacity if zero
	History int

	// LogPath is the file the session log is written to; it is truncated
	LogPath string

	// ClearLines and ResponseLines override the driver's line counts if non zero
	ClearLines    int
	ResponseLines int

	// Clock replaces the wall clock, for tests
	Clock Clock
}

// Session is one recording run against one module
type Session struct {
	Dev     *mesytec.MCFD16
	Poller  *Poller
	History *History
	Log     *TSVLog

	cfg Config

	mu       sync.RWMutex
	version  string
	mismatch *mesytec.ProtocolMismatch
	stamps   []Stamp

	closeOnce sync.Once
	closeErr  error
}

// NewSession takes ownership of t and prepares a session on it, creating the
// log file.  If the session cannot be prepared t is closed.
func NewSession(t comm.Transport, cfg Config) (*Session, error) {
	if cfg.LogPath == "" {
		t.Close()
		return nil, errors.New("ratemon: no log path given")
	}
	lg, err := CreateLog(cfg.LogPath)
	if err != nil {
		t.Close()
		return nil, err
	}
	dev := mesytec.New(t)
	if cfg.ClearLines > 0 {
		dev.ClearLines = cfg.ClearLines
	}
	if cfg.ResponseLines > 0 {
		dev.ResponseLines = cfg.ResponseLines
	}
	h := NewHistory(cfg.History)
	p := NewPoller(dev, h, lg)
	if cfg.Clock != nil {
		p.Clock = cfg.Clock
	}
	return &Session{Dev: dev, Poller: p, History: h, Log: lg, cfg: cfg}, nil
}

// Version returns the identification line reported by the module
func (s *Session) Version() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Mismatch returns the protocol mismatch recorded by Handshake, if any
func (s *Session) Mismatch() *mesytec.ProtocolMismatch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mismatch
}

// Stamps returns the stamps of the cycles committed by Acquire
func (s *Session) Stamps() []Stamp {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Stamp(nil), s.stamps...)
}

// Handshake identifies the module.  An unknown version is recorded and
// logged but does not fail the session.
func (s *Session) Handshake() error {
	v, err := s.Dev.Identify()
	var mm *mesytec.ProtocolMismatch
	switch {
	case errors.As(err, &mm):
		log.Warnf("ratemon: %v, continuing", mm)
	case err != nil:
		return err
	default:
		log.Infof("ratemon: module reports %q", v)
	}
	s.mu.Lock()
	s.version = v
	s.mismatch = mm
	s.mu.Unlock()
	return nil
}

// Configure turns the test pulser off and runs the canonical script
func (s *Session) Configure() error {
	if err := s.Dev.SetPulser(0); err != nil {
		return fmt.Errorf("ratemon: clearing pulser: %w", err)
	}
	return s.Dev.Initialize()
}

// Acquire runs the polling schedule until it completes or ctx is cancelled
func (s *Session) Acquire(ctx context.Context) error {
	l := Loop{Ticks: s.cfg.Ticks, Interval: s.cfg.Interval, Clock: s.cfg.Clock, Poller: s.Poller}
	stamps, err := l.Run(ctx)
	s.mu.Lock()
	s.stamps = append(s.stamps, stamps...)
	s.mu.Unlock()
	log.Infof("ratemon: %d cycles committed, %d discarded", s.Poller.Stats().Committed, s.Poller.Stats().Discarded)
	return err
}

// Close flushes and closes the log, then closes the transport.  It is safe
// to call more than once; later calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		lerr := s.Log.Close()
		terr := s.Dev.Transport().Close()
		if lerr != nil {
			s.closeErr = lerr
		} else {
			s.closeErr = terr
		}
	})
	return s.closeErr
}

// Run performs the whole session: handshake, configuration and acquisition.
// The log is flushed and the transport closed on every path out.
func (s *Session) Run(ctx context.Context) (err error) {
	defer func() {
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}()
	if err = s.Handshake(); err != nil {
		return err
	}
	if err = s.Configure(); err != nil {
		return err
	}
	return s.Acquire(ctx)
}

// Run prepares a session on t and runs it to completion
func Run(ctx context.Context, t comm.Transport, cfg Config) (*Session, error) {
	s, err := NewSession(t, cfg)
	if err != nil {
		return nil, err
	}
	return s, s.Run(ctx)
}
