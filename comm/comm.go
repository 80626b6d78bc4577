/*
Package comm provides the line-oriented transport used to talk to lab hardware.

Devices in this module speak unframed ASCII: a command is a single line ending
in CR LF and the device answers with zero or more lines (echo, data, prompt).
The Transport interface captures exactly that, and is satisfied by

 1. Session, which wraps a serial port (or anything that is an
    io.ReadWriteCloser) and does the line framing
 2. Fake, a scripted stand-in used by tests

A Transport is owned by a single goroutine and is not concurrent safe.
*/
package comm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	log "github.com/sirupsen/logrus"
	"github.com/tarm/serial"
	"golang.org/x/time/rate"
)

// Terminator ends every line sent to the device
const Terminator = "\r\n"

const chunkSize = 256

var (
	// ErrNotConnected is generated when the session has no connection and
	// WriteLine or ReadLine is called.
	ErrNotConnected = errors.New("conn is nil, not connected to remote")

	// ErrClosed is generated when a closed transport is used
	ErrClosed = errors.New("transport closed")

	// ErrShortWrite is generated when the remote did not accept the full line
	ErrShortWrite = errors.New("remote did not accept all bytes of the line")
)

// TransportError is a failure at the channel level: opening the port,
// writing a line, or reading one.  It is always fatal to a session.
type TransportError struct {
	Op   string
	Path string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("comm: %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Transport is a half-duplex line channel to a device
type Transport interface {
	// WriteLine sends one line, appending the terminator if it is missing
	WriteLine(string) error

	// ReadLine returns the next line with the terminator stripped.  It returns
	// an empty string and a nil error when nothing arrived before the read
	// timeout.
	ReadLine() (string, error)

	io.Closer
}

// Config holds the fixed line parameters of a session
type Config struct {
	// Baud is the symbol rate
	Baud int `koanf:"Baud" yaml:"Baud"`

	// ReadTimeout bounds a single ReadLine
	ReadTimeout time.Duration `koanf:"ReadTimeout" yaml:"ReadTimeout"`

	// CommandRate is the maximum number of lines written per second.
	// Zero means unlimited.
	CommandRate float64 `koanf:"CommandRate" yaml:"CommandRate"`
}

// DefaultConfig returns the configuration of the MCFD-16 USB serial link,
// 9600 baud, 8N1, one second read timeout
func DefaultConfig() Config {
	return Config{Baud: 9600, ReadTimeout: time.Second}
}

func (c Config) serialConf(path string) *serial.Config {
	return &serial.Config{
		Name:        path,
		Baud:        c.Baud,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: c.ReadTimeout}
}

func (c Config) limiter() *rate.Limiter {
	if c.CommandRate <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(c.CommandRate), 1)
}

// Session is a Transport over a byte stream, normally a serial port.
//
// The stream is expected to return from Read with zero bytes once its read
// timeout elapses, which is how tarm/serial behaves with ReadTimeout set.
type Session struct {
	Path string

	conn    io.ReadWriteCloser
	limiter *rate.Limiter
	pending []byte
	buf     []byte
	closed  bool
}

// NewSession wraps an already open stream.  path is only used for messages.
func NewSession(conn io.ReadWriteCloser, path string, cfg Config) *Session {
	return &Session{
		Path:    path,
		conn:    conn,
		limiter: cfg.limiter(),
		buf:     make([]byte, chunkSize)}
}

// Open opens the serial device at path and returns a Session on it.
// Transient failures are retried with an exponential backoff; a missing
// device fails immediately.
func Open(path string, cfg Config) (*Session, error) {
	var port *serial.Port
	op := func() error {
		p, err := serial.OpenPort(cfg.serialConf(path))
		if err != nil {
			if os.IsNotExist(err) || os.IsPermission(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		port = p
		return nil
	}

	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      3 * time.Second,
		Clock:               backoff.SystemClock})
	if err != nil {
		return nil, &TransportError{Op: "open", Path: path, Err: err}
	}
	log.Debugf("opened %s at %d baud, read timeout %v", path, cfg.Baud, cfg.ReadTimeout)
	return NewSession(port, path, cfg), nil
}

// WriteLine sends a line to the device
func (s *Session) WriteLine(line string) error {
	if s.closed {
		return &TransportError{Op: "write", Path: s.Path, Err: ErrClosed}
	}
	if s.conn == nil {
		return &TransportError{Op: "write", Path: s.Path, Err: ErrNotConnected}
	}
	if !strings.HasSuffix(line, Terminator) {
		line += Terminator
	}
	if err := s.limiter.Wait(context.Background()); err != nil {
		return &TransportError{Op: "write", Path: s.Path, Err: err}
	}
	n, err := io.WriteString(s.conn, line)
	log.Debugf("Write %q, n=%v, err=%v", line, n, err)
	if err != nil {
		return &TransportError{Op: "write", Path: s.Path, Err: err}
	}
	if n != len(line) {
		return &TransportError{Op: "write", Path: s.Path, Err: ErrShortWrite}
	}
	return nil
}

// ReadLine reads up to and including the next LF.  If the stream times out
// first, whatever partial text arrived is returned (possibly nothing).
func (s *Session) ReadLine() (string, error) {
	if s.closed {
		return "", &TransportError{Op: "read", Path: s.Path, Err: ErrClosed}
	}
	if s.conn == nil {
		return "", &TransportError{Op: "read", Path: s.Path, Err: ErrNotConnected}
	}
	for {
		if idx := bytes.IndexByte(s.pending, '\n'); idx >= 0 {
			line := string(s.pending[:idx])
			s.pending = s.pending[idx+1:]
			line = strings.TrimRight(line, "\r")
			log.Debugf("Read %q", line)
			return line, nil
		}
		n, err := s.conn.Read(s.buf)
		s.pending = append(s.pending, s.buf[:n]...)
		if err != nil && err != io.EOF {
			return "", &TransportError{Op: "read", Path: s.Path, Err: err}
		}
		if n == 0 {
			// timed out
			line := strings.TrimRight(string(s.pending), "\r")
			s.pending = s.pending[:0]
			if line != "" {
				log.Debugf("Read %q (unterminated)", line)
			}
			return line, nil
		}
	}
}

// Close the connection.  Closing twice is not an error.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.pending = nil
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	if err != nil {
		return &TransportError{Op: "close", Path: s.Path, Err: err}
	}
	log.Debugf("closed %s", s.Path)
	return nil
}
