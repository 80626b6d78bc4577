package ratemon

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/nuclab/mcfd16/util"
)

// Sink receives every committed cycle
type Sink interface {
	Append(Cycle) error
	Flush() error
}

// TSVLog writes one line per cycle: the rate of channels 0~19 in kHz,
// tab separated, newline terminated.  Writes are buffered until Flush.
type TSVLog struct {
	path string
	w    *bufio.Writer
	c    io.Closer
}

// NewTSVLog returns a TSVLog writing to w
func NewTSVLog(w io.Writer) *TSVLog {
	l := &TSVLog{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		l.c = c
	}
	return l
}

// CreateLog creates (or truncates) the file at path and returns a TSVLog
// writing to it
func CreateLog(path string) (*TSVLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("ratemon: creating log: %w", err)
	}
	l := NewTSVLog(f)
	l.path = path
	return l, nil
}

// Path returns the file the log writes to, or "" if it was not created by CreateLog
func (l *TSVLog) Path() string {
	return l.path
}

// Append writes a cycle as one line
func (l *TSVLog) Append(c Cycle) error {
	_, err := l.w.WriteString(util.FloatSliceToTSV(c.Values()) + "\n")
	return err
}

// Flush writes any buffered lines to the underlying writer
func (l *TSVLog) Flush() error {
	return l.w.Flush()
}

// Close flushes the log and closes the underlying writer if it is closable
func (l *TSVLog) Close() error {
	err := l.Flush()
	if l.c != nil {
		if cerr := l.c.Close(); err == nil {
			err = cerr
		}
		l.c = nil
	}
	return err
}
