package comm

import "strings"

// Fake is a scripted Transport.  Each request line written to it queues the
// canned reply registered for that request; ReadLine pops the queue and
// reports a timeout (empty string) once it is drained.
type Fake struct {
	// Echo makes the fake repeat every request line before its reply,
	// like a terminal with local echo
	Echo bool

	// Written records every line written, terminator stripped
	Written []string

	// WriteErr, if not nil, is returned by every WriteLine
	WriteErr error

	// ReadErr, if not nil, is returned by every ReadLine
	ReadErr error

	// Closed is set once Close has been called
	Closed bool

	// CloseCount counts calls to Close
	CloseCount int

	replies map[string][][]string
	queue   []string
}

// NewFake returns a Fake with no replies registered
func NewFake() *Fake {
	return &Fake{replies: make(map[string][][]string)}
}

// Reply registers the lines answered to req.  Calling Reply several times
// for the same request scripts successive answers; the last one registered
// is repeated once the others are used up.
func (f *Fake) Reply(req string, lines ...string) {
	req = strings.TrimSuffix(req, Terminator)
	f.replies[req] = append(f.replies[req], lines)
}

// Queue appends unsolicited lines to the read queue
func (f *Fake) Queue(lines ...string) {
	f.queue = append(f.queue, lines...)
}

// Pending returns the number of queued lines not yet read
func (f *Fake) Pending() int {
	return len(f.queue)
}

// WriteLine records the line and queues its reply
func (f *Fake) WriteLine(line string) error {
	if f.Closed {
		return &TransportError{Op: "write", Path: "fake", Err: ErrClosed}
	}
	if f.WriteErr != nil {
		return &TransportError{Op: "write", Path: "fake", Err: f.WriteErr}
	}
	line = strings.TrimSuffix(line, Terminator)
	f.Written = append(f.Written, line)
	if f.Echo {
		f.queue = append(f.queue, line)
	}
	sets := f.replies[line]
	if len(sets) == 0 {
		return nil
	}
	f.queue = append(f.queue, sets[0]...)
	if len(sets) > 1 {
		f.replies[line] = sets[1:]
	}
	return nil
}

// ReadLine pops the next queued line, or times out
func (f *Fake) ReadLine() (string, error) {
	if f.Closed {
		return "", &TransportError{Op: "read", Path: "fake", Err: ErrClosed}
	}
	if f.ReadErr != nil {
		return "", &TransportError{Op: "read", Path: "fake", Err: f.ReadErr}
	}
	if len(f.queue) == 0 {
		return "", nil
	}
	line := f.queue[0]
	f.queue = f.queue[1:]
	return line, nil
}

// Close marks the fake closed
func (f *Fake) Close() error {
	f.CloseCount++
	f.Closed = true
	return nil
}
