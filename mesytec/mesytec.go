/*
Package mesytec provides tools for working with the Mesytec MCFD-16, a 16
channel constant-fraction discriminator in NIM format.

The module speaks an ASCII line protocol over its USB serial port (9600 baud).
Commands look like <mnemonic><space><arguments separated by spaces><CR LF>,
for example "sw 3 16" sets the width of channel pair 3.  The module answers
every line with an echo, free text and a prompt; rate queries ("ra <n>")
answer with a line such as

	rate channel 3: 12.5 kHz

Channels 0-15 are the physical inputs, 16-18 the trigger rates and 19 the sum
rate.  See Channel.
*/
package mesytec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nuclab/mcfd16/comm"
	log "github.com/sirupsen/logrus"
)

const (
	// NumInputs is the number of physical input channels
	NumInputs = 16

	// NumPairs is the number of channel pairs sharing analog settings
	NumPairs = 8

	// NumChannels is the number of rate channels, inputs + triggers + sum
	NumChannels = 20

	// DefaultLines is the number of lines read after every command
	DefaultLines = 5
)

// Channel is a rate channel index, 0~19
type Channel int

const (
	// FirstTrigger is the channel of trigger rate 0
	FirstTrigger Channel = 16

	// Sum is the aggregate channel
	Sum Channel = 19
)

// Valid returns true if c is in [0,19]
func (c Channel) Valid() bool {
	return c >= 0 && c < NumChannels
}

func (c Channel) String() string {
	switch {
	case c >= 0 && c < NumInputs:
		return "ch" + strconv.Itoa(int(c))
	case c >= FirstTrigger && c < Sum:
		return "trig" + strconv.Itoa(int(c-FirstTrigger))
	case c == Sum:
		return "sum"
	}
	return fmt.Sprintf("Channel(%d)", int(c))
}

// Sample is one rate reading, normalized to kHz
type Sample struct {
	Channel Channel `json:"channel"`
	KHz     float64 `json:"khz"`
	Valid   bool    `json:"valid"`
}

// KnownVersions are the identification lines of the firmware and software
// this package was written against
var KnownVersions = []string{"Firmware version: 2.13", "Software version: 2.19"}

// ProtocolMismatch is returned by Identify when the module does not report
// a known firmware or software version.  It is not fatal.
type ProtocolMismatch struct {
	Got []string
}

func (e *ProtocolMismatch) Error() string {
	return fmt.Sprintf("mesytec: unknown firmware/software version, module replied %q", e.Got)
}

// MCFD16 drives a module over a comm.Transport.
//
// Every setter is followed by a clear step: the driver reads and discards
// ClearLines lines before it writes again.  The count, not a timer, keeps
// the half-duplex link in step with the module's per-line acknowledgements.
type MCFD16 struct {
	t comm.Transport

	// ClearLines is the number of lines drained after every setter
	ClearLines int

	// ResponseLines is the number of lines read after a query
	ResponseLines int
}

// New creates a new MCFD16 on an open transport
func New(t comm.Transport) *MCFD16 {
	return &MCFD16{t: t, ClearLines: DefaultLines, ResponseLines: DefaultLines}
}

// Transport returns the underlying transport
func (m *MCFD16) Transport() comm.Transport {
	return m.t
}

// Exec validates and sends a setter command, then performs the clear step
func (m *MCFD16) Exec(c Command) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := m.t.WriteLine(c.Encode()); err != nil {
		return err
	}
	return m.clear()
}

func (m *MCFD16) clear() error {
	for i := 0; i < m.ClearLines; i++ {
		line, err := m.t.ReadLine()
		if err != nil {
			return err
		}
		if line != "" {
			log.Debugf("mesytec: discarded %q", line)
		}
	}
	return nil
}

// Query validates and sends a command, then returns the ResponseLines
// lines read after it.  Lines that timed out are returned empty.
func (m *MCFD16) Query(c Command) ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := m.t.WriteLine(c.Encode()); err != nil {
		return nil, err
	}
	lines := make([]string, 0, m.ResponseLines)
	for i := 0; i < m.ResponseLines; i++ {
		line, err := m.t.ReadLine()
		if err != nil {
			return lines, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// Identify asks the module for its version and checks it against
// KnownVersions.  A *ProtocolMismatch is returned with the version text if no
// known version was reported; transport errors are returned as is.
func (m *MCFD16) Identify() (string, error) {
	lines, err := m.Query(Command{Mnemonic: Version})
	if err != nil {
		return "", err
	}
	var got []string
	for _, line := range lines {
		for _, v := range KnownVersions {
			if strings.Contains(line, v) {
				return strings.TrimSpace(line), nil
			}
		}
		if strings.Contains(strings.ToLower(line), "version") {
			got = append(got, strings.TrimSpace(line))
		}
	}
	return strings.Join(got, "; "), &ProtocolMismatch{Got: got}
}

// ReadRate requests the rate of one channel and returns the first sample
// reported for it.  Lines that do not parse are skipped; if none yields a
// sample for ch the first parse failure is returned, or a *ParseError
// wrapping ErrNoTelemetry if nothing resembled telemetry at all.
func (m *MCFD16) ReadRate(ch Channel) (Sample, error) {
	lines, err := m.Query(Command{Mnemonic: ReadRate, Args: []int{int(ch)}})
	if err != nil {
		return Sample{Channel: ch}, err
	}
	var first *ParseError
	for _, line := range lines {
		s, err := ParseLine(line)
		if err != nil {
			var perr *ParseError
			if errors.As(err, &perr) && first == nil {
				first = perr
			}
			continue
		}
		if s.Channel != ch {
			log.Debugf("mesytec: skipped stale sample for %v while reading %v", s.Channel, ch)
			continue
		}
		return s, nil
	}
	if first != nil {
		return Sample{Channel: ch}, first
	}
	return Sample{Channel: ch}, &ParseError{Channel: ch, Err: ErrNoTelemetry}
}
