package mesytec

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrNoise is returned by ParseLine for echoes, prompts, error tokens,
	// blank lines and anything else that is not a rate line
	ErrNoise = errors.New("mesytec: not a telemetry line")

	// ErrNoTelemetry is wrapped in a ParseError when none of the lines read
	// after a rate request carried a rate for the requested channel
	ErrNoTelemetry = errors.New("mesytec: no telemetry in response")

	// ErrChannelRange is wrapped in a ParseError when a header names a
	// channel that does not exist
	ErrChannelRange = errors.New("mesytec: channel index out of range")

	// ErrNegativeRate is wrapped in a ParseError for negative or non-finite rates
	ErrNegativeRate = errors.New("mesytec: rate is negative or not finite")
)

// ParseError is a telemetry line whose numeric text could not be converted.
// It only ever spoils the poll cycle it occurred in.
type ParseError struct {
	Channel Channel
	Line    string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Line == "" {
		return fmt.Sprintf("mesytec: %v: %v", e.Channel, e.Err)
	}
	return fmt.Sprintf("mesytec: %v: cannot parse %q: %v", e.Channel, e.Line, e.Err)
}

// Unwrap returns the underlying error
func (e *ParseError) Unwrap() error {
	return e.Err
}

// header matches the leading text of one kind of rate line and maps its
// index to a Channel
type header struct {
	re     *regexp.Regexp
	offset Channel
	limit  int // number of valid indices, 0 if the header carries none
}

// headers are tried in order
var headers = []header{
	{re: regexp.MustCompile(`rate channel\s*([0-9]+)\s*:`), offset: 0, limit: NumInputs},
	{re: regexp.MustCompile(`trigger rate\s*([0-9]+)\s*:`), offset: FirstTrigger, limit: int(Sum - FirstTrigger)},
	{re: regexp.MustCompile(`sum rate\s*:`), offset: Sum},
}

// unitRE finds the first unit token; alternatives are ordered so that
// prefixed units win over the bare Hz they contain
var unitRE = regexp.MustCompile(`MHz|kHz|Hz`)

// matchHeader finds a rate header in line and returns the channel and the
// text after the header.  ok is false if no header matched.
func matchHeader(line string) (ch Channel, rest string, ok bool, err error) {
	for _, h := range headers {
		m := h.re.FindStringSubmatchIndex(line)
		if m == nil {
			continue
		}
		rest = line[m[1]:]
		if h.limit == 0 {
			return h.offset, rest, true, nil
		}
		idx, err := strconv.Atoi(line[m[2]:m[3]])
		if err != nil || idx >= h.limit {
			return h.offset, rest, true, ErrChannelRange
		}
		return h.offset + Channel(idx), rest, true, nil
	}
	return 0, "", false, nil
}

// matchUnit finds the unit token in text and returns it along with text
// with the token removed.  unit is empty if there was none.
func matchUnit(text string) (unit, rest string) {
	loc := unitRE.FindStringIndex(text)
	if loc == nil {
		return "", text
	}
	return text[loc[0]:loc[1]], text[:loc[0]] + text[loc[1]:]
}

// toKHz converts a value in the given unit to kHz.  Values without a unit
// are assumed to already be in kHz.
func toKHz(v float64, unit string) float64 {
	switch unit {
	case "Hz":
		return v / 1000
	case "MHz":
		return v * 1000
	default:
		return v
	}
}

// parseNumber converts the numeric text left after the header and unit
// are removed
func parseNumber(text string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrNegativeRate
	}
	return f, nil
}

// ParseLine classifies one response line.  A telemetry line carries a rate
// header and a unit token; it is converted to a valid Sample in kHz or, if
// its number is malformed, a *ParseError.  Every other line returns ErrNoise.
func ParseLine(line string) (Sample, error) {
	ch, rest, ok, err := matchHeader(line)
	if !ok {
		return Sample{}, ErrNoise
	}
	unit, numeric := matchUnit(rest)
	if unit == "" {
		return Sample{}, ErrNoise
	}
	if err != nil {
		return Sample{Channel: ch}, &ParseError{Channel: ch, Line: line, Err: err}
	}
	v, err := parseNumber(numeric)
	if err != nil {
		return Sample{Channel: ch}, &ParseError{Channel: ch, Line: line, Err: err}
	}
	return Sample{Channel: ch, KHz: toKHz(v, unit), Valid: true}, nil
}

// ParseResponse runs ParseLine over every line of a response and returns the
// samples found in order along with the parse failures.  Noise is dropped.
func ParseResponse(lines []string) ([]Sample, []*ParseError) {
	var (
		samples []Sample
		errs    []*ParseError
	)
	for _, line := range lines {
		s, err := ParseLine(line)
		if err == nil {
			samples = append(samples, s)
			continue
		}
		var perr *ParseError
		if errors.As(err, &perr) {
			errs = append(errs, perr)
		}
	}
	return samples, errs
}
