package mesytec_test

import (
	"errors"
	"testing"

	"github.com/nuclab/mcfd16/mesytec"
)

func TestParseLineTelemetry(t *testing.T) {
	cases := []struct {
		line string
		ch   mesytec.Channel
		khz  float64
	}{
		{"rate channel 3: 12.5 kHz", 3, 12.5},
		{"rate channel 3: 1200 Hz", 3, 1.2},
		{"sum rate : 2.0 MHz", mesytec.Sum, 2000},
		{"rate channel 15:0 kHz", 15, 0},
		{"trigger rate0: 7 kHz", 16, 7},
		{"trigger rate 2 : 250 Hz", 18, 0.25},
		{"  rate channel 0: 3.5 kHz  ", 0, 3.5},
	}
	for _, c := range cases {
		s, err := mesytec.ParseLine(c.line)
		if err != nil {
			t.Errorf("%q: unexpected error %v", c.line, err)
			continue
		}
		if !s.Valid {
			t.Errorf("%q: expected a valid sample", c.line)
		}
		if s.Channel != c.ch {
			t.Errorf("%q: expected channel %v, got %v", c.line, c.ch, s.Channel)
		}
		if s.KHz != c.khz {
			t.Errorf("%q: expected %v kHz, got %v", c.line, c.khz, s.KHz)
		}
	}
}

func TestParseLineNoise(t *testing.T) {
	noise := []string{
		"",
		"mcfd-16>",
		"ERROR!",
		"ra 3",
		"rate channel 3:",
		"rate channel 3: 12.5",
		"Firmware version: 2.13",
		"12.5 kHz",
	}
	for _, line := range noise {
		_, err := mesytec.ParseLine(line)
		if !errors.Is(err, mesytec.ErrNoise) {
			t.Errorf("%q: expected ErrNoise, got %v", line, err)
		}
	}
}

func TestParseLineMalformed(t *testing.T) {
	cases := []struct {
		line string
		ch   mesytec.Channel
		want error
	}{
		{"rate channel 7: abc kHz", 7, nil},
		{"rate channel 7: -3 kHz", 7, mesytec.ErrNegativeRate},
		{"rate channel 7: NaN kHz", 7, mesytec.ErrNegativeRate},
		{"rate channel 16: 3 kHz", 0, mesytec.ErrChannelRange},
		{"trigger rate3: 3 kHz", mesytec.FirstTrigger, mesytec.ErrChannelRange},
	}
	for _, c := range cases {
		s, err := mesytec.ParseLine(c.line)
		var perr *mesytec.ParseError
		if !errors.As(err, &perr) {
			t.Errorf("%q: expected *ParseError, got %v", c.line, err)
			continue
		}
		if s.Valid {
			t.Errorf("%q: expected sample to be invalid", c.line)
		}
		if perr.Channel != c.ch {
			t.Errorf("%q: expected channel %v, got %v", c.line, c.ch, perr.Channel)
		}
		if perr.Line != c.line {
			t.Errorf("%q: expected line to be kept in the error, got %q", c.line, perr.Line)
		}
		if c.want != nil && !errors.Is(err, c.want) {
			t.Errorf("%q: expected %v, got %v", c.line, c.want, err)
		}
	}
}

func TestParseResponse(t *testing.T) {
	lines := []string{
		"ra 4",
		"rate channel 4: 1.5 kHz",
		"rate channel 5: bogus kHz",
		"mcfd-16>",
		"",
	}
	samples, errs := mesytec.ParseResponse(lines)
	if len(samples) != 1 || samples[0].Channel != 4 || samples[0].KHz != 1.5 {
		t.Errorf("expected one sample of 1.5 kHz on ch4, got %+v", samples)
	}
	if len(errs) != 1 || errs[0].Channel != 5 {
		t.Errorf("expected one parse error on ch5, got %v", errs)
	}
}
