package mesytec_test

import (
	"errors"
	"testing"

	"github.com/nuclab/mcfd16/comm"
	"github.com/nuclab/mcfd16/mesytec"
)

func TestCanonicalScriptOrder(t *testing.T) {
	head := []string{
		"bwl 0", "cfd 1", "sk 0", "sc 36", "sv 0", "gs 0", "ga 1 5", "p 0",
		"sm 0 3",
		"tm 0 0", "tm 1 3",
		"tr 0 1", "tr 1 4", "tr 2 18",
		"tp 0 255", "tp 1 255", "tp 2 255", "tp 3 255",
		"sp 0 1", "sg 0 1", "sw 0 16", "sd 0 27", "sy 0 1", "sf 0 40",
		"sp 1 1",
	}
	script := mesytec.CanonicalScript()
	if len(script) != 18+6*mesytec.NumPairs+2*mesytec.NumInputs {
		t.Fatalf("expected 98 commands, got %d", len(script))
	}
	for i, want := range head {
		if got := script[i].String(); got != want {
			t.Errorf("step %d: expected %q, got %q", i, want, got)
		}
	}
	tail := script[len(script)-4:]
	wantTail := []string{"st 14 0", "pa 14 255", "st 15 0", "pa 15 255"}
	for i, want := range wantTail {
		if got := tail[i].String(); got != want {
			t.Errorf("tail %d: expected %q, got %q", i, want, got)
		}
	}
	for i, c := range script {
		if err := c.Validate(); err != nil {
			t.Errorf("step %d (%s) does not validate: %v", i, c, err)
		}
	}
}

func TestInitializeWritesScript(t *testing.T) {
	f := comm.NewFake()
	f.Echo = true
	m := mesytec.New(f)
	if err := m.Initialize(); err != nil {
		t.Fatal(err)
	}
	script := mesytec.CanonicalScript()
	if len(f.Written) != len(script) {
		t.Fatalf("expected %d lines written, got %d", len(script), len(f.Written))
	}
	for i, c := range script {
		if f.Written[i] != c.String() {
			t.Errorf("line %d: expected %q, got %q", i, c.String(), f.Written[i])
		}
	}
	if f.Pending() != 0 {
		t.Errorf("expected every echo to be cleared, %d pending", f.Pending())
	}
}

func TestInitializeIdempotent(t *testing.T) {
	f := comm.NewFake()
	m := mesytec.New(f)
	if err := m.Initialize(); err != nil {
		t.Fatal(err)
	}
	first := append([]string(nil), f.Written...)
	if err := m.Initialize(); err != nil {
		t.Fatal(err)
	}
	second := f.Written[len(first):]
	if len(second) != len(first) {
		t.Fatalf("expected the second run to send %d lines, got %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("line %d differs between runs: %q vs %q", i, first[i], second[i])
		}
	}
}

func TestInitializeStopsOnError(t *testing.T) {
	f := comm.NewFake()
	f.ReadErr = errors.New("gone")
	m := mesytec.New(f)
	err := m.Initialize()
	var terr *comm.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected *comm.TransportError, got %v", err)
	}
	if len(f.Written) != 1 {
		t.Errorf("expected to stop after the first command, %d written", len(f.Written))
	}
}
