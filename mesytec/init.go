package mesytec

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// CanonicalScript returns the commands that put a module into the operating
// state used for rate monitoring, in the order they are sent:
//
//	bwl 0, cfd 1, sk 0, sc 36, sv 0, gs 0, ga 1 5, p 0
//	sm 0 3
//	tm 0 0, tm 1 3
//	tr 0 1, tr 1 4, tr 2 18
//	tp 0..3 255
//	per pair:    sp i 1, sg i 1, sw i 16, sd i 27, sy i 1, sf i 40
//	per channel: st i 0, pa i 255
//
// The script sets absolute values only, so sending it twice leaves the
// module in the same state as sending it once.
func CanonicalScript() []Command {
	script := []Command{
		{BandwidthLimit, []int{0}},
		{CFDMode, []int{1}},
		{Mask, []int{0}},
		{Coincidence, []int{36}},
		{Veto, []int{0}},
		{GateSource, []int{0}},
		{GateTiming, []int{1, 5}},
		{Pulser, []int{0}},
		{Multiplicity, []int{0, 3}},
		{TriggerMonitor, []int{0, 0}},
		{TriggerMonitor, []int{1, 3}},
		{TriggerSource, []int{0, 1}},
		{TriggerSource, []int{1, 4}},
		{TriggerSource, []int{2, 18}},
	}
	for i := 0; i < 4; i++ {
		script = append(script, Command{TriggerPattern, []int{i, 255}})
	}
	for i := 0; i < NumPairs; i++ {
		script = append(script,
			Command{Polarity, []int{i, 1}},
			Command{Gain, []int{i, 1}},
			Command{Width, []int{i, 16}},
			Command{DeadTime, []int{i, 27}},
			Command{Delay, []int{i, 1}},
			Command{Fraction, []int{i, 40}})
	}
	for i := 0; i < NumInputs; i++ {
		script = append(script,
			Command{Threshold, []int{i, 0}},
			Command{Pairing, []int{i, 255}})
	}
	return script
}

// Initialize runs CanonicalScript against the module.  It stops at the first
// error; a failed step is reported with its position in the script.
func (m *MCFD16) Initialize() error {
	script := CanonicalScript()
	for i, c := range script {
		if err := m.Exec(c); err != nil {
			return fmt.Errorf("mesytec: init step %d (%s): %w", i, c, err)
		}
	}
	log.Infof("mesytec: initialized, %d commands sent", len(script))
	return nil
}
