package mesytec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nuclab/mcfd16/comm"
	"github.com/nuclab/mcfd16/util"
)

// Mnemonic is the leading token of a command line
type Mnemonic string

// setters
const (
	Polarity       Mnemonic = "sp"  // sp <pair> <0=pos|1=neg>
	Gain           Mnemonic = "sg"  // sg <pair> <gain>
	BandwidthLimit Mnemonic = "bwl" // bwl <0|1>
	CFDMode        Mnemonic = "cfd" // cfd <0=LE|1=CFD>
	Threshold      Mnemonic = "st"  // st <channel> <threshold>
	Width          Mnemonic = "sw"  // sw <pair> <width>
	DeadTime       Mnemonic = "sd"  // sd <pair> <dead time>
	Delay          Mnemonic = "sy"  // sy <pair> <delay line tap>
	Fraction       Mnemonic = "sf"  // sf <pair> <20|40 percent>
	Coincidence    Mnemonic = "sc"  // sc <window>
	TriggerSource  Mnemonic = "tr"  // tr <trigger> <source pattern>
	TriggerMonitor Mnemonic = "tm"  // tm <monitor> <channel>
	TriggerPattern Mnemonic = "tp"  // tp <pattern> <byte mask>
	Veto           Mnemonic = "sv"  // sv <0|1>
	GateSource     Mnemonic = "gs"  // gs <source>
	GateTiming     Mnemonic = "ga"  // ga <edge> <width>
	Multiplicity   Mnemonic = "sm"  // sm <lower> <upper>
	Pairing        Mnemonic = "pa"  // pa <channel> <pattern>
	Mask           Mnemonic = "sk"  // sk <mask>
	Pulser         Mnemonic = "p"   // p <0=off|1|2>
)

// queries
const (
	ReadRate Mnemonic = "ra" // ra <channel 0~19>
	Version  Mnemonic = "v"
)

// argument domains.  index 8 of the pair and 16 of the channel
// address all pairs/channels at once.
var (
	pairIdx    = util.Limiter{Min: 0, Max: NumPairs}
	channelIdx = util.Limiter{Min: 0, Max: NumInputs}
	rateIdx    = util.Limiter{Min: 0, Max: NumChannels - 1}
	onOff      = util.Limiter{Min: 0, Max: 1}
	byteVal    = util.Limiter{Min: 0, Max: 255}
)

// Domains lists, per mnemonic, the allowed range of each positional argument.
// Its length is the arity of the command.
var Domains = map[Mnemonic][]util.Limiter{
	Polarity:       {pairIdx, onOff},
	Gain:           {pairIdx, {Min: 0, Max: 2}},
	BandwidthLimit: {onOff},
	CFDMode:        {onOff},
	Threshold:      {channelIdx, byteVal},
	Width:          {pairIdx, {Min: 16, Max: 222}},
	DeadTime:       {pairIdx, {Min: 27, Max: 222}},
	Delay:          {pairIdx, {Min: 1, Max: 5}},
	Fraction:       {pairIdx, {Min: 20, Max: 40}},
	Coincidence:    {byteVal},
	TriggerSource:  {{Min: 0, Max: 2}, byteVal},
	TriggerMonitor: {{Min: 0, Max: 1}, {Min: 0, Max: NumInputs - 1}},
	TriggerPattern: {{Min: 0, Max: 3}, byteVal},
	Veto:           {onOff},
	GateSource:     {onOff},
	GateTiming:     {onOff, byteVal},
	Multiplicity:   {{Min: 0, Max: NumInputs}, {Min: 0, Max: NumInputs}},
	Pairing:        {channelIdx, byteVal},
	Mask:           {byteVal},
	Pulser:         {{Min: 0, Max: 2}},
	ReadRate:       {rateIdx},
	Version:        {},
}

// RangeError is returned when a command is malformed or one of its arguments
// lies outside the documented domain.  It is raised before anything is sent.
type RangeError struct {
	Mnemonic Mnemonic
	Arg      int // position of the offending argument, -1 for arity/unknown
	Value    int
	Limits   util.Limiter
	Msg      string
}

func (e *RangeError) Error() string {
	if e.Arg < 0 {
		return fmt.Sprintf("mesytec: %s: %s", e.Mnemonic, e.Msg)
	}
	return fmt.Sprintf("mesytec: %s argument %d = %d outside [%v, %v]",
		e.Mnemonic, e.Arg, e.Value, e.Limits.Min, e.Limits.Max)
}

// Encode renders a command line: the mnemonic, then each argument in decimal,
// single space separated, terminated by CR LF.  No validation is done.
func Encode(m Mnemonic, args ...int) string {
	var b strings.Builder
	b.WriteString(string(m))
	for _, a := range args {
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(a))
	}
	b.WriteString(comm.Terminator)
	return b.String()
}

// Command is a mnemonic with its positional arguments
type Command struct {
	Mnemonic Mnemonic
	Args     []int
}

// Encode renders the command, see Encode
func (c Command) Encode() string {
	return Encode(c.Mnemonic, c.Args...)
}

func (c Command) String() string {
	return strings.TrimSuffix(c.Encode(), comm.Terminator)
}

// Validate checks the mnemonic is known, the arity matches and every
// argument is within its domain
func (c Command) Validate() error {
	dom, ok := Domains[c.Mnemonic]
	if !ok {
		return &RangeError{Mnemonic: c.Mnemonic, Arg: -1, Msg: "unknown mnemonic"}
	}
	if len(c.Args) != len(dom) {
		return &RangeError{Mnemonic: c.Mnemonic, Arg: -1,
			Msg: fmt.Sprintf("takes %d arguments, got %d", len(dom), len(c.Args))}
	}
	for i, a := range c.Args {
		if !dom[i].Check(float64(a)) {
			return &RangeError{Mnemonic: c.Mnemonic, Arg: i, Value: a, Limits: dom[i]}
		}
	}
	if c.Mnemonic == Multiplicity && c.Args[0] > c.Args[1] {
		return &RangeError{Mnemonic: c.Mnemonic, Arg: -1,
			Msg: fmt.Sprintf("lower bound %d above upper bound %d", c.Args[0], c.Args[1])}
	}
	return nil
}

// SetPolarity sets the input polarity of a channel pair, 1 is negative
func (m *MCFD16) SetPolarity(pair, val int) error {
	return m.Exec(Command{Polarity, []int{pair, val}})
}

// SetGain sets the preamplifier gain of a channel pair
func (m *MCFD16) SetGain(pair, val int) error {
	return m.Exec(Command{Gain, []int{pair, val}})
}

// SetBandwidthLimit turns the bandwidth limit on (1) or off (0)
func (m *MCFD16) SetBandwidthLimit(val int) error {
	return m.Exec(Command{BandwidthLimit, []int{val}})
}

// SetCFD selects constant fraction (1) or leading edge (0) discrimination
func (m *MCFD16) SetCFD(val int) error {
	return m.Exec(Command{CFDMode, []int{val}})
}

// SetThreshold sets the threshold of a single channel
func (m *MCFD16) SetThreshold(channel, val int) error {
	return m.Exec(Command{Threshold, []int{channel, val}})
}

// SetWidth sets the output width of a channel pair
func (m *MCFD16) SetWidth(pair, val int) error {
	return m.Exec(Command{Width, []int{pair, val}})
}

// SetDeadTime sets the dead time of a channel pair
func (m *MCFD16) SetDeadTime(pair, val int) error {
	return m.Exec(Command{DeadTime, []int{pair, val}})
}

// SetDelayLine selects the delay line tap of a channel pair
func (m *MCFD16) SetDelayLine(pair, val int) error {
	return m.Exec(Command{Delay, []int{pair, val}})
}

// SetFraction sets the CFD fraction of a channel pair in percent
func (m *MCFD16) SetFraction(pair, val int) error {
	return m.Exec(Command{Fraction, []int{pair, val}})
}

// SetCoincidence sets the coincidence window
func (m *MCFD16) SetCoincidence(val int) error {
	return m.Exec(Command{Coincidence, []int{val}})
}

// SetTriggerSource binds trigger output 0~2 to a source pattern
func (m *MCFD16) SetTriggerSource(trigger, val int) error {
	return m.Exec(Command{TriggerSource, []int{trigger, val}})
}

// SetTriggerMonitor routes a channel to monitor output 0 or 1
func (m *MCFD16) SetTriggerMonitor(monitor, channel int) error {
	return m.Exec(Command{TriggerMonitor, []int{monitor, channel}})
}

// SetTriggerPattern sets byte pattern 0~3
func (m *MCFD16) SetTriggerPattern(pattern, val int) error {
	return m.Exec(Command{TriggerPattern, []int{pattern, val}})
}

// SetVeto turns the veto input on or off
func (m *MCFD16) SetVeto(val int) error {
	return m.Exec(Command{Veto, []int{val}})
}

// SetGateSource selects the gate source
func (m *MCFD16) SetGateSource(val int) error {
	return m.Exec(Command{GateSource, []int{val}})
}

// SetGateTiming sets the gate edge (1 is falling) and width
func (m *MCFD16) SetGateTiming(edge, val int) error {
	return m.Exec(Command{GateTiming, []int{edge, val}})
}

// SetMultiplicity sets the lower and upper multiplicity bounds
func (m *MCFD16) SetMultiplicity(lower, upper int) error {
	return m.Exec(Command{Multiplicity, []int{lower, upper}})
}

// SetPairing sets the coincidence pairing pattern of a channel, 255 is global
func (m *MCFD16) SetPairing(channel, val int) error {
	return m.Exec(Command{Pairing, []int{channel, val}})
}

// SetMask sets the channel mask, 0 unmasks all
func (m *MCFD16) SetMask(val int) error {
	return m.Exec(Command{Mask, []int{val}})
}

// SetPulser sets the test pulser state, 0 is off
func (m *MCFD16) SetPulser(val int) error {
	return m.Exec(Command{Pulser, []int{val}})
}
