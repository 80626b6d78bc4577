// Package util contains misc internal utilities.
package util

import (
	"strconv"
	"strings"
)

// Limiter describes an inclusive [Min, Max] domain
type Limiter struct {
	Min float64 `yaml:"Min"`
	Max float64 `yaml:"Max"`
}

// Check returns true if f lies within the limits
func (l Limiter) Check(f float64) bool {
	return f >= l.Min && f <= l.Max
}

// FloatSliceToTSV converts a slice of floats to a single tab separated line
// using the shortest representation that round trips.
// e.g., []float64{1.5,2,0.25} => "1.5\t2\t0.25"
func FloatSliceToTSV(fs []float64) string {
	s := make([]string, len(fs))
	for i, v := range fs {
		s[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(s, "\t")
}
