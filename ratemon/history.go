package ratemon

import (
	"sync"

	"github.com/nuclab/mcfd16/mesytec"
)

// DefaultCapacity is the number of values kept per channel when none is given
const DefaultCapacity = 10

// ring is a fixed capacity circular buffer of float64
type ring struct {
	buf  []float64
	head int // index the next value is written to
	n    int
}

func (r *ring) push(f float64) {
	r.buf[r.head] = f
	r.head = (r.head + 1) % len(r.buf)
	if r.n < len(r.buf) {
		r.n++
	}
}

// contiguous returns a copy of the ring, oldest first
func (r *ring) contiguous() []float64 {
	out := make([]float64, r.n)
	start := (r.head - r.n + len(r.buf)) % len(r.buf)
	for i := 0; i < r.n; i++ {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}

// History holds the most recent rates of every channel in kHz.
// Once a channel is full, each push overwrites its oldest value.
//
// History is safe for one writer and any number of concurrent readers.
type History struct {
	mu    sync.RWMutex
	cap   int
	rings [mesytec.NumChannels]ring
}

// NewHistory creates a History holding capacity values per channel.
// capacity <= 0 uses DefaultCapacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	h := &History{cap: capacity}
	for i := range h.rings {
		h.rings[i].buf = make([]float64, capacity)
	}
	return h
}

// Cap returns the per-channel capacity
func (h *History) Cap() int {
	return h.cap
}

// Push appends one valid sample to its channel.  Invalid samples are dropped.
func (h *History) Push(s mesytec.Sample) {
	if !s.Valid || !s.Channel.Valid() {
		return
	}
	h.mu.Lock()
	h.rings[s.Channel].push(s.KHz)
	h.mu.Unlock()
}

// PushCycle appends every sample of a cycle under one lock, so readers never
// see a half pushed cycle
func (h *History) PushCycle(c Cycle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range c.Samples {
		if s.Valid && s.Channel.Valid() {
			h.rings[s.Channel].push(s.KHz)
		}
	}
}

// Channel returns a copy of the values held for ch, oldest first.
// It returns nil for an invalid channel.
func (h *History) Channel(ch mesytec.Channel) []float64 {
	if !ch.Valid() {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rings[ch].contiguous()
}

// Len returns the number of values held for ch
func (h *History) Len(ch mesytec.Channel) int {
	if !ch.Valid() {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rings[ch].n
}

// Latest returns the newest value of ch, ok is false if there is none
func (h *History) Latest(ch mesytec.Channel) (f float64, ok bool) {
	if !ch.Valid() {
		return 0, false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	r := &h.rings[ch]
	if r.n == 0 {
		return 0, false
	}
	return r.buf[(r.head-1+len(r.buf))%len(r.buf)], true
}

// Snapshot copies every channel, oldest first, indexed by channel
func (h *History) Snapshot() [][]float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([][]float64, len(h.rings))
	for i := range h.rings {
		out[i] = h.rings[i].contiguous()
	}
	return out
}
