// Package rng manages one independent 32-bit random stream per particle slot.
//
// Each slot's state is a single uint32 advanced by a PCG output permutation.
// A slot's initial state depends only on its index (plus a run-wide offset),
// so runs with the same slot count replay bit-identically.
package rng

import (
	"errors"
	"fmt"
)

// ErrSlotCount is returned when a stream set is requested for a non-positive count.
var ErrSlotCount = errors.New("rng: slot count must be positive")

// State is the random state owned by one particle slot.
type State uint32

// hash applies the PCG-RXS-M-XS permutation to x.
func hash(x uint32) uint32 {
	b := x*747796405 + 2891336453
	c := ((b >> ((b >> 28) + 4)) ^ b) * 277803737
	return (c >> 22) ^ c
}

// Seed returns the initial state for a slot.
func Seed(slot int, offset uint32) State {
	return State(hash(uint32(slot) + offset))
}

// Sample draws one uniform value in [0, 1) and returns the advanced state.
// Only the top 24 bits are used so the value is exact in a float32 mantissa.
func Sample(s State) (float64, State) {
	next := hash(uint32(s))
	return float64(next>>8) * (1.0 / 16777216.0), State(next)
}

// Streams holds one state per particle slot. Slot i is only ever read or
// written by the dispatch unit processing slot i.
type Streams struct {
	states []State
}

// NewStreams seeds count slots deterministically.
func NewStreams(count int, offset uint32) (*Streams, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrSlotCount, count)
	}
	states := make([]State, count)
	for i := range states {
		states[i] = Seed(i, offset)
	}
	return &Streams{states: states}, nil
}

// Len returns the number of slots.
func (s *Streams) Len() int {
	return len(s.states)
}

// State returns the current state of a slot.
func (s *Streams) State(slot int) State {
	return s.states[slot]
}

// Store writes back a slot's advanced state.
func (s *Streams) Store(slot int, st State) {
	s.states[slot] = st
}

// Draw samples one value from a slot and advances it in place.
func (s *Streams) Draw(slot int) float64 {
	v, next := Sample(s.states[slot])
	s.states[slot] = next
	return v
}

// Clone returns an independent copy of every slot's state.
func (s *Streams) Clone() *Streams {
	states := make([]State, len(s.states))
	copy(states, s.states)
	return &Streams{states: states}
}
