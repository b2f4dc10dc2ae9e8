// Package probe calibrates the bit-order mapping between logical qubits and
// the measurement channels the hardware actually reports them on. Readout
// order on the device is not guaranteed to match logical qubit indexing, so
// before any search circuit runs, each qubit is excited alone and the channel
// that lights up is recorded.
package probe

import (
	"fmt"
	"sort"
)

// BitOrderMap maps logical bit positions to measurement channels. Channel 0
// is the least significant output, the rightmost character of a returned
// bitstring. The mapping is partial (qubits can be unresolved) and injective
// (no channel serves two qubits).
type BitOrderMap struct {
	width int
	chans map[int]int
}

// NewBitOrderMap returns an empty mapping over width logical bits.
func NewBitOrderMap(width int) *BitOrderMap {
	return &BitOrderMap{width: width, chans: make(map[int]int, width)}
}

// Identity returns the mapping bit i -> channel i, fully resolved.
func Identity(width int) *BitOrderMap {
	m := NewBitOrderMap(width)
	for i := 0; i < width; i++ {
		m.chans[i] = i
	}
	return m
}

// Width returns the number of logical bits the map covers.
func (m *BitOrderMap) Width() int { return m.width }

// Set records that logical bit maps to channel. It fails if the bit is out
// of range, already resolved, or the channel is already claimed; injectivity
// is never silently broken.
func (m *BitOrderMap) Set(bit, channel int) error {
	if bit < 0 || bit >= m.width {
		return fmt.Errorf("bit %d outside width %d", bit, m.width)
	}
	if prev, ok := m.chans[bit]; ok {
		return fmt.Errorf("bit %d already mapped to channel %d", bit, prev)
	}
	for b, ch := range m.chans {
		if ch == channel {
			return fmt.Errorf("channel %d already claimed by bit %d", channel, b)
		}
	}
	m.chans[bit] = channel
	return nil
}

// Channel returns the measurement channel for a logical bit, if resolved.
func (m *BitOrderMap) Channel(bit int) (int, bool) {
	ch, ok := m.chans[bit]
	return ch, ok
}

// Resolved returns the calibrated bit positions in ascending order.
func (m *BitOrderMap) Resolved() []int {
	bits := make([]int, 0, len(m.chans))
	for b := range m.chans {
		bits = append(bits, b)
	}
	sort.Ints(bits)
	return bits
}

// Unresolved returns the bit positions calibration could not settle, in
// ascending order.
func (m *BitOrderMap) Unresolved() []int {
	var bits []int
	for b := 0; b < m.width; b++ {
		if _, ok := m.chans[b]; !ok {
			bits = append(bits, b)
		}
	}
	return bits
}

// WithIdentityFallback returns a total mapping where every unresolved bit is
// backfilled with its own index, plus the exact list of backfilled positions.
// The caller records that list in run metadata: an assumed identity must stay
// distinguishable from a calibrated one.
func (m *BitOrderMap) WithIdentityFallback() (*BitOrderMap, []int) {
	out := NewBitOrderMap(m.width)
	for b, ch := range m.chans {
		out.chans[b] = ch
	}
	backfilled := m.Unresolved()
	for _, b := range backfilled {
		out.chans[b] = b
	}
	if backfilled == nil {
		backfilled = []int{}
	}
	return out, backfilled
}

// ToMap exports the resolved entries for report serialization.
func (m *BitOrderMap) ToMap() map[int]int {
	out := make(map[int]int, len(m.chans))
	for b, ch := range m.chans {
		out[b] = ch
	}
	return out
}
