// Package bitset provides a small fixed-width bitset backed by a flat
// []uint64, word-per-64-bits. It exists to represent per-input egress
// and spine membership masks inside the solver's innermost loops,
// where a general-purpose sparse bitmap would cost more in access
// overhead and allocation than it saves in memory (see DESIGN.md).
package bitset

import "math/bits"

// Set is a dense bitset over [0, bits) backed by ceil(bits/64) words.
type Set struct {
	words []uint64
	n     int // number of addressable bits
}

// New allocates a Set capable of holding n bits, all initially clear.
func New(n int) *Set {
	return &Set{
		words: make([]uint64, wordCount(n)),
		n:     n,
	}
}

// wordCount returns the number of 64-bit words needed for n bits.
func wordCount(n int) int {
	return (n + 63) / 64
}

// Set marks bit i as present.
func (s *Set) Set(i int) {
	s.words[i>>6] |= 1 << uint(i&63)
}

// Clear marks bit i as absent.
func (s *Set) Clear(i int) {
	s.words[i>>6] &^= 1 << uint(i&63)
}

// Test reports whether bit i is present.
func (s *Set) Test(i int) bool {
	return s.words[i>>6]&(1<<uint(i&63)) != 0
}

// Any reports whether any bit is set.
func (s *Set) Any() bool {
	for _, w := range s.words {
		if w != 0 {
			return true
		}
	}
	return false
}

// PopCount returns the number of set bits.
func (s *Set) PopCount() int {
	count := 0
	for _, w := range s.words {
		count += bits.OnesCount64(w)
	}
	return count
}

// Reset clears every bit without reallocating the backing storage.
func (s *Set) Reset() {
	for i := range s.words {
		s.words[i] = 0
	}
}

// Grid is a row-major array of n independent Sets, each of width bits,
// used where a bitmask is needed per input identity (rows are 1-based
// friendly: callers may use row 0 as a scratch/unused slot).
type Grid struct {
	rows  int
	bits  int
	words int
	data  []uint64
}

// NewGrid allocates rows independent bitsets, each bits wide.
func NewGrid(rows, bitsWide int) *Grid {
	wc := wordCount(bitsWide)
	return &Grid{
		rows:  rows,
		bits:  bitsWide,
		words: wc,
		data:  make([]uint64, rows*wc),
	}
}

// row returns the word slice backing logical row r.
func (g *Grid) row(r int) []uint64 {
	start := r * g.words
	return g.data[start : start+g.words]
}

// Set marks bit i of row r.
func (g *Grid) Set(r, i int) {
	row := g.row(r)
	row[i>>6] |= 1 << uint(i&63)
}

// Test reports whether bit i of row r is present.
func (g *Grid) Test(r, i int) bool {
	row := g.row(r)
	return row[i>>6]&(1<<uint(i&63)) != 0
}

// Any reports whether any bit of row r is set.
func (g *Grid) Any(r int) bool {
	for _, w := range g.row(r) {
		if w != 0 {
			return true
		}
	}
	return false
}

// PopCount returns the number of set bits in row r.
func (g *Grid) PopCount(r int) int {
	count := 0
	for _, w := range g.row(r) {
		count += bits.OnesCount64(w)
	}
	return count
}

// WordAt returns the raw word holding bit i of row r, and the index of
// that word within the row — used by the solver to save/restore a
// single word as undo state without touching the rest of the row.
func (g *Grid) WordAt(r, i int) (word uint64, wordIndex int) {
	row := g.row(r)
	wordIndex = i >> 6
	return row[wordIndex], wordIndex
}

// SetWord overwrites word index wordIndex of row r — paired with
// WordAt to let callers snapshot/restore a row's word during
// backtracking without reconstructing the whole Set.
func (g *Grid) SetWord(r, wordIndex int, word uint64) {
	g.row(r)[wordIndex] = word
}

// ForEach calls fn with each set bit index in row r, in ascending bit
// order.
func (g *Grid) ForEach(r int, fn func(bit int)) {
	base := 0
	for _, w := range g.row(r) {
		for w != 0 {
			tz := bits.TrailingZeros64(w)
			fn(base + tz)
			w &^= 1 << uint(tz)
		}
		base += 64
	}
}
