package bitset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/closmesh/fabric/bitset"
)

func TestSet_Basic(t *testing.T) {
	t.Parallel()

	s := bitset.New(130)
	assert.False(t, s.Any())

	s.Set(0)
	s.Set(64)
	s.Set(129)
	assert.True(t, s.Test(0))
	assert.True(t, s.Test(64))
	assert.True(t, s.Test(129))
	assert.False(t, s.Test(1))
	assert.Equal(t, 3, s.PopCount())
	assert.True(t, s.Any())

	s.Clear(64)
	assert.False(t, s.Test(64))
	assert.Equal(t, 2, s.PopCount())

	s.Reset()
	assert.False(t, s.Any())
	assert.Equal(t, 0, s.PopCount())
}

func TestGrid_Basic(t *testing.T) {
	t.Parallel()

	g := bitset.NewGrid(5, 70)

	g.Set(0, 3)
	g.Set(0, 69)
	g.Set(1, 3)

	assert.True(t, g.Test(0, 3))
	assert.True(t, g.Test(0, 69))
	assert.False(t, g.Test(0, 4))
	assert.True(t, g.Any(0))
	assert.False(t, g.Any(2))
	assert.Equal(t, 2, g.PopCount(0))
	assert.Equal(t, 1, g.PopCount(1))

	var seen []int
	g.ForEach(0, func(bit int) { seen = append(seen, bit) })
	assert.Equal(t, []int{3, 69}, seen)
}

func TestGrid_WordAtAndSetWord(t *testing.T) {
	t.Parallel()

	g := bitset.NewGrid(2, 128)
	g.Set(0, 5)
	g.Set(0, 70)

	wordLow, idxLow := g.WordAt(0, 5)
	assert.NotZero(t, wordLow)
	assert.Equal(t, 0, idxLow)

	// Save, mutate, restore the high word and confirm round-trip.
	wordHigh, idxHigh := g.WordAt(0, 70)
	assert.Equal(t, 1, idxHigh)

	g.SetWord(0, idxHigh, 0)
	assert.False(t, g.Test(0, 70))

	g.SetWord(0, idxHigh, wordHigh)
	assert.True(t, g.Test(0, 70))
}
