package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPatchApply(t *testing.T) {
	assert := assert.New(t)

	gap := Patch{Shifts: []Shift{{Lo: 5, Hi: Unbounded, Delta: 2}}}
	assert.Equal(4, gap.Apply(4))
	assert.Equal(7, gap.Apply(5))
	assert.Equal(102, gap.Apply(100))

	// moving [3,4] to position 20: the node slides forward, the range
	// between slides back by the node's height
	move := Patch{Shifts: []Shift{
		{Lo: 3, Hi: 4, Delta: 15},
		{Lo: 3, Hi: 19, Delta: -2},
	}}
	assert.Equal(18, move.Apply(3))
	assert.Equal(19, move.Apply(4))
	assert.Equal(3, move.Apply(5))
	assert.Equal(17, move.Apply(19))
	assert.Equal(20, move.Apply(20))
	assert.Equal(2, move.Apply(2))

	assert.True(Patch{}.Empty())
	assert.Equal(9, Patch{}.Apply(9))
}
