package interval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundsArithmetic(t *testing.T) {
	assert := assert.New(t)

	root := Bounds{Left: 1, Right: 20}
	notebooks := Bounds{Left: 2, Right: 7}
	apple := Bounds{Left: 3, Right: 4}
	mobile := Bounds{Left: 8, Right: 19}

	assert.Equal(20, root.Height())
	assert.Equal(9, root.DescendantCount())
	assert.Equal(2, notebooks.DescendantCount())
	assert.Equal(0, apple.DescendantCount())

	assert.True(apple.IsLeaf())
	assert.False(notebooks.IsLeaf())

	assert.True(root.Contains(apple))
	assert.True(notebooks.Contains(apple))
	assert.False(mobile.Contains(apple))
	assert.False(apple.Contains(apple))
	assert.True(apple.ContainsOrSelf(apple))

	assert.True(root.Overlaps(mobile))
	assert.False(notebooks.Overlaps(mobile))

	assert.Equal(Bounds{Left: 5, Right: 6}, apple.Shift(2))
}

func TestBoundsValidity(t *testing.T) {
	assert := assert.New(t)

	assert.True(Bounds{Left: 1, Right: 2}.Valid())
	assert.True(Bounds{Left: 1, Right: 4}.Valid())
	assert.False(Bounds{Left: 1, Right: 3}.Valid())
	assert.False(Bounds{Left: 4, Right: 4}.Valid())
	assert.False(Bounds{Left: 5, Right: 2}.Valid())
	assert.False(Bounds{}.Valid())
}

func TestUnpositionedBounds(t *testing.T) {
	assert := assert.New(t)

	var b Bounds
	assert.False(b.Positioned())
	assert.False(b.IsLeaf())
	assert.Equal(NewNodeHeight, b.Height())
	assert.Equal(0, b.DescendantCount())
}

func TestContainmentIsAntisymmetric(t *testing.T) {
	all := []Bounds{
		{1, 20}, {2, 7}, {3, 4}, {5, 6}, {8, 19}, {9, 10},
		{11, 14}, {12, 13}, {15, 16}, {17, 18}, {21, 22},
	}
	for _, a := range all {
		for _, b := range all {
			if a.Contains(b) && b.Contains(a) {
				t.Fatalf("%s and %s contain each other", a, b)
			}
		}
	}
}
