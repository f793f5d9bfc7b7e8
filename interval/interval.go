// Package interval holds the (left, right) bounds arithmetic of the nested
// set model. Every function here is pure and O(1).
//
// A node occupies the closed range [Left, Right] of a scope's coordinate
// space. Two nodes in the same scope are either disjoint or one strictly
// contains the other; containment encodes ancestry.
package interval

import (
	"errors"
	"fmt"
)

// ErrUnpositioned is returned when bounds are requested from a node that has
// not been placed in a tree yet.
var ErrUnpositioned = errors.New("interval: bounds are not set")

// NewNodeHeight is the width one childless node takes in the coordinate space.
const NewNodeHeight = 2

type Bounds struct {
	Left  int
	Right int
}

func (b Bounds) String() string {
	return fmt.Sprintf("[%d,%d]", b.Left, b.Right)
}

// Positioned reports whether both boundaries have been assigned.
func (b Bounds) Positioned() bool {
	return b.Left != 0 && b.Right != 0
}

// Valid reports whether b could belong to a consistent tree: positive,
// ordered, and spanning an even number of values.
func (b Bounds) Valid() bool {
	return b.Left > 0 && b.Left < b.Right && (b.Right-b.Left)%2 == 1
}

// Height is the number of boundary values the node and its subtree consume.
func (b Bounds) Height() int {
	if !b.Positioned() {
		return NewNodeHeight
	}
	return b.Right - b.Left + 1
}

func (b Bounds) DescendantCount() int {
	h := b.Height()
	return (h+1)/2 - 1
}

func (b Bounds) IsLeaf() bool {
	return b.Positioned() && b.Left+1 == b.Right
}

// Contains reports strict containment: other is a descendant of b.
func (b Bounds) Contains(other Bounds) bool {
	return other.Left > b.Left && other.Left < b.Right
}

// ContainsOrSelf is Contains relaxed to include b itself.
func (b Bounds) ContainsOrSelf(other Bounds) bool {
	return other.Left >= b.Left && other.Left < b.Right
}

// Overlaps reports whether the two ranges share any boundary value. For
// distinct nodes of a valid tree this is true exactly when one contains the
// other.
func (b Bounds) Overlaps(other Bounds) bool {
	return b.Left <= other.Right && other.Left <= b.Right
}

// Shift returns b moved by delta.
func (b Bounds) Shift(delta int) Bounds {
	return Bounds{Left: b.Left + delta, Right: b.Right + delta}
}
