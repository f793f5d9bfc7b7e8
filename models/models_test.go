package models

import (
	"errors"
	"testing"

	"github.com/bluesky-social/nestedset/interval"

	"github.com/stretchr/testify/assert"
)

func TestNodeRelationships(t *testing.T) {
	assert := assert.New(t)

	store := &Node{ID: 1, Lft: 1, Rgt: 20}
	notebooks := &Node{ID: 2, Lft: 2, Rgt: 7, ParentID: Ref(1)}
	apple := &Node{ID: 3, Lft: 3, Rgt: 4, ParentID: Ref(2)}
	lenovo := &Node{ID: 4, Lft: 5, Rgt: 6, ParentID: Ref(2)}
	mobile := &Node{ID: 5, Lft: 8, Rgt: 19, ParentID: Ref(1)}

	assert.True(store.IsRoot())
	assert.False(apple.IsRoot())

	assert.True(apple.IsDescendantOf(store))
	assert.True(store.IsAncestorOf(apple))
	assert.False(apple.IsDescendantOf(mobile))
	assert.False(apple.IsDescendantOf(apple))
	assert.True(apple.IsSelfOrDescendantOf(apple))
	assert.True(notebooks.IsSelfOrAncestorOf(apple))

	assert.True(apple.IsChildOf(notebooks))
	assert.False(apple.IsChildOf(store))
	assert.True(apple.IsSiblingOf(lenovo))
	assert.True(notebooks.IsSiblingOf(mobile))
	assert.False(apple.IsSiblingOf(mobile))

	assert.True(apple.IsLeaf())
	assert.Equal(12, mobile.Height())
	assert.Equal(5, mobile.DescendantCount())
}

func TestUnpositionedNode(t *testing.T) {
	assert := assert.New(t)

	n := &Node{Name: "fresh"}
	_, err := n.Bounds()
	assert.True(errors.Is(err, interval.ErrUnpositioned))
	assert.True(n.IsRoot())
	assert.False(n.IsLeaf())

	root := &Node{ID: 1, Lft: 1, Rgt: 2}
	assert.False(root.IsDescendantOf(n))
	assert.False(n.IsAncestorOf(root))
}

func TestScopeKey(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("", Scope{}.Key())
	assert.Equal("menu_id=1", Scope{"menu_id": "1"}.Key())
	assert.Equal("a=x;menu_id=2", Scope{"menu_id": "2", "a": "x"}.Key())

	s, err := ParseScope("menu_id=2, a=x")
	assert.NoError(err)
	assert.Equal("a=x;menu_id=2", s.Key())

	_, err = ParseScope("menu_id")
	assert.Error(err)
}
