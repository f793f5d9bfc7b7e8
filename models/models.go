package models

import (
	"github.com/bluesky-social/nestedset/interval"

	"gorm.io/gorm"
)

type NodeID int64

// Node is one record of a nested-set forest. Lft and Rgt are zero until the
// node has been positioned.
type Node struct {
	ID        NodeID         `gorm:"primarykey" json:"id"`
	Scope     string         `gorm:"index:idx_tree_nodes_scope_lft,priority:1;index:idx_tree_nodes_scope_rgt,priority:1" json:"scope,omitempty"`
	Lft       int            `gorm:"column:lft;index:idx_tree_nodes_scope_lft,priority:2" json:"lft"`
	Rgt       int            `gorm:"column:rgt;index:idx_tree_nodes_scope_rgt,priority:2" json:"rgt"`
	ParentID  *NodeID        `gorm:"index" json:"parent_id"`
	Name      string         `json:"name"`
	Attrs     map[string]any `gorm:"serializer:json" json:"attrs,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// Depth is only populated by queries that ask for it.
	Depth int `gorm:"->;-:migration" json:"depth,omitempty"`

	// in-memory links filled by tree.Build
	Parent   *Node   `gorm:"-" json:"-"`
	Children []*Node `gorm:"-" json:"children,omitempty"`
}

func (Node) TableName() string {
	return "tree_nodes"
}

func (n *Node) Interval() interval.Bounds {
	return interval.Bounds{Left: n.Lft, Right: n.Rgt}
}

// Bounds returns the node's interval, or interval.ErrUnpositioned if the
// node has not been placed yet.
func (n *Node) Bounds() (interval.Bounds, error) {
	b := n.Interval()
	if !b.Positioned() {
		return b, interval.ErrUnpositioned
	}
	return b, nil
}

func (n *Node) SetBounds(b interval.Bounds) {
	n.Lft = b.Left
	n.Rgt = b.Right
}

func (n *Node) Positioned() bool {
	return n.Interval().Positioned()
}

func (n *Node) Height() int {
	return n.Interval().Height()
}

func (n *Node) DescendantCount() int {
	return n.Interval().DescendantCount()
}

func (n *Node) IsRoot() bool {
	return n.ParentID == nil
}

func (n *Node) IsLeaf() bool {
	return n.Interval().IsLeaf()
}

func (n *Node) IsDescendantOf(other *Node) bool {
	return other.Positioned() && other.Interval().Contains(n.Interval())
}

func (n *Node) IsSelfOrDescendantOf(other *Node) bool {
	return other.Positioned() && other.Interval().ContainsOrSelf(n.Interval())
}

func (n *Node) IsAncestorOf(other *Node) bool {
	return other.IsDescendantOf(n)
}

func (n *Node) IsSelfOrAncestorOf(other *Node) bool {
	return other.IsSelfOrDescendantOf(n)
}

func (n *Node) IsChildOf(other *Node) bool {
	return n.ParentID != nil && *n.ParentID == other.ID
}

func (n *Node) IsSiblingOf(other *Node) bool {
	return SameParent(n.ParentID, other.ParentID)
}

func (n *Node) SetParent(p *Node) {
	if p == nil {
		n.ParentID = nil
		return
	}
	n.ParentID = Ref(p.ID)
}

// ParentKey is the node's parent id, or zero for a root. Stores never
// assign zero as an id.
func (n *Node) ParentKey() NodeID {
	if n.ParentID == nil {
		return 0
	}
	return *n.ParentID
}

func Ref(id NodeID) *NodeID {
	return &id
}

func SameParent(a, b *NodeID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
