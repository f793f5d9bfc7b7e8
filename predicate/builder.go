package predicate

import (
	"github.com/bluesky-social/nestedset/interval"
	"github.com/bluesky-social/nestedset/models"
)

// Target identifies the node a relationship is relative to: either a
// materialized node whose bounds are already known, or a bare id whose
// bounds are resolved by the store through a sub-query.
type Target struct {
	id           models.NodeID
	bounds       interval.Bounds
	materialized bool
}

// Of targets a fetched node. An unpositioned node has empty bounds, so
// relationships relative to it match nothing.
func Of(n *models.Node) Target {
	return Target{id: n.ID, bounds: n.Interval(), materialized: true}
}

// ByID targets a node known only by id.
func ByID(id models.NodeID) Target {
	return Target{id: id}
}

func (t Target) ID() models.NodeID {
	return t.id
}

// Bounds returns the known bounds; ok is false for a bare id.
func (t Target) Bounds() (interval.Bounds, bool) {
	return t.bounds, t.materialized
}

func (t Target) left(offset int) Operand {
	if t.materialized {
		return Const(t.bounds.Left + offset)
	}
	return BoundOf{ID: t.id, Field: Left, Offset: offset}
}

func (t Target) right(offset int) Operand {
	if t.materialized {
		return Const(t.bounds.Right + offset)
	}
	return BoundOf{ID: t.id, Field: Right, Offset: offset}
}

// Builder produces relationship predicates confined to one scope.
type Builder struct {
	Scope string
}

func NewBuilder(scope models.Scope) Builder {
	return Builder{Scope: scope.Key()}
}

func (b Builder) scoped(ps ...Predicate) Predicate {
	return All(append([]Predicate{Scope{Key: b.Scope}}, ps...)...)
}

// All matches every node of the scope.
func (b Builder) All() Predicate {
	return b.scoped()
}

// Where adds the scope restriction to an arbitrary predicate.
func (b Builder) Where(p Predicate) Predicate {
	return b.scoped(p)
}

func (b Builder) Node(id models.NodeID) Predicate {
	return b.scoped(ByIDEq(id))
}

func (b Builder) Nodes(ids ...models.NodeID) Predicate {
	return b.scoped(IDs(ids...))
}

// AncestorsOf matches nodes strictly containing the target:
// left < X.left and right > X.left. andSelf relaxes both comparisons.
func (b Builder) AncestorsOf(t Target, andSelf bool) Predicate {
	lo, hi := Lt, Gt
	if andSelf {
		lo, hi = Le, Ge
	}
	return b.scoped(
		Compare{Field: Left, Op: lo, Value: t.left(0)},
		Compare{Field: Right, Op: hi, Value: t.left(0)},
	)
}

// DescendantsOf matches nodes with left between X.left+1 and X.right.
func (b Builder) DescendantsOf(t Target, andSelf bool) Predicate {
	offset := 1
	if andSelf {
		offset = 0
	}
	return b.scoped(Between{Field: Left, Lo: t.left(offset), Hi: t.right(0)})
}

// NotDescendantsOf is the complement of DescendantsOf within the scope.
func (b Builder) NotDescendantsOf(t Target, andSelf bool) Predicate {
	offset := 1
	if andSelf {
		offset = 0
	}
	return b.scoped(Between{Field: Left, Lo: t.left(offset), Hi: t.right(0), Not: true})
}

func (b Builder) Before(t Target) Predicate {
	return b.scoped(Compare{Field: Left, Op: Lt, Value: t.left(0)})
}

func (b Builder) After(t Target) Predicate {
	return b.scoped(Compare{Field: Left, Op: Gt, Value: t.left(0)})
}

func (b Builder) ChildrenOf(t Target) Predicate {
	return b.scoped(Compare{Field: Parent, Op: Eq, Value: Const(t.id)})
}

// Siblings matches nodes sharing n's parent; roots are siblings of each other.
func (b Builder) Siblings(n *models.Node, andSelf bool) Predicate {
	if andSelf {
		return b.scoped(ParentIs(n.ParentID))
	}
	return b.scoped(ParentIs(n.ParentID), Compare{Field: ID, Op: Ne, Value: Const(n.ID)})
}

func (b Builder) NextSiblings(n *models.Node) Predicate {
	return b.scoped(ParentIs(n.ParentID), Compare{Field: Left, Op: Gt, Value: Const(n.Lft)})
}

func (b Builder) PrevSiblings(n *models.Node) Predicate {
	return b.scoped(ParentIs(n.ParentID), Compare{Field: Left, Op: Lt, Value: Const(n.Lft)})
}

// Leaves matches nodes with right = left + 1.
func (b Builder) Leaves() Predicate {
	return b.scoped(Compare{Field: Right, Op: Eq, Value: Column{Field: Left, Offset: 1}})
}

func (b Builder) HasChildren() Predicate {
	return b.scoped(Compare{Field: Right, Op: Gt, Value: Column{Field: Left, Offset: 1}})
}

func (b Builder) Roots() Predicate {
	return b.scoped(IsNull{Field: Parent})
}

func (b Builder) WithoutRoot() Predicate {
	return b.scoped(IsNull{Field: Parent, Not: true})
}

// AtDepth compares each node's depth (its count of strictly containing
// nodes) with depth.
func (b Builder) AtDepth(op Op, depth int) Predicate {
	return b.scoped(Depth{Op: op, Value: depth})
}

// LeftBetween matches nodes whose left boundary is in [lo, hi].
func (b Builder) LeftBetween(lo, hi int) Predicate {
	return b.scoped(Between{Field: Left, Lo: Const(lo), Hi: Const(hi)})
}

// Touching matches nodes with either boundary in [from, to]; the window a
// move rewrites.
func (b Builder) Touching(from, to int) Predicate {
	return b.scoped(Or{
		Between{Field: Left, Lo: Const(from), Hi: Const(to)},
		Between{Field: Right, Lo: Const(from), Hi: Const(to)},
	})
}

// FromCut matches nodes with either boundary at or past cut; the rows a gap
// shifts.
func (b Builder) FromCut(cut int) Predicate {
	return b.scoped(Or{
		Compare{Field: Left, Op: Ge, Value: Const(cut)},
		Compare{Field: Right, Op: Ge, Value: Const(cut)},
	})
}

// Error class predicates used by the consistency checker.

func (b Builder) Oddness() Predicate           { return b.scoped(Oddness{}) }
func (b Builder) DuplicateBoundary() Predicate { return b.scoped(DuplicateBoundary{}) }
func (b Builder) WrongParent() Predicate       { return b.scoped(WrongParent{}) }
func (b Builder) MissingParent() Predicate     { return b.scoped(MissingParent{}) }
