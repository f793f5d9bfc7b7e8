package memstore

import (
	"github.com/bluesky-social/nestedset/models"
	"github.com/bluesky-social/nestedset/predicate"
)

// tri is a three-valued SQL truth value.
type tri int8

const (
	no tri = iota
	yes
	unknown
)

func truth(b bool) tri {
	if b {
		return yes
	}
	return no
}

func (t tri) not() tri {
	switch t {
	case yes:
		return no
	case no:
		return yes
	default:
		return unknown
	}
}

type evaluator struct {
	// all rows, trashed included, ordered by id
	all  []*models.Node
	byID map[models.NodeID]*models.Node
}

func (ev *evaluator) match(p predicate.Predicate, n *models.Node) bool {
	if p == nil {
		return true
	}
	return ev.eval(p, n) == yes
}

func (ev *evaluator) filter(p predicate.Predicate) []*models.Node {
	var out []*models.Node
	for _, n := range ev.all {
		if ev.match(p, n) {
			out = append(out, n)
		}
	}
	return out
}

func fieldValue(n *models.Node, f predicate.Field) (int64, bool) {
	switch f {
	case predicate.ID:
		return int64(n.ID), true
	case predicate.Left:
		return int64(n.Lft), true
	case predicate.Right:
		return int64(n.Rgt), true
	case predicate.Parent:
		if n.ParentID == nil {
			return 0, false
		}
		return int64(*n.ParentID), true
	default:
		return 0, false
	}
}

func (ev *evaluator) operand(o predicate.Operand, n *models.Node) (int64, bool) {
	switch v := o.(type) {
	case predicate.Const:
		return int64(v), true
	case predicate.Column:
		x, ok := fieldValue(n, v.Field)
		return x + int64(v.Offset), ok
	case predicate.BoundOf:
		other, ok := ev.byID[v.ID]
		if !ok || other.Scope != n.Scope {
			return 0, false
		}
		x, ok := fieldValue(other, v.Field)
		return x + int64(v.Offset), ok
	default:
		return 0, false
	}
}

func (ev *evaluator) eval(p predicate.Predicate, n *models.Node) tri {
	switch v := p.(type) {
	case nil, predicate.True:
		return yes

	case predicate.Scope:
		return truth(n.Scope == v.Key)

	case predicate.Compare:
		a, ok := fieldValue(n, v.Field)
		b, ok2 := ev.operand(v.Value, n)
		if !ok || !ok2 {
			return unknown
		}
		return truth(v.Op.Holds(a, b))

	case predicate.Between:
		x, ok := fieldValue(n, v.Field)
		lo, ok2 := ev.operand(v.Lo, n)
		hi, ok3 := ev.operand(v.Hi, n)
		if !ok || !ok2 || !ok3 {
			return unknown
		}
		in := x >= lo && x <= hi
		return truth(in != v.Not)

	case predicate.IsNull:
		_, ok := fieldValue(n, v.Field)
		return truth(ok == v.Not)

	case predicate.In:
		x, ok := fieldValue(n, v.Field)
		if !ok {
			return unknown
		}
		for _, val := range v.Values {
			if val == x {
				return yes
			}
		}
		return no

	case predicate.And:
		res := yes
		for _, inner := range v {
			switch ev.eval(inner, n) {
			case no:
				return no
			case unknown:
				res = unknown
			}
		}
		return res

	case predicate.Or:
		res := no
		for _, inner := range v {
			switch ev.eval(inner, n) {
			case yes:
				return yes
			case unknown:
				res = unknown
			}
		}
		return res

	case predicate.Not:
		return ev.eval(v.P, n).not()

	case predicate.DeletedSince:
		if !n.DeletedAt.Valid {
			return unknown
		}
		return truth(!n.DeletedAt.Time.Before(v.At))

	case predicate.Oddness:
		return truth(n.Lft >= n.Rgt || (n.Rgt-n.Lft)%2 == 0)

	case predicate.DuplicateBoundary:
		for _, o := range ev.all {
			if o.Scope != n.Scope || o.ID <= n.ID {
				continue
			}
			if n.Lft == o.Lft || n.Rgt == o.Rgt || n.Lft == o.Rgt || n.Rgt == o.Lft {
				return yes
			}
		}
		return no

	case predicate.WrongParent:
		return truth(ev.wrongParent(n))

	case predicate.MissingParent:
		if n.ParentID == nil {
			return no
		}
		p, ok := ev.byID[*n.ParentID]
		return truth(!ok || p.Scope != n.Scope)

	case predicate.Depth:
		return truth(v.Op.Holds(int64(ev.depth(n)), int64(v.Value)))

	default:
		return no
	}
}

func between(x, lo, hi int) bool {
	return x >= lo && x <= hi
}

// wrongParent reports a row whose parent exists but either does not contain
// it or has another node of the scope in between.
func (ev *evaluator) wrongParent(n *models.Node) bool {
	if n.ParentID == nil {
		return false
	}
	p, ok := ev.byID[*n.ParentID]
	if !ok || p.Scope != n.Scope {
		return false
	}
	if !between(n.Lft, p.Lft, p.Rgt) {
		return true
	}
	for _, i := range ev.all {
		if i.Scope != n.Scope || i.ID == p.ID || i.ID == n.ID {
			continue
		}
		if between(n.Lft, i.Lft, i.Rgt) && between(i.Lft, p.Lft, p.Rgt) {
			return true
		}
	}
	return false
}

func (ev *evaluator) depth(n *models.Node) int {
	d := 0
	for _, o := range ev.all {
		if o.Scope == n.Scope && o.Lft < n.Lft && o.Rgt > n.Lft {
			d++
		}
	}
	return d
}
