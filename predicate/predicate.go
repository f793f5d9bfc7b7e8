// Package predicate describes row selections over a nested-set table as a
// small expression tree. Backing stores translate the tree into their own
// query language (SQL for gormstore) or evaluate it directly (memstore).
//
// Correlated predicates (Oddness, DuplicateBoundary, WrongParent,
// MissingParent, Depth) compare a row against other rows of the same scope.
// They see every row of the scope, soft-deleted ones included.
package predicate

import (
	"time"

	"github.com/bluesky-social/nestedset/models"
)

type Field int

const (
	ID Field = iota + 1
	Left
	Right
	Parent
)

// Column is the SQL column backing the field.
func (f Field) Column() string {
	switch f {
	case ID:
		return "id"
	case Left:
		return "lft"
	case Right:
		return "rgt"
	case Parent:
		return "parent_id"
	default:
		return ""
	}
}

type Op int

const (
	Eq Op = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

func (o Op) String() string {
	switch o {
	case Eq:
		return "="
	case Ne:
		return "<>"
	case Lt:
		return "<"
	case Le:
		return "<="
	case Gt:
		return ">"
	case Ge:
		return ">="
	default:
		return "?"
	}
}

// Holds applies the operator to two integers.
func (o Op) Holds(a, b int64) bool {
	switch o {
	case Eq:
		return a == b
	case Ne:
		return a != b
	case Lt:
		return a < b
	case Le:
		return a <= b
	case Gt:
		return a > b
	case Ge:
		return a >= b
	default:
		return false
	}
}

// Operand is the right-hand side of a comparison.
type Operand interface {
	operand()
}

// Const is a literal value.
type Const int64

// Column refers to a column of the row being tested, plus an offset.
type Column struct {
	Field  Field
	Offset int
}

// BoundOf is a sub-query resolving a column of the row with the given id,
// looked up in the scope of the row under test. It yields NULL (and
// therefore no match) when the id does not exist in that scope.
type BoundOf struct {
	ID     models.NodeID
	Field  Field
	Offset int
}

func (Const) operand()   {}
func (Column) operand()  {}
func (BoundOf) operand() {}

type Predicate interface {
	predicate()
}

// True matches every row.
type True struct{}

// Scope restricts rows to one partition key (see models.Scope.Key).
type Scope struct {
	Key string
}

type Compare struct {
	Field Field
	Op    Op
	Value Operand
}

// Between is the inclusive range test Lo <= field <= Hi.
type Between struct {
	Field  Field
	Lo, Hi Operand
	Not    bool
}

type IsNull struct {
	Field Field
	Not   bool
}

type In struct {
	Field  Field
	Values []int64
}

type And []Predicate

type Or []Predicate

type Not struct {
	P Predicate
}

// DeletedSince matches soft-deleted rows whose deletion time is at or after At.
type DeletedSince struct {
	At time.Time
}

// Oddness matches rows whose bounds are inverted or span an odd number of
// values.
type Oddness struct{}

// DuplicateBoundary matches rows sharing any boundary value with another
// row of higher id. Each colliding pair is counted once.
type DuplicateBoundary struct{}

// WrongParent matches rows whose stated parent exists but is not the
// immediate strictly containing node.
type WrongParent struct{}

// MissingParent matches rows with a parent id that does not resolve inside
// the scope.
type MissingParent struct{}

// Depth compares the number of nodes strictly containing the row with Value.
type Depth struct {
	Op    Op
	Value int
}

func (True) predicate()              {}
func (Scope) predicate()             {}
func (Compare) predicate()           {}
func (Between) predicate()           {}
func (IsNull) predicate()            {}
func (In) predicate()                {}
func (And) predicate()               {}
func (Or) predicate()                {}
func (Not) predicate()               {}
func (DeletedSince) predicate()      {}
func (Oddness) predicate()           {}
func (DuplicateBoundary) predicate() {}
func (WrongParent) predicate()       {}
func (MissingParent) predicate()     {}
func (Depth) predicate()             {}

// All conjoins the predicates, flattening nested Ands and dropping Trues.
func All(ps ...Predicate) Predicate {
	var out And
	for _, p := range ps {
		switch v := p.(type) {
		case nil, True:
		case And:
			for _, inner := range v {
				if inner == nil {
					continue
				}
				if _, ok := inner.(True); ok {
					continue
				}
				out = append(out, inner)
			}
		default:
			out = append(out, p)
		}
	}
	switch len(out) {
	case 0:
		return True{}
	case 1:
		return out[0]
	default:
		return out
	}
}

// IDs matches rows whose id is one of ids.
func IDs(ids ...models.NodeID) Predicate {
	vals := make([]int64, len(ids))
	for i, id := range ids {
		vals[i] = int64(id)
	}
	return In{Field: ID, Values: vals}
}

func ByIDEq(id models.NodeID) Predicate {
	return Compare{Field: ID, Op: Eq, Value: Const(id)}
}

// ParentIs matches children of parent; a nil parent matches roots.
func ParentIs(parent *models.NodeID) Predicate {
	if parent == nil {
		return IsNull{Field: Parent}
	}
	return Compare{Field: Parent, Op: Eq, Value: Const(*parent)}
}
