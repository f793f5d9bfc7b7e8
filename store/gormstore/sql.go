package gormstore

import (
	"fmt"
	"strings"

	"github.com/bluesky-social/nestedset/predicate"
	"github.com/bluesky-social/nestedset/store"
)

const table = "tree_nodes"

// col qualifies a column with the outer table so correlated sub-queries can
// refer back to the row under test.
func col(f predicate.Field) string {
	return table + "." + f.Column()
}

type sqlBuf struct {
	sb   strings.Builder
	args []any
}

func (b *sqlBuf) write(s string, args ...any) {
	b.sb.WriteString(s)
	b.args = append(b.args, args...)
}

// compile renders p as a WHERE fragment with positional arguments.
func compile(p predicate.Predicate) (string, []any) {
	var b sqlBuf
	b.pred(p)
	return b.sb.String(), b.args
}

func (b *sqlBuf) operand(o predicate.Operand) {
	switch v := o.(type) {
	case predicate.Const:
		b.write("?", int64(v))
	case predicate.Column:
		if v.Offset == 0 {
			b.write(col(v.Field))
			return
		}
		b.write("("+col(v.Field)+" + ?)", v.Offset)
	case predicate.BoundOf:
		// confined to the scope of the row under test
		b.write(fmt.Sprintf("(select _n.%[1]s + ? from %[2]s _n where _n.id = ? and _n.scope = %[2]s.scope limit 1)", v.Field.Column(), table), v.Offset, int64(v.ID))
	default:
		b.write("NULL")
	}
}

func (b *sqlBuf) join(ps []predicate.Predicate, sep, empty string) {
	if len(ps) == 0 {
		b.write(empty)
		return
	}
	b.write("(")
	for i, p := range ps {
		if i > 0 {
			b.write(sep)
		}
		b.pred(p)
	}
	b.write(")")
}

func (b *sqlBuf) pred(p predicate.Predicate) {
	switch v := p.(type) {
	case nil, predicate.True:
		b.write("1=1")

	case predicate.Scope:
		b.write(table+".scope = ?", v.Key)

	case predicate.Compare:
		b.write(col(v.Field) + " " + v.Op.String() + " ")
		b.operand(v.Value)

	case predicate.Between:
		b.write(col(v.Field))
		if v.Not {
			b.write(" not")
		}
		b.write(" between ")
		b.operand(v.Lo)
		b.write(" and ")
		b.operand(v.Hi)

	case predicate.IsNull:
		if v.Not {
			b.write(col(v.Field) + " is not null")
		} else {
			b.write(col(v.Field) + " is null")
		}

	case predicate.In:
		if len(v.Values) == 0 {
			b.write("1=0")
			return
		}
		b.write(col(v.Field)+" in ?", v.Values)

	case predicate.And:
		b.join(v, " and ", "1=1")

	case predicate.Or:
		b.join(v, " or ", "1=0")

	case predicate.Not:
		b.write("not (")
		b.pred(v.P)
		b.write(")")

	case predicate.DeletedSince:
		b.write(table+".deleted_at >= ?", v.At)

	case predicate.Oddness:
		b.write(fmt.Sprintf("(%[1]s.lft >= %[1]s.rgt or (%[1]s.rgt - %[1]s.lft) %% 2 = 0)", table))

	case predicate.DuplicateBoundary:
		b.write(fmt.Sprintf(`exists (select 1 from %[1]s _c2 where _c2.scope = %[1]s.scope and _c2.id > %[1]s.id`+
			` and (_c2.lft = %[1]s.lft or _c2.rgt = %[1]s.rgt or _c2.lft = %[1]s.rgt or _c2.rgt = %[1]s.lft))`, table))

	case predicate.WrongParent:
		b.write(fmt.Sprintf(`exists (select 1 from %[1]s _p where _p.id = %[1]s.parent_id and _p.scope = %[1]s.scope`+
			` and (%[1]s.lft not between _p.lft and _p.rgt`+
			` or exists (select 1 from %[1]s _i where _i.scope = %[1]s.scope and _i.id <> _p.id and _i.id <> %[1]s.id`+
			` and %[1]s.lft between _i.lft and _i.rgt and _i.lft between _p.lft and _p.rgt)))`, table))

	case predicate.MissingParent:
		b.write(fmt.Sprintf(`(%[1]s.parent_id is not null and not exists`+
			` (select 1 from %[1]s _mp where _mp.id = %[1]s.parent_id and _mp.scope = %[1]s.scope))`, table))

	case predicate.Depth:
		b.write(depthExpr+" "+v.Op.String()+" ?", v.Value)

	default:
		b.write("1=0")
	}
}

var depthExpr = fmt.Sprintf(`(select count(1) from %[1]s _d where _d.scope = %[1]s.scope and _d.lft < %[1]s.lft and _d.rgt > %[1]s.lft)`, table)

// caseExpr renders a piecewise patch of one boundary column as a CASE
// expression. Arms are tested in order, matching store.Patch.Apply.
func caseExpr(column string, patch store.Patch) (string, []any) {
	var b sqlBuf
	b.write("case")
	for _, s := range patch.Shifts {
		if s.Hi == store.Unbounded {
			b.write(fmt.Sprintf(" when %s >= ? then %s + ?", column, column), s.Lo, s.Delta)
			continue
		}
		b.write(fmt.Sprintf(" when %s between ? and ? then %s + ?", column, column), s.Lo, s.Hi, s.Delta)
	}
	b.write(" else " + column + " end")
	return b.sb.String(), b.args
}

func orderClause(o store.Order) string {
	switch o {
	case store.OrderLeftDesc:
		return table + ".lft desc, " + table + ".id desc"
	case store.OrderID:
		return table + ".id asc"
	default:
		return table + ".lft asc, " + table + ".id asc"
	}
}
