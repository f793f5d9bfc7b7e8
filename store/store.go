// Package store defines the ordered record store the nested-set engine runs
// on top of. Implementations live in gormstore (SQL) and memstore.
//
// Reads through Find exclude soft-deleted rows unless asked otherwise. Every
// other operation works on the maintenance view, which includes soft-deleted
// rows: they keep occupying their interval until they are purged.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/bluesky-social/nestedset/models"
	"github.com/bluesky-social/nestedset/predicate"
)

var ErrNotFound = errors.New("record not found")

type Order int

const (
	// OrderLeft sorts by lft ascending (the tree's pre-order).
	OrderLeft Order = iota
	// OrderLeftDesc sorts by lft descending.
	OrderLeftDesc
	// OrderID sorts by id ascending.
	OrderID
)

type Query struct {
	Where predicate.Predicate
	Order Order

	// zero means no limit
	Limit  int
	Offset int

	// WithDepth fills models.Node.Depth with the count of strictly
	// containing nodes.
	WithDepth bool

	WithTrashed bool
}

// Shift is one arm of a piecewise rewrite: a boundary value inside [Lo, Hi]
// moves by Delta. Hi == Unbounded leaves the range open upwards.
type Shift struct {
	Lo, Hi int
	Delta  int
}

const Unbounded = int(^uint(0) >> 1)

// Patch rewrites lft and rgt independently: each column takes the first
// matching Shift, or stays unchanged if none matches.
type Patch struct {
	Shifts []Shift
}

// Apply computes the patched value of one boundary column.
func (p Patch) Apply(v int) int {
	for _, s := range p.Shifts {
		if v >= s.Lo && (s.Hi == Unbounded || v <= s.Hi) {
			return v + s.Delta
		}
	}
	return v
}

func (p Patch) Empty() bool {
	return len(p.Shifts) == 0
}

type Store interface {
	// Find returns matching rows ordered as requested.
	Find(ctx context.Context, q Query) ([]models.Node, error)

	Count(ctx context.Context, where predicate.Predicate) (int64, error)

	// Max returns the largest value of field among matching rows; ok is
	// false when nothing matched.
	Max(ctx context.Context, field predicate.Field, where predicate.Predicate) (v int, ok bool, err error)

	// UpdateWhere applies patch to every matching row in one statement and
	// returns the number of rows touched.
	UpdateWhere(ctx context.Context, where predicate.Predicate, patch Patch) (int64, error)

	// DeleteWhere hard-deletes matching rows. order is a hint for stores
	// that check referential constraints row by row.
	DeleteWhere(ctx context.Context, where predicate.Predicate, order Order) (int64, error)

	// Create inserts n, assigning n.ID when it is zero.
	Create(ctx context.Context, n *models.Node) error

	// Save writes the tree columns and payload of an existing row.
	Save(ctx context.Context, n *models.Node) error

	// Transaction runs fn against a transactional view of the store. An
	// error from fn rolls back everything fn did.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

// SoftDeleter is implemented by stores that can retain deleted records.
// SupportsSoftDelete lets one implementation be configured either way.
type SoftDeleter interface {
	SupportsSoftDelete() bool
	SoftDeleteWhere(ctx context.Context, where predicate.Predicate, at time.Time) (int64, error)
	RestoreWhere(ctx context.Context, where predicate.Predicate) (int64, error)
}

// SoftDeletes reports whether st is configured to soft-delete.
func SoftDeletes(st Store) (SoftDeleter, bool) {
	sd, ok := st.(SoftDeleter)
	if !ok || !sd.SupportsSoftDelete() {
		return nil, false
	}
	return sd, true
}

// Get fetches one row by id from the maintenance view.
func Get(ctx context.Context, st Store, scope string, id models.NodeID) (*models.Node, error) {
	rows, err := st.Find(ctx, Query{
		Where:       predicate.All(predicate.Scope{Key: scope}, predicate.ByIDEq(id)),
		Limit:       1,
		WithTrashed: true,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}
