// Package memstore is an in-process store.Store. It evaluates predicates
// with SQL semantics (NULL operands never match), so trees behave the same
// as on gormstore. Transactions snapshot the table and restore it on error.
package memstore

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/bluesky-social/nestedset/models"
	"github.com/bluesky-social/nestedset/predicate"
	"github.com/bluesky-social/nestedset/store"

	"gorm.io/gorm"
)

var log = slog.Default().With("system", "memstore")

type Options struct {
	// SoftDelete retains deleted rows with a deletion time.
	SoftDelete bool
}

func DefaultOptions() *Options {
	return &Options{}
}

type table struct {
	rows map[models.NodeID]*models.Node
	seq  models.NodeID
}

func (t *table) clone() *table {
	out := &table{rows: make(map[models.NodeID]*models.Node, len(t.rows)), seq: t.seq}
	for id, n := range t.rows {
		out.rows[id] = copyNode(n)
	}
	return out
}

type MemStore struct {
	mu   *sync.Mutex
	tbl  **table
	opts Options

	// inTx is set on the view handed to a transaction callback; that view
	// already holds mu.
	inTx bool
}

var _ store.Store = (*MemStore)(nil)
var _ store.SoftDeleter = (*MemStore)(nil)

func NewMemStore(opts *Options) *MemStore {
	if opts == nil {
		opts = DefaultOptions()
	}
	t := &table{rows: make(map[models.NodeID]*models.Node)}
	return &MemStore{
		mu:   &sync.Mutex{},
		tbl:  &t,
		opts: *opts,
	}
}

func (s *MemStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *MemStore) table() *table {
	return *s.tbl
}

func (s *MemStore) SupportsSoftDelete() bool {
	return s.opts.SoftDelete
}

func (s *MemStore) Find(ctx context.Context, q store.Query) ([]models.Node, error) {
	defer s.lock()()

	ev := s.evaluator()
	var out []*models.Node
	for _, n := range ev.all {
		if s.opts.SoftDelete && !q.WithTrashed && n.DeletedAt.Valid {
			continue
		}
		if ev.match(q.Where, n) {
			out = append(out, n)
		}
	}

	sortRows(out, q.Order)

	if q.Offset > 0 {
		if q.Offset >= len(out) {
			out = nil
		} else {
			out = out[q.Offset:]
		}
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}

	res := make([]models.Node, 0, len(out))
	for _, n := range out {
		c := copyNode(n)
		if q.WithDepth {
			c.Depth = ev.depth(n)
		}
		res = append(res, *c)
	}
	return res, nil
}

func (s *MemStore) Count(ctx context.Context, where predicate.Predicate) (int64, error) {
	defer s.lock()()

	ev := s.evaluator()
	var cnt int64
	for _, n := range ev.all {
		if ev.match(where, n) {
			cnt++
		}
	}
	return cnt, nil
}

func (s *MemStore) Max(ctx context.Context, field predicate.Field, where predicate.Predicate) (int, bool, error) {
	defer s.lock()()

	ev := s.evaluator()
	best, found := 0, false
	for _, n := range ev.all {
		if !ev.match(where, n) {
			continue
		}
		v, ok := fieldValue(n, field)
		if !ok {
			continue
		}
		if !found || int(v) > best {
			best, found = int(v), true
		}
	}
	return best, found, nil
}

// UpdateWhere decides the matching rows before writing any of them, the
// same as a single UPDATE statement would.
func (s *MemStore) UpdateWhere(ctx context.Context, where predicate.Predicate, patch store.Patch) (int64, error) {
	defer s.lock()()

	matched := s.evaluator().filter(where)
	for _, n := range matched {
		n.Lft, n.Rgt = patch.Apply(n.Lft), patch.Apply(n.Rgt)
	}
	return int64(len(matched)), nil
}

func (s *MemStore) DeleteWhere(ctx context.Context, where predicate.Predicate, order store.Order) (int64, error) {
	defer s.lock()()

	matched := s.evaluator().filter(where)
	for _, n := range matched {
		delete(s.table().rows, n.ID)
	}
	return int64(len(matched)), nil
}

// SoftDeleteWhere stamps matching live rows; rows already trashed keep
// their earlier deletion time.
func (s *MemStore) SoftDeleteWhere(ctx context.Context, where predicate.Predicate, at time.Time) (int64, error) {
	if !s.opts.SoftDelete {
		return 0, fmt.Errorf("memstore: soft delete is not enabled")
	}
	defer s.lock()()

	var cnt int64
	for _, n := range s.evaluator().filter(where) {
		if n.DeletedAt.Valid {
			continue
		}
		n.DeletedAt = gorm.DeletedAt{Time: at, Valid: true}
		cnt++
	}
	return cnt, nil
}

func (s *MemStore) RestoreWhere(ctx context.Context, where predicate.Predicate) (int64, error) {
	if !s.opts.SoftDelete {
		return 0, fmt.Errorf("memstore: soft delete is not enabled")
	}
	defer s.lock()()

	var cnt int64
	for _, n := range s.evaluator().filter(where) {
		if !n.DeletedAt.Valid {
			continue
		}
		n.DeletedAt = gorm.DeletedAt{}
		cnt++
	}
	return cnt, nil
}

func (s *MemStore) Create(ctx context.Context, n *models.Node) error {
	defer s.lock()()

	t := s.table()
	if n.ID == 0 {
		t.seq++
		n.ID = t.seq
	} else {
		if _, ok := t.rows[n.ID]; ok {
			return fmt.Errorf("memstore: duplicate id %d", n.ID)
		}
		t.seq = max(t.seq, n.ID)
	}
	t.rows[n.ID] = copyNode(n)
	return nil
}

func (s *MemStore) Save(ctx context.Context, n *models.Node) error {
	defer s.lock()()

	cur, ok := s.table().rows[n.ID]
	if !ok {
		return store.ErrNotFound
	}
	cur.Scope = n.Scope
	cur.Lft, cur.Rgt = n.Lft, n.Rgt
	cur.ParentID = copyID(n.ParentID)
	cur.Name = n.Name
	cur.Attrs = maps.Clone(n.Attrs)
	return nil
}

func (s *MemStore) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	defer s.lock()()

	snap := s.table().clone()
	tx := &MemStore{mu: s.mu, tbl: s.tbl, opts: s.opts, inTx: true}
	if err := fn(tx); err != nil {
		*s.tbl = snap
		log.Debug("rolled back transaction", "err", err)
		return err
	}
	return nil
}

// Len reports the number of stored rows, trashed ones included.
func (s *MemStore) Len() int {
	defer s.lock()()
	return len(s.table().rows)
}

func (s *MemStore) evaluator() *evaluator {
	t := s.table()
	all := make([]*models.Node, 0, len(t.rows))
	for _, n := range t.rows {
		all = append(all, n)
	}
	sortRows(all, store.OrderID)
	return &evaluator{all: all, byID: t.rows}
}

func sortRows(rows []*models.Node, order store.Order) {
	slices.SortFunc(rows, func(a, b *models.Node) int {
		switch order {
		case store.OrderID:
			return cmpInt(int(a.ID), int(b.ID))
		case store.OrderLeftDesc:
			if c := cmpInt(b.Lft, a.Lft); c != 0 {
				return c
			}
			return cmpInt(int(b.ID), int(a.ID))
		default:
			if c := cmpInt(a.Lft, b.Lft); c != 0 {
				return c
			}
			return cmpInt(int(a.ID), int(b.ID))
		}
	})
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func copyID(id *models.NodeID) *models.NodeID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func copyNode(n *models.Node) *models.Node {
	c := *n
	c.ParentID = copyID(n.ParentID)
	c.Attrs = maps.Clone(n.Attrs)
	c.Parent = nil
	c.Children = nil
	c.Depth = 0
	return &c
}
