// Package gormstore implements store.Store on a SQL table through gorm.
// Both sqlite and postgres are supported; predicates compile to plain SQL
// with correlated sub-queries against the tree_nodes table.
package gormstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bluesky-social/nestedset/models"
	"github.com/bluesky-social/nestedset/predicate"
	"github.com/bluesky-social/nestedset/store"

	"gorm.io/gorm"
)

var log = slog.Default().With("system", "gormstore")

type Options struct {
	// SoftDelete stamps deleted_at instead of removing rows.
	SoftDelete bool
}

func DefaultOptions() *Options {
	return &Options{}
}

type GormStore struct {
	db   *gorm.DB
	opts Options
}

var _ store.Store = (*GormStore)(nil)
var _ store.SoftDeleter = (*GormStore)(nil)

func NewGormStore(db *gorm.DB, opts *Options) *GormStore {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &GormStore{db: db, opts: *opts}
}

// Migrate creates or updates the tree_nodes table and its indexes.
func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&models.Node{})
}

func (s *GormStore) SupportsSoftDelete() bool {
	return s.opts.SoftDelete
}

// maintenance is the view every non-read operation runs on: trashed rows
// still hold their interval.
func (s *GormStore) maintenance(ctx context.Context, where predicate.Predicate) *gorm.DB {
	q, args := compile(where)
	return s.db.WithContext(ctx).Unscoped().Model(&models.Node{}).Where(q, args...)
}

func (s *GormStore) Find(ctx context.Context, q store.Query) ([]models.Node, error) {
	where, args := compile(q.Where)

	tx := s.db.WithContext(ctx).Model(&models.Node{})
	if !s.opts.SoftDelete || q.WithTrashed {
		tx = tx.Unscoped()
	}
	if q.WithDepth {
		tx = tx.Select(table + ".*, " + depthExpr + " AS depth")
	}
	tx = tx.Where(where, args...).Order(orderClause(q.Order))
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}

	var out []models.Node
	if err := tx.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("finding nodes: %w", err)
	}
	return out, nil
}

func (s *GormStore) Count(ctx context.Context, where predicate.Predicate) (int64, error) {
	var cnt int64
	if err := s.maintenance(ctx, where).Count(&cnt).Error; err != nil {
		return 0, fmt.Errorf("counting nodes: %w", err)
	}
	return cnt, nil
}

func (s *GormStore) Max(ctx context.Context, field predicate.Field, where predicate.Predicate) (int, bool, error) {
	var v sql.NullInt64
	row := s.maintenance(ctx, where).Select("max(" + col(field) + ")").Row()
	if err := row.Scan(&v); err != nil {
		return 0, false, fmt.Errorf("max of %s: %w", field.Column(), err)
	}
	if !v.Valid {
		return 0, false, nil
	}
	return int(v.Int64), true, nil
}

func (s *GormStore) UpdateWhere(ctx context.Context, where predicate.Predicate, patch store.Patch) (int64, error) {
	if patch.Empty() {
		return 0, nil
	}
	lq, largs := caseExpr("lft", patch)
	rq, rargs := caseExpr("rgt", patch)

	res := s.maintenance(ctx, where).Updates(map[string]any{
		"lft": gorm.Expr(lq, largs...),
		"rgt": gorm.Expr(rq, rargs...),
	})
	if res.Error != nil {
		return 0, fmt.Errorf("shifting nodes: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteWhere issues a single DELETE; the table has no self-referencing
// foreign key, so the order hint is not needed.
func (s *GormStore) DeleteWhere(ctx context.Context, where predicate.Predicate, order store.Order) (int64, error) {
	res := s.maintenance(ctx, where).Delete(&models.Node{})
	if res.Error != nil {
		return 0, fmt.Errorf("deleting nodes: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormStore) SoftDeleteWhere(ctx context.Context, where predicate.Predicate, at time.Time) (int64, error) {
	if !s.opts.SoftDelete {
		return 0, fmt.Errorf("gormstore: soft delete is not enabled")
	}
	res := s.maintenance(ctx, where).Where(table+".deleted_at is null").Update("deleted_at", at)
	if res.Error != nil {
		return 0, fmt.Errorf("trashing nodes: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormStore) RestoreWhere(ctx context.Context, where predicate.Predicate) (int64, error) {
	if !s.opts.SoftDelete {
		return 0, fmt.Errorf("gormstore: soft delete is not enabled")
	}
	res := s.maintenance(ctx, where).Where(table+".deleted_at is not null").Update("deleted_at", nil)
	if res.Error != nil {
		return 0, fmt.Errorf("restoring nodes: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormStore) Create(ctx context.Context, n *models.Node) error {
	explicit := n.ID != 0
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("node %d already exists: %w", n.ID, err)
		}
		return fmt.Errorf("creating node: %w", err)
	}
	if explicit && s.db.Dialector.Name() == "postgres" {
		// keep the id sequence ahead of explicitly inserted ids
		err := s.db.WithContext(ctx).Exec(`SELECT setval(pg_get_serial_sequence('tree_nodes', 'id'), GREATEST((SELECT max(id) FROM tree_nodes), 1))`).Error
		if err != nil {
			return fmt.Errorf("advancing id sequence: %w", err)
		}
	}
	return nil
}

func (s *GormStore) Save(ctx context.Context, n *models.Node) error {
	res := s.db.WithContext(ctx).Unscoped().Model(n).
		Select("scope", "lft", "rgt", "parent_id", "name", "attrs").
		Updates(n)
	if res.Error != nil {
		return fmt.Errorf("saving node %d: %w", n.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx, opts: s.opts})
	})
}

// Truncate removes every row of every scope.
func (s *GormStore) Truncate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&models.Node{}).Error; err != nil {
		return fmt.Errorf("truncating: %w", err)
	}
	log.Info("truncated tree_nodes")
	return nil
}
