package nestedset

import (
	"context"
	"fmt"

	"github.com/bluesky-social/nestedset/models"
	"github.com/bluesky-social/nestedset/mutation"
	"github.com/bluesky-social/nestedset/predicate"
	"github.com/bluesky-social/nestedset/store"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// subtreeDeleter removes a node together with everything inside its
// interval. Which variant a tree uses depends on the store's capability.
type subtreeDeleter interface {
	mode() string
	deleteSubtree(ctx context.Context, t *Tree, tx store.Store, n *models.Node) (int64, error)
}

type hardDeleter struct{}

func (hardDeleter) mode() string { return "hard" }

// deleteSubtree removes the rows deepest first, then closes the gap.
func (hardDeleter) deleteSubtree(ctx context.Context, t *Tree, tx store.Store, n *models.Node) (int64, error) {
	b := n.Interval()
	cnt, err := tx.DeleteWhere(ctx, t.b.DescendantsOf(predicate.Of(n), true), store.OrderLeftDesc)
	if err != nil {
		return 0, err
	}
	rw := mutation.Close(b)
	shifted, err := tx.UpdateWhere(ctx, rw.Where(t.b), rw.Patch)
	if err != nil {
		return 0, err
	}
	rowsShifted.Add(float64(shifted))
	return cnt, nil
}

type softDeleter struct {
	sd store.SoftDeleter
}

func (softDeleter) mode() string { return "soft" }

// deleteSubtree stamps the whole interval. Trashed rows keep their bounds,
// so no gap is closed.
func (d softDeleter) deleteSubtree(ctx context.Context, t *Tree, tx store.Store, n *models.Node) (int64, error) {
	sd := d.sd
	if txsd, ok := store.SoftDeletes(tx); ok {
		sd = txsd
	}
	return sd.SoftDeleteWhere(ctx, t.b.DescendantsOf(predicate.Of(n), true), t.now())
}

func (t *Tree) deleter() subtreeDeleter {
	if sd, ok := store.SoftDeletes(t.st); ok {
		return softDeleter{sd: sd}
	}
	return hardDeleter{}
}

// Delete removes n and its descendants, soft-deleting when the store
// supports it. It returns the number of rows affected.
func (t *Tree) Delete(ctx context.Context, n *models.Node) (int64, error) {
	return t.deleteWith(ctx, n, t.deleter())
}

// ForceDelete always removes the rows and closes the gap, including rows
// that were trashed before.
func (t *Tree) ForceDelete(ctx context.Context, n *models.Node) (int64, error) {
	return t.deleteWith(ctx, n, hardDeleter{})
}

func (t *Tree) deleteWith(ctx context.Context, n *models.Node, d subtreeDeleter) (int64, error) {
	ctx, span := tracer.Start(ctx, "Delete", trace.WithAttributes(
		attribute.String("mode", d.mode()),
		attribute.Int64("node", int64(n.ID)),
	))
	defer span.End()

	var cnt int64
	var cur *models.Node
	err := t.st.Transaction(ctx, func(tx store.Store) error {
		var err error
		cur, err = store.Get(ctx, tx, t.scope, n.ID)
		if err != nil {
			return notFound(n.ID, err)
		}
		if !cur.Positioned() {
			return logicErr("delete", "node has no bounds")
		}
		cnt, err = d.deleteSubtree(ctx, t, tx, cur)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("deleting node %d: %w", n.ID, err)
	}

	subtreesDeleted.WithLabelValues(d.mode()).Inc()
	span.SetAttributes(attribute.Int64("rows", cnt))
	t.log.Debug("deleted subtree", "node", n.ID, "mode", d.mode(), "rows", cnt, "bounds", cur.Interval().String())

	if _, soft := d.(softDeleter); soft {
		return cnt, t.Refresh(ctx, n)
	}

	// gone for good; saving n again inserts a fresh root
	n.Lft, n.Rgt = 0, 0
	n.ParentID = nil
	n.DeletedAt = gorm.DeletedAt{}
	return cnt, nil
}

// Restore brings back a soft-deleted node and the descendants that were
// deleted together with it or after it. Descendants trashed earlier, on
// their own, stay deleted.
func (t *Tree) Restore(ctx context.Context, n *models.Node) (int64, error) {
	ctx, span := tracer.Start(ctx, "Restore", trace.WithAttributes(attribute.Int64("node", int64(n.ID))))
	defer span.End()

	if _, ok := store.SoftDeletes(t.st); !ok {
		return 0, logicErr("restore", "store does not support soft delete")
	}

	var cnt int64
	err := t.st.Transaction(ctx, func(tx store.Store) error {
		cur, err := store.Get(ctx, tx, t.scope, n.ID)
		if err != nil {
			return notFound(n.ID, err)
		}
		if !cur.DeletedAt.Valid {
			return nil
		}
		sd, ok := store.SoftDeletes(tx)
		if !ok {
			return logicErr("restore", "store does not support soft delete")
		}
		cnt, err = sd.RestoreWhere(ctx, predicate.All(
			t.b.DescendantsOf(predicate.Of(cur), true),
			predicate.DeletedSince{At: cur.DeletedAt.Time},
		))
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("restoring node %d: %w", n.ID, err)
	}

	nodesRestored.Add(float64(cnt))
	t.log.Debug("restored subtree", "node", n.ID, "rows", cnt)
	return cnt, t.Refresh(ctx, n)
}
