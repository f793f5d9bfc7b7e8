package nestedset

import (
	"context"
	"fmt"

	"github.com/bluesky-social/nestedset/check"
	"github.com/bluesky-social/nestedset/models"
	"github.com/bluesky-social/nestedset/mutation"
	"github.com/bluesky-social/nestedset/predicate"
	"github.com/bluesky-social/nestedset/store"
	"github.com/bluesky-social/nestedset/tree"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// CountErrors runs the consistency checker over the scope. It never writes.
func (t *Tree) CountErrors(ctx context.Context) (check.Report, error) {
	ctx, span := tracer.Start(ctx, "CountErrors")
	defer span.End()

	r, err := check.Run(ctx, t.st, t.scope)
	if err != nil {
		span.RecordError(err)
		return check.Report{}, err
	}
	for class, n := range r.Map() {
		consistencyErrors.WithLabelValues(class).Set(float64(n))
	}
	span.SetAttributes(attribute.Int64("errors", r.Total()))
	return r, nil
}

func (t *Tree) TotalErrors(ctx context.Context) (int64, error) {
	r, err := t.CountErrors(ctx)
	if err != nil {
		return 0, err
	}
	return r.Total(), nil
}

func (t *Tree) IsBroken(ctx context.Context) (bool, error) {
	r, err := t.CountErrors(ctx)
	if err != nil {
		return false, err
	}
	return r.Broken(), nil
}

// FixTree recomputes every boundary of the scope from parent links alone.
// Nodes whose parent cannot be reached become roots. It returns the number
// of rows written.
func (t *Tree) FixTree(ctx context.Context) (int64, error) {
	return t.fix(ctx, nil)
}

// FixSubtree renumbers the descendants of root from their parent links.
// When the subtree's size changes, the rest of the tree is shifted to fit.
func (t *Tree) FixSubtree(ctx context.Context, root *models.Node) (int64, error) {
	if root == nil {
		return 0, logicErr("fix", "subtree root is nil")
	}
	return t.fix(ctx, root)
}

func (t *Tree) fix(ctx context.Context, root *models.Node) (int64, error) {
	ctx, span := tracer.Start(ctx, "FixTree", trace.WithAttributes(attribute.Bool("subtree", root != nil)))
	defer span.End()

	var fixed int64
	err := t.st.Transaction(ctx, func(tx store.Store) error {
		where := t.b.All()
		var cur *models.Node
		if root != nil {
			var err error
			cur, err = store.Get(ctx, tx, t.scope, root.ID)
			if err != nil {
				return notFound(root.ID, err)
			}
			where = t.b.DescendantsOf(predicate.Of(cur), false)
		}

		rows, err := tx.Find(ctx, store.Query{Where: where, WithTrashed: true})
		if err != nil {
			return err
		}
		fixed, err = t.layout(ctx, tx, tree.Ptrs(rows), cur, nil, nil)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("fixing tree: %w", err)
	}

	if root != nil {
		if err := t.Refresh(ctx, root); err != nil {
			return fixed, err
		}
	}

	nodesRenumbered.WithLabelValues("fix").Add(float64(fixed))
	span.SetAttributes(attribute.Int64("fixed", fixed))
	t.log.Info("fixed tree", "subtree", root != nil, "fixed", fixed)
	return fixed, nil
}

// layout renumbers nodes under root (nil for the whole scope), shifts the
// rest of the scope when the subtree changed size, and writes every dirty
// node plus the extra ones. Nodes in reparented had their parent link
// changed by the caller and count as dirty. It returns the dirty count plus
// rows shifted.
func (t *Tree) layout(ctx context.Context, tx store.Store, nodes []*models.Node, root *models.Node, extra []*models.Node, reparented map[models.NodeID]bool) (int64, error) {
	var parent *models.NodeID
	start := 1
	if root != nil {
		parent = models.Ref(root.ID)
		start = root.Lft + 1
	}

	dirty, cut := tree.Renumber(nodes, parent, start)
	if len(reparented) > 0 {
		seen := make(map[models.NodeID]bool, len(dirty))
		for _, n := range dirty {
			seen[n.ID] = true
		}
		for _, n := range nodes {
			if reparented[n.ID] && !seen[n.ID] {
				dirty = append(dirty, n)
			}
		}
	}

	var moved int64
	if root != nil {
		if grown := cut - root.Rgt; grown != 0 {
			ids := make([]models.NodeID, 0, len(nodes)+1)
			ids = append(ids, root.ID)
			for _, n := range nodes {
				ids = append(ids, n.ID)
			}
			rw := mutation.Gap(root.Rgt+1, grown)
			var err error
			moved, err = tx.UpdateWhere(ctx, predicate.All(rw.Where(t.b), predicate.Not{P: predicate.IDs(ids...)}), rw.Patch)
			if err != nil {
				return 0, err
			}
			rowsShifted.Add(float64(moved))

			root.Rgt = cut
			dirty = append(dirty, root)
		}
	}

	written := make(map[models.NodeID]bool, len(dirty)+len(extra))
	for _, list := range [][]*models.Node{dirty, extra} {
		for _, n := range list {
			if written[n.ID] {
				continue
			}
			written[n.ID] = true
			if err := tx.Save(ctx, n); err != nil {
				return 0, err
			}
		}
	}
	return int64(len(dirty)) + moved, nil
}

// RebuildTree reconciles the whole scope with a forest description. Items
// with an id update that node, items without one create a node. Existing
// nodes missing from items are deleted when deleteMissing is set (trashed
// on soft-deleting stores) and kept under their old parent otherwise.
func (t *Tree) RebuildTree(ctx context.Context, items []models.Item, deleteMissing bool) (int64, error) {
	return t.rebuild(ctx, nil, items, deleteMissing)
}

// RebuildSubtree is RebuildTree restricted to the descendants of root.
func (t *Tree) RebuildSubtree(ctx context.Context, root *models.Node, items []models.Item, deleteMissing bool) (int64, error) {
	if root == nil {
		return 0, logicErr("rebuild", "subtree root is nil")
	}
	return t.rebuild(ctx, root, items, deleteMissing)
}

func (t *Tree) rebuild(ctx context.Context, root *models.Node, items []models.Item, deleteMissing bool) (int64, error) {
	ctx, span := tracer.Start(ctx, "RebuildTree", trace.WithAttributes(
		attribute.Bool("subtree", root != nil),
		attribute.Bool("delete_missing", deleteMissing),
		attribute.Int("items", models.CountItems(items)),
	))
	defer span.End()

	sd, soft := store.SoftDeletes(t.st)

	var fixed int64
	err := t.st.Transaction(ctx, func(tx store.Store) error {
		where := t.b.All()
		var cur *models.Node
		var parent *models.NodeID
		if root != nil {
			var err error
			cur, err = store.Get(ctx, tx, t.scope, root.ID)
			if err != nil {
				return notFound(root.ID, err)
			}
			where = t.b.DescendantsOf(predicate.Of(cur), false)
			parent = models.Ref(cur.ID)
		}

		rows, err := tx.Find(ctx, store.Query{Where: where, WithTrashed: true})
		if err != nil {
			return err
		}
		existing := make(map[models.NodeID]*models.Node, len(rows))
		for i := range rows {
			existing[rows[i].ID] = &rows[i]
		}

		if err := checkItems(items, existing); err != nil {
			return err
		}

		type level struct {
			items  []models.Item
			parent *models.NodeID
		}

		var nodes, touched []*models.Node
		reparented := make(map[models.NodeID]bool)
		queue := []level{{items: items, parent: parent}}
		for len(queue) > 0 {
			lv := queue[0]
			queue = queue[1:]

			for _, it := range lv.items {
				var n *models.Node
				if it.ID != nil {
					n = existing[*it.ID]
					delete(existing, *it.ID)
					it.Fill(n)
					touched = append(touched, n)
					if !models.SameParent(n.ParentID, lv.parent) {
						reparented[n.ID] = true
					}
				} else {
					n = &models.Node{Scope: t.scope}
					it.Fill(n)
					n.ParentID = copyRef(lv.parent)
					if err := tx.Create(ctx, n); err != nil {
						return err
					}
				}
				n.ParentID = copyRef(lv.parent)
				nodes = append(nodes, n)
				if len(it.Children) > 0 {
					queue = append(queue, level{items: it.Children, parent: models.Ref(n.ID)})
				}
			}
		}

		if len(existing) > 0 {
			var missing []*models.Node
			for i := range rows {
				if n, ok := existing[rows[i].ID]; ok {
					missing = append(missing, n)
				}
			}
			ids := make([]models.NodeID, len(missing))
			for i, n := range missing {
				ids[i] = n.ID
			}

			switch {
			case deleteMissing && !soft:
				if _, err := tx.DeleteWhere(ctx, t.b.Nodes(ids...), store.OrderLeftDesc); err != nil {
					return err
				}
			default:
				nodes = append(nodes, missing...)
				if deleteMissing {
					txsd := sd
					if s, ok := store.SoftDeletes(tx); ok {
						txsd = s
					}
					if _, err := txsd.SoftDeleteWhere(ctx, t.b.Nodes(ids...), t.now()); err != nil {
						return err
					}
				}
			}
		}

		fixed, err = t.layout(ctx, tx, nodes, cur, touched, reparented)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("rebuilding tree: %w", err)
	}

	if root != nil {
		if err := t.Refresh(ctx, root); err != nil {
			return fixed, err
		}
	}

	nodesRenumbered.WithLabelValues("rebuild").Add(float64(fixed))
	span.SetAttributes(attribute.Int64("fixed", fixed))
	t.log.Info("rebuilt tree", "subtree", root != nil, "items", models.CountItems(items), "fixed", fixed)
	return fixed, nil
}

// checkItems rejects unknown or repeated ids before anything is written.
func checkItems(items []models.Item, existing map[models.NodeID]*models.Node) error {
	seen := make(map[models.NodeID]bool)
	stack := [][]models.Item{items}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, it := range top {
			if it.ID != nil {
				id := *it.ID
				if _, ok := existing[id]; !ok {
					return &NotFoundError{ID: id}
				}
				if seen[id] {
					return logicErr("rebuild", fmt.Sprintf("node %d is listed twice", id))
				}
				seen[id] = true
			}
			if len(it.Children) > 0 {
				stack = append(stack, it.Children)
			}
		}
	}
	return nil
}
