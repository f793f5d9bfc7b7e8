package nestedset

import (
	"context"
	"fmt"

	"github.com/bluesky-social/nestedset/models"
	"github.com/bluesky-social/nestedset/mutation"
	"github.com/bluesky-social/nestedset/store"
)

// Create inserts item and its nested children in one transaction. The new
// node is appended to parent, or becomes the last root when parent is nil.
// Items must not carry ids.
func (t *Tree) Create(ctx context.Context, item models.Item, parent *models.Node) (*models.Node, error) {
	top := mutation.AsRoot()
	if parent != nil {
		top = mutation.AppendTo(parent)
	}

	root := &models.Node{}
	item.Fill(root)
	if err := t.validate(root, top); err != nil {
		return nil, err
	}
	if err := rejectIDs([]models.Item{item}); err != nil {
		return nil, err
	}

	type pending struct {
		items  []models.Item
		parent *models.Node
	}

	var created int
	err := t.st.Transaction(ctx, func(tx store.Store) error {
		if _, err := t.apply(ctx, tx, root, top); err != nil {
			return err
		}
		created++

		queue := []pending{{items: item.Children, parent: root}}
		for len(queue) > 0 {
			p := queue[0]
			queue = queue[1:]
			for _, it := range p.items {
				n := &models.Node{}
				it.Fill(n)
				if _, err := t.apply(ctx, tx, n, mutation.AppendTo(p.parent)); err != nil {
					return err
				}
				created++
				if len(it.Children) > 0 {
					queue = append(queue, pending{items: it.Children, parent: n})
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating nodes: %w", err)
	}

	if err := t.Refresh(ctx, root); err != nil {
		return nil, err
	}
	if parent != nil {
		if err := t.Refresh(ctx, parent); err != nil {
			return nil, err
		}
	}
	mutationsApplied.WithLabelValues(top.Kind.String(), "moved").Add(float64(created))
	t.log.Debug("created nodes", "root", root.ID, "count", created)
	return root, nil
}

func rejectIDs(items []models.Item) error {
	stack := [][]models.Item{items}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, it := range top {
			if it.ID != nil {
				return logicErr("create", fmt.Sprintf("item refers to existing node %d", *it.ID))
			}
			stack = append(stack, it.Children)
		}
	}
	return nil
}

// Down moves n after the sibling amount places further along. It returns
// false when there is no such sibling.
func (t *Tree) Down(ctx context.Context, n *models.Node, amount int) (bool, error) {
	sib, err := t.siblingAt(ctx, n, amount, true)
	if err != nil || sib == nil {
		return false, err
	}
	res, err := t.InsertAfter(ctx, n, sib)
	return res.Moved, err
}

// Up moves n before the sibling amount places back.
func (t *Tree) Up(ctx context.Context, n *models.Node, amount int) (bool, error) {
	sib, err := t.siblingAt(ctx, n, amount, false)
	if err != nil || sib == nil {
		return false, err
	}
	res, err := t.InsertBefore(ctx, n, sib)
	return res.Moved, err
}

func (t *Tree) siblingAt(ctx context.Context, n *models.Node, amount int, next bool) (*models.Node, error) {
	if amount < 1 {
		amount = 1
	}
	q := store.Query{Where: t.b.PrevSiblings(n), Order: store.OrderLeftDesc, Offset: amount - 1, Limit: 1}
	if next {
		q = store.Query{Where: t.b.NextSiblings(n), Order: store.OrderLeft, Offset: amount - 1, Limit: 1}
	}
	rows, err := t.st.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
