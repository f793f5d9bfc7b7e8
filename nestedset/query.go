package nestedset

import (
	"context"

	"github.com/bluesky-social/nestedset/models"
	"github.com/bluesky-social/nestedset/predicate"
	"github.com/bluesky-social/nestedset/store"
	"github.com/bluesky-social/nestedset/tree"
)

// Find runs q with its predicate confined to the tree's scope.
func (t *Tree) Find(ctx context.Context, q store.Query) ([]models.Node, error) {
	q.Where = t.b.Where(q.Where)
	return t.st.Find(ctx, q)
}

func (t *Tree) first(ctx context.Context, where predicate.Predicate, order store.Order) (*models.Node, error) {
	rows, err := t.st.Find(ctx, store.Query{Where: where, Order: order, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (t *Tree) list(ctx context.Context, where predicate.Predicate) ([]models.Node, error) {
	return t.st.Find(ctx, store.Query{Where: where})
}

// Get fetches a live node by id.
func (t *Tree) Get(ctx context.Context, id models.NodeID) (*models.Node, error) {
	n, err := t.first(ctx, t.b.Node(id), store.OrderLeft)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, &NotFoundError{ID: id}
	}
	return n, nil
}

// All returns every live node of the scope in tree order.
func (t *Tree) All(ctx context.Context) ([]models.Node, error) {
	return t.list(ctx, t.b.All())
}

func (t *Tree) Ancestors(ctx context.Context, of predicate.Target) ([]models.Node, error) {
	return t.list(ctx, t.b.AncestorsOf(of, false))
}

func (t *Tree) AncestorsAndSelf(ctx context.Context, of predicate.Target) ([]models.Node, error) {
	return t.list(ctx, t.b.AncestorsOf(of, true))
}

func (t *Tree) Descendants(ctx context.Context, of predicate.Target) ([]models.Node, error) {
	return t.list(ctx, t.b.DescendantsOf(of, false))
}

func (t *Tree) DescendantsAndSelf(ctx context.Context, of predicate.Target) ([]models.Node, error) {
	return t.list(ctx, t.b.DescendantsOf(of, true))
}

func (t *Tree) Children(ctx context.Context, of predicate.Target) ([]models.Node, error) {
	return t.list(ctx, t.b.ChildrenOf(of))
}

func (t *Tree) Siblings(ctx context.Context, n *models.Node) ([]models.Node, error) {
	return t.list(ctx, t.b.Siblings(n, false))
}

func (t *Tree) SiblingsAndSelf(ctx context.Context, n *models.Node) ([]models.Node, error) {
	return t.list(ctx, t.b.Siblings(n, true))
}

func (t *Tree) NextSiblings(ctx context.Context, n *models.Node) ([]models.Node, error) {
	return t.list(ctx, t.b.NextSiblings(n))
}

func (t *Tree) PrevSiblings(ctx context.Context, n *models.Node) ([]models.Node, error) {
	return t.list(ctx, t.b.PrevSiblings(n))
}

// NextSibling returns nil when n is the last of its siblings.
func (t *Tree) NextSibling(ctx context.Context, n *models.Node) (*models.Node, error) {
	return t.first(ctx, t.b.NextSiblings(n), store.OrderLeft)
}

func (t *Tree) PrevSibling(ctx context.Context, n *models.Node) (*models.Node, error) {
	return t.first(ctx, t.b.PrevSiblings(n), store.OrderLeftDesc)
}

// NextNode is the node following of in tree order, at any level.
func (t *Tree) NextNode(ctx context.Context, of predicate.Target) (*models.Node, error) {
	return t.first(ctx, t.b.After(of), store.OrderLeft)
}

func (t *Tree) PrevNode(ctx context.Context, of predicate.Target) (*models.Node, error) {
	return t.first(ctx, t.b.Before(of), store.OrderLeftDesc)
}

func (t *Tree) Leaves(ctx context.Context) ([]models.Node, error) {
	return t.list(ctx, t.b.Leaves())
}

func (t *Tree) Roots(ctx context.Context) ([]models.Node, error) {
	return t.list(ctx, t.b.Roots())
}

// Root returns the first root of the scope, or nil for an empty tree.
func (t *Tree) Root(ctx context.Context) (*models.Node, error) {
	return t.first(ctx, t.b.Roots(), store.OrderLeft)
}

// RootOf returns the top-level ancestor of the target, itself if it is a
// root.
func (t *Tree) RootOf(ctx context.Context, of predicate.Target) (*models.Node, error) {
	return t.first(ctx, predicate.All(t.b.AncestorsOf(of, true), predicate.IsNull{Field: predicate.Parent}), store.OrderLeft)
}

// WithoutRoot returns every node that has a parent.
func (t *Tree) WithoutRoot(ctx context.Context) ([]models.Node, error) {
	return t.list(ctx, t.b.WithoutRoot())
}

// WithDepth returns the nodes matching where with Depth populated.
func (t *Tree) WithDepth(ctx context.Context, where predicate.Predicate) ([]models.Node, error) {
	return t.st.Find(ctx, store.Query{Where: t.b.Where(where), WithDepth: true})
}

// AtDepth returns the nodes exactly depth levels below a root.
func (t *Tree) AtDepth(ctx context.Context, depth int) ([]models.Node, error) {
	return t.st.Find(ctx, store.Query{Where: t.b.AtDepth(predicate.Eq, depth), WithDepth: true})
}

// Depth counts the nodes strictly containing the target.
func (t *Tree) Depth(ctx context.Context, of predicate.Target) (int, error) {
	n, err := t.st.Count(ctx, t.b.AncestorsOf(of, false))
	return int(n), err
}

// ToTree fetches the nodes matching where and links them, returning the
// top level of the result.
func (t *Tree) ToTree(ctx context.Context, where predicate.Predicate) ([]*models.Node, error) {
	rows, err := t.st.Find(ctx, store.Query{Where: t.b.Where(where)})
	if err != nil {
		return nil, err
	}
	return tree.Build(tree.Ptrs(rows)), nil
}

// Subtree fetches root and its descendants as one linked node.
func (t *Tree) Subtree(ctx context.Context, root models.NodeID) (*models.Node, error) {
	rows, err := t.st.Find(ctx, store.Query{Where: t.b.DescendantsOf(predicate.ByID(root), true)})
	if err != nil {
		return nil, err
	}
	// a trashed root is absent from live rows while its live descendants
	// are not
	if len(rows) == 0 || rows[0].ID != root {
		return nil, &NotFoundError{ID: root}
	}
	nodes := tree.Ptrs(rows)
	tree.BuildFrom(nodes, root)
	return nodes[0], nil
}
