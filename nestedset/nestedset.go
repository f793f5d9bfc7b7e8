// Package nestedset maintains single-parent trees inside an ordered record
// store using the nested-set model. A Tree is bound to one store and one
// scope; every query and rewrite it issues is confined to that scope.
//
// Positioning is two-phase: Plan records where a node should go (replacing
// any earlier plan for the same node), Apply executes it in one store
// transaction and refreshes the node and its target from the store.
package nestedset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bluesky-social/nestedset/interval"
	"github.com/bluesky-social/nestedset/models"
	"github.com/bluesky-social/nestedset/mutation"
	"github.com/bluesky-social/nestedset/predicate"
	"github.com/bluesky-social/nestedset/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("nestedset")

type Options struct {
	Logger *slog.Logger

	// Now stamps soft deletions.
	Now func() time.Time
}

func DefaultOptions() *Options {
	return &Options{
		Logger: slog.Default().With("system", "nestedset"),
		Now:    time.Now,
	}
}

type Tree struct {
	st    store.Store
	scope string
	b     predicate.Builder

	log *slog.Logger
	now func() time.Time

	lk      sync.Mutex
	pending map[*models.Node]*mutation.Change
}

func NewTree(st store.Store, scope models.Scope, opts *Options) *Tree {
	if opts == nil {
		opts = DefaultOptions()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("system", "nestedset")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	key := scope.Key()
	return &Tree{
		st:      st,
		scope:   key,
		b:       predicate.Builder{Scope: key},
		log:     logger.With("scope", key),
		now:     now,
		pending: make(map[*models.Node]*mutation.Change),
	}
}

// ScopeKey is the canonical key stored in every node of this tree.
func (t *Tree) ScopeKey() string {
	return t.scope
}

func (t *Tree) Store() store.Store {
	return t.st
}

// Builder returns a predicate builder confined to the tree's scope.
func (t *Tree) Builder() predicate.Builder {
	return t.b
}

// Plan records a positioning intent for n. A later Plan for the same node
// discards this one. The Tree holds on to the plan until it is applied,
// replaced or dropped with Discard. Preconditions that can be checked
// without the store are checked here.
func (t *Tree) Plan(n *models.Node, in mutation.Intent) (*mutation.Change, error) {
	if err := t.validate(n, in); err != nil {
		return nil, err
	}

	c := mutation.NewChange(n, in)

	t.lk.Lock()
	defer t.lk.Unlock()
	if old, ok := t.pending[n]; ok {
		_ = old.Advance(mutation.Discarded)
	}
	t.pending[n] = c
	return c, nil
}

// Pending returns the change planned for n, if any.
func (t *Tree) Pending(n *models.Node) *mutation.Change {
	t.lk.Lock()
	defer t.lk.Unlock()
	return t.pending[n]
}

// Discard drops the change planned for n, if any. It reports whether there
// was one.
func (t *Tree) Discard(n *models.Node) bool {
	t.lk.Lock()
	defer t.lk.Unlock()
	c, ok := t.pending[n]
	if !ok {
		return false
	}
	_ = c.Advance(mutation.Discarded)
	delete(t.pending, n)
	return true
}

func (t *Tree) forget(c *mutation.Change) {
	t.lk.Lock()
	defer t.lk.Unlock()
	if t.pending[c.Node] == c {
		delete(t.pending, c.Node)
	}
}

func (t *Tree) validate(n *models.Node, in mutation.Intent) error {
	op := in.Kind.String()
	if n == nil {
		return logicErr(op, "node is nil")
	}
	if n.Positioned() && n.Scope != t.scope {
		return logicErr(op, "node belongs to another scope")
	}

	switch in.Kind {
	case mutation.IntentAppend, mutation.IntentPrepend, mutation.IntentBefore, mutation.IntentAfter:
		tg := in.Target
		if tg == nil {
			return logicErr(op, "target is nil")
		}
		if !tg.Positioned() {
			return logicErr(op, "target has no bounds yet")
		}
		if tg.Scope != t.scope {
			return logicErr(op, "target belongs to another scope")
		}
		if tg == n || (n.ID != 0 && tg.ID == n.ID) {
			return logicErr(op, "target is the node itself")
		}
		if n.Positioned() && tg.IsDescendantOf(n) {
			return &LogicError{Op: op, Reason: "target is a descendant of the node", Err: mutation.ErrMoveIntoSelf}
		}
	}
	return nil
}

// Apply executes a pending change. It fails without writing anything when a
// precondition does not hold against the current store contents.
func (t *Tree) Apply(ctx context.Context, c *mutation.Change) (mutation.Result, error) {
	ctx, span := tracer.Start(ctx, "Apply", trace.WithAttributes(
		attribute.String("intent", c.Intent.Kind.String()),
		attribute.String("scope", t.scope),
		attribute.Int64("node", int64(c.Node.ID)),
	))
	defer span.End()

	kind := c.Intent.Kind.String()
	if c.State() != mutation.Pending {
		return mutation.Result{}, &LogicError{Op: "apply", Reason: fmt.Sprintf("change is %s", c.State()), Err: mutation.ErrInvalidTransition}
	}

	var res mutation.Result
	err := t.st.Transaction(ctx, func(tx store.Store) error {
		r, err := t.apply(ctx, tx, c.Node, c.Intent)
		res = r
		return err
	})
	if err != nil {
		mutationsApplied.WithLabelValues(kind, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return mutation.Result{}, err
	}

	if err := c.Advance(mutation.Applied); err != nil {
		return res, err
	}
	c.Result = res
	t.forget(c)

	outcome := "noop"
	if res.Moved {
		outcome = "moved"
	}
	mutationsApplied.WithLabelValues(kind, outcome).Inc()
	rowsShifted.Add(float64(res.Shifted))

	if err := t.sync(ctx, c); err != nil {
		return res, fmt.Errorf("refreshing node %d: %w", c.Node.ID, err)
	}
	if err := c.Advance(mutation.Synced); err != nil {
		return res, err
	}

	span.SetAttributes(attribute.Int("lft", c.Node.Lft), attribute.Int("rgt", c.Node.Rgt), attribute.Int64("shifted", res.Shifted))
	t.log.Debug("applied change", "node", c.Node.ID, "intent", c.Intent.String(), "moved", res.Moved, "shifted", res.Shifted)
	return res, nil
}

func (t *Tree) planAndApply(ctx context.Context, n *models.Node, in mutation.Intent) (mutation.Result, error) {
	c, err := t.Plan(n, in)
	if err != nil {
		return mutation.Result{}, err
	}
	return t.Apply(ctx, c)
}

// Save persists n. A pending change is applied; a node that is not stored
// yet and has no plan becomes a new root; otherwise only the payload
// columns are written and the stored bounds win.
func (t *Tree) Save(ctx context.Context, n *models.Node) (mutation.Result, error) {
	if c := t.Pending(n); c != nil {
		return t.Apply(ctx, c)
	}

	if n.ID != 0 {
		cur, err := store.Get(ctx, t.st, t.scope, n.ID)
		switch {
		case err == nil:
			n.Scope = t.scope
			n.Lft, n.Rgt, n.ParentID = cur.Lft, cur.Rgt, cur.ParentID
			if err := t.st.Save(ctx, n); err != nil {
				return mutation.Result{}, err
			}
			return mutation.Result{}, nil
		case !errors.Is(err, store.ErrNotFound):
			return mutation.Result{}, err
		}
	}

	return t.planAndApply(ctx, n, mutation.AsRoot())
}

func (t *Tree) AppendNode(ctx context.Context, n, parent *models.Node) (mutation.Result, error) {
	return t.planAndApply(ctx, n, mutation.AppendTo(parent))
}

func (t *Tree) PrependNode(ctx context.Context, n, parent *models.Node) (mutation.Result, error) {
	return t.planAndApply(ctx, n, mutation.PrependTo(parent))
}

func (t *Tree) InsertBefore(ctx context.Context, n, sibling *models.Node) (mutation.Result, error) {
	return t.planAndApply(ctx, n, mutation.Before(sibling))
}

func (t *Tree) InsertAfter(ctx context.Context, n, sibling *models.Node) (mutation.Result, error) {
	return t.planAndApply(ctx, n, mutation.After(sibling))
}

// MakeRoot places n after every existing root.
func (t *Tree) MakeRoot(ctx context.Context, n *models.Node) (mutation.Result, error) {
	return t.planAndApply(ctx, n, mutation.AsRoot())
}

// RawNode writes bounds and parent verbatim. The caller is responsible for
// the rest of the tree; FixTree can repair it afterwards.
func (t *Tree) RawNode(ctx context.Context, n *models.Node, lft, rgt int, parent *models.NodeID) (mutation.Result, error) {
	return t.planAndApply(ctx, n, mutation.Raw(lft, rgt, parent))
}

func (t *Tree) apply(ctx context.Context, tx store.Store, n *models.Node, in mutation.Intent) (mutation.Result, error) {
	op := in.Kind.String()

	var cur *models.Node
	if n.ID != 0 {
		got, err := store.Get(ctx, tx, t.scope, n.ID)
		switch {
		case err == nil:
			cur = got
		case !errors.Is(err, store.ErrNotFound):
			return mutation.Result{}, err
		}
		if cur == nil {
			// ids are unique across scopes
			foreign, err := tx.Count(ctx, predicate.ByIDEq(n.ID))
			if err != nil {
				return mutation.Result{}, err
			}
			if foreign > 0 {
				return mutation.Result{}, logicErr(op, fmt.Sprintf("node %d belongs to another scope", n.ID))
			}
		}
	}

	switch in.Kind {
	case mutation.IntentRaw:
		n.Scope = t.scope
		n.SetBounds(in.Bounds)
		n.ParentID = copyRef(in.Parent)
		if cur == nil {
			return mutation.Result{Moved: true}, tx.Create(ctx, n)
		}
		return mutation.Result{Moved: true}, tx.Save(ctx, n)

	case mutation.IntentRoot:
		maxRight, _, err := tx.Max(ctx, predicate.Right, t.b.All())
		if err != nil {
			return mutation.Result{}, err
		}
		return t.insertAt(ctx, tx, op, n, cur, maxRight+1, nil)
	}

	tgt, err := store.Get(ctx, tx, t.scope, in.Target.ID)
	if err != nil {
		return mutation.Result{}, notFound(in.Target.ID, err)
	}
	if !tgt.Positioned() {
		return mutation.Result{}, logicErr(op, "target has no bounds yet")
	}
	if cur != nil && cur.Interval().ContainsOrSelf(tgt.Interval()) {
		return mutation.Result{}, &LogicError{Op: op, Reason: "target is inside the node's subtree", Err: mutation.ErrMoveIntoSelf}
	}

	var parent *models.NodeID
	switch in.Kind {
	case mutation.IntentAppend, mutation.IntentPrepend:
		parent = models.Ref(tgt.ID)
	default:
		parent = copyRef(tgt.ParentID)
	}

	return t.insertAt(ctx, tx, op, n, cur, mutation.Position(in, tgt.Interval(), 0), parent)
}

// insertAt opens a gap for a new node, or moves the stored subtree of an
// existing one, so that its left edge lands at position.
func (t *Tree) insertAt(ctx context.Context, tx store.Store, op string, n, cur *models.Node, position int, parent *models.NodeID) (mutation.Result, error) {
	if cur == nil {
		rw := mutation.Gap(position, interval.NewNodeHeight)
		shifted, err := tx.UpdateWhere(ctx, rw.Where(t.b), rw.Patch)
		if err != nil {
			return mutation.Result{}, err
		}

		n.Scope = t.scope
		n.Lft, n.Rgt = position, position+interval.NewNodeHeight-1
		n.ParentID = parent
		if err := tx.Create(ctx, n); err != nil {
			return mutation.Result{}, err
		}
		return mutation.Result{Moved: true, Shifted: shifted}, nil
	}

	rw, moved, err := mutation.Move(cur.Interval(), position)
	if err != nil {
		if errors.Is(err, mutation.ErrMoveIntoSelf) {
			return mutation.Result{}, &LogicError{Op: op, Reason: "position is inside the node's subtree", Err: err}
		}
		return mutation.Result{}, &LogicError{Op: op, Reason: err.Error(), Err: err}
	}

	var shifted int64
	if moved {
		shifted, err = tx.UpdateWhere(ctx, rw.Where(t.b), rw.Patch)
		if err != nil {
			return mutation.Result{}, err
		}
		cur, err = store.Get(ctx, tx, t.scope, cur.ID)
		if err != nil {
			return mutation.Result{}, err
		}
	}

	n.Scope = t.scope
	n.Lft, n.Rgt = cur.Lft, cur.Rgt
	n.ParentID = parent
	if err := tx.Save(ctx, n); err != nil {
		return mutation.Result{}, err
	}
	return mutation.Result{Moved: moved, Shifted: shifted}, nil
}

// sync refreshes the node and its target from the store.
func (t *Tree) sync(ctx context.Context, c *mutation.Change) error {
	if err := t.Refresh(ctx, c.Node); err != nil {
		return err
	}
	if tg := c.Intent.Target; tg != nil && tg.ID != 0 {
		if err := t.Refresh(ctx, tg); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return nil
}

// Refresh reloads the tree columns of n from the store.
func (t *Tree) Refresh(ctx context.Context, n *models.Node) error {
	cur, err := store.Get(ctx, t.st, t.scope, n.ID)
	if err != nil {
		return notFound(n.ID, err)
	}
	n.Scope = cur.Scope
	n.Lft, n.Rgt = cur.Lft, cur.Rgt
	n.ParentID = cur.ParentID
	n.DeletedAt = cur.DeletedAt
	return nil
}

func copyRef(id *models.NodeID) *models.NodeID {
	if id == nil {
		return nil
	}
	return models.Ref(*id)
}
