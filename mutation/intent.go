package mutation

import (
	"errors"
	"fmt"

	"github.com/bluesky-social/nestedset/interval"
	"github.com/bluesky-social/nestedset/models"
)

type IntentKind int

const (
	IntentRoot IntentKind = iota
	IntentAppend
	IntentPrepend
	IntentBefore
	IntentAfter
	IntentRaw
)

func (k IntentKind) String() string {
	switch k {
	case IntentRoot:
		return "root"
	case IntentAppend:
		return "append"
	case IntentPrepend:
		return "prepend"
	case IntentBefore:
		return "before"
	case IntentAfter:
		return "after"
	case IntentRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// Intent says where a node should go.
type Intent struct {
	Kind IntentKind

	// Target is the parent for append/prepend and the sibling for
	// before/after.
	Target *models.Node

	// Raw bounds and parent for IntentRaw.
	Bounds interval.Bounds
	Parent *models.NodeID
}

func AsRoot() Intent {
	return Intent{Kind: IntentRoot}
}

func AppendTo(parent *models.Node) Intent {
	return Intent{Kind: IntentAppend, Target: parent}
}

func PrependTo(parent *models.Node) Intent {
	return Intent{Kind: IntentPrepend, Target: parent}
}

func Before(sibling *models.Node) Intent {
	return Intent{Kind: IntentBefore, Target: sibling}
}

func After(sibling *models.Node) Intent {
	return Intent{Kind: IntentAfter, Target: sibling}
}

// Raw sets bounds and parent verbatim; no other node is rewritten.
func Raw(lft, rgt int, parent *models.NodeID) Intent {
	return Intent{Kind: IntentRaw, Bounds: interval.Bounds{Left: lft, Right: rgt}, Parent: parent}
}

func (in Intent) String() string {
	if in.Target != nil {
		return fmt.Sprintf("%s(%d)", in.Kind, in.Target.ID)
	}
	return in.Kind.String()
}

// Position is the boundary value the node's left edge is inserted at, given
// the fresh bounds of the intent's target and the scope's current maximum
// right value.
func Position(in Intent, target interval.Bounds, maxRight int) int {
	switch in.Kind {
	case IntentAppend:
		return target.Right
	case IntentPrepend:
		return target.Left + 1
	case IntentBefore:
		return target.Left
	case IntentAfter:
		return target.Right + 1
	default:
		return maxRight + 1
	}
}

type State int

const (
	Pending State = iota
	Applied
	Synced
	Discarded
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Applied:
		return "applied"
	case Synced:
		return "synced"
	case Discarded:
		return "discarded"
	default:
		return "unknown"
	}
}

var ErrInvalidTransition = errors.New("invalid change state transition")

// Result reports what applying a change did. Moved is false when the
// node was already at its destination.
type Result struct {
	Moved   bool
	Shifted int64
}

// Change is one planned positioning of a node. It is applied at most once.
type Change struct {
	Node   *models.Node
	Intent Intent
	Result Result

	state State
}

func NewChange(n *models.Node, in Intent) *Change {
	return &Change{Node: n, Intent: in, state: Pending}
}

func (c *Change) State() State {
	return c.state
}

// Advance moves the change along Pending -> Applied -> Synced. Any pending
// change may also be Discarded when a newer plan replaces it.
func (c *Change) Advance(to State) error {
	ok := false
	switch c.state {
	case Pending:
		ok = to == Applied || to == Discarded
	case Applied:
		ok = to == Synced
	}
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.state, to)
	}
	c.state = to
	return nil
}
