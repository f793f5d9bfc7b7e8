// Package mutation computes the interval rewrites behind every structural
// change of a nested set, and tracks a planned change through its states.
//
// Nothing here touches a store: a Rewrite is a window selector plus a
// piecewise Patch, which the caller issues as one bulk update.
package mutation

import (
	"errors"
	"fmt"

	"github.com/bluesky-social/nestedset/interval"
	"github.com/bluesky-social/nestedset/predicate"
	"github.com/bluesky-social/nestedset/store"
)

// ErrMoveIntoSelf is returned for a destination inside the moving subtree.
var ErrMoveIntoSelf = errors.New("cannot move a node into its own subtree")

type RewriteKind int

const (
	KindGap RewriteKind = iota
	KindMove
)

type Rewrite struct {
	Kind RewriteKind

	// For a gap From is the cut and To is unused; for a move [From, To] is
	// the affected window.
	From, To int

	Patch store.Patch
}

// Where selects the rows the rewrite touches.
func (r Rewrite) Where(b predicate.Builder) predicate.Predicate {
	if r.Kind == KindMove {
		return b.Touching(r.From, r.To)
	}
	return b.FromCut(r.From)
}

func (r Rewrite) String() string {
	if r.Kind == KindMove {
		return fmt.Sprintf("move window [%d,%d] %v", r.From, r.To, r.Patch.Shifts)
	}
	return fmt.Sprintf("gap at %d %v", r.From, r.Patch.Shifts)
}

// Gap opens (height > 0) or closes (height < 0) room at cut: every boundary
// value >= cut moves by height. A node straddling cut grows or shrinks, a
// node entirely past it slides.
func Gap(cut, height int) Rewrite {
	return Rewrite{
		Kind:  KindGap,
		From:  cut,
		Patch: store.Patch{Shifts: []store.Shift{{Lo: cut, Hi: store.Unbounded, Delta: height}}},
	}
}

// Close removes the room a deleted subtree occupied.
func Close(b interval.Bounds) Rewrite {
	return Gap(b.Right+1, -b.Height())
}

// Move relocates the subtree at b so that its left boundary lands at
// position (expressed in coordinates before the move). ok is false when
// the subtree is already there.
//
// Inside the window [from, to] the moving subtree shifts by the distance
// travelled and everything else shifts the other way by the subtree's
// height. Rows outside the window are untouched.
func Move(b interval.Bounds, position int) (rw Rewrite, ok bool, err error) {
	if !b.Positioned() {
		return Rewrite{}, false, interval.ErrUnpositioned
	}
	lft, rgt := b.Left, b.Right
	if lft < position && position <= rgt {
		return Rewrite{}, false, ErrMoveIntoSelf
	}

	from := min(lft, position)
	to := max(rgt, position-1)
	height := rgt - lft + 1
	distance := to - from + 1 - height

	if distance == 0 {
		return Rewrite{}, false, nil
	}

	if position > lft {
		height = -height
	} else {
		distance = -distance
	}

	return Rewrite{
		Kind: KindMove,
		From: from,
		To:   to,
		Patch: store.Patch{Shifts: []store.Shift{
			{Lo: lft, Hi: rgt, Delta: distance},
			{Lo: from, Hi: to, Delta: height},
		}},
	}, true, nil
}
