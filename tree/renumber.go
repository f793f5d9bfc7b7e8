package tree

import (
	"github.com/bluesky-social/nestedset/models"
)

type frame struct {
	parent *models.NodeID
	nodes  []*models.Node
	i      int
	// left value of nodes[i] once it has been entered
	lft int
}

// Renumber recomputes lft, rgt and parent of nodes from their parent links
// alone. Nodes hanging directly off parent (nil for the top level) are laid
// out from cut onwards, in input order.
//
// Nodes whose parent cannot be reached from parent, through a dangling or
// cyclic reference, are re-attached directly under parent, so every node
// gets placed and the walk always terminates.
//
// Nodes are updated in place. dirty lists the nodes whose bounds or parent
// changed; next is the first value after the laid out range.
func Renumber(nodes []*models.Node, parent *models.NodeID, cut int) (dirty []*models.Node, next int) {
	buckets, keys := group(nodes)

	var key models.NodeID
	if parent != nil {
		key = *parent
	}

	take := func(k models.NodeID) []*models.Node {
		ns := buckets[k]
		delete(buckets, k)
		return ns
	}

	layout := func(ns []*models.Node) {
		stack := []*frame{{parent: parent, nodes: ns}}
		for len(stack) > 0 {
			f := stack[len(stack)-1]
			if f.i >= len(f.nodes) {
				stack = stack[:len(stack)-1]
				if len(stack) == 0 {
					break
				}
				p := stack[len(stack)-1]
				if place(p.nodes[p.i], p.lft, cut, p.parent) {
					dirty = append(dirty, p.nodes[p.i])
				}
				cut++
				p.i++
				continue
			}

			n := f.nodes[f.i]
			f.lft = cut
			cut++
			stack = append(stack, &frame{parent: models.Ref(n.ID), nodes: take(n.ID)})
		}
	}

	layout(take(key))

	// drain orphaned buckets in order of first appearance
	for _, k := range keys {
		if len(buckets) == 0 {
			break
		}
		if ns, ok := buckets[k]; ok {
			delete(buckets, k)
			layout(ns)
		}
	}

	return dirty, cut
}

// place assigns new bounds and parent, reporting whether anything changed.
func place(n *models.Node, lft, rgt int, parent *models.NodeID) bool {
	changed := n.Lft != lft || n.Rgt != rgt || !models.SameParent(n.ParentID, parent)
	n.Lft, n.Rgt = lft, rgt
	if parent == nil {
		n.ParentID = nil
	} else {
		n.ParentID = models.Ref(*parent)
	}
	return changed
}
