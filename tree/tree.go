// Package tree assembles fetched nodes into nested form and lays out
// boundary values from parent links alone. Nothing here touches a store.
//
// All walks use explicit stacks, so arbitrarily deep input cannot exhaust
// the goroutine stack.
package tree

import (
	"github.com/bluesky-social/nestedset/models"
)

// Ptrs returns pointers into nodes, for functions that link nodes in place.
func Ptrs(nodes []models.Node) []*models.Node {
	out := make([]*models.Node, len(nodes))
	for i := range nodes {
		out[i] = &nodes[i]
	}
	return out
}

// group buckets nodes by parent key, keeping input order inside each bucket.
// keys lists bucket keys in order of first appearance.
func group(nodes []*models.Node) (buckets map[models.NodeID][]*models.Node, keys []models.NodeID) {
	buckets = make(map[models.NodeID][]*models.Node)
	for _, n := range nodes {
		k := n.ParentKey()
		if _, ok := buckets[k]; !ok {
			keys = append(keys, k)
		}
		buckets[k] = append(buckets[k], n)
	}
	return buckets, keys
}

// RootKey is the parent key of the leftmost node, which is the level Build
// and Flatten start from when no root is given. Zero stands for top-level
// roots.
func RootKey(nodes []*models.Node) models.NodeID {
	var leftmost *models.Node
	for _, n := range nodes {
		if leftmost == nil || n.Lft < leftmost.Lft {
			leftmost = n
		}
	}
	if leftmost == nil {
		return 0
	}
	return leftmost.ParentKey()
}

// Build links every node to its children (and each child to its parent)
// and returns the nodes at the inferred root level.
func Build(nodes []*models.Node) []*models.Node {
	return BuildFrom(nodes, RootKey(nodes))
}

// BuildFrom is Build with an explicit root: the result is the nodes whose
// parent is root, or the top-level roots when root is zero.
func BuildFrom(nodes []*models.Node, root models.NodeID) []*models.Node {
	buckets, _ := group(nodes)
	for _, n := range nodes {
		n.Children = buckets[n.ID]
		for _, c := range n.Children {
			c.Parent = n
		}
	}
	return buckets[root]
}

// Flatten returns nodes in depth-first order starting from the inferred
// root level. Siblings keep their input order.
func Flatten(nodes []*models.Node) []*models.Node {
	return FlattenFrom(nodes, RootKey(nodes))
}

func FlattenFrom(nodes []*models.Node, root models.NodeID) []*models.Node {
	buckets, _ := group(nodes)

	out := make([]*models.Node, 0, len(nodes))
	stack := [][]*models.Node{buckets[root]}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if len(top) == 0 {
			stack = stack[:len(stack)-1]
			continue
		}
		n := top[0]
		stack[len(stack)-1] = top[1:]
		out = append(out, n)

		// guards against a node listed as its own parent
		if kids, ok := buckets[n.ID]; ok {
			delete(buckets, n.ID)
			stack = append(stack, kids)
		}
	}
	return out
}

// PreOrder walks already linked Children.
func PreOrder(roots []*models.Node) []*models.Node {
	var out []*models.Node
	stack := [][]*models.Node{roots}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if len(top) == 0 {
			stack = stack[:len(stack)-1]
			continue
		}
		n := top[0]
		stack[len(stack)-1] = top[1:]
		out = append(out, n)
		if len(n.Children) > 0 {
			stack = append(stack, n.Children)
		}
	}
	return out
}
