package main

import (
	"fmt"

	"github.com/bluesky-social/nestedset/models"

	"github.com/xlab/treeprint"
)

func nodeLabel(n *models.Node) string {
	return fmt.Sprintf("%s #%d", n.Name, n.ID)
}

// renderTree draws linked nodes as an indented tree. A single root becomes
// the tree's root line; several roots hang off an unnamed one.
func renderTree(roots []*models.Node, bounds bool) string {
	type frame struct {
		n      *models.Node
		branch treeprint.Tree
	}

	var top treeprint.Tree
	var stack []frame
	if len(roots) == 1 {
		top = treeprint.NewWithRoot(nodeLabel(roots[0]))
		if bounds {
			top.SetMetaValue(roots[0].Interval().String())
		}
		stack = append(stack, frame{n: roots[0], branch: top})
	} else {
		top = treeprint.New()
		for i := len(roots) - 1; i >= 0; i-- {
			stack = append(stack, frame{n: roots[i], branch: nil})
		}
	}

	// children are pushed in reverse so they print in tree order
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		br := f.branch
		if br == nil {
			br = addBranch(top, f.n, bounds)
		}
		children := make([]treeprint.Tree, len(f.n.Children))
		for i, c := range f.n.Children {
			children[i] = addBranch(br, c, bounds)
		}
		for i := len(f.n.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{n: f.n.Children[i], branch: children[i]})
		}
	}
	return top.String()
}

func addBranch(parent treeprint.Tree, n *models.Node, bounds bool) treeprint.Tree {
	if bounds {
		return parent.AddMetaBranch(n.Interval().String(), nodeLabel(n))
	}
	return parent.AddBranch(nodeLabel(n))
}
