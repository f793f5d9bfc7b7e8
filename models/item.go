package models

// Item describes a node and its subtree as input to bulk creation and
// rebuilds. An Item with an ID refers to an existing node; an empty Name or
// nil Attrs leaves the existing value alone.
type Item struct {
	ID       *NodeID        `json:"id,omitempty"`
	Name     string         `json:"name,omitempty"`
	Attrs    map[string]any `json:"attrs,omitempty"`
	Children []Item         `json:"children,omitempty"`
}

// Fill copies the item's payload onto n.
func (it Item) Fill(n *Node) {
	if it.Name != "" {
		n.Name = it.Name
	}
	if it.Attrs != nil {
		n.Attrs = it.Attrs
	}
}

// CountItems counts items including all nested children.
func CountItems(items []Item) int {
	cnt := 0
	stack := [][]Item{items}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, it := range top {
			cnt++
			if len(it.Children) > 0 {
				stack = append(stack, it.Children)
			}
		}
	}
	return cnt
}
