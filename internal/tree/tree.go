package tree

// Tree is an ordered, labeled, rooted tree. Each node owns its children;
// child order is significant (document / sibling order).
type Tree[L comparable] struct {
	Label    L          // Node label
	Children []*Tree[L] // Owned children, in order
}

// New returns a tree node with the given label and children.
func New[L comparable](label L, children ...*Tree[L]) *Tree[L] {
	return &Tree[L]{Label: label, Children: children}
}

// Add appends child as the last child of t and returns t.
func (t *Tree[L]) Add(child *Tree[L]) *Tree[L] {
	t.Children = append(t.Children, child)
	return t
}

// IsLeaf reports whether t has no children.
func (t *Tree[L]) IsLeaf() bool {
	return len(t.Children) == 0
}

// Walk visits every node in pre-order, children left to right. depth is 0
// for t itself. Returning false from fn skips the node's subtree.
func (t *Tree[L]) Walk(fn func(n *Tree[L], depth int) bool) {
	type entry struct {
		node  *Tree[L]
		depth int
	}
	stack := []entry{{node: t}}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(e.node, e.depth) {
			continue
		}
		for i := len(e.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, entry{node: e.node.Children[i], depth: e.depth + 1})
		}
	}
}

// Size returns the number of nodes in t.
func (t *Tree[L]) Size() int {
	n := 0
	t.Walk(func(*Tree[L], int) bool {
		n++
		return true
	})
	return n
}

// Depth returns the number of nodes on the longest root-to-leaf path.
func (t *Tree[L]) Depth() int {
	deepest := 0
	t.Walk(func(_ *Tree[L], d int) bool {
		deepest = max(deepest, d+1)
		return true
	})
	return deepest
}

// Leaves returns the number of leaf nodes in t.
func (t *Tree[L]) Leaves() int {
	n := 0
	t.Walk(func(node *Tree[L], _ int) bool {
		if node.IsLeaf() {
			n++
		}
		return true
	})
	return n
}
