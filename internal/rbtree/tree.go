// internal/rbtree/tree.go
package rbtree

// Color of a node in the red-black tree.
type Color bool

const (
	Red   Color = true
	Black Color = false
)

// Node is a single immutable node of a persistent left-leaning red-black
// tree. Once a node is reachable from a published root it is never mutated;
// mutations clone the nodes along the search path and share every untouched
// subtree with prior roots.
type Node struct {
	Key     string
	Value   any
	Color   Color
	Left    *Node
	Right   *Node
	Size    int
	Version string
}

// IsRed reports whether n is a red node. Nil nodes are black.
func IsRed(n *Node) bool {
	return n != nil && n.Color == Red
}

// Size returns the number of nodes in the subtree rooted at n.
func Size(n *Node) int {
	if n == nil {
		return 0
	}
	return n.Size
}

// Insert returns the root of a new tree containing (key, value), tagged with
// version. The tree rooted at root is left untouched; every node not on the
// search path is shared between the old and new roots.
func Insert(root *Node, key string, value any, version string) *Node {
	n := put(root, key, value, version)
	// put always returns a fresh clone for the root position, so blackening
	// it in place cannot be observed through any older root.
	n.Color = Black
	return n
}

func put(h *Node, key string, value any, version string) *Node {
	if h == nil {
		return &Node{Key: key, Value: value, Color: Red, Size: 1, Version: version}
	}

	n := &Node{
		Key:     h.Key,
		Value:   h.Value,
		Color:   h.Color,
		Left:    h.Left,
		Right:   h.Right,
		Size:    h.Size,
		Version: version,
	}

	switch {
	case key < h.Key:
		n.Left = put(h.Left, key, value, version)
	case key > h.Key:
		n.Right = put(h.Right, key, value, version)
	default:
		n.Value = value
		return n
	}

	return balance(n)
}

// balance restores the left-leaning invariants after an insertion. It only
// ever touches nodes allocated by the current put, never shared ones.
func balance(h *Node) *Node {
	if IsRed(h.Right) && !IsRed(h.Left) {
		h = rotateLeft(h)
	}
	if IsRed(h.Left) && IsRed(h.Left.Left) {
		h = rotateRight(h)
	}
	if IsRed(h.Left) && IsRed(h.Right) {
		h = flipColors(h)
	}

	h.Size = Size(h.Left) + Size(h.Right) + 1
	return h
}

func rotateLeft(h *Node) *Node {
	x := h.Right
	n := &Node{
		Key:     x.Key,
		Value:   x.Value,
		Color:   h.Color,
		Left:    h,
		Right:   x.Right,
		Size:    h.Size,
		Version: h.Version,
	}
	h.Right = x.Left
	h.Color = Red
	h.Size = Size(h.Left) + Size(h.Right) + 1
	return n
}

func rotateRight(h *Node) *Node {
	x := h.Left
	n := &Node{
		Key:     x.Key,
		Value:   x.Value,
		Color:   h.Color,
		Left:    x.Left,
		Right:   h,
		Size:    h.Size,
		Version: h.Version,
	}
	h.Left = x.Right
	h.Color = Red
	h.Size = Size(h.Left) + Size(h.Right) + 1
	return n
}

func flipColors(h *Node) *Node {
	h.Color = Red
	h.Left = &Node{
		Key: h.Left.Key, Value: h.Left.Value, Color: Black,
		Left: h.Left.Left, Right: h.Left.Right,
		Size: h.Left.Size, Version: h.Version,
	}
	h.Right = &Node{
		Key: h.Right.Key, Value: h.Right.Value, Color: Black,
		Left: h.Right.Left, Right: h.Right.Right,
		Size: h.Right.Size, Version: h.Version,
	}
	return h
}

// Get returns the value stored under key in the tree rooted at root. It is
// safe to call without locking on any published root.
func Get(root *Node, key string) (any, bool) {
	x := root
	for x != nil {
		switch {
		case key < x.Key:
			x = x.Left
		case key > x.Key:
			x = x.Right
		default:
			return x.Value, true
		}
	}
	return nil, false
}

// Keys returns every key in the tree rooted at root in ascending order.
func Keys(root *Node) []string {
	keys := make([]string, 0, Size(root))
	Walk(root, func(key string, _ any) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

// Walk visits every (key, value) pair in ascending key order. The traversal
// uses an explicit stack so arbitrarily large trees cannot exhaust the
// goroutine stack. Returning false from fn stops the walk.
func Walk(root *Node, fn func(key string, value any) bool) {
	stack := make([]*Node, 0, 32)
	x := root
	for x != nil || len(stack) > 0 {
		for x != nil {
			stack = append(stack, x)
			x = x.Left
		}
		x = stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(x.Key, x.Value) {
			return
		}
		x = x.Right
	}
}

// Rank returns the number of keys strictly smaller than key.
func Rank(root *Node, key string) int {
	rank := 0
	x := root
	for x != nil {
		switch {
		case key < x.Key:
			x = x.Left
		case key > x.Key:
			rank += Size(x.Left) + 1
			x = x.Right
		default:
			return rank + Size(x.Left)
		}
	}
	return rank
}

// Select returns the i-th smallest key (zero-based).
func Select(root *Node, i int) (string, bool) {
	x := root
	for x != nil {
		left := Size(x.Left)
		switch {
		case i < left:
			x = x.Left
		case i > left:
			i -= left + 1
			x = x.Right
		default:
			return x.Key, true
		}
	}
	return "", false
}
