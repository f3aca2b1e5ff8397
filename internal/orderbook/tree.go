package orderbook

// OrderBookNode is one tree node keyed by Order.Id. It holds no pointers into
// the Go heap, so the manual book can keep it in allocator memory.
type OrderBookNode struct {
	Order Order
	Left  *OrderBookNode
	Right *OrderBookNode
}

// Tree is an unbalanced binary search tree over nodes owned by the caller.
// It never allocates: Link takes a ready node and Unlink hands one back.
type Tree struct {
	root *OrderBookNode
	size int
}

func (t *Tree) Len() int { return t.size }

// Link inserts n. Equal ids go to the right.
func (t *Tree) Link(n *OrderBookNode) {
	n.Left, n.Right = nil, nil
	t.size++

	slot := &t.root
	for *slot != nil {
		if n.Order.Id < (*slot).Order.Id {
			slot = &(*slot).Left
		} else {
			slot = &(*slot).Right
		}
	}
	*slot = n
}

// Unlink detaches the node holding id and returns it, or nil if there is none.
// A node with two children is replaced by its in-order successor.
func (t *Tree) Unlink(id int) *OrderBookNode {
	slot := &t.root
	for *slot != nil && (*slot).Order.Id != id {
		if id < (*slot).Order.Id {
			slot = &(*slot).Left
		} else {
			slot = &(*slot).Right
		}
	}
	n := *slot
	if n == nil {
		return nil
	}

	switch {
	case n.Left == nil:
		*slot = n.Right
	case n.Right == nil:
		*slot = n.Left
	default:
		succ := &n.Right
		for (*succ).Left != nil {
			succ = &(*succ).Left
		}
		s := *succ
		*succ = s.Right
		s.Left, s.Right = n.Left, n.Right
		*slot = s
	}
	n.Left, n.Right = nil, nil
	t.size--
	return n
}

// Drain empties the tree, passing every node to release after its children.
func (t *Tree) Drain(release func(*OrderBookNode)) {
	var walk func(n *OrderBookNode)
	walk = func(n *OrderBookNode) {
		if n == nil {
			return
		}
		walk(n.Left)
		walk(n.Right)
		release(n)
	}
	walk(t.root)
	t.root = nil
	t.size = 0
}

// Walk visits orders in id order.
func (t *Tree) Walk(fn func(Order)) {
	var walk func(n *OrderBookNode)
	walk = func(n *OrderBookNode) {
		if n == nil {
			return
		}
		walk(n.Left)
		fn(n.Order)
		walk(n.Right)
	}
	walk(t.root)
}
