package manualbook

import (
	"errors"
	"fmt"

	"github.com/shivam-909/freelistalloc/alloc"
	"github.com/shivam-909/freelistalloc/internal/orderbook"
)

// ErrNoMemory is returned by Insert when the allocator cannot supply a node.
var ErrNoMemory = errors.New("manualbook: node allocation failed")

// manualbook keeps every tree node in free-list allocator memory.
type manualbook struct {
	a    *alloc.Allocator
	tree orderbook.Tree
}

// New creates a manualbook on the process-wide allocator.
func New() orderbook.OrderBook {
	return NewWith(alloc.Default())
}

// NewWith creates a manualbook whose nodes come from a.
func NewWith(a *alloc.Allocator) orderbook.OrderBook {
	return &manualbook{a: a}
}

func (b *manualbook) Insert(o orderbook.Order) error {
	n := alloc.NewWith[orderbook.OrderBookNode](b.a)
	if n == nil {
		return fmt.Errorf("insert order %d: %w", o.Id, ErrNoMemory)
	}
	n.Order = o
	b.tree.Link(n)
	return nil
}

// Remove unlinks the order and returns its node to the allocator.
func (b *manualbook) Remove(id int) error {
	n := b.tree.Unlink(id)
	if n == nil {
		return fmt.Errorf("remove order %d: %w", id, orderbook.ErrNotFound)
	}
	alloc.FreeWith(b.a, n)
	return nil
}

func (b *manualbook) Len() int { return b.tree.Len() }

// Reset frees every node back to the allocator.
func (b *manualbook) Reset() {
	b.tree.Drain(func(n *orderbook.OrderBookNode) { alloc.FreeWith(b.a, n) })
}
