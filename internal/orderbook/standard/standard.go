package standardbook

import (
	"fmt"

	"github.com/shivam-909/freelistalloc/internal/orderbook"
)

// standardbook is the Go heap baseline: nodes come from new and are left to
// the garbage collector.
type standardbook struct {
	tree orderbook.Tree
}

func New() orderbook.OrderBook {
	return &standardbook{}
}

func (b *standardbook) Insert(o orderbook.Order) error {
	b.tree.Link(&orderbook.OrderBookNode{Order: o})
	return nil
}

func (b *standardbook) Remove(id int) error {
	if b.tree.Unlink(id) == nil {
		return fmt.Errorf("remove order %d: %w", id, orderbook.ErrNotFound)
	}
	return nil
}

func (b *standardbook) Len() int { return b.tree.Len() }

func (b *standardbook) Reset() { b.tree = orderbook.Tree{} }
