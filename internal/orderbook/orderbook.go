// Package orderbook is the benchmark workload: a binary search tree of
// resting orders, driven by a seeded stream of inserts and removals.
package orderbook

import (
	"errors"
	"math/rand/v2"
)

type OrderSide int

const (
	OrderSideBuy OrderSide = iota + 1
	OrderSideSell
)

const (
	MinPrice = 9000
	MaxPrice = 10000
)

// ErrNotFound is returned by Remove for an id that is not in the book.
var ErrNotFound = errors.New("orderbook: order not found")

type Order struct {
	Id    int
	Side  OrderSide
	Price int
	Qty   int
}

type OrderBook interface {
	Insert(order Order) error
	Remove(id int) error
	// Len reports how many orders are resting in the book.
	Len() int
	// Reset drops every order and releases the memory behind them.
	Reset()
}

// Workload produces orders with increasing ids and removes them oldest
// first. It is not safe for concurrent use.
type Workload struct {
	rng         *rand.Rand
	nextID      int
	nextRemoval int
}

func NewWorkload(seed uint64) *Workload {
	return &Workload{
		rng:         rand.New(rand.NewPCG(seed, seed^0x2545f4914f6cdd1d)),
		nextID:      1,
		nextRemoval: 1,
	}
}

// Order returns the next order.
func (w *Workload) Order() Order {
	side := OrderSideBuy
	if w.rng.IntN(2) == 0 {
		side = OrderSideSell
	}
	o := Order{
		Id:    w.nextID,
		Side:  side,
		Price: w.rng.IntN(MaxPrice-MinPrice) + MinPrice,
		Qty:   w.rng.IntN(10) + 1,
	}
	w.nextID++
	return o
}

// Step inserts a new order or removes the oldest resting one, with equal
// odds. Removal is skipped while the book is empty.
func (w *Workload) Step(ob OrderBook) error {
	if w.rng.IntN(2) == 0 {
		return ob.Insert(w.Order())
	}
	if w.nextRemoval >= w.nextID {
		return nil
	}
	id := w.nextRemoval
	w.nextRemoval++
	return ob.Remove(id)
}
