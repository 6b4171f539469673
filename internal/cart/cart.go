// Package cart holds a session's shopping cart. Carts live only in memory and
// are dropped with the session.
package cart

import (
	"errors"
	"sync"

	"github.com/wolfman30/lumeskin-platform/internal/models"
)

var ErrEmptyCart = errors.New("cart: cart is empty")

type Cart struct {
	mu         sync.Mutex
	items      []models.CartItem
	isCheckout bool
}

func New() *Cart {
	return &Cart{}
}

// Add increments the quantity of an existing line or appends a new one.
func (c *Cart) Add(product models.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].ID == product.ID {
			c.items[i].Quantity++
			return
		}
	}
	c.items = append(c.items, models.CartItem{Product: product, Quantity: 1})
}

// Items returns a copy of the lines in insertion order.
func (c *Cart) Items() []models.CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.CartItem{}, c.items...)
}

// Total is recomputed from the lines on every call.
func (c *Cart) Total() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total float64
	for _, item := range c.items {
		total += item.Subtotal()
	}
	return total
}

// Count is the number of units across all lines.
func (c *Cart) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, item := range c.items {
		n += item.Quantity
	}
	return n
}

func (c *Cart) IsCheckout() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isCheckout
}

func (c *Cart) BeginCheckout() {
	c.mu.Lock()
	c.isCheckout = true
	c.mu.Unlock()
}

func (c *Cart) ExitCheckout() {
	c.mu.Lock()
	c.isCheckout = false
	c.mu.Unlock()
}

// CompleteCheckout empties the cart and leaves checkout. No order is recorded.
func (c *Cart) CompleteCheckout() (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) == 0 {
		return Snapshot{}, ErrEmptyCart
	}
	snap := snapshotLocked(c.items, c.isCheckout)
	c.items = nil
	c.isCheckout = false
	return snap, nil
}

// Clear drops every line and leaves checkout.
func (c *Cart) Clear() {
	c.mu.Lock()
	c.items = nil
	c.isCheckout = false
	c.mu.Unlock()
}

// Snapshot is the JSON view of a cart.
type Snapshot struct {
	Items      []models.CartItem `json:"items"`
	Total      float64           `json:"total"`
	Count      int               `json:"count"`
	IsCheckout bool              `json:"isCheckout"`
}

func (c *Cart) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return snapshotLocked(c.items, c.isCheckout)
}

func snapshotLocked(items []models.CartItem, checkout bool) Snapshot {
	snap := Snapshot{Items: append([]models.CartItem{}, items...), IsCheckout: checkout}
	for _, item := range items {
		snap.Total += item.Subtotal()
		snap.Count += item.Quantity
	}
	return snap
}
