// Package cart holds the shopping cart of the shop view.
package cart

import (
	"math"
	"sync"

	"github.com/phoenixfitness/phoenix-stack/common/models"
)

// Item is a product in the cart with its quantity.
type Item struct {
	Product  models.Product
	Quantity int
}

// Subtotal returns the line total in minor units.
func (i Item) Subtotal() int64 {
	return MinorUnits(i.Product.Price) * int64(i.Quantity)
}

// Cart is safe for concurrent use. The zero value is an empty cart.
type Cart struct {
	mu    sync.Mutex
	items []Item
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

// Add puts one more of p in the cart.
func (c *Cart) Add(p models.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexLocked(p.ID); i >= 0 {
		c.items[i].Quantity++
		return
	}
	c.items = append(c.items, Item{Product: p, Quantity: 1})
}

// Remove drops the product with id. Unknown ids are ignored.
func (c *Cart) Remove(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexLocked(id); i >= 0 {
		c.items = append(c.items[:i], c.items[i+1:]...)
	}
}

// SetQuantity sets the quantity of a product already in the cart. A quantity
// below one removes it. It reports whether the product was in the cart.
func (c *Cart) SetQuantity(id int64, n int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(id)
	if i < 0 {
		return false
	}
	if n < 1 {
		c.items = append(c.items[:i], c.items[i+1:]...)
		return true
	}
	c.items[i].Quantity = n
	return true
}

// TotalItems returns the number of units across all lines.
func (c *Cart) TotalItems() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, it := range c.items {
		total += it.Quantity
	}
	return total
}

// Total returns the cart total in minor units (paise, cents).
func (c *Cart) Total() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total int64
	for _, it := range c.items {
		total += it.Subtotal()
	}
	return total
}

// Items returns a copy of the cart lines in insertion order.
func (c *Cart) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Item(nil), c.items...)
}

func (c *Cart) indexLocked(id int64) int {
	for i, it := range c.items {
		if it.Product.ID == id {
			return i
		}
	}
	return -1
}

// MinorUnits converts a price to minor units, rounding to the nearest unit.
func MinorUnits(price float64) int64 {
	return int64(math.Round(price * 100))
}

// Major converts minor units back to a price for display.
func Major(minor int64) float64 {
	return float64(minor) / 100
}
