package domain

import (
	"sort"
	"strings"
	"time"
)

// Cart is the session-scoped sequence of cart lines. It upholds one
// invariant: at most one line exists per (product id, add-on set) pair.
// Adding the same combination again increments the quantity in place.
type Cart struct {
	SessionID string
	Lines     []CartLine
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Add merges the line into an existing entry with the same product and add-on
// set, or appends a new line. Quantities below one are rejected by callers;
// Add itself only performs the merge.
func (c *Cart) Add(product ProductRef, quantity int, addons []Addon) {
	for i := range c.Lines {
		if c.Lines[i].Product.ID != product.ID {
			continue
		}
		if !sameAddonSet(c.Lines[i].Addons, addons) {
			continue
		}
		c.Lines[i].Quantity += quantity
		return
	}
	c.Lines = append(c.Lines, CartLine{
		Product:  product,
		Quantity: quantity,
		Addons:   cloneAddons(addons),
	})
}

// Remove deletes the line at the given index, preserving order of the rest.
func (c *Cart) Remove(index int) bool {
	if index < 0 || index >= len(c.Lines) {
		return false
	}
	c.Lines = append(c.Lines[:index], c.Lines[index+1:]...)
	return true
}

// SetQuantity replaces the quantity of the line at the given index.
func (c *Cart) SetQuantity(index int, quantity int) bool {
	if index < 0 || index >= len(c.Lines) || quantity < 1 {
		return false
	}
	c.Lines[index].Quantity = quantity
	return true
}

// Clear drops every line.
func (c *Cart) Clear() {
	c.Lines = nil
}

// Clone returns a deep copy safe to hand out while the original keeps mutating.
func (c *Cart) Clone() Cart {
	out := Cart{
		SessionID: c.SessionID,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if len(c.Lines) > 0 {
		out.Lines = make([]CartLine, len(c.Lines))
		for i, line := range c.Lines {
			line.Addons = cloneAddons(line.Addons)
			out.Lines[i] = line
		}
	}
	return out
}

// Subtotal sums the line totals.
func (c *Cart) Subtotal() Cents {
	var total Cents
	for _, line := range c.Lines {
		total += line.Total()
	}
	return total
}

// sameAddonSet compares add-on sets by name, ignoring order. The add-on name
// identifies the modifier; its price comes from the catalog definition.
func sameAddonSet(a, b []Addon) bool {
	if len(a) != len(b) {
		return false
	}
	names := func(addons []Addon) []string {
		out := make([]string, 0, len(addons))
		for _, addon := range addons {
			out = append(out, strings.ToLower(strings.TrimSpace(addon.Name)))
		}
		sort.Strings(out)
		return out
	}
	left, right := names(a), names(b)
	for i := range left {
		if left[i] != right[i] {
			return false
		}
	}
	return true
}

func cloneAddons(addons []Addon) []Addon {
	if len(addons) == 0 {
		return nil
	}
	out := make([]Addon, len(addons))
	copy(out, addons)
	return out
}
