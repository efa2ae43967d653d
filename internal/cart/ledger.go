// Package cart implements the shopping cart as a pure reducer over cart lines
// keyed by (product id, size).
package cart

import "lumina/internal/domain"

// Ledger is the ordered list of cart lines; at most one line exists per key
type Ledger []domain.CartLine

// Add increments the line for (product, size) by qty or appends a new line.
// The returned bool is the "open cart view" notification for the caller.
func Add(l Ledger, product domain.Product, size string, qty int) (Ledger, bool) {
	next := make(Ledger, 0, len(l)+1)
	merged := false
	for _, line := range l {
		if line.Matches(product.ID, size) {
			line.Quantity += qty
			merged = true
		}
		next = append(next, line)
	}
	if !merged {
		next = append(next, domain.CartLine{
			Product:      product,
			SelectedSize: size,
			Quantity:     qty,
		})
	}
	return next, true
}

// Adjust applies delta to the line for (id, size), flooring at zero.
// A line that reaches zero is dropped. Missing keys are a no-op.
func Adjust(l Ledger, id, size string, delta int) Ledger {
	next := make(Ledger, 0, len(l))
	for _, line := range l {
		if line.Matches(id, size) {
			line.Quantity = max(0, line.Quantity+delta)
		}
		if line.Quantity > 0 {
			next = append(next, line)
		}
	}
	return next
}

// Remove drops the line for (id, size) if present
func Remove(l Ledger, id, size string) Ledger {
	next := make(Ledger, 0, len(l))
	for _, line := range l {
		if !line.Matches(id, size) {
			next = append(next, line)
		}
	}
	return next
}

// Find returns the line for (id, size)
func Find(l Ledger, id, size string) (domain.CartLine, bool) {
	for _, line := range l {
		if line.Matches(id, size) {
			return line, true
		}
	}
	return domain.CartLine{}, false
}

// Count sums the quantities of every line (the cart badge)
func Count(l Ledger) int {
	total := 0
	for _, line := range l {
		total += line.Quantity
	}
	return total
}

// Subtotal sums price times quantity over every line
func Subtotal(l Ledger) float64 {
	total := 0.0
	for _, line := range l {
		total += line.Price * float64(line.Quantity)
	}
	return total
}
