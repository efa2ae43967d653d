// Package filter decides which catalog products are visible for the current
// result scope, category and search query.
package filter

import (
	"fmt"

	"lumina/internal/domain"
)

// ComputeVisible returns the products to render, in catalog order.
//
// Membership in displayedIDs decides eligibility; the order of displayedIDs is
// ignored. A non-empty activeQuery suppresses category filtering so a search
// result spans every category. IDs absent from the catalog are dropped.
func ComputeVisible(catalog []domain.Product, displayedIDs []string, activeCategory domain.Category, activeQuery string) []domain.Product {
	scope := make(map[string]struct{}, len(displayedIDs))
	for _, id := range displayedIDs {
		scope[id] = struct{}{}
	}

	byCategory := activeQuery == "" && activeCategory != domain.CategoryAll && activeCategory != ""

	visible := []domain.Product{}
	for _, p := range catalog {
		if _, ok := scope[p.ID]; !ok {
			continue
		}
		if byCategory && p.Category != activeCategory {
			continue
		}
		visible = append(visible, p)
	}
	return visible
}

// CountLabel renders the result count shown above the product grid
func CountLabel(n int) string {
	return fmt.Sprintf("%d items found", n)
}
