package domain

import "strings"

// Category is the closed set of catalog departments
type Category string

const (
	CategoryMen         Category = "Men"
	CategoryWomen       Category = "Women"
	CategoryAccessories Category = "Accessories"
	CategoryKids        Category = "Kids"

	// CategoryAll is a filter value only; no product carries it.
	CategoryAll Category = "All"
)

// Categories lists the product categories in navigation order
var Categories = []Category{CategoryMen, CategoryWomen, CategoryAccessories, CategoryKids}

// ParseCategory resolves a filter value, accepting "All" and any product category
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.TrimSpace(s))
	if c == CategoryAll {
		return c, true
	}
	for _, known := range Categories {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// Product represents a product in the catalog
type Product struct {
	ID          string   `json:"id" db:"id" validate:"required,max=64"`
	Name        string   `json:"name" db:"name" validate:"required,max=255"`
	Description string   `json:"description" db:"description"`
	Price       float64  `json:"price" db:"price" validate:"gte=0"`
	Category    Category `json:"category" db:"category" validate:"oneof=Men Women Accessories Kids"`
	Image       string   `json:"image" db:"image" validate:"max=500"`
	Tags        []string `json:"tags" db:"tags"`
}
