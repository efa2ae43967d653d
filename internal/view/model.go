package view

import (
	"fmt"

	"lumina/internal/cart"
	"lumina/internal/domain"
	"lumina/internal/filter"
)

const (
	EmptyTitle = "No styles found."
	EmptyHint  = "Try a different search or browse our full collection."
)

// EmptyState is the copy rendered when no product is visible
type EmptyState struct {
	Title string `json:"title"`
	Hint  string `json:"hint"`
}

// CartSummary is the cart badge and drawer footer
type CartSummary struct {
	Lines    cart.Ledger `json:"lines"`
	Count    int         `json:"count"`
	Subtotal float64     `json:"subtotal"`
}

// Model is everything a renderer needs to draw the storefront
type Model struct {
	Heading        string           `json:"heading"`
	CountLabel     string           `json:"count_label"`
	Products       []domain.Product `json:"products"`
	Empty          *EmptyState      `json:"empty,omitempty"`
	ShowHero       bool             `json:"show_hero"`
	CanClearSearch bool             `json:"can_clear_search"`

	ActiveCategory domain.Category   `json:"active_category"`
	ActiveQuery    string            `json:"active_query"`
	IsSearching    bool              `json:"is_searching"`
	Categories     []domain.Category `json:"categories"`

	Surfaces     Surfaces        `json:"surfaces"`
	Product      *domain.Product `json:"product,omitempty"`
	SelectedSize string          `json:"selected_size,omitempty"`
	Sizes        []string        `json:"sizes"`

	Cart CartSummary `json:"cart"`
}

// Project renders state against the catalog and cart
func Project(s State, catalog []domain.Product, ledger cart.Ledger) Model {
	visible := filter.ComputeVisible(catalog, s.DisplayedIDs, s.ActiveCategory, s.ActiveQuery)

	m := Model{
		Heading:        Heading(s),
		CountLabel:     filter.CountLabel(len(visible)),
		Products:       visible,
		ShowHero:       s.ActiveQuery == "" && s.ActiveCategory == domain.CategoryAll,
		CanClearSearch: s.ActiveQuery != "",
		ActiveCategory: s.ActiveCategory,
		ActiveQuery:    s.ActiveQuery,
		IsSearching:    s.IsSearching,
		Categories:     append([]domain.Category{domain.CategoryAll}, domain.Categories...),
		Surfaces:       s.Surfaces,
		SelectedSize:   s.SelectedSize,
		Sizes:          domain.Sizes,
		Cart: CartSummary{
			Lines:    nonNil(ledger),
			Count:    cart.Count(ledger),
			Subtotal: cart.Subtotal(ledger),
		},
	}

	if len(visible) == 0 {
		m.Empty = &EmptyState{Title: EmptyTitle, Hint: EmptyHint}
	}

	if s.SelectedProduct != "" {
		for i := range catalog {
			if catalog[i].ID == s.SelectedProduct {
				p := catalog[i]
				m.Product = &p
				break
			}
		}
	}

	return m
}

// Heading is the title above the product grid
func Heading(s State) string {
	if s.ActiveQuery != "" {
		return fmt.Sprintf("Search Results: \"%s\"", s.ActiveQuery)
	}
	return fmt.Sprintf("%s Collection", s.ActiveCategory)
}

func nonNil(l cart.Ledger) cart.Ledger {
	if l == nil {
		return cart.Ledger{}
	}
	return l
}
