// Package view holds the storefront's UI state and the pure transitions that
// user intents and AI responses apply to it.
package view

import (
	"lumina/internal/domain"
)

// Surface names an independently visible UI panel
type Surface string

const (
	SurfaceSearch Surface = "search"
	SurfaceCart   Surface = "cart"
	SurfaceChat   Surface = "chat"
	SurfaceNav    Surface = "nav"
)

// ParseSurface resolves a surface name
func ParseSurface(s string) (Surface, bool) {
	switch Surface(s) {
	case SurfaceSearch, SurfaceCart, SurfaceChat, SurfaceNav:
		return Surface(s), true
	}
	return "", false
}

// Surfaces tracks which panels are open
type Surfaces struct {
	SearchOverlay bool `json:"search_overlay"`
	CartDrawer    bool `json:"cart_drawer"`
	ChatPanel     bool `json:"chat_panel"`
	MobileNav     bool `json:"mobile_nav"`
}

// State is the per-visitor UI state.
// DisplayedIDs is replaced wholesale, never patched.
type State struct {
	ActiveCategory domain.Category `json:"active_category"`
	ActiveQuery    string          `json:"active_query"`
	DisplayedIDs   []string        `json:"displayed_ids"`
	IsSearching    bool            `json:"is_searching"`

	// SearchSeq is the number of the most recently begun search
	SearchSeq uint64 `json:"search_seq"`

	Surfaces Surfaces `json:"surfaces"`

	// SelectedProduct is the product shown in the modal, empty when closed
	SelectedProduct string `json:"selected_product"`
	SelectedSize    string `json:"selected_size"`

	ChatPending bool `json:"chat_pending"`
}

// Initial returns the state of a fresh visit: every product in scope
func Initial(allIDs []string) State {
	return State{
		ActiveCategory: domain.CategoryAll,
		DisplayedIDs:   append([]string(nil), allIDs...),
	}
}

// SelectCategory shows the whole catalog restricted to c and clears any search
func SelectCategory(s State, c domain.Category, allIDs []string) State {
	s.ActiveCategory = c
	s.ActiveQuery = ""
	s.DisplayedIDs = append([]string(nil), allIDs...)
	s.Surfaces.MobileNav = false
	return s
}

// Open makes surface visible without touching the others
func Open(s State, surface Surface) State {
	return setSurface(s, surface, true)
}

// Close hides surface
func Close(s State, surface Surface) State {
	return setSurface(s, surface, false)
}

// ToggleMobileNav flips the mobile navigation menu
func ToggleMobileNav(s State) State {
	s.Surfaces.MobileNav = !s.Surfaces.MobileNav
	return s
}

func setSurface(s State, surface Surface, open bool) State {
	switch surface {
	case SurfaceSearch:
		s.Surfaces.SearchOverlay = open
	case SurfaceCart:
		s.Surfaces.CartDrawer = open
	case SurfaceChat:
		s.Surfaces.ChatPanel = open
	case SurfaceNav:
		s.Surfaces.MobileNav = open
	}
	return s
}

// OpenProduct shows the product modal for id with no size selected
func OpenProduct(s State, id string) State {
	s.SelectedProduct = id
	s.SelectedSize = ""
	return s
}

// CloseProduct hides the product modal and resets the size choice
func CloseProduct(s State) State {
	s.SelectedProduct = ""
	s.SelectedSize = ""
	return s
}

// SelectSize records the modal's size choice; unknown sizes are ignored
func SelectSize(s State, size string) State {
	if s.SelectedProduct == "" || !domain.ValidSize(size) {
		return s
	}
	s.SelectedSize = size
	return s
}

// CanAddSelected reports whether the modal has both a product and a size
func CanAddSelected(s State) bool {
	return s.SelectedProduct != "" && s.SelectedSize != ""
}

// AddedToCart applies the UI side of an add: the cart drawer opens.
// When the add came from the modal, the modal closes and its size resets.
func AddedToCart(s State, fromModal bool) State {
	s.Surfaces.CartDrawer = true
	if fromModal {
		s = CloseProduct(s)
	}
	return s
}

// BeginSearch marks a search as pending and returns its sequence number
func BeginSearch(s State) (State, uint64) {
	s.SearchSeq++
	s.IsSearching = true
	return s, s.SearchSeq
}

// ResolveSearch applies a search result.
// A result whose seq is older than the latest begun search is discarded so
// overlapping searches cannot overwrite a newer scope.
func ResolveSearch(s State, seq uint64, query string, ids []string) (State, bool) {
	if seq < s.SearchSeq {
		return s, false
	}

	s.DisplayedIDs = append([]string{}, ids...)
	s.ActiveQuery = query
	s.ActiveCategory = domain.CategoryAll
	s.IsSearching = false
	s.Surfaces.SearchOverlay = false
	return s, true
}

// ClearSearch restores the full catalog scope; the category is left untouched
func ClearSearch(s State, allIDs []string) State {
	s.ActiveQuery = ""
	s.DisplayedIDs = append([]string(nil), allIDs...)
	return s
}
