package domain

// Sizes is the fixed size enumeration offered for every product
var Sizes = []string{"XS", "S", "M", "L", "XL"}

// ValidSize reports whether size is part of the size enumeration
func ValidSize(size string) bool {
	for _, s := range Sizes {
		if s == size {
			return true
		}
	}
	return false
}

// CartLine is one (product, size) pairing in the cart.
// Quantity is always positive while the line exists.
type CartLine struct {
	Product
	SelectedSize string `json:"selected_size"`
	Quantity     int    `json:"quantity"`
}

// Matches reports whether the line is keyed by (id, size)
func (l CartLine) Matches(id, size string) bool {
	return l.ID == id && l.SelectedSize == size
}
