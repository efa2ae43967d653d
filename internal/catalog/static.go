package catalog

import (
	"context"
	"fmt"

	"lumina/internal/domain"
)

func imageFor(seed string) string {
	return fmt.Sprintf("https://picsum.photos/seed/%s/600/800", seed)
}

// seedProducts is the storefront's launch collection.
// The goose seed migration carries the same rows.
var seedProducts = []domain.Product{
	{
		ID:          "p1",
		Name:        "Merino Wool Structured Coat",
		Description: "A timeless classic tailored from premium Italian merino wool. Perfect for crisp autumn evenings.",
		Price:       249.00,
		Category:    domain.CategoryWomen,
		Image:       imageFor("coat1"),
		Tags:        []string{"formal", "winter", "wool", "elegant", "beige"},
	},
	{
		ID:          "p2",
		Name:        "Urban Tech-Fleece Hoodie",
		Description: "Engineered for the city. Moisture-wicking fabric with a sleek, modern silhouette.",
		Price:       89.00,
		Category:    domain.CategoryMen,
		Image:       imageFor("hoodie1"),
		Tags:        []string{"casual", "sport", "streetwear", "black", "comfortable"},
	},
	{
		ID:          "p3",
		Name:        "Silk Chiffon Evening Dress",
		Description: "Flowing elegance with a delicate floral print. The perfect statement piece for summer weddings.",
		Price:       320.00,
		Category:    domain.CategoryWomen,
		Image:       imageFor("dress1"),
		Tags:        []string{"party", "summer", "wedding", "floral", "luxury"},
	},
	{
		ID:          "p4",
		Name:        "Heritage Leather Weekender",
		Description: "Full-grain leather travel bag that ages beautifully. Spacious enough for a 3-day getaway.",
		Price:       450.00,
		Category:    domain.CategoryAccessories,
		Image:       imageFor("bag1"),
		Tags:        []string{"travel", "leather", "brown", "vintage", "durable"},
	},
	{
		ID:          "p5",
		Name:        "Minimalist Linen Shirt",
		Description: "Breathable linen shirt in a relaxed fit. Essential for coastal vacations.",
		Price:       65.00,
		Category:    domain.CategoryMen,
		Image:       imageFor("shirt1"),
		Tags:        []string{"summer", "beach", "casual", "white", "linen"},
	},
	{
		ID:          "p6",
		Name:        "Chunky Knit Cardigan",
		Description: "Oversized comfort in a soft cotton blend. Cozy styling for home or office.",
		Price:       95.00,
		Category:    domain.CategoryWomen,
		Image:       imageFor("knit1"),
		Tags:        []string{"winter", "cozy", "casual", "grey", "cotton"},
	},
	{
		ID:          "p7",
		Name:        "Aviator Gold Sunglasses",
		Description: "Classic aviator frames with polarized lenses. 100% UV protection.",
		Price:       150.00,
		Category:    domain.CategoryAccessories,
		Image:       imageFor("glasses1"),
		Tags:        []string{"summer", "gold", "accessories", "classic"},
	},
	{
		ID:          "p8",
		Name:        "Junior Denim Jacket",
		Description: "Durable denim with a soft shearling collar. Stylish warmth for the little ones.",
		Price:       45.00,
		Category:    domain.CategoryKids,
		Image:       imageFor("kids1"),
		Tags:        []string{"kids", "denim", "blue", "winter", "casual"},
	},
	{
		ID:          "p9",
		Name:        "Performance Running Trainers",
		Description: "High-response foam cushioning for marathon-level comfort.",
		Price:       130.00,
		Category:    domain.CategoryMen,
		Image:       imageFor("shoes1"),
		Tags:        []string{"sport", "running", "shoes", "neon"},
	},
	{
		ID:          "p10",
		Name:        "Velvet Evening Blazer",
		Description: "Deep midnight blue velvet. Sharp tailoring for black-tie events.",
		Price:       280.00,
		Category:    domain.CategoryMen,
		Image:       imageFor("blazer1"),
		Tags:        []string{"formal", "party", "blue", "velvet", "luxury"},
	},
	{
		ID:          "p11",
		Name:        "Cashmere Scarf",
		Description: "Ultra-soft Mongolian cashmere. The ultimate winter accessory.",
		Price:       110.00,
		Category:    domain.CategoryAccessories,
		Image:       imageFor("scarf1"),
		Tags:        []string{"winter", "accessory", "red", "soft", "luxury"},
	},
	{
		ID:          "p12",
		Name:        "Summer Floral Romper",
		Description: "Playful and light. 100% organic cotton for hot days.",
		Price:       35.00,
		Category:    domain.CategoryKids,
		Image:       imageFor("kids2"),
		Tags:        []string{"kids", "summer", "floral", "pink", "cute"},
	},
}

// Static serves a fixed, in-process product list
type Static struct {
	products []domain.Product
}

// NewStatic creates a Static source over products.
// With no arguments the launch collection is used.
func NewStatic(products ...domain.Product) *Static {
	if len(products) == 0 {
		products = seedProducts
	}
	return &Static{products: clone(products)}
}

// List returns a copy of the products in catalog order
func (s *Static) List(ctx context.Context) ([]domain.Product, error) {
	return clone(s.products), nil
}

func clone(products []domain.Product) []domain.Product {
	out := make([]domain.Product, len(products))
	for i, p := range products {
		p.Tags = append([]string(nil), p.Tags...)
		out[i] = p
	}
	return out
}
