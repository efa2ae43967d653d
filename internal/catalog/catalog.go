package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"lumina/internal/domain"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrEmptyCatalog    = errors.New("catalog is empty")
)

// Source supplies the catalog in insertion order
type Source interface {
	List(ctx context.Context) ([]domain.Product, error)
}

// Catalog is an immutable snapshot of the product list
type Catalog struct {
	products []domain.Product
	index    map[string]int
}

// New builds a snapshot; product ids must be unique
func New(products []domain.Product) (*Catalog, error) {
	index := make(map[string]int, len(products))
	for i, p := range products {
		if p.ID == "" {
			return nil, fmt.Errorf("product at position %d has no id", i)
		}
		if _, dup := index[p.ID]; dup {
			return nil, fmt.Errorf("duplicate product id %q", p.ID)
		}
		index[p.ID] = i
	}
	return &Catalog{products: clone(products), index: index}, nil
}

// Products returns the products in catalog order.
// Callers must treat the slice as read-only.
func (c *Catalog) Products() []domain.Product {
	return c.products
}

// IDs returns every product id in catalog order
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.products))
	for i, p := range c.products {
		ids[i] = p.ID
	}
	return ids
}

// Lookup finds a product by id
func (c *Catalog) Lookup(id string) (domain.Product, error) {
	i, ok := c.index[id]
	if !ok {
		return domain.Product{}, ErrProductNotFound
	}
	return c.products[i], nil
}

// Contains reports whether id belongs to the catalog
func (c *Catalog) Contains(id string) bool {
	_, ok := c.index[id]
	return ok
}

// Len returns the number of products
func (c *Catalog) Len() int {
	return len(c.products)
}

// Cached loads the catalog from a Source once and serves the snapshot afterwards
type Cached struct {
	source Source
	logger *zap.Logger

	sfg      singleflight.Group // collapses concurrent first loads
	mu       sync.RWMutex
	snapshot *Catalog
}

// NewCached wraps source
func NewCached(source Source, logger *zap.Logger) *Cached {
	return &Cached{source: source, logger: logger}
}

// Load returns the catalog snapshot, reading the source on first use
func (c *Cached) Load(ctx context.Context) (*Catalog, error) {
	c.mu.RLock()
	snapshot := c.snapshot
	c.mu.RUnlock()
	if snapshot != nil {
		return snapshot, nil
	}

	v, err, _ := c.sfg.Do("catalog", func() (interface{}, error) {
		products, err := c.source.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
		if len(products) == 0 {
			return nil, ErrEmptyCatalog
		}

		snapshot, err := New(products)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.snapshot = snapshot
		c.mu.Unlock()

		c.logger.Info("Catalog loaded", zap.Int("products", snapshot.Len()))
		return snapshot, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*Catalog), nil
}
