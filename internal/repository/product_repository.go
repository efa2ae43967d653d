package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"lumina/internal/domain"

	"github.com/jackc/pgx/v5/pgtype"
)

var (
	ErrProductNotFound = errors.New("product not found")
)

// ProductRepository defines the interface for catalog data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	FindByID(ctx context.Context, id string) (*domain.Product, error)
	List(ctx context.Context) ([]domain.Product, error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

// Create appends a product to the end of the catalog using parameterized queries
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	tags := product.Tags
	if tags == nil {
		tags = []string{}
	}

	query := `
		INSERT INTO products (id, position, name, description, price, category, image, tags)
		VALUES ($1, (SELECT COALESCE(MAX(position), 0) + 1 FROM products), $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Description,
		product.Price,
		string(product.Category),
		product.Image,
		tags,
	)

	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// FindByID retrieves a product by ID using parameterized queries
func (r *productRepository) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	query := `
		SELECT id, name, description, price, category, image, tags
		FROM products
		WHERE id = $1
	`

	product, err := scanProduct(pgtype.NewMap(), r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// List retrieves the whole catalog in insertion order
func (r *productRepository) List(ctx context.Context) ([]domain.Product, error) {
	query := `
		SELECT id, name, description, price, category, image, tags
		FROM products
		ORDER BY position ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	types := pgtype.NewMap()
	products := []domain.Product{}
	for rows.Next() {
		product, err := scanProduct(types, rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *product)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanProduct reads one row; types decodes the TEXT[] tags column and must
// not be shared across goroutines
func scanProduct(types *pgtype.Map, row rowScanner) (*domain.Product, error) {
	var (
		product  domain.Product
		category string
	)
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.Price,
		&category,
		&product.Image,
		types.SQLScanner(&product.Tags),
	)
	if err != nil {
		return nil, err
	}

	product.Category = domain.Category(category)
	if product.Tags == nil {
		product.Tags = []string{}
	}
	return &product, nil
}
