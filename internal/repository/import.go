package repository

import (
	"context"
	"errors"
	"fmt"

	"lumina/internal/domain"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var ErrInvalidProduct = errors.New("invalid product")

var validate = validator.New(validator.WithRequiredStructEnabled())

// ImportResult counts the outcome of an import
type ImportResult struct {
	Created int
	Skipped int
}

// ImportProducts appends products to the end of the catalog in the given order.
// Ids already present are skipped, so an import can be re-run safely.
// Every product is validated before anything is written.
func ImportProducts(ctx context.Context, repo ProductRepository, products []domain.Product, logger *zap.Logger) (ImportResult, error) {
	for i := range products {
		if err := validate.Struct(products[i]); err != nil {
			return ImportResult{}, fmt.Errorf("%w %q at index %d: %v", ErrInvalidProduct, products[i].ID, i, err)
		}
	}

	var result ImportResult
	for i := range products {
		product := products[i]

		_, err := repo.FindByID(ctx, product.ID)
		if err == nil {
			logger.Info("Product already in catalog, skipping", zap.String("product_id", product.ID))
			result.Skipped++
			continue
		}
		if !errors.Is(err, ErrProductNotFound) {
			return result, err
		}

		if err := repo.Create(ctx, &product); err != nil {
			return result, err
		}
		logger.Debug("Product imported", zap.String("product_id", product.ID))
		result.Created++
	}

	return result, nil
}
