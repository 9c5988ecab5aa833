package repositories

import (
	"context"

	"catalog/internal/models"
)

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	Insert(ctx context.Context, product *models.Product) error
	Find(ctx context.Context, q Query) ([]models.Product, error)
	Count(ctx context.Context, q Query) (int64, error)
}
