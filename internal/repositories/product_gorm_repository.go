package repositories

import (
	"context"

	"catalog/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{
		db: db,
	}
}

// Insert creates a new product in the database, assigning an ID when none is set.
func (r *GORMProductRepository) Insert(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return persistenceErr("insert product", err)
	}
	return nil
}

// Find retrieves the products matching q, ordered and paginated.
func (r *GORMProductRepository) Find(ctx context.Context, q Query) ([]models.Product, error) {
	tx, err := r.filtered(ctx, q)
	if err != nil {
		return nil, persistenceErr("find products", err)
	}

	keys, err := parseSort(q.Sort)
	if err != nil {
		return nil, persistenceErr("find products", err)
	}
	for _, k := range keys {
		tx = tx.Order(clause.OrderByColumn{
			Column: clause.Column{Name: models.ProductColumns[k.field]},
			Desc:   k.desc,
		})
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	products := make([]models.Product, 0)
	if err := tx.Find(&products).Error; err != nil {
		return nil, persistenceErr("find products", err)
	}
	return products, nil
}

// Count returns the number of products matching the filter of q. Pagination is ignored.
func (r *GORMProductRepository) Count(ctx context.Context, q Query) (int64, error) {
	tx, err := r.filtered(ctx, q)
	if err != nil {
		return 0, persistenceErr("count products", err)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return 0, persistenceErr("count products", err)
	}
	return total, nil
}

func (r *GORMProductRepository) filtered(ctx context.Context, q Query) (*gorm.DB, error) {
	tx := r.db.WithContext(ctx).Model(&models.Product{})
	if len(q.Filter) == 0 {
		return tx, nil
	}
	cols, err := filterColumns(q.Filter)
	if err != nil {
		return nil, err
	}
	return tx.Where(cols), nil
}
