package repositories

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"catalog/internal/models"

	"github.com/google/uuid"
	"github.com/spf13/cast"
)

type memoryRecord struct {
	product models.Product
	seq     uint64
}

// MemoryProductRepository is an in-memory implementation of ProductRepository.
type MemoryProductRepository struct {
	products map[string]memoryRecord
	seq      uint64
	mu       sync.RWMutex
}

// NewMemoryProductRepository creates a new instance of MemoryProductRepository.
func NewMemoryProductRepository() *MemoryProductRepository {
	return &MemoryProductRepository{
		products: make(map[string]memoryRecord),
	}
}

// Insert adds a new product.
func (r *MemoryProductRepository) Insert(ctx context.Context, product *models.Product) error {
	if err := ctx.Err(); err != nil {
		return persistenceErr("insert product", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if _, ok := r.products[product.ID]; ok {
		return persistenceErr("insert product", fmt.Errorf("product with ID %s already exists", product.ID))
	}
	r.seq++
	r.products[product.ID] = memoryRecord{product: *product, seq: r.seq}
	return nil
}

// Find returns the products matching q, ordered and paginated.
func (r *MemoryProductRepository) Find(ctx context.Context, q Query) ([]models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, persistenceErr("find products", err)
	}
	keys, err := parseSort(q.Sort)
	if err != nil {
		return nil, persistenceErr("find products", err)
	}

	records, err := r.matching(q.Filter)
	if err != nil {
		return nil, persistenceErr("find products", err)
	}

	sort.Slice(records, func(i, j int) bool {
		for _, k := range keys {
			c := compareField(records[i].product, records[j].product, k.field)
			if c == 0 {
				continue
			}
			if k.desc {
				return c > 0
			}
			return c < 0
		}
		// Equal keys fall back to insertion order, following the first key's direction.
		if len(keys) > 0 && keys[0].desc {
			return records[i].seq > records[j].seq
		}
		return records[i].seq < records[j].seq
	})

	start := min(max(q.Offset, 0), len(records))
	end := len(records)
	if q.Limit > 0 {
		end = min(start+q.Limit, end)
	}

	products := make([]models.Product, 0, end-start)
	for _, rec := range records[start:end] {
		products = append(products, rec.product)
	}
	return products, nil
}

// Count returns the number of products matching the filter of q.
func (r *MemoryProductRepository) Count(ctx context.Context, q Query) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, persistenceErr("count products", err)
	}
	records, err := r.matching(q.Filter)
	if err != nil {
		return 0, persistenceErr("count products", err)
	}
	return int64(len(records)), nil
}

func (r *MemoryProductRepository) matching(filter map[string]any) ([]memoryRecord, error) {
	if _, err := filterColumns(filter); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]memoryRecord, 0, len(r.products))
	for _, rec := range r.products {
		if matchesFilter(rec.product, filter) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func matchesFilter(p models.Product, filter map[string]any) bool {
	for field, want := range filter {
		switch field {
		case models.FieldID:
			if cast.ToString(want) != p.ID {
				return false
			}
		case models.FieldBarCode:
			if cast.ToString(want) != p.BarCode {
				return false
			}
		case models.FieldPrice:
			f, err := cast.ToFloat64E(want)
			if err != nil || f != p.Price {
				return false
			}
		case models.FieldCreatedAt:
			if !cast.ToTime(want).Equal(p.CreatedAt) {
				return false
			}
		case models.FieldUpdatedAt:
			if !cast.ToTime(want).Equal(p.UpdatedAt) {
				return false
			}
		}
	}
	return true
}

func compareField(a, b models.Product, field string) int {
	switch field {
	case models.FieldID:
		return strings.Compare(a.ID, b.ID)
	case models.FieldBarCode:
		return strings.Compare(a.BarCode, b.BarCode)
	case models.FieldPrice:
		switch {
		case a.Price < b.Price:
			return -1
		case a.Price > b.Price:
			return 1
		}
		return 0
	case models.FieldCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	case models.FieldUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	}
	return 0
}
