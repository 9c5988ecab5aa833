package services

import (
	"context"
	"time"

	"catalog/internal/models"
	"catalog/internal/repositories"
	"catalog/internal/validation"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"
)

// ProductService validates products and bridges create/list calls to the repository.
type ProductService struct {
	repo      repositories.ProductRepository
	validator *validation.Validator
	publisher EventPublisher
	logger    hclog.Logger
	now       func() time.Time
}

// Option configures a ProductService.
type Option func(*ProductService)

// WithClock overrides the clock used to stamp createdAt and updatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *ProductService) {
		s.now = now
	}
}

// WithPublisher enables product.created notifications.
func WithPublisher(p EventPublisher) Option {
	return func(s *ProductService) {
		s.publisher = p
	}
}

// defaultClock matches the microsecond precision of SQL timestamp columns, so a created
// entity reads back with the same timestamps.
func defaultClock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository, logger hclog.Logger, opts ...Option) *ProductService {
	s := &ProductService{
		repo:      repo,
		validator: validation.New(),
		logger:    logger,
		now:       defaultClock,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListResult is a page of products together with the total number of matching products.
type ListResult struct {
	Rows  []models.Product
	Total int64
}

// CreateProduct validates candidate, stamps its timestamps and inserts it.
// Validation failures are returned as *validation.ValidationError and store failures as
// *repositories.PersistenceError.
func (s *ProductService) CreateProduct(ctx context.Context, candidate map[string]any) (*models.Product, error) {
	s.logger.Debug("Creating product", "barCode", candidate[models.FieldBarCode])

	product, err := s.validator.Validate(candidate)
	if err != nil {
		s.logger.Debug("Product rejected", "error", err)
		return nil, err
	}

	now := s.now()
	product.CreatedAt = now
	product.UpdatedAt = now

	if err := s.repo.Insert(ctx, product); err != nil {
		s.logger.Error("Unable to insert product", "barCode", product.BarCode, "error", err)
		return nil, err
	}

	s.publishCreated(ctx, *product)

	out, err := transformResult([]models.Product{*product}, s.transformEntity)
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// ListProducts returns a page of products, newest first, and the total count ignoring pagination.
// The find and count queries run concurrently; if either fails, the whole call fails.
func (s *ProductService) ListProducts(ctx context.Context, p Pagination) (*ListResult, error) {
	p = p.withDefaults()
	s.logger.Debug("Listing products", "limit", p.Limit, "offset", p.Offset)

	q := repositories.Query{
		Limit:  p.Limit,
		Offset: p.Offset,
		Sort:   []string{"-" + models.FieldCreatedAt},
		Filter: map[string]any{},
	}
	countQuery := q.WithoutPagination()

	var (
		rows  []models.Product
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = s.repo.Find(gctx, q)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.repo.Count(gctx, countQuery)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("Unable to list products", "error", err)
		return nil, err
	}

	rows, err := transformResult(rows, s.transformEntity)
	if err != nil {
		return nil, err
	}
	return &ListResult{Rows: rows, Total: total}, nil
}

// transformEntity shapes a product for output. Products are returned as stored.
func (s *ProductService) transformEntity(p models.Product) (models.Product, error) {
	return p, nil
}
