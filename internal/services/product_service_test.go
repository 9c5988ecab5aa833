package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"catalog/internal/models"
	"catalog/internal/repositories"
	"catalog/internal/services"
	"catalog/internal/validation"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockProductRepository is a mock implementation of repositories.ProductRepository
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) Insert(ctx context.Context, product *models.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockProductRepository) Find(ctx context.Context, q repositories.Query) ([]models.Product, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockProductRepository) Count(ctx context.Context, q repositories.Query) (int64, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(int64), args.Error(1)
}

// MockEventPublisher is a mock implementation of services.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, key string, body []byte) error {
	args := m.Called(ctx, key, body)
	return args.Error(0)
}

var fixedNow = time.Date(2024, time.May, 4, 10, 30, 0, 0, time.UTC)

func newService(repo repositories.ProductRepository, opts ...services.Option) *services.ProductService {
	opts = append([]services.Option{services.WithClock(func() time.Time { return fixedNow })}, opts...)
	return services.NewProductService(repo, hclog.NewNullLogger(), opts...)
}

func assignID(id string) func(args mock.Arguments) {
	return func(args mock.Arguments) {
		args.Get(1).(*models.Product).ID = id
	}
}

func TestProductService_CreateProduct(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := newService(mockRepo)

	mockRepo.On("Insert", mock.Anything, mock.MatchedBy(func(p *models.Product) bool {
		return p.BarCode == "ABC123" && p.Price == 9.99 && p.CreatedAt.Equal(fixedNow) && p.UpdatedAt.Equal(fixedNow)
	})).Run(assignID("prod-1")).Return(nil).Once()

	product, err := service.CreateProduct(context.Background(), map[string]any{"barCode": "ABC123", "price": 9.99})
	require.NoError(t, err)
	assert.Equal(t, "prod-1", product.ID)
	assert.Equal(t, "ABC123", product.BarCode)
	assert.Equal(t, 9.99, product.Price)
	assert.Equal(t, fixedNow, product.CreatedAt)
	assert.Equal(t, product.CreatedAt, product.UpdatedAt)
	mockRepo.AssertExpectations(t)
}

func TestProductService_CreateProduct_ValidationError(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := newService(mockRepo)

	candidates := []map[string]any{
		{"barCode": "AB", "price": 9.99},
		{"barCode": "ABC", "price": 0.99},
		{"barCode": "A", "price": -1},
		{"price": 10},
		{},
	}
	for _, c := range candidates {
		product, err := service.CreateProduct(context.Background(), c)
		assert.Nil(t, product)
		var verr *validation.ValidationError
		assert.True(t, errors.As(err, &verr), "candidate %v: expected ValidationError, got %v", c, err)
	}

	// Nothing may reach the store.
	mockRepo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestProductService_CreateProduct_ValidationErrorMentionsBarCode(t *testing.T) {
	service := newService(new(MockProductRepository))

	_, err := service.CreateProduct(context.Background(), map[string]any{"barCode": "AB", "price": 9.99})
	var verr *validation.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.True(t, verr.Has("barCode"))
	assert.False(t, verr.Has("price"))
	assert.Contains(t, err.Error(), "barCode")
}

func TestProductService_CreateProduct_PersistenceError(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := newService(mockRepo)

	storeErr := &repositories.PersistenceError{Op: "insert product", Err: fmt.Errorf("constraint violation")}
	mockRepo.On("Insert", mock.Anything, mock.AnythingOfType("*models.Product")).Return(storeErr).Once()

	product, err := service.CreateProduct(context.Background(), map[string]any{"barCode": "ABC", "price": 5})
	assert.Nil(t, product)
	assert.Same(t, storeErr, err, "store errors must be surfaced unmodified")
	mockRepo.AssertExpectations(t)
}

func TestProductService_CreateProduct_PublishesEvent(t *testing.T) {
	mockRepo := new(MockProductRepository)
	mockPub := new(MockEventPublisher)
	service := newService(mockRepo, services.WithPublisher(mockPub))

	mockRepo.On("Insert", mock.Anything, mock.AnythingOfType("*models.Product")).Run(assignID("prod-7")).Return(nil).Once()
	mockPub.On("Publish", mock.Anything, "prod-7", mock.MatchedBy(func(body []byte) bool {
		var evt services.ProductEvent
		if err := json.Unmarshal(body, &evt); err != nil {
			return false
		}
		return evt.Event == services.EventProductCreated && evt.Product.ID == "prod-7" && evt.Product.BarCode == "XYZ999"
	})).Return(nil).Once()

	_, err := service.CreateProduct(context.Background(), map[string]any{"barCode": "XYZ999", "price": 3})
	require.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockPub.AssertExpectations(t)
}

func TestProductService_CreateProduct_PublishFailureDoesNotFailCreate(t *testing.T) {
	mockRepo := new(MockProductRepository)
	mockPub := new(MockEventPublisher)
	service := newService(mockRepo, services.WithPublisher(mockPub))

	mockRepo.On("Insert", mock.Anything, mock.AnythingOfType("*models.Product")).Run(assignID("prod-8")).Return(nil).Once()
	mockPub.On("Publish", mock.Anything, "prod-8", mock.Anything).Return(fmt.Errorf("broker down")).Once()

	product, err := service.CreateProduct(context.Background(), map[string]any{"barCode": "XYZ999", "price": 3})
	require.NoError(t, err)
	assert.Equal(t, "prod-8", product.ID)
	mockPub.AssertExpectations(t)
}

func TestProductService_CreateProduct_NoPublishOnFailure(t *testing.T) {
	mockRepo := new(MockProductRepository)
	mockPub := new(MockEventPublisher)
	service := newService(mockRepo, services.WithPublisher(mockPub))

	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(&repositories.PersistenceError{Op: "insert product", Err: fmt.Errorf("boom")}).Once()

	_, err := service.CreateProduct(context.Background(), map[string]any{"barCode": "XYZ999", "price": 3})
	assert.Error(t, err)
	mockPub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func isPageQuery(limit, offset int) func(q repositories.Query) bool {
	return func(q repositories.Query) bool {
		return q.Limit == limit && q.Offset == offset &&
			len(q.Sort) == 1 && q.Sort[0] == "-createdAt" && q.Filter != nil
	}
}

func TestProductService_ListProducts(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := newService(mockRepo)

	rows := []models.Product{
		{ID: "2", BarCode: "BBB", Price: 2},
		{ID: "1", BarCode: "AAA", Price: 1},
	}
	mockRepo.On("Find", mock.Anything, mock.MatchedBy(isPageQuery(20, 0))).Return(rows, nil).Once()
	mockRepo.On("Count", mock.Anything, mock.MatchedBy(isPageQuery(0, 0))).Return(int64(25), nil).Once()

	res, err := service.ListProducts(context.Background(), services.Pagination{Limit: 20, Offset: 0})
	require.NoError(t, err)
	assert.Equal(t, rows, res.Rows)
	assert.EqualValues(t, 25, res.Total)
	mockRepo.AssertExpectations(t)
}

func TestProductService_ListProducts_ZeroPaginationUsesDefaults(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := newService(mockRepo)

	mockRepo.On("Find", mock.Anything, mock.MatchedBy(isPageQuery(services.DefaultLimit, services.DefaultOffset))).Return([]models.Product{}, nil).Once()
	mockRepo.On("Count", mock.Anything, mock.MatchedBy(isPageQuery(0, 0))).Return(int64(0), nil).Once()

	res, err := service.ListProducts(context.Background(), services.Pagination{})
	require.NoError(t, err)
	assert.NotNil(t, res.Rows)
	assert.Empty(t, res.Rows)
	mockRepo.AssertExpectations(t)
}

func TestProductService_ListProducts_FailsWhenEitherCallFails(t *testing.T) {
	storeErr := &repositories.PersistenceError{Op: "count products", Err: fmt.Errorf("timeout")}

	t.Run("count fails", func(t *testing.T) {
		mockRepo := new(MockProductRepository)
		service := newService(mockRepo)
		mockRepo.On("Find", mock.Anything, mock.Anything).Return([]models.Product{{ID: "1"}}, nil).Once()
		mockRepo.On("Count", mock.Anything, mock.Anything).Return(int64(0), storeErr).Once()

		res, err := service.ListProducts(context.Background(), services.Pagination{})
		assert.Nil(t, res)
		assert.Same(t, storeErr, err)
	})

	t.Run("find fails", func(t *testing.T) {
		mockRepo := new(MockProductRepository)
		service := newService(mockRepo)
		findErr := &repositories.PersistenceError{Op: "find products", Err: fmt.Errorf("timeout")}
		mockRepo.On("Find", mock.Anything, mock.Anything).Return(nil, findErr).Once()
		mockRepo.On("Count", mock.Anything, mock.Anything).Return(int64(3), nil).Once()

		res, err := service.ListProducts(context.Background(), services.Pagination{})
		assert.Nil(t, res)
		assert.Same(t, findErr, err)
	})
}

// rendezvousRepository only answers Find once Count has been entered, so it deadlocks
// (and times out) unless both calls are in flight at the same time.
type rendezvousRepository struct {
	countEntered chan struct{}
}

func (r *rendezvousRepository) Insert(context.Context, *models.Product) error {
	return nil
}

func (r *rendezvousRepository) Find(ctx context.Context, q repositories.Query) ([]models.Product, error) {
	select {
	case <-r.countEntered:
		return []models.Product{}, nil
	case <-time.After(2 * time.Second):
		return nil, &repositories.PersistenceError{Op: "find products", Err: fmt.Errorf("count was never issued")}
	}
}

func (r *rendezvousRepository) Count(ctx context.Context, q repositories.Query) (int64, error) {
	close(r.countEntered)
	return 0, nil
}

func TestProductService_ListProducts_IssuesFindAndCountConcurrently(t *testing.T) {
	repo := &rendezvousRepository{countEntered: make(chan struct{})}
	service := newService(repo)

	_, err := service.ListProducts(context.Background(), services.Pagination{})
	assert.NoError(t, err)
}

func TestProductService_EndToEndWithMemoryStore(t *testing.T) {
	repo := repositories.NewMemoryProductRepository()
	clock := fixedNow
	service := services.NewProductService(repo, hclog.NewNullLogger(), services.WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))
	ctx := context.Background()

	var created []*models.Product
	for i := 0; i < 25; i++ {
		p, err := service.CreateProduct(ctx, map[string]any{"barCode": fmt.Sprintf("CODE-%02d", i), "price": float64(i + 1)})
		require.NoError(t, err)
		created = append(created, p)
	}

	first, err := service.ListProducts(ctx, services.Pagination{Limit: 20, Offset: 0})
	require.NoError(t, err)
	assert.Len(t, first.Rows, 20)
	assert.EqualValues(t, 25, first.Total)
	assert.Equal(t, created[24].ID, first.Rows[0].ID)
	for i := 1; i < len(first.Rows); i++ {
		assert.True(t, first.Rows[i-1].CreatedAt.After(first.Rows[i].CreatedAt))
	}

	second, err := service.ListProducts(ctx, services.Pagination{Limit: 20, Offset: 20})
	require.NoError(t, err)
	assert.Len(t, second.Rows, 5)
	assert.EqualValues(t, 25, second.Total)
	assert.Equal(t, created[0].ID, second.Rows[4].ID)

	again, err := service.ListProducts(ctx, services.Pagination{Limit: 20, Offset: 0})
	require.NoError(t, err)
	assert.Equal(t, first, again)

	defaults, err := service.ListProducts(ctx, services.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, first, defaults)
}
