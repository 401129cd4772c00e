package usecase

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/listing/domain"
)

type MockListingRepository struct{ mock.Mock }

func (m *MockListingRepository) Create(ctx context.Context, listing *domain.Listing) error {
	args := m.Called(ctx, listing)
	return args.Error(0)
}
func (m *MockListingRepository) Update(ctx context.Context, listing *domain.Listing) error {
	args := m.Called(ctx, listing)
	return args.Error(0)
}
func (m *MockListingRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
func (m *MockListingRepository) FindByID(ctx context.Context, id int64) (*domain.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Listing), args.Error(1)
}
func (m *MockListingRepository) FindByQuery(ctx context.Context, q domain.ListQuery) ([]*domain.Listing, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Listing), args.Error(1)
}

type MockListingCache struct{ mock.Mock }

func (m *MockListingCache) GetQuery(ctx context.Context, q domain.ListQuery) ([]*domain.Listing, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Listing), args.Error(1)
}
func (m *MockListingCache) SetQuery(ctx context.Context, q domain.ListQuery, listings []*domain.Listing) error {
	args := m.Called(ctx, q, listings)
	return args.Error(0)
}
func (m *MockListingCache) InvalidateCategory(ctx context.Context, category string) error {
	args := m.Called(ctx, category)
	return args.Error(0)
}

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) PublishListingCreated(ctx context.Context, l *domain.Listing) error {
	args := m.Called(ctx, l)
	return args.Error(0)
}
func (m *MockPublisher) PublishListingUpdated(ctx context.Context, l *domain.Listing) error {
	args := m.Called(ctx, l)
	return args.Error(0)
}
func (m *MockPublisher) PublishListingDeleted(ctx context.Context, id int64, category string) error {
	args := m.Called(ctx, id, category)
	return args.Error(0)
}

type MockSellerDirectory struct{ mock.Mock }

func (m *MockSellerDirectory) GetEmailByID(ctx context.Context, sellerID string) (string, error) {
	args := m.Called(ctx, sellerID)
	return args.String(0), args.Error(1)
}

type MockNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (m *MockNotifier) SendListingCreatedEmail(toEmail, listingName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, toEmail+":"+listingName)
	return nil
}

func (m *MockNotifier) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

type MockMediaStorage struct{ mock.Mock }

func (m *MockMediaStorage) Upload(ctx context.Context, fileName string, data []byte) (string, error) {
	args := m.Called(ctx, fileName, data)
	return args.String(0), args.Error(1)
}
