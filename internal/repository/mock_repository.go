package repository

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"go-invoice/internal/model"
)

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) FindByID(ctx context.Context, id string) (model.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *MockUserStore) FindByEmail(ctx context.Context, email string) (model.User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *MockUserStore) Create(ctx context.Context, u model.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

type MockRefreshTokenStore struct {
	mock.Mock
}

func (m *MockRefreshTokenStore) Store(ctx context.Context, tokenID string, userID string, expiresAt time.Time) error {
	args := m.Called(ctx, tokenID, userID, expiresAt)
	return args.Error(0)
}

func (m *MockRefreshTokenStore) Consume(ctx context.Context, tokenID string) (string, error) {
	args := m.Called(ctx, tokenID)
	return args.String(0), args.Error(1)
}

func (m *MockRefreshTokenStore) Revoke(ctx context.Context, tokenID string) error {
	args := m.Called(ctx, tokenID)
	return args.Error(0)
}

func (m *MockRefreshTokenStore) RevokeAllForUser(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockRefreshTokenStore) CleanExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type MockProductStore struct {
	mock.Mock
}

func (m *MockProductStore) ListByUser(ctx context.Context, userID string) ([]model.Product, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Product), args.Error(1)
}

func (m *MockProductStore) Create(ctx context.Context, p model.Product) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockProductStore) Delete(ctx context.Context, userID string, id string) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}
