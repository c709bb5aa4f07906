package mocks

import (
	"context"
	"time"

	"healthvault/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockShareSessionRepository struct {
	mock.Mock
}

func (m *MockShareSessionRepository) Rotate(ctx context.Context, s *model.ShareSession) (int64, error) {
	args := m.Called(ctx, s)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockShareSessionRepository) FindByFingerprint(ctx context.Context, fingerprint string) (*model.ShareSession, error) {
	args := m.Called(ctx, fingerprint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ShareSession), args.Error(1)
}

func (m *MockShareSessionRepository) Latest(ctx context.Context, ownerID string) (*model.ShareSession, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ShareSession), args.Error(1)
}

func (m *MockShareSessionRepository) MarkUsed(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockShareSessionRepository) Expire(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockShareSessionRepository) ExpireBefore(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockShareSessionRepository) CountActive(ctx context.Context, ownerID string) (int, error) {
	args := m.Called(ctx, ownerID)
	return args.Int(0), args.Error(1)
}
