package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"healthvault/internal/model"
	"healthvault/internal/service"
)

type MockShareService struct {
	mock.Mock
}

func (m *MockShareService) Generate(ctx context.Context, ownerID string, documentIDs []string) (*service.ShareGrant, error) {
	args := m.Called(ctx, ownerID, documentIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ShareGrant), args.Error(1)
}

func (m *MockShareService) Redeem(ctx context.Context, token string) (*service.SharePreview, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SharePreview), args.Error(1)
}

func (m *MockShareService) OpenDocument(ctx context.Context, token, documentID string) (*model.Document, io.ReadCloser, error) {
	args := m.Called(ctx, token, documentID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*model.Document), args.Get(1).(io.ReadCloser), args.Error(2)
}

func (m *MockShareService) ExpireStale(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}
