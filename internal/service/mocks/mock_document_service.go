package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"healthvault/internal/model"
	"healthvault/internal/service"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Upload(ctx context.Context, in service.UploadInput, r io.Reader) (*model.Document, error) {
	args := m.Called(ctx, in, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) List(ctx context.Context, ownerID, category string) ([]model.Document, error) {
	args := m.Called(ctx, ownerID, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Document), args.Error(1)
}

func (m *MockDocumentService) ListGrouped(ctx context.Context, ownerID string, url func(model.Document) string) (model.GroupedDocuments, error) {
	args := m.Called(ctx, ownerID, url)
	if f, ok := args.Get(0).(func(func(model.Document) string) model.GroupedDocuments); ok {
		return f(url), args.Error(1)
	}
	return args.Get(0).(model.GroupedDocuments), args.Error(1)
}

func (m *MockDocumentService) Get(ctx context.Context, ownerID, id string) (*model.Document, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) Open(ctx context.Context, ownerID, id string) (*model.Document, io.ReadCloser, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*model.Document), args.Get(1).(io.ReadCloser), args.Error(2)
}

func (m *MockDocumentService) Delete(ctx context.Context, ownerID, id string) error {
	args := m.Called(ctx, ownerID, id)
	return args.Error(0)
}
