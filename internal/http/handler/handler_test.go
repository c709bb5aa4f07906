package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"healthvault/internal/http/middleware"
	"healthvault/internal/model"
	"healthvault/internal/service"
	serviceMocks "healthvault/internal/service/mocks"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testOwner = "U1"

// newOwnerApp returns an app whose requests are already authenticated as testOwner.
func newOwnerApp() *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(middleware.OwnerIDLocalKey, testOwner)
		return c.Next()
	})
	return app
}

func decodeError(t *testing.T, resp *http.Response) errorPayload {
	t.Helper()
	var body errorPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := fiber.New()
	app.Get("/health", HealthCheck(db))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "SERVICE_UNAVAILABLE", decodeError(t, resp).Error.Code)
	})

	t.Run("no database", func(t *testing.T) {
		app := fiber.New()
		app.Get("/health", HealthCheck(nil))

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListDocuments(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := newOwnerApp()
	app.Get("/documents", ListDocuments(mockSvc))

	t.Run("success", func(t *testing.T) {
		id := uuid.New().String()
		docs := []model.Document{{ID: id, FileName: "test.pdf", MimeType: "application/pdf", Category: model.CategoryReport}}
		mockSvc.On("List", mock.Anything, testOwner, "report").Return(docs, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/documents?category=report", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result documentListResponse
		json.NewDecoder(resp.Body).Decode(&result)
		require.Len(t, result.Items, 1)
		assert.Equal(t, 1, result.Total)
		assert.Equal(t, "pdf", result.Items[0].FileType)
		assert.Equal(t, "/api/documents/"+id+"/content", result.Items[0].URL)
		mockSvc.AssertExpectations(t)
	})

	t.Run("empty list is an array", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, testOwner, "").Return([]model.Document{}, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents", nil))
		raw, _ := io.ReadAll(resp.Body)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"items":[],"total":0}`, string(raw))
		mockSvc.AssertExpectations(t)
	})

	t.Run("grouped", func(t *testing.T) {
		docs := []model.Document{{ID: "a", Category: model.CategoryBill}}
		mockSvc.On("ListGrouped", mock.Anything, testOwner, mock.Anything).
			Return(func(url func(model.Document) string) model.GroupedDocuments {
				return model.GroupDocuments(docs, url)
			}, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents?grouped=true", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var g model.GroupedDocuments
		json.NewDecoder(resp.Body).Decode(&g)
		assert.Equal(t, 1, g.Counts[model.CategoryBill])
		assert.Equal(t, 0, g.Counts[model.CategoryReport])
		assert.Equal(t, "/api/documents/a/content", g.Records[model.CategoryBill][0].URL)
		mockSvc.AssertExpectations(t)
	})

	t.Run("service error", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, testOwner, "").Return(nil, errors.New("service error")).Once()

		req := httptest.NewRequest(http.MethodGet, "/documents", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "INTERNAL_ERROR", decodeError(t, resp).Error.Code)
		mockSvc.AssertExpectations(t)
	})
}

func multipartUpload(t *testing.T, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	part.Write([]byte(content))
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestUploadDocument(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := newOwnerApp()
	app.Post("/documents", UploadDocument(mockSvc))

	t.Run("success", func(t *testing.T) {
		body, ct := multipartUpload(t, "invoice.pdf", "hello world", map[string]string{
			"title":    "March invoice",
			"category": "bill",
			"date":     "2026-03-01",
		})

		expectedDoc := &model.Document{
			ID:        uuid.New().String(),
			FileName:  "invoice.pdf",
			MimeType:  "application/octet-stream",
			Category:  model.CategoryBill,
			SizeBytes: 11,
			CreatedAt: time.Now().UTC(),
		}
		mockSvc.On("Upload", mock.Anything, mock.MatchedBy(func(in service.UploadInput) bool {
			return in.OwnerID == testOwner &&
				in.FileName == "invoice.pdf" &&
				in.Title == "March invoice" &&
				in.Category == "bill" &&
				in.Size == 11 &&
				in.DocumentDate != nil && in.DocumentDate.Day() == 1
		}), mock.Anything).Return(expectedDoc, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/documents", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var result model.DocumentSummary
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, expectedDoc.ID, result.ID)
		assert.Equal(t, model.CategoryBill, result.Category)
		assert.Equal(t, "/api/documents/"+expectedDoc.ID+"/content", result.URL)
		mockSvc.AssertExpectations(t)
	})

	t.Run("no file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/documents", nil)
		// Missing content-type and body
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "FILE_REQUIRED", decodeError(t, resp).Error.Code)
	})

	t.Run("bad date", func(t *testing.T) {
		body, ct := multipartUpload(t, "a.txt", "x", map[string]string{"date": "01/03/2026"})
		req := httptest.NewRequest(http.MethodPost, "/documents", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_DATE", decodeError(t, resp).Error.Code)
	})

	t.Run("validation error", func(t *testing.T) {
		body, ct := multipartUpload(t, "a.txt", "x", map[string]string{"category": "xray"})
		mockSvc.On("Upload", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("%w: unknown category \"xray\"", service.ErrValidation)).Once()

		req := httptest.NewRequest(http.MethodPost, "/documents", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		res := decodeError(t, resp)
		assert.Equal(t, "VALIDATION_ERROR", res.Error.Code)
		assert.Equal(t, `unknown category "xray"`, res.Error.Message)
		mockSvc.AssertExpectations(t)
	})

	t.Run("storage unavailable", func(t *testing.T) {
		body, ct := multipartUpload(t, "test.txt", "hello", nil)
		mockSvc.On("Upload", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("upload to storage: %w: %w", service.ErrStorageTransient, errors.New("dial tcp"))).Once()

		req := httptest.NewRequest(http.MethodPost, "/documents", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		res := decodeError(t, resp)
		assert.Equal(t, "STORAGE_UNAVAILABLE", res.Error.Code)
		assert.NotContains(t, res.Error.Message, "dial")
		mockSvc.AssertExpectations(t)
	})
}

func TestGetDocument(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := newOwnerApp()
	app.Get("/documents/:id", GetDocument(mockSvc))

	t.Run("success", func(t *testing.T) {
		id := uuid.New().String()
		expectedDoc := &model.Document{ID: id, FileName: "test.txt", BlobHandle: "ab/secret"}
		mockSvc.On("Get", mock.Anything, testOwner, id).Return(expectedDoc, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/documents/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		raw, _ := io.ReadAll(resp.Body)
		var result model.Document
		require.NoError(t, json.Unmarshal(raw, &result))
		assert.Equal(t, id, result.ID)
		assert.NotContains(t, string(raw), "ab/secret")
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Get", mock.Anything, testOwner, id).Return(nil, service.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodGet, "/documents/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/documents/invalid-uuid", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_ID", decodeError(t, resp).Error.Code)
	})

	t.Run("service error", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Get", mock.Anything, testOwner, id).Return(nil, errors.New("db error")).Once()

		req := httptest.NewRequest(http.MethodGet, "/documents/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestDocumentContent(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := newOwnerApp()
	app.Get("/documents/:id/content", DocumentContent(mockSvc))

	t.Run("inline by default", func(t *testing.T) {
		id := uuid.New().String()
		doc := &model.Document{ID: id, FileName: "scan.pdf", MimeType: "application/pdf", SizeBytes: 7}
		mockSvc.On("Open", mock.Anything, testOwner, id).
			Return(doc, io.NopCloser(strings.NewReader("%PDF-1.")), nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents/"+id+"/content", nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
		assert.Equal(t, `inline; filename=scan.pdf`, resp.Header.Get("Content-Disposition"))
		raw, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "%PDF-1.", string(raw))
		mockSvc.AssertExpectations(t)
	})

	t.Run("attachment", func(t *testing.T) {
		id := uuid.New().String()
		doc := &model.Document{ID: id, FileName: "lab results.pdf", MimeType: "application/pdf", SizeBytes: 2}
		mockSvc.On("Open", mock.Anything, testOwner, id).
			Return(doc, io.NopCloser(strings.NewReader("ok")), nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents/"+id+"/content?disposition=attachment", nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, `attachment; filename="lab results.pdf"`, resp.Header.Get("Content-Disposition"))
		mockSvc.AssertExpectations(t)
	})

	t.Run("integrity violation is a server error", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Open", mock.Anything, testOwner, id).
			Return(nil, nil, fmt.Errorf("document %s: %w", id, service.ErrStorageIntegrity)).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents/"+id+"/content", nil))

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "INTERNAL_ERROR", decodeError(t, resp).Error.Code)
		mockSvc.AssertExpectations(t)
	})
}

func TestDeleteDocument(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := newOwnerApp()
	app.Delete("/documents/:id", DeleteDocument(mockSvc))

	t.Run("success", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Delete", mock.Anything, testOwner, id).Return(nil).Once()

		req := httptest.NewRequest(http.MethodDelete, "/documents/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Delete", mock.Anything, testOwner, id).Return(service.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodDelete, "/documents/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("service error", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Delete", mock.Anything, testOwner, id).Return(errors.New("delete error")).Once()

		req := httptest.NewRequest(http.MethodDelete, "/documents/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestRouting(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(),
	})

	// Register all routes
	RegisterRoutes(app, Deps{
		Documents:     new(serviceMocks.MockDocumentService),
		Shares:        new(serviceMocks.MockShareService),
		AuthSecret:    "auth-secret-0123456789",
		PublicBaseURL: "http://localhost:8080",
	})

	t.Run("not found route", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/non-existent", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Error.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		// Health endpoint only allows GET
		req := httptest.NewRequest(http.MethodPost, "/health", nil)
		resp, _ := app.Test(req)

		// Fiber returns 405 by default if route exists but method doesn't match
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		assert.Equal(t, "METHOD_NOT_ALLOWED", decodeError(t, resp).Error.Code)
	})

	t.Run("owner routes require a bearer token", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/documents", nil))

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "UNAUTHORIZED", decodeError(t, resp).Error.Code)
	})

	t.Run("share access needs no bearer token", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/share/access", nil))

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "INVALID_TOKEN", decodeError(t, resp).Error.Code)
	})
}
