package handler

import (
	"io"
	"mime"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"healthvault/internal/http/middleware"
	"healthvault/internal/model"
	"healthvault/internal/service"
)

const documentDateLayout = "2006-01-02"

// documentListResponse is the flat listing body.
type documentListResponse struct {
	Items []model.DocumentSummary `json:"items"`
	Total int                     `json:"total"`
}

func ownerContentURL(d model.Document) string {
	return "/api/documents/" + d.ID + "/content"
}

func summaries(docs []model.Document, url func(model.Document) string) []model.DocumentSummary {
	out := make([]model.DocumentSummary, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Summary(url(d)))
	}
	return out
}

// ListDocuments lists the caller's documents.
//
// @Summary  List documents
// @Tags     documents
// @Produce  json
// @Param    category query string false "Category filter (case-insensitive)"
// @Param    grouped  query bool   false "Group by category with counts"
// @Success  200 {object} documentListResponse
// @Failure  401 {object} errorPayload
// @Security BearerAuth
// @Router   /api/documents [get]
func ListDocuments(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		owner := middleware.OwnerID(c)

		if c.QueryBool("grouped") {
			g, err := svc.ListGrouped(c.UserContext(), owner, ownerContentURL)
			if err != nil {
				return writeServiceError(c, err)
			}
			return c.JSON(g)
		}

		docs, err := svc.List(c.UserContext(), owner, c.Query("category"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(documentListResponse{Items: summaries(docs, ownerContentURL), Total: len(docs)})
	}
}

// UploadDocument stores a multipart upload (field name: file).
//
// @Summary  Upload a document
// @Tags     documents
// @Accept   multipart/form-data
// @Produce  json
// @Param    file     formData file   true  "Document file"
// @Param    title    formData string false "Display title, defaults to the file name"
// @Param    category formData string false "Prescription, Report, Bill, Insurance or Other"
// @Param    notes    formData string false "Free-text notes"
// @Param    date     formData string false "Document date (YYYY-MM-DD)"
// @Success  201 {object} model.DocumentSummary
// @Failure  400 {object} errorPayload
// @Failure  503 {object} errorPayload
// @Security BearerAuth
// @Router   /api/documents [post]
func UploadDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		var docDate *time.Time
		if raw := strings.TrimSpace(c.FormValue("date")); raw != "" {
			d, err := time.Parse(documentDateLayout, raw)
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_DATE", "date must be YYYY-MM-DD")
			}
			docDate = &d
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}

		doc, err := svc.Upload(c.UserContext(), service.UploadInput{
			OwnerID:      middleware.OwnerID(c),
			Title:        c.FormValue("title"),
			FileName:     fh.Filename,
			Category:     c.FormValue("category"),
			MimeType:     ct,
			Size:         fh.Size,
			Notes:        c.FormValue("notes"),
			DocumentDate: docDate,
		}, f)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(doc.Summary(ownerContentURL(*doc)))
	}
}

// GetDocument returns one document's metadata.
//
// @Summary  Get document metadata
// @Tags     documents
// @Produce  json
// @Param    id path string true "Document ID"
// @Success  200 {object} model.Document
// @Failure  400 {object} errorPayload
// @Failure  404 {object} errorPayload
// @Security BearerAuth
// @Router   /api/documents/{id} [get]
func GetDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		doc, err := svc.Get(c.UserContext(), middleware.OwnerID(c), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(doc)
	}
}

// DocumentContent streams a document's bytes to its owner.
//
// @Summary  Download document content
// @Tags     documents
// @Produce  octet-stream
// @Param    id          path  string true  "Document ID"
// @Param    disposition query string false "inline (default) or attachment"
// @Success  200 {file} binary
// @Failure  404 {object} errorPayload
// @Failure  500 {object} errorPayload
// @Security BearerAuth
// @Router   /api/documents/{id}/content [get]
func DocumentContent(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		doc, rc, err := svc.Open(c.UserContext(), middleware.OwnerID(c), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return sendDocument(c, doc, rc, c.Query("disposition"))
	}
}

// DeleteDocument removes a document.
//
// @Summary  Delete a document
// @Tags     documents
// @Param    id path string true "Document ID"
// @Success  204
// @Failure  404 {object} errorPayload
// @Security BearerAuth
// @Router   /api/documents/{id} [delete]
func DeleteDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := svc.Delete(c.UserContext(), middleware.OwnerID(c), id); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// sendDocument hands rc to fasthttp, which closes it once the body is written.
func sendDocument(c *fiber.Ctx, doc *model.Document, rc io.ReadCloser, disposition string) error {
	if disposition != "attachment" {
		disposition = "inline"
	}
	cd := mime.FormatMediaType(disposition, map[string]string{"filename": doc.FileName})
	if cd == "" {
		cd = disposition
	}

	c.Set(fiber.HeaderContentType, doc.MimeType)
	c.Set(fiber.HeaderContentDisposition, cd)
	c.Set(fiber.HeaderCacheControl, "private, no-store")

	size := int(doc.SizeBytes)
	if size <= 0 {
		size = -1
	}
	return c.SendStream(rc, size)
}
