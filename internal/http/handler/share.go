package handler

import (
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"healthvault/internal/http/middleware"
	"healthvault/internal/model"
	"healthvault/internal/qr"
	"healthvault/internal/service"
)

// ShareTokenHeader is the alternative to the ?token= query parameter.
const ShareTokenHeader = "X-Share-Token"

type generateShareRequest struct {
	DocumentIDs []string `json:"document_ids"`
}

type generateShareResponse struct {
	Token       string   `json:"token"`
	ShareURL    string   `json:"shareUrl"`
	QRCode      string   `json:"qrCode"`
	ExpiresAt   int64    `json:"expiresAt"`
	DocumentIDs []string `json:"documentIds,omitempty"`
}

type sharePreviewResponse struct {
	Profile   model.Profile           `json:"profile"`
	Documents []model.DocumentSummary `json:"documents"`
	ExpiresAt int64                   `json:"expiresAt"`
}

func shareToken(c *fiber.Ctx) string {
	if t := c.Query("token"); t != "" {
		return t
	}
	return c.Get(ShareTokenHeader)
}

func shareContentURL(token string) func(model.Document) string {
	q := url.QueryEscape(token)
	return func(d model.Document) string {
		return "/api/share/documents/" + d.ID + "/content?token=" + q
	}
}

// GenerateShare supersedes the caller's active share session and issues a new link.
//
// @Summary  Generate a share link
// @Tags     share
// @Accept   json
// @Produce  json
// @Param    body body generateShareRequest false "Optional document subset"
// @Success  201 {object} generateShareResponse
// @Failure  400 {object} errorPayload
// @Security BearerAuth
// @Router   /api/share [post]
func GenerateShare(svc service.ShareService, publicBaseURL string) fiber.Handler {
	base := strings.TrimRight(publicBaseURL, "/")
	return func(c *fiber.Ctx) error {
		var req generateShareRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
			}
		}

		grant, err := svc.Generate(c.UserContext(), middleware.OwnerID(c), req.DocumentIDs)
		if err != nil {
			return writeServiceError(c, err)
		}

		link := base + "/portal/access?token=" + url.QueryEscape(grant.Token)
		code, err := qr.DataURI(link, qr.DefaultSize)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}

		return c.Status(fiber.StatusCreated).JSON(generateShareResponse{
			Token:       grant.Token,
			ShareURL:    link,
			QRCode:      code,
			ExpiresAt:   grant.ExpiresAt.UnixMilli(),
			DocumentIDs: grant.DocumentIDs,
		})
	}
}

// SharePreview redeems a share token and returns the bounded profile view.
//
// @Summary  Redeem a share link
// @Tags     share
// @Produce  json
// @Param    token query string true "Share token"
// @Success  200 {object} sharePreviewResponse
// @Failure  401 {object} errorPayload
// @Router   /api/share/access [get]
func SharePreview(svc service.ShareService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := shareToken(c)
		if token == "" {
			return writeError(c, fiber.StatusUnauthorized, "INVALID_TOKEN", "share token required")
		}

		p, err := svc.Redeem(c.UserContext(), token)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(sharePreviewResponse{
			Profile:   p.Profile,
			Documents: summaries(p.Documents, shareContentURL(token)),
			ExpiresAt: p.ExpiresAt.UnixMilli(),
		})
	}
}

// ShareDocumentContent streams a document covered by a share token.
//
// @Summary  Download a shared document
// @Tags     share
// @Produce  octet-stream
// @Param    id    path  string true "Document ID"
// @Param    token query string true "Share token"
// @Success  200 {file} binary
// @Failure  401 {object} errorPayload
// @Failure  404 {object} errorPayload
// @Router   /api/share/documents/{id}/content [get]
func ShareDocumentContent(svc service.ShareService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		token := shareToken(c)
		if token == "" {
			return writeError(c, fiber.StatusUnauthorized, "INVALID_TOKEN", "share token required")
		}

		doc, rc, err := svc.OpenDocument(c.UserContext(), token, id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return sendDocument(c, doc, rc, "inline")
	}
}
