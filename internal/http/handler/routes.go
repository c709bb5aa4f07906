package handler

import (
	"database/sql"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"healthvault/docs"
	"healthvault/internal/http/middleware"
	"healthvault/internal/service"
)

// Deps carries everything the routes need.
type Deps struct {
	DB            *sql.DB
	Documents     service.DocumentService
	Shares        service.ShareService
	AuthSecret    string
	PublicBaseURL string
	// Gatherer backs GET /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	app.Get("/health", HealthCheck(d.DB))
	app.Get("/healthz", LivenessProbe())

	if d.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	// Share-token routes authenticate with the token itself and must be
	// registered ahead of the owner-authenticated group.
	app.Get("/api/share/access", SharePreview(d.Shares))
	app.Get("/api/share/documents/:id/content", ShareDocumentContent(d.Shares))

	api := app.Group("/api", middleware.RequireOwner(d.AuthSecret))
	api.Get("/documents", ListDocuments(d.Documents))
	api.Post("/documents", UploadDocument(d.Documents))
	api.Get("/documents/:id", GetDocument(d.Documents))
	api.Get("/documents/:id/content", DocumentContent(d.Documents))
	api.Delete("/documents/:id", DeleteDocument(d.Documents))
	api.Post("/share", GenerateShare(d.Shares, d.PublicBaseURL))
}
