package http

import (
	"github.com/gofiber/fiber/v2"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	EInvoice  EInvoiceService
	JWTSecret string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))
	h := NewEInvoiceHandler(deps.EInvoice)
	canWrite := RequireRole(RoleAdmin, RoleOperator)
	canRead := RequireRole(RoleAdmin, RoleOperator, RoleViewer)

	invoices := protected.Group("/invoices")
	invoices.Post("/:id/einvoice/submit", canWrite, h.Submit)
	invoices.Get("/:id/einvoice/submissions", canRead, h.History)

	submissions := protected.Group("/einvoice/submissions")
	submissions.Get("/:id", canRead, h.GetSubmission)
	submissions.Post("/:id/check", canWrite, h.CheckSubmission)
}
