package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/einvoice-gateway/internal/application/dto"
	"github.com/jhoicas/einvoice-gateway/internal/domain"
)

// EInvoiceService casos de uso que expone el handler.
type EInvoiceService interface {
	Submit(ctx context.Context, companyID, invoiceID string) (*dto.SubmissionResponse, error)
	History(ctx context.Context, companyID, invoiceID string) (*dto.InvoiceEInvoiceResponse, error)
	Get(ctx context.Context, companyID, submissionID string) (*dto.SubmissionResponse, error)
	Check(ctx context.Context, companyID, submissionID string) (*dto.SubmissionResponse, error)
}

// EInvoiceHandler endpoints de envío y consulta de e-factura (protegido).
type EInvoiceHandler struct {
	svc EInvoiceService
}

// NewEInvoiceHandler construye el handler.
func NewEInvoiceHandler(svc EInvoiceService) *EInvoiceHandler {
	return &EInvoiceHandler{svc: svc}
}

// Submit envía la factura al proveedor de e-factura de la empresa.
// @Summary      Enviar factura al proveedor de e-factura
// @Tags         einvoice
// @Produce      json
// @Param        id   path      string  true  "ID de la factura"
// @Success      200  {object}  dto.SubmissionResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Failure      429  {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/invoices/{id}/einvoice/submit [post]
func (h *EInvoiceHandler) Submit(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	sub, err := h.svc.Submit(c.UserContext(), companyID, c.Params("id"))
	if err != nil {
		if errors.Is(err, domain.ErrActiveSubmission) && sub != nil {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Code: "ACTIVE_SUBMISSION", Message: "la factura ya tiene el envío " + sub.ID + " en " + sub.Status,
			})
		}
		return writeError(c, err)
	}
	return c.JSON(sub)
}

// History envíos y eventos de e-factura de la factura.
// @Summary      Historial de e-factura de una factura
// @Tags         einvoice
// @Produce      json
// @Param        id   path      string  true  "ID de la factura"
// @Success      200  {object}  dto.InvoiceEInvoiceResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/invoices/{id}/einvoice/submissions [get]
func (h *EInvoiceHandler) History(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	out, err := h.svc.History(c.UserContext(), companyID, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// GetSubmission detalle de un envío.
// @Summary      Detalle de un envío
// @Tags         einvoice
// @Produce      json
// @Param        id   path      string  true  "ID del envío"
// @Success      200  {object}  dto.SubmissionResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/einvoice/submissions/{id} [get]
func (h *EInvoiceHandler) GetSubmission(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	out, err := h.svc.Get(c.UserContext(), companyID, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// CheckSubmission consulta ahora el estado en el proveedor.
// @Summary      Consultar estado en el proveedor
// @Tags         einvoice
// @Produce      json
// @Param        id   path      string  true  "ID del envío"
// @Success      200  {object}  dto.SubmissionResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      429  {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/einvoice/submissions/{id}/check [post]
func (h *EInvoiceHandler) CheckSubmission(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	out, err := h.svc.Check(c.UserContext(), companyID, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// writeError traduce errores de dominio a respuestas HTTP.
func writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "recurso no encontrado"})
	case errors.Is(err, domain.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "acceso denegado"})
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrProviderNotRegistered):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrActiveSubmission), errors.Is(err, domain.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONFLICT", Message: err.Error()})
	case errors.Is(err, domain.ErrRateLimited):
		c.Set(fiber.HeaderRetryAfter, "60")
		return c.Status(fiber.StatusTooManyRequests).JSON(dto.ErrorResponse{Code: "RATE_LIMITED", Message: "el proveedor limitó la tasa; reintente más tarde"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
}
