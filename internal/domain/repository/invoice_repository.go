package repository

import (
	"context"

	"github.com/jhoicas/einvoice-gateway/internal/domain/entity"
)

// InvoiceRepository puerto de lectura de facturas y de escritura del espejo de e-factura.
type InvoiceRepository interface {
	// GetByID devuelve la factura con empresa, cliente, líneas y documento padre cargados.
	// nil, nil si no existe.
	GetByID(ctx context.Context, id string) (*entity.Invoice, error)
	// UpdateProviderState persiste status y campos provider_* solo si el estado actual
	// sigue siendo expectedStatus; si no, devuelve domain.ErrConcurrentUpdate.
	UpdateProviderState(ctx context.Context, inv *entity.Invoice, expectedStatus string) error
	// UpdateXMLPath registra la ruta del XML almacenado sin tocar el estado ni el marcado para lote.
	UpdateXMLPath(ctx context.Context, id, path string) error
	// FindScheduledForSubmission facturas marcadas para envío al proveedor indicado.
	FindScheduledForSubmission(ctx context.Context, provider string, limit int) ([]*entity.Invoice, error)
}
