package repository

import (
	"context"

	"github.com/jhoicas/einvoice-gateway/internal/domain/entity"
)

// DocumentEventRepository historial de auditoría de la factura (solo inserción).
type DocumentEventRepository interface {
	Append(ctx context.Context, ev *entity.DocumentEvent) error
	ListByInvoice(ctx context.Context, invoiceID string) ([]*entity.DocumentEvent, error)
}
