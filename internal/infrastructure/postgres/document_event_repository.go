package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jhoicas/einvoice-gateway/internal/domain/entity"
	"github.com/jhoicas/einvoice-gateway/internal/domain/repository"
)

var _ repository.DocumentEventRepository = (*DocumentEventRepo)(nil)

// DocumentEventRepo historial de auditoría (solo inserción).
type DocumentEventRepo struct {
	q Querier
}

// NewDocumentEventRepository construye el adaptador.
func NewDocumentEventRepository(q Querier) *DocumentEventRepo {
	return &DocumentEventRepo{q: q}
}

// Append inserta el evento.
func (r *DocumentEventRepo) Append(ctx context.Context, ev *entity.DocumentEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	meta, err := marshalMeta(ev.Metadata)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO document_events (id, invoice_id, submission_id, type, previous_status, new_status, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = r.q.Exec(ctx, query,
		ev.ID, ev.InvoiceID, nullIfEmpty(ev.SubmissionID), ev.Type,
		nullIfEmpty(ev.PreviousStatus), ev.NewStatus, meta, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document event: %w", err)
	}
	return nil
}

// ListByInvoice eventos de la factura en orden cronológico.
func (r *DocumentEventRepo) ListByInvoice(ctx context.Context, invoiceID string) ([]*entity.DocumentEvent, error) {
	query := `
		SELECT id, invoice_id, submission_id, type, previous_status, new_status, metadata, created_at
		FROM document_events WHERE invoice_id = $1 ORDER BY created_at, id`
	rows, err := r.q.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list document events: %w", err)
	}
	defer rows.Close()

	var out []*entity.DocumentEvent
	for rows.Next() {
		var ev entity.DocumentEvent
		var subID, prev *string
		var meta []byte
		if err := rows.Scan(&ev.ID, &ev.InvoiceID, &subID, &ev.Type, &prev, &ev.NewStatus, &meta, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document event: %w", err)
		}
		ev.SubmissionID = derefStr(subID)
		ev.PreviousStatus = derefStr(prev)
		if ev.Metadata, err = unmarshalMeta(meta); err != nil {
			return nil, err
		}
		out = append(out, &ev)
	}
	return out, rows.Err()
}
