package repository

import (
	"context"

	"github.com/jhoicas/einvoice-gateway/internal/domain/entity"
)

// SubmissionRepository puerto de persistencia de envíos.
type SubmissionRepository interface {
	Create(ctx context.Context, s *entity.Submission) error
	// Update compara y asigna sobre (id, version). Incrementa s.Version si gana;
	// devuelve domain.ErrConcurrentUpdate si otra ejecución modificó el registro.
	Update(ctx context.Context, s *entity.Submission) error
	GetByID(ctx context.Context, id string) (*entity.Submission, error)
	ListByInvoice(ctx context.Context, invoiceID string) ([]*entity.Submission, error)
	// FindActiveByInvoice último envío PENDING/SUBMITTED/ACCEPTED, o nil.
	FindActiveByInvoice(ctx context.Context, invoiceID string) (*entity.Submission, error)
}
