package submission

import (
	"context"
	"fmt"

	"github.com/jhoicas/einvoice-gateway/internal/application/dto"
	"github.com/jhoicas/einvoice-gateway/internal/domain"
	"github.com/jhoicas/einvoice-gateway/internal/domain/entity"
	"github.com/jhoicas/einvoice-gateway/internal/domain/repository"
)

// InvoiceDispatcher operaciones del Dispatcher que expone la API.
type InvoiceDispatcher interface {
	SubmitInvoice(ctx context.Context, invoiceID string) (*entity.Submission, error)
	CheckNow(ctx context.Context, submissionID string) (*entity.Submission, error)
}

// Service casos de uso de e-factura para la API, acotados a la empresa del usuario.
type Service struct {
	dispatcher InvoiceDispatcher
	invoices   repository.InvoiceRepository
	subs       repository.SubmissionRepository
	events     repository.DocumentEventRepository
}

// NewService construye el caso de uso.
func NewService(dispatcher InvoiceDispatcher, invoices repository.InvoiceRepository, subs repository.SubmissionRepository, events repository.DocumentEventRepository) *Service {
	return &Service{dispatcher: dispatcher, invoices: invoices, subs: subs, events: events}
}

// Submit envía la factura al proveedor de su empresa.
// Con domain.ErrActiveSubmission devuelve también el envío que bloquea.
func (s *Service) Submit(ctx context.Context, companyID, invoiceID string) (*dto.SubmissionResponse, error) {
	if _, err := s.ownedInvoice(ctx, companyID, invoiceID); err != nil {
		return nil, err
	}
	sub, err := s.dispatcher.SubmitInvoice(ctx, invoiceID)
	if sub == nil {
		return nil, err
	}
	out := ToSubmissionResponse(sub)
	return &out, err
}

// History estado espejo, envíos y eventos de la factura.
func (s *Service) History(ctx context.Context, companyID, invoiceID string) (*dto.InvoiceEInvoiceResponse, error) {
	inv, err := s.ownedInvoice(ctx, companyID, invoiceID)
	if err != nil {
		return nil, err
	}
	subs, err := s.subs.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("listar envíos: %w", err)
	}
	events, err := s.events.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("listar eventos: %w", err)
	}

	out := &dto.InvoiceEInvoiceResponse{
		InvoiceID:          inv.ID,
		Number:             inv.Number,
		Status:             inv.Status,
		ProviderStatus:     inv.ProviderStatus,
		ProviderUploadID:   inv.ProviderUploadID,
		ProviderDownloadID: inv.ProviderDownloadID,
		ProviderError:      inv.ProviderError,
		SyncedAt:           inv.SyncedAt,
		Submissions:        make([]dto.SubmissionResponse, 0, len(subs)),
		Events:             make([]dto.DocumentEventResponse, 0, len(events)),
	}
	for _, sub := range subs {
		out.Submissions = append(out.Submissions, ToSubmissionResponse(sub))
	}
	for _, ev := range events {
		out.Events = append(out.Events, dto.DocumentEventResponse{
			ID:             ev.ID,
			SubmissionID:   ev.SubmissionID,
			Type:           ev.Type,
			PreviousStatus: ev.PreviousStatus,
			NewStatus:      ev.NewStatus,
			Metadata:       ev.Metadata,
			CreatedAt:      ev.CreatedAt,
		})
	}
	return out, nil
}

// Get detalle de un envío.
func (s *Service) Get(ctx context.Context, companyID, submissionID string) (*dto.SubmissionResponse, error) {
	sub, err := s.ownedSubmission(ctx, companyID, submissionID)
	if err != nil {
		return nil, err
	}
	out := ToSubmissionResponse(sub)
	return &out, nil
}

// Check consulta el estado en el proveedor sin esperar al calendario.
func (s *Service) Check(ctx context.Context, companyID, submissionID string) (*dto.SubmissionResponse, error) {
	if _, err := s.ownedSubmission(ctx, companyID, submissionID); err != nil {
		return nil, err
	}
	sub, err := s.dispatcher.CheckNow(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, domain.ErrNotFound
	}
	out := ToSubmissionResponse(sub)
	return &out, nil
}

func (s *Service) ownedInvoice(ctx context.Context, companyID, invoiceID string) (*entity.Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("obtener factura: %w", err)
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}
	if inv.CompanyID != companyID {
		return nil, domain.ErrForbidden
	}
	return inv, nil
}

func (s *Service) ownedSubmission(ctx context.Context, companyID, submissionID string) (*entity.Submission, error) {
	sub, err := s.subs.GetByID(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("obtener envío: %w", err)
	}
	if sub == nil {
		return nil, domain.ErrNotFound
	}
	if _, err := s.ownedInvoice(ctx, companyID, sub.InvoiceID); err != nil {
		return nil, err
	}
	return sub, nil
}

// ToSubmissionResponse mapea el envío al DTO de la API.
func ToSubmissionResponse(sub *entity.Submission) dto.SubmissionResponse {
	return dto.SubmissionResponse{
		ID:           sub.ID,
		InvoiceID:    sub.InvoiceID,
		Provider:     sub.Provider,
		Status:       sub.Status,
		ExternalID:   sub.ExternalID,
		XMLPath:      sub.XMLPath,
		ErrorMessage: sub.ErrorMessage,
		Metadata:     sub.Metadata,
		Version:      sub.Version,
		CreatedAt:    sub.CreatedAt,
		UpdatedAt:    sub.UpdatedAt,
	}
}
