package submission

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jhoicas/einvoice-gateway/internal/domain"
	"github.com/jhoicas/einvoice-gateway/internal/domain/entity"
	"github.com/jhoicas/einvoice-gateway/internal/domain/repository"
)

// BatchReport resumen de una pasada del lote.
type BatchReport struct {
	Provider    string `json:"provider"`
	Selected    int    `json:"selected"`
	Submitted   int    `json:"submitted"`
	Failed      int    `json:"failed"`
	Skipped     int    `json:"skipped"`
	RateLimited bool   `json:"rate_limited"`
}

// InvoiceSubmitter lo que el lote necesita del Dispatcher.
type InvoiceSubmitter interface {
	SubmitInvoice(ctx context.Context, invoiceID string) (*entity.Submission, error)
}

// BatchRunner envía secuencialmente las facturas marcadas para un proveedor.
// El fallo de una factura no corta el lote; un 429 del proveedor sí.
type BatchRunner struct {
	invoices  repository.InvoiceRepository
	submitter InvoiceSubmitter
	log       zerolog.Logger
}

// NewBatchRunner construye el lote.
func NewBatchRunner(invoices repository.InvoiceRepository, submitter InvoiceSubmitter, log zerolog.Logger) *BatchRunner {
	return &BatchRunner{invoices: invoices, submitter: submitter, log: log}
}

// Run procesa hasta limit facturas. Un corte por límite de tasa no es un error:
// se informa en BatchReport.RateLimited y la siguiente pasada continúa.
func (b *BatchRunner) Run(ctx context.Context, provider string, limit int) (BatchReport, error) {
	provider = providerKey(provider)
	report := BatchReport{Provider: provider}
	lg := b.log.With().Str("provider", provider).Logger()

	invs, err := b.invoices.FindScheduledForSubmission(ctx, provider, limit)
	if err != nil {
		return report, fmt.Errorf("buscar facturas programadas: %w", err)
	}
	report.Selected = len(invs)

	for _, inv := range invs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		sub, err := b.submitter.SubmitInvoice(ctx, inv.ID)
		switch {
		case errors.Is(err, domain.ErrRateLimited):
			report.RateLimited = true
			lg.Warn().Str("invoice_id", inv.ID).Int("processed", report.Submitted+report.Failed+report.Skipped).
				Msg("el proveedor limitó la tasa; se corta el lote")
			return report, nil
		case errors.Is(err, domain.ErrActiveSubmission):
			report.Skipped++
		case err != nil:
			report.Failed++
			lg.Error().Err(err).Str("invoice_id", inv.ID).Msg("fallo enviando la factura")
		case sub != nil && (sub.Status == entity.SubmissionStatusSubmitted || sub.Status == entity.SubmissionStatusAccepted):
			report.Submitted++
		default:
			report.Failed++
		}
	}

	lg.Info().Int("selected", report.Selected).Int("submitted", report.Submitted).
		Int("failed", report.Failed).Int("skipped", report.Skipped).Msg("lote de e-factura terminado")
	return report, nil
}
