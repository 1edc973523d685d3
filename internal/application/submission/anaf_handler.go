package submission

import (
	"context"
	"errors"

	"github.com/jhoicas/einvoice-gateway/internal/domain"
	"github.com/jhoicas/einvoice-gateway/internal/domain/entity"
)

var _ Handler = (*AnafHandler)(nil)

// AnafHandler subida a e-Factura. Tras subir programa la primera consulta de estado
// (intento 0); el veredicto llega por AnafChecker.
type AnafHandler struct {
	pipeline
	client    AnafClient
	scheduler Scheduler
}

// NewAnafHandler construye el handler de ANAF.
func NewAnafHandler(deps Deps, client AnafClient, scheduler Scheduler) *AnafHandler {
	return &AnafHandler{
		pipeline:  newPipeline(entity.ProviderANAF, deps),
		client:    client,
		scheduler: scheduler,
	}
}

// Submit ejecuta el intento sub para la factura inv.
func (h *AnafHandler) Submit(ctx context.Context, inv *entity.Invoice, sub *entity.Submission) error {
	rn := newRun(h.deps.Logger, h.provider, inv, sub)

	prep, err := h.prepare(ctx, rn)
	if err != nil || prep == nil {
		return err
	}

	// 5. Subida
	taxID := ""
	if inv.Company != nil {
		taxID = inv.Company.TaxID
	}
	resp, err := h.client.Upload(ctx, prep.xml, taxID, prep.cred.AccessToken)
	if errors.Is(err, domain.ErrRateLimited) {
		return h.rateLimited(ctx, rn, "upload", err)
	}
	if err != nil || resp == nil || !resp.Success {
		msg := "upload failed"
		if resp != nil && resp.ErrorMessage != "" {
			msg = resp.ErrorMessage
		}
		return h.uploadFailed(ctx, rn, providerError(err, msg))
	}

	// 6. Éxito
	if err := h.record(ctx, rn, uploaded(rn, resp.ExternalID, resp.Metadata, h.now())); err != nil {
		return err
	}
	if rn.lost {
		return nil
	}
	unit := entity.WorkUnit{SubmissionID: sub.ID, Attempt: 0}
	if err := h.scheduler.ScheduleAfter(ctx, BackoffDelay(0), unit); err != nil {
		rn.log.Error().Err(err).Str("step", "schedule").Msg("envío subido pero no se pudo programar la consulta de estado")
		return err
	}
	rn.log.Info().Str("step", "schedule").Int("attempt", 0).Dur("delay", BackoffDelay(0)).Msg("consulta de estado programada")
	return nil
}
