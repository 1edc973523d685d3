package submission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/einvoice-gateway/internal/domain"
	"github.com/jhoicas/einvoice-gateway/internal/domain/einvoice"
	"github.com/jhoicas/einvoice-gateway/internal/domain/entity"
	"github.com/jhoicas/einvoice-gateway/internal/domain/repository"
)

var _ Checker = (*AnafChecker)(nil)

// AnafChecker consulta stareMesaj para un envío SUBMITTED y aplica el veredicto,
// o programa la siguiente consulta según BackoffDelay.
//
//	SUBMITTED ──ok──▶ ACCEPTED (factura VALIDATED / REFUND)
//	          ──nok─▶ REJECTED
//	          ──en proceso─▶ SUBMITTED + consulta attempt+1
//	          ──attempt ≥ MaxAttempts─▶ ERROR (PENDING_TIMEOUT)
type AnafChecker struct {
	recorder
	creds     CredentialResolver
	subs      repository.SubmissionRepository
	invoices  repository.InvoiceRepository
	client    AnafClient
	scheduler Scheduler
	log       zerolog.Logger
}

// NewAnafChecker construye el checker. De deps usa Credentials, Tx, Logger y Now.
func NewAnafChecker(
	deps Deps,
	subs repository.SubmissionRepository,
	invoices repository.InvoiceRepository,
	client AnafClient,
	scheduler Scheduler,
) *AnafChecker {
	return &AnafChecker{
		recorder:  recorder{provider: entity.ProviderANAF, tx: deps.Tx, now: deps.clock()},
		creds:     deps.Credentials,
		subs:      subs,
		invoices:  invoices,
		client:    client,
		scheduler: scheduler,
		log:       deps.Logger,
	}
}

// Check procesa la unidad. Sobre un envío ya terminal no hace nada.
func (c *AnafChecker) Check(ctx context.Context, unit entity.WorkUnit) error {
	lg := c.log.With().
		Str("provider", c.provider).
		Str("submission_id", unit.SubmissionID).
		Int("attempt", unit.Attempt).
		Logger()

	sub, err := c.subs.GetByID(ctx, unit.SubmissionID)
	if err != nil {
		return fmt.Errorf("obtener envío %s: %w", unit.SubmissionID, err)
	}
	if sub == nil {
		lg.Warn().Str("step", "load").Msg("envío inexistente; se descarta la consulta")
		return fmt.Errorf("envío %s: %w", unit.SubmissionID, domain.ErrNotFound)
	}
	if sub.IsTerminal() {
		lg.Debug().Str("status", sub.Status).Msg("envío ya terminal; consulta ignorada")
		return nil
	}
	if sub.Status != entity.SubmissionStatusSubmitted || sub.ExternalID == "" {
		lg.Warn().Str("status", sub.Status).Msg("envío sin subir; consulta ignorada")
		return nil
	}

	inv, err := c.invoices.GetByID(ctx, sub.InvoiceID)
	if err != nil {
		return fmt.Errorf("obtener factura %s: %w", sub.InvoiceID, err)
	}
	if inv == nil {
		lg.Error().Str("invoice_id", sub.InvoiceID).Str("step", "load").Msg("factura inexistente; requiere intervención manual")
		return nil
	}

	rn := newRun(c.log, c.provider, inv, sub)
	rn.log = rn.log.With().Int("attempt", unit.Attempt).Logger()

	if unit.Attempt >= MaxAttempts {
		return c.record(ctx, rn, outcome{
			step:        "max-attempts",
			subStatus:   entity.SubmissionStatusError,
			message:     MsgMaxChecksReached,
			providerTag: entity.ProviderTagPendingTimeout,
			eventMeta:   map[string]any{entity.MetaAttempt: unit.Attempt},
		})
	}

	cred, err := c.creds.Resolve(ctx, inv.Company, c.provider)
	if errors.Is(err, domain.ErrRateLimited) {
		return err
	}
	if err != nil || cred == nil {
		rn.log.Error().Err(err).Str("step", "credential").Msg("sin credencial para consultar el estado; requiere intervención manual")
		return nil
	}

	resp, err := c.client.CheckStatus(ctx, sub.ExternalID, cred.AccessToken)
	if errors.Is(err, domain.ErrRateLimited) {
		return err
	}
	if err != nil {
		rn.log.Warn().Err(err).Str("step", "status").Msg("fallo transitorio consultando el estado")
		return c.reschedule(ctx, rn, unit)
	}

	now := c.now().UTC()
	sub.SetMeta(entity.MetaLastCheckedAt, now.Format(time.RFC3339))
	sub.SetMeta(entity.MetaAttempt, unit.Attempt)

	switch resp.Status {
	case einvoice.StatusAccepted:
		meta := map[string]any{}
		if dl, ok := resp.Metadata[entity.MetaDownloadID].(string); ok && dl != "" {
			sub.SetMeta(entity.MetaDownloadID, dl)
			inv.ProviderDownloadID = dl
			meta[entity.MetaDownloadID] = dl
		}
		return c.record(ctx, rn, outcome{
			step:          "status",
			subStatus:     entity.SubmissionStatusAccepted,
			invoiceStatus: inv.AcceptedStatus(),
			providerTag:   entity.ProviderTagAccepted,
			eventMeta:     meta,
		})
	case einvoice.StatusRejected, einvoice.StatusError:
		subStatus := entity.SubmissionStatusRejected
		if resp.Status == einvoice.StatusError {
			subStatus = entity.SubmissionStatusError
		}
		meta := map[string]any{}
		if dl, ok := resp.Metadata[entity.MetaDownloadID].(string); ok && dl != "" {
			sub.SetMeta(entity.MetaDownloadID, dl)
			meta[entity.MetaDownloadID] = dl
		}
		return c.record(ctx, rn, outcome{
			step:          "status",
			subStatus:     subStatus,
			message:       resp.ErrorMessage,
			invoiceStatus: entity.InvoiceStatusRejected,
			providerTag:   entity.ProviderTagRejected,
			eventMeta:     meta,
		})
	default:
		return c.reschedule(ctx, rn, unit)
	}
}

// reschedule registra la consulta y programa attempt+1. No muta la factura.
func (c *AnafChecker) reschedule(ctx context.Context, rn *run, unit entity.WorkUnit) error {
	rn.sub.SetMeta(entity.MetaLastCheckedAt, c.now().UTC().Format(time.RFC3339))
	rn.sub.SetMeta(entity.MetaAttempt, unit.Attempt)
	if err := c.record(ctx, rn, outcome{step: "poll", subStatus: entity.SubmissionStatusSubmitted}); err != nil {
		return err
	}
	if rn.lost {
		return nil
	}
	next := entity.WorkUnit{SubmissionID: unit.SubmissionID, Attempt: unit.Attempt + 1}
	delay := BackoffDelay(next.Attempt)
	if err := c.scheduler.ScheduleAfter(ctx, delay, next); err != nil {
		return fmt.Errorf("programar consulta %d: %w", next.Attempt, err)
	}
	rn.log.Info().Str("step", "poll").Int("next_attempt", next.Attempt).Dur("delay", delay).Msg("todavía en proceso; siguiente consulta programada")
	return nil
}
