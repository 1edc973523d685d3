package submission

import (
	"context"
	"errors"
	"time"

	"github.com/jhoicas/einvoice-gateway/internal/domain"
	"github.com/jhoicas/einvoice-gateway/internal/domain/einvoice"
	"github.com/jhoicas/einvoice-gateway/internal/domain/entity"
)

var _ Handler = (*KsefHandler)(nil)

// terminateTimeout el cierre de sesión no debe colgar el envío.
const terminateTimeout = 10 * time.Second

// KsefHandler envío a KSeF dentro de una sesión interactiva.
// No hay bucle de sondeo: el estado se lee una vez en la misma sesión.
type KsefHandler struct {
	pipeline
	client KsefClient
}

// NewKsefHandler construye el handler de KSeF.
func NewKsefHandler(deps Deps, client KsefClient) *KsefHandler {
	return &KsefHandler{pipeline: newPipeline(entity.ProviderKSEF, deps), client: client}
}

// Submit ejecuta el intento sub para la factura inv.
func (h *KsefHandler) Submit(ctx context.Context, inv *entity.Invoice, sub *entity.Submission) error {
	rn := newRun(h.deps.Logger, h.provider, inv, sub)

	prep, err := h.prepare(ctx, rn)
	if err != nil || prep == nil {
		return err
	}

	nip := prep.cred.TaxID
	if nip == "" && inv.Company != nil {
		nip = inv.Company.TaxID
	}

	// 5. Sesión + envío
	session, err := h.client.InitSession(ctx, prep.cred.APIKey, nip)
	if errors.Is(err, domain.ErrRateLimited) {
		return h.rateLimited(ctx, rn, "init-session", err)
	}
	if err != nil {
		return h.uploadFailed(ctx, rn, "init session: "+err.Error())
	}
	defer h.terminate(rn, session)

	resp, err := h.client.Submit(ctx, prep.xml, session)
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

	// 6. Éxito + lectura inmediata del estado en la misma sesión
	o := uploaded(rn, resp.ExternalID, resp.Metadata, h.now())
	status, statusErr := h.client.CheckStatus(ctx, resp.ExternalID, session)
	switch {
	case statusErr != nil:
		rn.log.Warn().Err(statusErr).Str("step", "status").Msg("no se pudo leer el estado; el envío queda SUBMITTED")
	case status.Status == einvoice.StatusAccepted:
		o = h.accepted(rn, status)
	case status.Status == einvoice.StatusRejected || status.Status == einvoice.StatusError:
		o = outcome{
			step:          "status",
			subStatus:     entity.SubmissionStatusRejected,
			message:       status.ErrorMessage,
			invoiceStatus: entity.InvoiceStatusRejected,
			providerTag:   entity.ProviderTagRejected,
		}
	}
	if err := h.record(ctx, rn, o); err != nil {
		return err
	}
	if errors.Is(statusErr, domain.ErrRateLimited) {
		return statusErr
	}
	return nil
}

func (h *KsefHandler) accepted(rn *run, status *einvoice.StatusResponse) outcome {
	meta := map[string]any{}
	for k, v := range status.Metadata {
		rn.sub.SetMeta(k, v)
	}
	if n, ok := status.Metadata[entity.MetaKSeFNumber].(string); ok && n != "" {
		rn.inv.ProviderDownloadID = n
		meta[entity.MetaKSeFNumber] = n
	}
	return outcome{
		step:          "status",
		subStatus:     entity.SubmissionStatusAccepted,
		invoiceStatus: rn.inv.AcceptedStatus(),
		providerTag:   entity.ProviderTagAccepted,
		eventMeta:     meta,
	}
}

// terminate cierre de sesión best-effort; su fallo no afecta al envío.
func (h *KsefHandler) terminate(rn *run, session string) {
	ctx, cancel := context.WithTimeout(context.Background(), terminateTimeout)
	defer cancel()
	if err := h.client.TerminateSession(ctx, session); err != nil {
		rn.log.Warn().Err(err).Str("step", "terminate").Msg("no se pudo cerrar la sesión KSeF")
	}
}
