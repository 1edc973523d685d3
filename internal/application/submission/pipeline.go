package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/einvoice-gateway/internal/domain"
	"github.com/jhoicas/einvoice-gateway/internal/domain/entity"
	"github.com/jhoicas/einvoice-gateway/internal/domain/repository"
)

// Mensajes que quedan visibles en Submission.ErrorMessage / Invoice.ProviderError.
const (
	MsgNoCredential     = "no credential"
	MsgMaxChecksReached = "max checks reached"
	MsgRateLimited      = "rate limited by provider"
)

// Deps dependencias comunes a los handlers de todos los proveedores.
type Deps struct {
	Validator   Validator
	Codec       Codec
	Credentials CredentialResolver
	Blobs       BlobStore
	Tx          TxRunner
	Logger      zerolog.Logger
	// Now reloj inyectable; nil = time.Now.
	Now func() time.Time
}

func (d Deps) clock() func() time.Time {
	if d.Now != nil {
		return d.Now
	}
	return time.Now
}

// run estado de una ejecución: la pareja (factura, envío) y el estado de la factura
// leído al empezar, que es el valor esperado en la comparación al persistir.
type run struct {
	inv      *entity.Invoice
	sub      *entity.Submission
	expected string
	// storedXML ruta de XML ya persistida en la factura.
	storedXML string
	// lost la comparación al persistir la ganó otra ejecución.
	lost bool
	log  zerolog.Logger
}

func newRun(base zerolog.Logger, provider string, inv *entity.Invoice, sub *entity.Submission) *run {
	return &run{
		inv:       inv,
		sub:       sub,
		expected:  inv.Status,
		storedXML: inv.XMLPath,
		log: base.With().
			Str("provider", provider).
			Str("invoice_id", inv.ID).
			Str("submission_id", sub.ID).
			Str("company_id", inv.CompanyID).
			Logger(),
	}
}

// outcome transición a persistir al cerrar un paso.
type outcome struct {
	step          string
	subStatus     string
	message       string
	invoiceStatus string // vacío = no cambia el estado de la factura
	providerTag   string // vacío = no toca el espejo provider_*
	eventMeta     map[string]any
}

func (o outcome) failed() bool {
	return o.subStatus == entity.SubmissionStatusError || o.subStatus == entity.SubmissionStatusRejected
}

// recorder persiste transiciones de Submission/Invoice y su DocumentEvent en una sola transacción.
type recorder struct {
	provider string
	tx       TxRunner
	now      func() time.Time
}

// record aplica o sobre la pareja del run. Si otra ejecución ganó la comparación
// (domain.ErrConcurrentUpdate) se registra y se devuelve nil.
// Si la transacción no confirma, la pareja en memoria vuelve a su estado previo.
func (r *recorder) record(ctx context.Context, rn *run, o outcome) error {
	now := r.now().UTC()
	prevInvoice := rn.inv.Status
	subBefore, invBefore := *rn.sub, *rn.inv

	rn.sub.Status = o.subStatus
	rn.sub.ErrorMessage = o.message
	rn.sub.UpdatedAt = now

	touchInvoice := o.invoiceStatus != "" || o.providerTag != ""
	// El XML ya escrito se registra aunque el resultado no toque la factura (límite de tasa),
	// para que el siguiente intento lo relea en vez de regenerarlo.
	xmlPending := rn.inv.XMLPath != "" && rn.inv.XMLPath != rn.storedXML
	if o.invoiceStatus != "" {
		rn.inv.Status = o.invoiceStatus
	}
	if o.providerTag != "" {
		rn.inv.ProviderStatus = o.providerTag
		rn.inv.ProviderError = o.message
		rn.inv.SyncedAt = &now
	}
	rn.inv.UpdatedAt = now

	var ev *entity.DocumentEvent
	if touchInvoice {
		meta := map[string]any{
			"provider":          r.provider,
			"submission_status": rn.sub.Status,
			"provider_status":   rn.inv.ProviderStatus,
		}
		if rn.sub.ExternalID != "" {
			meta["external_id"] = rn.sub.ExternalID
		}
		if o.message != "" {
			meta["error"] = o.message
		}
		for k, v := range o.eventMeta {
			meta[k] = v
		}
		ev = &entity.DocumentEvent{
			ID:             uuid.New().String(),
			InvoiceID:      rn.inv.ID,
			SubmissionID:   rn.sub.ID,
			Type:           entity.EventTypeEInvoiceStatus,
			PreviousStatus: prevInvoice,
			NewStatus:      rn.inv.Status,
			Metadata:       meta,
			CreatedAt:      now,
		}
	}

	err := r.tx.RunSubmission(ctx, func(
		subRepo repository.SubmissionRepository,
		invoiceRepo repository.InvoiceRepository,
		eventRepo repository.DocumentEventRepository,
	) error {
		if err := subRepo.Update(ctx, rn.sub); err != nil {
			return err
		}
		if touchInvoice {
			if err := invoiceRepo.UpdateProviderState(ctx, rn.inv, rn.expected); err != nil {
				return err
			}
		} else if xmlPending {
			if err := invoiceRepo.UpdateXMLPath(ctx, rn.inv.ID, rn.inv.XMLPath); err != nil {
				return err
			}
		}
		if ev != nil {
			return eventRepo.Append(ctx, ev)
		}
		return nil
	})
	if err != nil {
		*rn.sub, *rn.inv = subBefore, invBefore
	}
	if errors.Is(err, domain.ErrConcurrentUpdate) {
		rn.lost = true
		rn.log.Warn().Str("step", o.step).Msg("otra ejecución modificó el envío o la factura; se descarta este resultado")
		return nil
	}
	if err != nil {
		rn.log.Error().Err(err).Str("step", o.step).Msg("no se pudo persistir el resultado del envío")
		return fmt.Errorf("persistir %s: %w", o.step, err)
	}
	rn.expected = rn.inv.Status
	rn.storedXML = rn.inv.XMLPath

	evt := rn.log.Info()
	if o.failed() {
		evt = rn.log.Warn()
	}
	evt.Str("step", o.step).
		Str("submission_status", rn.sub.Status).
		Str("invoice_status", rn.inv.Status).
		Str("error", o.message).
		Msg("envío e-factura actualizado")
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Pasos comunes: elegibilidad → validación → XML → credencial
// ═══════════════════════════════════════════════════════════════════════════

type pipeline struct {
	recorder
	deps Deps
}

func newPipeline(provider string, deps Deps) pipeline {
	return pipeline{
		recorder: recorder{provider: provider, tx: deps.Tx, now: deps.clock()},
		deps:     deps,
	}
}

// prepared resultado de los pasos previos a la llamada al proveedor.
type prepared struct {
	xml  []byte
	cred *entity.Credential
}

// prepare ejecuta los pasos 1 a 4. Devuelve nil, nil cuando la ejecución terminó
// y el resultado ya quedó persistido.
func (p *pipeline) prepare(ctx context.Context, rn *run) (*prepared, error) {
	inv := rn.inv

	// 1. Elegibilidad
	if !eligible(inv) {
		return nil, p.record(ctx, rn, outcome{
			step:      "eligibility",
			subStatus: entity.SubmissionStatusError,
			message:   fmt.Sprintf("la factura está en estado %s y no se puede enviar", inv.Status),
		})
	}

	// 2. Validación
	if res := p.deps.Validator.Validate(inv); !res.IsValid {
		return nil, p.record(ctx, rn, outcome{
			step:          "validate",
			subStatus:     entity.SubmissionStatusRejected,
			message:       res.Messages(),
			invoiceStatus: entity.InvoiceStatusRejected,
			providerTag:   entity.ProviderTagValidationFailed,
			eventMeta:     map[string]any{"codes": res.Codes()},
		})
	}

	// 3. XML (idempotente: si ya hay ruta se relee sin regenerar)
	xmlBytes, err := p.storeXML(ctx, rn)
	if err != nil {
		return nil, p.record(ctx, rn, outcome{
			step:        "xml",
			subStatus:   entity.SubmissionStatusError,
			message:     err.Error(),
			providerTag: entity.ProviderTagXMLFailed,
		})
	}

	// 4. Credencial
	cred, err := p.deps.Credentials.Resolve(ctx, inv.Company, p.provider)
	if errors.Is(err, domain.ErrRateLimited) {
		return nil, p.rateLimited(ctx, rn, "credential", err)
	}
	if err != nil || cred == nil {
		msg := MsgNoCredential
		if err != nil {
			rn.log.Warn().Err(err).Str("step", "credential").Msg("fallo resolviendo la credencial")
			msg = MsgNoCredential + ": " + err.Error()
		}
		return nil, p.record(ctx, rn, outcome{
			step:        "credential",
			subStatus:   entity.SubmissionStatusError,
			message:     msg,
			providerTag: entity.ProviderTagNoCredential,
		})
	}
	return &prepared{xml: xmlBytes, cred: cred}, nil
}

func (p *pipeline) storeXML(ctx context.Context, rn *run) ([]byte, error) {
	inv := rn.inv
	if inv.XMLPath != "" {
		data, err := p.deps.Blobs.Read(ctx, inv.XMLPath)
		if err != nil {
			return nil, fmt.Errorf("leer XML almacenado %s: %w", inv.XMLPath, err)
		}
		rn.sub.XMLPath = inv.XMLPath
		return data, nil
	}

	data, err := p.deps.Codec.Generate(inv)
	if err != nil {
		return nil, fmt.Errorf("generar XML: %w", err)
	}
	path := XMLPath(inv)
	if err := p.deps.Blobs.Write(ctx, path, data); err != nil {
		return nil, fmt.Errorf("guardar XML %s: %w", path, err)
	}
	inv.XMLPath = path
	rn.sub.XMLPath = path
	return data, nil
}

// uploadFailed paso 5 fallido: Submission ERROR, Invoice REJECTED.
func (p *pipeline) uploadFailed(ctx context.Context, rn *run, msg string) error {
	return p.record(ctx, rn, outcome{
		step:          "upload",
		subStatus:     entity.SubmissionStatusError,
		message:       msg,
		invoiceStatus: entity.InvoiceStatusRejected,
		providerTag:   entity.ProviderTagUploadFailed,
	})
}

// rateLimited cierra el envío en ERROR sin tocar la factura y devuelve la señal al lote.
func (p *pipeline) rateLimited(ctx context.Context, rn *run, step string, cause error) error {
	if err := p.record(ctx, rn, outcome{step: step, subStatus: entity.SubmissionStatusError, message: MsgRateLimited}); err != nil {
		return err
	}
	return fmt.Errorf("%s %s: %w", p.provider, step, cause)
}

// uploaded paso 6: SUBMITTED + espejo en la factura.
func uploaded(rn *run, externalID string, meta map[string]any, now time.Time) outcome {
	rn.sub.ExternalID = externalID
	for k, v := range meta {
		if k == entity.MetaProviderRaw {
			continue
		}
		rn.sub.SetMeta(k, v)
	}
	rn.sub.SetMeta(entity.MetaUploadedAt, now.UTC().Format(time.RFC3339))
	rn.inv.ProviderUploadID = externalID
	return outcome{
		step:          "upload",
		subStatus:     entity.SubmissionStatusSubmitted,
		invoiceStatus: entity.InvoiceStatusSentToProvider,
		providerTag:   entity.ProviderTagUploaded,
	}
}

func eligible(inv *entity.Invoice) bool {
	switch inv.Status {
	case entity.InvoiceStatusIssued, entity.InvoiceStatusSentToProvider:
		return true
	case entity.InvoiceStatusRefund:
		return inv.IsCorrection()
	}
	return false
}

// XMLPath ruta del XML en el blob store: {taxId}/{año}/{mes}/{invoiceId}.xml
func XMLPath(inv *entity.Invoice) string {
	taxID := "unknown"
	if inv.Company != nil && inv.Company.TaxID != "" {
		taxID = strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return r
			}
			return -1
		}, inv.Company.TaxID)
	}
	return fmt.Sprintf("%s/%04d/%02d/%s.xml", taxID, inv.IssueDate.Year(), int(inv.IssueDate.Month()), inv.ID)
}

// providerError mensaje de un fallo del proveedor.
func providerError(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}
