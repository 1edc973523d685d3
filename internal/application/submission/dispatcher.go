package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/einvoice-gateway/internal/domain"
	"github.com/jhoicas/einvoice-gateway/internal/domain/entity"
	"github.com/jhoicas/einvoice-gateway/internal/domain/repository"
)

// Dispatcher punto de entrada único: crea el envío y lo delega al handler del proveedor
// de la empresa; entrega las consultas de estado al checker correspondiente.
type Dispatcher struct {
	registry *Registry
	invoices repository.InvoiceRepository
	subs     repository.SubmissionRepository
	log      zerolog.Logger
	now      func() time.Time
}

// NewDispatcher construye el despachador.
func NewDispatcher(registry *Registry, invoices repository.InvoiceRepository, subs repository.SubmissionRepository, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, invoices: invoices, subs: subs, log: log, now: time.Now}
}

// SubmitInvoice crea un envío PENDING y ejecuta el handler del proveedor.
// Devuelve el envío con su estado final. Rechaza con domain.ErrActiveSubmission si ya
// hay uno PENDING/SUBMITTED/ACCEPTED para la factura.
func (d *Dispatcher) SubmitInvoice(ctx context.Context, invoiceID string) (*entity.Submission, error) {
	inv, err := d.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("obtener factura: %w", err)
	}
	if inv == nil {
		return nil, fmt.Errorf("factura %s: %w", invoiceID, domain.ErrNotFound)
	}
	if inv.Company == nil || inv.Company.EInvoiceProvider == "" {
		return nil, fmt.Errorf("la empresa de la factura %s no tiene proveedor de e-factura: %w", invoiceID, domain.ErrInvalidInput)
	}
	provider := providerKey(inv.Company.EInvoiceProvider)

	h, err := d.registry.Handler(provider)
	if err != nil {
		return nil, err
	}

	active, err := d.subs.FindActiveByInvoice(ctx, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("buscar envío activo: %w", err)
	}
	if active != nil {
		return active, fmt.Errorf("envío %s en %s: %w", active.ID, active.Status, domain.ErrActiveSubmission)
	}

	now := d.now().UTC()
	sub := &entity.Submission{
		ID:        uuid.New().String(),
		InvoiceID: inv.ID,
		Provider:  provider,
		Status:    entity.SubmissionStatusPending,
		Metadata:  map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := d.subs.Create(ctx, sub); err != nil {
		// El índice único de envíos activos detecta la carrera entre dos altas simultáneas.
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("envío concurrente para la factura %s: %w", inv.ID, domain.ErrActiveSubmission)
		}
		return nil, fmt.Errorf("crear envío: %w", err)
	}

	runErr := h.Submit(ctx, inv, sub)
	// Se devuelve lo persistido: si la ejecución perdió la comparación, la copia en memoria no vale.
	if cur, err := d.subs.GetByID(ctx, sub.ID); err == nil && cur != nil {
		sub = cur
	}
	return sub, runErr
}

// CheckStatus entrega la unidad al checker del proveedor del envío.
// Sin checker registrado es un no-op.
func (d *Dispatcher) CheckStatus(ctx context.Context, unit entity.WorkUnit) error {
	sub, err := d.subs.GetByID(ctx, unit.SubmissionID)
	if err != nil {
		return fmt.Errorf("obtener envío: %w", err)
	}
	if sub == nil {
		return fmt.Errorf("envío %s: %w", unit.SubmissionID, domain.ErrNotFound)
	}
	c, ok := d.registry.Checker(sub.Provider)
	if !ok {
		d.log.Debug().Str("provider", sub.Provider).Str("submission_id", sub.ID).Msg("proveedor sin consulta de estado; nada que hacer")
		return nil
	}
	return c.Check(ctx, unit)
}

// CheckNow consulta el estado fuera de calendario usando el intento registrado en el envío.
func (d *Dispatcher) CheckNow(ctx context.Context, submissionID string) (*entity.Submission, error) {
	sub, err := d.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	unit := entity.WorkUnit{SubmissionID: sub.ID, Attempt: MetaInt(sub.Metadata, entity.MetaAttempt)}
	if err := d.CheckStatus(ctx, unit); err != nil {
		return nil, err
	}
	return d.GetSubmission(ctx, submissionID)
}

// GetSubmission domain.ErrNotFound si no existe.
func (d *Dispatcher) GetSubmission(ctx context.Context, id string) (*entity.Submission, error) {
	sub, err := d.subs.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("obtener envío: %w", err)
	}
	if sub == nil {
		return nil, fmt.Errorf("envío %s: %w", id, domain.ErrNotFound)
	}
	return sub, nil
}

// MetaInt lee un entero de los metadatos tolerando la decodificación JSON (float64).
func MetaInt(meta map[string]any, key string) int {
	switch v := meta[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	}
	return 0
}
