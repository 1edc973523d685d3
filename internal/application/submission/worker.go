package submission

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/einvoice-gateway/internal/domain"
	"github.com/jhoicas/einvoice-gateway/internal/domain/entity"
)

// StatusDispatcher lo que el worker necesita del Dispatcher.
type StatusDispatcher interface {
	CheckStatus(ctx context.Context, unit entity.WorkUnit) error
}

// WorkerConfig parámetros del worker de consultas.
type WorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	Lease        time.Duration
}

// StatusCheckWorker reclama unidades vencidas de la cola y las entrega al Dispatcher.
type StatusCheckWorker struct {
	queue      JobQueue
	dispatcher StatusDispatcher
	cfg        WorkerConfig
	log        zerolog.Logger
}

// NewStatusCheckWorker construye el worker con valores por defecto razonables.
func NewStatusCheckWorker(queue JobQueue, dispatcher StatusDispatcher, cfg WorkerConfig, log zerolog.Logger) *StatusCheckWorker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 5 * time.Minute
	}
	return &StatusCheckWorker{queue: queue, dispatcher: dispatcher, cfg: cfg, log: log}
}

// Run ejecuta pasadas hasta que ctx se cancela.
func (w *StatusCheckWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if _, err := w.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.log.Error().Err(err).Msg("pasada del worker de consultas fallida")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce procesa una tanda. Una unidad se completa al terminar sin error (o si su
// envío ya no existe); si no, vuelve a entregarse al vencer el arriendo.
// Un límite de tasa corta la tanda.
func (w *StatusCheckWorker) RunOnce(ctx context.Context) (int, error) {
	units, err := w.queue.Claim(ctx, w.cfg.BatchSize, w.cfg.Lease)
	if err != nil {
		return 0, err
	}
	processed := 0
	for _, u := range units {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		lg := w.log.With().Str("submission_id", u.SubmissionID).Int("attempt", u.Attempt).Logger()

		err := w.dispatcher.CheckStatus(ctx, u)
		if errors.Is(err, domain.ErrRateLimited) {
			lg.Warn().Msg("el proveedor limitó la tasa; se corta la tanda")
			return processed, nil
		}
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			lg.Error().Err(err).Msg("consulta de estado fallida; se reintentará al vencer el arriendo")
			continue
		}
		if err := w.queue.Complete(ctx, u); err != nil {
			lg.Error().Err(err).Msg("no se pudo completar la unidad")
			continue
		}
		processed++
	}
	return processed, nil
}
