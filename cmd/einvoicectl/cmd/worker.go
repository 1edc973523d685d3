package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Procesa las consultas de estado programadas y, opcionalmente, lotes periódicos",
	Long: `Reclama las consultas vencidas de status_check_jobs cada WORKER_POLL_INTERVAL.
Con WORKER_BATCH_INTERVAL > 0 lanza además un lote por proveedor registrado en cada intervalo.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		log := rt.log.Component("worker")
		log.Info().
			Dur("poll_interval", rt.cfg.Worker.PollInterval).
			Dur("batch_interval", rt.cfg.Worker.BatchInterval).
			Strs("providers", rt.c.Registry.Providers()).
			Msg("worker iniciado")

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return rt.c.Worker.Run(ctx) })
		if rt.cfg.Worker.BatchInterval > 0 {
			g.Go(func() error { return runBatches(ctx, rt) })
		}
		err = g.Wait()
		log.Info().Msg("worker detenido")
		return err
	},
}

// runBatches lanza un lote por proveedor en cada intervalo hasta que ctx se cancela.
func runBatches(ctx context.Context, rt *runtime) error {
	log := rt.log.Component("batch")
	ticker := time.NewTicker(rt.cfg.Worker.BatchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		for _, provider := range rt.c.Registry.Providers() {
			report, err := rt.c.Batch.Run(ctx, provider, rt.cfg.Worker.BatchSize)
			if err != nil && ctx.Err() == nil {
				log.Error().Err(err).Str("provider", provider).Msg("lote fallido")
				continue
			}
			if report.Selected > 0 {
				log.Info().
					Str("provider", provider).
					Int("selected", report.Selected).
					Int("submitted", report.Submitted).
					Int("failed", report.Failed).
					Int("skipped", report.Skipped).
					Bool("rate_limited", report.RateLimited).
					Msg("lote completado")
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
