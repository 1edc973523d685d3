package cmd

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/jhoicas/einvoice-gateway/internal/bootstrap"
	"github.com/jhoicas/einvoice-gateway/pkg/config"
	"github.com/jhoicas/einvoice-gateway/pkg/logger"
)

var (
	version = "1.0.0"

	// Flags globales
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "einvoicectl",
	Short: "Operación del envío de facturas a ANAF e-Factura y KSeF",
	Long: `einvoicectl ejecuta el pipeline de e-factura fuera de la API.

Ejemplos:
  # Aplicar migraciones
  einvoicectl migrate

  # Enviar una factura al proveedor de su empresa
  einvoicectl submit 6f1c...-uuid

  # Lote de facturas marcadas para ANAF
  einvoicectl batch --provider anaf --limit 50

  # Worker de consultas de estado (y lotes periódicos)
  einvoicectl worker`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute ejecuta el comando raíz.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log en nivel debug")
}

// runtime configuración, logger y contenedor de un comando.
type runtime struct {
	cfg *config.Config
	log *logger.Logger
	c   *bootstrap.Container
}

func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	level := cfg.App.LogLevel
	if verbose {
		level = "debug"
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: level, Service: "einvoicectl", Output: os.Stderr})
	return cfg, log, nil
}

func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	c, err := bootstrap.Build(ctx, cfg, log.Zerolog())
	if err != nil {
		return nil, err
	}
	return &runtime{cfg: cfg, log: log, c: c}, nil
}

func (r *runtime) Close() { r.c.Close() }

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
