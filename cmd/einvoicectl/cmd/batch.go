package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	batchProvider string
	batchLimit    int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Envía las facturas marcadas para un proveedor",
	Long: `Procesa en orden las facturas con scheduled_for_submission del proveedor.
Un fallo individual no corta el lote; un 429 del proveedor sí, y se informa en rate_limited.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		if _, err := rt.c.Registry.Handler(batchProvider); err != nil {
			return fmt.Errorf("%w (registrados: %v)", err, rt.c.Registry.Providers())
		}
		limit := batchLimit
		if limit <= 0 {
			limit = rt.cfg.Worker.BatchSize
		}
		report, err := rt.c.Batch.Run(cmd.Context(), batchProvider, limit)
		if perr := printJSON(cmd, report); perr != nil {
			return perr
		}
		return err
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchProvider, "provider", "", "proveedor: anaf | ksef")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "máximo de facturas (0 = WORKER_BATCH_SIZE)")
	_ = batchCmd.MarkFlagRequired("provider")
	rootCmd.AddCommand(batchCmd)
}
