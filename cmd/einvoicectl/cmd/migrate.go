package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jhoicas/einvoice-gateway/internal/infrastructure/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Aplica las migraciones SQL pendientes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		pool, err := postgres.NewPool(cmd.Context(), cfg.DB)
		if err != nil {
			return err
		}
		defer pool.Close()

		applied, err := postgres.Migrate(cmd.Context(), pool, log.Component("migrate"))
		if err != nil {
			return err
		}
		log.Info().Int("applied", len(applied)).Msg("migraciones al día")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
