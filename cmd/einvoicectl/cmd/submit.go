package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/jhoicas/einvoice-gateway/internal/application/submission"
	"github.com/jhoicas/einvoice-gateway/internal/domain"
)

var submitCmd = &cobra.Command{
	Use:   "submit <invoice-id>",
	Short: "Envía una factura al proveedor de e-factura de su empresa",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		sub, err := rt.c.Dispatcher.SubmitInvoice(cmd.Context(), args[0])
		if sub != nil {
			if perr := printJSON(cmd, submission.ToSubmissionResponse(sub)); perr != nil {
				return perr
			}
		}
		if errors.Is(err, domain.ErrActiveSubmission) {
			rt.log.Warn().Str("invoice_id", args[0]).Msg("la factura ya tiene un envío activo")
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(submitCmd)
}
