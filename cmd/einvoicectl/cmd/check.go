package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jhoicas/einvoice-gateway/internal/application/submission"
	"github.com/jhoicas/einvoice-gateway/internal/domain/entity"
)

var checkAttempt int

var checkCmd = &cobra.Command{
	Use:   "check <submission-id>",
	Short: "Consulta ahora el estado de un envío en el proveedor",
	Long: `Sin --attempt usa el intento registrado en el envío.
Con --attempt entrega esa unidad tal cual, como haría el worker.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx := cmd.Context()
		var sub *entity.Submission
		if cmd.Flags().Changed("attempt") {
			if err := rt.c.Dispatcher.CheckStatus(ctx, entity.WorkUnit{SubmissionID: args[0], Attempt: checkAttempt}); err != nil {
				return err
			}
			// Releer tras la consulta.
			sub, err = rt.c.Dispatcher.GetSubmission(ctx, args[0])
		} else {
			sub, err = rt.c.Dispatcher.CheckNow(ctx, args[0])
		}
		if err != nil {
			return err
		}
		return printJSON(cmd, submission.ToSubmissionResponse(sub))
	},
}

func init() {
	checkCmd.Flags().IntVar(&checkAttempt, "attempt", 0, "número de intento de la unidad de trabajo")
	rootCmd.AddCommand(checkCmd)
}
