package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jhoicas/einvoice-gateway/pkg/jwt"
)

var (
	tokenCompany string
	tokenUser    string
	tokenRole    string
	tokenMinutes int
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Emite un JWT de operador para la API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		switch tokenRole {
		case "admin", "operator", "viewer":
		default:
			return fmt.Errorf("rol %q no válido (admin | operator | viewer)", tokenRole)
		}
		user := tokenUser
		if user == "" {
			user = uuid.NewString()
		}
		minutes := tokenMinutes
		if minutes <= 0 {
			minutes = cfg.JWT.Expiration
		}
		tok, err := jwt.Generate(cfg.JWT.Secret, user, tokenCompany, tokenRole, cfg.JWT.Issuer, minutes)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
		return err
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenCompany, "company", "", "ID de la empresa")
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "ID del usuario (vacío = uuid aleatorio)")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "operator", "rol: admin | operator | viewer")
	tokenCmd.Flags().IntVar(&tokenMinutes, "minutes", 0, "validez en minutos (0 = JWT_EXPIRATION_MINUTES)")
	_ = tokenCmd.MarkFlagRequired("company")
	rootCmd.AddCommand(tokenCmd)
}
