package repository

import (
	"context"

	"github.com/jhoicas/einvoice-gateway/internal/domain/entity"
)

// CredentialRepository credenciales cifradas por (empresa, proveedor).
type CredentialRepository interface {
	// Get nil, nil si la empresa no tiene credencial para el proveedor.
	Get(ctx context.Context, companyID, provider string) (*entity.StoredCredential, error)
	UpdateTokens(ctx context.Context, c *entity.StoredCredential) error
}
