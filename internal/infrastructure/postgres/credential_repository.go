package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/einvoice-gateway/internal/domain"
	"github.com/jhoicas/einvoice-gateway/internal/domain/entity"
	"github.com/jhoicas/einvoice-gateway/internal/domain/repository"
)

var _ repository.CredentialRepository = (*CredentialRepo)(nil)

// CredentialRepo credenciales cifradas por (empresa, proveedor).
type CredentialRepo struct {
	q Querier
}

// NewCredentialRepository construye el adaptador.
func NewCredentialRepository(q Querier) *CredentialRepo {
	return &CredentialRepo{q: q}
}

func (r *CredentialRepo) Get(ctx context.Context, companyID, provider string) (*entity.StoredCredential, error) {
	query := `
		SELECT id, company_id, provider, kind, tax_id,
		       sealed_access_token, sealed_refresh_token, sealed_api_key, expires_at, updated_at
		FROM einvoice_credentials
		WHERE company_id = $1 AND provider = UPPER($2)`
	var c entity.StoredCredential
	var taxID *string
	err := r.q.QueryRow(ctx, query, companyID, provider).Scan(
		&c.ID, &c.CompanyID, &c.Provider, &c.Kind, &taxID,
		&c.SealedAccessToken, &c.SealedRefreshToken, &c.SealedAPIKey, &c.ExpiresAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}
	c.TaxID = derefStr(taxID)
	return &c, nil
}

// UpdateTokens guarda el access/refresh token renovado.
func (r *CredentialRepo) UpdateTokens(ctx context.Context, c *entity.StoredCredential) error {
	query := `
		UPDATE einvoice_credentials
		SET sealed_access_token = $2, sealed_refresh_token = $3, expires_at = $4, updated_at = $5
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query, c.ID, c.SealedAccessToken, c.SealedRefreshToken, c.ExpiresAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update credential tokens: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
