package credentials

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/jhoicas/einvoice-gateway/internal/application/submission"
	"github.com/jhoicas/einvoice-gateway/internal/domain"
	"github.com/jhoicas/einvoice-gateway/internal/domain/entity"
	"github.com/jhoicas/einvoice-gateway/internal/domain/repository"
)

var _ submission.CredentialResolver = (*Resolver)(nil)

const defaultRefreshSkew = 2 * time.Minute

// OAuthConfig endpoint OAuth2 de ANAF para renovar tokens.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
}

// Resolver obtiene la credencial descifrada de una empresa para un proveedor.
// Los tokens OAuth próximos a expirar se renuevan y se vuelven a guardar cifrados;
// renovaciones concurrentes de la misma (empresa, proveedor) se colapsan en una.
type Resolver struct {
	store      repository.CredentialRepository
	sealer     *Sealer
	oauth      *oauth2.Config
	httpClient *http.Client
	group      singleflight.Group
	skew       time.Duration
	now        func() time.Time
	log        zerolog.Logger
}

// Option ajusta el Resolver.
type Option func(*Resolver)

// WithHTTPClient cliente usado para las llamadas al token endpoint.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) { r.httpClient = c }
}

// WithClock reloj inyectable (tests).
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// NewResolver construye el resolver. oauthCfg con TokenURL vacío desactiva la renovación.
func NewResolver(store repository.CredentialRepository, sealer *Sealer, oauthCfg OAuthConfig, log zerolog.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		store:      store,
		sealer:     sealer,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		skew:       defaultRefreshSkew,
		now:        time.Now,
		log:        log,
	}
	if oauthCfg.TokenURL != "" {
		r.oauth = &oauth2.Config{
			ClientID:     oauthCfg.ClientID,
			ClientSecret: oauthCfg.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: oauthCfg.TokenURL, AuthStyle: oauth2.AuthStyleInParams},
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve nil, nil si la empresa no tiene credencial para el proveedor.
func (r *Resolver) Resolve(ctx context.Context, company *entity.Company, provider string) (*entity.Credential, error) {
	if company == nil {
		return nil, fmt.Errorf("resolve credential: %w", domain.ErrInvalidInput)
	}
	provider = strings.ToUpper(provider)
	key := company.ID + "|" + provider
	v, err, _ := r.group.Do(key, func() (any, error) {
		return r.resolve(ctx, company.ID, provider)
	})
	if err != nil {
		return nil, err
	}
	cred, _ := v.(*entity.Credential)
	if cred == nil {
		return nil, nil
	}
	out := *cred
	return &out, nil
}

func (r *Resolver) resolve(ctx context.Context, companyID, provider string) (*entity.Credential, error) {
	stored, err := r.store.Get(ctx, companyID, provider)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, nil
	}
	aad := companyID + "|" + provider

	switch stored.Kind {
	case entity.CredentialKindAPIKey:
		apiKey, err := r.sealer.Open(stored.SealedAPIKey, aad)
		if err != nil {
			return nil, err
		}
		return &entity.Credential{Kind: stored.Kind, APIKey: string(apiKey), TaxID: stored.TaxID}, nil

	case entity.CredentialKindOAuth:
		access, err := r.sealer.Open(stored.SealedAccessToken, aad)
		if err != nil {
			return nil, err
		}
		cred := &entity.Credential{Kind: stored.Kind, AccessToken: string(access), TaxID: stored.TaxID, ExpiresAt: stored.ExpiresAt}
		if !r.needsRefresh(stored) {
			return cred, nil
		}
		return r.refresh(ctx, stored, aad)

	default:
		return nil, fmt.Errorf("tipo de credencial %q no soportado", stored.Kind)
	}
}

func (r *Resolver) needsRefresh(c *entity.StoredCredential) bool {
	if r.oauth == nil || c.ExpiresAt == nil || len(c.SealedRefreshToken) == 0 {
		return false
	}
	return !r.now().Add(r.skew).Before(*c.ExpiresAt)
}

func (r *Resolver) refresh(ctx context.Context, stored *entity.StoredCredential, aad string) (*entity.Credential, error) {
	refresh, err := r.sealer.Open(stored.SealedRefreshToken, aad)
	if err != nil {
		return nil, err
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	tok, err := r.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: string(refresh)}).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("refresh token: %w", domain.ErrRateLimited)
		}
		return nil, fmt.Errorf("refresh token: %w", err)
	}

	if stored.SealedAccessToken, err = r.sealer.Seal([]byte(tok.AccessToken), aad); err != nil {
		return nil, err
	}
	if tok.RefreshToken != "" {
		if stored.SealedRefreshToken, err = r.sealer.Seal([]byte(tok.RefreshToken), aad); err != nil {
			return nil, err
		}
	}
	stored.ExpiresAt = nil
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry.UTC()
		stored.ExpiresAt = &exp
	}
	stored.UpdatedAt = r.now().UTC()
	if err := r.store.UpdateTokens(ctx, stored); err != nil {
		return nil, fmt.Errorf("guardar token renovado: %w", err)
	}
	r.log.Info().Str("company_id", stored.CompanyID).Str("provider", stored.Provider).Msg("token OAuth renovado")

	return &entity.Credential{Kind: stored.Kind, AccessToken: tok.AccessToken, TaxID: stored.TaxID, ExpiresAt: stored.ExpiresAt}, nil
}
