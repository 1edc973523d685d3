package credentials_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/einvoice-gateway/internal/domain"
	"github.com/jhoicas/einvoice-gateway/internal/domain/entity"
	"github.com/jhoicas/einvoice-gateway/internal/infrastructure/credentials"
)

// ═══════════════════════════════════════════════════════════════════════════════
// Fakes
// ═══════════════════════════════════════════════════════════════════════════════

type memCredentials struct {
	mu      sync.Mutex
	rows    map[string]entity.StoredCredential
	updates int
}

func (m *memCredentials) Get(_ context.Context, companyID, provider string) (*entity.StoredCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[companyID+"|"+provider]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *memCredentials) UpdateTokens(_ context.Context, c *entity.StoredCredential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	m.rows[c.CompanyID+"|"+c.Provider] = *c
	return nil
}

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newSealer(t *testing.T) *credentials.Sealer {
	t.Helper()
	s, err := credentials.NewSealer(testKey)
	require.NoError(t, err)
	return s
}

func seal(t *testing.T, s *credentials.Sealer, v, aad string) []byte {
	t.Helper()
	b, err := s.Seal([]byte(v), aad)
	require.NoError(t, err)
	return b
}

var company = &entity.Company{ID: "co-1", TaxID: "RO18547290"}

// ═══════════════════════════════════════════════════════════════════════════════
// Sealer
// ═══════════════════════════════════════════════════════════════════════════════

func TestSealer_RoundTripBoundToAAD(t *testing.T) {
	s := newSealer(t)
	sealed := seal(t, s, "secreto", "co-1|ANAF")

	pt, err := s.Open(sealed, "co-1|ANAF")
	require.NoError(t, err)
	assert.Equal(t, "secreto", string(pt))

	_, err = s.Open(sealed, "co-2|ANAF")
	assert.Error(t, err)
	_, err = s.Open(sealed[:5], "co-1|ANAF")
	assert.Error(t, err)
}

func TestNewSealer_RejectsBadKey(t *testing.T) {
	_, err := credentials.NewSealer([]byte("corta"))
	assert.Error(t, err)
	_, err = credentials.NewSealerFromBase64("%%%")
	assert.Error(t, err)
	_, err = credentials.NewSealerFromBase64("MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=")
	assert.NoError(t, err)
}

// ═══════════════════════════════════════════════════════════════════════════════
// Resolver
// ═══════════════════════════════════════════════════════════════════════════════

func TestResolve_NoCredential(t *testing.T) {
	r := credentials.NewResolver(&memCredentials{rows: map[string]entity.StoredCredential{}},
		newSealer(t), credentials.OAuthConfig{}, zerolog.Nop())

	cred, err := r.Resolve(context.Background(), company, "anaf")
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestResolve_APIKey(t *testing.T) {
	s := newSealer(t)
	store := &memCredentials{rows: map[string]entity.StoredCredential{
		"co-1|KSEF": {ID: "c1", CompanyID: "co-1", Provider: "KSEF", Kind: entity.CredentialKindAPIKey,
			TaxID: "5260250274", SealedAPIKey: seal(t, s, "KSEF-TOKEN", "co-1|KSEF")},
	}}
	r := credentials.NewResolver(store, s, credentials.OAuthConfig{}, zerolog.Nop())

	cred, err := r.Resolve(context.Background(), company, "ksef")
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "KSEF-TOKEN", cred.APIKey)
	assert.Equal(t, "5260250274", cred.TaxID)
}

func TestResolve_OAuthStillValid(t *testing.T) {
	s := newSealer(t)
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	exp := now.Add(time.Hour)
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	store := &memCredentials{rows: map[string]entity.StoredCredential{
		"co-1|ANAF": {ID: "c1", CompanyID: "co-1", Provider: "ANAF", Kind: entity.CredentialKindOAuth,
			SealedAccessToken:  seal(t, s, "AT-1", "co-1|ANAF"),
			SealedRefreshToken: seal(t, s, "RT-1", "co-1|ANAF"),
			ExpiresAt:          &exp},
	}}
	r := credentials.NewResolver(store, s, credentials.OAuthConfig{TokenURL: srv.URL}, zerolog.Nop(),
		credentials.WithClock(func() time.Time { return now }))

	cred, err := r.Resolve(context.Background(), company, "ANAF")
	require.NoError(t, err)
	assert.Equal(t, "AT-1", cred.AccessToken)
	assert.Zero(t, atomic.LoadInt32(&calls))
	assert.Zero(t, store.updates)
}

func TestResolve_OAuthRefreshPersistsTokens(t *testing.T) {
	s := newSealer(t)
	exp := time.Now().Add(30 * time.Second)
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "RT-1", r.PostForm.Get("refresh_token"))
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"AT-2","refresh_token":"RT-2","token_type":"bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	store := &memCredentials{rows: map[string]entity.StoredCredential{
		"co-1|ANAF": {ID: "c1", CompanyID: "co-1", Provider: "ANAF", Kind: entity.CredentialKindOAuth,
			SealedAccessToken:  seal(t, s, "AT-1", "co-1|ANAF"),
			SealedRefreshToken: seal(t, s, "RT-1", "co-1|ANAF"),
			ExpiresAt:          &exp},
	}}
	r := credentials.NewResolver(store, s,
		credentials.OAuthConfig{ClientID: "client-id", ClientSecret: "secret", TokenURL: srv.URL}, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cred, err := r.Resolve(context.Background(), company, "ANAF")
			assert.NoError(t, err)
			if assert.NotNil(t, cred) {
				assert.Equal(t, "AT-2", cred.AccessToken)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, 1, store.updates)

	saved := store.rows["co-1|ANAF"]
	rt, err := s.Open(saved.SealedRefreshToken, "co-1|ANAF")
	require.NoError(t, err)
	assert.Equal(t, "RT-2", string(rt))
	require.NotNil(t, saved.ExpiresAt)
	assert.True(t, saved.ExpiresAt.After(time.Now().Add(50*time.Minute)))
}

func TestResolve_OAuthRefreshRateLimited(t *testing.T) {
	s := newSealer(t)
	exp := time.Now().Add(-time.Minute)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	store := &memCredentials{rows: map[string]entity.StoredCredential{
		"co-1|ANAF": {ID: "c1", CompanyID: "co-1", Provider: "ANAF", Kind: entity.CredentialKindOAuth,
			SealedAccessToken:  seal(t, s, "AT-1", "co-1|ANAF"),
			SealedRefreshToken: seal(t, s, "RT-1", "co-1|ANAF"),
			ExpiresAt:          &exp},
	}}
	r := credentials.NewResolver(store, s, credentials.OAuthConfig{TokenURL: srv.URL}, zerolog.Nop())

	_, err := r.Resolve(context.Background(), company, "ANAF")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Zero(t, store.updates)
}

func TestResolve_UnknownKind(t *testing.T) {
	store := &memCredentials{rows: map[string]entity.StoredCredential{
		"co-1|ANAF": {ID: "c1", CompanyID: "co-1", Provider: "ANAF", Kind: "password"},
	}}
	r := credentials.NewResolver(store, newSealer(t), credentials.OAuthConfig{}, zerolog.Nop())

	_, err := r.Resolve(context.Background(), company, "ANAF")
	assert.Error(t, err)
}
