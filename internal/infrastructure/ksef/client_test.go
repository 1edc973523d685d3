package ksef_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/einvoice-gateway/internal/domain"
	"github.com/jhoicas/einvoice-gateway/internal/domain/einvoice"
	"github.com/jhoicas/einvoice-gateway/internal/domain/entity"
	"github.com/jhoicas/einvoice-gateway/internal/infrastructure/ksef"
)

func TestInitSession_FlujoCompleto(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	var decrypted, challengeSent, nipSent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/online/Session/AuthorisationChallenge":
			var body map[string]map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			nipSent = body["contextIdentifier"]["identifier"]
			_, _ = w.Write([]byte(`{"timestamp":"2024-03-15T10:00:00.000Z","challenge":"20240315-CR-ABC"}`))
		case "/online/Session/InitToken":
			raw, _ := io.ReadAll(r.Body)
			doc := etree.NewDocument()
			require.NoError(t, doc.ReadFromBytes(raw))
			challengeSent = doc.FindElement("//Challenge").Text()
			cipher, _ := base64.StdEncoding.DecodeString(doc.FindElement("//Token").Text())
			plain, derr := rsa.DecryptPKCS1v15(rand.Reader, key, cipher)
			require.NoError(t, derr)
			decrypted = string(plain)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"referenceNumber":"S-1","sessionToken":{"token":"SESSION-XYZ"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := ksef.NewClient(ksef.ClientConfig{BaseURL: srv.URL, PublicKey: &key.PublicKey})
	session, err := c.InitSession(context.Background(), "AUTH-TOKEN", "PL526-000-12-46")
	require.NoError(t, err)
	assert.Equal(t, "SESSION-XYZ", session)
	assert.Equal(t, "5260001246", nipSent)
	assert.Equal(t, "20240315-CR-ABC", challengeSent)
	assert.Equal(t, "AUTH-TOKEN|1710496800000", decrypted, "token|timestamp del challenge en milisegundos")
}

func TestSubmit_EnviaHashYCuerpo(t *testing.T) {
	payload := []byte(`<Faktura/>`)
	var got ksef.SendInvoiceRequest
	var gotSession, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSession, gotMethod = r.Header.Get("SessionToken"), r.Method
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"referenceNumber":"S-1","processingCode":100,"processingDescription":"Przyjęto","elementReferenceNumber":"E-REF-1"}`))
	}))
	defer srv.Close()

	resp, err := ksef.NewClient(ksef.ClientConfig{BaseURL: srv.URL}).Submit(context.Background(), payload, "SESSION-XYZ")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "E-REF-1", resp.ExternalID)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "SESSION-XYZ", gotSession)

	sum := sha256.Sum256(payload)
	assert.Equal(t, "SHA-256", got.InvoiceHash.HashSHA.Algorithm)
	assert.Equal(t, base64.StdEncoding.EncodeToString(sum[:]), got.InvoiceHash.HashSHA.Value)
	assert.Equal(t, len(payload), got.InvoiceHash.FileSize)
	assert.Equal(t, "plain", got.InvoicePayload.Type)
	assert.Equal(t, base64.StdEncoding.EncodeToString(payload), got.InvoicePayload.InvoiceBody)
}

func TestSubmit_ExceptionResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"exception":{"exceptionDetailList":[{"exceptionCode":21001,"exceptionDescription":"Nieczytelna treść."}]}}`))
	}))
	defer srv.Close()

	_, err := ksef.NewClient(ksef.ClientConfig{BaseURL: srv.URL}).Submit(context.Background(), []byte("<x/>"), "S")
	var perr *einvoice.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, entity.ProviderKSEF, perr.Provider)
	assert.Equal(t, "21001: Nieczytelna treść.", perr.Message)
	assert.False(t, perr.Transient())
}

func TestCheckStatus_Codigos(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{`{"processingCode":200,"processingDescription":"OK","invoiceStatus":{"ksefReferenceNumber":"5260001246-20240315-ABC"}}`, einvoice.StatusAccepted},
		{`{"processingCode":410,"processingDescription":"Błąd weryfikacji"}`, einvoice.StatusRejected},
		{`{"processingCode":100,"processingDescription":"Przyjęto"}`, einvoice.StatusPending},
	}
	for _, tc := range cases {
		t.Run(tc.want, func(t *testing.T) {
			var gotPath string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			resp, err := ksef.NewClient(ksef.ClientConfig{BaseURL: srv.URL}).CheckStatus(context.Background(), "E-REF-1", "S")
			require.NoError(t, err)
			assert.Equal(t, "/online/Invoice/Status/E-REF-1", gotPath)
			assert.Equal(t, tc.want, resp.Status)
			if tc.want == einvoice.StatusAccepted {
				assert.Equal(t, "5260001246-20240315-ABC", resp.Metadata[entity.MetaKSeFNumber])
			}
			if tc.want == einvoice.StatusRejected {
				assert.True(t, strings.Contains(resp.ErrorMessage, "weryfikacji"))
			}
		})
	}
}

func TestTerminate_429(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := ksef.NewClient(ksef.ClientConfig{BaseURL: srv.URL}).TerminateSession(context.Background(), "S")
	assert.True(t, errors.Is(err, domain.ErrRateLimited))
}
