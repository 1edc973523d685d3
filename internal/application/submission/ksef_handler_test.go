package submission_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/einvoice-gateway/internal/application/submission"
	domainksef "github.com/jhoicas/einvoice-gateway/internal/domain/ksef"
	"github.com/jhoicas/einvoice-gateway/internal/domain/einvoice"
	"github.com/jhoicas/einvoice-gateway/internal/domain/entity"
	infraksef "github.com/jhoicas/einvoice-gateway/internal/infrastructure/ksef"
)

func plInvoice() *entity.Invoice {
	return &entity.Invoice{
		ID: "inv-pl", CompanyID: "co-pl", CustomerID: "cu-pl",
		Number: "FV/2024/03/001", DocumentType: entity.DocumentTypeInvoice,
		IssueDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), Currency: "PLN",
		Status: entity.InvoiceStatusIssued,
		Company: &entity.Company{
			ID: "co-pl", TaxID: "5260250274", Name: "Przykład Sp. z o.o.", Address: "ul. Prosta 1",
			City: "Warszawa", Country: "PL", EInvoiceProvider: entity.ProviderKSEF,
		},
		Customer: &entity.Customer{
			ID: "cu-pl", IsCompany: true, TaxID: "PL1234563218", Name: "Klient S.A.",
			Address: "ul. Długa 5", City: "Kraków", Country: "PL",
		},
		Lines: []entity.InvoiceLine{{
			Description: "Usługa programistyczna", Quantity: decimal.NewFromInt(2),
			UnitPrice: decimal.RequireFromString("50.00"), UnitOfMeasure: "usł",
			VATRate: decimal.NewFromInt(23),
		}},
		GrandTotal: decimal.RequireFromString("123.00"),
	}
}

type ksefEnv struct {
	store      *memStore
	blobs      *memBlobs
	client     *mockKsef
	dispatcher *submission.Dispatcher
	registry   *submission.Registry
}

func newKsefEnv(cred *entity.Credential) *ksefEnv {
	store := newMemStore(plInvoice())
	invoices := &invoiceRepo{s: store}
	e := &ksefEnv{
		store: store,
		blobs: newMemBlobs(),
		client: &mockKsef{
			InitSessionFn: func(string, string) (string, error) { return "SESSION-1", nil },
			SubmitFn: func([]byte, string) (*einvoice.SubmitResponse, error) {
				return &einvoice.SubmitResponse{Success: true, ExternalID: "E-REF-1"}, nil
			},
			CheckStatusFn: func(string, string) (*einvoice.StatusResponse, error) {
				return &einvoice.StatusResponse{Status: einvoice.StatusPending}, nil
			},
		},
	}
	handler := submission.NewKsefHandler(submission.Deps{
		Validator:   domainksef.NewValidator(),
		Codec:       infraksef.NewFA2Builder(func() time.Time { return fixedNow }),
		Credentials: staticCred(cred),
		Blobs:       e.blobs,
		Tx:          memTx{s: store, invoices: invoices},
		Logger:      zerolog.Nop(),
		Now:         func() time.Time { return fixedNow },
	}, e.client)

	e.registry = submission.NewRegistry()
	e.registry.Register(entity.ProviderKSEF, handler, nil)
	e.dispatcher = submission.NewDispatcher(e.registry, invoices, subRepo{store}, zerolog.Nop())
	return e
}

func apiKeyCred() *entity.Credential {
	return &entity.Credential{Kind: entity.CredentialKindAPIKey, APIKey: "AUTH-TOKEN", TaxID: "5260250274"}
}

func TestKsef_AceptadaEnLaMismaSesion(t *testing.T) {
	e := newKsefEnv(apiKeyCred())
	var gotToken, gotNIP, gotSession string
	e.client.InitSessionFn = func(authToken, taxID string) (string, error) {
		gotToken, gotNIP = authToken, taxID
		return "SESSION-1", nil
	}
	e.client.CheckStatusFn = func(ref, session string) (*einvoice.StatusResponse, error) {
		assert.Equal(t, "E-REF-1", ref)
		gotSession = session
		return &einvoice.StatusResponse{
			Status:   einvoice.StatusAccepted,
			Metadata: map[string]any{entity.MetaKSeFNumber: "5260250274-20240315-ABCDEF-01"},
		}, nil
	}

	sub, err := e.dispatcher.SubmitInvoice(context.Background(), "inv-pl")
	require.NoError(t, err)

	assert.Equal(t, "AUTH-TOKEN", gotToken)
	assert.Equal(t, "5260250274", gotNIP)
	assert.Equal(t, "SESSION-1", gotSession)

	stored := e.store.submission(sub.ID)
	assert.Equal(t, entity.SubmissionStatusAccepted, stored.Status)
	assert.Equal(t, "E-REF-1", stored.ExternalID)
	assert.Equal(t, "5260250274-20240315-ABCDEF-01", stored.Metadata[entity.MetaKSeFNumber])

	inv := e.store.invoice("inv-pl")
	assert.Equal(t, entity.InvoiceStatusValidated, inv.Status)
	assert.Equal(t, "E-REF-1", inv.ProviderUploadID)
	assert.Equal(t, "5260250274-20240315-ABCDEF-01", inv.ProviderDownloadID)
	assert.Equal(t, "5260250274/2024/03/inv-pl.xml", inv.XMLPath)

	assert.Equal(t, 1, e.client.terminates, "la sesión se cierra siempre")
	require.Len(t, e.store.eventList(), 1, "una sola transición persistida por ejecución")
	assert.Equal(t, entity.InvoiceStatusValidated, e.store.eventList()[0].NewStatus)
}

func TestKsef_PendienteYFalloAlCerrarSesion(t *testing.T) {
	e := newKsefEnv(apiKeyCred())
	e.client.TerminateFn = func(string) error { return errors.New("timeout") }

	sub, err := e.dispatcher.SubmitInvoice(context.Background(), "inv-pl")
	require.NoError(t, err, "el cierre de sesión es best-effort")

	assert.Equal(t, entity.SubmissionStatusSubmitted, e.store.submission(sub.ID).Status)
	assert.Equal(t, entity.InvoiceStatusSentToProvider, e.store.invoice("inv-pl").Status)
	assert.Equal(t, 1, e.client.terminates)
}

func TestKsef_RechazoInmediato(t *testing.T) {
	e := newKsefEnv(apiKeyCred())
	e.client.CheckStatusFn = func(string, string) (*einvoice.StatusResponse, error) {
		return &einvoice.StatusResponse{Status: einvoice.StatusRejected, ErrorMessage: "Błąd weryfikacji semantyki"}, nil
	}

	sub, err := e.dispatcher.SubmitInvoice(context.Background(), "inv-pl")
	require.NoError(t, err)

	stored := e.store.submission(sub.ID)
	assert.Equal(t, entity.SubmissionStatusRejected, stored.Status)
	assert.Equal(t, "Błąd weryfikacji semantyki", stored.ErrorMessage)
	assert.Equal(t, entity.InvoiceStatusRejected, e.store.invoice("inv-pl").Status)
}

func TestKsef_FalloAlAbrirSesion(t *testing.T) {
	e := newKsefEnv(apiKeyCred())
	e.client.InitSessionFn = func(string, string) (string, error) {
		return "", &einvoice.ProviderError{Provider: entity.ProviderKSEF, Op: "InitToken", StatusCode: 401, Message: "token"}
	}

	sub, err := e.dispatcher.SubmitInvoice(context.Background(), "inv-pl")
	require.NoError(t, err)

	stored := e.store.submission(sub.ID)
	assert.Equal(t, entity.SubmissionStatusError, stored.Status)
	assert.Contains(t, stored.ErrorMessage, "init session")
	inv := e.store.invoice("inv-pl")
	assert.Equal(t, entity.InvoiceStatusRejected, inv.Status)
	assert.Equal(t, entity.ProviderTagUploadFailed, inv.ProviderStatus)
	assert.Equal(t, 0, e.client.submits)
	assert.Equal(t, 0, e.client.terminates, "sin sesión no hay nada que cerrar")
}

func TestKsef_SinCheckerRegistradoEsNoOp(t *testing.T) {
	e := newKsefEnv(apiKeyCred())
	ctx := context.Background()
	sub, err := e.dispatcher.SubmitInvoice(ctx, "inv-pl")
	require.NoError(t, err)

	_, ok := e.registry.Checker(entity.ProviderKSEF)
	assert.False(t, ok)
	before := e.store.submission(sub.ID)
	require.NoError(t, e.dispatcher.CheckStatus(ctx, entity.WorkUnit{SubmissionID: sub.ID}))
	assert.Equal(t, before, e.store.submission(sub.ID))
}
