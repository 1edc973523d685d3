package submission_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/einvoice-gateway/internal/application/submission"
	"github.com/jhoicas/einvoice-gateway/internal/domain"
	"github.com/jhoicas/einvoice-gateway/internal/domain/einvoice"
	"github.com/jhoicas/einvoice-gateway/internal/domain/entity"
)

func newService(e *anafEnv) *submission.Service {
	return submission.NewService(e.dispatcher, e.invoices, subRepo{e.store}, eventRepo{e.store})
}

func TestService_SubmitYHistorial(t *testing.T) {
	e := newAnafEnv(roInvoice(), oauthCred())
	svc := newService(e)
	ctx := context.Background()

	sub, err := svc.Submit(ctx, "co-1", "inv-1")
	require.NoError(t, err)
	assert.Equal(t, entity.SubmissionStatusSubmitted, sub.Status)
	assert.Equal(t, "UP-1", sub.ExternalID)

	hist, err := svc.History(ctx, "co-1", "inv-1")
	require.NoError(t, err)
	assert.Equal(t, entity.InvoiceStatusSentToProvider, hist.Status)
	assert.Equal(t, entity.ProviderTagUploaded, hist.ProviderStatus)
	require.Len(t, hist.Submissions, 1)
	assert.Equal(t, sub.ID, hist.Submissions[0].ID)
	require.Len(t, hist.Events, 1)
	assert.Equal(t, entity.InvoiceStatusIssued, hist.Events[0].PreviousStatus)
	assert.Equal(t, entity.InvoiceStatusSentToProvider, hist.Events[0].NewStatus)
}

func TestService_OtraEmpresaNoAccede(t *testing.T) {
	e := newAnafEnv(roInvoice(), oauthCred())
	svc := newService(e)
	ctx := context.Background()

	_, err := svc.Submit(ctx, "co-2", "inv-1")
	assert.True(t, errors.Is(err, domain.ErrForbidden))
	assert.Zero(t, e.client.uploads)

	sub, err := svc.Submit(ctx, "co-1", "inv-1")
	require.NoError(t, err)
	_, err = svc.Get(ctx, "co-2", sub.ID)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
	_, err = svc.Check(ctx, "co-2", sub.ID)
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	_, err = svc.Get(ctx, "co-1", "no-existe")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestService_EnvioActivoDevuelveElExistente(t *testing.T) {
	e := newAnafEnv(roInvoice(), oauthCred())
	svc := newService(e)
	ctx := context.Background()

	first, err := svc.Submit(ctx, "co-1", "inv-1")
	require.NoError(t, err)

	again, err := svc.Submit(ctx, "co-1", "inv-1")
	assert.True(t, errors.Is(err, domain.ErrActiveSubmission))
	require.NotNil(t, again)
	assert.Equal(t, first.ID, again.ID)
}

func TestService_CheckAceptada(t *testing.T) {
	e := newAnafEnv(roInvoice(), oauthCred())
	svc := newService(e)
	ctx := context.Background()
	sub, err := svc.Submit(ctx, "co-1", "inv-1")
	require.NoError(t, err)

	e.client.CheckStatusFn = func(string, string) (*einvoice.StatusResponse, error) {
		return &einvoice.StatusResponse{Status: einvoice.StatusAccepted, Metadata: map[string]any{"download_id": "DL-9"}}, nil
	}
	got, err := svc.Check(ctx, "co-1", sub.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.SubmissionStatusAccepted, got.Status)
	assert.Equal(t, entity.InvoiceStatusValidated, e.store.invoice("inv-1").Status)
}
