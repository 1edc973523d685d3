package submission_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jhoicas/einvoice-gateway/internal/application/submission"
	"github.com/jhoicas/einvoice-gateway/internal/domain"
	"github.com/jhoicas/einvoice-gateway/internal/domain/einvoice"
	"github.com/jhoicas/einvoice-gateway/internal/domain/entity"
	"github.com/jhoicas/einvoice-gateway/internal/domain/repository"
)

// ═══════════════════════════════════════════════════════════════════════════
// memStore: repositorios en memoria con las mismas comparaciones que postgres
// ═══════════════════════════════════════════════════════════════════════════

type memStore struct {
	mu       sync.Mutex
	subs     map[string]entity.Submission
	invoices map[string]entity.Invoice
	events   []entity.DocumentEvent
}

func newMemStore(invs ...*entity.Invoice) *memStore {
	s := &memStore{subs: map[string]entity.Submission{}, invoices: map[string]entity.Invoice{}}
	for _, inv := range invs {
		s.invoices[inv.ID] = *inv
	}
	return s
}

func copyMeta(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) submission(id string) entity.Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs[id]
}

func (s *memStore) invoice(id string) entity.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invoices[id]
}

func (s *memStore) eventList() []entity.DocumentEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.DocumentEvent(nil), s.events...)
}

type subRepo struct{ s *memStore }

var _ repository.SubmissionRepository = subRepo{}

func (r subRepo) Create(_ context.Context, sub *entity.Submission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.subs[sub.ID]; ok {
		return domain.ErrConflict
	}
	cp := *sub
	cp.Metadata = copyMeta(sub.Metadata)
	r.s.subs[sub.ID] = cp
	return nil
}

func (r subRepo) Update(_ context.Context, sub *entity.Submission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.subs[sub.ID]
	if !ok || cur.Version != sub.Version {
		return domain.ErrConcurrentUpdate
	}
	sub.Version++
	cp := *sub
	cp.Metadata = copyMeta(sub.Metadata)
	r.s.subs[sub.ID] = cp
	return nil
}

func (r subRepo) GetByID(_ context.Context, id string) (*entity.Submission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.subs[id]
	if !ok {
		return nil, nil
	}
	cur.Metadata = copyMeta(cur.Metadata)
	return &cur, nil
}

func (r subRepo) ListByInvoice(_ context.Context, invoiceID string) ([]*entity.Submission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Submission
	for _, sub := range r.s.subs {
		if sub.InvoiceID == invoiceID {
			cp := sub
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r subRepo) FindActiveByInvoice(_ context.Context, invoiceID string) (*entity.Submission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sub := range r.s.subs {
		if sub.InvoiceID == invoiceID && sub.IsActive() {
			cp := sub
			return &cp, nil
		}
	}
	return nil, nil
}

type invoiceRepo struct {
	s         *memStore
	scheduled []*entity.Invoice
}

var _ repository.InvoiceRepository = (*invoiceRepo)(nil)

func (r *invoiceRepo) GetByID(_ context.Context, id string) (*entity.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invoices[id]
	if !ok {
		return nil, nil
	}
	return &inv, nil
}

func (r *invoiceRepo) UpdateProviderState(_ context.Context, inv *entity.Invoice, expected string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.invoices[inv.ID]
	if !ok || cur.Status != expected {
		return domain.ErrConcurrentUpdate
	}
	r.s.invoices[inv.ID] = *inv
	return nil
}

func (r *invoiceRepo) UpdateXMLPath(_ context.Context, id, path string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.invoices[id]
	if !ok {
		return domain.ErrNotFound
	}
	cur.XMLPath = path
	r.s.invoices[id] = cur
	return nil
}

func (r *invoiceRepo) FindScheduledForSubmission(_ context.Context, _ string, limit int) ([]*entity.Invoice, error) {
	if limit > 0 && len(r.scheduled) > limit {
		return r.scheduled[:limit], nil
	}
	return r.scheduled, nil
}

type eventRepo struct{ s *memStore }

func (r eventRepo) Append(_ context.Context, ev *entity.DocumentEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.events = append(r.s.events, *ev)
	return nil
}

func (r eventRepo) ListByInvoice(_ context.Context, invoiceID string) ([]*entity.DocumentEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.DocumentEvent
	for i := range r.s.events {
		if r.s.events[i].InvoiceID == invoiceID {
			out = append(out, &r.s.events[i])
		}
	}
	return out, nil
}

// memTx deshace los cambios si fn falla.
type memTx struct {
	s        *memStore
	invoices *invoiceRepo
}

func (t memTx) RunSubmission(ctx context.Context, fn func(
	repository.SubmissionRepository, repository.InvoiceRepository, repository.DocumentEventRepository,
) error) error {
	t.s.mu.Lock()
	subs := make(map[string]entity.Submission, len(t.s.subs))
	for k, v := range t.s.subs {
		subs[k] = v
	}
	invs := make(map[string]entity.Invoice, len(t.s.invoices))
	for k, v := range t.s.invoices {
		invs[k] = v
	}
	nEvents := len(t.s.events)
	t.s.mu.Unlock()

	if err := fn(subRepo{t.s}, t.invoices, eventRepo{t.s}); err != nil {
		t.s.mu.Lock()
		t.s.subs, t.s.invoices, t.s.events = subs, invs, t.s.events[:nEvents]
		t.s.mu.Unlock()
		return err
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Colaboradores externos
// ═══════════════════════════════════════════════════════════════════════════

type memBlobs struct {
	mu     sync.Mutex
	data   map[string][]byte
	writes int
	reads  int
}

func newMemBlobs() *memBlobs { return &memBlobs{data: map[string][]byte{}} }

func (b *memBlobs) Write(_ context.Context, path string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes++
	b.data[path] = append([]byte(nil), data...)
	return nil
}

func (b *memBlobs) Read(_ context.Context, path string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reads++
	d, ok := b.data[path]
	if !ok {
		return nil, errors.New("no existe")
	}
	return d, nil
}

type scheduled struct {
	delay time.Duration
	unit  entity.WorkUnit
}

type recordingScheduler struct {
	mu    sync.Mutex
	calls []scheduled
}

func (s *recordingScheduler) ScheduleAfter(_ context.Context, delay time.Duration, unit entity.WorkUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, scheduled{delay: delay, unit: unit})
	return nil
}

func (s *recordingScheduler) last() scheduled {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[len(s.calls)-1]
}

type credResolver struct {
	ResolveFn func(company *entity.Company, provider string) (*entity.Credential, error)
}

func (c credResolver) Resolve(_ context.Context, company *entity.Company, provider string) (*entity.Credential, error) {
	return c.ResolveFn(company, provider)
}

func staticCred(cred *entity.Credential) credResolver {
	return credResolver{ResolveFn: func(*entity.Company, string) (*entity.Credential, error) { return cred, nil }}
}

// mockAnaf mock con funciones por campo; cuenta llamadas.
type mockAnaf struct {
	UploadFn      func(xml []byte, taxID, token string) (*einvoice.SubmitResponse, error)
	CheckStatusFn func(uploadID, token string) (*einvoice.StatusResponse, error)
	uploads       int
	checks        int
}

var _ submission.AnafClient = (*mockAnaf)(nil)

func (m *mockAnaf) Upload(_ context.Context, xml []byte, taxID, token string) (*einvoice.SubmitResponse, error) {
	m.uploads++
	return m.UploadFn(xml, taxID, token)
}

func (m *mockAnaf) CheckStatus(_ context.Context, uploadID, token string) (*einvoice.StatusResponse, error) {
	m.checks++
	return m.CheckStatusFn(uploadID, token)
}

type mockKsef struct {
	InitSessionFn func(authToken, taxID string) (string, error)
	SubmitFn      func(xml []byte, session string) (*einvoice.SubmitResponse, error)
	CheckStatusFn func(ref, session string) (*einvoice.StatusResponse, error)
	TerminateFn   func(session string) error
	submits       int
	terminates    int
}

var _ submission.KsefClient = (*mockKsef)(nil)

func (m *mockKsef) InitSession(_ context.Context, authToken, taxID string) (string, error) {
	return m.InitSessionFn(authToken, taxID)
}

func (m *mockKsef) Submit(_ context.Context, xml []byte, session string) (*einvoice.SubmitResponse, error) {
	m.submits++
	return m.SubmitFn(xml, session)
}

func (m *mockKsef) CheckStatus(_ context.Context, ref, session string) (*einvoice.StatusResponse, error) {
	return m.CheckStatusFn(ref, session)
}

func (m *mockKsef) TerminateSession(_ context.Context, session string) error {
	m.terminates++
	if m.TerminateFn == nil {
		return nil
	}
	return m.TerminateFn(session)
}
