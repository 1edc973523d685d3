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

var _ repository.SubmissionRepository = (*SubmissionRepo)(nil)

const submissionColumns = `id, invoice_id, provider, status, external_id, xml_path, error_message,
	metadata, version, created_at, updated_at`

// SubmissionRepo implementación de SubmissionRepository (usable con pool o tx).
type SubmissionRepo struct {
	q Querier
}

// NewSubmissionRepository construye el adaptador. Pasar pool o tx (Querier).
func NewSubmissionRepository(q Querier) *SubmissionRepo {
	return &SubmissionRepo{q: q}
}

// Create inserta el envío.
func (r *SubmissionRepo) Create(ctx context.Context, s *entity.Submission) error {
	meta, err := marshalMeta(s.Metadata)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO einvoice_submissions (` + submissionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = r.q.Exec(ctx, query,
		s.ID, s.InvoiceID, s.Provider, s.Status,
		nullIfEmpty(s.ExternalID), nullIfEmpty(s.XMLPath), nullIfEmpty(s.ErrorMessage),
		meta, s.Version, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("envío %s ya existe: %w", s.ID, domain.ErrConflict)
		}
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// Update compara y asigna sobre (id, version).
func (r *SubmissionRepo) Update(ctx context.Context, s *entity.Submission) error {
	meta, err := marshalMeta(s.Metadata)
	if err != nil {
		return err
	}
	query := `
		UPDATE einvoice_submissions
		SET status        = $3,
		    external_id   = $4,
		    xml_path      = $5,
		    error_message = $6,
		    metadata      = $7,
		    version       = version + 1,
		    updated_at    = $8
		WHERE id = $1 AND version = $2`
	tag, err := r.q.Exec(ctx, query,
		s.ID, s.Version, s.Status,
		nullIfEmpty(s.ExternalID), nullIfEmpty(s.XMLPath), nullIfEmpty(s.ErrorMessage),
		meta, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("envío %s versión %d: %w", s.ID, s.Version, domain.ErrConcurrentUpdate)
	}
	s.Version++
	return nil
}

// GetByID nil, nil si no existe.
func (r *SubmissionRepo) GetByID(ctx context.Context, id string) (*entity.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM einvoice_submissions WHERE id = $1`
	s, err := scanSubmission(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return s, nil
}

// ListByInvoice historial de envíos de la factura, más reciente primero.
func (r *SubmissionRepo) ListByInvoice(ctx context.Context, invoiceID string) ([]*entity.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM einvoice_submissions
		WHERE invoice_id = $1 ORDER BY created_at DESC`
	rows, err := r.q.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var out []*entity.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// FindActiveByInvoice último envío PENDING/SUBMITTED/ACCEPTED, o nil.
func (r *SubmissionRepo) FindActiveByInvoice(ctx context.Context, invoiceID string) (*entity.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM einvoice_submissions
		WHERE invoice_id = $1 AND status IN ($2, $3, $4)
		ORDER BY created_at DESC LIMIT 1`
	s, err := scanSubmission(r.q.QueryRow(ctx, query, invoiceID,
		entity.SubmissionStatusPending, entity.SubmissionStatusSubmitted, entity.SubmissionStatusAccepted))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find active submission: %w", err)
	}
	return s, nil
}

func scanSubmission(row pgx.Row) (*entity.Submission, error) {
	var s entity.Submission
	var externalID, xmlPath, errMsg *string
	var meta []byte
	if err := row.Scan(
		&s.ID, &s.InvoiceID, &s.Provider, &s.Status, &externalID, &xmlPath, &errMsg,
		&meta, &s.Version, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.ExternalID = derefStr(externalID)
	s.XMLPath = derefStr(xmlPath)
	s.ErrorMessage = derefStr(errMsg)
	m, err := unmarshalMeta(meta)
	if err != nil {
		return nil, err
	}
	s.Metadata = m
	return &s, nil
}
