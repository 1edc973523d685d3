package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/einvoice-gateway/internal/application/submission"
	"github.com/jhoicas/einvoice-gateway/internal/domain/entity"
)

var (
	_ submission.Scheduler = (*JobStore)(nil)
	_ submission.JobQueue  = (*JobStore)(nil)
)

// JobStore cola persistente de consultas de estado diferidas (tabla status_check_jobs).
// Un trabajo reclamado y no completado vuelve a estar disponible cuando vence su lease.
type JobStore struct {
	q   Querier
	now func() time.Time
}

// NewJobStore construye la cola sobre pool o tx.
func NewJobStore(q Querier) *JobStore {
	return &JobStore{q: q, now: time.Now}
}

// ScheduleAfter programa la unidad; repetir la misma (submission, attempt) no duplica.
func (s *JobStore) ScheduleAfter(ctx context.Context, delay time.Duration, unit entity.WorkUnit) error {
	query := `
		INSERT INTO status_check_jobs (submission_id, attempt, run_at, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (submission_id, attempt) DO NOTHING`
	now := s.now().UTC()
	if _, err := s.q.Exec(ctx, query, unit.SubmissionID, unit.Attempt, now.Add(delay), now); err != nil {
		return fmt.Errorf("schedule status check: %w", err)
	}
	return nil
}

// Claim toma hasta limit trabajos vencidos y los reserva durante lease.
func (s *JobStore) Claim(ctx context.Context, limit int, lease time.Duration) ([]entity.WorkUnit, error) {
	query := `
		UPDATE status_check_jobs j
		SET lease_until = $2
		FROM (
			SELECT submission_id, attempt
			FROM status_check_jobs
			WHERE run_at <= $1 AND (lease_until IS NULL OR lease_until < $1)
			ORDER BY run_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		) due
		WHERE j.submission_id = due.submission_id AND j.attempt = due.attempt
		RETURNING j.submission_id, j.attempt`
	now := s.now().UTC()
	rows, err := s.q.Query(ctx, query, now, now.Add(lease), limit)
	if err != nil {
		return nil, fmt.Errorf("claim status checks: %w", err)
	}
	defer rows.Close()

	var out []entity.WorkUnit
	for rows.Next() {
		var u entity.WorkUnit
		if err := rows.Scan(&u.SubmissionID, &u.Attempt); err != nil {
			return nil, fmt.Errorf("scan status check: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Complete borra el trabajo procesado.
func (s *JobStore) Complete(ctx context.Context, unit entity.WorkUnit) error {
	query := `DELETE FROM status_check_jobs WHERE submission_id = $1 AND attempt = $2`
	if _, err := s.q.Exec(ctx, query, unit.SubmissionID, unit.Attempt); err != nil {
		return fmt.Errorf("complete status check: %w", err)
	}
	return nil
}
