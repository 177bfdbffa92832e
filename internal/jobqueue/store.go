package jobqueue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a job row. There is no "succeeded"
// status: a successful handler invocation deletes the row outright.
type Status string

const (
	StatusPending Status = "pending"
	StatusFailed  Status = "failed"
)

// Job is a durable row read back from the jobs table.
type Job struct {
	ID          uuid.UUID
	Fingerprint Fingerprint
	Payload     Payload
	Status      Status
	Attempts    int
	CreatedAt   time.Time
}

// ErrAlreadyEnqueued describes a job whose fingerprint already exists.
// Enqueue does not return it: a duplicate is reported through Enqueue's
// false bool with a nil error.
var ErrAlreadyEnqueued = errors.New("job already enqueued")

// Store is the durable job queue, backed by a jobs table with a unique
// fingerprint column and row-level locking for claims. It is safe for
// concurrent use by multiple workers/processes: claim serialization is
// provided entirely by the database (FOR UPDATE SKIP LOCKED), not by
// any in-process lock.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle as a Store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Enqueue inserts a new pending job for payload, or silently returns the
// id of the existing row if one with the same fingerprint already
// exists. The bool return reports whether a new row was inserted.
func (s *Store) Enqueue(ctx context.Context, payload Payload) (uuid.UUID, bool, error) {
	fp, err := ComputeFingerprint(payload)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("compute fingerprint: %w", err)
	}

	data, err := payload.Marshal()
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("marshal payload: %w", err)
	}

	id := uuid.New()
	var insertedID uuid.UUID
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO jobs (id, fingerprint, data, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, 0, now())
		ON CONFLICT (fingerprint) DO NOTHING
		RETURNING id`,
		id, fp[:], data, StatusPending,
	).Scan(&insertedID)

	if err == nil {
		return insertedID, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, false, fmt.Errorf("insert job: %w", err)
	}

	// Row already existed under this fingerprint: look it up.
	existingID, lookupErr := s.findIDByFingerprint(ctx, fp)
	if lookupErr != nil {
		return uuid.Nil, false, lookupErr
	}
	return existingID, false, nil
}

func (s *Store) findIDByFingerprint(ctx context.Context, fp Fingerprint) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM jobs WHERE fingerprint = $1`, fp[:],
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("find job by fingerprint: %w", err)
	}
	return id, nil
}

// ClaimBatch opens a transaction, claims up to n pending jobs with
// FOR UPDATE SKIP LOCKED, and returns them alongside the transaction so
// the caller can increment/fail/delete each row and commit within the
// same transaction the lock was acquired under. If the caller does not
// commit, the locks are released on rollback and the jobs become
// claimable again (at-least-once delivery).
func (s *Store) ClaimBatch(ctx context.Context, n int) (*sql.Tx, []Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin claim transaction: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, fingerprint, data, status, attempts, created_at
		FROM jobs
		WHERE status = $1
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT $2`,
		StatusPending, n,
	)
	if err != nil {
		tx.Rollback()
		return nil, nil, fmt.Errorf("claim batch: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var (
			j       Job
			fp      []byte
			data    []byte
		)
		if err := rows.Scan(&j.ID, &fp, &data, &j.Status, &j.Attempts, &j.CreatedAt); err != nil {
			tx.Rollback()
			return nil, nil, fmt.Errorf("scan claimed job: %w", err)
		}
		copy(j.Fingerprint[:], fp)

		payload, err := Unmarshal(data)
		if err != nil {
			tx.Rollback()
			return nil, nil, fmt.Errorf("decode claimed job %s: %w", j.ID, err)
		}
		j.Payload = payload
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		tx.Rollback()
		return nil, nil, fmt.Errorf("iterate claimed jobs: %w", err)
	}

	return tx, jobs, nil
}

// IncrementAttempts bumps a claimed job's attempt count within tx.
func (s *Store) IncrementAttempts(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE jobs SET attempts = attempts + 1 WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("increment attempts for job %s: %w", id, err)
	}
	return nil
}

// MarkFailed sets a claimed job's status to failed within tx, leaving
// the row for observability instead of deleting it.
func (s *Store) MarkFailed(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE jobs SET status = $2 WHERE id = $1`, id, StatusFailed,
	)
	if err != nil {
		return fmt.Errorf("mark job %s failed: %w", id, err)
	}
	return nil
}

// Delete removes a claimed job row within tx on handler success.
func (s *Store) Delete(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	return nil
}
