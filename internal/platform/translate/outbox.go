package translate

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinicore/internal/platform/db"
)

const (
	JobPending = "pending"
	JobDone    = "done"
	JobFailed  = "failed"
)

// Job is one queued translation of a record's localized fields.
type Job struct {
	ID           int64     `json:"id"`
	TableName    string    `json:"table_name"`
	RecordID     int64     `json:"record_id"`
	Fields       []string  `json:"fields"`
	SourceLocale string    `json:"source_locale"`
	Status       string    `json:"status"`
	Attempts     int       `json:"attempts"`
	LastError    *string   `json:"last_error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Outbox persists translation jobs. Enqueue joins the caller's transaction
// when one is on the context, so the job and the record mutation commit
// together.
type Outbox interface {
	Enqueue(ctx context.Context, tableName string, recordID int64, fields []string, sourceLocale string) error
	ClaimPending(ctx context.Context, limit int) ([]*Job, error)
	MarkDone(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
}

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type outboxPG struct{ pool *pgxpool.Pool }

func NewOutboxPG(pool *pgxpool.Pool) Outbox { return &outboxPG{pool: pool} }

func (o *outboxPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return o.pool
}

func (o *outboxPG) Enqueue(ctx context.Context, tableName string, recordID int64, fields []string, sourceLocale string) error {
	_, err := o.conn(ctx).Exec(ctx, `
		INSERT INTO translation_jobs (table_name, record_id, fields, source_locale, status, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'pending', 0, NOW(), NOW())`,
		tableName, recordID, fields, sourceLocale)
	if err != nil {
		return fmt.Errorf("enqueue translation job: %w", err)
	}
	return nil
}

func (o *outboxPG) ClaimPending(ctx context.Context, limit int) ([]*Job, error) {
	rows, err := o.conn(ctx).Query(ctx, `
		UPDATE translation_jobs SET attempts = attempts + 1, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM translation_jobs
			WHERE status = 'pending'
			ORDER BY id
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, table_name, record_id, fields, source_locale, status, attempts, last_error, created_at, updated_at`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("claim translation jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.ID, &j.TableName, &j.RecordID, &j.Fields, &j.SourceLocale,
			&j.Status, &j.Attempts, &j.LastError, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan translation job: %w", err)
		}
		jobs = append(jobs, &j)
	}
	return jobs, rows.Err()
}

func (o *outboxPG) MarkDone(ctx context.Context, id int64) error {
	_, err := o.conn(ctx).Exec(ctx,
		`UPDATE translation_jobs SET status = 'done', last_error = NULL, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark job done: %w", err)
	}
	return nil
}

func (o *outboxPG) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := o.conn(ctx).Exec(ctx,
		`UPDATE translation_jobs SET status = 'failed', last_error = $2, updated_at = NOW() WHERE id = $1`, id, errMsg)
	if err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	return nil
}
