// CLAUDE:SUMMARY SQLite visibility-timeout queue for enrichment jobs: publish, claim, ack, nack, polling consumer loop.
// Package enrich runs the enrichment queue and its consumer.
//
// The queue is plain SQLite with visibility-timeout semantics: a claimed job
// is invisible for a configurable duration; a consumer that crashes or stalls
// lets the job reappear for another instance. No external broker. Delivery is
// at-least-once.
package enrich

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

// queueSchema holds pending enrichment jobs. Timestamps are milliseconds.
const queueSchema = `
CREATE TABLE IF NOT EXISTS enrich_jobs (
    id          TEXT PRIMARY KEY,
    payload     BLOB,
    visible_at  INTEGER NOT NULL DEFAULT 0,
    created_at  INTEGER NOT NULL,
    attempts    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_enrich_jobs_visible ON enrich_jobs (visible_at);
`

// QueueOptions configures queue behaviour.
type QueueOptions struct {
	// Visibility is how long a claimed job stays invisible. Default: 30s.
	Visibility time.Duration
	// PollInterval is the delay between claim attempts in Run. Default: 1s.
	PollInterval time.Duration
	// MaxAttempts discards jobs redelivered more than this many times.
	// 0 means unlimited. Default: 10.
	MaxAttempts int
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *QueueOptions) defaults() {
	if o.Visibility <= 0 {
		o.Visibility = 30 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.MaxAttempts == 0 {
		o.MaxAttempts = 10
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Queue is the enrichment job queue handle.
type Queue struct {
	db   *sql.DB
	opts QueueOptions
}

// NewQueue creates a queue handle. Call EnsureTable once at startup.
func NewQueue(db *sql.DB, opts QueueOptions) *Queue {
	opts.defaults()
	return &Queue{db: db, opts: opts}
}

// EnsureTable creates the enrich_jobs table and index if absent.
func (q *Queue) EnsureTable(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, queueSchema)
	return err
}

// Publish inserts a job that is immediately visible.
func (q *Queue) Publish(ctx context.Context, job *Job) error {
	now := time.Now().UnixMilli()
	if job.EnqueuedAt == 0 {
		job.EnqueuedAt = now
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO enrich_jobs (id, payload, visible_at, created_at) VALUES (?,?,?,?)`,
		job.ID, payload, now, now)
	return err
}

// Claim atomically picks the oldest visible job, hides it for the visibility
// window, and returns it with Attempt set to the delivery count. Returns
// nil, nil when nothing is visible.
func (q *Queue) Claim(ctx context.Context) (*Job, error) {
	now := time.Now()
	hideUntil := now.Add(q.opts.Visibility).UnixMilli()

	row := q.db.QueryRowContext(ctx, `
		UPDATE enrich_jobs
		SET visible_at = ?, attempts = attempts + 1
		WHERE id = (
			SELECT id FROM enrich_jobs
			WHERE visible_at <= ?
			ORDER BY visible_at ASC
			LIMIT 1
		)
		RETURNING id, payload, attempts`,
		hideUntil, now.UnixMilli())

	var id string
	var payload []byte
	var attempts int
	err := row.Scan(&id, &payload, &attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var job Job
	if err := json.Unmarshal(payload, &job); err != nil {
		// Poison payload: drop it rather than redeliver forever.
		q.opts.Logger.Warn("enrich: undecodable job payload, discarding", "id", id, "error", err)
		_ = q.Ack(ctx, id)
		return nil, nil
	}
	job.ID = id
	job.Attempt = attempts
	return &job, nil
}

// Ack deletes a processed job.
func (q *Queue) Ack(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM enrich_jobs WHERE id = ?`, id)
	return err
}

// Nack makes a job immediately visible again for redelivery.
func (q *Queue) Nack(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, `UPDATE enrich_jobs SET visible_at = 0 WHERE id = ?`, id)
	return err
}

// Len returns the total number of jobs, visible and claimed.
func (q *Queue) Len(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM enrich_jobs`).Scan(&n)
	return n, err
}

// Handler processes a claimed job. Return nil to ack, non-nil to nack.
type Handler func(ctx context.Context, job *Job) error

// Run polls for visible jobs and dispatches them to handler. Blocks until
// ctx is cancelled.
func (q *Queue) Run(ctx context.Context, handler Handler) {
	log := q.opts.Logger
	log.Info("enrich: consumer started",
		"visibility", q.opts.Visibility, "poll", q.opts.PollInterval)

	ticker := time.NewTicker(q.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("enrich: consumer stopped")
			return
		case <-ticker.C:
			q.drain(ctx, handler, log)
		}
	}
}

func (q *Queue) drain(ctx context.Context, handler Handler, log *slog.Logger) {
	for {
		job, err := q.Claim(ctx)
		if err != nil {
			log.Warn("enrich: claim failed", "error", err)
			return
		}
		if job == nil {
			return
		}

		if q.opts.MaxAttempts > 0 && job.Attempt > q.opts.MaxAttempts {
			log.Warn("enrich: job exceeded max attempts, discarding",
				"id", job.ID, "attempts", job.Attempt)
			_ = q.Ack(ctx, job.ID)
			continue
		}

		if err := handler(ctx, job); err != nil {
			log.Warn("enrich: handler failed, nacking", "id", job.ID, "error", err)
			_ = q.Nack(ctx, job.ID)
		} else {
			_ = q.Ack(ctx, job.ID)
		}
	}
}
