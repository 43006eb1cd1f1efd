package repository

import (
	"context"
	"time"

	"marketlink/internal/infra"

	"github.com/google/uuid"
)

type NotificationJob struct {
	ID        uuid.UUID
	Kind      string
	Topic     string
	Payload   []byte
	RunAt     time.Time
	Attempts  int32
	Status    string
	LastError *string
}

// NotificationRepository stores intents for the background notifier (invoice
// mail, fulfillment start). Jobs are written in the same transaction as the
// state change that caused them, so a crash cannot emit a signal for an
// uncommitted transition.
type NotificationRepository struct{}

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{}
}

func (r *NotificationRepository) CreateJob(ctx context.Context, db DBTX, kind, topic string, payload []byte, runAt time.Time) error {
	_, err := db.Exec(ctx, `
		INSERT INTO notification_jobs (id, kind, topic, payload, run_at, status)
		VALUES ($1, $2, $3, $4, $5, 'queued')`,
		uuid.New(), kind, topic, payload, runAt,
	)
	if err != nil {
		return infra.WrapRepoErr("failed to create notification job", err)
	}
	return nil
}

// ClaimBatch marks a batch of due jobs as processing and returns them.
// SKIP LOCKED keeps concurrent workers from double-claiming.
func (r *NotificationRepository) ClaimBatch(ctx context.Context, db DBTX, limit int) ([]NotificationJob, error) {
	rows, err := db.Query(ctx, `
		UPDATE notification_jobs
		SET status = 'processing', attempts = attempts + 1, updated_at = now()
		WHERE id IN (
			SELECT id FROM notification_jobs
			WHERE status = 'queued' AND run_at <= now()
			ORDER BY run_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, kind, topic, payload, run_at, attempts, status, last_error`,
		limit,
	)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to claim notification jobs", err)
	}
	defer rows.Close()

	var jobs []NotificationJob
	for rows.Next() {
		var j NotificationJob
		if err := rows.Scan(&j.ID, &j.Kind, &j.Topic, &j.Payload, &j.RunAt, &j.Attempts, &j.Status, &j.LastError); err != nil {
			return nil, infra.WrapRepoErr("failed to scan notification job", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to read notification jobs", err)
	}

	return jobs, nil
}

func (r *NotificationRepository) MarkDone(ctx context.Context, db DBTX, jobID uuid.UUID) error {
	_, err := db.Exec(ctx, `
		UPDATE notification_jobs SET status = 'done', updated_at = now() WHERE id = $1`, jobID)
	if err != nil {
		return infra.WrapRepoErr("failed to mark notification job done", err)
	}
	return nil
}

func (r *NotificationRepository) MarkFailed(ctx context.Context, db DBTX, jobID uuid.UUID, lastError string) error {
	_, err := db.Exec(ctx, `
		UPDATE notification_jobs SET status = 'failed', last_error = $2, updated_at = now() WHERE id = $1`,
		jobID, lastError)
	if err != nil {
		return infra.WrapRepoErr("failed to mark notification job failed", err)
	}
	return nil
}
