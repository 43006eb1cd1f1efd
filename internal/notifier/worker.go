package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"marketlink/internal/infra/repository"
	"marketlink/internal/pkg/config"
	"marketlink/internal/usecase/commands"

	"github.com/google/uuid"
)

//go:generate mockgen -source=worker.go -destination=../../tests/mock/notifier/worker_mock.go -package=notifiermock

const topicInvoiceRequested = "invoice_requested"

// JobStore claims and resolves queued notification jobs.
type JobStore interface {
	ClaimBatch(ctx context.Context, db repository.DBTX, limit int) ([]repository.NotificationJob, error)
	MarkDone(ctx context.Context, db repository.DBTX, jobID uuid.UUID) error
	MarkFailed(ctx context.Context, db repository.DBTX, jobID uuid.UUID, lastError string) error
}

// Worker drains the notification_jobs table on a fixed interval. Settlement
// queues an invoice job in the same transaction as the paid transition; the
// worker sends the invoice and moves the order into fulfillment, so a paid
// order never waits on an in-request side effect.
type Worker struct {
	jobs   JobStore
	orders commands.OrderCommands
	db     repository.DBTX
	cfg    config.WorkerConfig

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWorker(jobs JobStore, orders commands.OrderCommands, db repository.DBTX, cfg config.WorkerConfig) *Worker {
	return &Worker{
		jobs:   jobs,
		orders: orders,
		db:     db,
		cfg:    cfg,
	}
}

func (w *Worker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()

	slog.Info("notification worker started",
		"poll_interval", w.cfg.PollInterval,
		"batch_size", w.cfg.BatchSize)
}

func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	slog.Info("notification worker stopped")
}

func (w *Worker) run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain keeps claiming until a batch comes back short, so a backlog clears
// without waiting one tick per batch.
func (w *Worker) drain(ctx context.Context) {
	for {
		jobs, err := w.jobs.ClaimBatch(ctx, w.db, w.cfg.BatchSize)
		if err != nil {
			slog.Error("failed to claim notification jobs", "error", err)
			return
		}
		if len(jobs) == 0 {
			return
		}

		for _, job := range jobs {
			w.process(ctx, job)
		}

		if len(jobs) < w.cfg.BatchSize {
			return
		}
	}
}

func (w *Worker) process(ctx context.Context, job repository.NotificationJob) {
	var err error
	switch job.Topic {
	case topicInvoiceRequested:
		err = w.handleInvoiceRequested(ctx, job)
	default:
		slog.Warn("unknown notification topic", "job_id", job.ID, "topic", job.Topic)
	}

	if err != nil {
		slog.Error("notification job failed", "job_id", job.ID, "topic", job.Topic, "attempts", job.Attempts, "error", err)
		if markErr := w.jobs.MarkFailed(ctx, w.db, job.ID, err.Error()); markErr != nil {
			slog.Error("failed to mark notification job failed", "job_id", job.ID, "error", markErr)
		}
		return
	}

	if markErr := w.jobs.MarkDone(ctx, w.db, job.ID); markErr != nil {
		slog.Error("failed to mark notification job done", "job_id", job.ID, "error", markErr)
	}
}

type invoicePayload struct {
	OrderID uuid.UUID `json:"order_id"`
}

// handleInvoiceRequested emits the invoice signal and advances the order into
// fulfillment. The transition is idempotent, so a job retried after a partial
// run converges instead of erroring.
func (w *Worker) handleInvoiceRequested(ctx context.Context, job repository.NotificationJob) error {
	var p invoicePayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return err
	}

	// Invoice delivery is a log-backed stub; the mail transport sits behind
	// an external collaborator boundary.
	slog.Info("invoice issued", "order_id", p.OrderID, "job_id", job.ID)

	result, err := w.orders.StartFulfillment(ctx, p.OrderID)
	if err != nil {
		// A cancellation racing the invoice wins; the job has nothing left
		// to do.
		if errors.Is(err, commands.ErrInvalidTransition) {
			slog.Warn("fulfillment skipped, order no longer paid", "order_id", p.OrderID)
			return nil
		}
		return err
	}
	if result.AlreadyDone {
		slog.Info("fulfillment already started", "order_id", p.OrderID)
	}

	return nil
}
