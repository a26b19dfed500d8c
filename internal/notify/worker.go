package notify

import (
	"context"
	"errors"
	"time"

	"virtus/internal/store"

	"github.com/sirupsen/logrus"
)

type Store interface {
	ClaimDue(ctx context.Context, limit int, lease time.Duration) ([]store.Notification, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, lastError string, nextAttempt time.Time, dead bool) error
}

type WorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	Backoff      time.Duration
	Lease        time.Duration
}

// Worker drains the notification outbox. Jobs are committed together with
// the ledger change that caused them, so a failed send never touches
// balances; it is retried with quadratic backoff and parked after
// MaxAttempts.
type Worker struct {
	store  Store
	mailer Mailer
	cfg    WorkerConfig
	log    logrus.FieldLogger
	now    func() time.Time
}

func NewWorker(s Store, mailer Mailer, cfg WorkerConfig, log logrus.FieldLogger) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 30 * time.Second
	}
	if cfg.Lease <= 0 {
		cfg.Lease = time.Minute
	}
	return &Worker{store: s, mailer: mailer, cfg: cfg, log: log, now: time.Now}
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	w.log.WithField("interval", w.cfg.PollInterval.String()).Info("notification worker started")
	for {
		if _, err := w.ProcessBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.log.WithError(err).Error("notification batch failed")
		}
		select {
		case <-ctx.Done():
			w.log.Info("notification worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// ProcessBatch claims and sends one batch and reports how many were sent.
func (w *Worker) ProcessBatch(ctx context.Context) (int, error) {
	jobs, err := w.store.ClaimDue(ctx, w.cfg.BatchSize, w.cfg.Lease)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, job := range jobs {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		if w.deliver(ctx, job) {
			sent++
		}
	}
	return sent, nil
}

func (w *Worker) deliver(ctx context.Context, job store.Notification) bool {
	entry := w.log.WithFields(logrus.Fields{
		"notification_id": job.ID,
		"kind":            job.Kind,
		"attempt":         job.Attempts,
	})
	msg, err := Render(job)
	if err != nil {
		entry.WithError(err).Error("notification cannot be rendered, parking it")
		w.markFailed(ctx, entry, job, err, true)
		return false
	}
	if err := w.mailer.Send(ctx, msg); err != nil {
		dead := job.Attempts >= w.cfg.MaxAttempts
		if dead {
			entry.WithError(err).Error("notification failed permanently")
		} else {
			entry.WithError(err).Warn("notification failed, will retry")
		}
		w.markFailed(ctx, entry, job, err, dead)
		return false
	}
	if err := w.store.MarkSent(ctx, job.ID); err != nil {
		entry.WithError(err).Error("notification sent but not marked")
		return true
	}
	entry.Debug("notification sent")
	return true
}

func (w *Worker) markFailed(ctx context.Context, entry logrus.FieldLogger, job store.Notification, cause error, dead bool) {
	next := w.now().Add(w.backoff(job.Attempts))
	if err := w.store.MarkFailed(ctx, job.ID, cause.Error(), next, dead); err != nil {
		entry.WithError(err).Error("unable to record notification failure")
	}
}

func (w *Worker) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(attempt*attempt) * w.cfg.Backoff
}
