package store

import (
	"context"
	"encoding/json"
	"time"
)

type NotificationStore struct {
	db DB
}

type NotificationInput struct {
	ID        string
	Kind      string
	Recipient string
	Subject   string
	Payload   map[string]any
}

type Notification struct {
	ID        string    `db:"id"`
	Kind      string    `db:"kind"`
	Recipient string    `db:"recipient"`
	Subject   string    `db:"subject"`
	Payload   string    `db:"payload"`
	Attempts  int       `db:"attempts"`
	CreatedAt time.Time `db:"created_at"`
}

func NewNotificationStore(db DB) *NotificationStore {
	return &NotificationStore{db: db}
}

// Enqueue writes a notification job inside tx so it only exists if the
// surrounding state change commits.
func (s *NotificationStore) Enqueue(ctx context.Context, tx Execer, input NotificationInput) error {
	payload, err := json.Marshal(input.Payload)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO notifications (id, kind, recipient, subject, payload)
		VALUES ($1, $2, $3, $4, $5)
	`, input.ID, input.Kind, input.Recipient, input.Subject, string(payload))
	return err
}

// ClaimDue leases up to limit due jobs for lease. Rows locked by another
// worker are skipped, and a crashed worker's lease simply runs out.
func (s *NotificationStore) ClaimDue(ctx context.Context, limit int, lease time.Duration) ([]Notification, error) {
	var rows []Notification
	err := s.db.SelectContext(ctx, &rows, `
		UPDATE notifications
		SET locked_until = NOW() + make_interval(secs => $2), attempts = attempts + 1
		WHERE id IN (
			SELECT id
			FROM notifications
			WHERE sent_at IS NULL
			  AND dead = FALSE
			  AND next_attempt_at <= NOW()
			  AND (locked_until IS NULL OR locked_until < NOW())
			ORDER BY next_attempt_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, kind, recipient, subject, payload, attempts, created_at
	`, limit, lease.Seconds())
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *NotificationStore) MarkSent(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE notifications
		SET sent_at = NOW(), locked_until = NULL, last_error = NULL
		WHERE id = $1
	`, id)
	return err
}

// MarkFailed schedules the next attempt, or parks the job when dead is set.
func (s *NotificationStore) MarkFailed(ctx context.Context, id, lastError string, nextAttempt time.Time, dead bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE notifications
		SET last_error = $2, next_attempt_at = $3, dead = $4, locked_until = NULL
		WHERE id = $1
	`, id, lastError, nextAttempt, dead)
	return err
}
