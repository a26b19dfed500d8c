package store

import (
	"context"
	"database/sql"
	"errors"

	"virtus/internal/models"
)

type PaymentTokenStore struct {
	db DB
}

func NewPaymentTokenStore(db DB) *PaymentTokenStore {
	return &PaymentTokenStore{db: db}
}

const paymentTokenColumns = `id, token, beneficiary_id, amount, applied, applied_at, applied_by,
	revoked_at, expires_at, transaction_id, created_at`

func (s *PaymentTokenStore) Create(ctx context.Context, tx Execer, t models.PaymentToken) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payment_tokens (id, token, beneficiary_id, amount, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, t.ID, t.Token, t.BeneficiaryID, t.Amount, t.ExpiresAt)
	return err
}

// RevokeActive revokes every unapplied token of the beneficiary.
func (s *PaymentTokenStore) RevokeActive(ctx context.Context, tx Execer, beneficiaryID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE payment_tokens
		SET revoked_at = NOW()
		WHERE beneficiary_id = $1 AND applied = FALSE AND revoked_at IS NULL
	`, beneficiaryID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Current returns the newest token of the beneficiary that was neither
// applied nor revoked. It may already be expired.
func (s *PaymentTokenStore) Current(ctx context.Context, beneficiaryID string) (models.PaymentToken, error) {
	var row models.PaymentToken
	err := s.db.GetContext(ctx, &row, `SELECT `+paymentTokenColumns+`
		FROM payment_tokens
		WHERE beneficiary_id = $1 AND applied = FALSE AND revoked_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`, beneficiaryID)
	return row, err
}

func (s *PaymentTokenStore) GetByToken(ctx context.Context, tx Getter, token string) (models.PaymentToken, error) {
	var row models.PaymentToken
	err := tx.GetContext(ctx, &row, `SELECT `+paymentTokenColumns+` FROM payment_tokens WHERE token = $1`, token)
	return row, err
}

// Claim marks a live token applied. ok is false when nothing matched.
func (s *PaymentTokenStore) Claim(ctx context.Context, tx Getter, token, applierID string) (models.PaymentToken, bool, error) {
	var row models.PaymentToken
	err := tx.GetContext(ctx, &row, `
		UPDATE payment_tokens
		SET applied = TRUE, applied_at = NOW(), applied_by = $2
		WHERE token = $1
		  AND applied = FALSE
		  AND revoked_at IS NULL
		  AND (expires_at IS NULL OR expires_at > NOW())
		RETURNING `+paymentTokenColumns, token, applierID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.PaymentToken{}, false, nil
		}
		return models.PaymentToken{}, false, err
	}
	return row, true, nil
}

func (s *PaymentTokenStore) AttachTransaction(ctx context.Context, tx Execer, tokenID, transactionID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payment_tokens
		SET transaction_id = $1
		WHERE id = $2
	`, transactionID, tokenID)
	return err
}

// DeleteExpired removes lapsed tokens that were never applied. Applied
// tokens are kept because transactions reference them.
func (s *PaymentTokenStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM payment_tokens
		WHERE applied = FALSE AND expires_at IS NOT NULL AND expires_at <= NOW()
	`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
