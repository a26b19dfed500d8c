package store

import (
	"context"
	"database/sql"
	"errors"

	"virtus/internal/models"
)

type VoucherStore struct {
	db DB
}

func NewVoucherStore(db DB) *VoucherStore {
	return &VoucherStore{db: db}
}

const voucherColumns = `id, code, student_id, student_name, student_email, advantage_id, company_id,
	advantage_name, advantage_description, advantage_photo_url, price, transaction_id,
	issued_at, consumed, consumed_at, consumed_by`

func (s *VoucherStore) Create(ctx context.Context, tx Execer, v models.Voucher) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO vouchers (id, code, student_id, student_name, student_email, advantage_id, company_id,
			advantage_name, advantage_description, advantage_photo_url, price, transaction_id, issued_at, consumed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, FALSE)
	`, v.ID, v.Code, v.StudentID, v.StudentName, v.StudentEmail, v.AdvantageID, v.CompanyID,
		v.AdvantageName, v.AdvantageDescription, v.AdvantagePhotoURL, v.Price, v.TransactionID, v.IssuedAt)
	return err
}

// Get looks a voucher up by id or by code.
func (s *VoucherStore) Get(ctx context.Context, identifier string) (models.Voucher, error) {
	return s.GetTx(ctx, s.db, identifier)
}

func (s *VoucherStore) GetTx(ctx context.Context, tx Getter, identifier string) (models.Voucher, error) {
	var row models.Voucher
	err := tx.GetContext(ctx, &row, `SELECT `+voucherColumns+` FROM vouchers WHERE id = $1 OR code = $1`, identifier)
	return row, err
}

// ListByStudent returns the student's vouchers, newest first. A nil consumed
// returns both states.
func (s *VoucherStore) ListByStudent(ctx context.Context, studentID string, consumed *bool) ([]models.Voucher, error) {
	var rows []models.Voucher
	err := s.db.SelectContext(ctx, &rows, `SELECT `+voucherColumns+`
		FROM vouchers
		WHERE student_id = $1 AND ($2::boolean IS NULL OR consumed = $2)
		ORDER BY issued_at DESC
	`, studentID, consumed)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Consume flips consumed from false to true in one statement. ok is false
// when no unconsumed voucher matched, either because it does not exist or
// because another caller consumed it first.
func (s *VoucherStore) Consume(ctx context.Context, tx Getter, identifier, consumedBy string) (models.Voucher, bool, error) {
	var row models.Voucher
	err := tx.GetContext(ctx, &row, `
		UPDATE vouchers
		SET consumed = TRUE, consumed_at = NOW(), consumed_by = $2
		WHERE (id = $1 OR code = $1) AND consumed = FALSE
		RETURNING `+voucherColumns, identifier, consumedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Voucher{}, false, nil
		}
		return models.Voucher{}, false, err
	}
	return row, true, nil
}
