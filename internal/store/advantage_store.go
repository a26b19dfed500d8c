package store

import (
	"context"

	"virtus/internal/models"
)

type AdvantageStore struct {
	db DB
}

type AdvantageFilter struct {
	CompanyID  string
	ActiveOnly bool
}

func NewAdvantageStore(db DB) *AdvantageStore {
	return &AdvantageStore{db: db}
}

const advantageColumns = `
	SELECT a.id, a.company_id, COALESCE(u.name, '') AS company_name, a.name, a.description,
	       a.price, a.photo_url, a.active, a.created_at
	FROM advantages a
	LEFT JOIN users u ON u.id = a.company_id
`

func (s *AdvantageStore) Create(ctx context.Context, tx Execer, adv models.Advantage) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO advantages (id, company_id, name, description, price, photo_url, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, adv.ID, adv.CompanyID, adv.Name, adv.Description, adv.Price, adv.PhotoURL, adv.Active)
	return err
}

func (s *AdvantageStore) GetByID(ctx context.Context, advantageID string) (models.Advantage, error) {
	var row models.Advantage
	err := s.db.GetContext(ctx, &row, advantageColumns+`WHERE a.id = $1`, advantageID)
	return row, err
}

// GetForShare reads the advantage inside tx and blocks concurrent deletes
// and price changes until tx ends.
func (s *AdvantageStore) GetForShare(ctx context.Context, tx Getter, advantageID string) (models.Advantage, error) {
	var row models.Advantage
	err := tx.GetContext(ctx, &row, `
		SELECT id, company_id, name, description, price, photo_url, active, created_at
		FROM advantages
		WHERE id = $1
		FOR SHARE
	`, advantageID)
	return row, err
}

func (s *AdvantageStore) List(ctx context.Context, filter AdvantageFilter) ([]models.Advantage, error) {
	var rows []models.Advantage
	err := s.db.SelectContext(ctx, &rows, advantageColumns+`
		WHERE ($1 = '' OR a.company_id = $1)
		  AND (NOT $2 OR a.active)
		ORDER BY a.created_at DESC
	`, filter.CompanyID, filter.ActiveOnly)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// SetActive flips the active flag of an advantage owned by companyID and
// returns the number of rows changed.
func (s *AdvantageStore) SetActive(ctx context.Context, tx Execer, advantageID, companyID string, active bool) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE advantages
		SET active = $1
		WHERE id = $2 AND company_id = $3
	`, active, advantageID, companyID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdatePrice changes the price only while no voucher references the
// advantage.
func (s *AdvantageStore) UpdatePrice(ctx context.Context, tx Execer, advantageID, companyID string, price int64) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE advantages
		SET price = $1
		WHERE id = $2 AND company_id = $3
		  AND NOT EXISTS (SELECT 1 FROM vouchers v WHERE v.advantage_id = advantages.id)
	`, price, advantageID, companyID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *AdvantageStore) Delete(ctx context.Context, tx Execer, advantageID, companyID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		DELETE FROM advantages
		WHERE id = $1 AND company_id = $2
	`, advantageID, companyID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
