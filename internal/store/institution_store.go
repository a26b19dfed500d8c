package store

import (
	"context"

	"virtus/internal/models"
)

type InstitutionStore struct {
	db DB
}

// StudentSummary is a row of a professor's student list.
type StudentSummary struct {
	ID      string `db:"id"`
	Name    string `db:"name"`
	Email   string `db:"email"`
	Balance int64  `db:"balance"`
}

func NewInstitutionStore(db DB) *InstitutionStore {
	return &InstitutionStore{db: db}
}

func (s *InstitutionStore) List(ctx context.Context) ([]models.Institution, error) {
	var rows []models.Institution
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, name FROM institutions ORDER BY name`); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *InstitutionStore) Exists(ctx context.Context, institutionID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM institutions WHERE id = $1)`, institutionID)
	return exists, err
}

func (s *InstitutionStore) Link(ctx context.Context, tx Execer, userID, institutionID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO user_institutions (user_id, institution_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, userID, institutionID)
	return err
}

// ShareInstitution reports whether both users are affiliated with at least
// one common institution.
func (s *InstitutionStore) ShareInstitution(ctx context.Context, q Getter, firstUserID, secondUserID string) (bool, error) {
	var shared bool
	err := q.GetContext(ctx, &shared, `
		SELECT EXISTS(
			SELECT 1
			FROM user_institutions a
			JOIN user_institutions b ON b.institution_id = a.institution_id
			WHERE a.user_id = $1 AND b.user_id = $2
		)
	`, firstUserID, secondUserID)
	return shared, err
}

func (s *InstitutionStore) ListStudentsFor(ctx context.Context, professorID string) ([]StudentSummary, error) {
	var rows []StudentSummary
	err := s.db.SelectContext(ctx, &rows, `
		SELECT DISTINCT u.id, u.name, u.email, COALESCE(acc.balance, 0) AS balance
		FROM user_institutions pi
		JOIN user_institutions si ON si.institution_id = pi.institution_id
		JOIN users u ON u.id = si.user_id AND u.kind = 'student'
		LEFT JOIN accounts acc ON acc.user_id = u.id
		WHERE pi.user_id = $1
		ORDER BY u.name
	`, professorID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
