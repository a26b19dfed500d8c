package store

import (
	"context"
	"database/sql"

	"virtus/internal/models"
)

type UserStore struct {
	db DB
}

func NewUserStore(db DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, tx Execer, user models.User) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO users (id, email, name, kind, password_hash)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.Email, user.Name, user.Kind, user.PasswordHash)
	return err
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var row models.User
	err := s.db.GetContext(ctx, &row, `
		SELECT id, email, name, kind, password_hash, created_at
		FROM users
		WHERE lower(email) = lower($1)
	`, email)
	return row, err
}

func (s *UserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	var row models.User
	err := s.db.GetContext(ctx, &row, `
		SELECT id, email, name, kind, created_at
		FROM users
		WHERE id = $1
	`, userID)
	return row, err
}

// Update writes the user's email and name. An empty PasswordHash keeps the
// stored hash. sql.ErrNoRows is returned when the user does not exist.
func (s *UserStore) Update(ctx context.Context, tx Execer, user models.User) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE users
		SET email = $2, name = $3, password_hash = COALESCE(NULLIF($4, ''), password_hash)
		WHERE id = $1
	`, user.ID, user.Email, user.Name, user.PasswordHash)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
