package store

import (
	"context"

	"virtus/internal/models"
)

type AccountStore struct {
	db DB
}

// AccountBalanceSummary compares the stored balance with the ledger sum.
type AccountBalanceSummary struct {
	ID                string  `db:"id"`
	UserID            *string `db:"user_id"`
	OwnerKind         string  `db:"owner_kind"`
	StoredBalance     int64   `db:"stored_balance"`
	CalculatedBalance int64   `db:"calculated_balance"`
	Difference        int64   `db:"difference"`
}

type AccountWithUser struct {
	ID        string  `db:"id"`
	OwnerKind string  `db:"owner_kind"`
	Balance   int64   `db:"balance"`
	IsSystem  bool    `db:"is_system"`
	Name      *string `db:"name"`
	Email     *string `db:"email"`
}

const SystemAccountID = "system"

func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) Create(ctx context.Context, tx Execer, id string, userID *string, ownerKind string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (id, user_id, owner_kind, balance, is_system)
		VALUES ($1, $2, $3, 0, FALSE)
	`, id, userID, ownerKind)
	return err
}

func (s *AccountStore) GetByUser(ctx context.Context, userID string) (models.Account, error) {
	var row models.Account
	err := s.db.GetContext(ctx, &row, `
		SELECT id, user_id, owner_kind, balance, is_system, created_at
		FROM accounts
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

func (s *AccountStore) GetByID(ctx context.Context, accountID string) (models.Account, error) {
	var row models.Account
	err := s.db.GetContext(ctx, &row, `
		SELECT id, user_id, owner_kind, balance, is_system, created_at
		FROM accounts
		WHERE id = $1
	`, accountID)
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

func (s *AccountStore) GetForUpdate(ctx context.Context, tx Getter, accountID string) (models.Account, error) {
	var row models.Account
	err := tx.GetContext(ctx, &row, `
		SELECT id, user_id, owner_kind, balance, is_system, created_at
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`, accountID)
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

func (s *AccountStore) UpdateBalance(ctx context.Context, tx Execer, accountID string, balance int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, updated_at = NOW()
		WHERE id = $2
	`, balance, accountID)
	return err
}

func (s *AccountStore) GetSystemAccount(ctx context.Context) (string, error) {
	var id string
	err := s.db.GetContext(ctx, &id, `
		SELECT id
		FROM accounts
		WHERE is_system = TRUE
		ORDER BY created_at
		LIMIT 1
	`)
	return id, err
}

func (s *AccountStore) Summary(ctx context.Context, userID string) (AccountBalanceSummary, error) {
	var row AccountBalanceSummary
	err := s.db.GetContext(ctx, &row, `
		SELECT a.id,
		       a.user_id,
		       a.owner_kind,
		       a.balance AS stored_balance,
		       COALESCE(SUM(l.amount), 0) AS calculated_balance,
		       (a.balance - COALESCE(SUM(l.amount), 0)) AS difference
		FROM accounts a
		LEFT JOIN ledger_entries l ON l.account_id = a.id
		WHERE a.user_id = $1
		GROUP BY a.id, a.user_id, a.owner_kind, a.balance
	`, userID)
	return row, err
}

// Reconcile lists every account whose balance differs from its ledger sum.
func (s *AccountStore) Reconcile(ctx context.Context) ([]AccountBalanceSummary, error) {
	var rows []AccountBalanceSummary
	err := s.db.SelectContext(ctx, &rows, `
		SELECT a.id,
		       a.user_id,
		       a.owner_kind,
		       a.balance AS stored_balance,
		       COALESCE(SUM(l.amount), 0) AS calculated_balance,
		       (a.balance - COALESCE(SUM(l.amount), 0)) AS difference
		FROM accounts a
		LEFT JOIN ledger_entries l ON l.account_id = a.id
		GROUP BY a.id, a.user_id, a.owner_kind, a.balance
		HAVING a.balance <> COALESCE(SUM(l.amount), 0)
		ORDER BY a.id
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *AccountStore) ListAllWithUsers(ctx context.Context) ([]AccountWithUser, error) {
	var rows []AccountWithUser
	err := s.db.SelectContext(ctx, &rows, `
		SELECT a.id, a.owner_kind, a.balance, a.is_system, u.name, u.email
		FROM accounts a
		LEFT JOIN users u ON u.id = a.user_id
		ORDER BY a.created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
