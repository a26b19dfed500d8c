package store

import (
	"context"

	"virtus/internal/models"
)

type TransactionStore struct {
	db DB
}

type TransactionInput struct {
	ID              string
	Type            models.TransactionType
	ActorID         string
	FromAccountID   *string
	ToAccountID     *string
	Amount          int64
	Memo            string
	ClientRequestID *string
}

func NewTransactionStore(db DB) *TransactionStore {
	return &TransactionStore{db: db}
}

func (s *TransactionStore) Create(ctx context.Context, tx Execer, input TransactionInput) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (id, type, actor_id, from_account_id, to_account_id, amount, memo, client_request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, input.ID, input.Type, input.ActorID, input.FromAccountID, input.ToAccountID, input.Amount, input.Memo, input.ClientRequestID)
	return err
}

const transactionColumns = `
	SELECT t.id, t.type, t.actor_id, t.from_account_id, t.to_account_id,
	       fa.user_id AS from_user_id, fu.name AS from_name,
	       ta.user_id AS to_user_id, tu.name AS to_name,
	       t.amount, t.memo, t.client_request_id, t.created_at
	FROM transactions t
	LEFT JOIN accounts fa ON fa.id = t.from_account_id
	LEFT JOIN users fu ON fu.id = fa.user_id
	LEFT JOIN accounts ta ON ta.id = t.to_account_id
	LEFT JOIN users tu ON tu.id = ta.user_id
`

func (s *TransactionStore) GetByClientRequestID(ctx context.Context, actorID, clientRequestID string) (models.Transaction, error) {
	var row models.Transaction
	err := s.db.GetContext(ctx, &row, transactionColumns+`
		WHERE t.actor_id = $1 AND t.client_request_id = $2
	`, actorID, clientRequestID)
	return row, err
}

// ListByAccount returns the statement of one account, newest first.
func (s *TransactionStore) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := s.db.SelectContext(ctx, &rows, transactionColumns+`
		WHERE t.from_account_id = $1 OR t.to_account_id = $1
		ORDER BY t.created_at DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *TransactionStore) ListAll(ctx context.Context, limit, offset int) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := s.db.SelectContext(ctx, &rows, transactionColumns+`
		ORDER BY t.created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
