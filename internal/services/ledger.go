package services

import (
	"context"
	"errors"
	"time"

	"virtus/internal/apperr"
	"virtus/internal/db"
	"virtus/internal/models"
	"virtus/internal/notify"
	"virtus/internal/store"
	"virtus/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// Engine moves coins between accounts. Every service that changes a balance
// goes through post, inside a transaction opened by the caller.
type Engine struct {
	txRunner      db.TxRunner
	accounts      AccountStore
	ledger        LedgerStore
	transactions  TransactionStore
	audit         AuditStore
	notifications NotificationStore
	hub           BalanceHub
	log           logrus.FieldLogger
	now           func() time.Time
}

func NewEngine(txRunner db.TxRunner, accounts AccountStore, ledger LedgerStore, transactions TransactionStore, audit AuditStore, notifications NotificationStore, hub BalanceHub, log logrus.FieldLogger) *Engine {
	return &Engine{
		txRunner:      txRunner,
		accounts:      accounts,
		ledger:        ledger,
		transactions:  transactions,
		audit:         audit,
		notifications: notifications,
		hub:           hub,
		log:           log,
		now:           time.Now,
	}
}

type movement struct {
	Type            models.TransactionType
	ActorID         string
	FromAccountID   string
	ToAccountID     string
	Amount          int64
	Memo            string
	ClientRequestID *string
}

// posting is the outcome of a movement: the transaction id and both
// accounts with their new balances.
type posting struct {
	TransactionID string
	From          models.Account
	To            models.Account
	CreatedAt     time.Time
}

func (e *Engine) post(ctx context.Context, tx *sqlx.Tx, m movement) (posting, error) {
	if m.Amount <= 0 {
		return posting{}, apperr.New(apperr.KindInvalidAmount, "amount must be a positive number of coins")
	}
	if m.FromAccountID == m.ToAccountID {
		return posting{}, apperr.New(apperr.KindInvalidInput, "cannot move coins to the same account")
	}
	from, to, err := lockTwoAccounts(ctx, tx, e.accounts, m.FromAccountID, m.ToAccountID)
	if err != nil {
		return posting{}, notFound(err, "account not found")
	}
	if !from.IsSystem && from.Balance < m.Amount {
		return posting{}, apperr.ErrInsufficientBalance
	}
	from.Balance -= m.Amount
	to.Balance += m.Amount
	if err := e.accounts.UpdateBalance(ctx, tx, from.ID, from.Balance); err != nil {
		return posting{}, err
	}
	if err := e.accounts.UpdateBalance(ctx, tx, to.ID, to.Balance); err != nil {
		return posting{}, err
	}

	transactionID := uuid.NewString()
	if err := e.transactions.Create(ctx, tx, store.TransactionInput{
		ID:              transactionID,
		Type:            m.Type,
		ActorID:         m.ActorID,
		FromAccountID:   &from.ID,
		ToAccountID:     &to.ID,
		Amount:          m.Amount,
		Memo:            m.Memo,
		ClientRequestID: m.ClientRequestID,
	}); err != nil {
		return posting{}, err
	}
	entries := []store.LedgerEntryInput{
		{
			ID:            uuid.NewString(),
			TransactionID: transactionID,
			AccountID:     from.ID,
			Amount:        -m.Amount,
			Description:   string(m.Type) + " debit",
		},
		{
			ID:            uuid.NewString(),
			TransactionID: transactionID,
			AccountID:     to.ID,
			Amount:        m.Amount,
			Description:   string(m.Type) + " credit",
		},
	}
	if err := ensureBalanced(entries); err != nil {
		return posting{}, err
	}
	if err := e.ledger.InsertEntries(ctx, tx, entries); err != nil {
		return posting{}, err
	}
	return posting{TransactionID: transactionID, From: from, To: to, CreatedAt: e.now().UTC()}, nil
}

// enqueue adds a mail job to the outbox in tx. Users without an email are
// skipped.
func (e *Engine) enqueue(ctx context.Context, tx store.Execer, kind notify.Kind, recipient string, payload map[string]any) error {
	if recipient == "" {
		return nil
	}
	return e.notifications.Enqueue(ctx, tx, store.NotificationInput{
		ID:        uuid.NewString(),
		Kind:      string(kind),
		Recipient: recipient,
		Subject:   notify.Subject(kind),
		Payload:   payload,
	})
}

// broadcast pushes the new balances to the owners. Call it after commit only.
func (e *Engine) broadcast(p posting) {
	if e.hub == nil || p.TransactionID == "" {
		return
	}
	for _, account := range []models.Account{p.From, p.To} {
		if account.UserID == nil {
			continue
		}
		e.hub.BroadcastBalance(*account.UserID, websocket.BalanceUpdate{
			AccountID:     account.ID,
			Balance:       account.Balance,
			TransactionID: p.TransactionID,
		})
	}
}

func (e *Engine) accountOf(ctx context.Context, userID string) (models.Account, error) {
	account, err := e.accounts.GetByUser(ctx, userID)
	if err != nil {
		return models.Account{}, notFound(err, "account not found")
	}
	return account, nil
}

func ensureBalanced(entries []store.LedgerEntryInput) error {
	var sum int64
	for _, entry := range entries {
		sum += entry.Amount
	}
	if sum != 0 {
		return errors.New("ledger entries are not balanced")
	}
	return nil
}

func lockTwoAccounts(ctx context.Context, tx store.Getter, accountStore AccountStore, firstID, secondID string) (models.Account, models.Account, error) {
	leftID, rightID := orderedIDs(firstID, secondID)
	leftAccount, err := accountStore.GetForUpdate(ctx, tx, leftID)
	if err != nil {
		return models.Account{}, models.Account{}, err
	}
	rightAccount, err := accountStore.GetForUpdate(ctx, tx, rightID)
	if err != nil {
		return models.Account{}, models.Account{}, err
	}
	if firstID == leftID {
		return leftAccount, rightAccount, nil
	}
	return rightAccount, leftAccount, nil
}

func orderedIDs(firstID, secondID string) (string, string) {
	if firstID <= secondID {
		return firstID, secondID
	}
	return secondID, firstID
}
