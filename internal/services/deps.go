package services

import (
	"context"

	"virtus/internal/models"
	"virtus/internal/store"
	"virtus/internal/websocket"
)

type AccountStore interface {
	GetByUser(ctx context.Context, userID string) (models.Account, error)
	GetForUpdate(ctx context.Context, tx store.Getter, accountID string) (models.Account, error)
	UpdateBalance(ctx context.Context, tx store.Execer, accountID string, balance int64) error
	GetSystemAccount(ctx context.Context) (string, error)
}

type LedgerStore interface {
	InsertEntries(ctx context.Context, tx store.Execer, entries []store.LedgerEntryInput) error
}

type TransactionStore interface {
	Create(ctx context.Context, tx store.Execer, input store.TransactionInput) error
	GetByClientRequestID(ctx context.Context, actorID, clientRequestID string) (models.Transaction, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.Transaction, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID string, data map[string]any) error
}

type NotificationStore interface {
	Enqueue(ctx context.Context, tx store.Execer, input store.NotificationInput) error
}

type UserStore interface {
	GetByID(ctx context.Context, userID string) (models.User, error)
}

type InstitutionStore interface {
	ShareInstitution(ctx context.Context, q store.Getter, firstUserID, secondUserID string) (bool, error)
	ListStudentsFor(ctx context.Context, professorID string) ([]store.StudentSummary, error)
}

type AdvantageStore interface {
	Create(ctx context.Context, tx store.Execer, adv models.Advantage) error
	GetByID(ctx context.Context, advantageID string) (models.Advantage, error)
	GetForShare(ctx context.Context, tx store.Getter, advantageID string) (models.Advantage, error)
	List(ctx context.Context, filter store.AdvantageFilter) ([]models.Advantage, error)
	SetActive(ctx context.Context, tx store.Execer, advantageID, companyID string, active bool) (int64, error)
	UpdatePrice(ctx context.Context, tx store.Execer, advantageID, companyID string, price int64) (int64, error)
	Delete(ctx context.Context, tx store.Execer, advantageID, companyID string) (int64, error)
}

type VoucherStore interface {
	Create(ctx context.Context, tx store.Execer, v models.Voucher) error
	Get(ctx context.Context, identifier string) (models.Voucher, error)
	GetTx(ctx context.Context, tx store.Getter, identifier string) (models.Voucher, error)
	ListByStudent(ctx context.Context, studentID string, consumed *bool) ([]models.Voucher, error)
	Consume(ctx context.Context, tx store.Getter, identifier, consumedBy string) (models.Voucher, bool, error)
}

type PaymentTokenStore interface {
	Create(ctx context.Context, tx store.Execer, t models.PaymentToken) error
	RevokeActive(ctx context.Context, tx store.Execer, beneficiaryID string) (int64, error)
	Current(ctx context.Context, beneficiaryID string) (models.PaymentToken, error)
	GetByToken(ctx context.Context, tx store.Getter, token string) (models.PaymentToken, error)
	Claim(ctx context.Context, tx store.Getter, token, applierID string) (models.PaymentToken, bool, error)
	AttachTransaction(ctx context.Context, tx store.Execer, tokenID, transactionID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type BalanceHub interface {
	BroadcastBalance(userID string, update websocket.BalanceUpdate)
}

// Principal is the authenticated caller of an operation.
type Principal struct {
	UserID string
	Kind   models.UserKind
	Admin  bool
}
