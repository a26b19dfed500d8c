package handlers

import (
	"context"

	"virtus/internal/models"
	"virtus/internal/services"
	"virtus/internal/store"
)

type UserStore interface {
	Create(ctx context.Context, tx store.Execer, user models.User) error
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, userID string) (models.User, error)
	Update(ctx context.Context, tx store.Execer, user models.User) error
}

type AccountStore interface {
	Create(ctx context.Context, tx store.Execer, id string, userID *string, ownerKind string) error
	Reconcile(ctx context.Context) ([]store.AccountBalanceSummary, error)
	Summary(ctx context.Context, userID string) (store.AccountBalanceSummary, error)
	ListAllWithUsers(ctx context.Context) ([]store.AccountWithUser, error)
}

type InstitutionStore interface {
	List(ctx context.Context) ([]models.Institution, error)
	Exists(ctx context.Context, institutionID string) (bool, error)
	Link(ctx context.Context, tx store.Execer, userID, institutionID string) error
}

type TransactionStore interface {
	ListAll(ctx context.Context, limit, offset int) ([]models.Transaction, error)
}

type AdminStore interface {
	IsAdmin(ctx context.Context, userID string) (bool, bool, error)
	HasRole(ctx context.Context, userID, role string) (bool, error)
	CreateAdmin(ctx context.Context, tx store.Execer, userID string, isSuper bool, createdBy *string) error
	GrantRole(ctx context.Context, tx store.Execer, userID, role string) error
	Roles(ctx context.Context, userID string) ([]string, error)
	HasAnyAdmin(ctx context.Context) (bool, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID string, data map[string]any) error
	List(ctx context.Context, entityType string, limit, offset int) ([]store.AuditEntry, error)
}

type TransferService interface {
	Transfer(ctx context.Context, req services.TransferRequest) (services.Receipt, error)
	GrantAllowance(ctx context.Context, adminID, professorID string, amount int64, memo string) (services.Receipt, error)
	Balance(ctx context.Context, userID string) (models.Account, error)
	Statement(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, error)
	Students(ctx context.Context, professorID string) ([]store.StudentSummary, error)
}

type CatalogService interface {
	Create(ctx context.Context, companyID string, in services.AdvantageInput) (models.Advantage, error)
	ListAll(ctx context.Context) ([]models.Advantage, error)
	ListActive(ctx context.Context) ([]models.Advantage, error)
	ListByCompany(ctx context.Context, companyID string) ([]models.Advantage, error)
	Get(ctx context.Context, advantageID string) (models.Advantage, error)
	SetActive(ctx context.Context, companyID, advantageID string, active bool) (models.Advantage, error)
	UpdatePrice(ctx context.Context, companyID, advantageID string, price int64) (models.Advantage, error)
	Delete(ctx context.Context, companyID, advantageID string) error
}

type RedemptionService interface {
	Issue(ctx context.Context, studentID, advantageID string) (models.Voucher, error)
	Consume(ctx context.Context, identifier string, by services.Principal) (models.Voucher, error)
	Get(ctx context.Context, identifier string, by services.Principal) (models.Voucher, error)
	List(ctx context.Context, studentID string, consumed *bool) ([]models.Voucher, error)
	URL(v models.Voucher) string
}

type PaymentService interface {
	CreateToken(ctx context.Context, beneficiaryID string, amount int64) (services.PaymentLink, error)
	Current(ctx context.Context, beneficiaryID string) (services.PaymentLink, error)
	Revoke(ctx context.Context, beneficiaryID string) error
	ApplyToken(ctx context.Context, applierID, tokenOrLink string) (services.Receipt, error)
}

type CodeService interface {
	Apply(ctx context.Context, by services.Principal, input string) (services.CodeResult, error)
}

// Stores groups the repositories the handlers read directly.
type Stores struct {
	Users        UserStore
	Accounts     AccountStore
	Institutions InstitutionStore
	Transactions TransactionStore
	Admin        AdminStore
	Audit        AuditStore
}

type Services struct {
	Transfers   TransferService
	Catalog     CatalogService
	Redemptions RedemptionService
	Payments    PaymentService
	Codes       CodeService
}
