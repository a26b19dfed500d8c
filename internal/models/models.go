// Package models holds the rows shared by the store, service and handler
// layers.
package models

import "time"

type UserKind string

const (
	KindStudent   UserKind = "student"
	KindProfessor UserKind = "professor"
	KindCompany   UserKind = "company"
)

func (k UserKind) Valid() bool {
	switch k {
	case KindStudent, KindProfessor, KindCompany:
		return true
	}
	return false
}

type User struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	Name         string    `db:"name"`
	Kind         UserKind  `db:"kind"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

type Account struct {
	ID        string    `db:"id"`
	UserID    *string   `db:"user_id"`
	OwnerKind string    `db:"owner_kind"`
	Balance   int64     `db:"balance"`
	IsSystem  bool      `db:"is_system"`
	CreatedAt time.Time `db:"created_at"`
}

type Advantage struct {
	ID          string    `db:"id"`
	CompanyID   string    `db:"company_id"`
	CompanyName string    `db:"company_name"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Price       int64     `db:"price"`
	PhotoURL    *string   `db:"photo_url"`
	Active      bool      `db:"active"`
	CreatedAt   time.Time `db:"created_at"`
}

// Voucher carries a snapshot of the advantage and student taken at issue
// time. AdvantageID becomes nil once the advantage is deleted.
type Voucher struct {
	ID                   string     `db:"id"`
	Code                 string     `db:"code"`
	StudentID            string     `db:"student_id"`
	StudentName          string     `db:"student_name"`
	StudentEmail         string     `db:"student_email"`
	AdvantageID          *string    `db:"advantage_id"`
	CompanyID            string     `db:"company_id"`
	AdvantageName        string     `db:"advantage_name"`
	AdvantageDescription string     `db:"advantage_description"`
	AdvantagePhotoURL    *string    `db:"advantage_photo_url"`
	Price                int64      `db:"price"`
	TransactionID        string     `db:"transaction_id"`
	IssuedAt             time.Time  `db:"issued_at"`
	Consumed             bool       `db:"consumed"`
	ConsumedAt           *time.Time `db:"consumed_at"`
	ConsumedBy           *string    `db:"consumed_by"`
}

type PaymentToken struct {
	ID            string     `db:"id"`
	Token         string     `db:"token"`
	BeneficiaryID string     `db:"beneficiary_id"`
	Amount        int64      `db:"amount"`
	Applied       bool       `db:"applied"`
	AppliedAt     *time.Time `db:"applied_at"`
	AppliedBy     *string    `db:"applied_by"`
	RevokedAt     *time.Time `db:"revoked_at"`
	ExpiresAt     *time.Time `db:"expires_at"`
	TransactionID *string    `db:"transaction_id"`
	CreatedAt     time.Time  `db:"created_at"`
}

// Expired reports whether the token lapsed at now. Tokens without an expiry
// never lapse.
func (t PaymentToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

type TransactionType string

const (
	TxTransfer   TransactionType = "transfer"
	TxRedemption TransactionType = "redemption"
	TxPayment    TransactionType = "payment"
	TxAllowance  TransactionType = "allowance"
)

type Transaction struct {
	ID              string          `db:"id"`
	Type            TransactionType `db:"type"`
	ActorID         string          `db:"actor_id"`
	FromAccountID   *string         `db:"from_account_id"`
	ToAccountID     *string         `db:"to_account_id"`
	FromUserID      *string         `db:"from_user_id"`
	FromName        *string         `db:"from_name"`
	ToUserID        *string         `db:"to_user_id"`
	ToName          *string         `db:"to_name"`
	Amount          int64           `db:"amount"`
	Memo            string          `db:"memo"`
	ClientRequestID *string         `db:"client_request_id"`
	CreatedAt       time.Time       `db:"created_at"`
}

type Institution struct {
	ID   string `db:"id"`
	Name string `db:"name"`
}
