package services

import (
	"context"
	"time"

	"virtus/internal/apperr"
	"virtus/internal/db"
	"virtus/internal/models"
	"virtus/internal/notify"
	"virtus/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

const (
	defaultStatementLimit = 50
	maxStatementLimit     = 200
)

type TransferService struct {
	engine       *Engine
	users        UserStore
	institutions InstitutionStore
}

func NewTransferService(engine *Engine, users UserStore, institutions InstitutionStore) *TransferService {
	return &TransferService{engine: engine, users: users, institutions: institutions}
}

type TransferRequest struct {
	ProfessorID     string
	StudentID       string
	Amount          int64
	Memo            string
	ClientRequestID *string
}

// Receipt describes a committed coin movement. Balances are only known for
// movements made by this call; a replayed request leaves them zero.
type Receipt struct {
	Transaction models.Transaction
	FromBalance int64
	ToBalance   int64
	Replayed    bool
}

func receiptOf(p posting, m movement, from, to models.User) Receipt {
	return Receipt{
		Transaction: models.Transaction{
			ID:              p.TransactionID,
			Type:            m.Type,
			ActorID:         m.ActorID,
			FromAccountID:   &p.From.ID,
			ToAccountID:     &p.To.ID,
			FromUserID:      p.From.UserID,
			FromName:        optionalName(from),
			ToUserID:        p.To.UserID,
			ToName:          optionalName(to),
			Amount:          m.Amount,
			Memo:            m.Memo,
			ClientRequestID: m.ClientRequestID,
			CreatedAt:       p.CreatedAt,
		},
		FromBalance: p.From.Balance,
		ToBalance:   p.To.Balance,
	}
}

func optionalName(u models.User) *string {
	if u.Name == "" {
		return nil
	}
	name := u.Name
	return &name
}

// Transfer sends coins from a professor to a student of one of the
// professor's institutions. A repeated client request id returns the
// earlier transaction instead of moving coins again, provided it names the
// same student and amount.
func (s *TransferService) Transfer(ctx context.Context, req TransferRequest) (Receipt, error) {
	if req.Amount <= 0 {
		return Receipt{}, apperr.New(apperr.KindInvalidAmount, "amount must be a positive number of coins")
	}
	if replay, ok, err := s.replay(ctx, req); err != nil || ok {
		return replay, err
	}
	professor, err := s.users.GetByID(ctx, req.ProfessorID)
	if err != nil {
		return Receipt{}, notFound(err, "professor not found")
	}
	if professor.Kind != models.KindProfessor {
		return Receipt{}, apperr.New(apperr.KindForbidden, "only professors send coins")
	}
	student, err := s.users.GetByID(ctx, req.StudentID)
	if err != nil {
		return Receipt{}, notFound(err, "student not found")
	}
	if student.Kind != models.KindStudent {
		return Receipt{}, apperr.New(apperr.KindInvalidInput, "coins can only be sent to students")
	}
	professorAccount, err := s.engine.accountOf(ctx, professor.ID)
	if err != nil {
		return Receipt{}, err
	}
	studentAccount, err := s.engine.accountOf(ctx, student.ID)
	if err != nil {
		return Receipt{}, err
	}

	m := movement{
		Type:            models.TxTransfer,
		ActorID:         professor.ID,
		FromAccountID:   professorAccount.ID,
		ToAccountID:     studentAccount.ID,
		Amount:          req.Amount,
		Memo:            req.Memo,
		ClientRequestID: req.ClientRequestID,
	}
	var p posting
	err = s.engine.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		shared, err := s.institutions.ShareInstitution(ctx, tx, professor.ID, student.ID)
		if err != nil {
			return err
		}
		if !shared {
			return apperr.New(apperr.KindForbidden, "professor and student share no institution")
		}
		p, err = s.engine.post(ctx, tx, m)
		if err != nil {
			return err
		}
		if err := s.engine.audit.Log(ctx, tx, professor.ID, "transfer", "transaction", p.TransactionID, map[string]any{
			"student_id": student.ID,
			"amount":     req.Amount,
		}); err != nil {
			return err
		}
		return s.engine.enqueue(ctx, tx, notify.KindCoinsReceived, student.Email, map[string]any{
			"recipient_name": student.Name,
			"sender_name":    professor.Name,
			"amount":         req.Amount,
			"memo":           req.Memo,
		})
	})
	if err != nil {
		if db.IsUniqueViolation(err) && req.ClientRequestID != nil {
			replay, ok, rerr := s.replay(ctx, req)
			if rerr == nil && ok {
				return replay, nil
			}
			if apperr.KindOf(rerr) == apperr.KindConflict {
				return Receipt{}, rerr
			}
			return Receipt{}, apperr.New(apperr.KindConflict, "request already processed")
		}
		return Receipt{}, err
	}
	s.engine.log.WithFields(logrus.Fields{
		"transaction_id": p.TransactionID,
		"professor_id":   professor.ID,
		"student_id":     student.ID,
		"amount":         req.Amount,
	}).Info("coins transferred")
	s.engine.broadcast(p)
	return receiptOf(p, m, professor, student), nil
}

func (s *TransferService) replay(ctx context.Context, req TransferRequest) (Receipt, bool, error) {
	if req.ClientRequestID == nil || *req.ClientRequestID == "" {
		return Receipt{}, false, nil
	}
	existing, err := s.engine.transactions.GetByClientRequestID(ctx, req.ProfessorID, *req.ClientRequestID)
	if err != nil {
		if store.IsNotFound(err) {
			return Receipt{}, false, nil
		}
		return Receipt{}, false, err
	}
	if existing.Amount != req.Amount || existing.ToUserID == nil || *existing.ToUserID != req.StudentID {
		return Receipt{}, false, apperr.New(apperr.KindConflict, "idempotency key reused with a different request")
	}
	return Receipt{Transaction: existing, Replayed: true}, true, nil
}

// GrantAllowance credits a professor from the platform account.
func (s *TransferService) GrantAllowance(ctx context.Context, adminID, professorID string, amount int64, memo string) (Receipt, error) {
	if amount <= 0 {
		return Receipt{}, apperr.New(apperr.KindInvalidAmount, "amount must be a positive number of coins")
	}
	professor, err := s.users.GetByID(ctx, professorID)
	if err != nil {
		return Receipt{}, notFound(err, "professor not found")
	}
	if professor.Kind != models.KindProfessor {
		return Receipt{}, apperr.New(apperr.KindInvalidInput, "allowances are granted to professors only")
	}
	systemID, err := s.engine.accounts.GetSystemAccount(ctx)
	if err != nil {
		return Receipt{}, err
	}
	account, err := s.engine.accountOf(ctx, professor.ID)
	if err != nil {
		return Receipt{}, err
	}
	m := movement{
		Type:          models.TxAllowance,
		ActorID:       adminID,
		FromAccountID: systemID,
		ToAccountID:   account.ID,
		Amount:        amount,
		Memo:          memo,
	}
	var p posting
	err = s.engine.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		p, err = s.engine.post(ctx, tx, m)
		if err != nil {
			return err
		}
		return s.engine.audit.Log(ctx, tx, adminID, "allowance", "transaction", p.TransactionID, map[string]any{
			"professor_id": professor.ID,
			"amount":       amount,
		})
	})
	if err != nil {
		return Receipt{}, err
	}
	s.engine.broadcast(p)
	return receiptOf(p, m, models.User{}, professor), nil
}

func (s *TransferService) Balance(ctx context.Context, userID string) (models.Account, error) {
	return s.engine.accountOf(ctx, userID)
}

// Statement lists the transactions touching the user's account, newest first.
func (s *TransferService) Statement(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = defaultStatementLimit
	}
	if limit > maxStatementLimit {
		limit = maxStatementLimit
	}
	if offset < 0 {
		offset = 0
	}
	account, err := s.engine.accountOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.engine.transactions.ListByAccount(ctx, account.ID, limit, offset)
}

// Students lists the students sharing an institution with the professor.
func (s *TransferService) Students(ctx context.Context, professorID string) ([]store.StudentSummary, error) {
	return s.institutions.ListStudentsFor(ctx, professorID)
}

func timestamp(t time.Time) string {
	return t.In(displayLocation).Format(notify.DateLayout)
}
