package services

import (
	"context"
	"time"

	"virtus/internal/apperr"
	"virtus/internal/codes"
	"virtus/internal/models"
	"virtus/internal/notify"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// Dates in mails are shown in Brasília time.
var displayLocation = time.FixedZone("BRT", -3*60*60)

// RedemptionService issues vouchers against the catalog and consumes them
// exactly once.
type RedemptionService struct {
	engine     *Engine
	users      UserStore
	advantages AdvantageStore
	vouchers   VoucherStore
	baseURL    string
}

func NewRedemptionService(engine *Engine, users UserStore, advantages AdvantageStore, vouchers VoucherStore, baseURL string) *RedemptionService {
	return &RedemptionService{
		engine:     engine,
		users:      users,
		advantages: advantages,
		vouchers:   vouchers,
		baseURL:    baseURL,
	}
}

// URL is the page a company opens to validate the voucher.
func (s *RedemptionService) URL(v models.Voucher) string {
	return codes.VoucherURL(s.baseURL, v.ID)
}

// Issue debits the student, credits the owning company and stores a voucher
// with a snapshot of the advantage, all in one transaction.
func (s *RedemptionService) Issue(ctx context.Context, studentID, advantageID string) (models.Voucher, error) {
	student, err := s.users.GetByID(ctx, studentID)
	if err != nil {
		return models.Voucher{}, notFound(err, "student not found")
	}
	if student.Kind != models.KindStudent {
		return models.Voucher{}, apperr.New(apperr.KindForbidden, "only students redeem advantages")
	}
	studentAccount, err := s.engine.accountOf(ctx, student.ID)
	if err != nil {
		return models.Voucher{}, err
	}

	var voucher models.Voucher
	var p posting
	err = s.engine.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		adv, err := s.advantages.GetForShare(ctx, tx, advantageID)
		if err != nil {
			return notFound(err, "advantage not found")
		}
		if !adv.Active {
			return apperr.ErrAdvantageInactive
		}
		companyAccount, err := s.engine.accountOf(ctx, adv.CompanyID)
		if err != nil {
			return err
		}
		p, err = s.engine.post(ctx, tx, movement{
			Type:          models.TxRedemption,
			ActorID:       student.ID,
			FromAccountID: studentAccount.ID,
			ToAccountID:   companyAccount.ID,
			Amount:        adv.Price,
			Memo:          adv.Name,
		})
		if err != nil {
			return err
		}
		code, err := codes.NewVoucherCode()
		if err != nil {
			return err
		}
		advID := adv.ID
		voucher = models.Voucher{
			ID:                   uuid.NewString(),
			Code:                 code,
			StudentID:            student.ID,
			StudentName:          student.Name,
			StudentEmail:         student.Email,
			AdvantageID:          &advID,
			CompanyID:            adv.CompanyID,
			AdvantageName:        adv.Name,
			AdvantageDescription: adv.Description,
			AdvantagePhotoURL:    adv.PhotoURL,
			Price:                adv.Price,
			TransactionID:        p.TransactionID,
			IssuedAt:             p.CreatedAt,
		}
		if err := s.vouchers.Create(ctx, tx, voucher); err != nil {
			return err
		}
		if err := s.engine.audit.Log(ctx, tx, student.ID, "redeem", "voucher", voucher.ID, map[string]any{
			"advantage_id":   adv.ID,
			"price":          adv.Price,
			"transaction_id": p.TransactionID,
		}); err != nil {
			return err
		}
		return s.engine.enqueue(ctx, tx, notify.KindVoucherIssued, student.Email, map[string]any{
			"student_name":   student.Name,
			"advantage_name": adv.Name,
			"value":          adv.Price,
			"code":           code,
			"url":            s.URL(voucher),
			"issued_at":      timestamp(voucher.IssuedAt),
		})
	})
	if err != nil {
		return models.Voucher{}, err
	}
	s.engine.log.WithFields(logrus.Fields{
		"voucher_id":   voucher.ID,
		"student_id":   student.ID,
		"advantage_id": advantageID,
		"price":        voucher.Price,
	}).Info("voucher issued")
	s.engine.broadcast(p)
	return voucher, nil
}

// Consume marks the voucher used. Of any number of concurrent calls for the
// same voucher exactly one succeeds; the rest get AlreadyConsumed.
func (s *RedemptionService) Consume(ctx context.Context, identifier string, by Principal) (models.Voucher, error) {
	id := codes.Normalize(identifier)
	if id == "" {
		return models.Voucher{}, apperr.New(apperr.KindInvalidInput, "voucher code is required")
	}
	var voucher models.Voucher
	err := s.engine.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		current, err := s.vouchers.GetTx(ctx, tx, id)
		if err != nil {
			return notFound(err, "voucher not found")
		}
		if !canHandle(current, by) {
			return apperr.New(apperr.KindForbidden, "not allowed to validate this voucher")
		}
		consumed, ok, err := s.vouchers.Consume(ctx, tx, id, by.UserID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrAlreadyConsumed
		}
		voucher = consumed
		if err := s.engine.audit.Log(ctx, tx, by.UserID, "consume", "voucher", voucher.ID, map[string]any{
			"student_id": voucher.StudentID,
			"kind":       string(by.Kind),
		}); err != nil {
			return err
		}
		consumedAt := s.engine.now()
		if voucher.ConsumedAt != nil {
			consumedAt = *voucher.ConsumedAt
		}
		return s.engine.enqueue(ctx, tx, notify.KindVoucherValidated, voucher.StudentEmail, map[string]any{
			"student_name":   voucher.StudentName,
			"advantage_name": voucher.AdvantageName,
			"code":           voucher.Code,
			"consumed_at":    timestamp(consumedAt),
		})
	})
	if err != nil {
		return models.Voucher{}, err
	}
	s.engine.log.WithFields(logrus.Fields{
		"voucher_id":  voucher.ID,
		"consumed_by": by.UserID,
	}).Info("voucher consumed")
	return voucher, nil
}

// Get looks a voucher up by id or code on behalf of by.
func (s *RedemptionService) Get(ctx context.Context, identifier string, by Principal) (models.Voucher, error) {
	voucher, err := s.vouchers.Get(ctx, codes.Normalize(identifier))
	if err != nil {
		return models.Voucher{}, notFound(err, "voucher not found")
	}
	if !canHandle(voucher, by) {
		return models.Voucher{}, apperr.New(apperr.KindForbidden, "not allowed to see this voucher")
	}
	return voucher, nil
}

// List returns the student's vouchers; consumed filters by state when set.
func (s *RedemptionService) List(ctx context.Context, studentID string, consumed *bool) ([]models.Voucher, error) {
	return s.vouchers.ListByStudent(ctx, studentID, consumed)
}

func (s *RedemptionService) ListUnconsumed(ctx context.Context, studentID string) ([]models.Voucher, error) {
	consumed := false
	return s.List(ctx, studentID, &consumed)
}

func (s *RedemptionService) ListConsumed(ctx context.Context, studentID string) ([]models.Voucher, error) {
	consumed := true
	return s.List(ctx, studentID, &consumed)
}

// canHandle reports whether by may see or validate v: the issuing company,
// the student who owns it, any professor, or an admin.
func canHandle(v models.Voucher, by Principal) bool {
	if by.Admin {
		return true
	}
	switch by.Kind {
	case models.KindProfessor:
		return true
	case models.KindCompany:
		return by.UserID == v.CompanyID
	case models.KindStudent:
		return by.UserID == v.StudentID
	}
	return false
}
