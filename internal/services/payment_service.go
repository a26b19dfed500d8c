package services

import (
	"context"
	"time"

	"virtus/internal/apperr"
	"virtus/internal/codes"
	"virtus/internal/models"
	"virtus/internal/notify"
	"virtus/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// PaymentService keeps at most one live payment link per student. Applying a
// link moves its amount from the payer to the student who created it.
type PaymentService struct {
	engine  *Engine
	users   UserStore
	tokens  PaymentTokenStore
	baseURL string
	ttl     time.Duration
}

func NewPaymentService(engine *Engine, users UserStore, tokens PaymentTokenStore, baseURL string, ttl time.Duration) *PaymentService {
	return &PaymentService{
		engine:  engine,
		users:   users,
		tokens:  tokens,
		baseURL: baseURL,
		ttl:     ttl,
	}
}

type PaymentLink struct {
	Token   models.PaymentToken
	Link    string
	Expired bool
}

func (s *PaymentService) link(t models.PaymentToken) PaymentLink {
	return PaymentLink{
		Token:   t,
		Link:    codes.PaymentLink(s.baseURL, t.Token),
		Expired: t.Expired(s.engine.now()),
	}
}

// CreateToken mints a new link for the beneficiary and revokes the previous
// one.
func (s *PaymentService) CreateToken(ctx context.Context, beneficiaryID string, amount int64) (PaymentLink, error) {
	if amount <= 0 {
		return PaymentLink{}, apperr.New(apperr.KindInvalidAmount, "amount must be a positive number of coins")
	}
	beneficiary, err := s.users.GetByID(ctx, beneficiaryID)
	if err != nil {
		return PaymentLink{}, notFound(err, "user not found")
	}
	if beneficiary.Kind != models.KindStudent {
		return PaymentLink{}, apperr.New(apperr.KindForbidden, "only students create payment links")
	}
	token, err := codes.NewPaymentToken()
	if err != nil {
		return PaymentLink{}, err
	}
	now := s.engine.now().UTC()
	t := models.PaymentToken{
		ID:            uuid.NewString(),
		Token:         token,
		BeneficiaryID: beneficiary.ID,
		Amount:        amount,
		CreatedAt:     now,
	}
	if s.ttl > 0 {
		expiresAt := now.Add(s.ttl)
		t.ExpiresAt = &expiresAt
	}
	err = s.engine.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.tokens.RevokeActive(ctx, tx, beneficiary.ID); err != nil {
			return err
		}
		if err := s.tokens.Create(ctx, tx, t); err != nil {
			return err
		}
		return s.engine.audit.Log(ctx, tx, beneficiary.ID, "create", "payment_link", t.ID, map[string]any{
			"amount": amount,
		})
	})
	if err != nil {
		return PaymentLink{}, err
	}
	return s.link(t), nil
}

func (s *PaymentService) Current(ctx context.Context, beneficiaryID string) (PaymentLink, error) {
	t, err := s.tokens.Current(ctx, beneficiaryID)
	if err != nil {
		return PaymentLink{}, notFound(err, "no active payment link")
	}
	return s.link(t), nil
}

func (s *PaymentService) Revoke(ctx context.Context, beneficiaryID string) error {
	return s.engine.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		n, err := s.tokens.RevokeActive(ctx, tx, beneficiaryID)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.New(apperr.KindNotFound, "no active payment link")
		}
		return s.engine.audit.Log(ctx, tx, beneficiaryID, "revoke", "payment_link", beneficiaryID, nil)
	})
}

// ApplyToken pays a link. tokenOrLink may be the bare token or the full link.
func (s *PaymentService) ApplyToken(ctx context.Context, applierID, tokenOrLink string) (Receipt, error) {
	token := codes.TokenFromLink(tokenOrLink)
	if token == "" {
		return Receipt{}, apperr.New(apperr.KindInvalidInput, "payment link is required")
	}
	applier, err := s.users.GetByID(ctx, applierID)
	if err != nil {
		return Receipt{}, notFound(err, "user not found")
	}
	applierAccount, err := s.engine.accountOf(ctx, applier.ID)
	if err != nil {
		return Receipt{}, err
	}

	var p posting
	var m movement
	var beneficiary models.User
	err = s.engine.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		claimed, ok, err := s.tokens.Claim(ctx, tx, token, applier.ID)
		if err != nil {
			return err
		}
		if !ok {
			return s.diagnose(ctx, tx, token)
		}
		if claimed.BeneficiaryID == applier.ID {
			return apperr.New(apperr.KindInvalidInput, "cannot pay your own payment link")
		}
		beneficiary, err = s.users.GetByID(ctx, claimed.BeneficiaryID)
		if err != nil {
			return notFound(err, "beneficiary not found")
		}
		beneficiaryAccount, err := s.engine.accountOf(ctx, beneficiary.ID)
		if err != nil {
			return err
		}
		m = movement{
			Type:          models.TxPayment,
			ActorID:       applier.ID,
			FromAccountID: applierAccount.ID,
			ToAccountID:   beneficiaryAccount.ID,
			Amount:        claimed.Amount,
			Memo:          "link de pagamento",
		}
		p, err = s.engine.post(ctx, tx, m)
		if err != nil {
			return err
		}
		if err := s.tokens.AttachTransaction(ctx, tx, claimed.ID, p.TransactionID); err != nil {
			return err
		}
		if err := s.engine.audit.Log(ctx, tx, applier.ID, "apply", "payment_link", claimed.ID, map[string]any{
			"beneficiary_id": beneficiary.ID,
			"amount":         claimed.Amount,
			"transaction_id": p.TransactionID,
		}); err != nil {
			return err
		}
		return s.engine.enqueue(ctx, tx, notify.KindCoinsReceived, beneficiary.Email, map[string]any{
			"recipient_name": beneficiary.Name,
			"sender_name":    applier.Name,
			"amount":         claimed.Amount,
			"memo":           m.Memo,
		})
	})
	if err != nil {
		return Receipt{}, err
	}
	s.engine.log.WithFields(logrus.Fields{
		"transaction_id": p.TransactionID,
		"applier_id":     applier.ID,
		"beneficiary_id": beneficiary.ID,
		"amount":         m.Amount,
	}).Info("payment link applied")
	s.engine.broadcast(p)
	return receiptOf(p, m, applier, beneficiary), nil
}

// diagnose explains why a claim matched no row.
func (s *PaymentService) diagnose(ctx context.Context, tx store.Getter, token string) error {
	t, err := s.tokens.GetByToken(ctx, tx, token)
	if err != nil {
		return notFound(err, "payment link not found")
	}
	switch {
	case t.Applied:
		return apperr.ErrAlreadyApplied
	case t.RevokedAt != nil:
		return apperr.New(apperr.KindNotFound, "payment link not found")
	case t.Expired(s.engine.now()):
		return apperr.New(apperr.KindExpired, "payment link expired")
	}
	return apperr.New(apperr.KindConflict, "payment link is being applied")
}

// SweepExpired deletes expired links that were never applied.
func (s *PaymentService) SweepExpired(ctx context.Context) (int64, error) {
	return s.tokens.DeleteExpired(ctx)
}

// RunSweeper calls SweepExpired every interval until ctx is done.
func (s *PaymentService) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.SweepExpired(ctx)
			if err != nil {
				s.engine.log.WithError(err).Error("payment link sweep failed")
				continue
			}
			if n > 0 {
				s.engine.log.WithField("deleted", n).Info("expired payment links removed")
			}
		}
	}
}
