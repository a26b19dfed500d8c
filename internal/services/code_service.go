package services

import (
	"context"

	"virtus/internal/apperr"
	"virtus/internal/codes"
	"virtus/internal/models"
)

// CodeService applies whatever a professor types or scans: a payment link or
// code is paid, anything else is validated as a voucher.
type CodeService struct {
	redemptions *RedemptionService
	payments    *PaymentService
}

func NewCodeService(redemptions *RedemptionService, payments *PaymentService) *CodeService {
	return &CodeService{redemptions: redemptions, payments: payments}
}

type CodeResult struct {
	Class   codes.Class
	Voucher *models.Voucher
	Payment *Receipt
}

func (s *CodeService) Apply(ctx context.Context, by Principal, input string) (CodeResult, error) {
	class, value := codes.Classify(input)
	if value == "" {
		return CodeResult{}, apperr.New(apperr.KindInvalidInput, "code is required")
	}
	if class == codes.ClassPayment {
		receipt, err := s.payments.ApplyToken(ctx, by.UserID, value)
		if err != nil {
			return CodeResult{}, err
		}
		return CodeResult{Class: class, Payment: &receipt}, nil
	}
	voucher, err := s.redemptions.Consume(ctx, value, by)
	if err != nil {
		return CodeResult{}, err
	}
	return CodeResult{Class: class, Voucher: &voucher}, nil
}
