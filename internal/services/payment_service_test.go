package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"virtus/internal/apperr"
	"virtus/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentTokenAppliesOnce(t *testing.T) {
	f := newFixture(t)
	f.db.addUser("ana", models.KindStudent, 0)
	f.db.addUser("prof", models.KindProfessor, 50)

	link, err := f.payments.CreateToken(context.Background(), "ana", 20)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link.Token.Token, "PAY-"))
	assert.Equal(t, "https://virtus.test/pagar/"+link.Token.Token, link.Link)
	require.NotNil(t, link.Token.ExpiresAt)
	assert.Equal(t, f.clock.Add(5*time.Minute), *link.Token.ExpiresAt)

	receipt, err := f.payments.ApplyToken(context.Background(), "prof", link.Token.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(20), receipt.Transaction.Amount)
	assert.Equal(t, models.TxPayment, receipt.Transaction.Type)
	assert.Equal(t, int64(30), receipt.FromBalance)
	assert.Equal(t, int64(20), receipt.ToBalance)
	assert.Equal(t, int64(30), f.db.balance("prof"))
	assert.Equal(t, int64(20), f.db.balance("ana"))

	token := f.db.snapshot().tokens[link.Token.Token]
	assert.True(t, token.Applied)
	require.NotNil(t, token.TransactionID)
	assert.Equal(t, receipt.Transaction.ID, *token.TransactionID)

	_, err = f.payments.ApplyToken(context.Background(), "prof", link.Token.Token)
	assert.ErrorIs(t, err, apperr.ErrAlreadyApplied)
	assert.Equal(t, int64(30), f.db.balance("prof"))
	assert.Equal(t, int64(20), f.db.balance("ana"))
}

func TestPaymentTokenAcceptsFullLink(t *testing.T) {
	f := newFixture(t)
	f.db.addUser("ana", models.KindStudent, 0)
	f.db.addUser("bia", models.KindStudent, 10)

	link, err := f.payments.CreateToken(context.Background(), "ana", 10)
	require.NoError(t, err)

	_, err = f.payments.ApplyToken(context.Background(), "bia", link.Link)
	require.NoError(t, err)
	assert.Equal(t, int64(10), f.db.balance("ana"))
	assert.Equal(t, int64(0), f.db.balance("bia"))
}

func TestPaymentTokenInsufficientBalanceKeepsTokenLive(t *testing.T) {
	f := newFixture(t)
	f.db.addUser("ana", models.KindStudent, 0)
	f.db.addUser("prof", models.KindProfessor, 5)

	link, err := f.payments.CreateToken(context.Background(), "ana", 20)
	require.NoError(t, err)

	_, err = f.payments.ApplyToken(context.Background(), "prof", link.Token.Token)
	assert.ErrorIs(t, err, apperr.ErrInsufficientBalance)
	assert.False(t, f.db.snapshot().tokens[link.Token.Token].Applied)
	assert.Equal(t, int64(5), f.db.balance("prof"))
}

func TestPaymentTokenSelfPaymentRejected(t *testing.T) {
	f := newFixture(t)
	f.db.addUser("ana", models.KindStudent, 100)

	link, err := f.payments.CreateToken(context.Background(), "ana", 20)
	require.NoError(t, err)

	_, err = f.payments.ApplyToken(context.Background(), "ana", link.Token.Token)
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
	assert.False(t, f.db.snapshot().tokens[link.Token.Token].Applied)
	assert.Equal(t, int64(100), f.db.balance("ana"))
}

func TestPaymentTokenExpires(t *testing.T) {
	f := newFixture(t)
	f.db.addUser("ana", models.KindStudent, 0)
	f.db.addUser("prof", models.KindProfessor, 50)

	link, err := f.payments.CreateToken(context.Background(), "ana", 20)
	require.NoError(t, err)

	f.clock = f.clock.Add(6 * time.Minute)
	current, err := f.payments.Current(context.Background(), "ana")
	require.NoError(t, err)
	assert.True(t, current.Expired)

	_, err = f.payments.ApplyToken(context.Background(), "prof", link.Token.Token)
	assert.Equal(t, apperr.KindExpired, apperr.KindOf(err))

	n, err := f.payments.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = f.payments.ApplyToken(context.Background(), "prof", link.Token.Token)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestPaymentTokenWithoutTTLNeverExpires(t *testing.T) {
	f := newFixture(t)
	f.payments.ttl = 0
	f.db.addUser("ana", models.KindStudent, 0)
	f.db.addUser("prof", models.KindProfessor, 50)

	link, err := f.payments.CreateToken(context.Background(), "ana", 20)
	require.NoError(t, err)
	assert.Nil(t, link.Token.ExpiresAt)

	f.clock = f.clock.Add(24 * time.Hour)
	_, err = f.payments.ApplyToken(context.Background(), "prof", link.Token.Token)
	assert.NoError(t, err)
}

func TestCreateTokenRevokesPrevious(t *testing.T) {
	f := newFixture(t)
	f.db.addUser("ana", models.KindStudent, 0)
	f.db.addUser("prof", models.KindProfessor, 50)

	first, err := f.payments.CreateToken(context.Background(), "ana", 10)
	require.NoError(t, err)
	second, err := f.payments.CreateToken(context.Background(), "ana", 15)
	require.NoError(t, err)
	assert.NotEqual(t, first.Token.Token, second.Token.Token)

	current, err := f.payments.Current(context.Background(), "ana")
	require.NoError(t, err)
	assert.Equal(t, second.Token.Token, current.Token.Token)

	_, err = f.payments.ApplyToken(context.Background(), "prof", first.Token.Token)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestRevokePaymentLink(t *testing.T) {
	f := newFixture(t)
	f.db.addUser("ana", models.KindStudent, 0)

	err := f.payments.Revoke(context.Background(), "ana")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = f.payments.CreateToken(context.Background(), "ana", 10)
	require.NoError(t, err)
	require.NoError(t, f.payments.Revoke(context.Background(), "ana"))

	_, err = f.payments.Current(context.Background(), "ana")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestCreateTokenValidation(t *testing.T) {
	f := newFixture(t)
	f.db.addUser("ana", models.KindStudent, 0)
	f.db.addUser("cafe", models.KindCompany, 0)

	_, err := f.payments.CreateToken(context.Background(), "ana", 0)
	assert.Equal(t, apperr.KindInvalidAmount, apperr.KindOf(err))
	_, err = f.payments.CreateToken(context.Background(), "cafe", 10)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	_, err = f.payments.CreateToken(context.Background(), "ghost", 10)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestCodeServiceDispatchesByShape(t *testing.T) {
	f := newFixture(t)
	f.db.addUser("ana", models.KindStudent, 100)
	f.db.addUser("cafe", models.KindCompany, 0)
	f.db.addUser("prof", models.KindProfessor, 50)
	f.db.addAdvantage("adv-1", "cafe", 30, true)

	voucher, err := f.redemptions.Issue(context.Background(), "ana", "adv-1")
	require.NoError(t, err)
	link, err := f.payments.CreateToken(context.Background(), "ana", 20)
	require.NoError(t, err)

	result, err := f.codes.Apply(context.Background(), professor("prof"), voucher.Code)
	require.NoError(t, err)
	require.NotNil(t, result.Voucher)
	assert.True(t, result.Voucher.Consumed)
	assert.Nil(t, result.Payment)

	result, err = f.codes.Apply(context.Background(), professor("prof"), link.Link)
	require.NoError(t, err)
	require.NotNil(t, result.Payment)
	assert.Equal(t, int64(20), result.Payment.Transaction.Amount)
	assert.Equal(t, int64(30), f.db.balance("prof"))

	_, err = f.codes.Apply(context.Background(), professor("prof"), "")
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
}
