// Package codes mints and classifies the opaque strings handed to users:
// voucher codes (RSG-...) and payment tokens (PAY-...).
package codes

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"net/url"
	"strings"
)

const (
	VoucherPrefix = "RSG-"
	PaymentPrefix = "PAY-"

	voucherBytes = 10 // 80 bits, 16 chars
	paymentBytes = 16 // 128 bits, 26 chars

	PaymentPath = "/pagar/"
	VoucherPath = "/validar-resgate/"
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

func random(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("codes: read random: %w", err)
	}
	return encoding.EncodeToString(buf), nil
}

func NewVoucherCode() (string, error) {
	s, err := random(voucherBytes)
	if err != nil {
		return "", err
	}
	return VoucherPrefix + s, nil
}

func NewPaymentToken() (string, error) {
	s, err := random(paymentBytes)
	if err != nil {
		return "", err
	}
	return PaymentPrefix + s, nil
}

func PaymentLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + PaymentPath + token
}

func VoucherURL(baseURL, voucherID string) string {
	return strings.TrimRight(baseURL, "/") + VoucherPath + voucherID
}

type Class int

const (
	ClassVoucher Class = iota
	ClassPayment
)

func (c Class) String() string {
	if c == ClassPayment {
		return "payment"
	}
	return "voucher"
}

// Classify tells a payment link or payment code from a voucher code and
// returns the bare identifier. Only the shape is checked; the stores decide
// whether the identifier exists.
func Classify(input string) (Class, string) {
	value := strings.TrimSpace(input)
	if isLink(value) {
		u, _ := url.Parse(value)
		last := value
		if segs := strings.Split(strings.Trim(u.Path, "/"), "/"); len(segs) > 0 {
			last = segs[len(segs)-1]
		}
		if strings.Contains(u.Path, strings.TrimSuffix(VoucherPath, "/")) {
			return ClassVoucher, Normalize(last)
		}
		return ClassPayment, Normalize(last)
	}
	normalized := Normalize(value)
	if strings.HasPrefix(normalized, PaymentPrefix) {
		return ClassPayment, normalized
	}
	return ClassVoucher, normalized
}

// TokenFromLink returns the payment token inside a link, or the input itself
// when it is not a link.
func TokenFromLink(input string) string {
	_, token := Classify(input)
	return token
}

// Normalize upper-cases prefixed codes so that typed codes match; ids are
// returned unchanged.
func Normalize(value string) string {
	value = strings.TrimSpace(value)
	upper := strings.ToUpper(value)
	if strings.HasPrefix(upper, VoucherPrefix) || strings.HasPrefix(upper, PaymentPrefix) {
		return upper
	}
	return value
}

func isLink(value string) bool {
	u, err := url.Parse(value)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
