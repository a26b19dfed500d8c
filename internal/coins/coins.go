// Package coins parses coin amounts. Coins are whole, positive numbers; the
// frontend sends them either as JSON numbers or as strings.
package coins

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrFractional    = errors.New("amount must be a whole number of coins")
	ErrTooLarge      = errors.New("amount too large")
)

// Max bounds a single movement so that sums stay far from int64 overflow.
const Max int64 = 1_000_000_000

func Parse(input string) (int64, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return 0, ErrInvalidAmount
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if !value.IsInteger() {
		return 0, ErrFractional
	}
	if !value.IsPositive() {
		return 0, ErrInvalidAmount
	}
	if value.GreaterThan(decimal.NewFromInt(Max)) {
		return 0, ErrTooLarge
	}
	return value.IntPart(), nil
}

// ParseJSON accepts a raw JSON number or string.
func ParseJSON(raw json.RawMessage) (int64, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return 0, ErrInvalidAmount
	}
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, ErrInvalidAmount
		}
		text = s
	}
	return Parse(text)
}
