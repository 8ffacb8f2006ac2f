package db

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money columns are read as text (col::text) and parsed here so values never
// pass through float64.

func ParseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse money %q: %w", s, err)
	}
	return d, nil
}

func ParseNullMoney(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := ParseMoney(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// MoneyArg renders d for a $n::numeric placeholder.
func MoneyArg(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
