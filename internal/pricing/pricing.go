// Package pricing computes order totals in fixed-point decimal arithmetic.
// Everything here is pure and safe for concurrent use.
package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/bazaar/internal/apperr"
	"github.com/sudo-init-do/bazaar/internal/marketplace"
)

// Resolve maps offering ids onto the catalog. Duplicate ids collapse to one
// selection; the first occurrence decides the position.
func Resolve(ids []string, catalog map[string]marketplace.Offering) ([]marketplace.Offering, error) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]marketplace.Offering, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		off, ok := catalog[id]
		if !ok {
			return nil, apperr.NotFound(fmt.Sprintf("offering %s", id), nil)
		}
		out = append(out, off)
	}
	return out, nil
}

// ComputeTotal returns listing.Price plus the extra cost of every offering.
func ComputeTotal(listing marketplace.Listing, offerings []marketplace.Offering) (decimal.Decimal, error) {
	if listing.Price == nil {
		return decimal.Zero, apperr.InvalidListingState("listing has no price")
	}
	if listing.Price.IsNegative() {
		return decimal.Zero, apperr.InvalidListingState("listing price is negative")
	}

	total := *listing.Price
	for _, o := range offerings {
		if o.ExtraCost.IsNegative() {
			return decimal.Zero, apperr.InvalidListingState(fmt.Sprintf("offering %s has a negative cost", o.ID))
		}
		total = total.Add(o.ExtraCost)
	}
	if total.IsNegative() {
		return decimal.Zero, apperr.InvalidListingState("computed total is negative")
	}
	return total, nil
}

// zeroDecimal lists ISO 4217 currencies without a minor unit.
var zeroDecimal = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
	"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// Exponent is the number of minor-unit digits for currency.
func Exponent(currency string) int32 {
	if zeroDecimal[strings.ToLower(currency)] {
		return 0
	}
	return 2
}

// ToMinorUnits converts amount into integer minor units (cents for usd).
// Amounts with more precision than the currency allows are rejected rather than rounded.
func ToMinorUnits(amount decimal.Decimal, currency string) (int64, error) {
	if currency == "" {
		return 0, apperr.Validation("currency is required", nil)
	}
	if amount.IsNegative() {
		return 0, apperr.Validation("amount must not be negative", nil)
	}
	shifted := amount.Shift(Exponent(currency))
	if !shifted.IsInteger() {
		return 0, apperr.Validation(fmt.Sprintf("amount %s has more precision than %s allows", amount.String(), strings.ToUpper(currency)), nil)
	}
	return shifted.IntPart(), nil
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -Exponent(currency))
}
