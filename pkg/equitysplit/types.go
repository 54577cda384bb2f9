// Package equitysplit computes how an invoice's service amount is split between
// cash and company equity, and prices invoice line items after the equity
// discount. It is pure: callers resolve grants and company settings up front and
// pass them in, so the settlement path and the preview endpoint share one
// implementation.
package equitysplit

import "github.com/shopspring/decimal"

const (
	// MaxEquityPercentageBps is 100% expressed in basis points.
	MaxEquityPercentageBps int64 = 10000

	bpsDenominator int64 = 10000
)

// RoundingMode selects how fractional cents and shares are resolved.
type RoundingMode string

const (
	// RoundHalfUp rounds halves away from zero.
	RoundHalfUp RoundingMode = "half_up"
	// RoundHalfEven rounds halves to the nearest even value (banker's rounding).
	RoundHalfEven RoundingMode = "half_even"
)

// Valid reports whether the mode is one the calculator understands.
func (m RoundingMode) Valid() bool {
	return m == RoundHalfUp || m == RoundHalfEven
}

// UnvestedGrant is the contractor's equity award for the invoice year.
type UnvestedGrant struct {
	ID             string
	SharePriceUSD  decimal.Decimal
	UnvestedShares int64
}

// EquityTerms describes what the contractor is owed in equity for one invoice.
type EquityTerms struct {
	ContractorID        string
	EquityPercentageBps int64
	// UnvestedGrant is nil when no grant exists for the invoice year.
	UnvestedGrant *UnvestedGrant
}

// CompanyEquityConfig is the company-wide equity setup.
type CompanyEquityConfig struct {
	CompanyID              string
	EquityEnabled          bool
	FallbackFMVPerShareUSD *decimal.Decimal
}

// Result is a successful split.
type Result struct {
	EquityAmountCents   int64 `json:"equity_amount_cents"`
	EquityOptionsCount  int64 `json:"equity_options"`
	EquityPercentageBps int64 `json:"equity_percentage_bps"`
}

// IsZero reports whether no equity is granted.
func (r Result) IsZero() bool {
	return r.EquityAmountCents == 0 && r.EquityOptionsCount == 0 && r.EquityPercentageBps == 0
}
