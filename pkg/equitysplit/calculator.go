package equitysplit

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	bpsDiv  = decimal.NewFromInt(bpsDenominator)
)

// Calculator computes cash/equity splits. The zero value rounds half-up.
type Calculator struct {
	rounding RoundingMode
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithRounding sets the rounding mode. Unknown modes fall back to half-up.
func WithRounding(mode RoundingMode) Option {
	return func(c *Calculator) {
		if mode.Valid() {
			c.rounding = mode
		}
	}
}

// NewCalculator builds a Calculator.
func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{rounding: RoundHalfUp}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Rounding returns the configured rounding mode.
func (c *Calculator) Rounding() RoundingMode {
	if c == nil || !c.rounding.Valid() {
		return RoundHalfUp
	}
	return c.rounding
}

// Compute splits serviceAmountCents (the pre-equity value of services) into its
// equity portion for the given invoice year. It returns a *Failure when the
// split cannot be settled with equity; zero-equity and equity-disabled inputs
// always succeed with a zero Result.
func Compute(terms EquityTerms, company CompanyEquityConfig, serviceAmountCents int64, invoiceYear int) (Result, error) {
	return NewCalculator().Compute(terms, company, serviceAmountCents, invoiceYear)
}

// Compute is the method form of the package-level Compute.
func (c *Calculator) Compute(terms EquityTerms, company CompanyEquityConfig, serviceAmountCents int64, invoiceYear int) (Result, error) {
	fail := func(kind FailureKind, detail string) (Result, error) {
		return Result{}, &Failure{
			Kind:         kind,
			ContractorID: terms.ContractorID,
			InvoiceYear:  invoiceYear,
			Detail:       detail,
		}
	}

	if serviceAmountCents < 0 {
		return fail(KindInvalidInput, fmt.Sprintf("service amount %d is negative", serviceAmountCents))
	}
	if terms.EquityPercentageBps < 0 || terms.EquityPercentageBps > MaxEquityPercentageBps {
		return fail(KindInvalidInput, fmt.Sprintf("equity percentage %d bps is out of range", terms.EquityPercentageBps))
	}
	if invoiceYear <= 0 {
		return fail(KindInvalidInput, fmt.Sprintf("invoice year %d is invalid", invoiceYear))
	}

	if terms.EquityPercentageBps == 0 || !company.EquityEnabled {
		return Result{}, nil
	}

	grant := terms.UnvestedGrant
	var sharePrice *decimal.Decimal
	if grant != nil {
		price := grant.SharePriceUSD
		sharePrice = &price
	} else if company.FallbackFMVPerShareUSD != nil {
		price := *company.FallbackFMVPerShareUSD
		sharePrice = &price
	}
	if sharePrice == nil {
		return fail(KindMissingSharePrice, "no grant price or company fair market value")
	}
	if !sharePrice.IsPositive() {
		return fail(KindInvalidInput, fmt.Sprintf("share price %s is not positive", sharePrice.String()))
	}
	if grant != nil && grant.UnvestedShares < 0 {
		return fail(KindInvalidInput, fmt.Sprintf("grant %s has negative unvested shares", grant.ID))
	}

	amountCents := c.round(decimal.NewFromInt(serviceAmountCents).
		Mul(decimal.NewFromInt(terms.EquityPercentageBps)).
		Div(bpsDiv))

	pricePerShareCents := sharePrice.Mul(hundred)
	options := c.round(decimal.NewFromInt(amountCents).Div(pricePerShareCents))

	if options <= 0 {
		return fail(KindEquityRoundsToZero, fmt.Sprintf("%d cents buys no whole shares at %s per share", amountCents, sharePrice.String()))
	}
	if grant == nil {
		return fail(KindInsufficientUnvestedShares, fmt.Sprintf("no unvested grant for %d options", options))
	}
	if grant.UnvestedShares < options {
		return fail(KindInsufficientUnvestedShares, fmt.Sprintf("grant %s has %d unvested shares, need %d", grant.ID, grant.UnvestedShares, options))
	}

	return Result{
		EquityAmountCents:   amountCents,
		EquityOptionsCount:  options,
		EquityPercentageBps: terms.EquityPercentageBps,
	}, nil
}

func (c *Calculator) round(d decimal.Decimal) int64 {
	return roundToInt(d, c.Rounding())
}

func roundToInt(d decimal.Decimal, mode RoundingMode) int64 {
	if mode == RoundHalfEven {
		return d.RoundBank(0).IntPart()
	}
	return d.Round(0).IntPart()
}
