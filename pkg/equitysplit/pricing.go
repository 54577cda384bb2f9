package equitysplit

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"
)

var (
	ErrNegativePayRate  = errors.New("negative_pay_rate")
	ErrNegativeQuantity = errors.New("negative_quantity")
	ErrNegativeExpense  = errors.New("negative_expense")
	ErrInvalidBps       = errors.New("invalid_equity_percentage")
)

var minutesPerHour = decimal.NewFromInt(60)

// LineItem is an invoice line priced at its full, pre-equity rate.
type LineItem struct {
	ID                string
	Description       string
	PayRateInSubunits int64
	// Quantity is minutes when Hourly is set, units otherwise.
	Quantity decimal.Decimal
	Hourly   bool
}

// Total returns the full line total in cents, rounded up to the next cent.
func (li LineItem) Total() int64 {
	amount := li.Quantity.Mul(decimal.NewFromInt(li.PayRateInSubunits))
	if !li.Hourly {
		return amount.Ceil().IntPart()
	}
	q, r := amount.QuoRem(minutesPerHour, 0)
	total := q.IntPart()
	if r.IsPositive() {
		total++
	}
	return total
}

// Expense is reimbursed in full cash.
type Expense struct {
	ID               string
	Description      string
	TotalAmountCents int64
}

// PricedLine is a line item after the equity discount.
type PricedLine struct {
	ID                    string `json:"id"`
	Description           string `json:"description"`
	Hourly                bool   `json:"hourly"`
	Quantity              string `json:"quantity"`
	PayRateInSubunits     int64  `json:"pay_rate_in_subunits"`
	DisplayedRateSubunits int64  `json:"displayed_rate_in_subunits"`
	LineTotalCents        int64  `json:"line_total_cents"`
	DisplayedCashCents    int64  `json:"displayed_cash_cents"`
}

// Quote is the priced invoice.
type Quote struct {
	EquityPercentageBps int64        `json:"equity_percentage_bps"`
	CashFactor          string       `json:"cash_factor"`
	Lines               []PricedLine `json:"line_items"`
	ServicesTotalCents  int64        `json:"services_total_cents"`
	ServicesCashCents   int64        `json:"services_cash_cents"`
	EquityValueCents    int64        `json:"equity_value_cents"`
	ExpensesCents       int64        `json:"expenses_cents"`
	CashTotalCents      int64        `json:"cash_total_cents"`
	TotalCents          int64        `json:"total_cents"`
}

// Pricer scales line items by the cash factor.
type Pricer struct {
	rounding RoundingMode
}

// NewPricer builds a Pricer using the given rounding mode.
func NewPricer(mode RoundingMode) *Pricer {
	if !mode.Valid() {
		mode = RoundHalfUp
	}
	return &Pricer{rounding: mode}
}

// Price applies equityPercentageBps (the effective percentage from a Result)
// to the line items. Expenses are never discounted. Each scaled line starts at
// the floor of lineTotal*cashFactor and the cents left to reach
// ServicesCashCents go one at a time to the lines with the largest fractional
// remainder, so every line stays within [floor, ceil] of its exact value.
func (p *Pricer) Price(lines []LineItem, expenses []Expense, equityPercentageBps int64) (Quote, error) {
	if equityPercentageBps < 0 || equityPercentageBps > MaxEquityPercentageBps {
		return Quote{}, ErrInvalidBps
	}

	cashBps := decimal.NewFromInt(bpsDenominator - equityPercentageBps)
	cashFactor := cashBps.Div(bpsDiv)

	priced := make([]PricedLine, 0, len(lines))
	remainders := make([]decimal.Decimal, 0, len(lines))
	var servicesTotal, flooredSum int64
	for _, li := range lines {
		if li.PayRateInSubunits < 0 {
			return Quote{}, ErrNegativePayRate
		}
		if li.Quantity.IsNegative() {
			return Quote{}, ErrNegativeQuantity
		}
		total := li.Total()
		exact := decimal.NewFromInt(total).Mul(cashFactor)
		floored := exact.Floor()
		servicesTotal += total
		flooredSum += floored.IntPart()
		remainders = append(remainders, exact.Sub(floored))

		priced = append(priced, PricedLine{
			ID:                    li.ID,
			Description:           li.Description,
			Hourly:                li.Hourly,
			Quantity:              li.Quantity.String(),
			PayRateInSubunits:     li.PayRateInSubunits,
			DisplayedRateSubunits: roundToInt(decimal.NewFromInt(li.PayRateInSubunits).Mul(cashFactor), p.rounding),
			LineTotalCents:        total,
			DisplayedCashCents:    floored.IntPart(),
		})
	}

	var expensesTotal int64
	for _, e := range expenses {
		if e.TotalAmountCents < 0 {
			return Quote{}, ErrNegativeExpense
		}
		expensesTotal += e.TotalAmountCents
	}

	equityValue := roundToInt(decimal.NewFromInt(servicesTotal).
		Mul(decimal.NewFromInt(equityPercentageBps)).
		Div(bpsDiv), p.rounding)
	servicesCash := servicesTotal - equityValue

	distributeCents(priced, remainders, servicesCash-flooredSum)

	return Quote{
		EquityPercentageBps: equityPercentageBps,
		CashFactor:          cashFactor.String(),
		Lines:               priced,
		ServicesTotalCents:  servicesTotal,
		ServicesCashCents:   servicesCash,
		EquityValueCents:    equityValue,
		ExpensesCents:       expensesTotal,
		CashTotalCents:      servicesCash + expensesTotal,
		TotalCents:          servicesTotal + expensesTotal,
	}, nil
}

// distributeCents hands out residual cents by largest remainder. Ties go to the
// larger line, then to the earlier one. residual never exceeds the number of
// lines with a positive remainder because ServicesCashCents is a rounding of
// the exact scaled sum.
func distributeCents(priced []PricedLine, remainders []decimal.Decimal, residual int64) {
	if residual <= 0 || len(priced) == 0 {
		return
	}
	order := make([]int, len(priced))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := remainders[order[a]], remainders[order[b]]
		if !ra.Equal(rb) {
			return ra.GreaterThan(rb)
		}
		return priced[order[a]].LineTotalCents > priced[order[b]].LineTotalCents
	})
	for _, idx := range order {
		if residual == 0 {
			return
		}
		if !remainders[idx].IsPositive() {
			return
		}
		priced[idx].DisplayedCashCents++
		residual--
	}
}

// ServicesTotal sums the full, pre-equity line totals.
func ServicesTotal(lines []LineItem) int64 {
	var total int64
	for _, li := range lines {
		total += li.Total()
	}
	return total
}
