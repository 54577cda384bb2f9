package domain

import (
	"context"
	"errors"

	companydomain "github.com/smallbiznis/payequity/internal/company/domain"
	grantdomain "github.com/smallbiznis/payequity/internal/grant/domain"
	"github.com/smallbiznis/payequity/pkg/equitysplit"
)

var ErrInvalidRequest = errors.New("invalid_request")

const (
	SourcePreview    = "preview"
	SourceAcceptance = "acceptance"
	SourceSettlement = "settlement"
)

type Service interface {
	// Calculate loads the company, contractor and grant and previews the split.
	Calculate(ctx context.Context, req CalculateRequest) (*Response, error)
	// Split runs the calculator on already loaded records. Failures are
	// alerted and counted the same way for every caller.
	Split(ctx context.Context, in SplitInput) (equitysplit.Result, error)
	// Rounding is the mode currently configured for splits and pricing.
	Rounding() equitysplit.RoundingMode
}

type CalculateRequest struct {
	CompanyID          string `json:"-"`
	ContractorID       string `json:"contractor_id"`
	ServiceAmountCents int64  `json:"service_amount_cents"`
	InvoiceYear        int    `json:"invoice_year"`
	// EquityPercentageBps is the contractor's election; nil uses the stored percentage.
	EquityPercentageBps *int64 `json:"equity_percentage_bps,omitempty"`
}

type SplitInput struct {
	Company             *companydomain.Company
	Contractor          *companydomain.Contractor
	Grant               *grantdomain.EquityGrant
	EquityPercentageBps int64
	ServiceAmountCents  int64
	InvoiceYear         int
	InvoiceID           string
	Source              string
}

type Response struct {
	CompanyID           string `json:"company_id"`
	ContractorID        string `json:"contractor_id"`
	InvoiceYear         int    `json:"invoice_year"`
	ServiceAmountCents  int64  `json:"service_amount_cents"`
	EquityAmountCents   int64  `json:"equity_amount_cents"`
	EquityOptionsCount  int64  `json:"equity_options"`
	EquityPercentageBps int64  `json:"equity_percentage_bps"`
	CashAmountCents     int64  `json:"cash_amount_cents"`
}
