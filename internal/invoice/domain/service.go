package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/payequity/pkg/equitysplit"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*InvoiceView, error)
	Get(ctx context.Context, companyID, invoiceID string) (*InvoiceView, error)
	Approve(ctx context.Context, companyID, invoiceID string) (*InvoiceView, error)
	AcceptPayment(ctx context.Context, req AcceptPaymentRequest) (*InvoiceView, error)
	Settle(ctx context.Context, companyID, invoiceID string) (*InvoiceView, error)
}

type CreateLineItem struct {
	Description       string          `json:"description"`
	PayRateInSubunits int64           `json:"pay_rate_in_subunits"`
	Quantity          decimal.Decimal `json:"quantity"`
	Hourly            bool            `json:"hourly"`
}

type CreateExpense struct {
	Description      string `json:"description"`
	TotalAmountCents int64  `json:"total_amount_cents"`
}

type CreateRequest struct {
	CompanyID     string           `json:"-"`
	ContractorID  string           `json:"contractor_id"`
	InvoiceNumber string           `json:"invoice_number"`
	InvoiceDate   string           `json:"invoice_date"`
	LineItems     []CreateLineItem `json:"line_items"`
	Expenses      []CreateExpense  `json:"expenses"`
}

type AcceptPaymentRequest struct {
	CompanyID           string `json:"-"`
	InvoiceID           string `json:"-"`
	EquityPercentageBps *int64 `json:"equity_percentage_bps"`
}

type ExpenseView struct {
	ID               string `json:"id"`
	Description      string `json:"description"`
	TotalAmountCents int64  `json:"total_amount_cents"`
}

type InvoiceView struct {
	ID                  string            `json:"id"`
	CompanyID           string            `json:"company_id"`
	ContractorID        string            `json:"contractor_id"`
	InvoiceNumber       string            `json:"invoice_number"`
	InvoiceDate         string            `json:"invoice_date"`
	Status              InvoiceStatus     `json:"status"`
	EquityPercentageBps int64             `json:"equity_percentage_bps"`
	EquityAmountCents   int64             `json:"equity_amount_cents"`
	EquityOptions       int64             `json:"equity_options"`
	CashAmountCents     int64             `json:"cash_amount_cents"`
	TotalAmountCents    int64             `json:"total_amount_cents"`
	GrantID             string            `json:"grant_id,omitempty"`
	Expenses            []ExpenseView     `json:"expenses"`
	Quote               equitysplit.Quote `json:"quote"`
	AcceptedAt          *time.Time        `json:"accepted_at,omitempty"`
	SettledAt           *time.Time        `json:"settled_at,omitempty"`
}
