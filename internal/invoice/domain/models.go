// Package domain contains persistence models for contractor invoices.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/payequity/pkg/equitysplit"
	"gorm.io/datatypes"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusReceived       InvoiceStatus = "received"
	InvoiceStatusApproved       InvoiceStatus = "approved"
	InvoiceStatusPaymentPending InvoiceStatus = "payment_pending"
	InvoiceStatusPaid           InvoiceStatus = "paid"
	InvoiceStatusRejected       InvoiceStatus = "rejected"
)

// Acceptable reports whether the contractor can still choose their equity split.
func (s InvoiceStatus) Acceptable() bool {
	return s == InvoiceStatusReceived || s == InvoiceStatusApproved
}

// Settleable reports whether the company can pay the invoice.
func (s InvoiceStatus) Settleable() bool {
	return s == InvoiceStatusApproved || s == InvoiceStatusPaymentPending
}

// Invoice is a contractor's bill to a company. Amount columns hold the split
// as last computed; they are final once Status is paid.
type Invoice struct {
	ID                  snowflake.ID   `gorm:"primaryKey"`
	CompanyID           snowflake.ID   `gorm:"column:company_id;not null;uniqueIndex:invoices_company_number_key"`
	ContractorID        snowflake.ID   `gorm:"column:contractor_id;not null;index"`
	InvoiceNumber       string         `gorm:"column:invoice_number;type:text;not null;uniqueIndex:invoices_company_number_key"`
	InvoiceDate         time.Time      `gorm:"column:invoice_date;not null"`
	Status              InvoiceStatus  `gorm:"type:text;not null;default:'received'"`
	EquityPercentageBps int64          `gorm:"column:equity_percentage_bps;not null;default:0"`
	EquityAmountCents   int64          `gorm:"column:equity_amount_cents;not null;default:0"`
	EquityOptions       int64          `gorm:"column:equity_options;not null;default:0"`
	CashAmountCents     int64          `gorm:"column:cash_amount_cents;not null;default:0"`
	TotalAmountCents    int64          `gorm:"column:total_amount_cents;not null;default:0"`
	ServicesAmountCents int64          `gorm:"column:services_amount_cents;not null;default:0"`
	ExpensesAmountCents int64          `gorm:"column:expenses_amount_cents;not null;default:0"`
	GrantID             *snowflake.ID  `gorm:"column:grant_id"`
	SplitSnapshot       datatypes.JSON `gorm:"column:split_snapshot;type:jsonb"`
	AcceptedAt          *time.Time     `gorm:"column:accepted_at"`
	SettledAt           *time.Time     `gorm:"column:settled_at"`
	CreatedAt           time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt           time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// Year is the grant year the invoice draws equity from.
func (i *Invoice) Year() int {
	return i.InvoiceDate.Year()
}

// LineItem is billed work at the full, pre-equity rate.
type LineItem struct {
	ID                snowflake.ID    `gorm:"primaryKey"`
	InvoiceID         snowflake.ID    `gorm:"column:invoice_id;not null;index"`
	Description       string          `gorm:"type:text;not null;default:''"`
	PayRateInSubunits int64           `gorm:"column:pay_rate_in_subunits;not null"`
	Quantity          decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	Hourly            bool            `gorm:"not null;default:false"`
	Position          int             `gorm:"not null;default:0"`
}

func (LineItem) TableName() string { return "invoice_line_items" }

func (li LineItem) Pricing() equitysplit.LineItem {
	return equitysplit.LineItem{
		ID:                li.ID.String(),
		Description:       li.Description,
		PayRateInSubunits: li.PayRateInSubunits,
		Quantity:          li.Quantity,
		Hourly:            li.Hourly,
	}
}

// Expense is reimbursed in cash and never discounted for equity.
type Expense struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	InvoiceID        snowflake.ID `gorm:"column:invoice_id;not null;index"`
	Description      string       `gorm:"type:text;not null;default:''"`
	TotalAmountCents int64        `gorm:"column:total_amount_cents;not null"`
}

func (Expense) TableName() string { return "invoice_expenses" }

func (e Expense) Pricing() equitysplit.Expense {
	return equitysplit.Expense{
		ID:               e.ID.String(),
		Description:      e.Description,
		TotalAmountCents: e.TotalAmountCents,
	}
}

// SplitSnapshot is the audit record stored on the invoice when it is
// accepted or settled.
type SplitSnapshot struct {
	Result        equitysplit.Result `json:"result"`
	Quote         equitysplit.Quote  `json:"quote"`
	Rounding      string             `json:"rounding"`
	GrantID       string             `json:"grant_id,omitempty"`
	GrantVersion  int64              `json:"grant_version,omitempty"`
	CorrelationID string             `json:"correlation_id"`
	Stage         string             `json:"stage"`
	RecordedAt    time.Time          `json:"recorded_at"`
}
