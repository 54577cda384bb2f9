package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, invoice *Invoice, lines []LineItem, expenses []Expense) error
	FindByID(ctx context.Context, companyID, id snowflake.ID) (*Invoice, error)
	// LockByID is FindByID holding a row lock for the rest of the transaction.
	LockByID(ctx context.Context, companyID, id snowflake.ID) (*Invoice, error)
	ListLineItems(ctx context.Context, invoiceID snowflake.ID) ([]LineItem, error)
	ListExpenses(ctx context.Context, invoiceID snowflake.ID) ([]Expense, error)
	// UpdateSplit writes status, split amounts, snapshot and timestamps.
	UpdateSplit(ctx context.Context, invoice *Invoice) error
	UpdateStatus(ctx context.Context, invoice *Invoice) error
}
