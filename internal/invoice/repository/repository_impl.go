package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/payequity/internal/invoice/domain"
	"github.com/smallbiznis/payequity/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const invoiceColumns = `id, company_id, contractor_id, invoice_number, invoice_date, status,
	equity_percentage_bps, equity_amount_cents, equity_options, cash_amount_cents,
	total_amount_cents, services_amount_cents, expenses_amount_cents, grant_id,
	split_snapshot, accepted_at, settled_at, created_at, updated_at`

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) invoicedomain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) invoicedomain.Repository {
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, invoice *invoicedomain.Invoice, lines []invoicedomain.LineItem, expenses []invoicedomain.Expense) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			`INSERT INTO invoices (`+invoiceColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			invoice.ID,
			invoice.CompanyID,
			invoice.ContractorID,
			invoice.InvoiceNumber,
			invoice.InvoiceDate,
			invoice.Status,
			invoice.EquityPercentageBps,
			invoice.EquityAmountCents,
			invoice.EquityOptions,
			invoice.CashAmountCents,
			invoice.TotalAmountCents,
			invoice.ServicesAmountCents,
			invoice.ExpensesAmountCents,
			invoice.GrantID,
			invoice.SplitSnapshot,
			invoice.AcceptedAt,
			invoice.SettledAt,
			invoice.CreatedAt,
			invoice.UpdatedAt,
		).Error; err != nil {
			return err
		}

		for _, line := range lines {
			if err := tx.Exec(
				`INSERT INTO invoice_line_items (id, invoice_id, description, pay_rate_in_subunits, quantity, hourly, position)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				line.ID,
				invoice.ID,
				line.Description,
				line.PayRateInSubunits,
				line.Quantity,
				line.Hourly,
				line.Position,
			).Error; err != nil {
				return err
			}
		}
		for _, expense := range expenses {
			if err := tx.Exec(
				`INSERT INTO invoice_expenses (id, invoice_id, description, total_amount_cents)
				 VALUES (?, ?, ?, ?)`,
				expense.ID,
				invoice.ID,
				expense.Description,
				expense.TotalAmountCents,
			).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if db.IsDuplicateKeyErr(err) {
		return invoicedomain.ErrDuplicateNumber
	}
	return err
}

func (r *repository) FindByID(ctx context.Context, companyID, id snowflake.ID) (*invoicedomain.Invoice, error) {
	return r.find(r.db.WithContext(ctx), companyID, id)
}

func (r *repository) LockByID(ctx context.Context, companyID, id snowflake.ID) (*invoicedomain.Invoice, error) {
	stmt := r.db.WithContext(ctx)
	if stmt.Dialector.Name() != "sqlite" {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.find(stmt, companyID, id)
}

func (r *repository) find(stmt *gorm.DB, companyID, id snowflake.ID) (*invoicedomain.Invoice, error) {
	var invoices []invoicedomain.Invoice
	err := stmt.
		Where("company_id = ? AND id = ?", companyID, id).
		Limit(1).
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return nil, nil
	}
	return &invoices[0], nil
}

func (r *repository) ListLineItems(ctx context.Context, invoiceID snowflake.ID) ([]invoicedomain.LineItem, error) {
	var items []invoicedomain.LineItem
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, invoice_id, description, pay_rate_in_subunits, quantity, hourly, position
		 FROM invoice_line_items
		 WHERE invoice_id = ?
		 ORDER BY position ASC, id ASC`,
		invoiceID,
	).Scan(&items).Error
	return items, err
}

func (r *repository) ListExpenses(ctx context.Context, invoiceID snowflake.ID) ([]invoicedomain.Expense, error) {
	var items []invoicedomain.Expense
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, invoice_id, description, total_amount_cents
		 FROM invoice_expenses
		 WHERE invoice_id = ?
		 ORDER BY id ASC`,
		invoiceID,
	).Scan(&items).Error
	return items, err
}

func (r *repository) UpdateSplit(ctx context.Context, invoice *invoicedomain.Invoice) error {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET status = ?, equity_percentage_bps = ?, equity_amount_cents = ?, equity_options = ?,
		     cash_amount_cents = ?, total_amount_cents = ?, grant_id = ?, split_snapshot = ?,
		     accepted_at = ?, settled_at = ?, updated_at = ?
		 WHERE company_id = ? AND id = ?`,
		invoice.Status,
		invoice.EquityPercentageBps,
		invoice.EquityAmountCents,
		invoice.EquityOptions,
		invoice.CashAmountCents,
		invoice.TotalAmountCents,
		invoice.GrantID,
		invoice.SplitSnapshot,
		invoice.AcceptedAt,
		invoice.SettledAt,
		invoice.UpdatedAt,
		invoice.CompanyID,
		invoice.ID,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return invoicedomain.ErrNotFound
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, invoice *invoicedomain.Invoice) error {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE invoices SET status = ?, updated_at = ? WHERE company_id = ? AND id = ?`,
		invoice.Status,
		invoice.UpdatedAt,
		invoice.CompanyID,
		invoice.ID,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return invoicedomain.ErrNotFound
	}
	return nil
}
