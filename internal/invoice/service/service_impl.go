package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/payequity/internal/clock"
	companydomain "github.com/smallbiznis/payequity/internal/company/domain"
	"github.com/smallbiznis/payequity/internal/config"
	splitdomain "github.com/smallbiznis/payequity/internal/equitysplit/domain"
	grantdomain "github.com/smallbiznis/payequity/internal/grant/domain"
	invoicedomain "github.com/smallbiznis/payequity/internal/invoice/domain"
	"github.com/smallbiznis/payequity/internal/observability/metrics"
	"github.com/smallbiznis/payequity/internal/ratelimit"
	"github.com/smallbiznis/payequity/pkg/equitysplit"
	"github.com/smallbiznis/payequity/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const invoiceDateLayout = "2006-01-02"

type ServiceParam struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Policy      *config.EquityPolicyHolder
	Companies   companydomain.Repository
	Grants      grantdomain.Repository
	Invoices    invoicedomain.Repository
	Splitter    splitdomain.Service
	Limiter     *ratelimit.Limiter
	Metrics     *metrics.Metrics     `optional:"true"`
	HTTPMetrics *metrics.HTTPMetrics `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	policy    *config.EquityPolicyHolder
	companies companydomain.Repository
	grants    grantdomain.Repository
	invoices  invoicedomain.Repository
	splitter  splitdomain.Service
	limiter   *ratelimit.Limiter

	metrics     *metrics.Metrics
	httpMetrics *metrics.HTTPMetrics
}

func NewService(p ServiceParam) invoicedomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("invoice.service"),
		genID: p.GenID,
		clock: clk,

		policy:    p.Policy,
		companies: p.Companies,
		grants:    p.Grants,
		invoices:  p.Invoices,
		splitter:  p.Splitter,
		limiter:   p.Limiter,

		metrics:     p.Metrics,
		httpMetrics: p.HTTPMetrics,
	}
}

func (s *Service) Create(ctx context.Context, req invoicedomain.CreateRequest) (*invoicedomain.InvoiceView, error) {
	companyID, err := parseID(req.CompanyID)
	if err != nil {
		return nil, invoicedomain.ErrInvalidID
	}
	contractorID, err := parseID(req.ContractorID)
	if err != nil {
		return nil, invoicedomain.ErrInvalidID
	}
	number := strings.TrimSpace(req.InvoiceNumber)
	if number == "" || (len(req.LineItems) == 0 && len(req.Expenses) == 0) {
		return nil, invoicedomain.ErrInvalidInvoice
	}
	invoiceDate, err := time.Parse(invoiceDateLayout, strings.TrimSpace(req.InvoiceDate))
	if err != nil {
		return nil, invoicedomain.ErrInvalidInvoice
	}

	company, err := s.companies.FindCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, companydomain.ErrCompanyNotFound
	}
	contractor, err := s.companies.FindContractor(ctx, companyID, contractorID)
	if err != nil {
		return nil, err
	}
	if contractor == nil {
		return nil, companydomain.ErrContractorNotFound
	}

	now := s.clock.Now()
	invoice := &invoicedomain.Invoice{
		ID:                  s.genID.Generate(),
		CompanyID:           companyID,
		ContractorID:        contractor.ID,
		InvoiceNumber:       number,
		InvoiceDate:         invoiceDate.UTC(),
		Status:              invoicedomain.InvoiceStatusReceived,
		EquityPercentageBps: contractor.EquityPercentageBps,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	lines := make([]invoicedomain.LineItem, 0, len(req.LineItems))
	for i, item := range req.LineItems {
		lines = append(lines, invoicedomain.LineItem{
			ID:                s.genID.Generate(),
			InvoiceID:         invoice.ID,
			Description:       strings.TrimSpace(item.Description),
			PayRateInSubunits: item.PayRateInSubunits,
			Quantity:          item.Quantity,
			Hourly:            item.Hourly,
			Position:          i,
		})
	}
	expenses := make([]invoicedomain.Expense, 0, len(req.Expenses))
	for _, item := range req.Expenses {
		expenses = append(expenses, invoicedomain.Expense{
			ID:               s.genID.Generate(),
			InvoiceID:        invoice.ID,
			Description:      strings.TrimSpace(item.Description),
			TotalAmountCents: item.TotalAmountCents,
		})
	}

	// Price at the full rate first to validate amounts and fix the totals.
	quote, err := equitysplit.NewPricer(s.splitter.Rounding()).Price(pricingLines(lines), pricingExpenses(expenses), 0)
	if err != nil {
		return nil, invoicedomain.ErrInvalidInvoice
	}
	invoice.ServicesAmountCents = quote.ServicesTotalCents
	invoice.ExpensesAmountCents = quote.ExpensesCents
	invoice.TotalAmountCents = quote.TotalCents
	invoice.CashAmountCents = quote.CashTotalCents

	if err := s.invoices.Create(ctx, invoice, lines, expenses); err != nil {
		return nil, err
	}

	s.log.Info("invoice received",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("company_id", companyID.String()),
		zap.String("contractor_id", contractor.ID.String()),
	)
	return s.view(invoice, lines, expenses, quoteBps(company, invoice))
}

func (s *Service) Get(ctx context.Context, companyID, invoiceID string) (*invoicedomain.InvoiceView, error) {
	invoice, err := s.load(ctx, s.invoices, companyID, invoiceID, false)
	if err != nil {
		return nil, err
	}
	lines, expenses, err := s.loadItems(ctx, s.invoices, invoice.ID)
	if err != nil {
		return nil, err
	}

	bps := invoice.EquityPercentageBps
	if invoice.Status != invoicedomain.InvoiceStatusPaid {
		company, err := s.companies.FindCompany(ctx, invoice.CompanyID)
		if err != nil {
			return nil, err
		}
		bps = quoteBps(company, invoice)
	}
	return s.view(invoice, lines, expenses, bps)
}

// quoteBps is the percentage an unpaid invoice would settle at today.
func quoteBps(company *companydomain.Company, invoice *invoicedomain.Invoice) int64 {
	if company == nil || !company.EquityEnabled {
		return 0
	}
	return invoice.EquityPercentageBps
}

func (s *Service) Approve(ctx context.Context, companyID, invoiceID string) (*invoicedomain.InvoiceView, error) {
	invoice, err := s.load(ctx, s.invoices, companyID, invoiceID, false)
	if err != nil {
		return nil, err
	}
	if invoice.Status != invoicedomain.InvoiceStatusReceived {
		return nil, invoicedomain.ErrNotApprovable
	}

	invoice.Status = invoicedomain.InvoiceStatusApproved
	invoice.UpdatedAt = s.clock.Now()
	if err := s.invoices.UpdateStatus(ctx, invoice); err != nil {
		return nil, err
	}
	return s.Get(ctx, companyID, invoiceID)
}

// AcceptPayment records the contractor's equity election. The split is
// computed now so an unpayable election is rejected up front, but shares
// are only reserved on settlement.
func (s *Service) AcceptPayment(ctx context.Context, req invoicedomain.AcceptPaymentRequest) (*invoicedomain.InvoiceView, error) {
	var (
		invoice      *invoicedomain.Invoice
		lines        []invoicedomain.LineItem
		expenses     []invoicedomain.Expense
		effectiveBps int64
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoices := s.invoices.WithTx(tx)

		var err error
		invoice, err = s.load(ctx, invoices, req.CompanyID, req.InvoiceID, true)
		if err != nil {
			return err
		}
		if !invoice.Status.Acceptable() {
			return invoicedomain.ErrNotAcceptable
		}

		company, contractor, err := s.loadParties(ctx, invoice)
		if err != nil {
			return err
		}
		bps, err := contractor.ResolveElection(req.EquityPercentageBps)
		if err != nil {
			return err
		}
		grant, err := s.grants.WithTx(tx).FindUnvestedForYear(ctx, contractor.ID, invoice.Year())
		if err != nil {
			return err
		}

		result, err := s.splitter.Split(ctx, splitdomain.SplitInput{
			Company:             company,
			Contractor:          contractor,
			Grant:               grant,
			EquityPercentageBps: bps,
			ServiceAmountCents:  invoice.ServicesAmountCents,
			InvoiceYear:         invoice.Year(),
			InvoiceID:           invoice.ID.String(),
			Source:              splitdomain.SourceAcceptance,
		})
		if err != nil {
			return err
		}
		effectiveBps = result.EquityPercentageBps

		lines, expenses, err = s.loadItems(ctx, invoices, invoice.ID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		if err := s.applySplit(ctx, invoice, result, lines, expenses, grant, "accepted", now); err != nil {
			return err
		}
		// The election is kept even when equity is disabled so a later
		// re-enable settles at the contractor's choice.
		invoice.EquityPercentageBps = bps
		invoice.Status = invoicedomain.InvoiceStatusPaymentPending
		invoice.AcceptedAt = &now
		invoice.UpdatedAt = now
		return invoices.UpdateSplit(ctx, invoice)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("invoice payment accepted",
		zap.String("invoice_id", invoice.ID.String()),
		zap.Int64("equity_percentage_bps", invoice.EquityPercentageBps),
	)
	return s.view(invoice, lines, expenses, effectiveBps)
}

// Settle pays the invoice, drawing the equity portion from the contractor's
// grant for the invoice year. Concurrent settlements against one grant are
// serialised by the grant lock, the grant row lock and the version check.
func (s *Service) Settle(ctx context.Context, companyID, invoiceID string) (*invoicedomain.InvoiceView, error) {
	pending, err := s.load(ctx, s.invoices, companyID, invoiceID, false)
	if err != nil {
		return nil, err
	}
	if pending.Status == invoicedomain.InvoiceStatusPaid {
		return nil, invoicedomain.ErrAlreadySettled
	}
	if !pending.Status.Settleable() {
		return nil, invoicedomain.ErrNotSettleable
	}

	policy := s.policy.Get()
	lockStart := time.Now()
	release, err := s.limiter.LockGrant(ctx, pending.ContractorID.String(), pending.Year(), time.Duration(policy.SettlementLockTTLSec)*time.Second)
	if err != nil {
		s.httpMetrics.ObserveLockWait("timeout", time.Since(lockStart))
		return nil, fmt.Errorf("lock grant: %w", err)
	}
	s.httpMetrics.ObserveLockWait("acquired", time.Since(lockStart))
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("release grant lock failed", zap.Error(err))
		}
	}()

	var (
		invoice  *invoicedomain.Invoice
		lines    []invoicedomain.LineItem
		expenses []invoicedomain.Expense
		result   equitysplit.Result
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoices := s.invoices.WithTx(tx)
		grants := s.grants.WithTx(tx)

		var err error
		invoice, err = s.load(ctx, invoices, companyID, invoiceID, true)
		if err != nil {
			return err
		}
		if invoice.Status == invoicedomain.InvoiceStatusPaid {
			return invoicedomain.ErrAlreadySettled
		}
		if !invoice.Status.Settleable() {
			return invoicedomain.ErrNotSettleable
		}

		company, contractor, err := s.loadParties(ctx, invoice)
		if err != nil {
			return err
		}
		grant, err := grants.LockUnvestedForYear(ctx, contractor.ID, invoice.Year())
		if err != nil {
			return err
		}

		result, err = s.splitter.Split(ctx, splitdomain.SplitInput{
			Company:             company,
			Contractor:          contractor,
			Grant:               grant,
			EquityPercentageBps: invoice.EquityPercentageBps,
			ServiceAmountCents:  invoice.ServicesAmountCents,
			InvoiceYear:         invoice.Year(),
			InvoiceID:           invoice.ID.String(),
			Source:              splitdomain.SourceSettlement,
		})
		if err != nil {
			return err
		}

		if result.EquityOptionsCount > 0 {
			if err := grants.Reserve(ctx, grant.ID, grant.Version, result.EquityOptionsCount); err != nil {
				return err
			}
		}

		lines, expenses, err = s.loadItems(ctx, invoices, invoice.ID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		if err := s.applySplit(ctx, invoice, result, lines, expenses, grant, "settled", now); err != nil {
			return err
		}
		invoice.EquityPercentageBps = result.EquityPercentageBps
		invoice.Status = invoicedomain.InvoiceStatusPaid
		invoice.SettledAt = &now
		invoice.UpdatedAt = now
		return invoices.UpdateSplit(ctx, invoice)
	})
	if err != nil {
		s.metrics.RecordSettlement(ctx, pending.CompanyID.String(), settlementResult(err), 0, 0)
		return nil, err
	}

	s.metrics.RecordSettlement(ctx, invoice.CompanyID.String(), "paid", result.EquityAmountCents, result.EquityOptionsCount)
	s.log.Info("invoice settled",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("company_id", invoice.CompanyID.String()),
		zap.Int64("equity_options", result.EquityOptionsCount),
	)
	return s.view(invoice, lines, expenses, invoice.EquityPercentageBps)
}

func (s *Service) load(ctx context.Context, repo invoicedomain.Repository, companyID, invoiceID string, forUpdate bool) (*invoicedomain.Invoice, error) {
	cid, err := parseID(companyID)
	if err != nil {
		return nil, invoicedomain.ErrInvalidID
	}
	iid, err := parseID(invoiceID)
	if err != nil {
		return nil, invoicedomain.ErrInvalidID
	}

	var invoice *invoicedomain.Invoice
	if forUpdate {
		invoice, err = repo.LockByID(ctx, cid, iid)
	} else {
		invoice, err = repo.FindByID(ctx, cid, iid)
	}
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, invoicedomain.ErrNotFound
	}
	return invoice, nil
}

func (s *Service) loadParties(ctx context.Context, invoice *invoicedomain.Invoice) (*companydomain.Company, *companydomain.Contractor, error) {
	company, err := s.companies.FindCompany(ctx, invoice.CompanyID)
	if err != nil {
		return nil, nil, err
	}
	if company == nil {
		return nil, nil, companydomain.ErrCompanyNotFound
	}
	contractor, err := s.companies.FindContractor(ctx, invoice.CompanyID, invoice.ContractorID)
	if err != nil {
		return nil, nil, err
	}
	if contractor == nil {
		return nil, nil, companydomain.ErrContractorNotFound
	}
	return company, contractor, nil
}

func (s *Service) loadItems(ctx context.Context, repo invoicedomain.Repository, invoiceID snowflake.ID) ([]invoicedomain.LineItem, []invoicedomain.Expense, error) {
	lines, err := repo.ListLineItems(ctx, invoiceID)
	if err != nil {
		return nil, nil, err
	}
	expenses, err := repo.ListExpenses(ctx, invoiceID)
	if err != nil {
		return nil, nil, err
	}
	return lines, expenses, nil
}

// applySplit prices the invoice at the effective percentage and copies the
// amounts and an audit snapshot onto it.
func (s *Service) applySplit(
	ctx context.Context,
	invoice *invoicedomain.Invoice,
	result equitysplit.Result,
	lines []invoicedomain.LineItem,
	expenses []invoicedomain.Expense,
	grant *grantdomain.EquityGrant,
	stage string,
	now time.Time,
) error {
	rounding := s.splitter.Rounding()
	quote, err := equitysplit.NewPricer(rounding).Price(pricingLines(lines), pricingExpenses(expenses), result.EquityPercentageBps)
	if err != nil {
		return err
	}
	if quote.EquityValueCents != result.EquityAmountCents || quote.ServicesTotalCents != invoice.ServicesAmountCents {
		s.log.Error("split and quote disagree",
			zap.String("invoice_id", invoice.ID.String()),
			zap.Int64("split_equity_cents", result.EquityAmountCents),
			zap.Int64("quote_equity_cents", quote.EquityValueCents),
		)
		return invoicedomain.ErrSplitInconsistent
	}

	snapshot := invoicedomain.SplitSnapshot{
		Result:     result,
		Quote:      quote,
		Rounding:   string(rounding),
		Stage:      stage,
		RecordedAt: now,
	}
	_, snapshot.CorrelationID = correlation.EnsureCorrelationID(ctx)

	invoice.GrantID = nil
	if grant != nil && result.EquityOptionsCount > 0 {
		id := grant.ID
		invoice.GrantID = &id
		snapshot.GrantID = grant.ID.String()
		snapshot.GrantVersion = grant.Version
	}

	raw, err := marshalSnapshot(snapshot)
	if err != nil {
		return err
	}
	invoice.SplitSnapshot = raw
	invoice.EquityAmountCents = result.EquityAmountCents
	invoice.EquityOptions = result.EquityOptionsCount
	invoice.CashAmountCents = quote.CashTotalCents
	invoice.TotalAmountCents = quote.TotalCents
	return nil
}

func (s *Service) view(invoice *invoicedomain.Invoice, lines []invoicedomain.LineItem, expenses []invoicedomain.Expense, bps int64) (*invoicedomain.InvoiceView, error) {
	quote, err := equitysplit.NewPricer(s.splitter.Rounding()).Price(pricingLines(lines), pricingExpenses(expenses), bps)
	if err != nil {
		return nil, err
	}

	view := &invoicedomain.InvoiceView{
		ID:                  invoice.ID.String(),
		CompanyID:           invoice.CompanyID.String(),
		ContractorID:        invoice.ContractorID.String(),
		InvoiceNumber:       invoice.InvoiceNumber,
		InvoiceDate:         invoice.InvoiceDate.Format(invoiceDateLayout),
		Status:              invoice.Status,
		EquityPercentageBps: invoice.EquityPercentageBps,
		EquityAmountCents:   invoice.EquityAmountCents,
		EquityOptions:       invoice.EquityOptions,
		CashAmountCents:     invoice.CashAmountCents,
		TotalAmountCents:    invoice.TotalAmountCents,
		Quote:               quote,
		Expenses:            make([]invoicedomain.ExpenseView, 0, len(expenses)),
		AcceptedAt:          invoice.AcceptedAt,
		SettledAt:           invoice.SettledAt,
	}
	if invoice.GrantID != nil {
		view.GrantID = invoice.GrantID.String()
	}
	for _, e := range expenses {
		view.Expenses = append(view.Expenses, invoicedomain.ExpenseView{
			ID:               e.ID.String(),
			Description:      e.Description,
			TotalAmountCents: e.TotalAmountCents,
		})
	}
	return view, nil
}

func pricingLines(lines []invoicedomain.LineItem) []equitysplit.LineItem {
	out := make([]equitysplit.LineItem, 0, len(lines))
	for _, li := range lines {
		out = append(out, li.Pricing())
	}
	return out
}

func pricingExpenses(expenses []invoicedomain.Expense) []equitysplit.Expense {
	out := make([]equitysplit.Expense, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, e.Pricing())
	}
	return out
}

func settlementResult(err error) string {
	if failure, ok := equitysplit.AsFailure(err); ok {
		return string(failure.Kind)
	}
	switch {
	case errors.Is(err, grantdomain.ErrGrantConflict):
		return "conflict"
	case errors.Is(err, invoicedomain.ErrAlreadySettled):
		return "already_settled"
	default:
		return "error"
	}
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", value)
	}
	return id, nil
}
