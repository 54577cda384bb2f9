package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/payequity/internal/alert"
	companydomain "github.com/smallbiznis/payequity/internal/company/domain"
	"github.com/smallbiznis/payequity/internal/config"
	splitdomain "github.com/smallbiznis/payequity/internal/equitysplit/domain"
	grantdomain "github.com/smallbiznis/payequity/internal/grant/domain"
	obscontext "github.com/smallbiznis/payequity/internal/observability/context"
	"github.com/smallbiznis/payequity/internal/observability/logger"
	"github.com/smallbiznis/payequity/internal/observability/metrics"
	"github.com/smallbiznis/payequity/internal/observability/tracing"
	"github.com/smallbiznis/payequity/pkg/equitysplit"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServiceParam struct {
	fx.In

	Log       *zap.Logger
	Companies companydomain.Repository
	Grants    grantdomain.Repository
	Policy    *config.EquityPolicyHolder
	Notifier  alert.Notifier
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	log       *zap.Logger
	companies companydomain.Repository
	grants    grantdomain.Repository
	policy    *config.EquityPolicyHolder
	notifier  alert.Notifier
	metrics   *metrics.Metrics
}

func NewService(p ServiceParam) splitdomain.Service {
	return &Service{
		log:       p.Log.Named("equitysplit.service"),
		companies: p.Companies,
		grants:    p.Grants,
		policy:    p.Policy,
		notifier:  p.Notifier,
		metrics:   p.Metrics,
	}
}

func (s *Service) Rounding() equitysplit.RoundingMode {
	return equitysplit.RoundingMode(strings.ToLower(strings.TrimSpace(s.policy.Get().Rounding)))
}

func (s *Service) Calculate(ctx context.Context, req splitdomain.CalculateRequest) (*splitdomain.Response, error) {
	companyID, err := parseID(req.CompanyID)
	if err != nil {
		return nil, companydomain.ErrInvalidID
	}
	contractorID, err := parseID(req.ContractorID)
	if err != nil {
		return nil, companydomain.ErrInvalidID
	}
	if req.InvoiceYear <= 0 || req.ServiceAmountCents < 0 {
		return nil, splitdomain.ErrInvalidRequest
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

	bps, err := contractor.ResolveElection(req.EquityPercentageBps)
	if err != nil {
		return nil, err
	}

	grant, err := s.grants.FindUnvestedForYear(ctx, contractor.ID, req.InvoiceYear)
	if err != nil {
		return nil, err
	}

	result, err := s.Split(ctx, splitdomain.SplitInput{
		Company:             company,
		Contractor:          contractor,
		Grant:               grant,
		EquityPercentageBps: bps,
		ServiceAmountCents:  req.ServiceAmountCents,
		InvoiceYear:         req.InvoiceYear,
		Source:              splitdomain.SourcePreview,
	})
	if err != nil {
		return nil, err
	}

	return &splitdomain.Response{
		CompanyID:           company.ID.String(),
		ContractorID:        contractor.ID.String(),
		InvoiceYear:         req.InvoiceYear,
		ServiceAmountCents:  req.ServiceAmountCents,
		EquityAmountCents:   result.EquityAmountCents,
		EquityOptionsCount:  result.EquityOptionsCount,
		EquityPercentageBps: result.EquityPercentageBps,
		CashAmountCents:     req.ServiceAmountCents - result.EquityAmountCents,
	}, nil
}

func (s *Service) Split(ctx context.Context, in splitdomain.SplitInput) (equitysplit.Result, error) {
	if in.Company == nil || in.Contractor == nil {
		return equitysplit.Result{}, splitdomain.ErrInvalidRequest
	}

	ctx, span := otel.Tracer("payequity/equitysplit").Start(ctx, "equitysplit.Split")
	defer span.End()
	span.SetAttributes(tracing.SafeAttributes(
		attribute.String("company_id", in.Company.ID.String()),
		attribute.String("contractor_id", in.Contractor.ID.String()),
		attribute.Int("invoice_year", in.InvoiceYear),
		attribute.String("source", in.Source),
	)...)

	policy := s.policy.Get()
	terms := equitysplit.EquityTerms{
		ContractorID:        in.Contractor.ID.String(),
		EquityPercentageBps: in.EquityPercentageBps,
		UnvestedGrant:       in.Grant.Unvested(),
	}

	var (
		result equitysplit.Result
		err    error
	)
	// a disabled company always splits to zero, whatever the cap says.
	if in.Company.EquityEnabled && in.EquityPercentageBps > policy.MaxEquityPercentageBps {
		err = &equitysplit.Failure{
			Kind:         equitysplit.KindInvalidInput,
			ContractorID: terms.ContractorID,
			InvoiceYear:  in.InvoiceYear,
			Detail:       fmt.Sprintf("equity percentage %d bps exceeds the %d bps cap", in.EquityPercentageBps, policy.MaxEquityPercentageBps),
		}
	} else {
		calc := equitysplit.NewCalculator(equitysplit.WithRounding(s.Rounding()))
		result, err = calc.Compute(terms, in.Company.EquityConfig(), in.ServiceAmountCents, in.InvoiceYear)
	}

	companyID := in.Company.ID.String()
	log := s.log
	if obscontext.CompanyIDFromContext(ctx) == "" {
		log = logger.WithCompany(log, companyID)
	}
	log = logger.WithContractor(logger.WithContext(ctx, log), terms.ContractorID, in.InvoiceYear)
	if err != nil {
		failure, ok := equitysplit.AsFailure(err)
		if !ok {
			return equitysplit.Result{}, err
		}
		s.metrics.RecordSplit(ctx, companyID, string(failure.Kind))
		span.SetStatus(codes.Error, string(failure.Kind))

		log.Warn("equity split failed",
			zap.String("kind", string(failure.Kind)),
			zap.String("class", string(failure.Class())),
			zap.String("source", in.Source),
		)
		s.notifier.NotifySplitFailure(ctx, alert.SplitFailure{
			CompanyID:    companyID,
			ContractorID: terms.ContractorID,
			InvoiceID:    in.InvoiceID,
			InvoiceYear:  in.InvoiceYear,
			Kind:         string(failure.Kind),
			Class:        string(failure.Class()),
			Detail:       failure.Detail,
			Source:       in.Source,
		})
		return equitysplit.Result{}, failure
	}

	outcome := "ok"
	if result.IsZero() {
		outcome = "zero"
	}
	s.metrics.RecordSplit(ctx, companyID, outcome)
	log.Debug("equity split computed",
		zap.Int64("equity_percentage_bps", result.EquityPercentageBps),
		zap.String("source", in.Source),
	)
	return result, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", value)
	}
	return id, nil
}
