package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	companydomain "github.com/smallbiznis/payequity/internal/company/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectEquityCalculation = "equity_calculation"
	ObjectInvoice           = "invoice"
)

const (
	ActionEquityPreview = "equity.preview"

	ActionInvoiceView          = "invoice.view"
	ActionInvoiceCreate        = "invoice.create"
	ActionInvoiceApprove       = "invoice.approve"
	ActionInvoiceAcceptPayment = "invoice.accept_payment"
	ActionInvoiceSettle        = "invoice.settle"
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Enforcer  *casbin.SyncedEnforcer
	Companies companydomain.Repository
}

type ServiceImpl struct {
	log       *zap.Logger
	enforcer  *casbin.SyncedEnforcer
	companies companydomain.Repository
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:       p.Log.Named("authorization.service"),
		enforcer:  p.Enforcer,
		companies: p.Companies,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor string, companyID string, object string, action string) (*Principal, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, ErrInvalidActor
	}
	companyID = strings.TrimSpace(companyID)
	parsedCompanyID, err := snowflake.ParseString(companyID)
	if err != nil || parsedCompanyID <= 0 {
		return nil, ErrInvalidCompany
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return nil, ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return nil, ErrInvalidAction
	}

	principal, err := s.resolveActor(ctx, actor, parsedCompanyID)
	if err != nil {
		s.logDenied(actor, companyID, object, action, err)
		return nil, err
	}

	domain := fmt.Sprintf("company:%s", parsedCompanyID.String())
	if err := s.ensureGrouping(principal.Subject, principal.Roles, domain); err != nil {
		return nil, err
	}

	allowed, err := s.enforcer.Enforce(principal.Subject, domain, object, action)
	if err != nil {
		return nil, err
	}
	if !allowed {
		s.logDenied(actor, companyID, object, action, ErrForbidden)
		return nil, ErrForbidden
	}
	return principal, nil
}

func (s *ServiceImpl) resolveActor(ctx context.Context, actor string, companyID snowflake.ID) (*Principal, error) {
	if actor == "system" {
		return &Principal{Subject: actor, Roles: []string{RoleSystem}}, nil
	}
	if !strings.HasPrefix(actor, "user:") {
		return nil, ErrInvalidActor
	}
	userID, err := snowflake.ParseString(strings.TrimPrefix(actor, "user:"))
	if err != nil || userID <= 0 {
		return nil, ErrInvalidActor
	}

	principal := &Principal{Subject: fmt.Sprintf("user:%s", userID.String())}
	isAdmin, err := s.companies.IsAdministrator(ctx, companyID, userID)
	if err != nil {
		return nil, err
	}
	if isAdmin {
		principal.Roles = append(principal.Roles, RoleAdmin)
	}
	contractor, err := s.companies.FindContractorByUser(ctx, companyID, userID)
	if err != nil {
		return nil, err
	}
	if contractor != nil {
		principal.Roles = append(principal.Roles, RoleContractor)
		principal.ContractorID = contractor.ID.String()
	}
	if len(principal.Roles) == 0 {
		return nil, ErrForbidden
	}
	return principal, nil
}

// ensureGrouping makes the subject's role links in domain match roles exactly.
func (s *ServiceImpl) ensureGrouping(subject string, roles []string, domain string) error {
	want := make(map[string]bool, len(roles))
	for _, role := range roles {
		want["role:"+role] = true
	}

	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 {
			continue
		}
		if want[rule[1]] {
			delete(want, rule[1])
			continue
		}
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		if _, err := s.enforcer.RemoveGroupingPolicy(params...); err != nil {
			return err
		}
	}

	for roleName := range want {
		if _, err := s.enforcer.AddGroupingPolicy(subject, roleName, domain); err != nil {
			return err
		}
	}
	return nil
}

func (s *ServiceImpl) logDenied(actor, companyID, object, action string, reason error) {
	s.log.Info("authorization denied",
		zap.String("actor", actor),
		zap.String("company_id", companyID),
		zap.String("object", object),
		zap.String("action", action),
		zap.String("reason", reason.Error()),
	)
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Contractors bill the company and choose their split.
		{"role:contractor", ObjectEquityCalculation, ActionEquityPreview},
		{"role:contractor", ObjectInvoice, ActionInvoiceCreate},
		{"role:contractor", ObjectInvoice, ActionInvoiceView},
		{"role:contractor", ObjectInvoice, ActionInvoiceAcceptPayment},

		// Administrators approve and pay.
		{"role:admin", ObjectEquityCalculation, ActionEquityPreview},
		{"role:admin", ObjectInvoice, ActionInvoiceView},
		{"role:admin", ObjectInvoice, ActionInvoiceApprove},
		{"role:admin", ObjectInvoice, ActionInvoiceSettle},

		// Automated payment runs.
		{"role:system", ObjectEquityCalculation, ActionEquityPreview},
		{"role:system", ObjectInvoice, ActionInvoiceView},
		{"role:system", ObjectInvoice, ActionInvoiceSettle},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
