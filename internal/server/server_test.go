package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/payequity/internal/authorization"
	companydomain "github.com/smallbiznis/payequity/internal/company/domain"
	"github.com/smallbiznis/payequity/internal/config"
	splitdomain "github.com/smallbiznis/payequity/internal/equitysplit/domain"
	invoicedomain "github.com/smallbiznis/payequity/internal/invoice/domain"
	"github.com/smallbiznis/payequity/internal/observability"
	"github.com/smallbiznis/payequity/internal/ratelimit"
	"github.com/smallbiznis/payequity/pkg/equitysplit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testCompanyID    = "1000"
	adminUser        = "user:2000"
	contractorUser   = "user:3000"
	testContractorID = "4000"
)

type fakeAuthz struct{}

func (fakeAuthz) Authorize(ctx context.Context, actor, companyID, object, action string) (*authorization.Principal, error) {
	_ = ctx
	if companyID != testCompanyID {
		return nil, authorization.ErrForbidden
	}
	switch actor {
	case adminUser:
		if action == authorization.ActionInvoiceCreate || action == authorization.ActionInvoiceAcceptPayment {
			return nil, authorization.ErrForbidden
		}
		return &authorization.Principal{Subject: actor, Roles: []string{authorization.RoleAdmin}}, nil
	case contractorUser:
		if action == authorization.ActionInvoiceSettle || action == authorization.ActionInvoiceApprove {
			return nil, authorization.ErrForbidden
		}
		return &authorization.Principal{Subject: actor, Roles: []string{authorization.RoleContractor}, ContractorID: testContractorID}, nil
	default:
		return nil, authorization.ErrForbidden
	}
}

type fakeSplitService struct {
	lastReq splitdomain.CalculateRequest
	err     error
}

func (f *fakeSplitService) Calculate(ctx context.Context, req splitdomain.CalculateRequest) (*splitdomain.Response, error) {
	_ = ctx
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &splitdomain.Response{
		CompanyID:           req.CompanyID,
		ContractorID:        req.ContractorID,
		InvoiceYear:         req.InvoiceYear,
		ServiceAmountCents:  req.ServiceAmountCents,
		EquityAmountCents:   req.ServiceAmountCents / 4,
		EquityOptionsCount:  10,
		EquityPercentageBps: 2500,
		CashAmountCents:     req.ServiceAmountCents - req.ServiceAmountCents/4,
	}, nil
}

func (f *fakeSplitService) Split(ctx context.Context, in splitdomain.SplitInput) (equitysplit.Result, error) {
	return equitysplit.Result{}, nil
}

func (f *fakeSplitService) Rounding() equitysplit.RoundingMode {
	return equitysplit.RoundHalfUp
}

type fakeInvoiceService struct {
	invoices  map[string]*invoicedomain.InvoiceView
	settleErr error
	accepted  *invoicedomain.AcceptPaymentRequest
	created   *invoicedomain.CreateRequest
}

func (f *fakeInvoiceService) Create(ctx context.Context, req invoicedomain.CreateRequest) (*invoicedomain.InvoiceView, error) {
	f.created = &req
	return &invoicedomain.InvoiceView{ID: "9000", CompanyID: req.CompanyID, ContractorID: req.ContractorID, Status: invoicedomain.InvoiceStatusReceived}, nil
}

func (f *fakeInvoiceService) Get(ctx context.Context, companyID, invoiceID string) (*invoicedomain.InvoiceView, error) {
	item, ok := f.invoices[invoiceID]
	if !ok {
		return nil, invoicedomain.ErrNotFound
	}
	return item, nil
}

func (f *fakeInvoiceService) Approve(ctx context.Context, companyID, invoiceID string) (*invoicedomain.InvoiceView, error) {
	return f.Get(ctx, companyID, invoiceID)
}

func (f *fakeInvoiceService) AcceptPayment(ctx context.Context, req invoicedomain.AcceptPaymentRequest) (*invoicedomain.InvoiceView, error) {
	f.accepted = &req
	if req.EquityPercentageBps != nil && *req.EquityPercentageBps > 5000 {
		return nil, companydomain.ErrElectionOutOfRange
	}
	return f.Get(ctx, req.CompanyID, req.InvoiceID)
}

func (f *fakeInvoiceService) Settle(ctx context.Context, companyID, invoiceID string) (*invoicedomain.InvoiceView, error) {
	if f.settleErr != nil {
		return nil, f.settleErr
	}
	return f.Get(ctx, companyID, invoiceID)
}

func newTestServer(t *testing.T, split *fakeSplitService, invoices *fakeInvoiceService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := NewEngine(observability.Config{LogLevel: "info"}, nil)
	NewServer(ServerParams{
		Gin:        engine,
		Cfg:        config.Config{Environment: "test"},
		AuthzSvc:   fakeAuthz{},
		SplitSvc:   split,
		InvoiceSvc: invoices,
		Limiter:    ratelimit.NewLimiter(config.Config{}, nil),
	})
	return engine
}

func defaultInvoices() *fakeInvoiceService {
	return &fakeInvoiceService{invoices: map[string]*invoicedomain.InvoiceView{
		"5000": {ID: "5000", CompanyID: testCompanyID, ContractorID: testContractorID, Status: invoicedomain.InvoiceStatusApproved},
		"6000": {ID: "6000", CompanyID: testCompanyID, ContractorID: "4001", Status: invoicedomain.InvoiceStatusApproved},
	}}
}

func doRequest(t *testing.T, engine *gin.Engine, method, path, actor string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if actor != "" {
		req.Header.Set(HeaderActor, actor)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealth(t *testing.T) {
	engine := newTestServer(t, &fakeSplitService{}, defaultInvoices())
	rec := doRequest(t, engine, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestActorRequired(t *testing.T) {
	engine := newTestServer(t, &fakeSplitService{}, defaultInvoices())

	rec := doRequest(t, engine, http.MethodGet, "/api/companies/1000/invoices/5000", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, engine, http.MethodGet, "/api/companies/1000/invoices/5000", "api_key:1", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCalculateEquityScopesContractor(t *testing.T) {
	split := &fakeSplitService{}
	engine := newTestServer(t, split, defaultInvoices())

	rec := doRequest(t, engine, http.MethodPost, "/api/companies/1000/equity_calculations", contractorUser, map[string]any{
		"service_amount_cents": 100000,
		"invoice_year":         2024,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, testContractorID, split.lastReq.ContractorID)
	assert.Equal(t, testCompanyID, split.lastReq.CompanyID)

	var resp struct {
		Data splitdomain.Response `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(25000), resp.Data.EquityAmountCents)

	rec = doRequest(t, engine, http.MethodPost, "/api/companies/1000/equity_calculations", contractorUser, map[string]any{
		"contractor_id":        "4001",
		"service_amount_cents": 100000,
		"invoice_year":         2024,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, engine, http.MethodPost, "/api/companies/1000/equity_calculations", adminUser, map[string]any{
		"service_amount_cents": 100000,
		"invoice_year":         2024,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCalculateEquityFailureIsUnprocessable(t *testing.T) {
	split := &fakeSplitService{err: &equitysplit.Failure{
		Kind:         equitysplit.KindMissingSharePrice,
		ContractorID: testContractorID,
		InvoiceYear:  2024,
	}}
	engine := newTestServer(t, split, defaultInvoices())

	rec := doRequest(t, engine, http.MethodPost, "/api/companies/1000/equity_calculations", adminUser, map[string]any{
		"contractor_id":        testContractorID,
		"service_amount_cents": 100000,
		"invoice_year":         2024,
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	payload := decodeError(t, rec)
	assert.Equal(t, errorTypeEquitySplit, payload.Type)
	assert.Equal(t, string(equitysplit.KindMissingSharePrice), payload.Code)
	assert.Contains(t, payload.Message, testContractorID)
	assert.Contains(t, payload.Message, "2024")
}

func TestInvoiceAccessByRole(t *testing.T) {
	engine := newTestServer(t, &fakeSplitService{}, defaultInvoices())

	rec := doRequest(t, engine, http.MethodGet, "/api/companies/1000/invoices/5000", contractorUser, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Another contractor's invoice is hidden.
	rec = doRequest(t, engine, http.MethodGet, "/api/companies/1000/invoices/6000", contractorUser, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, engine, http.MethodGet, "/api/companies/1000/invoices/6000", adminUser, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, engine, http.MethodPost, "/api/companies/1000/invoices/5000/settle", contractorUser, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, engine, http.MethodGet, "/api/companies/1001/invoices/5000", adminUser, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, engine, http.MethodGet, "/api/companies/1000/invoices/abc", adminUser, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateInvoiceForcesOwnContractor(t *testing.T) {
	invoices := defaultInvoices()
	engine := newTestServer(t, &fakeSplitService{}, invoices)

	body := map[string]any{
		"invoice_number": "INV-1",
		"invoice_date":   "2024-03-15",
		"expenses":       []map[string]any{{"description": "Hosting", "total_amount_cents": 500}},
	}
	rec := doRequest(t, engine, http.MethodPost, "/api/companies/1000/invoices", contractorUser, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, invoices.created)
	assert.Equal(t, testContractorID, invoices.created.ContractorID)

	body["contractor_id"] = "4001"
	rec = doRequest(t, engine, http.MethodPost, "/api/companies/1000/invoices", contractorUser, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, engine, http.MethodPost, "/api/companies/1000/invoices", adminUser, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAcceptPayment(t *testing.T) {
	invoices := defaultInvoices()
	engine := newTestServer(t, &fakeSplitService{}, invoices)

	rec := doRequest(t, engine, http.MethodPost, "/api/companies/1000/invoices/5000/accept_payment", contractorUser, map[string]any{
		"equity_percentage_bps": 2000,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, invoices.accepted)
	require.NotNil(t, invoices.accepted.EquityPercentageBps)
	assert.Equal(t, int64(2000), *invoices.accepted.EquityPercentageBps)

	rec = doRequest(t, engine, http.MethodPost, "/api/companies/1000/invoices/5000/accept_payment", contractorUser, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, invoices.accepted.EquityPercentageBps)

	rec = doRequest(t, engine, http.MethodPost, "/api/companies/1000/invoices/5000/accept_payment", contractorUser, map[string]any{
		"equity_percentage_bps": 9000,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "equity_percentage_bps", payload.Errors[0].Field)
	assert.Equal(t, "equity_election_out_of_range", payload.Errors[0].Code)
}

func TestSettleErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "already settled", err: invoicedomain.ErrAlreadySettled, status: http.StatusConflict, code: "invoice_already_settled"},
		{name: "insufficient shares", err: &equitysplit.Failure{Kind: equitysplit.KindInsufficientUnvestedShares}, status: http.StatusUnprocessableEntity, code: "insufficient_unvested_shares"},
		{name: "lock busy", err: ratelimit.ErrLockBusy, status: http.StatusConflict, code: "lock_busy"},
		{name: "unexpected", err: invoicedomain.ErrSplitInconsistent, status: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			invoices := defaultInvoices()
			invoices.settleErr = tc.err
			engine := newTestServer(t, &fakeSplitService{}, invoices)

			rec := doRequest(t, engine, http.MethodPost, "/api/companies/1000/invoices/5000/settle", adminUser, nil)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, decodeError(t, rec).Code)
		})
	}
}
