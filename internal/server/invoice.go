package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/payequity/internal/invoice/domain"
)

func (s *Server) CreateInvoice(c *gin.Context) {
	var req invoicedomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.CompanyID = c.Param("company_id")

	// Only contractors hold invoice.create, and only for themselves.
	scope := contractorScope(principalFromContext(c))
	if scope == "" {
		AbortWithError(c, ErrForbidden)
		return
	}
	if id := strings.TrimSpace(req.ContractorID); id != "" && id != scope {
		AbortWithError(c, ErrForbidden)
		return
	}
	req.ContractorID = scope

	item, err := s.invoiceSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": item})
}

func (s *Server) GetInvoice(c *gin.Context) {
	item, ok := s.loadInvoice(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) ApproveInvoice(c *gin.Context) {
	id, ok := invoiceIDParam(c)
	if !ok {
		return
	}

	item, err := s.invoiceSvc.Approve(c.Request.Context(), c.Param("company_id"), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": item})
}

type acceptPaymentRequest struct {
	EquityPercentageBps *int64 `json:"equity_percentage_bps"`
}

func (s *Server) AcceptInvoicePayment(c *gin.Context) {
	var req acceptPaymentRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	current, ok := s.loadInvoice(c)
	if !ok {
		return
	}

	item, err := s.invoiceSvc.AcceptPayment(c.Request.Context(), invoicedomain.AcceptPaymentRequest{
		CompanyID:           c.Param("company_id"),
		InvoiceID:           current.ID,
		EquityPercentageBps: req.EquityPercentageBps,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) SettleInvoice(c *gin.Context) {
	id, ok := invoiceIDParam(c)
	if !ok {
		return
	}

	item, err := s.invoiceSvc.Settle(c.Request.Context(), c.Param("company_id"), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": item})
}

// loadInvoice fetches the invoice in the path. Contractors only see their
// own invoices; anything else is reported as not found.
func (s *Server) loadInvoice(c *gin.Context) (*invoicedomain.InvoiceView, bool) {
	id, ok := invoiceIDParam(c)
	if !ok {
		return nil, false
	}

	item, err := s.invoiceSvc.Get(c.Request.Context(), c.Param("company_id"), id)
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}
	if scope := contractorScope(principalFromContext(c)); scope != "" && item.ContractorID != scope {
		AbortWithError(c, ErrNotFound)
		return nil, false
	}
	return item, true
}

func invoiceIDParam(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if _, err := snowflake.ParseString(id); err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return "", false
	}
	return id, true
}
