package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	splitdomain "github.com/smallbiznis/payequity/internal/equitysplit/domain"
)

// CalculateEquity previews the split for an amount without touching grants.
func (s *Server) CalculateEquity(c *gin.Context) {
	var req splitdomain.CalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.CompanyID = c.Param("company_id")

	if scope := contractorScope(principalFromContext(c)); scope != "" {
		contractorID := strings.TrimSpace(req.ContractorID)
		if contractorID == "" {
			req.ContractorID = scope
		} else if contractorID != scope {
			AbortWithError(c, ErrForbidden)
			return
		}
	}
	if strings.TrimSpace(req.ContractorID) == "" {
		AbortWithError(c, newValidationError("contractor_id", "required", "contractor_id is required"))
		return
	}

	resp, err := s.splitSvc.Calculate(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
