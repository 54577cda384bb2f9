package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/payequity/internal/authorization"
	companydomain "github.com/smallbiznis/payequity/internal/company/domain"
	splitdomain "github.com/smallbiznis/payequity/internal/equitysplit/domain"
	grantdomain "github.com/smallbiznis/payequity/internal/grant/domain"
	invoicedomain "github.com/smallbiznis/payequity/internal/invoice/domain"
	"github.com/smallbiznis/payequity/internal/ratelimit"
	"github.com/smallbiznis/payequity/pkg/equitysplit"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// errorTypeEquitySplit marks responses where the split itself was refused.
const errorTypeEquitySplit = "equity_split_failed"

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	if payload.Code != "" {
		return payload.Type, payload.Code
	}
	return payload.Type, payload.Type
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	// Split failures carry contractor and year context the caller needs to
	// fix the company's grant setup.
	if failure, ok := equitysplit.AsFailure(err); ok {
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    errorTypeEquitySplit,
			Code:    string(failure.Kind),
			Message: failure.Error(),
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authorization.ErrInvalidActor):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    conflictCode(err),
			Message: "conflict",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

var validationErrors = []error{
	ErrInvalidRequest,
	authorization.ErrInvalidCompany,
	authorization.ErrInvalidObject,
	authorization.ErrInvalidAction,
	companydomain.ErrInvalidID,
	companydomain.ErrInvalidEquityPercentage,
	companydomain.ErrInvalidEquityRange,
	companydomain.ErrElectionOutOfRange,
	companydomain.ErrElectionClosed,
	splitdomain.ErrInvalidRequest,
	invoicedomain.ErrInvalidID,
	invoicedomain.ErrInvalidInvoice,
	grantdomain.ErrInvalidGrant,
	equitysplit.ErrInvalidBps,
	equitysplit.ErrNegativePayRate,
	equitysplit.ErrNegativeQuantity,
	equitysplit.ErrNegativeExpense,
}

func isValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, companydomain.ErrCompanyNotFound),
		errors.Is(err, companydomain.ErrContractorNotFound),
		errors.Is(err, grantdomain.ErrNotFound),
		errors.Is(err, invoicedomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

var conflictErrors = []error{
	ErrConflict,
	invoicedomain.ErrDuplicateNumber,
	invoicedomain.ErrNotAcceptable,
	invoicedomain.ErrNotApprovable,
	invoicedomain.ErrNotSettleable,
	invoicedomain.ErrAlreadySettled,
	grantdomain.ErrGrantConflict,
	grantdomain.ErrMultipleGrants,
	ratelimit.ErrLockBusy,
}

func isConflictError(err error) bool {
	return conflictCode(err) != ""
}

func conflictCode(err error) string {
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return ""
}

func validationErrorCode(err error) string {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return err.Error()
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "equity_election_out_of_range", "equity_election_closed", "invalid_equity_percentage":
		return "equity_percentage_bps"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "equity_election_out_of_range":
		return "equity percentage is outside the contractor's allowed range"
	case "equity_election_closed":
		return "equity percentage is fixed for this contractor"
	default:
		return "invalid value"
	}
}
