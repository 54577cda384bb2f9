package domain

import "errors"

var (
	ErrInvalidID         = errors.New("invalid_id")
	ErrNotFound          = errors.New("invoice_not_found")
	ErrInvalidInvoice    = errors.New("invalid_invoice")
	ErrDuplicateNumber   = errors.New("duplicate_invoice_number")
	ErrNotAcceptable     = errors.New("invoice_not_acceptable")
	ErrNotSettleable     = errors.New("invoice_not_settleable")
	ErrAlreadySettled    = errors.New("invoice_already_settled")
	ErrNotApprovable     = errors.New("invoice_not_approvable")
	ErrSplitInconsistent = errors.New("split_inconsistent")
)
