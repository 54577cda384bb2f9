package equitysplit

import (
	"errors"
	"fmt"
)

// FailureKind identifies why no split could be produced.
type FailureKind string

const (
	KindMissingSharePrice          FailureKind = "missing_share_price"
	KindEquityRoundsToZero         FailureKind = "equity_rounds_to_zero"
	KindInsufficientUnvestedShares FailureKind = "insufficient_unvested_shares"
	KindInvalidInput               FailureKind = "invalid_input"
)

// FailureClass groups failure kinds by the action needed to resolve them.
type FailureClass string

const (
	// ClassConfiguration needs an admin to fix the company or grant setup.
	ClassConfiguration FailureClass = "configuration"
	// ClassCapacity needs a larger or finer-grained grant.
	ClassCapacity FailureClass = "capacity"
	// ClassValidation means the inputs were malformed.
	ClassValidation FailureClass = "validation"
)

// Failure is returned instead of a Result when the invoice cannot be settled
// with equity. None of the kinds are retryable.
type Failure struct {
	Kind         FailureKind
	ContractorID string
	InvoiceYear  int
	Detail       string
}

// Class returns the failure's class.
func (f *Failure) Class() FailureClass {
	switch f.Kind {
	case KindMissingSharePrice:
		return ClassConfiguration
	case KindEquityRoundsToZero, KindInsufficientUnvestedShares:
		return ClassCapacity
	default:
		return ClassValidation
	}
}

func (f *Failure) Error() string {
	msg := fmt.Sprintf("equity split %s for contractor %s (year %d)", f.Kind, f.ContractorID, f.InvoiceYear)
	if f.Detail != "" {
		msg += ": " + f.Detail
	}
	return msg
}

// Is matches failures of the same kind, so errors.Is(err, ErrEquityRoundsToZero)
// works for any contractor or year.
func (f *Failure) Is(target error) bool {
	var other *Failure
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == f.Kind
}

var (
	ErrMissingSharePrice          = &Failure{Kind: KindMissingSharePrice}
	ErrEquityRoundsToZero         = &Failure{Kind: KindEquityRoundsToZero}
	ErrInsufficientUnvestedShares = &Failure{Kind: KindInsufficientUnvestedShares}
	ErrInvalidInput               = &Failure{Kind: KindInvalidInput}
)

// AsFailure unwraps err into a *Failure.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) && f != nil {
		return f, true
	}
	return nil, false
}
