package domain

import "errors"

var (
	ErrInvalidID               = errors.New("invalid_id")
	ErrCompanyNotFound         = errors.New("company_not_found")
	ErrContractorNotFound      = errors.New("contractor_not_found")
	ErrInvalidEquityPercentage = errors.New("invalid_equity_percentage")
	ErrInvalidEquityRange      = errors.New("invalid_equity_range")
	ErrElectionOutOfRange      = errors.New("equity_election_out_of_range")
	ErrElectionClosed          = errors.New("equity_election_closed")
)
