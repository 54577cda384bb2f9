package domain

import "errors"

var (
	ErrInvalidGrant   = errors.New("invalid_grant")
	ErrMultipleGrants = errors.New("multiple_unvested_grants")
	ErrGrantConflict  = errors.New("grant_conflict")
	ErrNotFound       = errors.New("grant_not_found")
)
