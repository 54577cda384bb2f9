package authorization

import (
	"context"
	"errors"
)

var (
	ErrInvalidActor   = errors.New("invalid_actor")
	ErrInvalidCompany = errors.New("invalid_company")
	ErrInvalidObject  = errors.New("invalid_object")
	ErrInvalidAction  = errors.New("invalid_action")
	ErrForbidden      = errors.New("forbidden")
)

const (
	RoleAdmin      = "admin"
	RoleContractor = "contractor"
	RoleSystem     = "system"
)

// Principal is the authorized caller within one company.
type Principal struct {
	Subject string
	Roles   []string
	// ContractorID is set when the caller is a contractor of the company.
	ContractorID string
}

func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Service decides whether actor ("user:<id>" or "system") may perform action
// on object inside a company.
type Service interface {
	Authorize(ctx context.Context, actor string, companyID string, object string, action string) (*Principal, error)
}
