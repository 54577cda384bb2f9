package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Repository returns nil records, not errors, for rows that do not exist.
type Repository interface {
	FindCompany(ctx context.Context, id snowflake.ID) (*Company, error)
	FindContractor(ctx context.Context, companyID, contractorID snowflake.ID) (*Contractor, error)
	FindContractorByUser(ctx context.Context, companyID, userID snowflake.ID) (*Contractor, error)
	IsAdministrator(ctx context.Context, companyID, userID snowflake.ID) (bool, error)

	CreateCompany(ctx context.Context, company *Company) error
	CreateContractor(ctx context.Context, contractor *Contractor) error
	CreateAdministrator(ctx context.Context, admin *Administrator) error
}
