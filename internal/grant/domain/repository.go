package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// WithTx binds the repository to an open transaction.
	WithTx(tx *gorm.DB) Repository

	// FindUnvestedForYear returns the contractor's grant for year, or nil.
	FindUnvestedForYear(ctx context.Context, contractorID snowflake.ID, year int) (*EquityGrant, error)
	// LockUnvestedForYear is FindUnvestedForYear with a row lock held until
	// the surrounding transaction ends.
	LockUnvestedForYear(ctx context.Context, contractorID snowflake.ID, year int) (*EquityGrant, error)
	// Reserve moves shares from unvested to vested if the grant is still at
	// version. It returns ErrGrantConflict when another writer got there first.
	Reserve(ctx context.Context, grantID snowflake.ID, version, shares int64) error
	Create(ctx context.Context, grant *EquityGrant) error
}
