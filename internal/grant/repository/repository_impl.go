package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	grantdomain "github.com/smallbiznis/payequity/internal/grant/domain"
	"github.com/smallbiznis/payequity/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) grantdomain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) grantdomain.Repository {
	return &repository{db: tx}
}

func (r *repository) FindUnvestedForYear(ctx context.Context, contractorID snowflake.ID, year int) (*grantdomain.EquityGrant, error) {
	return r.findForYear(r.db.WithContext(ctx), contractorID, year)
}

func (r *repository) LockUnvestedForYear(ctx context.Context, contractorID snowflake.ID, year int) (*grantdomain.EquityGrant, error) {
	stmt := r.db.WithContext(ctx)
	if stmt.Dialector.Name() != "sqlite" {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.findForYear(stmt, contractorID, year)
}

func (r *repository) findForYear(stmt *gorm.DB, contractorID snowflake.ID, year int) (*grantdomain.EquityGrant, error) {
	var grants []grantdomain.EquityGrant
	err := stmt.
		Where("contractor_id = ? AND period_year = ?", contractorID, year).
		Order("id ASC").
		Limit(2).
		Find(&grants).Error
	if err != nil {
		return nil, err
	}
	switch len(grants) {
	case 0:
		return nil, nil
	case 1:
		return &grants[0], nil
	default:
		return nil, grantdomain.ErrMultipleGrants
	}
}

func (r *repository) Reserve(ctx context.Context, grantID snowflake.ID, version, shares int64) error {
	if shares <= 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Exec(
		`UPDATE equity_grants
		 SET unvested_shares = unvested_shares - ?,
		     vested_shares = vested_shares + ?,
		     version = version + 1,
		     updated_at = ?
		 WHERE id = ? AND version = ? AND unvested_shares >= ?`,
		shares,
		shares,
		time.Now().UTC(),
		grantID,
		version,
		shares,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return grantdomain.ErrGrantConflict
	}
	return nil
}

func (r *repository) Create(ctx context.Context, grant *grantdomain.EquityGrant) error {
	if err := grant.Validate(); err != nil {
		return err
	}
	if grant.Version == 0 {
		grant.Version = 1
	}
	err := r.db.WithContext(ctx).Exec(
		`INSERT INTO equity_grants (
			id, company_id, contractor_id, period_year, share_price_usd,
			number_of_shares, vested_shares, unvested_shares, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		grant.ID,
		grant.CompanyID,
		grant.ContractorID,
		grant.PeriodYear,
		grant.SharePriceUSD,
		grant.NumberOfShares,
		grant.VestedShares,
		grant.UnvestedShares,
		grant.Version,
		grant.CreatedAt,
		grant.UpdatedAt,
	).Error
	if db.IsDuplicateKeyErr(err) {
		return grantdomain.ErrMultipleGrants
	}
	return err
}
