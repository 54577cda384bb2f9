package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	companydomain "github.com/smallbiznis/payequity/internal/company/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) companydomain.Repository {
	return &repository{db: db}
}

func (r *repository) FindCompany(ctx context.Context, id snowflake.ID) (*companydomain.Company, error) {
	var company companydomain.Company
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, name, equity_enabled, fmv_per_share_usd, created_at, updated_at
		 FROM companies
		 WHERE id = ?`,
		id,
	).Scan(&company).Error
	if err != nil {
		return nil, err
	}
	if company.ID == 0 {
		return nil, nil
	}
	return &company, nil
}

func (r *repository) FindContractor(ctx context.Context, companyID, contractorID snowflake.ID) (*companydomain.Contractor, error) {
	var contractor companydomain.Contractor
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, company_id, user_id, name, equity_percentage_bps,
		        min_allowed_equity_bps, max_allowed_equity_bps, created_at, updated_at
		 FROM company_contractors
		 WHERE company_id = ? AND id = ?`,
		companyID,
		contractorID,
	).Scan(&contractor).Error
	if err != nil {
		return nil, err
	}
	if contractor.ID == 0 {
		return nil, nil
	}
	return &contractor, nil
}

func (r *repository) FindContractorByUser(ctx context.Context, companyID, userID snowflake.ID) (*companydomain.Contractor, error) {
	var contractor companydomain.Contractor
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, company_id, user_id, name, equity_percentage_bps,
		        min_allowed_equity_bps, max_allowed_equity_bps, created_at, updated_at
		 FROM company_contractors
		 WHERE company_id = ? AND user_id = ?`,
		companyID,
		userID,
	).Scan(&contractor).Error
	if err != nil {
		return nil, err
	}
	if contractor.ID == 0 {
		return nil, nil
	}
	return &contractor, nil
}

func (r *repository) IsAdministrator(ctx context.Context, companyID, userID snowflake.ID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM company_administrators WHERE company_id = ? AND user_id = ?`,
		companyID,
		userID,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) CreateCompany(ctx context.Context, company *companydomain.Company) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO companies (id, name, equity_enabled, fmv_per_share_usd, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		company.ID,
		company.Name,
		company.EquityEnabled,
		company.FMVPerShareUSD,
		company.CreatedAt,
		company.UpdatedAt,
	).Error
}

func (r *repository) CreateContractor(ctx context.Context, contractor *companydomain.Contractor) error {
	if err := contractor.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO company_contractors (
			id, company_id, user_id, name, equity_percentage_bps,
			min_allowed_equity_bps, max_allowed_equity_bps, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		contractor.ID,
		contractor.CompanyID,
		contractor.UserID,
		contractor.Name,
		contractor.EquityPercentageBps,
		contractor.MinAllowedEquityBps,
		contractor.MaxAllowedEquityBps,
		contractor.CreatedAt,
		contractor.UpdatedAt,
	).Error
}

func (r *repository) CreateAdministrator(ctx context.Context, admin *companydomain.Administrator) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO company_administrators (id, company_id, user_id, created_at) VALUES (?, ?, ?, ?)`,
		admin.ID,
		admin.CompanyID,
		admin.UserID,
		admin.CreatedAt,
	).Error
}
