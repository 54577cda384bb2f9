package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	alertdomain "github.com/smallbiznis/payequity/internal/alert/domain"
	"gorm.io/gorm"
)

type repository struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func NewRepository(db *gorm.DB, genID *snowflake.Node) alertdomain.Repository {
	return &repository{db: db, genID: genID}
}

func (r *repository) Insert(ctx context.Context, alert *alertdomain.Alert) error {
	if alert.ID == 0 {
		alert.ID = r.genID.Generate()
	}
	return r.db.WithContext(ctx).Create(alert).Error
}

// ListByCompany returns the newest alerts first.
func (r *repository) ListByCompany(ctx context.Context, companyID string, limit int) ([]alertdomain.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	var alerts []alertdomain.Alert
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("id DESC").
		Limit(limit).
		Find(&alerts).Error
	if err != nil {
		return nil, err
	}
	return alerts, nil
}
