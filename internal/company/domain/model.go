package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/payequity/pkg/equitysplit"
)

// Company is the paying entity. Equity is only ever offered when EquityEnabled
// is set; FMVPerShareUSD is the fallback share price for contractors without
// a grant for the invoice year.
type Company struct {
	ID             snowflake.ID     `gorm:"primaryKey"`
	Name           string           `gorm:"type:text;not null"`
	EquityEnabled  bool             `gorm:"column:equity_enabled;not null;default:false"`
	FMVPerShareUSD *decimal.Decimal `gorm:"column:fmv_per_share_usd;type:numeric(20,10)"`
	CreatedAt      time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Company) TableName() string { return "companies" }

func (c *Company) EquityConfig() equitysplit.CompanyEquityConfig {
	return equitysplit.CompanyEquityConfig{
		CompanyID:              c.ID.String(),
		EquityEnabled:          c.EquityEnabled,
		FallbackFMVPerShareUSD: c.FMVPerShareUSD,
	}
}

type Administrator struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	CompanyID snowflake.ID `gorm:"column:company_id;not null;uniqueIndex:idx_company_admin_user"`
	UserID    snowflake.ID `gorm:"column:user_id;not null;uniqueIndex:idx_company_admin_user"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Administrator) TableName() string { return "company_administrators" }

// Contractor is a worker billing the company. The allowed range bounds the
// percentage the contractor may elect when accepting payment; with no range
// the stored EquityPercentageBps is fixed.
type Contractor struct {
	ID                  snowflake.ID `gorm:"primaryKey"`
	CompanyID           snowflake.ID `gorm:"column:company_id;not null;uniqueIndex:idx_company_contractor_user"`
	UserID              snowflake.ID `gorm:"column:user_id;not null;uniqueIndex:idx_company_contractor_user"`
	Name                string       `gorm:"type:text;not null;default:''"`
	EquityPercentageBps int64        `gorm:"column:equity_percentage_bps;not null;default:0"`
	MinAllowedEquityBps *int64       `gorm:"column:min_allowed_equity_bps"`
	MaxAllowedEquityBps *int64       `gorm:"column:max_allowed_equity_bps"`
	CreatedAt           time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt           time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Contractor) TableName() string { return "company_contractors" }

func (c *Contractor) Validate() error {
	if !validBps(c.EquityPercentageBps) {
		return ErrInvalidEquityPercentage
	}
	if (c.MinAllowedEquityBps == nil) != (c.MaxAllowedEquityBps == nil) {
		return ErrInvalidEquityRange
	}
	if c.MinAllowedEquityBps != nil {
		lo, hi := *c.MinAllowedEquityBps, *c.MaxAllowedEquityBps
		if !validBps(lo) || !validBps(hi) || lo > hi {
			return ErrInvalidEquityRange
		}
	}
	return nil
}

// ElectionOpen reports whether the contractor may choose a percentage.
func (c *Contractor) ElectionOpen() bool {
	return c.MinAllowedEquityBps != nil && c.MaxAllowedEquityBps != nil
}

// ResolveElection returns the percentage to apply when the contractor elects
// bps. A nil election defaults to the bottom of an open range, otherwise to
// the stored percentage.
func (c *Contractor) ResolveElection(bps *int64) (int64, error) {
	if bps == nil {
		if c.ElectionOpen() {
			return *c.MinAllowedEquityBps, nil
		}
		return c.EquityPercentageBps, nil
	}
	if !validBps(*bps) {
		return 0, ErrInvalidEquityPercentage
	}
	if !c.ElectionOpen() {
		if *bps != c.EquityPercentageBps {
			return 0, ErrElectionClosed
		}
		return *bps, nil
	}
	if *bps < *c.MinAllowedEquityBps || *bps > *c.MaxAllowedEquityBps {
		return 0, ErrElectionOutOfRange
	}
	return *bps, nil
}

func validBps(bps int64) bool {
	return bps >= 0 && bps <= equitysplit.MaxEquityPercentageBps
}
