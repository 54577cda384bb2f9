package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/payequity/pkg/equitysplit"
)

// EquityGrant is the pool of options a contractor can be paid from in a
// given year. Version increments on every reservation so concurrent
// settlements cannot both spend the same unvested shares.
type EquityGrant struct {
	ID             snowflake.ID    `gorm:"primaryKey"`
	CompanyID      snowflake.ID    `gorm:"column:company_id;not null;index"`
	ContractorID   snowflake.ID    `gorm:"column:contractor_id;not null;uniqueIndex:equity_grants_contractor_year_key"`
	PeriodYear     int             `gorm:"column:period_year;not null;uniqueIndex:equity_grants_contractor_year_key"`
	SharePriceUSD  decimal.Decimal `gorm:"column:share_price_usd;type:numeric(20,10);not null"`
	NumberOfShares int64           `gorm:"column:number_of_shares;not null"`
	VestedShares   int64           `gorm:"column:vested_shares;not null;default:0"`
	UnvestedShares int64           `gorm:"column:unvested_shares;not null"`
	Version        int64           `gorm:"column:version;not null;default:1"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (EquityGrant) TableName() string { return "equity_grants" }

func (g *EquityGrant) Validate() error {
	if g.CompanyID == 0 || g.ContractorID == 0 || g.PeriodYear <= 0 {
		return ErrInvalidGrant
	}
	if !g.SharePriceUSD.IsPositive() {
		return ErrInvalidGrant
	}
	if g.NumberOfShares < 0 || g.VestedShares < 0 || g.UnvestedShares < 0 {
		return ErrInvalidGrant
	}
	if g.VestedShares+g.UnvestedShares > g.NumberOfShares {
		return ErrInvalidGrant
	}
	return nil
}

// Unvested converts the grant into calculator input. A nil grant stays nil.
func (g *EquityGrant) Unvested() *equitysplit.UnvestedGrant {
	if g == nil {
		return nil
	}
	return &equitysplit.UnvestedGrant{
		ID:             g.ID.String(),
		SharePriceUSD:  g.SharePriceUSD,
		UnvestedShares: g.UnvestedShares,
	}
}
