package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type AlertStatus string

const (
	AlertStatusSent    AlertStatus = "sent"
	AlertStatusFailed  AlertStatus = "failed"
	AlertStatusDropped AlertStatus = "dropped"
)

// Alert is the delivery history of one split failure notification.
type Alert struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	CompanyID    string       `gorm:"size:32;not null;index"`
	ContractorID string       `gorm:"size:32;not null"`
	InvoiceID    string       `gorm:"size:32"`
	InvoiceYear  int          `gorm:"not null"`
	Kind         string       `gorm:"size:64;not null"`
	Class        string       `gorm:"size:32;not null"`
	Source       string       `gorm:"size:32;not null"`
	Detail       string       `gorm:"type:text"`
	Channel      string       `gorm:"size:128"`
	Status       AlertStatus  `gorm:"size:16;not null"`
	Reason       string       `gorm:"size:255"`
	CreatedAt    time.Time    `gorm:"autoCreateTime"`
}

func (Alert) TableName() string { return "equity_alerts" }

type Repository interface {
	Insert(ctx context.Context, alert *Alert) error
	ListByCompany(ctx context.Context, companyID string, limit int) ([]Alert, error)
}
