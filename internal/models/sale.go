package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale keeps a snapshot of the product at sale time so history survives
// price changes and product deletion. ProductID is not a foreign key.
type Sale struct {
	ID            uint            `gorm:"primaryKey"`
	ProductID     uint            `gorm:"index;not null"`
	ProductName   string          `gorm:"size:100;not null"`
	UnitPrice     decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Quantity      int             `gorm:"not null"`
	Total         decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Location      string          `gorm:"size:100;not null;index"`
	StockTracked  bool            `gorm:"not null;default:false"`
	Notes         string          `gorm:"size:500"`
	CreatedBy     uint            `gorm:"index"`
	CreatedByName string          `gorm:"size:100"`
	Date          time.Time       `gorm:"index;not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
