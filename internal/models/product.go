package models

import (
	"sort"
	"time"

	"gym-backend/internal/stock"

	"github.com/shopspring/decimal"
)

type ProductType string

const (
	ProductTypeConsumable ProductType = "consumable"
	ProductTypeEquipment  ProductType = "equipment"
	ProductTypeClothing   ProductType = "clothing"
	ProductTypeClass      ProductType = "class" // service, no physical stock
)

func (t ProductType) Valid() bool {
	switch t {
	case ProductTypeConsumable, ProductTypeEquipment, ProductTypeClothing, ProductTypeClass:
		return true
	}
	return false
}

// StockTracked reports whether sales of this type consume a stock ledger.
func (t ProductType) StockTracked() bool {
	return t != ProductTypeClass
}

type Product struct {
	ID                uint            `gorm:"primaryKey"`
	Name              string          `gorm:"size:100;not null;unique"`
	Description       string          `gorm:"size:500"`
	Price             decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Type              ProductType     `gorm:"size:20;not null;index"`
	LowStockThreshold int             `gorm:"not null;default:0"` // 0 = no alerts
	Stock             []ProductStock  `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ProductStock is one entry of a product's stock ledger.
// Position keeps the ledger's enumeration order stable.
type ProductStock struct {
	ID        uint   `gorm:"primaryKey"`
	ProductID uint   `gorm:"not null;uniqueIndex:idx_product_location"`
	Location  string `gorm:"size:100;not null;uniqueIndex:idx_product_location"`
	Quantity  int    `gorm:"not null;default:0;check:chk_product_stocks_quantity,quantity >= 0"`
	Position  int    `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Ledger returns the product's stock rows as an ordered ledger.
func (p *Product) Ledger() stock.Ledger {
	rows := make([]ProductStock, len(p.Stock))
	copy(rows, p.Stock)
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Position != rows[j].Position {
			return rows[i].Position < rows[j].Position
		}
		return rows[i].ID < rows[j].ID
	})
	l := make(stock.Ledger, 0, len(rows))
	for _, r := range rows {
		l = append(l, stock.Level{Location: r.Location, Quantity: r.Quantity})
	}
	return l
}
