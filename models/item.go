package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is an inventory material with a low-stock threshold
type Item struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	ItemCode          string          `gorm:"uniqueIndex;not null" json:"item_code"`
	Name              string          `gorm:"not null" json:"name"`
	Description       string          `gorm:"type:text" json:"description"`
	Unit              string          `gorm:"not null" json:"unit"`
	StockQuantity     int             `gorm:"not null" json:"stock_quantity"`
	MinStockThreshold int             `gorm:"not null" json:"min_stock_threshold"`
	UnitPrice         decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"unit_price"`
	IsActive          bool            `gorm:"not null;index" json:"is_active"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// TableName specifies the table name for the Item model
func (Item) TableName() string {
	return "items"
}

// IsLowStock reports whether an active item is at or below its threshold
func (i *Item) IsLowStock() bool {
	return i.IsActive && i.StockQuantity <= i.MinStockThreshold
}
