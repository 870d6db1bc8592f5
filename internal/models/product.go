package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductState represents the lifecycle state of a product.
type ProductState string

const (
	ProductActive   ProductState = "Active"
	ProductInactive ProductState = "Inactive"
)

// Product is a catalog entry holding the live stock count.
// Name is the unique lookup key used by order placement.
type Product struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name     string          `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Price    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Quantity int             `gorm:"not null;default:0;check:quantity >= 0" json:"quantity"`
	State    ProductState    `gorm:"size:8;not null;default:'Active'" json:"state"`
}

// IsActive returns true if the product can be sold.
func (p *Product) IsActive() bool {
	return p.State == ProductActive
}

// HasStock returns true if the requested quantity is currently available.
func (p *Product) HasStock(qty int) bool {
	return qty <= p.Quantity
}
