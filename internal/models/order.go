package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderState represents the status of an order.
// Orders only move forward: Created -> Paid -> Delivered.
type OrderState string

const (
	OrderCreated   OrderState = "Created"
	OrderPaid      OrderState = "Paid"
	OrderDelivered OrderState = "Delivered"
)

// Order is the persisted record of a placed order and its line items.
// TotalCost is derived from the items and never set independently.
type Order struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Reference string    `gorm:"size:36;uniqueIndex;not null" json:"reference"`
	CreatedAt time.Time `json:"created_at"`

	TotalCost   decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total_cost"`
	State       OrderState      `gorm:"size:10;not null;default:'Created'" json:"state"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
	DeliveredAt *time.Time      `json:"delivered_at,omitempty"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// BeforeCreate assigns the public reference token.
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.Reference == "" {
		o.Reference = uuid.NewString()
	}
	if o.State == "" {
		o.State = OrderCreated
	}
	return nil
}

// ComputeTotal sums the line totals of all items.
func (o *Order) ComputeTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// MarkPaid transitions the order from Created to Paid and stamps PaidAt.
func (o *Order) MarkPaid(now time.Time) error {
	if o.State != OrderCreated {
		return fmt.Errorf("order %d: cannot pay from state %q", o.ID, o.State)
	}
	o.State = OrderPaid
	o.PaidAt = &now
	return nil
}

// MarkDelivered transitions the order from Paid to Delivered and stamps DeliveredAt.
func (o *Order) MarkDelivered(now time.Time) error {
	if o.State != OrderPaid {
		return fmt.Errorf("order %d: cannot deliver from state %q", o.ID, o.State)
	}
	o.State = OrderDelivered
	o.DeliveredAt = &now
	return nil
}

// OrderItem is one (product, quantity) pairing within an order.
// UnitPrice snapshots the product price at the time the order was placed.
type OrderItem struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	OrderID uint `gorm:"index;not null" json:"order_id"`

	ProductID uint     `gorm:"index;not null" json:"product_id"`
	Product   *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`

	Quantity  int             `gorm:"not null;check:quantity > 0" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
}

// LineTotal returns unit price times quantity.
func (item *OrderItem) LineTotal() decimal.Decimal {
	return item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
}
