package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderLineItem captures the snapshot of each item within an order.
type OrderLineItem struct {
	ID        uuid.UUID `gorm:"column:id;type:text;primaryKey"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:text;not null"`
	Position  int       `gorm:"column:position;not null"`
	ProductID string    `gorm:"column:product_id;not null"`
	Name      string    `gorm:"column:name;not null"`
	UnitPrice int64     `gorm:"column:unit_price;not null"`
	Quantity  int64     `gorm:"column:quantity;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime:false"`
}
