package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/labstore-backend/pkg/enums"
)

// Order is the persisted form of an order aggregate.
type Order struct {
	ID                uuid.UUID           `gorm:"column:id;type:text;primaryKey"`
	OrderNumber       string              `gorm:"column:order_number;not null"`
	Customer          OrderCustomer       `gorm:"embedded;embeddedPrefix:customer_"`
	Status            enums.OrderStatus   `gorm:"column:status;not null;default:'pending'"`
	Priority          enums.OrderPriority `gorm:"column:priority;not null;default:'medium'"`
	Subtotal          int64               `gorm:"column:subtotal;not null"`
	TaxAmount         int64               `gorm:"column:tax_amount;not null;default:0"`
	ShippingCost      int64               `gorm:"column:shipping_cost;not null;default:0"`
	DiscountAmount    int64               `gorm:"column:discount_amount;not null;default:0"`
	TotalAmount       int64               `gorm:"column:total_amount;not null"`
	Payment           OrderPayment        `gorm:"embedded;embeddedPrefix:payment_"`
	Shipping          OrderShipping       `gorm:"embedded;embeddedPrefix:shipping_"`
	Notes             string              `gorm:"column:notes;not null;default:''"`
	InternalNotes     string              `gorm:"column:internal_notes;not null;default:''"`
	Tags              []string            `gorm:"column:tags;type:text;serializer:json"`
	EstimatedDelivery *time.Time          `gorm:"column:estimated_delivery"`
	Items             []OrderLineItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime:false"`
}

// OrderCustomer is embedded in the orders table with the customer_ prefix.
type OrderCustomer struct {
	ID         uuid.UUID `gorm:"column:id;type:text;not null"`
	Name       string    `gorm:"column:name;not null"`
	Email      string    `gorm:"column:email;not null"`
	Phone      string    `gorm:"column:phone"`
	Address    string    `gorm:"column:address"`
	City       string    `gorm:"column:city"`
	Country    string    `gorm:"column:country"`
	PostalCode string    `gorm:"column:postal_code"`
	Company    *string   `gorm:"column:company"`
}

// OrderPayment is embedded in the orders table with the payment_ prefix.
type OrderPayment struct {
	Method        enums.PaymentMethod `gorm:"column:method;not null"`
	Status        enums.PaymentStatus `gorm:"column:status;not null;default:'pending'"`
	TransactionID *string             `gorm:"column:transaction_id"`
	Amount        int64               `gorm:"column:amount;not null"`
	Currency      enums.Currency      `gorm:"column:currency;not null;default:'XOF'"`
}

// OrderShipping is embedded in the orders table with the shipping_ prefix.
type OrderShipping struct {
	Method            enums.ShippingMethod `gorm:"column:method;not null"`
	Cost              int64                `gorm:"column:fee;not null;default:0"`
	EstimatedDelivery *time.Time           `gorm:"column:estimated_delivery"`
	TrackingNumber    *string              `gorm:"column:tracking_number"`
	Carrier           *string              `gorm:"column:carrier"`
}
