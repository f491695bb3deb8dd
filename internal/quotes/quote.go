// Package quotes builds customer-facing quotations from a cart snapshot and
// records each one as a pending order.
package quotes

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/labstore-backend/internal/pricing"
)

// Contact is the storefront quote form.
type Contact struct {
	FirstName     string `json:"first_name" validate:"required"`
	LastName      string `json:"last_name" validate:"required"`
	Email         string `json:"email" validate:"required,mailbox"`
	Phone         string `json:"phone" validate:"required"`
	Establishment string `json:"establishment" validate:"required"`
	City          string `json:"city" validate:"required"`
	Address       string `json:"address"`
	Country       string `json:"country"`
}

// FullName joins first and last name.
func (c Contact) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

func (c Contact) trimmed() Contact {
	return Contact{
		FirstName:     strings.TrimSpace(c.FirstName),
		LastName:      strings.TrimSpace(c.LastName),
		Email:         strings.TrimSpace(c.Email),
		Phone:         strings.TrimSpace(c.Phone),
		Establishment: strings.TrimSpace(c.Establishment),
		City:          strings.TrimSpace(c.City),
		Address:       strings.TrimSpace(c.Address),
		Country:       strings.TrimSpace(c.Country),
	}
}

// Request is a quote submission: the cart snapshot plus the contact form.
type Request struct {
	Contact Contact            `json:"contact"`
	Items   []pricing.LineItem `json:"items"`
	Message string             `json:"message"`
}

// Quote is a disposable projection; the order it produced is the durable record.
type Quote struct {
	Number      string             `json:"quote_number"`
	Date        time.Time          `json:"date"`
	Contact     Contact            `json:"contact"`
	Items       []pricing.LineItem `json:"items"`
	Totals      pricing.Breakdown  `json:"totals"`
	ValidUntil  time.Time          `json:"valid_until"`
	Message     string             `json:"message,omitempty"`
	OrderID     uuid.UUID          `json:"order_id"`
	OrderNumber string             `json:"order_number"`
}

// NumberGenerator issues display numbers of the form PREFIX-YYYYMMDD-NNN.
// Two quotes on the same day may share a number.
type NumberGenerator struct {
	Prefix string
	IntN   func(n int) int
}

func (g NumberGenerator) Next(at time.Time) string {
	intn := g.IntN
	if intn == nil {
		intn = rand.IntN
	}
	return fmt.Sprintf("%s-%s-%03d", g.Prefix, at.Format("20060102"), intn(1000))
}
