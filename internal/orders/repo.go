package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/labstore-backend/internal/pricing"
	"github.com/angelmondragon/labstore-backend/pkg/db"
	"github.com/angelmondragon/labstore-backend/pkg/db/models"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type repository struct {
	db *gorm.DB
	tx txRunner
}

// NewRepository builds a GORM-backed order store. tx runs the read-modify-write
// of Update inside one transaction.
func NewRepository(db *gorm.DB, tx txRunner) Repository {
	return &repository{db: db, tx: tx}
}

func (r *repository) Create(ctx context.Context, order *Order) error {
	row := toModel(order)
	err := r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(row).Error
	})
	if db.IsUniqueViolation(err, "") {
		return fmt.Errorf("order %s: %w", order.ID, ErrDuplicate)
	}
	return err
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	row, err := findOrder(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	return fromModel(row), nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, fn func(*Order) error) (*Order, error) {
	var updated *Order
	err := r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		row, err := findOrder(ctx, lockForUpdate(tx), id)
		if err != nil {
			return err
		}
		draft := fromModel(row)
		if err := fn(draft); err != nil {
			return err
		}

		next := toModel(draft)
		if err := tx.WithContext(ctx).Omit(clause.Associations).Save(next).Error; err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Where("order_id = ?", id).Delete(&models.OrderLineItem{}).Error; err != nil {
			return err
		}
		if len(next.Items) > 0 {
			if err := tx.WithContext(ctx).Create(&next.Items).Error; err != nil {
				return err
			}
		}
		updated = draft
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Where("order_id = ?", id).Delete(&models.OrderLineItem{}).Error; err != nil {
			return err
		}
		res := tx.WithContext(ctx).Where("id = ?", id).Delete(&models.Order{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *repository) List(ctx context.Context, filter Filter) ([]*Order, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") })

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Priority != "" {
		query = query.Where("priority = ?", filter.Priority)
	}

	var rows []models.Order
	if err := query.Order("created_at DESC").Order("order_number DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	// Text search uses Go case folding so non-ASCII names match on every
	// dialect, as in the memory store.
	search := Filter{Query: filter.Query}
	out := make([]*Order, 0, len(rows))
	for i := range rows {
		order := fromModel(&rows[i])
		if order.matches(search) {
			out = append(out, order)
		}
	}
	return out, nil
}

func (r *repository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Order{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func findOrder(ctx context.Context, db *gorm.DB, id uuid.UUID) (*models.Order, error) {
	var row models.Order
	err := db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ?", id).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

// lockForUpdate adds SELECT ... FOR UPDATE where the dialect supports it.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector != nil && tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	}
	return tx
}

func toModel(o *Order) *models.Order {
	row := &models.Order{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		Customer: models.OrderCustomer{
			ID:         o.Customer.ID,
			Name:       o.Customer.Name,
			Email:      o.Customer.Email,
			Phone:      o.Customer.Phone,
			Address:    o.Customer.Address,
			City:       o.Customer.City,
			Country:    o.Customer.Country,
			PostalCode: o.Customer.PostalCode,
			Company:    o.Customer.Company,
		},
		Status:         o.Status,
		Priority:       o.Priority,
		Subtotal:       o.Subtotal,
		TaxAmount:      o.TaxAmount,
		ShippingCost:   o.ShippingCost,
		DiscountAmount: o.DiscountAmount,
		TotalAmount:    o.TotalAmount,
		Payment: models.OrderPayment{
			Method:        o.Payment.Method,
			Status:        o.Payment.Status,
			TransactionID: o.Payment.TransactionID,
			Amount:        o.Payment.Amount,
			Currency:      o.Payment.Currency,
		},
		Shipping: models.OrderShipping{
			Method:            o.Shipping.Method,
			Cost:              o.Shipping.Cost,
			EstimatedDelivery: utcPtr(o.Shipping.EstimatedDelivery),
			TrackingNumber:    o.Shipping.TrackingNumber,
			Carrier:           o.Shipping.Carrier,
		},
		Notes:             o.Notes,
		InternalNotes:     o.InternalNotes,
		Tags:              append([]string{}, o.Tags...),
		EstimatedDelivery: utcPtr(o.EstimatedDelivery),
		CreatedAt:         o.CreatedAt.UTC(),
		UpdatedAt:         o.UpdatedAt.UTC(),
	}
	row.Items = make([]models.OrderLineItem, 0, len(o.Items))
	for i, item := range o.Items {
		row.Items = append(row.Items, models.OrderLineItem{
			ID:        uuid.New(),
			OrderID:   o.ID,
			Position:  i,
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			CreatedAt: o.UpdatedAt.UTC(),
		})
	}
	return row
}

func fromModel(row *models.Order) *Order {
	o := &Order{
		ID:          row.ID,
		OrderNumber: row.OrderNumber,
		Customer: Customer{
			ID:         row.Customer.ID,
			Name:       row.Customer.Name,
			Email:      row.Customer.Email,
			Phone:      row.Customer.Phone,
			Address:    row.Customer.Address,
			City:       row.Customer.City,
			Country:    row.Customer.Country,
			PostalCode: row.Customer.PostalCode,
			Company:    row.Customer.Company,
		},
		Status:         row.Status,
		Priority:       row.Priority,
		Subtotal:       row.Subtotal,
		TaxAmount:      row.TaxAmount,
		ShippingCost:   row.ShippingCost,
		DiscountAmount: row.DiscountAmount,
		TotalAmount:    row.TotalAmount,
		Payment: PaymentInfo{
			Method:        row.Payment.Method,
			Status:        row.Payment.Status,
			TransactionID: row.Payment.TransactionID,
			Amount:        row.Payment.Amount,
			Currency:      row.Payment.Currency,
		},
		Shipping: ShippingInfo{
			Method:            row.Shipping.Method,
			Cost:              row.Shipping.Cost,
			EstimatedDelivery: utcPtr(row.Shipping.EstimatedDelivery),
			TrackingNumber:    row.Shipping.TrackingNumber,
			Carrier:           row.Shipping.Carrier,
		},
		Notes:             row.Notes,
		InternalNotes:     row.InternalNotes,
		Tags:              normalizeTags(row.Tags),
		EstimatedDelivery: utcPtr(row.EstimatedDelivery),
		CreatedAt:         row.CreatedAt.UTC(),
		UpdatedAt:         row.UpdatedAt.UTC(),
	}
	o.Items = make([]pricing.LineItem, 0, len(row.Items))
	for _, item := range row.Items {
		o.Items = append(o.Items, pricing.LineItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}
	return o
}
