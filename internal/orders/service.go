package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/diewo77/nimblestore/internal/catalog"
	"github.com/diewo77/nimblestore/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ItemRequest is one requested (product name, quantity) pair.
type ItemRequest struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

// Receipt is the result of a successful order placement.
type Receipt struct {
	OrderID   uint            `json:"order_id"`
	Reference string          `json:"reference"`
	Total     decimal.Decimal `json:"total"`
}

// Service coordinates order placement against the inventory ledger and
// drives the order state machine.
type Service struct {
	db    *gorm.DB
	cache *catalog.Cache
	log   *zap.Logger
}

// NewService creates an order service. cache may be nil; log may be nil.
func NewService(db *gorm.DB, cache *catalog.Cache, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, cache: cache, log: log}
}

// PlaceOrder validates the requested items, debits stock and creates the
// order, all inside a single transaction. Product rows are locked before
// sufficiency is checked, so concurrent placements over the same products
// serialize and can never oversell. Any failure rolls the whole order back;
// the database is left exactly as if the call had never happened.
func (s *Service) PlaceOrder(ctx context.Context, items []ItemRequest) (*Receipt, error) {
	if err := validateItems(items); err != nil {
		return nil, err
	}

	var receipt *Receipt
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		products, err := lockProducts(tx, items)
		if err != nil {
			return err
		}

		// Debit in input order so the first failing item is the one reported.
		for _, it := range items {
			if err := catalog.Debit(tx, products[it.Product], it.Quantity); err != nil {
				return err
			}
		}

		order := models.Order{State: models.OrderCreated}
		for _, it := range items {
			p := products[it.Product]
			order.Items = append(order.Items, models.OrderItem{
				ProductID: p.ID,
				Quantity:  it.Quantity,
				UnitPrice: p.Price,
			})
		}
		order.TotalCost = order.ComputeTotal()
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		receipt = &Receipt{OrderID: order.ID, Reference: order.Reference, Total: order.TotalCost}
		return nil
	})
	if err != nil {
		s.log.Warn("order rejected", zap.Int("items", len(items)), zap.Error(err))
		return nil, err
	}

	s.cache.Invalidate(ctx)
	s.log.Info("order placed",
		zap.Uint("order_id", receipt.OrderID),
		zap.Int("items", len(items)),
		zap.String("total", receipt.Total.StringFixed(2)))
	return receipt, nil
}

// Get returns an order with its items and products.
func (s *Service) Get(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Preload("Items.Product").First(&order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// MarkPaid transitions an order from Created to Paid.
func (s *Service) MarkPaid(ctx context.Context, id uint) (*models.Order, error) {
	return s.transition(ctx, id, (*models.Order).MarkPaid)
}

// MarkDelivered transitions an order from Paid to Delivered.
func (s *Service) MarkDelivered(ctx context.Context, id uint) (*models.Order, error) {
	return s.transition(ctx, id, (*models.Order).MarkDelivered)
}

func (s *Service) transition(ctx context.Context, id uint, apply func(*models.Order, time.Time) error) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if tx.Dialector.Name() == "postgres" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.First(&order, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := apply(&order, time.Now().UTC()); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
		}
		return tx.Save(&order).Error
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func validateItems(items []ItemRequest) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: at least one product must be included in the order", ErrInvalidRequest)
	}
	for i, it := range items {
		if strings.TrimSpace(it.Product) == "" {
			return fmt.Errorf("%w: item %d is missing a product name", ErrInvalidRequest, i)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: item %d has a non-positive quantity", ErrInvalidRequest, i)
		}
	}
	return nil
}

// lockProducts resolves every distinct requested product with an exclusive
// row lock. Locks are taken in name order so two orders over an overlapping
// product set cannot deadlock. Unavailability is reported for the first
// affected item in input order.
func lockProducts(tx *gorm.DB, items []ItemRequest) (map[string]*models.Product, error) {
	names := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if !seen[it.Product] {
			seen[it.Product] = true
			names = append(names, it.Product)
		}
	}
	sort.Strings(names)

	products := make(map[string]*models.Product, len(names))
	unavailable := make(map[string]bool)
	for _, name := range names {
		p, err := catalog.LookupActiveForUpdate(tx, name)
		var unavailErr *catalog.ProductUnavailableError
		if errors.As(err, &unavailErr) {
			unavailable[name] = true
			continue
		}
		if err != nil {
			return nil, err
		}
		products[name] = p
	}
	if len(unavailable) > 0 {
		for _, it := range items {
			if unavailable[it.Product] {
				return nil, &catalog.ProductUnavailableError{Name: it.Product}
			}
		}
	}
	return products, nil
}
