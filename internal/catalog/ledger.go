package catalog

import (
	"context"
	"errors"

	"github.com/diewo77/nimblestore/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ledger is the authoritative source of current stock per product.
// Mutations go through Debit only; catalog management edits rows directly.
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// LookupActive resolves an Active product by name.
// Absent and Inactive products both surface as ProductUnavailableError.
func (l *Ledger) LookupActive(ctx context.Context, name string) (*models.Product, error) {
	return LookupActive(l.db.WithContext(ctx), name)
}

// LookupActive resolves an Active product by name on the given handle,
// which may be a transaction.
func LookupActive(tx *gorm.DB, name string) (*models.Product, error) {
	var product models.Product
	err := tx.Where("name = ? AND state = ?", name, models.ProductActive).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &ProductUnavailableError{Name: name}
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// LookupActiveForUpdate is LookupActive with an exclusive row lock, for use
// inside a transaction. SQLite has no FOR UPDATE; its single-writer model
// combined with immediate transactions gives the same guarantee there.
func LookupActiveForUpdate(tx *gorm.DB, name string) (*models.Product, error) {
	if tx.Dialector.Name() == "postgres" {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return LookupActive(tx, name)
}

// Debit decreases the product's stock by qty within the given transaction.
// The statement is guarded so stock can never go negative: if the live
// quantity is below qty nothing is mutated and InsufficientStockError is
// returned with the quantity observed at that point.
func Debit(tx *gorm.DB, product *models.Product, qty int) error {
	res := tx.Model(&models.Product{}).
		Where("id = ? AND quantity >= ?", product.ID, qty).
		UpdateColumn("quantity", gorm.Expr("quantity - ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var live models.Product
		if err := tx.Select("quantity").First(&live, product.ID).Error; err != nil {
			return err
		}
		return &InsufficientStockError{Name: product.Name, Requested: qty, Available: live.Quantity}
	}
	product.Quantity -= qty
	return nil
}

// ListActive returns all Active products ordered by name.
func (l *Ledger) ListActive(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := l.db.WithContext(ctx).
		Where("state = ?", models.ProductActive).
		Order("name").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}
