package db

import (
	"github.com/diewo77/nimblestore/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Seed inserts a small development catalog. Existing products are left alone.
func Seed(db *gorm.DB) error {
	products := []models.Product{
		{Name: "Pan", Price: decimal.NewFromFloat(20.00), Quantity: 100, State: models.ProductActive},
		{Name: "Leche", Price: decimal.NewFromFloat(1.50), Quantity: 50, State: models.ProductActive},
		{Name: "Arroz", Price: decimal.NewFromFloat(3.25), Quantity: 200, State: models.ProductActive},
		{Name: "Cafe", Price: decimal.NewFromFloat(8.90), Quantity: 30, State: models.ProductInactive},
	}
	for _, p := range products {
		var existing models.Product
		err := db.Where("name = ?", p.Name).First(&existing).Error
		if err == gorm.ErrRecordNotFound {
			if err := db.Create(&p).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
	}
	return nil
}
