package orders

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/diewo77/nimblestore/internal/catalog"
	"github.com/diewo77/nimblestore/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB opens a file-backed database so concurrent transactions behave
// like they do in production: immediate transactions serialize writers and
// the busy timeout makes waiters block instead of erroring.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "orders.db") + "?_busy_timeout=10000&_txlock=immediate"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}, &models.Order{}, &models.OrderItem{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, name string, price float64, qty int, state models.ProductState) {
	t.Helper()
	p := models.Product{Name: name, Price: decimal.NewFromFloat(price), Quantity: qty, State: state}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed product %s: %v", name, err)
	}
}

func productQuantity(t *testing.T, db *gorm.DB, name string) int {
	t.Helper()
	var p models.Product
	if err := db.Where("name = ?", name).First(&p).Error; err != nil {
		t.Fatalf("load product %s: %v", name, err)
	}
	return p.Quantity
}

func orderCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	db.Model(&models.Order{}).Count(&n)
	return n
}

func TestPlaceOrder_Success(t *testing.T) {
	db := setupTestDB(t)
	seedProduct(t, db, "Pan", 20.00, 100, models.ProductActive)
	svc := NewService(db, nil, nil)

	receipt, err := svc.PlaceOrder(context.Background(), []ItemRequest{{Product: "Pan", Quantity: 2}})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if receipt.OrderID == 0 || receipt.Reference == "" {
		t.Errorf("incomplete receipt: %+v", receipt)
	}
	if got := receipt.Total.StringFixed(2); got != "40.00" {
		t.Errorf("total = %s, want 40.00", got)
	}
	if qty := productQuantity(t, db, "Pan"); qty != 98 {
		t.Errorf("Pan quantity = %d, want 98", qty)
	}

	order, err := svc.Get(context.Background(), receipt.OrderID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if order.State != models.OrderCreated {
		t.Errorf("state = %q, want %q", order.State, models.OrderCreated)
	}
	if len(order.Items) != 1 || order.Items[0].Quantity != 2 {
		t.Fatalf("unexpected items: %+v", order.Items)
	}
	if order.Items[0].Product == nil || order.Items[0].Product.Name != "Pan" {
		t.Errorf("expected product preloaded on item")
	}
	if !order.TotalCost.Equal(order.ComputeTotal()) {
		t.Errorf("stored total %s != computed %s", order.TotalCost, order.ComputeTotal())
	}
}

func TestPlaceOrder_TotalEqualsSumOfLineItems(t *testing.T) {
	db := setupTestDB(t)
	seedProduct(t, db, "Pan", 20.00, 100, models.ProductActive)
	seedProduct(t, db, "Leche", 1.50, 50, models.ProductActive)
	seedProduct(t, db, "Arroz", 3.25, 200, models.ProductActive)
	svc := NewService(db, nil, nil)

	receipt, err := svc.PlaceOrder(context.Background(), []ItemRequest{
		{Product: "Pan", Quantity: 3},
		{Product: "Leche", Quantity: 4},
		{Product: "Arroz", Quantity: 2},
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	// 3*20.00 + 4*1.50 + 2*3.25 = 72.50
	if got := receipt.Total.StringFixed(2); got != "72.50" {
		t.Errorf("total = %s, want 72.50", got)
	}
}

func TestPlaceOrder_DuplicateProductInRequest(t *testing.T) {
	db := setupTestDB(t)
	seedProduct(t, db, "Pan", 20.00, 10, models.ProductActive)
	svc := NewService(db, nil, nil)

	receipt, err := svc.PlaceOrder(context.Background(), []ItemRequest{
		{Product: "Pan", Quantity: 4},
		{Product: "Pan", Quantity: 3},
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if got := receipt.Total.StringFixed(2); got != "140.00" {
		t.Errorf("total = %s, want 140.00", got)
	}
	if qty := productQuantity(t, db, "Pan"); qty != 3 {
		t.Errorf("Pan quantity = %d, want 3", qty)
	}
}

func TestPlaceOrder_InsufficientStock(t *testing.T) {
	db := setupTestDB(t)
	seedProduct(t, db, "Leche", 1.50, 5, models.ProductActive)
	svc := NewService(db, nil, nil)

	_, err := svc.PlaceOrder(context.Background(), []ItemRequest{{Product: "Leche", Quantity: 10}})
	var insufficient *catalog.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if insufficient.Name != "Leche" || insufficient.Requested != 10 || insufficient.Available != 5 {
		t.Errorf("unexpected error details: %+v", insufficient)
	}
	if qty := productQuantity(t, db, "Leche"); qty != 5 {
		t.Errorf("Leche quantity = %d, want 5", qty)
	}
	if n := orderCount(t, db); n != 0 {
		t.Errorf("order count = %d, want 0", n)
	}
}

func TestPlaceOrder_ProductUnavailable(t *testing.T) {
	db := setupTestDB(t)
	seedProduct(t, db, "Cafe", 8.90, 30, models.ProductInactive)
	svc := NewService(db, nil, nil)

	for _, name := range []string{"Ghost", "Cafe"} {
		_, err := svc.PlaceOrder(context.Background(), []ItemRequest{{Product: name, Quantity: 1}})
		var unavailable *catalog.ProductUnavailableError
		if !errors.As(err, &unavailable) {
			t.Errorf("PlaceOrder(%s): expected ProductUnavailableError, got %v", name, err)
			continue
		}
		if unavailable.Name != name {
			t.Errorf("error names %q, want %q", unavailable.Name, name)
		}
	}
	if n := orderCount(t, db); n != 0 {
		t.Errorf("order count = %d, want 0", n)
	}
}

func TestPlaceOrder_NoPartialDebit(t *testing.T) {
	db := setupTestDB(t)
	seedProduct(t, db, "Pan", 20.00, 100, models.ProductActive)
	seedProduct(t, db, "Leche", 1.50, 5, models.ProductActive)
	svc := NewService(db, nil, nil)

	// Pan alone would be satisfiable; Leche fails and the whole order aborts.
	_, err := svc.PlaceOrder(context.Background(), []ItemRequest{
		{Product: "Pan", Quantity: 2},
		{Product: "Leche", Quantity: 10},
	})
	var insufficient *catalog.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if insufficient.Name != "Leche" {
		t.Errorf("failing item = %q, want Leche", insufficient.Name)
	}
	if qty := productQuantity(t, db, "Pan"); qty != 100 {
		t.Errorf("Pan quantity = %d, want 100 (no partial debit)", qty)
	}
	if qty := productQuantity(t, db, "Leche"); qty != 5 {
		t.Errorf("Leche quantity = %d, want 5", qty)
	}
	if n := orderCount(t, db); n != 0 {
		t.Errorf("order count = %d, want 0", n)
	}
}

func TestPlaceOrder_FirstFailingItemReported(t *testing.T) {
	db := setupTestDB(t)
	seedProduct(t, db, "Pan", 20.00, 1, models.ProductActive)
	seedProduct(t, db, "Leche", 1.50, 1, models.ProductActive)
	svc := NewService(db, nil, nil)

	// Both items are short; the first in input order is the one reported,
	// regardless of lock order.
	_, err := svc.PlaceOrder(context.Background(), []ItemRequest{
		{Product: "Pan", Quantity: 5},
		{Product: "Leche", Quantity: 5},
	})
	var insufficient *catalog.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if insufficient.Name != "Pan" {
		t.Errorf("failing item = %q, want Pan", insufficient.Name)
	}
}

func TestPlaceOrder_InvalidRequest(t *testing.T) {
	db := setupTestDB(t)
	seedProduct(t, db, "Pan", 20.00, 100, models.ProductActive)
	svc := NewService(db, nil, nil)

	tests := []struct {
		name  string
		items []ItemRequest
	}{
		{"empty list", nil},
		{"missing product name", []ItemRequest{{Product: "", Quantity: 1}}},
		{"blank product name", []ItemRequest{{Product: "   ", Quantity: 1}}},
		{"zero quantity", []ItemRequest{{Product: "Pan", Quantity: 0}}},
		{"negative quantity", []ItemRequest{{Product: "Pan", Quantity: -3}}},
		{"valid item then invalid", []ItemRequest{{Product: "Pan", Quantity: 1}, {Product: "Pan", Quantity: 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.PlaceOrder(context.Background(), tt.items)
			if !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
	if n := orderCount(t, db); n != 0 {
		t.Errorf("order count = %d, want 0", n)
	}
	if qty := productQuantity(t, db, "Pan"); qty != 100 {
		t.Errorf("Pan quantity = %d, want 100", qty)
	}
}

func TestPlaceOrder_ConcurrentNoOversell(t *testing.T) {
	db := setupTestDB(t)
	seedProduct(t, db, "Arroz", 3.25, 100, models.ProductActive)
	svc := NewService(db, nil, nil)

	const workers = 2
	results := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.PlaceOrder(context.Background(), []ItemRequest{{Product: "Arroz", Quantity: 60}})
			results[i] = err
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
			continue
		}
		var insufficient *catalog.InsufficientStockError
		if !errors.As(err, &insufficient) {
			t.Fatalf("loser failed with unexpected error: %v", err)
		}
		if insufficient.Available != 40 && insufficient.Available != 100 {
			t.Errorf("reported available = %d, want 40 or 100", insufficient.Available)
		}
	}
	if successes != 1 {
		t.Fatalf("successes = %d, want exactly 1", successes)
	}
	if qty := productQuantity(t, db, "Arroz"); qty != 40 {
		t.Errorf("Arroz quantity = %d, want 40", qty)
	}
	if qty := productQuantity(t, db, "Arroz"); qty < 0 {
		t.Errorf("quantity went negative: %d", qty)
	}
	if n := orderCount(t, db); n != 1 {
		t.Errorf("order count = %d, want 1", n)
	}
}

func TestTransitions(t *testing.T) {
	db := setupTestDB(t)
	seedProduct(t, db, "Pan", 20.00, 100, models.ProductActive)
	svc := NewService(db, nil, nil)

	receipt, err := svc.PlaceOrder(context.Background(), []ItemRequest{{Product: "Pan", Quantity: 1}})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	// Deliver before pay is rejected.
	if _, err := svc.MarkDelivered(context.Background(), receipt.OrderID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("MarkDelivered from Created: expected ErrInvalidTransition, got %v", err)
	}

	paid, err := svc.MarkPaid(context.Background(), receipt.OrderID)
	if err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if paid.State != models.OrderPaid || paid.PaidAt == nil {
		t.Errorf("after MarkPaid: %+v", paid)
	}

	// Paying twice is rejected.
	if _, err := svc.MarkPaid(context.Background(), receipt.OrderID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second MarkPaid: expected ErrInvalidTransition, got %v", err)
	}

	delivered, err := svc.MarkDelivered(context.Background(), receipt.OrderID)
	if err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	if delivered.State != models.OrderDelivered || delivered.DeliveredAt == nil {
		t.Errorf("after MarkDelivered: %+v", delivered)
	}
	if delivered.PaidAt == nil {
		t.Error("PaidAt lost on delivery")
	} else if d := delivered.PaidAt.Sub(*paid.PaidAt); d < -time.Millisecond || d > time.Millisecond {
		t.Errorf("PaidAt changed on delivery: %v vs %v", delivered.PaidAt, paid.PaidAt)
	}
}

func TestTransitions_NotFound(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil, nil)

	if _, err := svc.Get(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.MarkPaid(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkPaid: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.MarkDelivered(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkDelivered: expected ErrNotFound, got %v", err)
	}
}
