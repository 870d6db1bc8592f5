package main

import (
	"net/http"
	"time"

	"github.com/diewo77/nimblestore/internal/catalog"
	"github.com/diewo77/nimblestore/internal/handlers"
	"github.com/diewo77/nimblestore/internal/orders"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App is the main application handler that sets up all routes.
type App struct {
	mux *http.ServeMux
	db  *gorm.DB
	log *zap.Logger
}

// NewApp creates a new application with all routes configured.
func NewApp(db *gorm.DB, cache *catalog.Cache, log *zap.Logger) *App {
	app := &App{
		mux: http.NewServeMux(),
		db:  db,
		log: log,
	}

	ledger := catalog.NewLedger(db)
	orderSvc := orders.NewService(db, cache, log)

	ph := handlers.NewProductHandler(db, ledger, cache)
	oh := handlers.NewOrderHandler(orderSvc)

	// Catalog management
	app.mux.HandleFunc("GET /api/products", ph.List)
	app.mux.HandleFunc("POST /api/products", ph.Create)
	app.mux.HandleFunc("PUT /api/products/{id}", ph.Update)
	app.mux.HandleFunc("PATCH /api/products/{id}", ph.Update)

	// Orders
	app.mux.HandleFunc("POST /api/order", oh.Create)
	app.mux.HandleFunc("GET /api/orders/{id}", oh.View)
	app.mux.HandleFunc("POST /api/orders/{id}/pay", oh.Pay)
	app.mux.HandleFunc("POST /api/orders/{id}/deliver", oh.Deliver)

	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

// withLogging adds request logging middleware.
func withLogging(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}
