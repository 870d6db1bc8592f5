package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/diewo77/nimblestore/internal/catalog"
	"github.com/diewo77/nimblestore/internal/httpx"
	"github.com/diewo77/nimblestore/internal/models"
	"github.com/diewo77/nimblestore/internal/validation"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductHandler serves the catalog management API.
type ProductHandler struct {
	db     *gorm.DB
	ledger *catalog.Ledger
	cache  *catalog.Cache
}

func NewProductHandler(db *gorm.DB, ledger *catalog.Ledger, cache *catalog.Cache) *ProductHandler {
	return &ProductHandler{db: db, ledger: ledger, cache: cache}
}

// productView is the listing shape: name, price and available quantity.
type productView struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// List: GET /api/products – all Active products.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.cache.ActiveProducts(r.Context(), h.ledger.ListActive)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	views := make([]productView, 0, len(products))
	for _, p := range products {
		views = append(views, productView{Name: p.Name, Price: p.Price, Quantity: p.Quantity})
	}
	httpx.JSON(w, http.StatusOK, views)
}

type productRequest struct {
	Name     *string          `json:"name"`
	Price    *decimal.Decimal `json:"price"`
	Quantity *int             `json:"quantity"`
	State    *string          `json:"state"`
}

// Create: POST /api/products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	product := models.Product{State: models.ProductActive}
	if req.Name != nil {
		product.Name = strings.TrimSpace(*req.Name)
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.Quantity != nil {
		product.Quantity = *req.Quantity
	}
	if req.State != nil {
		product.State = models.ProductState(*req.State)
	}

	v := make(validation.Violations)
	validation.Required("name", product.Name, v)
	validation.NonNegativeDecimal("price", product.Price, v)
	validation.NonNegativeInt("quantity", product.Quantity, v)
	validation.OneOf("state", string(product.State), []string{string(models.ProductActive), string(models.ProductInactive)}, v)
	if !v.Empty() {
		httpx.JSON(w, http.StatusBadRequest, map[string]any{"detail": "validation failed", "errors": v, "total": 0})
		return
	}

	if err := h.db.WithContext(r.Context()).Create(&product).Error; err != nil {
		if strings.Contains(err.Error(), "duplicate") || strings.Contains(err.Error(), "UNIQUE") {
			httpx.JSONError(w, http.StatusConflict, "a product with that name already exists")
			return
		}
		httpx.JSONError(w, http.StatusInternalServerError, "failed to create product")
		return
	}
	h.cache.Invalidate(r.Context())
	httpx.JSON(w, http.StatusCreated, product)
}

// Update: PUT/PATCH /api/products/{id} – partial update.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var product models.Product
	if err := h.db.WithContext(r.Context()).First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.JSONError(w, http.StatusNotFound, "product not found")
			return
		}
		httpx.JSONError(w, http.StatusInternalServerError, "failed to load product")
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name != nil {
		product.Name = strings.TrimSpace(*req.Name)
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.Quantity != nil {
		product.Quantity = *req.Quantity
	}
	if req.State != nil {
		product.State = models.ProductState(*req.State)
	}

	v := make(validation.Violations)
	validation.Required("name", product.Name, v)
	validation.NonNegativeDecimal("price", product.Price, v)
	validation.NonNegativeInt("quantity", product.Quantity, v)
	validation.OneOf("state", string(product.State), []string{string(models.ProductActive), string(models.ProductInactive)}, v)
	if !v.Empty() {
		httpx.JSON(w, http.StatusBadRequest, map[string]any{"detail": "validation failed", "errors": v, "total": 0})
		return
	}

	if err := h.db.WithContext(r.Context()).Save(&product).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed to update product")
		return
	}
	h.cache.Invalidate(r.Context())
	httpx.JSON(w, http.StatusOK, product)
}
