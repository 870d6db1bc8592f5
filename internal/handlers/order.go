package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/diewo77/nimblestore/internal/catalog"
	"github.com/diewo77/nimblestore/internal/httpx"
	"github.com/diewo77/nimblestore/internal/models"
	"github.com/diewo77/nimblestore/internal/orders"
)

// OrderHandler translates HTTP requests into order service calls.
type OrderHandler struct {
	svc *orders.Service
}

func NewOrderHandler(svc *orders.Service) *OrderHandler {
	return &OrderHandler{svc: svc}
}

// Create: POST /api/order – the body is a JSON array of {product, quantity}.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var items []orders.ItemRequest
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "request body must be a JSON array of {product, quantity}")
		return
	}

	receipt, err := h.svc.PlaceOrder(r.Context(), items)
	if err != nil {
		status := http.StatusInternalServerError
		detail := "an internal error occurred"
		var unavailable *catalog.ProductUnavailableError
		var insufficient *catalog.InsufficientStockError
		switch {
		case errors.Is(err, orders.ErrInvalidRequest):
			status, detail = http.StatusBadRequest, err.Error()
		case errors.As(err, &unavailable):
			status, detail = http.StatusNotFound, err.Error()
		case errors.As(err, &insufficient):
			status, detail = http.StatusBadRequest, err.Error()
		}
		httpx.JSONError(w, status, detail)
		return
	}

	httpx.JSON(w, http.StatusCreated, map[string]any{
		"order_id":  receipt.OrderID,
		"reference": receipt.Reference,
		"total":     receipt.Total.StringFixed(2),
	})
}

// View: GET /api/orders/{id} – the order with its items and products.
func (h *OrderHandler) View(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	order, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			httpx.JSONError(w, http.StatusNotFound, "order not found")
			return
		}
		httpx.JSONError(w, http.StatusInternalServerError, "failed to load order")
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

// Pay: POST /api/orders/{id}/pay – payment capture by an external collaborator.
func (h *OrderHandler) Pay(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.MarkPaid)
}

// Deliver: POST /api/orders/{id}/deliver – delivery confirmation.
func (h *OrderHandler) Deliver(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.MarkDelivered)
}

func (h *OrderHandler) transition(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, id uint) (*models.Order, error)) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	order, err := apply(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrNotFound):
			httpx.JSONError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, orders.ErrInvalidTransition):
			httpx.JSONError(w, http.StatusConflict, err.Error())
		default:
			httpx.JSONError(w, http.StatusInternalServerError, "failed to update order")
		}
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func orderID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid order id")
		return 0, false
	}
	return uint(id), true
}
