package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"storefront/internal/domain"
	"storefront/internal/service"
)

type OrdersHandler struct {
	checkout *service.CheckoutService
	orders   *service.OrderService
}

func NewOrdersHandler(checkout *service.CheckoutService, orders *service.OrderService) *OrdersHandler {
	return &OrdersHandler{checkout: checkout, orders: orders}
}

type PlaceOrderRequestDTO struct {
	AddressID     uuid.UUID `json:"address_id"`
	PaymentMethod string    `json:"payment_method"`
	Notes         string    `json:"notes,omitempty"`
}

type OrderActionRequestDTO struct {
	Action string `json:"action"`
}

type OrderItemDTO struct {
	ProductID   int64   `json:"product_id"`
	VariantID   *int64  `json:"variant_id,omitempty"`
	ProductName string  `json:"product_name"`
	SKU         string  `json:"sku"`
	UnitPrice   float64 `json:"unit_price"`
	Quantity    int     `json:"quantity"`
	LineTotal   float64 `json:"line_total"`
}

type OrderResponseDTO struct {
	ID            uuid.UUID      `json:"id"`
	Number        string         `json:"number"`
	Status        string         `json:"status"`
	PaymentMethod string         `json:"payment_method"`
	PaymentStatus string         `json:"payment_status"`
	Subtotal      float64        `json:"subtotal"`
	Tax           float64        `json:"tax"`
	Shipping      float64        `json:"shipping"`
	Discount      float64        `json:"discount"`
	Total         float64        `json:"total"`
	Notes         string         `json:"notes,omitempty"`
	Items         []OrderItemDTO `json:"items"`
	CreatedAt     time.Time      `json:"created_at"`
}

func orderResponse(order *domain.Order) *OrderResponseDTO {
	resp := &OrderResponseDTO{
		ID:            order.ID,
		Number:        order.Number,
		Status:        string(order.Status),
		PaymentMethod: string(order.PaymentMethod),
		PaymentStatus: string(order.PaymentStatus),
		Subtotal:      order.Subtotal,
		Tax:           order.Tax,
		Shipping:      order.Shipping,
		Discount:      order.Discount,
		Total:         order.Total,
		Notes:         order.Notes,
		Items:         make([]OrderItemDTO, 0, len(order.Items)),
		CreatedAt:     order.CreatedAt,
	}
	for _, it := range order.Items {
		resp.Items = append(resp.Items, OrderItemDTO{
			ProductID:   it.ProductID,
			VariantID:   it.VariantID,
			ProductName: it.ProductName,
			SKU:         it.SKU,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
			LineTotal:   it.LineTotal,
		})
	}
	return resp
}

// Create runs checkout for the caller's cart.
func (h *OrdersHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	var req PlaceOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.AddressID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "invalid_address", "address_id is required")
		return
	}

	order, err := h.checkout.PlaceOrder(r.Context(), userID, service.PlaceOrderInput{
		AddressID:     req.AddressID,
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		Notes:         req.Notes,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, orderResponse(order))
}

func (h *OrdersHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order id must be a UUID")
		return
	}

	order, err := h.orders.GetOrder(r.Context(), userID, isAdmin(r.Context()), orderID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orderResponse(order))
}

func (h *OrdersHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	orders, err := h.orders.ListOrders(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	resp := make([]*OrderResponseDTO, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, orderResponse(o))
	}
	respondJSON(w, http.StatusOK, resp)
}

// Patch handles customer actions on an order. Only cancellation exists.
func (h *OrdersHandler) Patch(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order id must be a UUID")
		return
	}

	var req OrderActionRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Action != "cancel" {
		respondError(w, http.StatusBadRequest, "invalid_action", "unsupported action")
		return
	}

	order, err := h.orders.Cancel(r.Context(), userID, orderID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orderResponse(order))
}
