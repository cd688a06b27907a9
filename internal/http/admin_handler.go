package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"storefront/internal/domain"
	"storefront/internal/service"
)

type AdminHandler struct {
	orders *service.OrderService
}

func NewAdminHandler(orders *service.OrderService) *AdminHandler {
	return &AdminHandler{orders: orders}
}

type AdminOrderPatchDTO struct {
	Status        *string `json:"status,omitempty"`
	PaymentStatus *string `json:"payment_status,omitempty"`
}

// PatchOrder applies an admin transition: either a status change or a payment
// status change, one per request.
func (h *AdminHandler) PatchOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order id must be a UUID")
		return
	}

	var req AdminOrderPatchDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	switch {
	case req.Status != nil && req.PaymentStatus != nil:
		respondError(w, http.StatusBadRequest, "invalid_request", "set either status or payment_status, not both")
	case req.Status != nil:
		order, err := h.orders.SetStatus(r.Context(), orderID, domain.OrderStatus(*req.Status))
		if err != nil {
			handleServiceError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, orderResponse(order))
	case req.PaymentStatus != nil:
		order, err := h.orders.SetPaymentStatus(r.Context(), orderID, domain.PaymentStatus(*req.PaymentStatus))
		if err != nil {
			handleServiceError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, orderResponse(order))
	default:
		respondError(w, http.StatusBadRequest, "invalid_request", "nothing to update")
	}
}
