package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"storefront/internal/domain"
	"storefront/internal/pricing"
	"storefront/internal/service"
)

type CartHandler struct {
	carts *service.CartService
}

func NewCartHandler(carts *service.CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

type AddLineRequestDTO struct {
	ProductID int64  `json:"product_id"`
	VariantID *int64 `json:"variant_id,omitempty"`
	Quantity  int    `json:"quantity"`
}

type SetQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type MergeRequestDTO struct {
	Lines []domain.GuestLine `json:"lines"`
}

type CartLineDTO struct {
	ID        uuid.UUID `json:"id"`
	ProductID int64     `json:"product_id"`
	VariantID *int64    `json:"variant_id,omitempty"`
	Quantity  int       `json:"quantity"`
}

type CartResponseDTO struct {
	ID                   uuid.UUID             `json:"id"`
	Lines                []CartLineDTO         `json:"lines"`
	Totals               pricing.Totals        `json:"totals"`
	FreeShippingEligible bool                  `json:"free_shipping_eligible"`
	Clamped              bool                  `json:"clamped,omitempty"`
	Warnings             []domain.MergeWarning `json:"warnings,omitempty"`
}

func (h *CartHandler) cartResponse(r *http.Request, cart *domain.Cart) (*CartResponseDTO, error) {
	totals, err := h.carts.Totals(r.Context(), cart)
	if err != nil {
		return nil, err
	}
	resp := &CartResponseDTO{
		ID:                   cart.ID,
		Lines:                make([]CartLineDTO, 0, len(cart.Lines)),
		Totals:               totals,
		FreeShippingEligible: pricing.FreeShippingEligible(totals.Subtotal),
	}
	for _, l := range cart.Lines {
		resp.Lines = append(resp.Lines, CartLineDTO{
			ID:        l.ID,
			ProductID: l.ProductID,
			VariantID: l.VariantID,
			Quantity:  l.Quantity,
		})
	}
	return resp, nil
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	cart, err := h.carts.GetCart(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	resp, err := h.cartResponse(r, cart)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *CartHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	var req AddLineRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}

	cart, clamped, err := h.carts.AddLine(r.Context(), userID, req.ProductID, req.VariantID, req.Quantity)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	resp, err := h.cartResponse(r, cart)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	resp.Clamped = clamped
	respondJSON(w, http.StatusCreated, resp)
}

func (h *CartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	lineID, err := uuid.Parse(chi.URLParam(r, "lineID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_line_id", "line id must be a UUID")
		return
	}

	var req SetQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	cart, err := h.carts.SetQuantity(r.Context(), userID, lineID, req.Quantity)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	resp, err := h.cartResponse(r, cart)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *CartHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	lineID, err := uuid.Parse(chi.URLParam(r, "lineID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_line_id", "line id must be a UUID")
		return
	}

	cart, err := h.carts.RemoveLine(r.Context(), userID, lineID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	resp, err := h.cartResponse(r, cart)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Merge folds the client-held guest cart into the server cart. The 200
// response is the client's cue to drop its guest storage; skipped lines come
// back as warnings, never as a failure.
func (h *CartHandler) Merge(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	var req MergeRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	cart, warnings, err := h.carts.MergeGuestCart(r.Context(), userID, req.Lines)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	resp, err := h.cartResponse(r, cart)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	resp.Warnings = warnings
	respondJSON(w, http.StatusOK, resp)
}
