package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"storefront/internal/repository"
	"storefront/internal/service"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// handleServiceError maps the service/repository error taxonomy onto HTTP
// statuses. Unexpected errors are logged with context and surfaced as a
// generic 500 without internal detail.
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrUnknownPaymentMethod),
		errors.Is(err, service.ErrUnknownStatus),
		errors.Is(err, service.IllegalTransitionError),
		errors.Is(err, repository.ErrInsufficientStock),
		errors.Is(err, repository.ErrProductInactive):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())

	case errors.Is(err, service.ErrNotOwner):
		respondError(w, http.StatusForbidden, "forbidden", err.Error())

	case errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrVariantNotFound),
		errors.Is(err, repository.ErrLineNotFound),
		errors.Is(err, repository.ErrCartNotFound),
		errors.Is(err, repository.ErrAddressNotFound),
		errors.Is(err, repository.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())

	case errors.Is(err, repository.ErrTxConflict):
		respondError(w, http.StatusServiceUnavailable, "conflict", "a concurrent update interfered, please retry")

	default:
		log.Printf("unexpected error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
