package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/edvin/warroom/internal/fault"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

// WriteServiceError maps a service error kind to its HTTP status.
func WriteServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, fault.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, fault.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, fault.ErrApprovalConflict):
		status = http.StatusConflict
	case errors.Is(err, fault.ErrStoreUnavailable), errors.Is(err, fault.ErrCacheUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, fault.ErrDelivery):
		status = http.StatusBadGateway
	}
	WriteError(w, status, err.Error())
}
