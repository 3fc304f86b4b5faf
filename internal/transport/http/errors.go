package http

import (
	"encoding/json"
	"net/http"

	"github.com/sks-store/merchant-api/internal/domain"
)

// Stable error codes of the merchant contract. The buyer platform switches on
// these, so they never change spelling.
const (
	codeInvalidCredentials  = "INVALID_CREDENTIALS"
	codeInvalidToken        = "INVALID_TOKEN"
	codeTokenExpired        = "TOKEN_EXPIRED"
	codeInsufficientStock   = "INSUFFICIENT_STOCK"
	codeReservationNotFound = "RESERVATION_NOT_FOUND"
	codeReservationExpired  = "RESERVATION_EXPIRED"
	codeOrderNotFound       = "ORDER_NOT_FOUND"
	codeForbidden           = "FORBIDDEN"
	codeValidationError     = "VALIDATION_ERROR"
	codeInternalError       = "INTERNAL_ERROR"
	codeNotFound            = "NOT_FOUND"
	codeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
)

type errorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Stock   []stockPayload `json:"stock,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Code:    code,
		Message: msg,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"code":"INTERNAL_ERROR","message":"internal error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeInsufficientStock carries the failing product's stock level in the
// error body so the caller can retry with a smaller quantity.
func writeInsufficientStock(w http.ResponseWriter, stockErr *domain.InsufficientStockError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Code:    codeInsufficientStock,
		Message: stockErr.Error(),
		Stock: []stockPayload{{
			ProductID:     stockErr.ProductID,
			InventorySize: stockErr.Available,
		}},
	})
}
