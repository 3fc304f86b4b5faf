package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sks-store/merchant-api/internal/app"
	"github.com/sks-store/merchant-api/internal/domain"
	"github.com/sks-store/merchant-api/internal/metrics"
)

// Product ids on the marketplace are always 14 decimal digits.
const (
	minProductID int64 = 10_000_000_000_000
	maxProductID int64 = 99_999_999_999_999
)

// ReservationCreator is the minimal interface needed to create a reservation.
type ReservationCreator interface {
	Reserve(ctx context.Context, items []app.LineItem) (app.ReserveResult, error)
}

// ReservationReleaser is the minimal interface needed to cancel one.
type ReservationReleaser interface {
	Release(ctx context.Context, reservationID string) error
}

// HandleCreateReservation returns an HTTP handler for reserving keys. The
// request body is the marketplace's line item array.
func HandleCreateReservation(svc ReservationCreator, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req []reservationItemRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeValidationError, "invalid request body")
			return
		}
		items, err := toLineItems(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidationError, err.Error())
			return
		}

		res, err := svc.Reserve(r.Context(), items)
		if err != nil {
			if stockErr, ok := domain.IsInsufficientStock(err); ok {
				writeInsufficientStock(w, stockErr)
				return
			}
			switch err {
			case domain.ErrEmptyReservation, domain.ErrInvalidQuantity, domain.ErrInvalidProductID:
				writeError(w, http.StatusBadRequest, codeValidationError, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}
		m.ReservationCreated()

		resp := reservationResponse{
			ReservationID: res.ReservationID,
			Stock:         make([]stockPayload, 0, len(res.Stock)),
		}
		for _, s := range res.Stock {
			resp.Stock = append(resp.Stock, stockPayload{
				ProductID:     s.ProductID,
				InventorySize: s.InventorySize,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// HandleDeleteReservation returns an HTTP handler for cancelling a
// reservation before the buyer pays.
func HandleDeleteReservation(svc ReservationReleaser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		reservationID, ok := parseReservationPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		if err := svc.Release(r.Context(), reservationID); err != nil {
			switch err {
			case domain.ErrReservationNotFound:
				writeError(w, http.StatusNotFound, codeReservationNotFound, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

type reservationItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

func toLineItems(req []reservationItemRequest) ([]app.LineItem, error) {
	if len(req) == 0 {
		return nil, domain.ErrEmptyReservation
	}
	items := make([]app.LineItem, 0, len(req))
	for _, item := range req {
		if item.ProductID < minProductID || item.ProductID > maxProductID {
			return nil, domain.ErrInvalidProductID
		}
		if item.Quantity <= 0 {
			return nil, domain.ErrInvalidQuantity
		}
		items = append(items, app.LineItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return items, nil
}

type stockPayload struct {
	ProductID     int64 `json:"product_id"`
	InventorySize int   `json:"inventory_size"`
}

type reservationResponse struct {
	ReservationID string         `json:"reservation_id"`
	Stock         []stockPayload `json:"stock"`
}

func parseReservationPath(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 {
		return "", false
	}
	if parts[0] != "reservation" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
