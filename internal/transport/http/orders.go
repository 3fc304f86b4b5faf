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

// OrderCreator is the minimal interface needed to finalize a reservation.
type OrderCreator interface {
	CreateOrder(ctx context.Context, reservationID string, externalOrderID int64) (app.CreateOrderResult, error)
}

// OrderReader is the minimal interface needed to re-read an order's keys.
type OrderReader interface {
	GetOrderInventory(ctx context.Context, orderID string) ([]app.ProductInventory, error)
}

// HandleCreateOrder returns an HTTP handler for turning a paid reservation
// into an order. This is the only place key secrets are first revealed.
func HandleCreateOrder(svc OrderCreator, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req createOrderRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeValidationError, "invalid request body")
			return
		}
		if req.ReservationID == "" || req.ExternalOrderID == 0 {
			writeError(w, http.StatusBadRequest, codeValidationError, "reservation_id and g2a_order_id are required")
			return
		}

		res, err := svc.CreateOrder(r.Context(), req.ReservationID, req.ExternalOrderID)
		if err != nil {
			switch err {
			case domain.ErrReservationNotFound:
				writeError(w, http.StatusNotFound, codeReservationNotFound, err.Error())
			case domain.ErrReservationExpired:
				writeError(w, http.StatusGone, codeReservationExpired, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}
		sold := 0
		for _, p := range res.Stock {
			sold += len(p.Inventory)
		}
		m.OrderCreated(sold)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(createOrderResponse{
			OrderID: res.OrderID,
			Stock:   toInventoryPayload(res.Stock),
		})
	}
}

// HandleOrderInventory returns an HTTP handler for the idempotent key
// re-read after an order was created.
func HandleOrderInventory(svc OrderReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		orderID, ok := parseOrderInventoryPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		inventory, err := svc.GetOrderInventory(r.Context(), orderID)
		if err != nil {
			switch err {
			case domain.ErrOrderNotFound:
				writeError(w, http.StatusNotFound, codeOrderNotFound, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(toInventoryPayload(inventory))
	}
}

type createOrderRequest struct {
	ReservationID   string `json:"reservation_id"`
	ExternalOrderID int64  `json:"g2a_order_id"`
}

type inventoryItemPayload struct {
	ID    string `json:"id"`
	Value string `json:"value"`
	Kind  string `json:"kind"`
}

type productInventoryPayload struct {
	ProductID     int64                  `json:"product_id"`
	InventorySize int                    `json:"inventory_size"`
	Inventory     []inventoryItemPayload `json:"inventory"`
}

type createOrderResponse struct {
	OrderID string                    `json:"order_id"`
	Stock   []productInventoryPayload `json:"stock"`
}

func toInventoryPayload(stock []app.ProductInventory) []productInventoryPayload {
	out := make([]productInventoryPayload, 0, len(stock))
	for _, p := range stock {
		items := make([]inventoryItemPayload, 0, len(p.Inventory))
		for _, item := range p.Inventory {
			items = append(items, inventoryItemPayload{
				ID:    item.ID,
				Value: item.Value,
				Kind:  item.Kind,
			})
		}
		out = append(out, productInventoryPayload{
			ProductID:     p.ProductID,
			InventorySize: p.InventorySize,
			Inventory:     items,
		})
	}
	return out
}

func parseOrderInventoryPath(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 {
		return "", false
	}
	if parts[0] != "order" || parts[2] != "inventory" {
		return "", false
	}
	if parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
