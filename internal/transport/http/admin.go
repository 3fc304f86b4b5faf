package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sks-store/merchant-api/internal/app"
	"github.com/sks-store/merchant-api/internal/domain"
)

// AdminKeyService is the minimal interface needed for the admin key surface.
type AdminKeyService interface {
	AddKeys(ctx context.Context, inputs []app.KeyInput) (app.AddKeysResult, error)
	Stats(ctx context.Context) (app.KeyStats, error)
	ListByProduct(ctx context.Context, productID int64, excludeSold bool) ([]domain.Key, error)
	UpdateStatus(ctx context.Context, keyIDs []string, status domain.KeyStatus) (int, error)
}

// HandleAdminAddKeys returns an HTTP handler for the batch key import.
func HandleAdminAddKeys(svc AdminKeyService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req []addKeyRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeValidationError, "invalid request body")
			return
		}
		if len(req) == 0 {
			writeError(w, http.StatusBadRequest, codeValidationError, "no keys to add")
			return
		}

		inputs := make([]app.KeyInput, 0, len(req))
		for _, item := range req {
			inputs = append(inputs, app.KeyInput{
				GameName:  item.GameName,
				ProductID: item.ProductID,
				Value:     item.KeyValue,
				Price:     item.Price,
				Prefix:    item.Prefix,
			})
		}

		res, err := svc.AddKeys(r.Context(), inputs)
		if err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		resp := addKeysResponse{Added: res.Added, Errors: res.Errors}
		if resp.Errors == nil {
			resp.Errors = []string{}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// HandleAdminStats returns an HTTP handler for the key store statistics.
func HandleAdminStats(svc AdminKeyService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		stats, err := svc.Stats(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		resp := statsResponse{
			Statuses: make(map[string]statusStatPayload, len(stats.ByStatus)),
			Prefixes: make(map[string]prefixStatPayload, len(stats.ByPrefix)),
		}
		for status, stat := range stats.ByStatus {
			resp.Statuses[string(status)] = statusStatPayload{
				Count:          stat.Count,
				UniquePrefixes: stat.UniquePrefixes,
			}
		}
		for prefix, stat := range stats.ByPrefix {
			resp.Prefixes[prefix] = prefixStatPayload{
				Total:   stat.Total,
				Sold:    stat.Sold,
				Revenue: stat.Revenue,
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// HandleAdminKeysByProduct returns an HTTP handler listing a product's keys.
func HandleAdminKeysByProduct(svc AdminKeyService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		productID, ok := parseKeysByProductPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		excludeSold := r.URL.Query().Get("exclude_sold") == "true"

		keys, err := svc.ListByProduct(r.Context(), productID, excludeSold)
		if err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		resp := make([]keyResponse, 0, len(keys))
		for _, key := range keys {
			resp = append(resp, keyResponse{
				ID:        key.ID,
				GameName:  key.GameName,
				ProductID: key.ProductID,
				KeyValue:  key.Value,
				Status:    string(key.Status),
				Price:     key.Price,
				Prefix:    key.Prefix,
				CreatedAt: key.CreatedAt,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// HandleAdminUpdateKeyStatus returns an HTTP handler for manual key status
// fixes (pulling keys from sale and returning them).
func HandleAdminUpdateKeyStatus(svc AdminKeyService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req updateKeyStatusRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeValidationError, "invalid request body")
			return
		}

		updated, err := svc.UpdateStatus(r.Context(), req.KeyIDs, domain.KeyStatus(req.NewStatus))
		if err != nil {
			switch err {
			case domain.ErrKeyStatusInvalid, domain.ErrNoKeyIDs:
				writeError(w, http.StatusBadRequest, codeValidationError, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(updateKeyStatusResponse{Updated: updated})
	}
}

type addKeyRequest struct {
	GameName  string  `json:"game_name"`
	ProductID int64   `json:"product_id"`
	KeyValue  string  `json:"key_value"`
	Price     float64 `json:"price"`
	Prefix    string  `json:"prefix"`
}

type addKeysResponse struct {
	Added  int      `json:"added"`
	Errors []string `json:"errors"`
}

type statusStatPayload struct {
	Count          int `json:"count"`
	UniquePrefixes int `json:"unique_prefixes"`
}

type prefixStatPayload struct {
	Total   int     `json:"total"`
	Sold    int     `json:"sold"`
	Revenue float64 `json:"revenue"`
}

type statsResponse struct {
	Statuses map[string]statusStatPayload `json:"statuses"`
	Prefixes map[string]prefixStatPayload `json:"prefixes"`
}

type keyResponse struct {
	ID        string    `json:"id"`
	GameName  string    `json:"game_name"`
	ProductID int64     `json:"product_id"`
	KeyValue  string    `json:"key_value"`
	Status    string    `json:"status"`
	Price     float64   `json:"price"`
	Prefix    string    `json:"prefix"`
	CreatedAt time.Time `json:"created_at"`
}

type updateKeyStatusRequest struct {
	KeyIDs    []string `json:"key_ids"`
	NewStatus string   `json:"new_status"`
}

type updateKeyStatusResponse struct {
	Updated int `json:"updated"`
}

func parseKeysByProductPath(path string) (int64, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 4 {
		return 0, false
	}
	if parts[0] != "admin" || parts[1] != "keys" || parts[2] != "by-product" {
		return 0, false
	}
	productID, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil || productID <= 0 {
		return 0, false
	}
	return productID, true
}
