package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sks-store/merchant-api/internal/app"
	"github.com/sks-store/merchant-api/internal/domain"
)

func TestHandleCreateReservation(t *testing.T) {
	t.Parallel()

	successResult := app.ReserveResult{
		ReservationID: "res-123",
		Stock:         []app.StockLevel{{ProductID: 10000000000001, InventorySize: 5}},
	}

	tests := []struct {
		name           string
		body           string
		serviceErr     error
		expectedStatus int
		expectedSubstr string
	}{
		{
			name:           "success",
			body:           `[{"product_id":10000000000001,"quantity":2}]`,
			expectedStatus: http.StatusOK,
			expectedSubstr: `"reservation_id":"res-123"`,
		},
		{
			name:           "invalid json",
			body:           `[{"product_id":`,
			expectedStatus: http.StatusBadRequest,
			expectedSubstr: codeValidationError,
		},
		{
			name:           "empty array",
			body:           `[]`,
			expectedStatus: http.StatusBadRequest,
			expectedSubstr: codeValidationError,
		},
		{
			name:           "zero quantity",
			body:           `[{"product_id":10000000000001,"quantity":0}]`,
			expectedStatus: http.StatusBadRequest,
			expectedSubstr: codeValidationError,
		},
		{
			name:           "product id too short",
			body:           `[{"product_id":12345,"quantity":1}]`,
			expectedStatus: http.StatusBadRequest,
			expectedSubstr: codeValidationError,
		},
		{
			name:           "insufficient stock",
			body:           `[{"product_id":10000000000001,"quantity":2}]`,
			serviceErr:     &domain.InsufficientStockError{ProductID: 10000000000001, Available: 1, Requested: 2},
			expectedStatus: http.StatusBadRequest,
			expectedSubstr: codeInsufficientStock,
		},
		{
			name:           "internal error",
			body:           `[{"product_id":10000000000001,"quantity":2}]`,
			serviceErr:     errors.New("boom"),
			expectedStatus: http.StatusInternalServerError,
			expectedSubstr: codeInternalError,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubReservationService{result: successResult, err: tt.serviceErr}
			req := httptest.NewRequest(http.MethodPost, "/reservation", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()

			HandleCreateReservation(svc, nil).ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
			if tt.expectedSubstr != "" && !strings.Contains(rec.Body.String(), tt.expectedSubstr) {
				t.Fatalf("expected response to contain %q, got %q", tt.expectedSubstr, rec.Body.String())
			}
		})
	}
}

func TestHandleCreateReservation_InsufficientStockCarriesDetail(t *testing.T) {
	t.Parallel()

	svc := &stubReservationService{
		err: &domain.InsufficientStockError{ProductID: 10000000000001, Available: 1, Requested: 3},
	}
	body := `[{"product_id":10000000000001,"quantity":3}]`
	req := httptest.NewRequest(http.MethodPost, "/reservation", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	HandleCreateReservation(svc, nil).ServeHTTP(rec, req)

	out := rec.Body.String()
	if !strings.Contains(out, `"inventory_size":1`) {
		t.Fatalf("expected stock detail in error body, got %q", out)
	}
}

func TestHandleDeleteReservation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		path           string
		serviceErr     error
		expectedStatus int
	}{
		{
			name:           "deleted",
			path:           "/reservation/res-1",
			expectedStatus: http.StatusNoContent,
		},
		{
			name:           "not found",
			path:           "/reservation/res-unknown",
			serviceErr:     domain.ErrReservationNotFound,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "invalid path",
			path:           "/reservation/res-1/extra",
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "internal error",
			path:           "/reservation/res-1",
			serviceErr:     errors.New("boom"),
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubReservationService{err: tt.serviceErr}
			req := httptest.NewRequest(http.MethodDelete, tt.path, nil)
			rec := httptest.NewRecorder()

			HandleDeleteReservation(svc).ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
		})
	}
}

type stubReservationService struct {
	result app.ReserveResult
	err    error
}

func (s *stubReservationService) Reserve(_ context.Context, _ []app.LineItem) (app.ReserveResult, error) {
	return s.result, s.err
}

func (s *stubReservationService) Release(_ context.Context, _ string) error {
	return s.err
}
