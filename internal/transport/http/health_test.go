package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthHandler_NoContent(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/healthcheck", nil)
	rec := httptest.NewRecorder()

	HealthHandler(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}
}
