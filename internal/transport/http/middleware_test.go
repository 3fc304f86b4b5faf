package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sks-store/merchant-api/internal/auth"
	"github.com/sks-store/merchant-api/internal/clock"
)

func TestRequestLogger_LogsStatusAndPath(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodGet, "/reservation", nil)
	rec := httptest.NewRecorder()

	RequestLogger(handler, logger).ServeHTTP(rec, req)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["method"] != "GET" || fields["path"] != "/reservation" {
		t.Fatalf("unexpected log fields: %v", fields)
	}
	if fields["status"] != int64(http.StatusCreated) {
		t.Fatalf("expected status 201 in log, got %v", fields["status"])
	}
}

func TestRequestLogger_DefaultsTo200(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	req := httptest.NewRequest(http.MethodGet, "/healthcheck", nil)
	rec := httptest.NewRecorder()

	RequestLogger(handler, logger).ServeHTTP(rec, req)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if entries[0].ContextMap()["status"] != int64(http.StatusOK) {
		t.Fatalf("expected default status 200 in log")
	}
}

func TestBearerAuth(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := clock.NewFixed(now)
	authority := auth.NewAuthority(
		auth.Credentials{ClientID: "client-1", ClientSecret: "secret-1"}, clk,
	)
	token, _, err := authority.Issue("client-1", "secret-1", auth.GrantClientCredentials)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := BearerAuth(authority, next)

	tests := []struct {
		name           string
		header         string
		expectedStatus int
		expectedSubstr string
	}{
		{
			name:           "valid token",
			header:         "Bearer " + token,
			expectedStatus: http.StatusNoContent,
		},
		{
			name:           "missing header",
			expectedStatus: http.StatusUnauthorized,
			expectedSubstr: codeInvalidToken,
		},
		{
			name:           "not bearer",
			header:         "Basic abc",
			expectedStatus: http.StatusUnauthorized,
			expectedSubstr: codeInvalidToken,
		},
		{
			name:           "unknown token",
			header:         "Bearer bogus",
			expectedStatus: http.StatusUnauthorized,
			expectedSubstr: codeInvalidToken,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/healthcheck", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
			if tt.expectedSubstr != "" && !strings.Contains(rec.Body.String(), tt.expectedSubstr) {
				t.Fatalf("expected response to contain %q, got %q", tt.expectedSubstr, rec.Body.String())
			}
		})
	}
}

func TestBearerAuth_ExpiredToken(t *testing.T) {
	t.Parallel()

	clk := clock.NewManual(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	authority := auth.NewAuthority(
		auth.Credentials{ClientID: "client-1", ClientSecret: "secret-1"}, clk,
	)
	token, _, err := authority.Issue("client-1", "secret-1", auth.GrantClientCredentials)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	clk.Advance(2 * time.Hour)

	handler := BearerAuth(authority, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthcheck", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), codeTokenExpired) {
		t.Fatalf("expected %s, got %q", codeTokenExpired, rec.Body.String())
	}
}

func TestAdminKeyAuth(t *testing.T) {
	t.Parallel()

	handler := AdminKeyAuth("admin-secret", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	req.Header.Set(adminKeyHeader, "admin-secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	badReq := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	badReq.Header.Set(adminKeyHeader, "wrong")
	badRec := httptest.NewRecorder()
	handler.ServeHTTP(badRec, badReq)
	if badRec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", badRec.Code)
	}

	// An empty configured key locks the surface instead of opening it.
	locked := AdminKeyAuth("", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	noKeyReq := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	noKeyRec := httptest.NewRecorder()
	locked.ServeHTTP(noKeyRec, noKeyReq)
	if noKeyRec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 with empty key, got %d", noKeyRec.Code)
	}
}
