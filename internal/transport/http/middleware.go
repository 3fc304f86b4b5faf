package http

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sks-store/merchant-api/internal/domain"
)

// TokenValidator is the minimal interface the auth middleware needs.
type TokenValidator interface {
	Validate(token string) (string, error)
}

// RequestLogger logs basic request details and latency.
func RequestLogger(next http.Handler, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// BearerAuth rejects requests that do not carry a valid access token. The
// token endpoint, metrics and the admin surface are mounted outside of it.
func BearerAuth(validator TokenValidator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, codeInvalidToken, "missing bearer token")
			return
		}

		if _, err := validator.Validate(token); err != nil {
			switch err {
			case domain.ErrTokenExpired:
				writeError(w, http.StatusUnauthorized, codeTokenExpired, err.Error())
			default:
				writeError(w, http.StatusUnauthorized, codeInvalidToken, domain.ErrInvalidToken.Error())
			}
			return
		}

		next.ServeHTTP(w, r)
	})
}

const adminKeyHeader = "X-Api-Key"

// AdminKeyAuth gates the admin surface behind a shared API key.
func AdminKeyAuth(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if apiKey == "" || r.Header.Get(adminKeyHeader) != apiKey {
			writeError(w, http.StatusForbidden, codeForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", false
	}
	return token, true
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
