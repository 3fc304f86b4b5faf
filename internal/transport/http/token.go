package http

import (
	"encoding/json"
	"net/http"

	"github.com/sks-store/merchant-api/internal/domain"
)

// TokenIssuer is the minimal interface needed by the token endpoint.
type TokenIssuer interface {
	Issue(clientID, clientSecret, grantType string) (string, int, error)
}

// HandleToken returns the OAuth-style token endpoint. The buyer platform
// passes its credentials as query parameters, so this is a GET.
func HandleToken(authority TokenIssuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		q := r.URL.Query()
		token, expiresIn, err := authority.Issue(
			q.Get("client_id"),
			q.Get("client_secret"),
			q.Get("grant_type"),
		)
		if err != nil {
			switch err {
			case domain.ErrInvalidCredentials:
				writeError(w, http.StatusUnauthorized, codeInvalidCredentials, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(tokenResponse{
			AccessToken: token,
			TokenType:   "bearer",
			ExpiresIn:   expiresIn,
		})
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}
