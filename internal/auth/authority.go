package auth

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"

	"github.com/sks-store/merchant-api/internal/clock"
	"github.com/sks-store/merchant-api/internal/domain"
)

const (
	// GrantClientCredentials is the only grant type the token endpoint accepts.
	GrantClientCredentials = "client_credentials"

	defaultTokenTTL = time.Hour
	tokenBytes      = 32
)

// Credentials is the single service identity tokens are issued against.
// The server is not multi-tenant.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

type entry struct {
	clientID  string
	expiresAt time.Time
}

// Authority issues and validates opaque bearer tokens. The registry lives in
// process memory only: a restart invalidates every outstanding token and
// callers re-authenticate. It gates the API surface, not inventory state, so
// losing it can never double-allocate a key.
type Authority struct {
	creds Credentials
	clock clock.Clock
	ttl   time.Duration

	mu     sync.Mutex
	tokens map[string]entry
}

type Option func(*Authority)

// WithTokenTTL overrides the default one hour token lifetime.
func WithTokenTTL(d time.Duration) Option {
	return func(a *Authority) {
		if d > 0 {
			a.ttl = d
		}
	}
}

func NewAuthority(creds Credentials, clk clock.Clock, opts ...Option) *Authority {
	a := &Authority{
		creds:  creds,
		clock:  clk,
		ttl:    defaultTokenTTL,
		tokens: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Issue validates the client credentials and returns a fresh token together
// with its lifetime in seconds.
func (a *Authority) Issue(clientID, clientSecret, grantType string) (string, int, error) {
	if clientID != a.creds.ClientID ||
		clientSecret != a.creds.ClientSecret ||
		grantType != GrantClientCredentials {
		return "", 0, domain.ErrInvalidCredentials
	}

	token := newToken()
	a.mu.Lock()
	a.tokens[token] = entry{
		clientID:  clientID,
		expiresAt: a.clock.Now().Add(a.ttl),
	}
	a.mu.Unlock()

	return token, int(a.ttl / time.Second), nil
}

// Validate returns the client identity behind token. An expired token is
// evicted on the spot and reported as ErrTokenExpired; an unknown one as
// ErrInvalidToken.
func (a *Authority) Validate(token string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.tokens[token]
	if !ok {
		return "", domain.ErrInvalidToken
	}
	if !e.expiresAt.After(a.clock.Now()) {
		delete(a.tokens, token)
		return "", domain.ErrTokenExpired
	}
	return e.clientID, nil
}

// Invalidate removes token from the registry if present.
func (a *Authority) Invalidate(token string) {
	a.mu.Lock()
	delete(a.tokens, token)
	a.mu.Unlock()
}

// SweepExpired evicts every expired token and returns how many were removed.
func (a *Authority) SweepExpired() int {
	now := a.clock.Now()

	a.mu.Lock()
	defer a.mu.Unlock()

	removed := 0
	for token, e := range a.tokens {
		if !e.expiresAt.After(now) {
			delete(a.tokens, token)
			removed++
		}
	}
	return removed
}

// ActiveCount reports how many tokens are currently registered, expired or not.
func (a *Authority) ActiveCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.tokens)
}

func newToken() string {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		panic("auth: crypto/rand unavailable: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
