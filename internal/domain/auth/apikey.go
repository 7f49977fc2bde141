// Package auth authenticates admin API callers by API key.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"slices"

	"github.com/go-faster/errors"
)

// ScopeOrdersAdmin grants access to the admin order endpoints.
const ScopeOrdersAdmin = "orders:admin"

var (
	// ErrUnauthorized is returned for unknown, inactive or mismatched keys.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when a valid key lacks the required scope.
	ErrForbidden = errors.New("forbidden")
	// ErrKeyNotFound is returned by a Repository that holds no active key
	// with the requested hash.
	ErrKeyNotFound = errors.New("api key not found")
)

// Key is a stored API key. Only the HMAC of the secret is kept.
type Key struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string
}

// HasScope reports whether the key grants scope.
func (k *Key) HasScope(scope string) bool {
	return slices.Contains(k.Scopes, scope)
}

// Repository looks up API keys by hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*Key, error)
}

// Hash returns the hex HMAC-SHA256 of secret under pepper.
func Hash(pepper []byte, secret string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(secret))
	return hex.EncodeToString(mac.Sum(nil))
}

// Authenticator validates raw API keys.
type Authenticator struct {
	keys   Repository
	pepper []byte
}

// NewAuthenticator returns an Authenticator over keys.
func NewAuthenticator(keys Repository, pepper []byte) *Authenticator {
	return &Authenticator{keys: keys, pepper: pepper}
}

// Authenticate resolves secret to a key carrying scope. Repository failures
// are returned as is, not as ErrUnauthorized.
func (a *Authenticator) Authenticate(ctx context.Context, secret, scope string) (*Key, error) {
	if secret == "" {
		return nil, ErrUnauthorized
	}
	hash := Hash(a.pepper, secret)

	key, err := a.keys.FindByHash(ctx, hash)
	if errors.Is(err, ErrKeyNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, errors.Wrap(err, "find api key")
	}

	// The stored hash must match byte for byte.
	if subtle.ConstantTimeCompare([]byte(hash), []byte(key.KeyHash)) != 1 {
		return nil, ErrUnauthorized
	}
	if scope != "" && !key.HasScope(scope) {
		return nil, ErrForbidden
	}
	return key, nil
}
