package auth

import (
	"context"
	"errors"
	"fmt"
)

// DefaultTokenKey is the storage key the web client keeps its bearer token under.
const DefaultTokenKey = "token"

// ErrNotFound is returned by a Store when the key is absent.
var ErrNotFound = errors.New("auth: key not found")

// TokenSource yields the current bearer token. An empty token with a nil error
// means the caller is anonymous.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Store is a small key-value store, the server-side stand-in for a browser's localStorage.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Static is a fixed token; the empty string means no token.
type Static string

func (s Static) Token(context.Context) (string, error) {
	return string(s), nil
}

type storeSource struct {
	store Store
	key   string
}

// FromStore reads the token from store under key every time it is asked.
func FromStore(store Store, key string) TokenSource {
	if key == "" {
		key = DefaultTokenKey
	}
	return &storeSource{store: store, key: key}
}

func (s *storeSource) Token(ctx context.Context) (string, error) {
	tok, err := s.store.Get(ctx, s.key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %q: %w", s.key, err)
	}
	return tok, nil
}

// BearerHeader formats tok for an Authorization header, "" when there is no token.
func BearerHeader(tok string) string {
	if tok == "" {
		return ""
	}
	return "Bearer " + tok
}
