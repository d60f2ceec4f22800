package auth_test

import (
	"context"
	"errors"
	"testing"

	"chatlink/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (string, error) {
	return "", errors.New("disk on fire")
}

func (brokenStore) Set(context.Context, string, string) error { return nil }
func (brokenStore) Delete(context.Context, string) error      { return nil }

func TestFromStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("it should return an empty token when the key is absent", func(t *testing.T) {
		src := auth.FromStore(auth.NewMemoryStore(), "")
		tok, err := src.Token(ctx)
		require.NoError(t, err)
		require.Empty(t, tok)
	})

	t.Run("it should read the token on every call", func(t *testing.T) {
		store := auth.NewMemoryStore()
		src := auth.FromStore(store, auth.DefaultTokenKey)

		require.NoError(t, store.Set(ctx, "token", "first"))
		tok, err := src.Token(ctx)
		require.NoError(t, err)
		require.Equal(t, "first", tok)

		require.NoError(t, store.Set(ctx, "token", "second"))
		tok, err = src.Token(ctx)
		require.NoError(t, err)
		require.Equal(t, "second", tok)

		require.NoError(t, store.Delete(ctx, "token"))
		tok, err = src.Token(ctx)
		require.NoError(t, err)
		require.Empty(t, tok)
	})

	t.Run("it should surface store failures", func(t *testing.T) {
		src := auth.FromStore(brokenStore{}, "token")
		_, err := src.Token(ctx)
		require.Error(t, err)
	})
}

func TestBearerHeader(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Bearer abc", auth.BearerHeader("abc"))
	require.Empty(t, auth.BearerHeader(""))
}

func TestParseIdentity(t *testing.T) {
	t.Parallel()

	sign := func(t *testing.T, claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
		require.NoError(t, err)
		return s
	}

	t.Run("it should read userId and nickname", func(t *testing.T) {
		id, err := auth.ParseIdentity(sign(t, jwt.MapClaims{"userId": float64(7), "nickname": "Alice"}))
		require.NoError(t, err)
		require.Equal(t, auth.Identity{UserID: "7", Nickname: "Alice"}, id)
	})

	t.Run("it should fall back to the subject", func(t *testing.T) {
		id, err := auth.ParseIdentity(sign(t, jwt.MapClaims{"sub": "u1"}))
		require.NoError(t, err)
		require.Equal(t, "u1", id.UserID)
	})

	t.Run("it should fail without user claims", func(t *testing.T) {
		_, err := auth.ParseIdentity(sign(t, jwt.MapClaims{"scope": "chat"}))
		require.ErrorIs(t, err, auth.ErrNoClaims)
	})

	t.Run("it should fail on garbage", func(t *testing.T) {
		_, err := auth.ParseIdentity("not-a-jwt")
		require.Error(t, err)
	})
}
