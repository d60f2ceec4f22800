package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoClaims = errors.New("auth: token carries no user claims")

// Identity is who the bearer token says we are.
type Identity struct {
	UserID   string
	Nickname string
}

// ParseIdentity reads user claims from a JWT without verifying the signature;
// the server does the verifying, the client only needs the ids for outgoing events.
func ParseIdentity(token string) (Identity, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Identity{}, fmt.Errorf("parse token: %w", err)
	}

	var id Identity
	for _, k := range []string{"userId", "user_id", "id", "sub"} {
		if v, ok := claims[k]; ok {
			id.UserID = claimString(v)
			if id.UserID != "" {
				break
			}
		}
	}
	for _, k := range []string{"nickname", "name", "username"} {
		if v, ok := claims[k].(string); ok && v != "" {
			id.Nickname = v
			break
		}
	}
	if id.UserID == "" {
		return Identity{}, ErrNoClaims
	}
	return id, nil
}

func claimString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%.0f", t)
	default:
		return ""
	}
}
