// README: JWT token verifier; the HTTP layer never sees the token format.
package infra

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the authenticated caller attached to every request.
type Identity struct {
	ID   string
	Role string
}

// TokenVerifier verifies a raw bearer token and returns the caller identity.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (Identity, error)
}

var ErrInvalidToken = errors.New("invalid token")

// jwtVerifier validates HS256 tokens issued by the platform auth service.
// Expected claims: sub (user id) and role.
type jwtVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) TokenVerifier {
	return &jwtVerifier{secret: []byte(secret)}
}

func (v *jwtVerifier) Verify(_ context.Context, raw string) (Identity, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		// some issuers put the user id under "id" instead of the standard claim
		sub, _ = claims["id"].(string)
	}
	if sub == "" {
		return Identity{}, ErrInvalidToken
	}
	role, _ := claims["role"].(string)
	return Identity{ID: sub, Role: role}, nil
}
