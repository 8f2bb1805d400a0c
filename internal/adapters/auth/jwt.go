// Package auth implements the credential verifier collaborator against
// the HMAC-signed JWTs issued by the external auth service.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/voxhall/voxhall/internal/domain"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims mirrors the token payload the auth service signs at login.
type Claims struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// UserDirectory resolves a token's user id to the public snapshot
// attached to the connection.
type UserDirectory interface {
	GetUser(ctx context.Context, id domain.UserID) (domain.User, error)
}

type Verifier struct {
	secret []byte
	users  UserDirectory
}

func NewVerifier(secret string, users UserDirectory) *Verifier {
	return &Verifier{secret: []byte(secret), users: users}
}

func (v *Verifier) Verify(ctx context.Context, token string) (domain.User, error) {
	if token == "" {
		return domain.User{}, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return domain.User{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return domain.User{}, ErrInvalidToken
	}
	user, err := v.users.GetUser(ctx, domain.UserID(claims.ID))
	if err != nil {
		return domain.User{}, fmt.Errorf("user lookup: %w", err)
	}
	return user, nil
}
