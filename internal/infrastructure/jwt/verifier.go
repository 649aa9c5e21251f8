// Package jwtinfra verifies bearer credentials issued by the account service.
// Token issuance lives elsewhere; this side only resolves a token to the
// subject identity it carries.
package jwtinfra

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"paynotify-system/internal/domain"
)

// Claims holds the JWT payload fields.
type Claims struct {
	AdministratorID string `json:"administrator_id"`
	Role            string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 tokens against a shared secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

func (v *Verifier) Verify(tokenStr string) (*domain.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return &domain.Identity{
		SubjectID:       claims.Subject,
		AdministratorID: claims.AdministratorID,
		Role:            claims.Role,
	}, nil
}
