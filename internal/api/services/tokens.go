package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenIssuer signs and verifies stateless access tokens. The key and
// algorithm are fixed at construction.
type TokenIssuer struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret []byte, algorithm string, ttl time.Duration) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("token signing secret is empty")
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}

	return &TokenIssuer{
		secret: secret,
		method: method,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// TTL is the configured lifetime of tokens issued at login.
func (t *TokenIssuer) TTL() time.Duration {
	return t.ttl
}

// Issue signs a token for userID that expires ttl from now.
func (t *TokenIssuer) Issue(userID uuid.UUID, ttl time.Duration) (string, time.Time, error) {
	now := t.now()
	expiresAt := now.Add(ttl)

	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(t.method, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify returns the user id carried by token. The signature is checked
// before any claim is read.
func (t *TokenIssuer) Verify(token string) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{t.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)

	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return uuid.Nil, ErrTokenSignatureInvalid
	case errors.Is(err, jwt.ErrTokenExpired):
		return uuid.Nil, ErrTokenExpired
	default:
		return uuid.Nil, ErrTokenMalformed
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, ErrTokenMalformed
	}
	return userID, nil
}
