// Package auth holds the credential primitives of the account service:
// password hashing, session tokens and one-time recovery codes.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims binds a session to a user id and email. Expiry is absolute.
type Claims struct {
	jwt.RegisteredClaims
	UserID    string `json:"user_id"`
	UserEmail string `json:"user_email"`
}

// TokenService signs and decodes HMAC session tokens. It holds no mutable
// state after construction and is safe for concurrent use.
type TokenService struct {
	secret   []byte
	method   jwt.SigningMethod
	lifetime time.Duration
	now      func() time.Time
}

// TokenOption customises a TokenService.
type TokenOption func(*TokenService)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

// NewTokenService builds a TokenService for one of HS256, HS384 or HS512.
func NewTokenService(secret, algorithm string, lifetime time.Duration, opts ...TokenOption) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("empty signing secret")
	}

	var method jwt.SigningMethod
	switch strings.ToUpper(algorithm) {
	case "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}

	s := &TokenService{secret: []byte(secret), method: method, lifetime: lifetime, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Sign issues a token for the user that expires lifetime from now.
func (s *TokenService) Sign(userID, email string) (string, error) {
	token := jwt.NewWithClaims(s.method, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(s.now().Add(s.lifetime)),
		},
		UserID:    userID,
		UserEmail: email,
	})

	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// Decode verifies token and returns its claims. Failures are reported as
// common.ErrTokenExpired, common.ErrMalformedToken or common.ErrInvalidToken.
func (s *TokenService) Decode(tokenString string) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, common.ErrMalformedToken
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, common.ErrTokenExpired
		default:
			return nil, common.ErrInvalidToken
		}
	}

	if claims.UserID == "" || claims.UserEmail == "" {
		return nil, common.ErrMalformedToken
	}

	return claims, nil
}
