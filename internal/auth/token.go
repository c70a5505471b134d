package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ayush/skillswap/internal/errs"
	"github.com/ayush/skillswap/internal/models"
)

// DefaultTokenTTL matches the lifetime of tokens handed to the web client.
const DefaultTokenTTL = 7 * 24 * time.Hour

type claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// TokenIssuer signs and validates HS256 bearer tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// Issue returns a signed token for userID.
func (t *TokenIssuer) Issue(userID models.UserID) (string, error) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		UserID: userID.String(),
	})
	s, err := tok.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

// Validate checks signature and expiry and returns the user id. Every
// failure wraps errs.ErrUnauthorized.
func (t *TokenIssuer) Validate(tokenString string) (models.UserID, error) {
	c := &claims{}
	tok, err := jwt.ParseWithClaims(tokenString, c, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrUnauthorized, err)
	}
	if !tok.Valid || c.UserID == "" {
		return "", errs.ErrUnauthorized
	}
	return models.UserID(c.UserID), nil
}
