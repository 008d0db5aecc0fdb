package tokens

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims are the access-token claims the client relies on. The subject is the
// account email.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Decode reads the claims of an access token without verifying its signature.
// Verification belongs to the backend; the client only needs expiry and role.
// A token without an expiry is rejected.
func Decode(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing exp claim", ErrInvalidToken)
	}
	return claims, nil
}

// Email returns the subject claim.
func (c *Claims) Email() string {
	return c.Subject
}

// Expiry returns the exp claim as a time.
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Remaining is the lifetime left at now. Negative once expired.
func (c *Claims) Remaining(now time.Time) time.Duration {
	return c.Expiry().Sub(now)
}

// Expired reports whether the token is past its expiry at now.
func (c *Claims) Expired(now time.Time) bool {
	return !now.Before(c.Expiry())
}

// NeedsRenewal reports whether the remaining lifetime is below threshold.
// Expired tokens always need renewal.
func (c *Claims) NeedsRenewal(threshold time.Duration, now time.Time) bool {
	return c.Remaining(now) < threshold
}

// CanonicalRole returns the role claim with alias forms removed.
func (c *Claims) CanonicalRole() Role {
	return Canonicalize(c.Role)
}

// TokenGenerator issues HS256 access tokens shaped like the backend's. The CLI
// uses it for offline fixtures and tests; production tokens come from the backend.
type TokenGenerator struct {
	secret    []byte
	accessTTL time.Duration
	issuer    string
}

func NewTokenGenerator(secret string) *TokenGenerator {
	return &TokenGenerator{
		secret:    []byte(secret),
		accessTTL: 15 * time.Minute,
		issuer:    "phoenix-auth",
	}
}

// WithTTL returns a copy of the generator issuing tokens valid for ttl.
// A negative ttl yields already expired tokens.
func (tg *TokenGenerator) WithTTL(ttl time.Duration) *TokenGenerator {
	cp := *tg
	cp.accessTTL = ttl
	return &cp
}

func (tg *TokenGenerator) GenerateAccessToken(email, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(now.Add(tg.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tg.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tg.secret)
}

func (tg *TokenGenerator) GenerateRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// ValidateAccessToken verifies the signature and expiry of a token issued by tg.
func (tg *TokenGenerator) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return tg.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
