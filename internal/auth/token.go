// Package auth issues and validates the session tokens presented during the
// realtime channel handshake. Tokens are short-lived HS256 JWTs; the rider
// app receives one from the booking backend and presents it when opening
// the channel.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Predefined token errors.
var (
	ErrTokenInvalid = errors.New("auth: invalid session token")
	ErrTokenExpired = errors.New("auth: session token has expired")
)

// DefaultTTL is the default session token lifetime. Short enough that a
// leaked token is of limited use; the channel stays up past expiry, only
// new handshakes need a fresh token.
const DefaultTTL = 1 * time.Hour

// Claims are the claims carried by session tokens.
type Claims struct {
	jwt.RegisteredClaims

	// RiderID is the authenticated rider.
	RiderID string `json:"rid"`
}

// Config holds configuration for the token service.
type Config struct {
	// SigningKey is the HS256 secret shared with the backend.
	SigningKey string
	// Issuer names the token issuer. Default: "glidecab".
	Issuer string
	// TTL is the token lifetime. Default: DefaultTTL.
	TTL time.Duration
}

// Service mints and verifies session tokens.
type Service struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
}

// NewService creates a token service.
func NewService(cfg Config) *Service {
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = "glidecab"
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Service{
		signingKey: []byte(cfg.SigningKey),
		issuer:     issuer,
		ttl:        ttl,
	}
}

// Mint issues a session token for the given rider.
func (s *Service) Mint(riderID string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   riderID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		RiderID: riderID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
}

// Verify validates a session token and returns its claims. Expired tokens
// return ErrTokenExpired so callers can distinguish "log in again" from
// "token is garbage".
func (s *Service) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Join(ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
