package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTService inspects bearer tokens issued by the backend. The signing key
// stays on the server, so tokens are parsed without verification and only
// their expiry is read.
type JWTService struct {
	parser *jwt.Parser
	leeway time.Duration
}

func NewJWTService(leeway time.Duration) *JWTService {
	return &JWTService{
		parser: jwt.NewParser(),
		leeway: leeway,
	}
}

// Expiry returns the token's exp claim. ok is false for tokens that carry
// no expiry.
func (s *JWTService) Expiry(tokenString string) (exp time.Time, ok bool, err error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := s.parser.ParseUnverified(tokenString, claims); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse token: %v", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false, nil
	}
	return claims.ExpiresAt.Time, true, nil
}

// Usable reports whether the token can still be sent at now.
func (s *JWTService) Usable(tokenString string, now time.Time) bool {
	exp, ok, err := s.Expiry(tokenString)
	if err != nil {
		return false
	}
	return !ok || now.Add(s.leeway).Before(exp)
}

// TTL is how long the token should be cached. Zero means no expiry.
func (s *JWTService) TTL(tokenString string, now time.Time) time.Duration {
	exp, ok, err := s.Expiry(tokenString)
	if err != nil || !ok {
		return 0
	}
	if ttl := exp.Sub(now); ttl > 0 {
		return ttl
	}
	return time.Millisecond
}
