package blob

import (
	"errors"
	"fmt"
	"time"

	"integrity-pipeline/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// URLClaims binds a token to exactly one blob reference.
type URLClaims struct {
	jwt.RegisteredClaims
}

// Signer mints and checks the short-lived tokens carried by artifact URLs.
type Signer struct {
	secret []byte
	now    func() time.Time
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret), now: time.Now}
}

// WithClock replaces the time source, for tests.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	s.now = now
	return s
}

func (s *Signer) Mint(ref string, ttl time.Duration) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("blob signer: empty secret")
	}
	now := s.now()
	claims := URLClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   ref,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("blob signer: %w", err)
	}
	return signed, nil
}

// Verify returns the reference a valid token was minted for.
func (s *Signer) Verify(token string) (string, error) {
	claims := &URLClaims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !tkn.Valid || claims.Subject == "" {
		return "", domain.ErrInvalidToken
	}
	return claims.Subject, nil
}
