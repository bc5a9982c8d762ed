// Package token issues and checks the signed links that let a buyer view an
// order without an account.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalid = errors.New("token: invalid")
	ErrScope   = errors.New("token: scope mismatch")
)

const (
	DefaultTTL = 30 * 24 * time.Hour
	scopeOrder = "order:"
	leeway     = 30 * time.Second
)

type claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// Issuer signs HS256 tokens scoped to a single order number.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret, issuer string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

func OrderScope(orderNumber string) string { return scopeOrder + orderNumber }

func (i *Issuer) Issue(orderNumber string) (string, error) {
	if len(i.secret) == 0 {
		return "", errors.New("token: secret not configured")
	}
	now := i.now()
	c := claims{
		Scope: OrderScope(orderNumber),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   orderNumber,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry and that the token was issued for orderNumber.
func (i *Issuer) Verify(raw, orderNumber string) error {
	if raw == "" {
		return ErrInvalid
	}
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return i.secret, nil
	},
		jwt.WithLeeway(leeway),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.Scope != OrderScope(orderNumber) {
		return ErrScope
	}
	return nil
}
