// Package token issues the signed registration receipt returned on a
// successful signup. The approval workflow verifies the receipt to bind its
// decision to the registered profile without a database round-trip.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "citizenly-registration"

// ReceiptClaims are the registration receipt's JWT claims.
type ReceiptClaims struct {
	jwt.RegisteredClaims
	Status string `json:"status"`
}

// Issuer signs and verifies registration receipts with an HS256 key.
type Issuer struct {
	signingKey []byte
	ttl        time.Duration
}

func NewIssuer(signingKey string, ttl time.Duration) *Issuer {
	return &Issuer{signingKey: []byte(signingKey), ttl: ttl}
}

// Receipt issues a receipt for the given profile.
func (i *Issuer) Receipt(profileID uuid.UUID, status string, now time.Time) (string, error) {
	claims := ReceiptClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   profileID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Status: status,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign registration receipt: %w", err)
	}
	return signed, nil
}

// Verify parses a receipt and returns its claims.
func (i *Issuer) Verify(receipt string) (*ReceiptClaims, error) {
	var claims ReceiptClaims
	_, err := jwt.ParseWithClaims(receipt, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.signingKey, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("verify registration receipt: %w", err)
	}
	return &claims, nil
}
