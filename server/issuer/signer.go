package issuer

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Signer signs and verifies the backend's JWTs
type Signer interface {
	// Sign creates a signed JWT from claims
	Sign(claims jwt.Claims) (string, error)

	// VerificationKey is a jwt.Keyfunc returning the key a token must verify against
	VerificationKey(token *jwt.Token) (any, error)

	SigningMethod() jwt.SigningMethod
}

// HMACSigner implements Signer using symmetric HMAC-SHA256
type HMACSigner struct {
	secret []byte
}

func NewHMACSigner(secret string) *HMACSigner {
	return &HMACSigner{
		secret: []byte(secret),
	}
}

func (h *HMACSigner) Sign(claims jwt.Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
	if err != nil {
		return "", fmt.Errorf("[HMACSigner Sign] %w", err)
	}
	return signed, nil
}

func (h *HMACSigner) VerificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return h.secret, nil
}

func (h *HMACSigner) SigningMethod() jwt.SigningMethod {
	return jwt.SigningMethodHS256
}
