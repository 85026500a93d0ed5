package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const documentTokenIssuer = "olimpiada-receipts"

// DocumentClaims binds a download token to one receipt and its stored document.
type DocumentClaims struct {
	DocumentRef string `json:"doc"`
	jwt.RegisteredClaims
}

// SignedURLSigner creates and validates expiring download tokens.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &SignedURLSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Generate returns a signed token referencing the receipt and document.
func (s *SignedURLSigner) Generate(receiptID, documentRef string) (string, time.Time, error) {
	if receiptID == "" || documentRef == "" {
		return "", time.Time{}, errors.New("receipt id and document reference required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, errors.New("signing secret missing")
	}
	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(s.ttl)
	claims := &DocumentClaims{
		DocumentRef: documentRef,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    documentTokenIssuer,
			Subject:   receiptID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign document token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse validates a token and returns the receipt id and document reference.
func (s *SignedURLSigner) Parse(token string) (receiptID, documentRef string, err error) {
	parsed, err := jwt.ParseWithClaims(token, &DocumentClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(documentTokenIssuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", "", fmt.Errorf("parse document token: %w", err)
	}
	claims, ok := parsed.Claims.(*DocumentClaims)
	if !ok || !parsed.Valid {
		return "", "", errors.New("invalid document token claims")
	}
	return claims.Subject, claims.DocumentRef, nil
}
