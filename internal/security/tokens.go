// Package security guards destructive revision actions. A restore needs the
// edit capability and a single-use token bound to the exact record and
// revision it was issued for.
package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL is how long a restore token stays valid
const DefaultTokenTTL = 24 * time.Hour

// RestoreClaims are the validated claims of a restore token
type RestoreClaims struct {
	Actor      string
	RecordID   string
	RevisionID string
	JWTID      string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// restoreClaims is the wire form used for JWT encoding.
type restoreClaims struct {
	jwt.RegisteredClaims
	RecordID   string `json:"record_id"`
	RevisionID string `json:"revision_id"`
}

// Tokens issues and verifies HS256 restore tokens
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens creates a token issuer. A zero ttl uses DefaultTokenTTL.
func NewTokens(secret string, ttl time.Duration) (*Tokens, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue creates a token allowing actor to restore revisionID onto recordID
func (t *Tokens) Issue(actor, recordID, revisionID string) (string, error) {
	now := t.now().UTC()
	claims := restoreClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor,
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		RecordID:   recordID,
		RevisionID: revisionID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign restore token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of token and returns its claims.
// Binding to a record and revision is checked by the caller.
func (t *Tokens) Verify(token string) (RestoreClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return RestoreClaims{}, errors.New("restore token is required")
	}

	var parsed restoreClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return RestoreClaims{}, fmt.Errorf("parse restore token: %w", err)
	}
	if parsed.ID == "" {
		return RestoreClaims{}, errors.New("restore token jti is required")
	}

	claims := RestoreClaims{
		Actor:      parsed.Subject,
		RecordID:   parsed.RecordID,
		RevisionID: parsed.RevisionID,
		JWTID:      parsed.ID,
		ExpiresAt:  parsed.ExpiresAt.Time.UTC(),
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}
