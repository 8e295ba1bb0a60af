// Package auth verifies bearer tokens issued by the identity service. This
// API never issues tokens itself; it only extracts a verified owner ID from
// tokens presented on incoming requests.
package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TokenVerifier validates access tokens presented on API requests.
type TokenVerifier interface {
	// VerifyToken validates the provided token string and extracts the
	// claims. Returns an error if validation fails (expired, invalid
	// signature, etc.).
	VerifyToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims carries the verified identity extracted from a token.
type Claims struct {
	// OwnerID is the unique identifier of the account the token was
	// issued for. Every record and analytics lookup is scoped to it.
	OwnerID uuid.UUID `json:"uid,omitempty"`

	// Standard registered JWT claims
	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
