package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stillpoint/stillpoint-api/internal/service/auth"
)

// stubVerifier returns canned claims or errors for testing.
type stubVerifier struct {
	claims *auth.Claims
	err    error
}

func (s *stubVerifier) VerifyToken(ctx context.Context, tokenString string) (*auth.Claims, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.claims, nil
}

func runAuthenticated(t *testing.T, verifier auth.TokenVerifier, header string) (*httptest.ResponseRecorder, uuid.UUID, bool) {
	t.Helper()

	var capturedOwner uuid.UUID
	var reachedHandler bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reachedHandler = true
		capturedOwner, _ = GetOwnerID(r)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/records/mood", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()

	NewAuthMiddleware(verifier).Authenticate(next).ServeHTTP(rec, req)
	return rec, capturedOwner, reachedHandler
}

func TestAuthenticateSuccess(t *testing.T) {
	ownerID := uuid.New()
	verifier := &stubVerifier{claims: &auth.Claims{OwnerID: ownerID}}

	rec, capturedOwner, reached := runAuthenticated(t, verifier, "Bearer some-token")

	require.True(t, reached)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ownerID, capturedOwner)
}

func TestAuthenticateMissingHeader(t *testing.T) {
	verifier := &stubVerifier{claims: &auth.Claims{OwnerID: uuid.New()}}

	rec, _, reached := runAuthenticated(t, verifier, "")

	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateMalformedHeader(t *testing.T) {
	verifier := &stubVerifier{claims: &auth.Claims{OwnerID: uuid.New()}}

	rec, _, reached := runAuthenticated(t, verifier, "Token abc")

	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateExpiredToken(t *testing.T) {
	verifier := &stubVerifier{err: auth.ErrExpiredToken}

	rec, _, reached := runAuthenticated(t, verifier, "Bearer stale")

	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Token expired")
}

func TestAuthenticateInvalidToken(t *testing.T) {
	verifier := &stubVerifier{err: auth.ErrInvalidToken}

	rec, _, reached := runAuthenticated(t, verifier, "Bearer garbage")

	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateVerifierFailure(t *testing.T) {
	verifier := &stubVerifier{err: errors.New("key store unreachable")}

	rec, _, reached := runAuthenticated(t, verifier, "Bearer token")

	assert.False(t, reached)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
