package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stillpoint/stillpoint-api/internal/api/shared"
	"github.com/stillpoint/stillpoint-api/internal/domain"
)

// getOwnerIDFromContext extracts the authenticated owner's UUID from the
// request context, placed there by the authentication middleware.
func getOwnerIDFromContext(r *http.Request) (uuid.UUID, bool) {
	ownerID, ok := r.Context().Value(shared.OwnerIDContextKey).(uuid.UUID)
	if !ok || ownerID == uuid.Nil {
		return uuid.Nil, false
	}
	return ownerID, true
}

// requireOwnerID extracts the owner ID from the context and writes a 401
// response when it is missing. Returns false when a response was written.
func requireOwnerID(w http.ResponseWriter, r *http.Request, log *slog.Logger) (uuid.UUID, bool) {
	ownerID, ok := getOwnerIDFromContext(r)
	if !ok {
		log.Warn("owner ID not found or invalid in request context")
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Owner ID not found or invalid")
		return uuid.Nil, false
	}
	return ownerID, true
}

// requirePathDomain parses the {domain} path parameter and writes a 400
// response when it names no known record domain.
func requirePathDomain(w http.ResponseWriter, r *http.Request, log *slog.Logger) (domain.RecordDomain, bool) {
	raw := chi.URLParam(r, "domain")
	recordDomain := domain.RecordDomain(raw)
	if !recordDomain.Valid() {
		log.Warn("unknown record domain in URL path", slog.String("domain", raw))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Unknown record domain")
		return "", false
	}
	return recordDomain, true
}

// requirePathUUID parses a UUID path parameter and writes a 400 response
// when it is missing or malformed.
func requirePathUUID(
	w http.ResponseWriter,
	r *http.Request,
	paramName string,
	log *slog.Logger,
) (uuid.UUID, bool) {
	raw := chi.URLParam(r, paramName)
	if raw == "" {
		log.Warn("missing path parameter", slog.String("param", paramName))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Record ID is required")
		return uuid.Nil, false
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		log.Warn("invalid UUID in URL path",
			slog.String("param", paramName),
			slog.String("value", raw))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid record ID format")
		return uuid.Nil, false
	}

	return id, true
}
