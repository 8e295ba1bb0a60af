package api

import (
	"log/slog"
	"net/http"

	"github.com/stillpoint/stillpoint-api/internal/api/shared"
	"github.com/stillpoint/stillpoint-api/internal/platform/logger"
	"github.com/stillpoint/stillpoint-api/internal/service/analytics"
	"github.com/stillpoint/stillpoint-api/internal/timerange"
)

// AnalyticsHandler handles aggregation HTTP requests
type AnalyticsHandler struct {
	analyticsService analytics.Service
	logger           *slog.Logger
}

// NewAnalyticsHandler creates a new AnalyticsHandler
func NewAnalyticsHandler(analyticsService analytics.Service, logger *slog.Logger) *AnalyticsHandler {
	if analyticsService == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("analyticsService cannot be nil for AnalyticsHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for AnalyticsHandler")
	}

	return &AnalyticsHandler{
		analyticsService: analyticsService,
		logger:           logger.With(slog.String("component", "analytics_handler")),
	}
}

// Daily handles GET /analytics/{domain}/daily requests.
// The range query parameter takes a window token (7d, 30d, 90d, 365d, all);
// it defaults to 30d.
func (h *AnalyticsHandler) Daily(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ownerID, ok := requireOwnerID(w, r, log)
	if !ok {
		return
	}
	recordDomain, ok := requirePathDomain(w, r, log)
	if !ok {
		return
	}
	window, token, ok := resolveRange(w, r, log)
	if !ok {
		return
	}

	points, err := h.analyticsService.Daily(r.Context(), ownerID, recordDomain, window)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	response := DailyResponse{
		Domain: string(recordDomain),
		Range:  token,
		Points: points,
	}
	shared.RespondWithJSON(w, r, http.StatusOK, response)
}

// Overview handles GET /analytics/{domain}/overview requests.
func (h *AnalyticsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ownerID, ok := requireOwnerID(w, r, log)
	if !ok {
		return
	}
	recordDomain, ok := requirePathDomain(w, r, log)
	if !ok {
		return
	}
	window, token, ok := resolveRange(w, r, log)
	if !ok {
		return
	}

	overview, err := h.analyticsService.Overview(r.Context(), ownerID, recordDomain, window)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, overviewToResponse(overview, token))
}

// Streak handles GET /analytics/{domain}/streak requests.
func (h *AnalyticsHandler) Streak(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ownerID, ok := requireOwnerID(w, r, log)
	if !ok {
		return
	}
	recordDomain, ok := requirePathDomain(w, r, log)
	if !ok {
		return
	}

	streak, err := h.analyticsService.Streak(r.Context(), ownerID, recordDomain)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	response := StreakResponse{
		Domain:     string(recordDomain),
		StreakDays: streak,
	}
	shared.RespondWithJSON(w, r, http.StatusOK, response)
}

// resolveRange parses the range query parameter into a window, writing a
// 400 response on an unknown token.
func resolveRange(
	w http.ResponseWriter,
	r *http.Request,
	log *slog.Logger,
) (timerange.Window, string, bool) {
	token := r.URL.Query().Get("range")

	// An empty token resolves to the default window.
	window, err := timerange.Resolve(token)
	if err != nil {
		log.Warn("invalid range token", slog.String("range", token))
		shared.RespondWithError(w, r, http.StatusBadRequest, GetSafeErrorMessage(err))
		return timerange.Window{}, "", false
	}

	return window, window.Token, true
}
