// Package api provides HTTP handlers for the API.
package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/stillpoint/stillpoint-api/internal/api/shared"
	"github.com/stillpoint/stillpoint-api/internal/domain"
	"github.com/stillpoint/stillpoint-api/internal/platform/logger"
	"github.com/stillpoint/stillpoint-api/internal/redact"
	"github.com/stillpoint/stillpoint-api/internal/service/lifecycle"
	"github.com/stillpoint/stillpoint-api/internal/store"
)

// RecordHandler handles timed-record HTTP requests
type RecordHandler struct {
	lifecycleService lifecycle.Service
	logger           *slog.Logger
}

// NewRecordHandler creates a new RecordHandler
func NewRecordHandler(lifecycleService lifecycle.Service, logger *slog.Logger) *RecordHandler {
	if lifecycleService == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("lifecycleService cannot be nil for RecordHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for RecordHandler")
	}

	return &RecordHandler{
		lifecycleService: lifecycleService,
		logger:           logger.With(slog.String("component", "record_handler")),
	}
}

// Open handles POST /records/{domain} requests.
// It opens a timed record for the authenticated owner; mood entries come
// back already finalized.
func (h *RecordHandler) Open(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ownerID, ok := requireOwnerID(w, r, log)
	if !ok {
		return
	}
	recordDomain, ok := requirePathDomain(w, r, log)
	if !ok {
		return
	}

	var req OpenRecordRequest
	if err := shared.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		log.Warn("invalid request format",
			slog.String("error", redact.Error(err)),
			slog.String("owner_id", ownerID.String()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	params := lifecycle.OpenParams{
		PlannedDuration: time.Duration(req.PlannedDurationSeconds) * time.Second,
		AllowConcurrent: req.AllowConcurrent,
		Ratings:         req.Ratings,
		Extension:       req.Extension,
		Metadata:        req.Metadata,
	}

	record, err := h.lifecycleService.Open(r.Context(), ownerID, recordDomain, params)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Debug("record opened",
		slog.String("owner_id", ownerID.String()),
		slog.String("record_id", record.ID.String()),
		slog.String("domain", string(recordDomain)))
	shared.RespondWithJSON(w, r, http.StatusCreated, recordToResponse(record))
}

// Progress handles PATCH /records/{domain}/{id} requests.
// It applies a last-write-wins update of non-derived fields to an open record.
func (h *RecordHandler) Progress(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ownerID, ok := requireOwnerID(w, r, log)
	if !ok {
		return
	}
	if _, ok := requirePathDomain(w, r, log); !ok {
		return
	}
	recordID, ok := requirePathUUID(w, r, "id", log)
	if !ok {
		return
	}

	var req ProgressRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Warn("invalid request format",
			slog.String("error", redact.Error(err)),
			slog.String("record_id", recordID.String()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	update := lifecycle.ProgressUpdate{
		Ratings:         req.Ratings,
		AppendStages:    req.AppendStages,
		Stressors:       req.Stressors,
		Tags:            req.Tags,
		CyclesCompleted: req.CyclesCompleted,
		Metadata:        req.Metadata,
	}
	if req.PlannedDurationSeconds != nil {
		planned := time.Duration(*req.PlannedDurationSeconds) * time.Second
		update.PlannedDuration = &planned
	}

	record, err := h.lifecycleService.Progress(r.Context(), ownerID, recordID, update)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, recordToResponse(record))
}

// Finalize handles POST /records/{domain}/{id}/finalize requests.
// An empty body finalizes with no overrides; repeating a finalize with
// unchanged inputs returns the stored record as-is.
func (h *RecordHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ownerID, ok := requireOwnerID(w, r, log)
	if !ok {
		return
	}
	if _, ok := requirePathDomain(w, r, log); !ok {
		return
	}
	recordID, ok := requirePathUUID(w, r, "id", log)
	if !ok {
		return
	}

	var req FinalizeRequest
	if err := shared.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		log.Warn("invalid request format",
			slog.String("error", redact.Error(err)),
			slog.String("record_id", recordID.String()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	overrides := lifecycle.FinalizeOverrides{
		EndAt:     req.EndAt,
		Ratings:   req.Ratings,
		Stressors: req.Stressors,
		Metadata:  req.Metadata,
	}

	record, err := h.lifecycleService.Finalize(r.Context(), ownerID, recordID, overrides)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Debug("record finalized",
		slog.String("owner_id", ownerID.String()),
		slog.String("record_id", record.ID.String()))
	shared.RespondWithJSON(w, r, http.StatusOK, recordToResponse(record))
}

// Get handles GET /records/{domain}/{id} requests.
func (h *RecordHandler) Get(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ownerID, ok := requireOwnerID(w, r, log)
	if !ok {
		return
	}
	if _, ok := requirePathDomain(w, r, log); !ok {
		return
	}
	recordID, ok := requirePathUUID(w, r, "id", log)
	if !ok {
		return
	}

	record, err := h.lifecycleService.Get(r.Context(), ownerID, recordID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, recordToResponse(record))
}

// List handles GET /records/{domain} requests.
// Supported query parameters: from, to (RFC 3339), status (comma-separated),
// min_duration_seconds, min_rating, max_rating, goal, tag, limit, offset.
func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ownerID, ok := requireOwnerID(w, r, log)
	if !ok {
		return
	}
	recordDomain, ok := requirePathDomain(w, r, log)
	if !ok {
		return
	}

	filter, page, err := parseListQuery(r)
	if err != nil {
		log.Warn("invalid list query",
			slog.String("error", redact.Error(err)),
			slog.String("owner_id", ownerID.String()))
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.lifecycleService.List(r.Context(), ownerID, recordDomain, filter, page)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	response := ListRecordsResponse{
		Items:      make([]RecordResponse, 0, len(result.Items)),
		NextOffset: result.NextOffset,
	}
	for _, record := range result.Items {
		response.Items = append(response.Items, recordToResponse(record))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, response)
}

// parseListQuery translates the listing query parameters into a store
// filter and page. Unparsable values are rejected rather than ignored.
func parseListQuery(r *http.Request) (store.ListFilter, store.Page, error) {
	var filter store.ListFilter
	var page store.Page
	q := r.URL.Query()

	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, page, errors.New("from must be an RFC 3339 timestamp")
		}
		filter.From = &t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, page, errors.New("to must be an RFC 3339 timestamp")
		}
		filter.To = &t
	}
	if raw := q.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			status := domain.RecordStatus(strings.TrimSpace(s))
			switch status {
			case domain.StatusOpen, domain.StatusFinalized, domain.StatusAbandoned:
				filter.Statuses = append(filter.Statuses, status)
			default:
				return filter, page, errors.New("status must be open, finalized or abandoned")
			}
		}
	}
	if raw := q.Get("min_duration_seconds"); raw != "" {
		seconds, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || seconds < 0 {
			return filter, page, errors.New("min_duration_seconds must be a non-negative integer")
		}
		d := time.Duration(seconds) * time.Second
		filter.MinDuration = &d
	}
	if raw := q.Get("min_rating"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return filter, page, errors.New("min_rating must be an integer")
		}
		filter.MinRating = &v
	}
	if raw := q.Get("max_rating"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return filter, page, errors.New("max_rating must be an integer")
		}
		filter.MaxRating = &v
	}
	filter.GoalCode = q.Get("goal")
	filter.Tag = q.Get("tag")

	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return filter, page, errors.New("limit must be a positive integer")
		}
		page.Limit = v
	}
	if raw := q.Get("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return filter, page, errors.New("offset must be a non-negative integer")
		}
		page.Offset = v
	}

	return filter, page, nil
}
