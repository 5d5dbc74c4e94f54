// Package handler provides HTTP handlers for all API endpoints.
// Handlers talk to the item store and the notification trigger directly;
// there is no service layer.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/albapepper/freshtrack/internal/api/respond"
	"github.com/albapepper/freshtrack/internal/cache"
	"github.com/albapepper/freshtrack/internal/config"
	"github.com/albapepper/freshtrack/internal/extraction"
	"github.com/albapepper/freshtrack/internal/notifications"
	"github.com/albapepper/freshtrack/internal/pantry"
)

// RecipientHeader selects the calling recipient.
const RecipientHeader = "X-Recipient-ID"

type ctxKey int

// RecipientKey is the context key holding the resolved recipient uuid.UUID.
const RecipientKey ctxKey = iota

const (
	maxJSONBody  = 1 << 20
	maxImageBody = 10 << 20
)

// NotificationTrigger is the manual entry point and schedule view of the
// daily trigger.
type NotificationTrigger interface {
	RunNow(ctx context.Context) (*notifications.RunSummary, error)
	Next(now time.Time) time.Time
	Spec() string
	Location() *time.Location
}

// Deps are the handler's collaborators. History and Extractor may be nil.
type Deps struct {
	Store     pantry.Store
	History   notifications.History
	Cache     *cache.Cache
	Trigger   NotificationTrigger
	Extractor extraction.Extractor
	Config    *config.Config
	Logger    *slog.Logger
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	store     pantry.Store
	history   notifications.History
	cache     *cache.Cache
	trigger   NotificationTrigger
	extractor extraction.Extractor
	cfg       *config.Config
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Handler with shared dependencies.
func New(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:     d.Store,
		history:   d.History,
		cache:     d.Cache,
		trigger:   d.Trigger,
		extractor: d.Extractor,
		cfg:       d.Config,
		logger:    logger,
		now:       time.Now,
	}
}

// Root serves API info at /.
// @Summary API root info
// @Description Returns API name, version and status.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"name":    "FreshTrack API",
		"version": "1.0.0",
		"status":  "running",
		"docs":    "/docs",
		"features": []string{
			"expiration_notifications",
			"receipt_extraction",
			"label_scan",
			"etag_support",
		},
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Description Returns basic health status and timestamp.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
// @Summary Database health check
// @Description Verifies item store connectivity.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warn("Database health check failed", "error", err)
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]any{
			"status":    "unhealthy",
			"database":  "disconnected",
			"error":     "Database connection check failed",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckCache returns cache statistics.
// @Summary Cache health check
// @Description Returns in-memory cache statistics (active keys, expired keys).
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health/cache [get]
func (h *Handler) HealthCheckCache(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"cache":     h.cache.Stats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func recipientFrom(r *http.Request) uuid.UUID {
	if id, ok := r.Context().Value(RecipientKey).(uuid.UUID); ok {
		return id
	}
	return config.DefaultRecipientID
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respond.WriteErrorDetail(w, http.StatusBadRequest, "INVALID_BODY", "Request body is not valid JSON", err.Error())
		return false
	}
	return true
}

func parseID(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_ID", "id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// writeStoreError maps store sentinels onto HTTP errors.
func (h *Handler) writeStoreError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, pantry.ErrNotFound):
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
	case errors.Is(err, pantry.ErrInvalidItem):
		respond.WriteErrorDetail(w, http.StatusUnprocessableEntity, "INVALID_ITEM", "Item failed validation", err.Error())
	case errors.Is(err, pantry.ErrRecipientHasItems):
		respond.WriteError(w, http.StatusConflict, "RECIPIENT_HAS_ITEMS", "Delete the recipient's items first")
	default:
		h.logger.Error("Store operation failed", "op", op, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "STORE_ERROR", fmt.Sprintf("Failed to %s", op))
	}
}

func (h *Handler) invalidateItems(recipient uuid.UUID) {
	h.cache.Invalidate(cache.ItemsKey(recipient.String()))
}
