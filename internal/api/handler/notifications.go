package handler

import (
	"net/http"
	"time"

	"github.com/albapepper/freshtrack/internal/api/respond"
)

// RunNotifications performs a manual notification run and waits for it.
// @Summary Run notifications now
// @Description Runs one full expiration pass synchronously. Safe to call while the daily run is in progress; nothing is sent twice for the same item and threshold.
// @Tags notifications
// @Produce json
// @Success 200 {object} notifications.RunSummary
// @Failure 503 {object} respond.ErrorResponse
// @Router /notifications/run [post]
func (h *Handler) RunNotifications(w http.ResponseWriter, r *http.Request) {
	sum, err := h.trigger.RunNow(r.Context())
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusServiceUnavailable, "RUN_FAILED", "Notification run did not complete", err.Error())
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, sum)
}

// NotificationSchedule describes the daily trigger.
// @Summary Notification schedule
// @Tags notifications
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /notifications/schedule [get]
func (h *Handler) NotificationSchedule(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"schedule": h.trigger.Spec(),
		"timezone": h.trigger.Location().String(),
		"next_run": h.trigger.Next(now).Format(time.RFC3339),
		"enabled":  h.cfg.NotifyEnabled,
	})
}
