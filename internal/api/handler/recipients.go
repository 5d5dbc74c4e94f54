package handler

import (
	"net/http"

	"github.com/albapepper/freshtrack/internal/api/respond"
)

// PushTokenRequest is the body of PUT /recipients/me/push-token.
type PushTokenRequest struct {
	PushToken string `json:"push_token"`
}

// RegisterRecipient creates the calling recipient on first launch.
// @Summary Register recipient
// @Description Idempotently creates the calling recipient.
// @Tags recipients
// @Produce json
// @Param X-Recipient-ID header string false "Recipient UUID"
// @Success 200 {object} pantry.Recipient
// @Router /recipients/me [post]
func (h *Handler) RegisterRecipient(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.EnsureRecipient(r.Context(), recipientFrom(r))
	if err != nil {
		h.writeStoreError(w, "register recipient", err)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, rec)
}

// SetPushToken stores the device push token. An empty token stops
// notifications.
// @Summary Set push token
// @Tags recipients
// @Accept json
// @Produce json
// @Param X-Recipient-ID header string false "Recipient UUID"
// @Param body body PushTokenRequest true "Push token"
// @Success 200 {object} pantry.Recipient
// @Failure 400 {object} respond.ErrorResponse
// @Router /recipients/me/push-token [put]
func (h *Handler) SetPushToken(w http.ResponseWriter, r *http.Request) {
	var req PushTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rec, err := h.store.SetPushToken(r.Context(), recipientFrom(r), req.PushToken)
	if err != nil {
		h.writeStoreError(w, "set push token", err)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, rec)
}

// DeleteRecipient removes a recipient that owns no items.
// @Summary Delete recipient
// @Tags recipients
// @Param X-Recipient-ID header string false "Recipient UUID"
// @Success 204
// @Failure 404 {object} respond.ErrorResponse
// @Failure 409 {object} respond.ErrorResponse
// @Router /recipients/me [delete]
func (h *Handler) DeleteRecipient(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteRecipient(r.Context(), recipientFrom(r)); err != nil {
		h.writeStoreError(w, "delete recipient", err)
		return
	}
	respond.WriteNoContent(w)
}
