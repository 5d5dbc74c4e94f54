package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/albapepper/freshtrack/internal/api/respond"
	"github.com/albapepper/freshtrack/internal/cache"
	"github.com/albapepper/freshtrack/internal/pantry"
)

// CreateItemsRequest is the body of POST /items.
type CreateItemsRequest struct {
	Items []pantry.NewItem `json:"items"`
}

// ItemsResponse wraps a list of items.
type ItemsResponse struct {
	Items []pantry.Item `json:"items"`
}

// ListItems returns the recipient's items, soonest expiration first.
// @Summary List items
// @Description Returns the calling recipient's pantry items ordered by expiration. Supports If-None-Match.
// @Tags items
// @Produce json
// @Param X-Recipient-ID header string false "Recipient UUID"
// @Success 200 {object} ItemsResponse
// @Success 304
// @Failure 500 {object} respond.ErrorResponse
// @Router /items [get]
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	recipient := recipientFrom(r)
	cacheKey := cache.ItemsKey(recipient.String())
	ttl := cache.TTLItemList

	if data, etag, ok := h.cache.Get(cacheKey); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, ttl, true)
		return
	}

	items, err := h.store.ListItems(r.Context(), recipient)
	if err != nil {
		h.writeStoreError(w, "list items", err)
		return
	}
	raw, err := json.Marshal(ItemsResponse{Items: items})
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "ENCODE_ERROR", "Failed to encode items")
		return
	}

	etag := h.cache.Set(cacheKey, raw, ttl)
	if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
		respond.WriteNotModified(w, etag)
		return
	}
	respond.WriteJSON(w, raw, etag, ttl, false)
}

// CreateItems inserts a batch of items.
// @Summary Create items
// @Description Inserts 1..200 items in one transaction (manual entry or edited extraction results).
// @Tags items
// @Accept json
// @Produce json
// @Param X-Recipient-ID header string false "Recipient UUID"
// @Param body body CreateItemsRequest true "Items to create"
// @Success 201 {object} ItemsResponse
// @Failure 400 {object} respond.ErrorResponse
// @Failure 422 {object} respond.ErrorResponse
// @Router /items [post]
func (h *Handler) CreateItems(w http.ResponseWriter, r *http.Request) {
	var req CreateItemsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	recipient := recipientFrom(r)
	created, err := h.store.CreateItems(r.Context(), recipient, req.Items)
	if err != nil {
		h.writeStoreError(w, "create items", err)
		return
	}
	h.invalidateItems(recipient)
	respond.WriteJSONObject(w, http.StatusCreated, ItemsResponse{Items: created})
}

// GetItem returns one item.
// @Summary Get item
// @Tags items
// @Produce json
// @Param X-Recipient-ID header string false "Recipient UUID"
// @Param id path string true "Item UUID"
// @Success 200 {object} pantry.Item
// @Failure 404 {object} respond.ErrorResponse
// @Router /items/{id} [get]
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	it, ok := h.ownedItem(w, r)
	if !ok {
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, it)
}

// UpdateItem applies a partial update.
// @Summary Update item
// @Description Updates name, expiration or the estimated flag. Setting the expiration without an estimated flag marks it as human-entered.
// @Tags items
// @Accept json
// @Produce json
// @Param X-Recipient-ID header string false "Recipient UUID"
// @Param id path string true "Item UUID"
// @Param body body pantry.ItemPatch true "Fields to change"
// @Success 200 {object} pantry.Item
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Failure 422 {object} respond.ErrorResponse
// @Router /items/{id} [patch]
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var patch pantry.ItemPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	if patch.Empty() {
		respond.WriteError(w, http.StatusBadRequest, "EMPTY_PATCH", "Nothing to update")
		return
	}
	recipient := recipientFrom(r)
	it, err := h.store.UpdateItem(r.Context(), recipient, id, patch)
	if err != nil {
		h.writeStoreError(w, "update item", err)
		return
	}
	h.invalidateItems(recipient)
	respond.WriteJSONObject(w, http.StatusOK, it)
}

// DeleteItem removes an item and its notification history.
// @Summary Delete item
// @Tags items
// @Param X-Recipient-ID header string false "Recipient UUID"
// @Param id path string true "Item UUID"
// @Success 204
// @Failure 404 {object} respond.ErrorResponse
// @Router /items/{id} [delete]
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	recipient := recipientFrom(r)
	if err := h.store.DeleteItem(r.Context(), recipient, id); err != nil {
		h.writeStoreError(w, "delete item", err)
		return
	}
	h.invalidateItems(recipient)
	respond.WriteNoContent(w)
}

// ItemNotifications lists the reminders already sent for an item.
// @Summary Item notification history
// @Tags items
// @Produce json
// @Param X-Recipient-ID header string false "Recipient UUID"
// @Param id path string true "Item UUID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} respond.ErrorResponse
// @Router /items/{id}/notifications [get]
func (h *Handler) ItemNotifications(w http.ResponseWriter, r *http.Request) {
	it, ok := h.ownedItem(w, r)
	if !ok {
		return
	}
	entries, err := h.history.Entries(r.Context(), it.ID)
	if err != nil {
		h.logger.Error("Notification history lookup failed", "item_id", it.ID, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to load notification history")
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"item_id":       it.ID,
		"notifications": entries,
	})
}

// ownedItem loads the {id} item and hides items of other recipients.
func (h *Handler) ownedItem(w http.ResponseWriter, r *http.Request) (*pantry.Item, bool) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return nil, false
	}
	it, err := h.store.GetItem(r.Context(), id)
	if err == nil && it.RecipientID != recipientFrom(r) {
		err = pantry.ErrNotFound
	}
	if err != nil {
		h.writeStoreError(w, "get item", err)
		return nil, false
	}
	return it, true
}
