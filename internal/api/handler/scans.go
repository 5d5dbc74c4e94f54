package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/albapepper/freshtrack/internal/api/respond"
	"github.com/albapepper/freshtrack/internal/extraction"
)

// ScanReceipt extracts items from a receipt photo and stores them as
// estimated items bought now.
// @Summary Scan receipt
// @Description Accepts the raw image as the request body. Detected items get an estimated expiration of purchase date plus typical shelf life.
// @Tags extraction
// @Accept octet-stream
// @Produce json
// @Param X-Recipient-ID header string false "Recipient UUID"
// @Success 201 {object} ItemsResponse
// @Failure 422 {object} respond.ErrorResponse
// @Failure 502 {object} respond.ErrorResponse
// @Failure 503 {object} respond.ErrorResponse
// @Router /receipts/scan [post]
func (h *Handler) ScanReceipt(w http.ResponseWriter, r *http.Request) {
	image, ok := h.readImage(w, r)
	if !ok {
		return
	}
	lines, err := h.extractor.ExtractReceipt(r.Context(), image)
	if err != nil {
		h.writeExtractionError(w, err)
		return
	}
	items := extraction.ToNewItems(lines, h.now(), h.cfg.NotifyLocation)
	if len(items) == 0 {
		respond.WriteError(w, http.StatusUnprocessableEntity, "NO_ITEMS", "No items recognised with enough confidence")
		return
	}

	recipient := recipientFrom(r)
	created, err := h.store.CreateItems(r.Context(), recipient, items)
	if err != nil {
		h.writeStoreError(w, "create items", err)
		return
	}
	h.invalidateItems(recipient)
	respond.WriteJSONObject(w, http.StatusCreated, ItemsResponse{Items: created})
}

// ScanLabel reads the printed expiration date for an existing item.
// @Summary Scan label date
// @Description Accepts the raw image as the request body and sets the item's expiration from the printed date, marked as estimated.
// @Tags extraction
// @Accept octet-stream
// @Produce json
// @Param X-Recipient-ID header string false "Recipient UUID"
// @Param id path string true "Item UUID"
// @Success 200 {object} pantry.Item
// @Failure 404 {object} respond.ErrorResponse
// @Failure 422 {object} respond.ErrorResponse
// @Failure 503 {object} respond.ErrorResponse
// @Router /items/{id}/label-scan [post]
func (h *Handler) ScanLabel(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	image, ok := h.readImage(w, r)
	if !ok {
		return
	}
	date, err := h.extractor.ExtractDate(r.Context(), image)
	if err != nil {
		h.writeExtractionError(w, err)
		return
	}
	patch, err := extraction.LabelPatch(date, h.cfg.NotifyLocation)
	if err != nil {
		h.writeExtractionError(w, err)
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

func (h *Handler) readImage(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if h.extractor == nil {
		respond.WriteError(w, http.StatusServiceUnavailable, "EXTRACTION_DISABLED", "No extraction service configured")
		return nil, false
	}
	image, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImageBody))
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusRequestEntityTooLarge, "IMAGE_TOO_LARGE", "Image exceeds the upload limit", err.Error())
		return nil, false
	}
	if len(image) == 0 {
		respond.WriteError(w, http.StatusBadRequest, "MISSING_IMAGE", "Request body must contain the image")
		return nil, false
	}
	return image, true
}

func (h *Handler) writeExtractionError(w http.ResponseWriter, err error) {
	if errors.Is(err, extraction.ErrNoResult) {
		respond.WriteError(w, http.StatusUnprocessableEntity, "NO_RESULT", "Nothing could be read from the image")
		return
	}
	h.logger.Warn("Extraction failed", "error", err)
	respond.WriteErrorDetail(w, http.StatusBadGateway, "EXTRACTION_FAILED", "Extraction service error", err.Error())
}
