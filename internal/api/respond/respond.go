// Package respond writes the API's JSON bodies, ETag revalidation headers and
// error envelope.
package respond

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	contentTypeJSON = "application/json"

	// Item lists differ per recipient, so every cached response varies on
	// the recipient header as well as the encoding.
	varyRecipient = "Accept-Encoding, X-Recipient-ID"

	noStore = "no-cache, no-store, must-revalidate"
)

// ErrorResponse is the standard error shape for all API errors.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries a machine-readable code and a human message.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// privateRevalidate is the Cache-Control for per-recipient data: only the
// client may store it, it must revalidate with the ETag on every use, and a
// stale copy may be shown for up to ttl when the API is failing.
func privateRevalidate(ttl time.Duration) string {
	return fmt.Sprintf("private, max-age=0, must-revalidate, stale-if-error=%d", int(ttl.Seconds()))
}

func cacheStatus(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}

// WriteJSON writes pre-encoded data served from the response cache. hit
// reports whether it came from memory and is echoed in X-Cache.
func WriteJSON(w http.ResponseWriter, data []byte, etag string, ttl time.Duration, hit bool) {
	h := w.Header()
	h.Set("ETag", etag)
	h.Set("Vary", varyRecipient)
	h.Set("Cache-Control", privateRevalidate(ttl))
	h.Set("X-Cache", cacheStatus(hit))
	writeRaw(w, http.StatusOK, data)
}

// WriteNotModified answers a matching If-None-Match.
func WriteNotModified(w http.ResponseWriter, etag string) {
	w.Header().Set("ETag", etag)
	w.Header().Set("Vary", varyRecipient)
	w.WriteHeader(http.StatusNotModified)
}

// WriteJSONObject encodes v with the given status.
func WriteJSONObject(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError sends the error envelope without detail.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteErrorDetail(w, status, code, message, "")
}

// WriteErrorDetail sends the error envelope. Errors are never cached.
func WriteErrorDetail(w http.ResponseWriter, status int, code, message, detail string) {
	w.Header().Set("Cache-Control", noStore)
	WriteJSONObject(w, status, ErrorResponse{Error: ErrorBody{Code: code, Message: message, Detail: detail}})
}

// WriteNoContent sends a 204.
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func writeRaw(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
