package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// DefaultGatewayURL is the Expo push endpoint.
const DefaultGatewayURL = "https://exp.host/--/api/v2/push/send"

const maxResponseBytes = 64 << 10

// ErrDispatchFailed is wrapped by every DispatchError.
var ErrDispatchFailed = errors.New("dispatch failed")

// Dispatcher delivers one notification. Implementations do not retry; the
// scheduler leaves the log empty on failure so the next run retries.
type Dispatcher interface {
	Send(ctx context.Context, msg Message) error
}

// DispatchError reports a failed delivery attempt.
type DispatchError struct {
	StatusCode int // 0 when the request never got a response
	Reason     string
}

func (e *DispatchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("dispatch failed (HTTP %d): %s", e.StatusCode, e.Reason)
	}
	return "dispatch failed: " + e.Reason
}

func (e *DispatchError) Unwrap() error { return ErrDispatchFailed }

// --------------------------------------------------------------------------
// PushSender
// --------------------------------------------------------------------------

// PushSender sends notifications to an Expo-compatible push gateway, one
// request per message, rate limited on the client side.
type PushSender struct {
	httpClient  *http.Client
	endpoint    string
	accessToken string
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// SenderOption customizes a PushSender.
type SenderOption func(*PushSender)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) SenderOption {
	return func(s *PushSender) { s.httpClient = c }
}

// NewPushSender creates a gateway sender. perSecond <= 0 disables client-side
// rate limiting. accessToken may be empty.
func NewPushSender(endpoint, accessToken string, perSecond float64, logger *slog.Logger, opts ...SenderOption) *PushSender {
	if endpoint == "" {
		endpoint = DefaultGatewayURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	s := &PushSender{
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		endpoint:    endpoint,
		accessToken: accessToken,
		limiter:     rate.NewLimiter(limit, 1),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type pushRequest struct {
	To    string         `json:"to"`
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data,omitempty"`
	Sound string         `json:"sound,omitempty"`
}

// pushResponse is the gateway's ticket. Only the status is inspected.
type pushResponse struct {
	Data struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"data"`
}

// Send performs exactly one gateway request.
func (s *PushSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return &DispatchError{Reason: "empty recipient address"}
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	payload, err := json.Marshal(pushRequest{
		To: msg.To, Title: msg.Title, Body: msg.Body, Data: msg.Data, Sound: "default",
	})
	if err != nil {
		return fmt.Errorf("marshal push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.accessToken)
	}

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &DispatchError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	s.logger.Debug("Push gateway responded",
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &DispatchError{StatusCode: resp.StatusCode, Reason: truncate(string(body), maxFailureReason)}
	}

	var ticket pushResponse
	if json.Unmarshal(body, &ticket) == nil && ticket.Data.Status == "error" {
		return &DispatchError{StatusCode: resp.StatusCode, Reason: ticket.Data.Message}
	}
	return nil
}

// --------------------------------------------------------------------------
// LogSender
// --------------------------------------------------------------------------

// LogSender logs notifications instead of sending them. For local
// development only: every send succeeds, so the log fills up as if delivered.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a logging sender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the message.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.Info("Push send (log mode)",
		"to", msg.To, "title", msg.Title, "body", msg.Body)
	return nil
}
