package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/codeGROOVE-dev/retry"
)

const (
	receiptPath = "/v1/receipts"
	labelPath   = "/v1/labels"
	dateLayout  = "2006-01-02"

	maxAttempts = 3
)

// StatusError is a non-2xx response from the extraction service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("extraction service returned HTTP %d: %s", e.StatusCode, e.Body)
}

// HTTPExtractor calls the extraction service over JSON. Transport errors and
// 5xx responses are retried; 4xx responses are not.
type HTTPExtractor struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	retryDelay time.Duration
	logger     *slog.Logger
}

// Option customizes an HTTPExtractor.
type Option func(*HTTPExtractor)

// WithHTTPClient replaces the default client. The client's timeout still
// bounds every attempt.
func WithHTTPClient(c *http.Client) Option {
	return func(e *HTTPExtractor) { e.httpClient = c }
}

// WithRetryDelay sets the initial backoff between attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(e *HTTPExtractor) { e.retryDelay = d }
}

// NewHTTPExtractor creates a client for the service at baseURL.
func NewHTTPExtractor(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger, opts ...Option) *HTTPExtractor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	e := &HTTPExtractor{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		retryDelay: 500 * time.Millisecond,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type imageRequest struct {
	Image string `json:"image"`
}

type receiptResponse struct {
	Items []ReceiptItem `json:"items"`
}

type labelResponse struct {
	Date       string  `json:"date"`
	Confidence float64 `json:"confidence"`
}

// ExtractReceipt returns the recognised receipt lines.
func (e *HTTPExtractor) ExtractReceipt(ctx context.Context, image []byte) ([]ReceiptItem, error) {
	var resp receiptResponse
	if err := e.post(ctx, receiptPath, image, &resp); err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, ErrNoResult
	}
	return resp.Items, nil
}

// ExtractDate returns the expiration date printed on a label. Date carries
// the calendar date at UTC midnight; LabelPatch places it in a zone.
func (e *HTTPExtractor) ExtractDate(ctx context.Context, image []byte) (*ExtractedDate, error) {
	var resp labelResponse
	if err := e.post(ctx, labelPath, image, &resp); err != nil {
		return nil, err
	}
	if resp.Date == "" {
		return nil, ErrNoResult
	}
	d, err := time.Parse(dateLayout, resp.Date)
	if err != nil {
		return nil, fmt.Errorf("parse label date %q: %w", resp.Date, err)
	}
	return &ExtractedDate{Date: d, Confidence: resp.Confidence}, nil
}

func (e *HTTPExtractor) post(ctx context.Context, path string, image []byte, out any) error {
	if len(image) == 0 {
		return fmt.Errorf("%w: empty image", ErrNoResult)
	}
	payload, err := json.Marshal(imageRequest{Image: base64.StdEncoding.EncodeToString(image)})
	if err != nil {
		return fmt.Errorf("marshal extraction request: %w", err)
	}
	url := e.baseURL + path

	err = retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			req.Header.Set("Content-Type", "application/json")
			if e.apiKey != "" {
				req.Header.Set("Authorization", "Bearer "+e.apiKey)
			}

			start := time.Now()
			resp, err := e.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("extraction request: %w", err)
			}
			defer resp.Body.Close()

			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			e.logger.Debug("Extraction service responded",
				"path", path,
				"status_code", resp.StatusCode,
				"duration_ms", time.Since(start).Milliseconds())

			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				serr := &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
				if resp.StatusCode < 500 {
					return retry.Unrecoverable(serr)
				}
				return serr
			}
			if err := json.Unmarshal(body, out); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decode extraction response: %w", err))
			}
			return nil
		},
		retry.Attempts(maxAttempts),
		retry.Delay(e.retryDelay),
		retry.MaxDelay(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			e.logger.Info("Retrying extraction after error", "path", path, "attempt", n+1, "error", err)
		}),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, context.Canceled)
		}),
	)
	if err != nil {
		return fmt.Errorf("extract %s: %w", path, err)
	}
	return nil
}

// truncate cuts s to at most maxLen bytes without splitting a rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
