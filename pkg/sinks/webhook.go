package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/debug"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/resolution"
)

// Header names sent with every webhook request.
const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderSessionID      = "X-Session-ID"
)

// WebhookConfig configures a Webhook sink.
type WebhookConfig struct {
	BaseURL   string
	AuthToken string
	Timeout   time.Duration

	// RateLimit caps outbound requests per second. Zero disables limiting.
	RateLimit float64
	Burst     int
}

// Webhook posts actions to an HTTP service:
//
//	POST /remote/{service}/{operation}
//	POST /persistence
//	POST /notifications
//	POST /refunds
//	POST /escalations
//
// Refunds and escalations respond with {"reference": "..."}.
type Webhook struct {
	httpClient *http.Client
	baseURL    string
	token      string
	limiter    *rate.Limiter
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("sink returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("sink returned HTTP %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// NewWebhook creates a webhook sink.
func NewWebhook(cfg WebhookConfig) (*Webhook, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid sink base URL %q", cfg.BaseURL)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	w := &Webhook{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    base,
		token:      cfg.AuthToken,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		w.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return w, nil
}

// Sinks returns w in every sink role.
func (w *Webhook) Sinks() resolution.Sinks {
	return resolution.Sinks{Remote: w, Persistence: w, Notifier: w, Refunds: w, Escalations: w}
}

type actionEnvelope struct {
	Request resolution.ActionRequest `json:"request"`
	Payload any                      `json:"payload"`
}

type notificationPayload struct {
	Channel string `json:"channel"`
	Message string `json:"message"`
}

type referenceResponse struct {
	Reference string `json:"reference"`
}

// Call posts a remote call to /remote/{service}/{operation} and returns the
// decoded JSON response body.
func (w *Webhook) Call(ctx context.Context, req resolution.ActionRequest, call resolution.RemoteCall) (map[string]any, error) {
	path := "/remote/" + url.PathEscape(call.Service) + "/" + url.PathEscape(call.Operation)
	var out map[string]any
	if err := w.post(ctx, path, req, call, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update posts a persistence update to /persistence.
func (w *Webhook) Update(ctx context.Context, req resolution.ActionRequest, upd resolution.PersistenceUpdate) error {
	return w.post(ctx, "/persistence", req, upd, nil)
}

// Notify posts an already localized customer message to /notifications.
func (w *Webhook) Notify(ctx context.Context, req resolution.ActionRequest, channel, message string) error {
	return w.post(ctx, "/notifications", req, notificationPayload{Channel: channel, Message: message}, nil)
}

// Refund posts a refund to /refunds and returns the reference the payment
// service assigned. The request's idempotency key travels in the
// Idempotency-Key header.
func (w *Webhook) Refund(ctx context.Context, req resolution.ActionRequest, r resolution.Refund) (string, error) {
	var out referenceResponse
	if err := w.post(ctx, "/refunds", req, r, &out); err != nil {
		return "", err
	}
	return out.Reference, nil
}

// Escalate posts an escalation to /escalations and returns the ticket
// reference.
func (w *Webhook) Escalate(ctx context.Context, req resolution.ActionRequest, e resolution.Escalation) (string, error) {
	var out referenceResponse
	if err := w.post(ctx, "/escalations", req, e, &out); err != nil {
		return "", err
	}
	return out.Reference, nil
}

func (w *Webhook) post(ctx context.Context, path string, req resolution.ActionRequest, payload, out any) error {
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("sink rate limit: %w", err)
		}
	}

	body, err := json.Marshal(actionEnvelope{Request: req, Payload: payload})
	if err != nil {
		return fmt.Errorf("encoding sink request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating sink request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if w.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+w.token)
	}
	if req.IdempotencyKey != "" {
		httpReq.Header.Set(HeaderIdempotencyKey, req.IdempotencyKey)
	}
	if req.SessionID != "" {
		httpReq.Header.Set(HeaderSessionID, req.SessionID)
	}

	start := time.Now()
	resp, err := w.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sink connection error: %w", err)
	}
	defer resp.Body.Close()
	debug.Log("sinks", "webhook call",
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Message: extractMessage(resp.Body)}
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decoding sink response: %w", err)
	}
	return nil
}

// extractMessage reads {"error": "..."} or {"message": "..."} from an error
// body, or returns the trimmed body text.
func extractMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &parsed) == nil {
		if parsed.Error != "" {
			return parsed.Error
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	return strings.TrimSpace(string(data))
}
