package resolution

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/debug"
)

// DefaultActionTimeout applies to actions that do not set their own.
const DefaultActionTimeout = 5 * time.Second

// ActionRequest identifies the resolution an action belongs to. Sinks pass
// IdempotencyKey to downstream systems unchanged.
type ActionRequest struct {
	IdempotencyKey string         `json:"idempotencyKey,omitempty"`
	SessionID      string         `json:"sessionId"`
	CustomerID     string         `json:"customerId,omitempty"`
	Category       Category       `json:"category"`
	TemplateID     string         `json:"templateId"`
	StepID         string         `json:"stepId"`
	Language       string         `json:"language"`
	Region         string         `json:"region,omitempty"`
	BookingID      string         `json:"bookingId,omitempty"`
	Amount         float64        `json:"amount,omitempty"`
	Params         map[string]any `json:"params,omitempty"`
}

// RemoteCaller invokes downstream service operations.
type RemoteCaller interface {
	Call(ctx context.Context, req ActionRequest, call RemoteCall) (map[string]any, error)
}

// PersistenceWriter updates records owned by other systems.
type PersistenceWriter interface {
	Update(ctx context.Context, req ActionRequest, upd PersistenceUpdate) error
}

// Notifier delivers a message to the customer. Message is already localized.
type Notifier interface {
	Notify(ctx context.Context, req ActionRequest, channel, message string) error
}

// RefundProcessor moves money back to the customer and returns a reference.
type RefundProcessor interface {
	Refund(ctx context.Context, req ActionRequest, r Refund) (string, error)
}

// Escalator hands an issue to a human queue and returns a ticket reference.
type Escalator interface {
	Escalate(ctx context.Context, req ActionRequest, e Escalation) (string, error)
}

// Sinks bundles the collaborators actions are executed against.
type Sinks struct {
	Remote      RemoteCaller
	Persistence PersistenceWriter
	Notifier    Notifier
	Refunds     RefundProcessor
	Escalations Escalator
}

// Deduper runs fn at most once per key among completed calls. A key whose
// earlier call failed may run again.
type Deduper interface {
	Do(ctx context.Context, key string, fn func(ctx context.Context) (string, error)) (ref string, deduplicated bool, err error)
}

// ActionOutcome is the result of executing one action.
type ActionOutcome struct {
	Reference    string
	Deduplicated bool
	Duration     time.Duration
	Err          error
}

// ActionExecutor runs actions against sinks with per-action timeouts.
type ActionExecutor struct {
	sinks          Sinks
	dedupe         Deduper
	defaultTimeout time.Duration
}

// NewActionExecutor creates an executor. dedupe may be nil, in which case
// refunds and escalations are not de-duplicated locally.
func NewActionExecutor(sinks Sinks, dedupe Deduper, defaultTimeout time.Duration) *ActionExecutor {
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultActionTimeout
	}
	return &ActionExecutor{sinks: sinks, dedupe: dedupe, defaultTimeout: defaultTimeout}
}

// Execute runs a single action. The timeout is enforced even when the sink
// ignores ctx: a late sink result is discarded.
func (x *ActionExecutor) Execute(ctx context.Context, a Action, req ActionRequest) ActionOutcome {
	start := time.Now()
	timeout := a.Timeout(x.defaultTimeout)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		ref   string
		dedup bool
		err   error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("action sink panicked", "kind", a.Kind, "step", req.StepID, "panic", r)
				done <- result{err: fmt.Errorf("action %s panicked: %v", a.Kind, r)}
			}
		}()
		var res result
		if needsIdempotency(a.Kind) && x.dedupe != nil && req.IdempotencyKey != "" {
			res.ref, res.dedup, res.err = x.dedupe.Do(ctx, req.IdempotencyKey, func(ctx context.Context) (string, error) {
				return x.dispatch(ctx, a, req)
			})
		} else {
			res.ref, res.err = x.dispatch(ctx, a, req)
		}
		done <- res
	}()

	var out ActionOutcome
	select {
	case res := <-done:
		out = ActionOutcome{Reference: res.ref, Deduplicated: res.dedup, Err: res.err}
	case <-ctx.Done():
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s", ErrActionTimeout, timeout)
		}
		out = ActionOutcome{Err: err}
	}
	out.Duration = time.Since(start)

	outcome := "success"
	switch {
	case errors.Is(out.Err, ErrActionTimeout):
		outcome = "timeout"
	case out.Err != nil:
		outcome = "error"
	case out.Deduplicated:
		outcome = "deduplicated"
	}
	actionsTotal.WithLabelValues(string(a.Kind), outcome).Inc()
	debug.Log("actions", "action executed",
		"kind", a.Kind,
		"step", req.StepID,
		"outcome", outcome,
		"duration_ms", out.Duration.Milliseconds(),
	)
	return out
}

func (x *ActionExecutor) dispatch(ctx context.Context, a Action, req ActionRequest) (string, error) {
	switch a.Kind {
	case ActionRemoteCall:
		if x.sinks.Remote == nil {
			return "", errNoSink(a.Kind)
		}
		call := *a.RemoteCall
		call.Params = mergeParams(req.Params, a.RemoteCall.Params)
		resp, err := x.sinks.Remote.Call(ctx, req, call)
		if err != nil {
			return "", err
		}
		if ref, ok := resp["reference"].(string); ok {
			return ref, nil
		}
		return "", nil
	case ActionPersistenceUpdate:
		if x.sinks.Persistence == nil {
			return "", errNoSink(a.Kind)
		}
		return "", x.sinks.Persistence.Update(ctx, req, *a.Persistence)
	case ActionNotification:
		if x.sinks.Notifier == nil {
			return "", errNoSink(a.Kind)
		}
		msg := localizedMessage(a.Notification.Messages, a.Notification.Message, req.Language)
		return "", x.sinks.Notifier.Notify(ctx, req, a.Notification.Channel, msg)
	case ActionRefund:
		if x.sinks.Refunds == nil {
			return "", errNoSink(a.Kind)
		}
		return x.sinks.Refunds.Refund(ctx, req, *a.Refund)
	case ActionEscalation:
		if x.sinks.Escalations == nil {
			return "", errNoSink(a.Kind)
		}
		return x.sinks.Escalations.Escalate(ctx, req, *a.Escalation)
	case ActionCulturalResponse:
		if x.sinks.Notifier == nil {
			return "", errNoSink(a.Kind)
		}
		cr := a.CulturalResponse
		msg := localizedMessage(cr.Messages, cr.Messages["en"], req.Language)
		return "", x.sinks.Notifier.Notify(ctx, req, "voice", msg)
	default:
		return "", fmt.Errorf("unknown action kind %q", a.Kind)
	}
}

func errNoSink(kind ActionKind) error {
	return fmt.Errorf("no sink configured for %s actions", kind)
}

// needsIdempotency reports whether repeating the action has an external
// effect that must not happen twice.
func needsIdempotency(kind ActionKind) bool {
	return kind == ActionRefund || kind == ActionEscalation
}

// IdempotencyKey derives the key for a money-moving or paging action from
// the incident req belongs to: customer, booking, amount, normalized issue
// text, template, step and kind. A request with neither a customer nor a
// booking has no identity beyond its session, so the session ID stands in
// and repeats are only collapsed within that resolution. The key does not
// include the fallback position, so a fallback of the same kind on the same
// step reuses the primary's key.
func IdempotencyKey(req ActionRequest, issueText string, kind ActionKind) string {
	identity := []string{req.CustomerID, req.BookingID}
	if req.CustomerID == "" && req.BookingID == "" {
		identity = []string{"session", req.SessionID}
	}
	parts := append(identity,
		strconv.FormatFloat(req.Amount, 'f', -1, 64),
		normalize(issueText),
		req.TemplateID,
		req.StepID,
		string(kind),
	)

	h := sha256.New()
	for _, part := range parts {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return "idem_" + hex.EncodeToString(h.Sum(nil))[:32]
}

func localizedMessage(messages map[string]string, fallback, lang string) string {
	if m, ok := messages[lang]; ok && m != "" {
		return m
	}
	return fallback
}

func mergeParams(base, override map[string]any) map[string]any {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// applies reports whether a cultural response targets the customer.
func (cr *CulturalResponse) applies(lang, region string) bool {
	return matchesAny(cr.Languages, lang) && matchesAny(cr.Regions, region)
}

func matchesAny(list []string, v string) bool {
	if len(list) == 0 {
		return true
	}
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}
