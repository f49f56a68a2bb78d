package sinks

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/resolution"
)

// Log is a sink that records actions in the log and returns synthetic
// references.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a log sink. A nil logger uses slog.Default.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger.With("component", "sinks")}
}

// Sinks returns l in every sink role.
func (l *Log) Sinks() resolution.Sinks {
	return resolution.Sinks{Remote: l, Persistence: l, Notifier: l, Refunds: l, Escalations: l}
}

func (l *Log) Call(ctx context.Context, req resolution.ActionRequest, call resolution.RemoteCall) (map[string]any, error) {
	ref := reference("call")
	l.logger.InfoContext(ctx, "remote call",
		"session_id", req.SessionID,
		"step", req.StepID,
		"service", call.Service,
		"operation", call.Operation,
		"reference", ref,
	)
	return map[string]any{"reference": ref, "status": "ok"}, nil
}

func (l *Log) Update(ctx context.Context, req resolution.ActionRequest, upd resolution.PersistenceUpdate) error {
	l.logger.InfoContext(ctx, "persistence update",
		"session_id", req.SessionID,
		"step", req.StepID,
		"entity", upd.Entity,
		"field", upd.Field,
		"value", upd.Value,
	)
	return nil
}

func (l *Log) Notify(ctx context.Context, req resolution.ActionRequest, channel, message string) error {
	l.logger.InfoContext(ctx, "notification",
		"session_id", req.SessionID,
		"step", req.StepID,
		"channel", channel,
		"language", req.Language,
		"message", message,
	)
	return nil
}

func (l *Log) Refund(ctx context.Context, req resolution.ActionRequest, r resolution.Refund) (string, error) {
	ref := reference("rfnd")
	l.logger.InfoContext(ctx, "refund",
		"session_id", req.SessionID,
		"step", req.StepID,
		"idempotency_key", req.IdempotencyKey,
		"mode", r.Mode,
		"percent", r.Percent,
		"amount", req.Amount,
		"reference", ref,
	)
	return ref, nil
}

func (l *Log) Escalate(ctx context.Context, req resolution.ActionRequest, e resolution.Escalation) (string, error) {
	ref := reference("tkt")
	l.logger.InfoContext(ctx, "escalation",
		"session_id", req.SessionID,
		"step", req.StepID,
		"idempotency_key", req.IdempotencyKey,
		"queue", e.Queue,
		"reason", e.Reason,
		"reference", ref,
	)
	return ref, nil
}

func reference(prefix string) string {
	return prefix + "_" + uuid.NewString()[:8]
}
