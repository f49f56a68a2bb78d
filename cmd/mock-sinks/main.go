// Command mock-sinks runs a deterministic action sink server for local
// development and integration testing of the webhook sinks. It accepts the
// resolution action endpoints, answers with predictable payloads and keeps
// every delivery in memory for inspection.
//
// Configuration:
//
//	MOCK_PORT          - Listen port (default: 9090)
//	MOCK_FAIL_SERVICES - Comma-separated remote services that answer 503
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	sink := newMockSink(splitList(os.Getenv("MOCK_FAIL_SERVICES")))
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           sink.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock sinks starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock sinks failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock sinks shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

// --- Delivery log ---

type delivery struct {
	Path           string          `json:"path"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty"`
	SessionID      string          `json:"sessionId,omitempty"`
	Body           json.RawMessage `json:"body"`
	Reference      string          `json:"reference,omitempty"`
	Replayed       bool            `json:"replayed,omitempty"`
}

type mockSink struct {
	mu         sync.Mutex
	deliveries []delivery
	references map[string]string // idempotency key -> reference
	seq        int
	failing    map[string]bool
}

func newMockSink(failing []string) *mockSink {
	m := &mockSink{
		references: make(map[string]string),
		failing:    make(map[string]bool, len(failing)),
	}
	for _, s := range failing {
		m.failing[s] = true
	}
	return m
}

func (m *mockSink) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /remote/{service}/{operation}", m.handleRemote)
	mux.HandleFunc("POST /persistence", m.handleAck)
	mux.HandleFunc("POST /notifications", m.handleAck)
	mux.HandleFunc("POST /refunds", m.handleReference("RF"))
	mux.HandleFunc("POST /escalations", m.handleReference("ESC"))
	mux.HandleFunc("GET /deliveries", m.handleDeliveries)
	mux.HandleFunc("DELETE /deliveries", m.handleReset)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return mux
}

// --- Handlers ---

func (m *mockSink) handleRemote(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	service := r.PathValue("service")
	operation := r.PathValue("operation")
	m.record(r, body, "", false)

	if m.failing[service] {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": service + " unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"service":   service,
		"operation": operation,
		"status":    "ok",
	})
}

func (m *mockSink) handleAck(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	m.record(r, body, "", false)
	w.WriteHeader(http.StatusNoContent)
}

// handleReference answers refunds and escalations. Repeated idempotency
// keys return the reference issued the first time.
func (m *mockSink) handleReference(prefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := readBody(w, r)
		if !ok {
			return
		}
		key := r.Header.Get("Idempotency-Key")

		m.mu.Lock()
		ref, replayed := m.references[key]
		if !replayed || key == "" {
			m.seq++
			ref = fmt.Sprintf("%s-%06d", prefix, m.seq)
			replayed = false
			if key != "" {
				m.references[key] = ref
			}
		}
		m.mu.Unlock()

		m.record(r, body, ref, replayed)
		writeJSON(w, http.StatusOK, map[string]string{"reference": ref})
	}
}

func (m *mockSink) handleDeliveries(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	out := make([]delivery, len(m.deliveries))
	copy(out, m.deliveries)
	m.mu.Unlock()

	if path := r.URL.Query().Get("path"); path != "" {
		filtered := out[:0]
		for _, d := range out {
			if strings.HasPrefix(d.Path, path) {
				filtered = append(filtered, d)
			}
		}
		out = filtered
	}
	writeJSON(w, http.StatusOK, map[string]any{"object": "list", "data": out})
}

func (m *mockSink) handleReset(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.deliveries = nil
	m.references = make(map[string]string)
	m.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (m *mockSink) record(r *http.Request, body []byte, ref string, replayed bool) {
	d := delivery{
		Path:           r.URL.Path,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		SessionID:      r.Header.Get("X-Session-ID"),
		Body:           body,
		Reference:      ref,
		Replayed:       replayed,
	}
	m.mu.Lock()
	m.deliveries = append(m.deliveries, d)
	m.mu.Unlock()
	slog.Info("delivery", "path", d.Path, "session", d.SessionID, "reference", ref, "replayed", replayed)
}

// --- Helpers ---

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	var raw json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&raw); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return nil, false
	}
	return raw, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
