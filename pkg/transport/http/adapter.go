package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/api"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/debug"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/observability"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/resolution"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/storage"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/transport"
)

// ResolutionAdmin exposes the resolution engine's introspection and
// knowledge-base administration.
type ResolutionAdmin interface {
	ActiveResolutions() []resolution.ActiveResolution
	AddTemplate(t resolution.Template) error
	Stats() resolution.StatsSnapshot
}

// Services are the collaborators the adapter serves. Only Orchestrator is
// required; endpoints whose collaborator is nil answer 501.
type Services struct {
	Orchestrator transport.Orchestrator
	Tracker      transport.ExecutionTracker
	Catalog      transport.EngineCatalog
	Store        transport.ExecutionStore
	Resolution   ResolutionAdmin
}

// Adapter serves the orchestration API over HTTP.
// It routes requests to the appropriate handler and serializes responses.
type Adapter struct {
	svc          Services
	orchestrator transport.Orchestrator
	mux          *http.ServeMux
	config       Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	Addr            string
	MaxBodySize     int64
	ShutdownTimeout int // seconds

	// RateLimiter throttles callers per client address. Nil disables it.
	RateLimiter *transport.RateLimiter

	// Metrics mounts the Prometheus handler on /metrics.
	Metrics bool
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		MaxBodySize:     1 << 20, // 1 MB
		ShutdownTimeout: 30,
		Metrics:         true,
	}
}

// NewAdapter creates an HTTP adapter over the given services.
// Middleware is applied to the orchestrator in the given order.
func NewAdapter(svc Services, cfg Config, middlewares ...transport.Middleware) *Adapter {
	orch := svc.Orchestrator
	if len(middlewares) > 0 {
		orch = transport.Chain(middlewares...)(orch)
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}

	a := &Adapter{
		svc:          svc,
		orchestrator: orch,
		mux:          http.NewServeMux(),
		config:       cfg,
	}

	a.mux.HandleFunc("POST /orchestrate", a.handleOrchestrate)
	a.mux.HandleFunc("GET /orchestrate", a.handleGetExecution)
	a.mux.HandleFunc("DELETE /orchestrate", a.handleCancelExecution)
	a.mux.HandleFunc("GET /executions", a.handleListExecutions)
	a.mux.HandleFunc("GET /executions/active", a.handleActiveExecutions)
	a.mux.HandleFunc("GET /engines", a.handleListEngines)
	a.mux.HandleFunc("GET /engines/stats", a.handleEngineStats)
	a.mux.HandleFunc("GET /resolutions/active", a.handleActiveResolutions)
	a.mux.HandleFunc("POST /knowledge/templates", a.handleAddTemplate)
	a.mux.HandleFunc("GET /healthz", a.handleHealthz)
	a.mux.HandleFunc("GET /readyz", a.handleReadyz)
	if cfg.Metrics {
		a.mux.Handle("GET /metrics", promhttp.Handler())
	}

	return a
}

// Handler returns the http.Handler for this adapter. Use this to integrate
// with an http.Server or test with httptest. The returned handler includes
// HTTP-level middleware for request IDs, tenants, metrics, and rate limiting.
func (a *Adapter) Handler() http.Handler {
	var h http.Handler = a.mux
	if a.config.RateLimiter != nil {
		h = a.config.RateLimiter.Middleware(h)
	}
	h = observability.MetricsMiddleware(h)
	h = tenantMiddleware(h)
	return httpRequestIDMiddleware(h)
}

// tenantMiddleware scopes storage access to the X-Tenant-ID header when
// present.
func tenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tenant := r.Header.Get("X-Tenant-ID"); tenant != "" {
			r = r.WithContext(storage.SetTenant(r.Context(), tenant))
		}
		next.ServeHTTP(w, r)
	})
}

// httpRequestIDMiddleware is HTTP-level middleware that propagates the
// X-Request-ID header. If present in the request, it is forwarded to
// the response. After the handler runs, it checks the context for a
// request ID (set by the transport-level RequestID middleware) and adds
// it to the response headers if not already set.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Request-ID"); id != "" {
			ctx := transport.ContextWithRequestID(r.Context(), id)
			r = r.WithContext(ctx)
		}
		rw := &requestIDResponseWriter{ResponseWriter: w, r: r}
		next.ServeHTTP(rw, r)
	})
}

// requestIDResponseWriter wraps http.ResponseWriter to inject the
// X-Request-ID header before the first write.
type requestIDResponseWriter struct {
	http.ResponseWriter
	r           *http.Request
	headersSent bool
}

func (w *requestIDResponseWriter) WriteHeader(statusCode int) {
	w.ensureRequestIDHeader()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *requestIDResponseWriter) Write(b []byte) (int, error) {
	w.ensureRequestIDHeader()
	return w.ResponseWriter.Write(b)
}

// Unwrap returns the underlying ResponseWriter for http.NewResponseController.
func (w *requestIDResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *requestIDResponseWriter) ensureRequestIDHeader() {
	if w.headersSent {
		return
	}
	w.headersSent = true
	if id := transport.RequestIDFromContext(w.r.Context()); id != "" {
		w.ResponseWriter.Header().Set("X-Request-ID", id)
	}
}

// handleOrchestrate handles POST /orchestrate.
func (a *Adapter) handleOrchestrate(w http.ResponseWriter, r *http.Request) {
	if !jsonContentType(r) {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
			http.StatusUnsupportedMediaType,
		)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	var req api.OrchestrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return
		}
		writeFailedOrchestration(w, http.StatusBadRequest, api.ErrorKeyValidation,
			api.ErrorDetail{Code: api.CodeInvalidInput, Message: "invalid JSON: " + err.Error()})
		return
	}

	resp, err := a.orchestrator.Orchestrate(r.Context(), &req)
	if err != nil {
		var apiErr *api.APIError
		if errors.As(err, &apiErr) && apiErr.Type == api.ErrorTypeInvalidRequest {
			if resp == nil {
				writeFailedOrchestration(w, http.StatusBadRequest, api.ErrorKeyValidation,
					api.ErrorDetail{Code: api.CodeInvalidInput, Message: apiErr.Message})
				return
			}
			transport.WriteJSON(w, http.StatusBadRequest, resp)
			return
		}
		writeFailedOrchestration(w, http.StatusInternalServerError, api.ErrorKeySystem,
			api.ErrorDetail{Code: api.CodeInternalError, Message: err.Error(), Recoverable: true})
		return
	}

	transport.WriteJSON(w, transport.HTTPStatusFromOverall(resp.Status), resp)
}

// writeFailedOrchestration answers with a failed OrchestrationResponse that
// carries a single top-level error entry.
func writeFailedOrchestration(w http.ResponseWriter, status int, key string, detail api.ErrorDetail) {
	transport.WriteJSON(w, status, &api.OrchestrationResponse{
		ExecutionID:     api.NewExecutionID(),
		Status:          api.StatusFailed,
		Results:         map[api.EngineType]any{},
		Performance:     map[api.EngineType]api.EnginePerformance{},
		Recommendations: []string{},
		Timestamp:       time.Now().UTC(),
		Errors:          map[string]api.ErrorDetail{key: detail},
	})
}

// handleGetExecution handles GET /orchestrate?executionId=.
func (a *Adapter) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	if a.svc.Tracker == nil {
		notAvailable(w, "execution lookup")
		return
	}
	id, ok := executionIDParam(w, r)
	if !ok {
		return
	}

	rec, err := a.svc.Tracker.Lookup(r.Context(), id)
	if err != nil {
		writeStoreError(w, id, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, rec)
}

// handleCancelExecution handles DELETE /orchestrate?executionId=.
// Only running orchestrations can be cancelled.
func (a *Adapter) handleCancelExecution(w http.ResponseWriter, r *http.Request) {
	if a.svc.Tracker == nil {
		notAvailable(w, "execution cancellation")
		return
	}
	id, ok := executionIDParam(w, r)
	if !ok {
		return
	}

	if !a.svc.Tracker.Cancel(id) {
		transport.WriteAPIError(w, api.NewNotFoundError("no running execution "+id))
		return
	}
	debug.Log("transport", "execution cancelled", "execution_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleListExecutions handles GET /executions.
func (a *Adapter) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	if a.svc.Store == nil {
		notAvailable(w, "execution listing")
		return
	}

	opts, err := parseListOptions(r)
	if err != nil {
		transport.WriteErrorResponse(w, err, http.StatusBadRequest)
		return
	}

	result, storeErr := a.svc.Store.ListExecutions(r.Context(), opts)
	if storeErr != nil {
		writeStoreError(w, "", storeErr)
		return
	}
	transport.WriteJSON(w, http.StatusOK, result)
}

// listEnvelope wraps non-paginated collections.
type listEnvelope[T any] struct {
	Object string `json:"object"`
	Data   []T    `json:"data"`
}

func newListEnvelope[T any](data []T) listEnvelope[T] {
	if data == nil {
		data = []T{}
	}
	return listEnvelope[T]{Object: "list", Data: data}
}

// handleActiveExecutions handles GET /executions/active.
func (a *Adapter) handleActiveExecutions(w http.ResponseWriter, r *http.Request) {
	if a.svc.Tracker == nil {
		notAvailable(w, "active execution listing")
		return
	}
	transport.WriteJSON(w, http.StatusOK, newListEnvelope(a.svc.Tracker.Active()))
}

// handleListEngines handles GET /engines.
func (a *Adapter) handleListEngines(w http.ResponseWriter, r *http.Request) {
	if a.svc.Catalog == nil {
		notAvailable(w, "engine catalog")
		return
	}
	transport.WriteJSON(w, http.StatusOK, newListEnvelope(a.svc.Catalog.Engines()))
}

// engineStats is the body of GET /engines/stats.
type engineStats struct {
	Engines    api.PerformanceSnapshot   `json:"engines"`
	Resolution *resolution.StatsSnapshot `json:"resolution,omitempty"`
}

// handleEngineStats handles GET /engines/stats.
func (a *Adapter) handleEngineStats(w http.ResponseWriter, r *http.Request) {
	if a.svc.Catalog == nil {
		notAvailable(w, "engine statistics")
		return
	}
	body := engineStats{Engines: a.svc.Catalog.Performance()}
	if a.svc.Resolution != nil {
		s := a.svc.Resolution.Stats()
		body.Resolution = &s
	}
	transport.WriteJSON(w, http.StatusOK, body)
}

// handleActiveResolutions handles GET /resolutions/active.
func (a *Adapter) handleActiveResolutions(w http.ResponseWriter, r *http.Request) {
	if a.svc.Resolution == nil {
		notAvailable(w, "resolution introspection")
		return
	}
	transport.WriteJSON(w, http.StatusOK, newListEnvelope(a.svc.Resolution.ActiveResolutions()))
}

// templateCreated is the body of a successful POST /knowledge/templates.
type templateCreated struct {
	ID     string `json:"id"`
	Object string `json:"object"`
	Steps  int    `json:"steps"`
}

// handleAddTemplate handles POST /knowledge/templates.
func (a *Adapter) handleAddTemplate(w http.ResponseWriter, r *http.Request) {
	if a.svc.Resolution == nil {
		notAvailable(w, "knowledge administration")
		return
	}
	if !jsonContentType(r) {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
			http.StatusUnsupportedMediaType,
		)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)
	var tmpl resolution.Template
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&tmpl); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return
		}
		transport.WriteAPIError(w, api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()))
		return
	}

	if err := a.svc.Resolution.AddTemplate(tmpl); err != nil {
		switch {
		case errors.Is(err, resolution.ErrTemplateExists):
			transport.WriteAPIError(w, api.NewConflictError("template", err.Error()))
		case errors.Is(err, resolution.ErrInvalidTemplate):
			transport.WriteAPIError(w, api.NewInvalidRequestError("template", err.Error()))
		default:
			transport.WriteAPIError(w, api.NewServerError(err.Error()))
		}
		return
	}

	debug.Log("transport", "template added", "template", tmpl.Key())
	transport.WriteJSON(w, http.StatusCreated, templateCreated{
		ID:     tmpl.Key(),
		Object: "resolution.template",
		Steps:  len(tmpl.Steps),
	})
}

func (a *Adapter) handleHealthz(w http.ResponseWriter, r *http.Request) {
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz reports ready once the execution store answers.
func (a *Adapter) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if a.svc.Store != nil {
		if err := a.svc.Store.HealthCheck(r.Context()); err != nil {
			transport.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// executionIDParam reads and validates the executionId query parameter,
// writing a 400 when it is missing or malformed.
func executionIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.URL.Query().Get("executionId")
	if id == "" {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("executionId", "executionId query parameter is required"),
			http.StatusBadRequest,
		)
		return "", false
	}
	if !api.ValidateExecutionID(id) {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("executionId", "malformed execution ID"),
			http.StatusBadRequest,
		)
		return "", false
	}
	return id, true
}

func writeStoreError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		transport.WriteAPIError(w, api.NewNotFoundError("execution "+id+" not found"))
		return
	}
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		transport.WriteAPIError(w, apiErr)
		return
	}
	transport.WriteAPIError(w, api.NewServerError(err.Error()))
}

func notAvailable(w http.ResponseWriter, what string) {
	transport.WriteErrorResponse(w,
		api.NewInvalidRequestError("", what+" is not available in this deployment"),
		http.StatusNotImplemented,
	)
}

// jsonContentType accepts an absent Content-Type or application/json with
// any parameters.
func jsonContentType(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(ct)
	return err == nil && mt == "application/json"
}

// parseListOptions extracts pagination parameters from query string.
func parseListOptions(r *http.Request) (transport.ListOptions, *api.APIError) {
	q := r.URL.Query()
	opts := transport.ListOptions{
		After:  q.Get("after"),
		Before: q.Get("before"),
		Status: api.OverallStatus(q.Get("status")),
		Order:  q.Get("order"),
	}

	if opts.After != "" && opts.Before != "" {
		return opts, api.NewInvalidRequestError("after", "cannot use both 'after' and 'before' cursors")
	}

	if opts.Order != "" && opts.Order != "asc" && opts.Order != "desc" {
		return opts, api.NewInvalidRequestError("order", "order must be 'asc' or 'desc'")
	}
	if opts.Order == "" {
		opts.Order = "desc"
	}

	switch opts.Status {
	case "", api.StatusSuccess, api.StatusPartial, api.StatusFailed:
	default:
		return opts, api.NewInvalidRequestError("status", "status must be 'success', 'partial' or 'failed'")
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			return opts, api.NewInvalidRequestError("limit", "limit must be a positive integer")
		}
		opts.Limit = limit
	}

	return opts, nil
}
