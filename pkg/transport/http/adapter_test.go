package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/api"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/resolution"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/storage"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/storage/memory"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/transport"
)

const testExecID = "exec_0f8fad5b-d9cb-469f-a165-70867728950e"

// mockOrchestrator is a configurable transport.Orchestrator.
type mockOrchestrator struct {
	resp    *api.OrchestrationResponse
	err     error
	gotReq  *api.OrchestrateRequest
	tenant  string
	panicky bool
}

func (m *mockOrchestrator) Orchestrate(ctx context.Context, req *api.OrchestrateRequest) (*api.OrchestrationResponse, error) {
	if m.panicky {
		panic("orchestrator exploded")
	}
	m.gotReq = req
	m.tenant = storage.GetTenant(ctx)
	return m.resp, m.err
}

// mockTracker is a configurable transport.ExecutionTracker.
type mockTracker struct {
	records map[string]*api.OrchestrationRecord
	running map[string]bool
	active  []transport.ActiveExecution
}

func (m *mockTracker) Lookup(_ context.Context, id string) (*api.OrchestrationRecord, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return rec, nil
}

func (m *mockTracker) Cancel(id string) bool {
	if !m.running[id] {
		return false
	}
	delete(m.running, id)
	return true
}

func (m *mockTracker) Active() []transport.ActiveExecution { return m.active }

type mockCatalog struct{}

func (mockCatalog) Engines() []api.EngineInfo {
	return []api.EngineInfo{{
		EngineDescriptor: api.EngineDescriptor{ID: api.EngineAutomatedResolution, Version: "2.0.0"},
		InputSchema:      json.RawMessage(`{"type":"object"}`),
	}}
}

func (mockCatalog) Performance() api.PerformanceSnapshot {
	return api.PerformanceSnapshot{Orchestrations: 3}
}

// mockResolution is a configurable ResolutionAdmin.
type mockResolution struct {
	active []resolution.ActiveResolution
	addErr error
	added  []resolution.Template
}

func (m *mockResolution) ActiveResolutions() []resolution.ActiveResolution { return m.active }

func (m *mockResolution) Stats() resolution.StatsSnapshot {
	return resolution.StatsSnapshot{Total: 4, Resolved: 3}
}

func (m *mockResolution) AddTemplate(t resolution.Template) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.added = append(m.added, t)
	return nil
}

type failingStore struct {
	transport.ExecutionStore
}

func (failingStore) HealthCheck(context.Context) error { return errors.New("connection refused") }

func response(status api.OverallStatus) *api.OrchestrationResponse {
	return &api.OrchestrationResponse{
		ExecutionID:     testExecID,
		Status:          status,
		Results:         map[api.EngineType]any{},
		Performance:     map[api.EngineType]api.EnginePerformance{},
		Recommendations: []string{},
		Timestamp:       time.Now(),
	}
}

func newTestServer(t *testing.T, svc Services, mw ...transport.Middleware) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewAdapter(svc, DefaultConfig(), mw...).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postOrchestrate(t *testing.T, srv *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/orchestrate", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, r io.Reader) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return v
}

const validBody = `{"engines":["automated-resolution"],"executionMode":"parallel","inputData":{"issue":{"description":"payment failed twice"}}}`

func TestOrchestrateStatusCodes(t *testing.T) {
	tests := []struct {
		status api.OverallStatus
		want   int
	}{
		{api.StatusSuccess, http.StatusOK},
		{api.StatusPartial, http.StatusPartialContent},
		{api.StatusFailed, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			orch := &mockOrchestrator{resp: response(tt.status)}
			srv := newTestServer(t, Services{Orchestrator: orch})

			resp := postOrchestrate(t, srv, validBody)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}
			got := decode[api.OrchestrationResponse](t, resp.Body)
			if got.Status != tt.status {
				t.Errorf("body status = %q, want %q", got.Status, tt.status)
			}
		})
	}
}

func TestOrchestrateDecodesRequest(t *testing.T) {
	orch := &mockOrchestrator{resp: response(api.StatusSuccess)}
	srv := newTestServer(t, Services{Orchestrator: orch})

	postOrchestrate(t, srv, `{"engines":["automated-resolution","cultural-context"],"priority":"critical","timeout":1500,"culturalContext":{"language":"ml","situation":"monsoon"},"inputData":{"k":1}}`)

	req := orch.gotReq
	if req == nil {
		t.Fatal("orchestrator not called")
	}
	if len(req.Engines) != 2 || req.Engines[1] != api.EngineCulturalContext {
		t.Errorf("engines = %v", req.Engines)
	}
	if req.Priority != api.PriorityCritical {
		t.Errorf("priority = %q, want critical", req.Priority)
	}
	if req.Timeout == nil || *req.Timeout != 1500 {
		t.Errorf("timeout = %v, want 1500", req.Timeout)
	}
	if req.CulturalContext.Situation != api.SituationMonsoon {
		t.Errorf("situation = %q, want monsoon", req.CulturalContext.Situation)
	}
}

func TestOrchestrateValidationError(t *testing.T) {
	failed := response(api.StatusFailed)
	failed.Errors = map[string]api.ErrorDetail{
		api.ErrorKeyValidation: {Code: api.CodeInvalidInput, Message: "engines must contain at least one engine type"},
	}
	orch := &mockOrchestrator{
		resp: failed,
		err:  api.NewInvalidRequestError("engines", "engines must contain at least one engine type"),
	}
	srv := newTestServer(t, Services{Orchestrator: orch})

	resp := postOrchestrate(t, srv, `{"engines":[],"inputData":{}}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	got := decode[api.OrchestrationResponse](t, resp.Body)
	if _, ok := got.Errors[api.ErrorKeyValidation]; !ok {
		t.Errorf("errors = %v, want a validation entry", got.Errors)
	}
}

func TestOrchestrateValidationErrorWithoutResponse(t *testing.T) {
	orch := &mockOrchestrator{err: api.NewInvalidRequestError("engines", "bad engines")}
	srv := newTestServer(t, Services{Orchestrator: orch})

	resp := postOrchestrate(t, srv, validBody)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	got := decode[api.OrchestrationResponse](t, resp.Body)
	if got.Errors[api.ErrorKeyValidation].Message != "bad engines" {
		t.Errorf("validation error = %+v", got.Errors[api.ErrorKeyValidation])
	}
	if got.Status != api.StatusFailed {
		t.Errorf("status = %q, want failed", got.Status)
	}
}

func TestOrchestrateSystemError(t *testing.T) {
	orch := &mockOrchestrator{err: errors.New("database on fire")}
	srv := newTestServer(t, Services{Orchestrator: orch})

	resp := postOrchestrate(t, srv, validBody)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}
	got := decode[api.OrchestrationResponse](t, resp.Body)
	sys, ok := got.Errors[api.ErrorKeySystem]
	if !ok {
		t.Fatalf("errors = %v, want a system entry", got.Errors)
	}
	if sys.Code != api.CodeInternalError {
		t.Errorf("system code = %q, want %q", sys.Code, api.CodeInternalError)
	}
}

func TestOrchestratePanicRecovered(t *testing.T) {
	orch := &mockOrchestrator{panicky: true}
	srv := newTestServer(t, Services{Orchestrator: orch}, transport.Recovery())

	resp := postOrchestrate(t, srv, validBody)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}
	got := decode[api.OrchestrationResponse](t, resp.Body)
	if !strings.Contains(got.Errors[api.ErrorKeySystem].Message, "orchestrator exploded") {
		t.Errorf("system error = %+v", got.Errors[api.ErrorKeySystem])
	}
}

func TestOrchestrateMalformedJSON(t *testing.T) {
	orch := &mockOrchestrator{resp: response(api.StatusSuccess)}
	srv := newTestServer(t, Services{Orchestrator: orch})

	resp := postOrchestrate(t, srv, `{"engines": [`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	got := decode[api.OrchestrationResponse](t, resp.Body)
	if _, ok := got.Errors[api.ErrorKeyValidation]; !ok {
		t.Errorf("errors = %v, want a validation entry", got.Errors)
	}
	if orch.gotReq != nil {
		t.Error("orchestrator should not be called for malformed JSON")
	}
}

func TestOrchestrateContentType(t *testing.T) {
	tests := []struct {
		contentType string
		want        int
	}{
		{"application/json", http.StatusOK},
		{"application/json; charset=utf-8", http.StatusOK},
		{"", http.StatusOK},
		{"text/plain", http.StatusUnsupportedMediaType},
		{"application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
	}
	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			srv := newTestServer(t, Services{Orchestrator: &mockOrchestrator{resp: response(api.StatusSuccess)}})
			req, _ := http.NewRequest(http.MethodPost, srv.URL+"/orchestrate", strings.NewReader(validBody))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("request error: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestOrchestrateBodyTooLarge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBodySize = 64
	adapter := NewAdapter(Services{Orchestrator: &mockOrchestrator{resp: response(api.StatusSuccess)}}, cfg)
	srv := httptest.NewServer(adapter.Handler())
	defer srv.Close()

	big := fmt.Sprintf(`{"engines":["a"],"inputData":{"blob":%q}}`, strings.Repeat("x", 200))
	resp := postOrchestrate(t, srv, big)
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusRequestEntityTooLarge)
	}
	got := decode[api.ErrorResponse](t, resp.Body)
	if got.Error == nil || got.Error.Param != "body" {
		t.Errorf("error = %+v, want param body", got.Error)
	}
}

func TestOrchestrateTenantHeader(t *testing.T) {
	orch := &mockOrchestrator{resp: response(api.StatusSuccess)}
	srv := newTestServer(t, Services{Orchestrator: orch})

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/orchestrate", strings.NewReader(validBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", "fleet-kochi")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	resp.Body.Close()

	if orch.tenant != "fleet-kochi" {
		t.Errorf("tenant = %q, want %q", orch.tenant, "fleet-kochi")
	}
}

func TestRequestIDPropagation(t *testing.T) {
	srv := newTestServer(t, Services{Orchestrator: &mockOrchestrator{resp: response(api.StatusSuccess)}}, transport.RequestID())

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/orchestrate", strings.NewReader(validBody))
	req.Header.Set("X-Request-ID", "req-from-client")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	resp.Body.Close()

	if got := resp.Header.Get("X-Request-ID"); got != "req-from-client" {
		t.Errorf("X-Request-ID = %q, want %q", got, "req-from-client")
	}
}

func TestGetExecution(t *testing.T) {
	tracker := &mockTracker{records: map[string]*api.OrchestrationRecord{
		testExecID: {Response: &api.OrchestrationResponse{ExecutionID: testExecID, Status: api.StatusRunning}},
	}}
	srv := newTestServer(t, Services{Orchestrator: &mockOrchestrator{}, Tracker: tracker})

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"found", "?executionId=" + testExecID, http.StatusOK},
		{"unknown", "?executionId=exec_9a3b7c1d-0e2f-4a5b-8c6d-7e8f9a0b1c2d", http.StatusNotFound},
		{"missing", "", http.StatusBadRequest},
		{"malformed", "?executionId=resp_123", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + "/orchestrate" + tt.query)
			if err != nil {
				t.Fatalf("GET error: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			if tt.want == http.StatusOK {
				rec := decode[api.OrchestrationRecord](t, resp.Body)
				if rec.Response.Status != api.StatusRunning {
					t.Errorf("status = %q, want running", rec.Response.Status)
				}
			}
		})
	}
}

func TestCancelExecution(t *testing.T) {
	tracker := &mockTracker{running: map[string]bool{testExecID: true}}
	srv := newTestServer(t, Services{Orchestrator: &mockOrchestrator{}, Tracker: tracker})

	del := func() int {
		req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/orchestrate?executionId="+testExecID, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("DELETE error: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if got := del(); got != http.StatusNoContent {
		t.Errorf("first DELETE = %d, want %d", got, http.StatusNoContent)
	}
	if got := del(); got != http.StatusNotFound {
		t.Errorf("second DELETE = %d, want %d", got, http.StatusNotFound)
	}
}

func TestNotAvailableWithoutCollaborators(t *testing.T) {
	srv := newTestServer(t, Services{Orchestrator: &mockOrchestrator{}})

	for _, path := range []string{
		"/orchestrate?executionId=" + testExecID,
		"/executions",
		"/executions/active",
		"/engines",
		"/engines/stats",
		"/resolutions/active",
	} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s error: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotImplemented {
			t.Errorf("GET %s = %d, want %d", path, resp.StatusCode, http.StatusNotImplemented)
		}
	}
}

func saveRecord(t *testing.T, store *memory.Store, id string, status api.OverallStatus, at time.Time) {
	t.Helper()
	err := store.SaveExecution(context.Background(), &api.OrchestrationRecord{
		Response:  &api.OrchestrationResponse{ExecutionID: id, Status: status},
		CreatedAt: at,
	})
	if err != nil {
		t.Fatalf("SaveExecution: %v", err)
	}
}

func TestListExecutions(t *testing.T) {
	store := memory.New(0)
	base := time.Now()
	ids := make([]string, 5)
	for i := range ids {
		ids[i] = api.NewExecutionID()
		status := api.StatusSuccess
		if i%2 == 1 {
			status = api.StatusPartial
		}
		saveRecord(t, store, ids[i], status, base.Add(time.Duration(i)*time.Second))
	}
	srv := newTestServer(t, Services{Orchestrator: &mockOrchestrator{}, Store: store})

	get := func(query string) (*http.Response, transport.ExecutionList) {
		resp, err := http.Get(srv.URL + "/executions" + query)
		if err != nil {
			t.Fatalf("GET error: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return resp, transport.ExecutionList{}
		}
		return resp, decode[transport.ExecutionList](t, resp.Body)
	}

	_, list := get("?limit=2")
	if len(list.Data) != 2 || !list.HasMore {
		t.Fatalf("limit=2: got %d items, has_more=%v", len(list.Data), list.HasMore)
	}
	if list.FirstID != ids[4] {
		t.Errorf("first_id = %q, want newest %q", list.FirstID, ids[4])
	}

	_, next := get("?limit=10&after=" + list.LastID)
	if len(next.Data) != 3 || next.HasMore {
		t.Errorf("after cursor: got %d items, has_more=%v", len(next.Data), next.HasMore)
	}

	_, asc := get("?order=asc&limit=1")
	if asc.FirstID != ids[0] {
		t.Errorf("asc first_id = %q, want oldest %q", asc.FirstID, ids[0])
	}

	_, partial := get("?status=partial")
	if len(partial.Data) != 2 {
		t.Errorf("status=partial: got %d items, want 2", len(partial.Data))
	}

	for _, bad := range []string{"?order=sideways", "?limit=0", "?limit=abc", "?after=a&before=b", "?status=running"} {
		resp, _ := get(bad)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("GET /executions%s = %d, want %d", bad, resp.StatusCode, http.StatusBadRequest)
		}
	}
}

func TestActiveExecutions(t *testing.T) {
	tracker := &mockTracker{active: []transport.ActiveExecution{
		{ID: testExecID, Engines: []api.EngineType{"a"}, Mode: api.ModeParallel, StartedAt: time.Now()},
	}}
	srv := newTestServer(t, Services{Orchestrator: &mockOrchestrator{}, Tracker: tracker})

	resp, err := http.Get(srv.URL + "/executions/active")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	defer resp.Body.Close()

	got := decode[struct {
		Object string                      `json:"object"`
		Data   []transport.ActiveExecution `json:"data"`
	}](t, resp.Body)
	if got.Object != "list" || len(got.Data) != 1 || got.Data[0].ID != testExecID {
		t.Errorf("active = %+v", got)
	}
}

func TestEnginesAndStats(t *testing.T) {
	srv := newTestServer(t, Services{
		Orchestrator: &mockOrchestrator{},
		Catalog:      mockCatalog{},
		Resolution:   &mockResolution{},
	})

	resp, err := http.Get(srv.URL + "/engines")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	engines := decode[struct {
		Data []api.EngineInfo `json:"data"`
	}](t, resp.Body)
	resp.Body.Close()
	if len(engines.Data) != 1 || engines.Data[0].ID != api.EngineAutomatedResolution {
		t.Fatalf("engines = %+v", engines.Data)
	}
	if string(engines.Data[0].InputSchema) != `{"type":"object"}` {
		t.Errorf("inputSchema = %s", engines.Data[0].InputSchema)
	}

	resp, err = http.Get(srv.URL + "/engines/stats")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	stats := decode[engineStats](t, resp.Body)
	resp.Body.Close()
	if stats.Engines.Orchestrations != 3 {
		t.Errorf("orchestrations = %d, want 3", stats.Engines.Orchestrations)
	}
	if stats.Resolution == nil || stats.Resolution.Resolved != 3 {
		t.Errorf("resolution stats = %+v", stats.Resolution)
	}
}

func TestActiveResolutions(t *testing.T) {
	res := &mockResolution{active: []resolution.ActiveResolution{{SessionID: "sess_1", Category: "payment", StepsTotal: 4}}}
	srv := newTestServer(t, Services{Orchestrator: &mockOrchestrator{}, Resolution: res})

	resp, err := http.Get(srv.URL + "/resolutions/active")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	defer resp.Body.Close()
	got := decode[struct {
		Data []resolution.ActiveResolution `json:"data"`
	}](t, resp.Body)
	if len(got.Data) != 1 || got.Data[0].SessionID != "sess_1" {
		t.Errorf("active resolutions = %+v", got.Data)
	}
}

func TestAddTemplate(t *testing.T) {
	body := `{"category":"payment","subcategory":"upi_timeout","title":"UPI timeout","steps":[{"id":"check","description":"Check","action":{"kind":"remote_call","remoteCall":{"service":"payments","operation":"status"}}}]}`

	tests := []struct {
		name   string
		addErr error
		body   string
		want   int
	}{
		{"created", nil, body, http.StatusCreated},
		{"exists", fmt.Errorf("%w: payment_upi_timeout", resolution.ErrTemplateExists), body, http.StatusConflict},
		{"invalid", fmt.Errorf("%w payment_upi_timeout: no steps", resolution.ErrInvalidTemplate), body, http.StatusBadRequest},
		{"unknown field", nil, `{"category":"payment","bogus":true}`, http.StatusBadRequest},
		{"store failure", errors.New("disk full"), body, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &mockResolution{addErr: tt.addErr}
			srv := newTestServer(t, Services{Orchestrator: &mockOrchestrator{}, Resolution: res})

			resp, err := http.Post(srv.URL+"/knowledge/templates", "application/json", bytes.NewBufferString(tt.body))
			if err != nil {
				t.Fatalf("POST error: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			if tt.want == http.StatusCreated {
				got := decode[templateCreated](t, resp.Body)
				if got.ID != "payment_upi_timeout" || got.Steps != 1 {
					t.Errorf("created = %+v", got)
				}
				if len(res.added) != 1 {
					t.Errorf("AddTemplate called %d times, want 1", len(res.added))
				}
			}
		})
	}
}

func TestHealthAndReadiness(t *testing.T) {
	tests := []struct {
		name  string
		store transport.ExecutionStore
		path  string
		want  int
	}{
		{"healthz", nil, "/healthz", http.StatusOK},
		{"ready without store", nil, "/readyz", http.StatusOK},
		{"ready with store", memory.New(0), "/readyz", http.StatusOK},
		{"store down", failingStore{}, "/readyz", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, Services{Orchestrator: &mockOrchestrator{}, Store: tt.store})
			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatalf("GET error: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, Services{Orchestrator: &mockOrchestrator{resp: response(api.StatusSuccess)}})
	postOrchestrate(t, srv, validBody)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "steer_requests_total") {
		t.Error("metrics output missing steer_requests_total")
	}
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t, Services{Orchestrator: &mockOrchestrator{}})
	resp, err := http.Get(srv.URL + "/v1/responses")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}
