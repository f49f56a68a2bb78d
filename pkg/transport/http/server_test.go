package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	gohttp "net/http"
	"testing"
	"time"

	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/api"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/transport"
)

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	return bytes.NewReader(data)
}

func fixedOrchestrator(status api.OverallStatus) transport.Orchestrator {
	return transport.OrchestratorFunc(func(_ context.Context, req *api.OrchestrateRequest) (*api.OrchestrationResponse, error) {
		return &api.OrchestrationResponse{
			ExecutionID: "exec_8b7c0c5e-4c8e-4a0e-9d43-2f7d7f0d5a11",
			Status:      status,
			Results:     map[api.EngineType]any{},
			Timestamp:   time.Now(),
		}, nil
	})
}

func startServer(t *testing.T, srv *Server) (string, context.CancelFunc) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go srv.ServeOn(ctx, ln)
	time.Sleep(50 * time.Millisecond)
	return "http://" + ln.Addr().String(), cancel
}

func TestServerStartsAndAcceptsRequests(t *testing.T) {
	srv := NewServer(Services{Orchestrator: fixedOrchestrator(api.StatusSuccess)}, WithAddr("127.0.0.1:0"))
	base, stop := startServer(t, srv)
	defer stop()

	resp, err := gohttp.Post(base+"/orchestrate", "application/json",
		jsonBody(t, api.OrchestrateRequest{Engines: []api.EngineType{"a"}, InputData: map[string]any{}}))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != gohttp.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, gohttp.StatusOK)
	}

	var got api.OrchestrationResponse
	json.NewDecoder(resp.Body).Decode(&got)
	if got.ExecutionID != "exec_8b7c0c5e-4c8e-4a0e-9d43-2f7d7f0d5a11" {
		t.Errorf("execution ID = %q", got.ExecutionID)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header from the default middleware")
	}
}

func TestServerGracefulShutdown(t *testing.T) {
	slow := transport.OrchestratorFunc(func(ctx context.Context, req *api.OrchestrateRequest) (*api.OrchestrationResponse, error) {
		select {
		case <-time.After(200 * time.Millisecond):
			return &api.OrchestrationResponse{ExecutionID: "exec_slow", Status: api.StatusSuccess}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	srv := NewServer(Services{Orchestrator: slow},
		WithAddr("127.0.0.1:0"),
		WithShutdownTimeout(5*time.Second),
	)
	base, stop := startServer(t, srv)
	defer stop()

	responseCh := make(chan int, 1)
	go func() {
		resp, err := gohttp.Post(base+"/orchestrate", "application/json",
			jsonBody(t, api.OrchestrateRequest{Engines: []api.EngineType{"a"}, InputData: map[string]any{}}))
		if err != nil {
			responseCh <- 0
			return
		}
		defer resp.Body.Close()
		responseCh <- resp.StatusCode
	}()

	time.Sleep(50 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(ctx)

	status := <-responseCh
	if status != gohttp.StatusOK {
		t.Errorf("slow request status = %d, want %d", status, gohttp.StatusOK)
	}
}

func TestServerRunStopsOnContext(t *testing.T) {
	srv := NewServer(Services{Orchestrator: fixedOrchestrator(api.StatusSuccess)},
		WithAddr("127.0.0.1:0"),
		WithShutdownTimeout(time.Second),
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestServerRateLimiter(t *testing.T) {
	srv := NewServer(Services{Orchestrator: fixedOrchestrator(api.StatusSuccess)},
		WithRateLimiter(transport.NewRateLimiter(0.001, 1)),
	)
	base, stop := startServer(t, srv)
	defer stop()

	post := func() int {
		resp, err := gohttp.Post(base+"/orchestrate", "application/json",
			jsonBody(t, api.OrchestrateRequest{Engines: []api.EngineType{"a"}, InputData: map[string]any{}}))
		if err != nil {
			t.Fatalf("POST error: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if got := post(); got != gohttp.StatusOK {
		t.Fatalf("first status = %d, want %d", got, gohttp.StatusOK)
	}
	if got := post(); got != gohttp.StatusTooManyRequests {
		t.Errorf("second status = %d, want %d", got, gohttp.StatusTooManyRequests)
	}

	resp, err := gohttp.Get(base + "/healthz")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != gohttp.StatusOK {
		t.Errorf("healthz status = %d, want exempt from limiting", resp.StatusCode)
	}
}

func TestServerFunctionalOptions(t *testing.T) {
	rl := transport.NewRateLimiter(5, 10)
	srv := NewServer(Services{Orchestrator: fixedOrchestrator(api.StatusSuccess)},
		WithAddr(":9999"),
		WithMaxBodySize(1024),
		WithShutdownTimeout(10*time.Second),
		WithRateLimiter(rl),
		WithoutMetrics(),
	)

	if srv.config.Addr != ":9999" {
		t.Errorf("addr = %q, want %q", srv.config.Addr, ":9999")
	}
	if srv.config.MaxBodySize != 1024 {
		t.Errorf("max body size = %d, want %d", srv.config.MaxBodySize, 1024)
	}
	if srv.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("shutdown timeout = %v, want %v", srv.config.ShutdownTimeout, 10*time.Second)
	}
	if srv.adapter.config.RateLimiter != rl {
		t.Error("rate limiter not passed to the adapter")
	}
	if srv.adapter.config.Metrics {
		t.Error("metrics should be disabled")
	}
}
