package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/api"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/storage"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/transport"
)

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func makeRecord(id string, offset time.Duration, status api.OverallStatus) *api.OrchestrationRecord {
	return &api.OrchestrationRecord{
		Response: &api.OrchestrationResponse{
			ExecutionID:   id,
			Status:        status,
			ExecutionMode: api.ModeParallel,
			Results:        map[api.EngineType]any{api.EngineCulturalContext: map[string]any{"alignment": 0.9}},
			AlignmentScore: 0.9,
			Timestamp:      baseTime.Add(offset),
		},
		Request: &api.OrchestrateRequest{
			Engines:   []api.EngineType{api.EngineCulturalContext},
			InputData: map[string]any{},
		},
		CreatedAt: baseTime.Add(offset),
	}
}

func TestSaveAndGet(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	rec := makeRecord("exec_test1", 0, api.StatusSuccess)
	if err := s.SaveExecution(ctx, rec); err != nil {
		t.Fatalf("SaveExecution failed: %v", err)
	}

	got, err := s.GetExecution(ctx, "exec_test1")
	if err != nil {
		t.Fatalf("GetExecution failed: %v", err)
	}

	if got.ID() != "exec_test1" {
		t.Errorf("ID = %q, want %q", got.ID(), "exec_test1")
	}
	if got.Response.AlignmentScore != 0.9 {
		t.Errorf("AlignmentScore = %v, want 0.9", got.Response.AlignmentScore)
	}
}

func TestGetNotFound(t *testing.T) {
	s := New(0)
	_, err := s.GetExecution(context.Background(), "exec_missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveWithoutID(t *testing.T) {
	s := New(0)
	err := s.SaveExecution(context.Background(), &api.OrchestrationRecord{})
	if err == nil {
		t.Fatal("expected error for record without execution ID")
	}
}

func TestDuplicateSave(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	rec := makeRecord("exec_dup", 0, api.StatusSuccess)
	s.SaveExecution(ctx, rec)

	err := s.SaveExecution(ctx, rec)
	if !errors.Is(err, storage.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	s := New(0)
	if err := s.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}
}

func TestLRUEviction(t *testing.T) {
	s := New(3)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		s.SaveExecution(ctx, makeRecord(fmt.Sprintf("exec_%d", i), time.Duration(i)*time.Second, api.StatusSuccess))
	}

	// Touch exec_1 so exec_2 becomes least recently used.
	if _, err := s.GetExecution(ctx, "exec_1"); err != nil {
		t.Fatalf("exec_1 should exist: %v", err)
	}

	s.SaveExecution(ctx, makeRecord("exec_4", 4*time.Second, api.StatusSuccess))

	if _, err := s.GetExecution(ctx, "exec_2"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("exec_2 should have been evicted, got %v", err)
	}
	for _, id := range []string{"exec_1", "exec_3", "exec_4"} {
		if _, err := s.GetExecution(ctx, id); err != nil {
			t.Errorf("%s should exist: %v", id, err)
		}
	}
	if s.Len() != 3 {
		t.Errorf("Len = %d, want 3", s.Len())
	}
}

func TestLRUEviction_Unlimited(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		s.SaveExecution(ctx, makeRecord(fmt.Sprintf("exec_%03d", i), time.Duration(i)*time.Second, api.StatusSuccess))
	}

	if s.Len() != 100 {
		t.Errorf("Len = %d, want 100", s.Len())
	}
}

func TestTenantIsolation(t *testing.T) {
	s := New(0)
	ctxA := storage.SetTenant(context.Background(), "tenant-a")
	ctxB := storage.SetTenant(context.Background(), "tenant-b")

	s.SaveExecution(ctxA, makeRecord("exec_a", 0, api.StatusSuccess))

	if _, err := s.GetExecution(ctxA, "exec_a"); err != nil {
		t.Errorf("tenant-a should see its record: %v", err)
	}
	if _, err := s.GetExecution(ctxB, "exec_a"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("tenant-b should not see tenant-a record, got %v", err)
	}
	if _, err := s.GetExecution(context.Background(), "exec_a"); err != nil {
		t.Errorf("no tenant should see all records: %v", err)
	}

	list, _ := s.ListExecutions(ctxB, transport.ListOptions{})
	if len(list.Data) != 0 {
		t.Errorf("tenant-b list should be empty, got %d", len(list.Data))
	}
}

func TestListOrderingAndPagination(t *testing.T) {
	s := New(0)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		s.SaveExecution(ctx, makeRecord(fmt.Sprintf("exec_%d", i), time.Duration(i)*time.Minute, api.StatusSuccess))
	}

	tests := []struct {
		name    string
		opts    transport.ListOptions
		wantIDs []string
		hasMore bool
	}{
		{"default desc", transport.ListOptions{Limit: 2}, []string{"exec_4", "exec_3"}, true},
		{"asc", transport.ListOptions{Limit: 2, Order: "asc"}, []string{"exec_0", "exec_1"}, true},
		{"after cursor", transport.ListOptions{After: "exec_3", Limit: 2}, []string{"exec_2", "exec_1"}, true},
		{"after cursor tail", transport.ListOptions{After: "exec_1"}, []string{"exec_0"}, false},
		{"before cursor", transport.ListOptions{Before: "exec_2"}, []string{"exec_4", "exec_3"}, false},
		{"unknown cursor", transport.ListOptions{After: "exec_x"}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := s.ListExecutions(ctx, tt.opts)
			if err != nil {
				t.Fatalf("ListExecutions failed: %v", err)
			}
			if len(list.Data) != len(tt.wantIDs) {
				t.Fatalf("len(Data) = %d, want %d", len(list.Data), len(tt.wantIDs))
			}
			for i, rec := range list.Data {
				if rec.ID() != tt.wantIDs[i] {
					t.Errorf("Data[%d] = %q, want %q", i, rec.ID(), tt.wantIDs[i])
				}
			}
			if list.HasMore != tt.hasMore {
				t.Errorf("HasMore = %v, want %v", list.HasMore, tt.hasMore)
			}
		})
	}
}

func TestListFiltersByStatus(t *testing.T) {
	s := New(0)
	ctx := context.Background()
	s.SaveExecution(ctx, makeRecord("exec_ok", 0, api.StatusSuccess))
	s.SaveExecution(ctx, makeRecord("exec_partial", time.Second, api.StatusPartial))

	list, err := s.ListExecutions(ctx, transport.ListOptions{Status: api.StatusPartial})
	if err != nil {
		t.Fatalf("ListExecutions failed: %v", err)
	}
	if len(list.Data) != 1 || list.Data[0].ID() != "exec_partial" {
		t.Errorf("expected only exec_partial, got %+v", list.Data)
	}
	if list.FirstID != "exec_partial" || list.LastID != "exec_partial" {
		t.Errorf("cursors = %q/%q, want exec_partial", list.FirstID, list.LastID)
	}
}
