// Package sqlite provides a single-node durable implementation of
// transport.ExecutionStore on modernc.org/sqlite, a pure Go SQLite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/api"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/debug"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/storage"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/transport"
)

const schema = `
CREATE TABLE IF NOT EXISTS executions (
	id             TEXT PRIMARY KEY,
	tenant_id      TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL,
	execution_mode TEXT NOT NULL DEFAULT '',
	response       TEXT NOT NULL,
	request        TEXT,
	engine_records TEXT,
	created_at_ns  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_executions_tenant_created
	ON executions (tenant_id, created_at_ns, id);
`

// Store is a SQLite-backed ExecutionStore.
type Store struct {
	db *sql.DB
}

// Ensure Store implements transport.ExecutionStore at compile time.
var _ transport.ExecutionStore = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" databases
	// from splitting across pooled connections.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying sqlite schema: %w", err)
	}
	debug.Log("storage", "sqlite store opened", "path", path)
	return &Store{db: db}, nil
}

// SaveExecution persists a finished orchestration record.
func (s *Store) SaveExecution(ctx context.Context, rec *api.OrchestrationRecord) error {
	if rec.ID() == "" {
		return api.NewInvalidRequestError("executionId", "record has no execution ID")
	}
	if rec.TenantID == "" {
		rec.TenantID = storage.GetTenant(ctx)
	}

	respJSON, err := json.Marshal(rec.Response)
	if err != nil {
		return fmt.Errorf("marshaling response: %w", err)
	}
	reqJSON, err := marshalOptional(rec.Request)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}
	execJSON, err := marshalOptional(rec.Executions)
	if err != nil {
		return fmt.Errorf("marshaling engine records: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO executions (
			id, tenant_id, status, execution_mode,
			response, request, engine_records, created_at_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID(), rec.TenantID, string(rec.Response.Status), string(rec.Response.ExecutionMode),
		string(respJSON), reqJSON, execJSON, rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		if isPrimaryKeyViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting execution: %w", err)
	}
	return nil
}

// GetExecution retrieves a record by execution ID.
func (s *Store) GetExecution(ctx context.Context, id string) (*api.OrchestrationRecord, error) {
	query := "SELECT tenant_id, response, request, engine_records, created_at_ns FROM executions WHERE id = ?"
	args := []any{id}
	if tenantID := storage.GetTenant(ctx); tenantID != "" {
		query += " AND tenant_id = ?"
		args = append(args, tenantID)
	}

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying execution: %w", err)
	}
	return rec, nil
}

// ListExecutions returns a page of records ordered by creation time. Cursor
// semantics match the other stores: After keeps rows past the cursor in sort
// order, Before keeps rows ahead of it.
func (s *Store) ListExecutions(ctx context.Context, opts transport.ListOptions) (*transport.ExecutionList, error) {
	var (
		where []string
		args  []any
	)
	if tenantID := storage.GetTenant(ctx); tenantID != "" {
		where = append(where, "tenant_id = ?")
		args = append(args, tenantID)
	}
	if opts.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(opts.Status))
	}

	asc := opts.Ascending()
	cursor, forward := opts.After, true
	if cursor == "" && opts.Before != "" {
		cursor, forward = opts.Before, false
	}
	if cursor != "" {
		cur, err := s.GetExecution(ctx, cursor)
		if errors.Is(err, storage.ErrNotFound) {
			return transport.NewExecutionList(nil, false), nil
		}
		if err != nil {
			return nil, err
		}
		op := "<"
		if asc == forward {
			op = ">"
		}
		where = append(where, fmt.Sprintf("(created_at_ns, id) %s (?, ?)", op))
		args = append(args, cur.CreatedAt.UnixNano(), cur.ID())
	}

	dir := "DESC"
	if asc {
		dir = "ASC"
	}
	limit := opts.NormalizedLimit()

	query := "SELECT tenant_id, response, request, engine_records, created_at_ns FROM executions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at_ns %s, id %s LIMIT ?", dir, dir)
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing executions: %w", err)
	}
	defer rows.Close()

	var recs []*api.OrchestrationRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning execution: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing executions: %w", err)
	}

	hasMore := len(recs) > limit
	if hasMore {
		recs = recs[:limit]
	}
	return transport.NewExecutionList(recs, hasMore), nil
}

// HealthCheck verifies the database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*api.OrchestrationRecord, error) {
	var (
		rec                api.OrchestrationRecord
		respJSON           string
		reqJSON, execsJSON sql.NullString
		createdNS          int64
	)
	if err := row.Scan(&rec.TenantID, &respJSON, &reqJSON, &execsJSON, &createdNS); err != nil {
		return nil, err
	}
	rec.CreatedAt = time.Unix(0, createdNS).UTC()
	if err := json.Unmarshal([]byte(respJSON), &rec.Response); err != nil {
		return nil, fmt.Errorf("unmarshaling response: %w", err)
	}
	if reqJSON.Valid {
		if err := json.Unmarshal([]byte(reqJSON.String), &rec.Request); err != nil {
			return nil, fmt.Errorf("unmarshaling request: %w", err)
		}
	}
	if execsJSON.Valid {
		if err := json.Unmarshal([]byte(execsJSON.String), &rec.Executions); err != nil {
			return nil, fmt.Errorf("unmarshaling engine records: %w", err)
		}
	}
	return &rec, nil
}

// marshalOptional returns a NULL for nil values.
func marshalOptional[T any](v T) (sql.NullString, error) {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func isPrimaryKeyViolation(err error) bool {
	var sqlErr *sqlite.Error
	return errors.As(err, &sqlErr) && sqlErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
