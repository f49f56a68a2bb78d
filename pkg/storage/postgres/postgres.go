// Package postgres provides a PostgreSQL implementation of
// transport.ExecutionStore. It uses pgx/v5 for connection pooling and JSONB
// for the response, request, and engine record documents.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/api"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/storage"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/transport"
)

// Store is a PostgreSQL-backed ExecutionStore.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements transport.ExecutionStore at compile time.
var _ transport.ExecutionStore = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
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

	resp := rec.Response
	_, err = s.pool.Exec(ctx, `
		INSERT INTO executions (
			id, tenant_id, status, execution_mode,
			alignment_score, total_ms,
			response, request, engine_records, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		resp.ExecutionID, rec.TenantID, string(resp.Status), string(resp.ExecutionMode),
		resp.AlignmentScore, resp.TotalDurationMS,
		respJSON, reqJSON, execJSON, rec.CreatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting execution: %w", err)
	}

	return nil
}

// GetExecution retrieves a record by execution ID.
func (s *Store) GetExecution(ctx context.Context, id string) (*api.OrchestrationRecord, error) {
	query := `
		SELECT tenant_id, response, request, engine_records, created_at
		FROM executions
		WHERE id = $1
	`
	args := []any{id}
	if tenantID := storage.GetTenant(ctx); tenantID != "" {
		query += " AND tenant_id = $2"
		args = append(args, tenantID)
	}

	rec, err := scanRecord(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying execution: %w", err)
	}
	return rec, nil
}

// ListExecutions returns a page of records ordered by (created_at, id).
// After keeps rows past the cursor in sort order, Before keeps rows ahead
// of it. A cursor naming an unknown or foreign record yields an empty page.
func (s *Store) ListExecutions(ctx context.Context, opts transport.ListOptions) (*transport.ExecutionList, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	tenantID := storage.GetTenant(ctx)
	if tenantID != "" {
		where = append(where, "tenant_id = "+arg(tenantID))
	}
	if opts.Status != "" {
		where = append(where, "status = "+arg(string(opts.Status)))
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
		// After moves in the sort direction, Before against it.
		op := "<"
		if asc == forward {
			op = ">"
		}
		where = append(where, fmt.Sprintf("(created_at, id) %s (%s, %s)", op, arg(cur.CreatedAt), arg(cur.ID())))
	}

	dir := "DESC"
	if asc {
		dir = "ASC"
	}

	limit := opts.NormalizedLimit()
	query := "SELECT tenant_id, response, request, engine_records, created_at FROM executions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at %s, id %s LIMIT %s", dir, dir, arg(limit+1))

	rows, err := s.pool.Query(ctx, query, args...)
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

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func scanRecord(row pgx.Row) (*api.OrchestrationRecord, error) {
	var (
		rec                          api.OrchestrationRecord
		respJSON, reqJSON, execsJSON []byte
		createdAt                    time.Time
	)
	if err := row.Scan(&rec.TenantID, &respJSON, &reqJSON, &execsJSON, &createdAt); err != nil {
		return nil, err
	}
	rec.CreatedAt = createdAt
	if err := json.Unmarshal(respJSON, &rec.Response); err != nil {
		return nil, fmt.Errorf("unmarshaling response: %w", err)
	}
	if len(reqJSON) > 0 {
		if err := json.Unmarshal(reqJSON, &rec.Request); err != nil {
			return nil, fmt.Errorf("unmarshaling request: %w", err)
		}
	}
	if len(execsJSON) > 0 {
		if err := json.Unmarshal(execsJSON, &rec.Executions); err != nil {
			return nil, fmt.Errorf("unmarshaling engine records: %w", err)
		}
	}
	return &rec, nil
}

// marshalOptional returns nil for nil values so nullable JSONB columns
// stay NULL.
func marshalOptional[T any](v T) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return nil, err
	}
	return b, nil
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
