package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// querier is the pgx surface the store needs; satisfied by *pgxpool.Pool
// and by pgxmock in tests.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps checkpoint documents in a single jsonb table, for
// deployments where the data directory is not durable between runs.
type PostgresStore struct {
	db     querier
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore connects a pool and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	s := newPostgresStore(pool, logger)
	s.pool = pool
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func newPostgresStore(db querier, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{db: db, logger: logger}
}

// Close releases the underlying pool, if any.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS checkpoints (
			key TEXT PRIMARY KEY,
			doc JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
	`
	if _, err := s.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure checkpoint schema: %w", err)
	}
	return nil
}

// Load reads a document by key. A missing row reports absent; a row
// whose document fails to decode logs a warning and reports absent.
func (s *PostgresStore) Load(ctx context.Context, key string, v any) (bool, error) {
	query := `SELECT doc FROM checkpoints WHERE key = $1;`
	var data []byte
	err := s.db.QueryRow(ctx, query, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load checkpoint %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.logger.Warn("checkpoint corrupt, treating as absent",
			zap.String("key", key),
			zap.Error(err),
		)
		return false, nil
	}
	return true, nil
}

// Save upserts the full document; the row swap is atomic at the
// statement level.
func (s *PostgresStore) Save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	query := `
		INSERT INTO checkpoints (key, doc, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at;
	`
	if _, err := s.db.Exec(ctx, query, key, data, time.Now().UTC()); err != nil {
		return fmt.Errorf("save checkpoint %s: %w", key, err)
	}
	return nil
}
