package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/yanqian/brainybinder/internal/domain/deck"
)

const queryLogSchema = `
	CREATE TABLE IF NOT EXISTS deck_query_logs (
		id UUID PRIMARY KEY,
		document_id UUID NOT NULL,
		kind TEXT NOT NULL,
		page_index INTEGER,
		topic_id TEXT NOT NULL DEFAULT '',
		prompt TEXT NOT NULL DEFAULT '',
		cache_hit BOOLEAN NOT NULL DEFAULT FALSE,
		latency_ms BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS deck_query_logs_document_idx ON deck_query_logs (document_id, created_at DESC);
`

// PostgresQueryLogRepository stores query logs in Postgres so they outlive the process.
type PostgresQueryLogRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresQueryLogRepository constructs the repository.
func NewPostgresQueryLogRepository(pool *pgxpool.Pool) *PostgresQueryLogRepository {
	return &PostgresQueryLogRepository{pool: pool}
}

// EnsureSchema creates the query log table when missing.
func (r *PostgresQueryLogRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, queryLogSchema)
	return err
}

func (r *PostgresQueryLogRepository) Append(ctx context.Context, log domain.QueryLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO deck_query_logs (id, document_id, kind, page_index, topic_id, prompt, cache_hit, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, log.ID, log.DocumentID, string(log.Kind), log.PageIndex, log.TopicID, log.Prompt, log.CacheHit, log.LatencyMs, log.CreatedAt)
	return err
}

func (r *PostgresQueryLogRepository) ListByDocument(ctx context.Context, docID uuid.UUID, limit int) ([]domain.QueryLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, document_id, kind, page_index, topic_id, prompt, cache_hit, latency_ms, created_at
		FROM deck_query_logs
		WHERE document_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, docID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.QueryLog, 0)
	for rows.Next() {
		var (
			entry     domain.QueryLog
			kind      string
			pageIndex *int32
		)
		if err := rows.Scan(&entry.ID, &entry.DocumentID, &kind, &pageIndex, &entry.TopicID, &entry.Prompt, &entry.CacheHit, &entry.LatencyMs, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.Kind = domain.QueryKind(kind)
		if pageIndex != nil {
			idx := int(*pageIndex)
			entry.PageIndex = &idx
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

var _ domain.QueryLogRepository = (*PostgresQueryLogRepository)(nil)
