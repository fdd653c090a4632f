package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgxpool.Pool the store needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store persists usage events to Postgres.
type Store struct {
	db DBTX
}

func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

// Insert writes ev. Re-delivered events are ignored by ID.
func (s *Store) Insert(ctx context.Context, ev Event) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO recognition_usage (id, key_id, request_id, backend, language_code, encoding, audio_bytes, results, latency_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO NOTHING`,
		ev.ID, ev.KeyID, ev.RequestID, ev.Backend, ev.LanguageCode, ev.Encoding,
		ev.AudioBytes, ev.Results, ev.Latency.Milliseconds(), ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert usage event: %w", err)
	}
	return nil
}

// Summary aggregates one key's usage over a period.
type Summary struct {
	KeyID      string `json:"key_id"`
	Requests   int64  `json:"requests"`
	AudioBytes int64  `json:"audio_bytes"`
}

// Summarize returns per-key totals for events created in [from, to).
func (s *Store) Summarize(ctx context.Context, from, to time.Time) ([]Summary, error) {
	rows, err := s.db.Query(ctx,
		`SELECT key_id, COUNT(*), COALESCE(SUM(audio_bytes), 0)
		 FROM recognition_usage
		 WHERE created_at >= $1 AND created_at < $2
		 GROUP BY key_id
		 ORDER BY key_id`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("query usage summary: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.KeyID, &sum.Requests, &sum.AudioBytes); err != nil {
			return nil, fmt.Errorf("scan usage summary: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}
