package history

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/csvnome/internal/config"
)

// Open returns the recorder selected by cfg: a PostgresRecorder over a new
// pool when a database URL is set, otherwise a MemoryRecorder. The returned
// close function releases the pool and is safe to call for either kind.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Recorder, func(), error) {
	if !cfg.Enabled() {
		slog.Info("history kept in memory", "reason", "no database configured")
		return NewMemoryRecorder(0), func() {}, nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	rec := NewPostgresRecorder(pool)
	if err := rec.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("history stored in database", "name", strings.TrimPrefix(u.Path, "/"))
	}
	return rec, pool.Close, nil
}
