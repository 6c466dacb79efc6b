package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresClient struct {
	Pool *pgxpool.Pool
}

func NewPostgresClient(ctx context.Context, connString string) (*PostgresClient, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	client := &PostgresClient{Pool: pool}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return client, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var migrations = []struct {
	name string
	sql  string
}{
	{"exchanges", `
		CREATE TABLE IF NOT EXISTS exchanges (
			id BIGSERIAL PRIMARY KEY,
			message_id VARCHAR(128),
			client_id VARCHAR(64) NOT NULL,
			platform VARCHAR(20) NOT NULL,
			message TEXT NOT NULL,
			response TEXT NOT NULL,
			language VARCHAR(8),
			intent VARCHAR(32),
			strategy VARCHAR(16),
			escalated BOOLEAN DEFAULT FALSE,
			reason VARCHAR(64),
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		);
	`},
	{"exchanges_client_idx", `CREATE INDEX IF NOT EXISTS exchanges_client_idx ON exchanges (client_id, created_at);`},
	{"exchange_daily", `
		CREATE TABLE IF NOT EXISTS exchange_daily (
			date DATE PRIMARY KEY,
			messages INT NOT NULL DEFAULT 0,
			escalations INT NOT NULL DEFAULT 0
		);
	`},
}

// Migrate creates the audit tables when missing.
func Migrate(ctx context.Context, db execer) error {
	for _, m := range migrations {
		if _, err := db.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("create %s: %w", m.name, err)
		}
	}
	return nil
}

func (p *PostgresClient) Close() {
	p.Pool.Close()
}
