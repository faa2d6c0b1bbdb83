// Package pgstandings reads league standings from a Postgres table instead of
// the public API, for deployments where another job already ingests them.
//
// The standings table needs one row per team and season:
//
//	conference            text    -- "East" / "West"
//	team_name             text    -- tricode or nickname
//	wins                  integer
//	losses                integer
//	conference_games_back numeric
//	season                text    -- "2025-26"
package pgstandings

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/albapepper/scoracle-standings/internal/provider"
)

const (
	stmtStandings   = "standings_by_season"
	stmtHealthCheck = "health_check"
)

var statements = map[string]string{
	stmtHealthCheck: "SELECT 1",
	stmtStandings: `SELECT conference, team_name, wins::bigint, losses::bigint,
		conference_games_back::float8
		FROM standings WHERE season = $1`,
}

// Config holds the connection settings.
type Config struct {
	DatabaseURL string
	Season      string
	MaxConns    int32
}

// Source is a provider.Fetcher backed by a pgx connection pool.
type Source struct {
	pool   *pgxpool.Pool
	season string
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg Config) (*Source, error) {
	if cfg.Season == "" {
		return nil, fmt.Errorf("season is required for the postgres provider")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = 0
	poolCfg.MaxConns = 2
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Source{pool: pool, season: cfg.Season}, nil
}

// Close releases the pool.
func (s *Source) Close() {
	s.pool.Close()
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (s *Source) HealthCheck(ctx context.Context) error {
	var n int
	return s.pool.QueryRow(ctx, stmtHealthCheck).Scan(&n)
}

// FetchStandings returns every standings row for the configured season.
func (s *Source) FetchStandings(ctx context.Context) (*provider.Table, error) {
	rows, err := s.pool.Query(ctx, stmtStandings, s.season)
	if err != nil {
		return nil, fmt.Errorf("query standings %s: %w", s.season, err)
	}
	defer rows.Close()

	return readTable(rows)
}

// readTable collects the result rows into a Table. The query casts every
// numeric column, so cells arrive as int64 and float64.
func readTable(rows pgx.Rows) (*provider.Table, error) {
	tbl := &provider.Table{Headers: append([]string(nil), provider.RequiredColumns...)}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan standings row: %w", err)
		}
		tbl.Rows = append(tbl.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate standings: %w", err)
	}
	return tbl, nil
}

func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	for name, sql := range statements {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
