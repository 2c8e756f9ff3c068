package db

import (
	"context"
	_ "embed"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

//go:embed schema.sql
var schemaSQL string

// Pool is an alias for pgxpool.Pool
type Pool = pgxpool.Pool

// PoolConfig controls the connection pool
type PoolConfig struct {
	URL string
	// MaxConns overrides the pgx default when positive.
	MaxConns int32
	// AutoMigrate applies the embedded schema once the database is reachable.
	AutoMigrate bool
}

// Schema returns the DDL applied on startup
func Schema() string {
	return schemaSQL
}

// NewPool creates the PostgreSQL pool. The database is first contacted when
// the fx app starts.
func NewPool(lc fx.Lifecycle, logger *zap.Logger, cfg PoolConfig) (*pgxpool.Pool, error) {
	logger.Info("initializing database connection pool", zap.String("url", maskPassword(cfg.URL)))

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("[DATABASE] failed to parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("[DATABASE] failed to create connection pool: %w", err)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				logger.Error("database ping failed", zap.Error(err))
				return fmt.Errorf("[DATABASE CONNECTION FAILED] cannot reach database. Please check: 1) PostgreSQL is running, 2) DATABASE_URL is correct, 3) Network/firewall allows connection. Error: %w", err)
			}
			logger.Info("database connection established", zap.Int32("max_conns", poolConfig.MaxConns))

			if !cfg.AutoMigrate {
				return nil
			}
			return migrate(ctx, pool, logger)
		},
		OnStop: func(ctx context.Context) error {
			pool.Close()
			logger.Info("database connection closed")
			return nil
		},
	})

	return pool, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("[DATABASE] failed to apply schema: %w", err)
	}
	logger.Info("database schema applied")
	return nil
}

// maskPassword hides the password of a postgres:// URL. Key/value DSNs are
// not logged at all.
func maskPassword(databaseURL string) string {
	if databaseURL == "" {
		return "<empty>"
	}

	u, err := url.Parse(databaseURL)
	if err != nil || u.Scheme == "" {
		return "<redacted>"
	}
	if u.User == nil {
		return u.String()
	}
	if _, ok := u.User.Password(); !ok {
		return u.String()
	}

	// url.UserPassword would percent-escape the mask
	username := url.User(u.User.Username()).String()
	u.User = nil
	prefix := u.Scheme + "://"
	return prefix + username + ":***@" + strings.TrimPrefix(u.String(), prefix)
}
