// Package database opens the bun database the storefront runs on.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-storefront/internal/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	// LogQueries logs every statement at debug level.
	LogQueries bool `mapstructure:"log_queries"`
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Driver, validation.Required, validation.In(DriverSQLite, DriverPostgres)),
		validation.Field(&c.DSN, validation.Required),
		validation.Field(&c.MaxOpenConns, validation.Min(0)),
		validation.Field(&c.MaxIdleConns, validation.Min(0)),
		validation.Field(&c.ConnMaxLifetime, validation.Min(time.Duration(0))),
	)
}

// Open connects to the configured database and checks the connection.
func Open(ctx context.Context, cfg Config, log *logger.Logger) (*bun.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("database: invalid config: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}

	var (
		sqldb *sql.DB
		db    *bun.DB
		err   error
	)
	switch cfg.Driver {
	case DriverSQLite:
		if sqldb, err = sql.Open("sqlite3", cfg.DSN); err != nil {
			return nil, fmt.Errorf("database: open sqlite: %w", err)
		}
		db = bun.NewDB(sqldb, sqlitedialect.New())
	case DriverPostgres:
		if sqldb, err = sql.Open("postgres", cfg.DSN); err != nil {
			return nil, fmt.Errorf("database: open postgres: %w", err)
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	}

	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database: ping %s: %w", cfg.Driver, err)
	}

	if cfg.LogQueries {
		db.AddQueryHook(&queryLogger{log: log.With("component", "bun")})
	}
	log.Info("database connected", "driver", cfg.Driver)
	return db, nil
}

type queryLogger struct {
	log *logger.Logger
}

var _ bun.QueryHook = (*queryLogger)(nil)

func (h *queryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *queryLogger) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	kv := []any{
		"operation", event.Operation(),
		"duration", time.Since(event.StartTime),
		"query", event.Query,
	}
	if event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows) {
		h.log.Warn("query failed", append(kv, "error", event.Err)...)
		return
	}
	h.log.Debug("query", kv...)
}
