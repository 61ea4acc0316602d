package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/goliatone/go-storefront/internal/logger"
)

func sqliteConfig(t *testing.T) Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "storefront.db")
	return Config{
		Driver:       DriverSQLite,
		DSN:          "file:" + path + "?_foreign_keys=on",
		MaxOpenConns: 4,
	}
}

func TestOpen_SQLite(t *testing.T) {
	ctx := context.Background()

	db, err := Open(ctx, sqliteConfig(t), nil)
	require.NoError(t, err)
	defer db.Close()

	var enabled int
	require.NoError(t, db.NewRaw("PRAGMA foreign_keys").Scan(ctx, &enabled))
	assert.Equal(t, 1, enabled)
	assert.Equal(t, "sqlite", db.Dialect().Name().String())
}

func TestOpen_LogsQueries(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.DebugLevel)
	log := &logger.Logger{SugaredLogger: zap.New(core).Sugar()}

	cfg := sqliteConfig(t)
	cfg.LogQueries = true
	db, err := Open(ctx, cfg, log)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.ExecContext(ctx, "CREATE TABLE notes (id INTEGER PRIMARY KEY)")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "SELECT * FROM missing_table")
	require.Error(t, err)

	assert.NotZero(t, logs.FilterMessage("query").Len())
	assert.Equal(t, 1, logs.FilterMessage("query failed").Len())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing driver", Config{DSN: "x"}},
		{"unknown driver", Config{Driver: "mysql", DSN: "x"}},
		{"missing dsn", Config{Driver: DriverPostgres}},
		{"negative pool", Config{Driver: DriverSQLite, DSN: "x", MaxOpenConns: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cfg.Validate())
			_, err := Open(context.Background(), tt.cfg, nil)
			assert.Error(t, err)
		})
	}
}
