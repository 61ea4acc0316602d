package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-storefront/cache"
	"github.com/goliatone/go-storefront/identity"
	"github.com/goliatone/go-storefront/internal/database"
)

func inEmptyDir(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	inEmptyDir(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "storefront", cfg.Name)
	assert.Equal(t, "development", cfg.Env)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, database.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, 30*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, cache.DefaultConfig(), cfg.Cache.Options())
	assert.Equal(t, "os", cfg.Images.Backend)
	assert.Equal(t, identity.DefaultOptions(), cfg.Identity.Options())

	assert.Equal(t, Default(), cfg)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	inEmptyDir(t)
	t.Setenv("STOREFRONT_ENV", "production")
	t.Setenv("STOREFRONT_DATABASE_DRIVER", "postgres")
	t.Setenv("STOREFRONT_DATABASE_DSN", "postgres://shop@localhost/shop?sslmode=disable")
	t.Setenv("STOREFRONT_CACHE_TTL", "90s")
	t.Setenv("STOREFRONT_IMAGES_MAX_WIDTH", "320")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, database.DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "postgres://shop@localhost/shop?sslmode=disable", cfg.Database.DSN)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 320, cfg.Images.Store("products").MaxWidth)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "storefront.yaml")
	yaml := `
name: shop
env: test
log:
  mode: production
database:
  dsn: "file::memory:?cache=shared"
  log_queries: true
images:
  backend: memory
  root: assets
  url_prefix: /static
  blur_sigma: 0
identity:
  min_password_length: 10
  roles: [admin, customer, staff]
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "shop", cfg.Name)
	assert.Equal(t, "production", cfg.Log.Mode)
	assert.True(t, cfg.Database.LogQueries)
	assert.Equal(t, database.DriverSQLite, cfg.Database.Driver, "unset keys keep their defaults")

	store := cfg.Images.Store("users")
	assert.Equal(t, "assets", store.Root)
	assert.Equal(t, "users", store.Folder)
	assert.Equal(t, "/static", store.URLPrefix)
	assert.Zero(t, store.BlurSigma)
	require.NoError(t, store.Validate())

	opts := cfg.Identity.Options()
	assert.Equal(t, 10, opts.MinPasswordLength)
	assert.Equal(t, []string{"admin", "customer", "staff"}, opts.AllowedRoles)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		file string
	}{
		{name: "unknown env", env: map[string]string{"STOREFRONT_ENV": "staging"}},
		{name: "unknown driver", env: map[string]string{"STOREFRONT_DATABASE_DRIVER": "mysql"}},
		{name: "unknown image backend", env: map[string]string{"STOREFRONT_IMAGES_BACKEND": "s3"}},
		{name: "bcrypt cost too high", env: map[string]string{"STOREFRONT_IDENTITY_BCRYPT_COST": "40"}},
		{name: "malformed file", file: "name: [unterminated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inEmptyDir(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = filepath.Join(t.TempDir(), "config.yaml")
				require.NoError(t, os.WriteFile(path, []byte(tt.file), 0o600))
			}

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
