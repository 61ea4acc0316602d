// Package config loads the storefront configuration from an optional YAML
// file and STOREFRONT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"

	"github.com/goliatone/go-storefront/cache"
	"github.com/goliatone/go-storefront/identity"
	"github.com/goliatone/go-storefront/imagestore"
	"github.com/goliatone/go-storefront/internal/database"
)

const EnvPrefix = "STOREFRONT"

// App is the application configuration.
type App struct {
	Name     string          `mapstructure:"name"`
	Env      string          `mapstructure:"env"` // development, production, test
	Log      LogConfig       `mapstructure:"log"`
	Database database.Config `mapstructure:"database"`
	Cache    CacheConfig     `mapstructure:"cache"`
	Images   ImagesConfig    `mapstructure:"images"`
	Identity IdentityConfig  `mapstructure:"identity"`
}

type LogConfig struct {
	Mode string `mapstructure:"mode"` // development, production
}

type CacheConfig struct {
	Capacity           int           `mapstructure:"capacity"`
	NumShards          int           `mapstructure:"num_shards"`
	TTL                time.Duration `mapstructure:"ttl"`
	EvictionPercentage int           `mapstructure:"eviction_percentage"`
	EvictionInterval   time.Duration `mapstructure:"eviction_interval"`
}

type ImagesConfig struct {
	// Backend is "os" for the local disk or "memory".
	Backend        string  `mapstructure:"backend"`
	Root           string  `mapstructure:"root"`
	URLPrefix      string  `mapstructure:"url_prefix"`
	MaxWidth       int     `mapstructure:"max_width"`
	MaxHeight      int     `mapstructure:"max_height"`
	MaxUploadBytes int64   `mapstructure:"max_upload_bytes"`
	MaxPixels      int     `mapstructure:"max_pixels"`
	BlurSigma      float64 `mapstructure:"blur_sigma"`
}

type IdentityConfig struct {
	MinPasswordLength int      `mapstructure:"min_password_length"`
	BcryptCost        int      `mapstructure:"bcrypt_cost"`
	Roles             []string `mapstructure:"roles"`
}

func (a *App) IsProduction() bool {
	return a.Env == "production"
}

func (a App) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Name, validation.Required),
		validation.Field(&a.Env, validation.Required, validation.In("development", "production", "test")),
		validation.Field(&a.Log),
		validation.Field(&a.Database),
		validation.Field(&a.Cache),
		validation.Field(&a.Images),
		validation.Field(&a.Identity),
	)
}

func (l LogConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Mode, validation.In("development", "production")),
	)
}

func (c CacheConfig) Validate() error {
	return c.Options().Validate()
}

func (i ImagesConfig) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.Backend, validation.Required, validation.In("os", "memory")),
		validation.Field(&i.Root, validation.Required),
	)
}

func (i IdentityConfig) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.MinPasswordLength, validation.Min(1)),
		validation.Field(&i.BcryptCost, validation.Min(4), validation.Max(31)),
	)
}

// Options converts the cache section into the cache package configuration.
func (c CacheConfig) Options() cache.Config {
	return cache.Config{
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		TTL:                c.TTL,
		EvictionPercentage: c.EvictionPercentage,
		EvictionInterval:   c.EvictionInterval,
	}
}

// Store returns the image store configuration for folder.
func (i ImagesConfig) Store(folder string) imagestore.Config {
	cfg := imagestore.DefaultConfig(folder)
	cfg.Root = i.Root
	cfg.URLPrefix = i.URLPrefix
	if i.MaxWidth > 0 {
		cfg.MaxWidth = i.MaxWidth
	}
	if i.MaxHeight > 0 {
		cfg.MaxHeight = i.MaxHeight
	}
	if i.MaxUploadBytes > 0 {
		cfg.MaxUploadBytes = i.MaxUploadBytes
	}
	if i.MaxPixels > 0 {
		cfg.MaxPixels = i.MaxPixels
	}
	cfg.BlurSigma = i.BlurSigma
	return cfg
}

func (i IdentityConfig) Options() identity.Options {
	return identity.Options{
		MinPasswordLength: i.MinPasswordLength,
		BcryptCost:        i.BcryptCost,
		AllowedRoles:      append([]string(nil), i.Roles...),
	}
}

// Load reads configPath, or config.yaml from the working directory or
// ./config when configPath is empty. A missing default file is not an error.
// Environment variables override file values: database.dsn is
// STOREFRONT_DATABASE_DSN.
func Load(configPath string) (*App, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var app App
	if err := v.Unmarshal(&app); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := app.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &app, nil
}

// Default returns the configuration Load produces without file or
// environment overrides.
func Default() *App {
	v := viper.New()
	setDefaults(v)
	var app App
	_ = v.Unmarshal(&app)
	return &app
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("name", "storefront")
	v.SetDefault("env", "development")

	v.SetDefault("log.mode", "development")

	v.SetDefault("database.driver", database.DriverSQLite)
	v.SetDefault("database.dsn", "file:storefront.db?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.log_queries", false)

	c := cache.DefaultConfig()
	v.SetDefault("cache.capacity", c.Capacity)
	v.SetDefault("cache.num_shards", c.NumShards)
	v.SetDefault("cache.ttl", c.TTL)
	v.SetDefault("cache.eviction_percentage", c.EvictionPercentage)
	v.SetDefault("cache.eviction_interval", c.EvictionInterval)

	img := imagestore.DefaultConfig("")
	v.SetDefault("images.backend", "os")
	v.SetDefault("images.root", img.Root)
	v.SetDefault("images.url_prefix", img.URLPrefix)
	v.SetDefault("images.max_width", img.MaxWidth)
	v.SetDefault("images.max_height", img.MaxHeight)
	v.SetDefault("images.max_upload_bytes", img.MaxUploadBytes)
	v.SetDefault("images.max_pixels", img.MaxPixels)
	v.SetDefault("images.blur_sigma", img.BlurSigma)

	id := identity.DefaultOptions()
	v.SetDefault("identity.min_password_length", id.MinPasswordLength)
	v.SetDefault("identity.bcrypt_cost", id.BcryptCost)
	v.SetDefault("identity.roles", id.AllowedRoles)
}
