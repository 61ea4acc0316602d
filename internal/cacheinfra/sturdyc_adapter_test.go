package cacheinfra

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Capacity != 10000 {
		t.Errorf("expected Capacity to be 10000, got %d", cfg.Capacity)
	}
	if cfg.NumShards != 256 {
		t.Errorf("expected NumShards to be 256, got %d", cfg.NumShards)
	}
	if cfg.TTL != 10*time.Minute {
		t.Errorf("expected TTL to be 10 minutes, got %v", cfg.TTL)
	}
	if cfg.EvictionPercentage != 10 {
		t.Errorf("expected EvictionPercentage to be 10, got %d", cfg.EvictionPercentage)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected default config to be valid, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := DefaultConfig()

	tests := []struct {
		name      string
		mutate    func(*Config)
		wantError bool
	}{
		{name: "valid default config", mutate: func(*Config) {}},
		{name: "zero capacity", mutate: func(c *Config) { c.Capacity = 0 }, wantError: true},
		{name: "negative shards", mutate: func(c *Config) { c.NumShards = -1 }, wantError: true},
		{name: "zero ttl disables expiry", mutate: func(c *Config) { c.TTL = 0 }},
		{name: "negative ttl", mutate: func(c *Config) { c.TTL = -time.Minute }, wantError: true},
		{name: "sub-millisecond ttl", mutate: func(c *Config) { c.TTL = time.Microsecond }, wantError: true},
		{name: "eviction percentage above 100", mutate: func(c *Config) { c.EvictionPercentage = 101 }, wantError: true},
		{name: "negative eviction interval", mutate: func(c *Config) { c.EvictionInterval = -time.Second }, wantError: true},
		{name: "custom eviction interval", mutate: func(c *Config) { c.EvictionInterval = time.Minute }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantError {
				var cfgErr *ConfigError
				if !errors.As(err, &cfgErr) {
					t.Fatalf("expected *ConfigError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestNewSturdycService_InvalidConfig(t *testing.T) {
	if _, err := NewSturdycService(Config{}); err == nil {
		t.Fatal("expected error for zero config")
	}
}

func TestNewSturdycService_ZeroTTL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TTL = 0
	if got := cfg.ttl(); got != NoExpiry {
		t.Errorf("expected zero TTL to map to NoExpiry, got %v", got)
	}

	svc, err := NewSturdycService(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()
	if err := svc.Set(ctx, "product::list::all::product", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if got, ok := svc.Get(ctx, "product::list::all::product"); !ok || string(got) != "x" {
		t.Errorf("expected stored entry, got %q, %v", got, ok)
	}
}

func newTestService(t *testing.T) *sturdycService {
	t.Helper()
	svc, err := NewSturdycService(DefaultConfig())
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return svc
}

func TestSturdycService_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	if _, ok := svc.Get(ctx, "missing"); ok {
		t.Fatal("expected miss for unknown key")
	}

	if err := svc.Set(ctx, "product::list::all::product", []byte("payload")); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	got, ok := svc.Get(ctx, "product::list::all::product")
	if !ok || string(got) != "payload" {
		t.Fatalf("expected hit with payload, got %q ok=%v", got, ok)
	}

	if err := svc.Delete(ctx, "product::list::all::product"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok := svc.Get(ctx, "product::list::all::product"); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestSturdycService_DeleteByPrefix(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	keys := []string{
		"user::list::all::user",
		"user::count::all::int",
		"user_role::list::all::user_role",
		"product::list::all::product",
	}
	for _, k := range keys {
		_ = svc.Set(ctx, k, []byte(k))
	}

	if err := svc.DeleteByPrefix(ctx, "user::"); err != nil {
		t.Fatalf("delete by prefix failed: %v", err)
	}

	for _, k := range keys[:2] {
		if _, ok := svc.Get(ctx, k); ok {
			t.Errorf("expected %s to be purged", k)
		}
	}
	for _, k := range keys[2:] {
		if _, ok := svc.Get(ctx, k); !ok {
			t.Errorf("expected %s to survive the user purge", k)
		}
	}
}

func TestSturdycService_Clear(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	for i := 0; i < 10; i++ {
		_ = svc.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"))
	}
	if err := svc.Clear(ctx); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if svc.Size() != 0 {
		t.Fatalf("expected empty cache, got %d entries", svc.Size())
	}
}

func TestSturdycService_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("product::list::%d::product", j%10)
				_ = svc.Set(ctx, key, []byte{byte(n)})
				svc.Get(ctx, key)
				if j%25 == 0 {
					_ = svc.DeleteByPrefix(ctx, "product::")
				}
			}
		}(i)
	}
	wg.Wait()
}
