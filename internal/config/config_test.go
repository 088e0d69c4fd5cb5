package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/postroc/pkg/cache"
	"github.com/matzehuels/postroc/pkg/env"
	perrors "github.com/matzehuels/postroc/pkg/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
[engine]
seed = 42
backoff = "250ms"
concurrency = 4

[cache]
backend = "none"

[environment]
active = "staging"

[environment.auth]
type = "bearer"
token = "t"

[[environment.environments]]
name = "staging"
base_url = "https://staging.example.com"

[[environment.headers]]
key = "Accept"
value = "application/json"

[server]
addr = ":9000"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := Default()
	want.Engine.Seed = 42
	want.Engine.Backoff = Duration{250 * time.Millisecond}
	want.Engine.Concurrency = 4
	want.Cache.Backend = BackendNone
	want.Server.Addr = ":9000"
	want.Environment = env.Config{
		Environments:   []env.Target{{Name: "staging", BaseURL: "https://staging.example.com"}},
		Active:         "staging",
		Auth:           env.Auth{Type: env.AuthBearer, Token: "t"},
		DefaultHeaders: []env.Header{{Key: "Accept", Value: "application/json"}},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code perrors.Code
	}{
		{"syntax", "[engine\n", perrors.ErrCodeInvalidFormat},
		{"unknown key", "[engine]\nspeed = 1\n", perrors.ErrCodeInvalidInput},
		{"bad backend", "[cache]\nbackend = \"memcached\"\n", perrors.ErrCodeInvalidInput},
		{"bad retries", "[engine]\nretries = 0\n", perrors.ErrCodeInvalidInput},
		{"bad duration", "[engine]\nbackoff = \"soon\"\n", perrors.ErrCodeInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if !perrors.Is(err, tt.code) {
				t.Errorf("Load() error = %v, want %s", err, tt.code)
			}
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if !perrors.Is(err, perrors.ErrCodeFileNotFound) {
		t.Errorf("Load(missing) error = %v, want FILE_NOT_FOUND", err)
	}
}

func TestLoadDefaultPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") without a file error = %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Load(\"\") mismatch (-want +got):\n%s", diff)
	}

	if err := os.MkdirAll(filepath.Join(dir, "postroc"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "postroc", "config.toml"), []byte("[server]\naddr = \":1\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load("")
	if err != nil || cfg.Server.Addr != ":1" {
		t.Errorf("Load(\"\") = %+v, %v", cfg.Server, err)
	}
}

func TestPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	t.Setenv("XDG_CACHE_HOME", "/cache")

	if p, _ := Path(); p != filepath.Join("/cfg", "postroc", "config.toml") {
		t.Errorf("Path() = %q", p)
	}
	if d, _ := CacheDir(); d != filepath.Join("/cache", "postroc") {
		t.Errorf("CacheDir() = %q", d)
	}
}

func TestCacheOpen(t *testing.T) {
	ctx := context.Background()

	c, err := Cache{Backend: BackendNone}.Open(ctx)
	if _, ok := c.(*cache.NullCache); !ok || err != nil {
		t.Errorf("Open(none) = %T, %v", c, err)
	}

	dir := t.TempDir()
	c, err = Cache{Backend: BackendFile, Dir: dir}.Open(ctx)
	fc, ok := c.(*cache.FileCache)
	if !ok || err != nil || fc.Dir() != dir {
		t.Errorf("Open(file) = %T, %v", c, err)
	}
}

func TestDurationText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("1m30s")); err != nil || d.Duration != 90*time.Second {
		t.Errorf("UnmarshalText() = %v, %v", d, err)
	}
	b, _ := d.MarshalText()
	if string(b) != "1m30s" {
		t.Errorf("MarshalText() = %s", b)
	}
}
