// Package config loads the postroc configuration file.
//
// The file is TOML and lives at $XDG_CONFIG_HOME/postroc/config.toml unless
// a path is given explicitly. Every section is optional:
//
//	[engine]
//	seed = 42
//	retries = 3
//	backoff = "1s"
//	concurrency = 4
//
//	[cache]
//	backend = "redis"
//	ttl = "5m"
//	[cache.redis]
//	addr = "localhost:6379"
//
//	[environment]
//	active = "staging"
//	[[environment.environments]]
//	name = "staging"
//	base_url = "https://staging.example.com"
//
//	[server]
//	addr = ":8080"
//
//	[store]
//	uri = "mongodb://localhost:27017"
package config

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/postroc/pkg/cache"
	"github.com/matzehuels/postroc/pkg/env"
	perrors "github.com/matzehuels/postroc/pkg/errors"
	"github.com/matzehuels/postroc/pkg/fetch"
	"github.com/matzehuels/postroc/pkg/resolve"
	"github.com/matzehuels/postroc/pkg/store"
)

const appName = "postroc"

// Cache backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendNone  = "none"
)

// Duration is a time.Duration written as a string such as "250ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the whole configuration file.
type Config struct {
	Engine      Engine     `toml:"engine"`
	Cache       Cache      `toml:"cache"`
	Environment env.Config `toml:"environment"`
	Server      Server     `toml:"server"`
	Store       Store      `toml:"store"`
}

// Engine tunes the resolver.
type Engine struct {
	Seed        int64    `toml:"seed"` // 0 means random
	Retries     int      `toml:"retries"`
	Backoff     Duration `toml:"backoff"`
	Concurrency int      `toml:"concurrency"`
}

// Cache selects where fetch responses are kept.
type Cache struct {
	Backend string   `toml:"backend"`
	Dir     string   `toml:"dir"`
	TTL     Duration `toml:"ttl"`
	Redis   Redis    `toml:"redis"`
}

type Redis struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

type Server struct {
	Addr string `toml:"addr"`
}

// Store points at the MongoDB deployment used for "mongo:" snapshots.
type Store struct {
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Engine: Engine{
			Retries:     resolve.DefaultAttempts,
			Backoff:     Duration{resolve.DefaultBackoff},
			Concurrency: 1,
		},
		Cache: Cache{
			Backend: BackendFile,
			TTL:     Duration{fetch.DefaultTTL},
			Redis:   Redis{Addr: "localhost:6379", Prefix: cache.DefaultRedisPrefix},
		},
		Server: Server{Addr: ":8080"},
		Store: Store{
			Database:   store.DefaultMongoDatabase,
			Collection: store.DefaultMongoCollection,
		},
	}
}

// Path returns the default configuration file location.
func Path() (string, error) {
	dir, err := xdgDir("XDG_CONFIG_HOME", ".config")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the default file cache directory (~/.cache/postroc).
func CacheDir() (string, error) {
	return xdgDir("XDG_CACHE_HOME", ".cache")
}

func xdgDir(envVar, fallback string) (string, error) {
	if base := os.Getenv(envVar); base != "" {
		return filepath.Join(base, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, fallback, appName), nil
}

// Load reads path over the defaults. An empty path means [Path]; a missing
// file at the default location is not an error, a missing explicit file is.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		p, err := Path()
		if err != nil {
			return cfg, nil
		}
		path = p
	}

	md, err := toml.DecodeFile(path, &cfg)
	if errors.Is(err, fs.ErrNotExist) {
		if explicit {
			return cfg, perrors.Wrap(perrors.ErrCodeFileNotFound, err, "config %s", path)
		}
		return Default(), nil
	}
	if err != nil {
		return cfg, perrors.Wrap(perrors.ErrCodeInvalidFormat, err, "config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return cfg, perrors.New(perrors.ErrCodeInvalidInput, "config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return cfg, cfg.Validate()
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	switch c.Cache.Backend {
	case BackendFile, BackendRedis, BackendNone:
	default:
		return perrors.New(perrors.ErrCodeInvalidInput, "unknown cache backend %q", c.Cache.Backend)
	}
	if c.Engine.Retries < 1 {
		return perrors.New(perrors.ErrCodeInvalidInput, "engine.retries must be at least 1")
	}
	if c.Engine.Concurrency < 1 {
		return perrors.New(perrors.ErrCodeInvalidInput, "engine.concurrency must be at least 1")
	}
	if c.Engine.Backoff.Duration < 0 || c.Cache.TTL.Duration < 0 {
		return perrors.New(perrors.ErrCodeInvalidInput, "durations cannot be negative")
	}
	return nil
}

// Open builds the configured cache backend.
func (c Cache) Open(ctx context.Context) (cache.Cache, error) {
	switch c.Backend {
	case BackendNone:
		return cache.NewNullCache(), nil
	case BackendRedis:
		rc, err := cache.NewRedisCache(ctx, c.Redis.Addr, c.Redis.Password, c.Redis.DB, cache.WithPrefix(c.Redis.Prefix))
		if err != nil {
			return nil, err
		}
		return rc, nil
	default:
		dir := c.Dir
		if dir == "" {
			d, err := CacheDir()
			if err != nil {
				return cache.NewNullCache(), nil
			}
			dir = d
		}
		fc, err := cache.NewFileCache(dir)
		if err != nil {
			return nil, err
		}
		return fc, nil
	}
}

// Mongo returns the snapshot store options.
func (s Store) Mongo() store.MongoOptions {
	return store.MongoOptions{URI: s.URI, Database: s.Database, Collection: s.Collection}
}
