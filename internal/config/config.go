// Package config resolves CLI settings from flags, TENDRIL_* environment
// variables and an optional .env file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/adapters/file"
	"github.com/aretw0/tendril/pkg/adapters/memory"
	"github.com/aretw0/tendril/pkg/adapters/redis"
	"github.com/aretw0/tendril/pkg/adapters/sqlite"
	"github.com/aretw0/tendril/pkg/persistence/middleware"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/session"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "TENDRIL"

// Config holds the settings shared by every command.
type Config struct {
	Definition    string   `mapstructure:"definition"`
	LogLevel      string   `mapstructure:"log-level"`
	Store         string   `mapstructure:"store"`
	StorePath     string   `mapstructure:"store-path"`
	RedisAddr     string   `mapstructure:"redis-addr"`
	RedisPassword string   `mapstructure:"redis-password"`
	RedisDB       int      `mapstructure:"redis-db"`
	Redact        []string `mapstructure:"redact"`
	Episode       string   `mapstructure:"episode"`
	Addr          string   `mapstructure:"addr"`
}

// BindFlags declares the shared flags on fs.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("definition", "tendril.yaml", "Machine definition file (YAML or JSON)")
	fs.String("log-level", "info", "Log level: debug, info, warn or error")
	fs.String("store", "memory", "Memory store: memory, file, sqlite or redis")
	fs.String("store-path", "", "Directory (file) or DSN (sqlite) of the memory store")
	fs.String("redis-addr", "localhost:6379", "Redis address (store=redis)")
	fs.String("redis-password", "", "Redis password (store=redis)")
	fs.Int("redis-db", 0, "Redis database (store=redis)")
	fs.StringSlice("redact", nil, "Regular expressions of context keys masked before records are stored")
	fs.String("episode", "", "Episode ID (defaults to a new one)")
	fs.String("addr", ":8080", "Listen address for servers")
}

// Load reads dotenv (when the file exists), then resolves every flag in flags
// against the environment. Flags set on the command line win.
func Load(v *viper.Viper, flags *pflag.FlagSet, dotenv string) (Config, error) {
	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", dotenv, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return Config{}, fmt.Errorf("failed to bind flags: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Logger builds the application logger at the configured level.
func (c Config) Logger() *slog.Logger {
	return logging.New(logging.ParseLevel(c.LogLevel))
}

// OpenStore opens the configured memory store. Durable stores are wrapped
// with per-episode locking, then with key redaction when Redact is set. The
// returned close function is never nil.
func (c Config) OpenStore() (ports.MemoryStore, func() error, error) {
	store, closeFn, err := c.openBackend()
	if err != nil {
		return nil, closeFn, err
	}
	if _, inMemory := store.(*memory.Store); !inMemory {
		store = session.NewManager(store, session.WithLogger(c.Logger()))
	}
	if len(c.Redact) > 0 {
		pii, err := middleware.NewPIIMiddleware(c.Redact)
		if err != nil {
			closeFn()
			return nil, func() error { return nil }, err
		}
		store = middleware.Chain(store, pii)
	}
	return store, closeFn, nil
}

func (c Config) openBackend() (ports.MemoryStore, func() error, error) {
	nop := func() error { return nil }
	switch c.Store {
	case "", "memory":
		return memory.NewStore(), nop, nil
	case "file":
		return file.NewStore(c.StorePath), nop, nil
	case "sqlite":
		dsn := c.StorePath
		if dsn == "" {
			dsn = "file:tendril.db?mode=rwc"
		}
		s, err := sqlite.Open(dsn)
		if err != nil {
			return nil, nop, err
		}
		return s, s.Close, nil
	case "redis":
		s := redis.New(c.RedisAddr, c.RedisPassword, c.RedisDB)
		return s, s.Close, nil
	default:
		return nil, nop, fmt.Errorf("unknown store %q", c.Store)
	}
}
