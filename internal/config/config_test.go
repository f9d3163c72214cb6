package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/tendril/internal/config"
	"github.com/aretw0/tendril/pkg/adapters/file"
	"github.com/aretw0/tendril/pkg/adapters/memory"
	"github.com/aretw0/tendril/pkg/adapters/sqlite"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/session"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.BindFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(viper.New(), flags(t), "")
	require.NoError(t, err)
	assert.Equal(t, "tendril.yaml", cfg.Definition)
	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_Precedence(t *testing.T) {
	t.Setenv("TENDRIL_STORE", "sqlite")
	t.Setenv("TENDRIL_LOG_LEVEL", "debug")
	t.Setenv("TENDRIL_REDIS_DB", "3")

	cfg, err := config.Load(viper.New(), flags(t, "--log-level", "warn"), "")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store, "environment overrides defaults")
	assert.Equal(t, "warn", cfg.LogLevel, "flags override the environment")
	assert.Equal(t, 3, cfg.RedisDB)
}

func TestLoad_DotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TENDRIL_EPISODE=from-dotenv\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("TENDRIL_EPISODE") })

	cfg, err := config.Load(viper.New(), flags(t), path)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Episode)

	_, err = config.Load(viper.New(), flags(t), filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err, "a missing dotenv file is not an error")
}

func TestOpenStore(t *testing.T) {
	store, closeFn, err := config.Config{Store: "memory"}.OpenStore()
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, store)
	assert.NoError(t, closeFn())

	store, _, err = config.Config{Store: "file", StorePath: t.TempDir()}.OpenStore()
	require.NoError(t, err)
	require.IsType(t, &session.Manager{}, store)
	assert.IsType(t, &file.Store{}, store.(*session.Manager).Store())

	store, closeFn, err = config.Config{Store: "sqlite", StorePath: ":memory:"}.OpenStore()
	require.NoError(t, err)
	require.IsType(t, &session.Manager{}, store)
	assert.IsType(t, &sqlite.Store{}, store.(*session.Manager).Store())
	assert.NoError(t, closeFn())

	_, _, err = config.Config{Store: "etcd"}.OpenStore()
	assert.Error(t, err)
}

func TestOpenStore_Redact(t *testing.T) {
	dir := t.TempDir()
	store, _, err := config.Config{Store: "file", StorePath: dir, Redact: []string{"secret"}}.OpenStore()
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Append(ctx, domain.ObservationEvent(domain.Observation{
		ID: "o1", EpisodeID: "ep",
		State: domain.ObservedState{Value: domain.Atomic("idle"), Context: map[string]any{"secret": "s3cr3t"}},
	})))

	records, err := file.NewStore(dir).Load(ctx, "ep")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "***", records[0].Payload.(domain.Observation).State.Context["secret"])

	_, _, err = config.Config{Store: "memory", Redact: []string{"("}}.OpenStore()
	assert.Error(t, err)
}

func TestLoad_RedactFromEnv(t *testing.T) {
	t.Setenv("TENDRIL_REDACT", "password,token")
	cfg, err := config.Load(viper.New(), flags(t), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"password", "token"}, cfg.Redact)
}
