package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/noodle/internal/limiter"
)

func TestLoad_EnvDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, EnvProd, cfg.Env)
	require.Equal(t, ":8080", cfg.HTTPServer.Address)
	require.Equal(t, 10*time.Second, cfg.HTTPServer.ShutdownTimeout)
	require.Equal(t, ":9090", cfg.GRPC.Address)
	require.False(t, cfg.GRPC.Reflection)
	require.Equal(t, BackendRedis, cfg.Limiter.Backend)
	require.Equal(t, limiter.Standard, cfg.MutationPreset())
	require.Equal(t, "s3cret", cfg.JWT.SecretKey)
	require.False(t, cfg.Development())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("APP_ENV", "local")
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("RATE_LIMIT_BACKEND", "postgres")
	t.Setenv("RATE_LIMIT_MUTATION_PRESET", "Strict")

	cfg, err := Load("")
	require.NoError(t, err)
	require.True(t, cfg.Development())
	require.Equal(t, "cache:6380", cfg.Redis.Addr)
	require.Equal(t, 2, cfg.Redis.DB)
	require.Equal(t, BackendPostgres, cfg.Limiter.Backend)
	require.Equal(t, limiter.Strict, cfg.MutationPreset())
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("JWT_SECRET", "")

	_, err := Load("")
	require.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("RATE_LIMIT_BACKEND", "memcached")
	t.Setenv("RATE_LIMIT_MUTATION_PRESET", "ludicrous")

	_, err := Load("")
	require.Error(t, err)
	require.Contains(t, err.Error(), "memcached")
	require.Contains(t, err.Error(), "ludicrous")
}

func TestLoad_FileThenEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	require.NoError(t, os.Unsetenv("JWT_SECRET"))
	t.Setenv("HTTP_ADDR", ":7000")

	path := filepath.Join(t.TempDir(), "noodle.yaml")
	yaml := `env: dev
http_server:
  address: ":8181"
grpc:
  reflection: true
postgres:
  dsn: "postgres://file@db/noodle"
jwt:
  secret_key: "from-file"
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, EnvDev, cfg.Env)
	require.Equal(t, ":7000", cfg.HTTPServer.Address, "env must override the file")
	require.True(t, cfg.GRPC.Reflection)
	require.Equal(t, "postgres://file@db/noodle", cfg.Postgres.DSN)
	require.Equal(t, "from-file", cfg.JWT.SecretKey)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestUsage_ListsVariables(t *testing.T) {
	require.Contains(t, Usage(), "JWT_SECRET")
}
