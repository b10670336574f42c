package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8001, cfg.Server.Port)
	assert.Equal(t, SourceHTTP, cfg.Source.Type)
	d, err := cfg.Source.TimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
  allowed_origins: ["https://coding.example.org"]
source:
  type: sqlite
  dsn: /tmp/agreement.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, []string{"https://coding.example.org"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, SourceSQLite, cfg.Source.Type)
	assert.Equal(t, "/tmp/agreement.db", cfg.Source.DSN)
	assert.Equal(t, "30s", cfg.Source.Timeout, "unset keys keep their defaults")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8100")
	t.Setenv("STATS_SOURCE", "postgres")
	t.Setenv("STATS_DSN", "postgres://localhost/coding?sslmode=disable")
	t.Setenv("ALLOWED_ORIGINS", "http://a,http://b")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8100, cfg.Server.Port)
	assert.Equal(t, SourcePostgres, cfg.Source.Type)
	assert.Equal(t, "postgres://localhost/coding?sslmode=disable", cfg.Source.DSN)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.Server.AllowedOrigins)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "server: [not a map"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "source:\n  type: postgres\n"))
	assert.ErrorContains(t, err, "dsn is required")

	_, err = Load(writeConfig(t, "source:\n  type: ftp\n"))
	assert.ErrorContains(t, err, "unknown source type")

	_, err = Load(writeConfig(t, "source:\n  timeout: soon\n"))
	assert.ErrorContains(t, err, "invalid source.timeout")

	t.Setenv("PORT", "eighty")
	_, err = Load("")
	assert.ErrorContains(t, err, "invalid PORT")
}
