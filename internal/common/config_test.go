package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	assert.Equal(t, "development", config.Environment)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "data/datalake.db", config.Storage.Path)
	assert.Equal(t, 5, config.Ingest.GetMaxAttempts())
	assert.Equal(t, 10*time.Minute, config.Ingest.GetStaleThreshold())
	assert.Equal(t, 365, config.Ingest.GetDefaultWindowDays())
	assert.Equal(t, 30, config.Ingest.GetMinArchiveKeepDays())
	assert.Equal(t, 20*time.Second, config.Clients.EODHD.GetTimeout())
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, config.Server.Port)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
environment = "production"

[server]
port = 9090

[storage]
path = "/var/lib/datalake/lake.db"

[ingest]
max_attempts = 3
stale_threshold = "5m"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "production", config.Environment)
	assert.True(t, config.IsProduction())
	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, "/var/lib/datalake/lake.db", config.Storage.Path)
	assert.Equal(t, 3, config.Ingest.GetMaxAttempts())
	assert.Equal(t, 5*time.Minute, config.Ingest.GetStaleThreshold())
	// untouched sections keep their defaults
	assert.Equal(t, "0.0.0.0", config.Server.Host)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("DATALAKE_PORT", "7070")
	t.Setenv("DATALAKE_DB_PATH", "/tmp/env.db")
	t.Setenv("EODHD_API_TOKEN", "token-from-env")
	t.Setenv("DATALAKE_STALE_THRESHOLD", "30m")

	config, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 7070, config.Server.Port)
	assert.Equal(t, "/tmp/env.db", config.Storage.Path)
	assert.Equal(t, "token-from-env", config.Clients.EODHD.APIKey)
	assert.Equal(t, 30*time.Minute, config.Ingest.GetStaleThreshold())
}

func TestIngestConfig_BadDurationsFallBack(t *testing.T) {
	ingest := IngestConfig{StaleThreshold: "not-a-duration", MaxAttempts: -1}
	assert.Equal(t, 10*time.Minute, ingest.GetStaleThreshold())
	assert.Equal(t, 5, ingest.GetMaxAttempts())
}
