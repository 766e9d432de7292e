package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimal = `
environment: test
uda:
  base_url: http://localhost:9999/
  api_key: secret
collector:
  watchlist:
    - indicator: r_g
      admin_level: 0
      period: 2017Q2
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimal))
	require.NoError(t, err)

	assert.Equal(t, "storage", cfg.Backend.Type)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, "memory", cfg.Cache.Type)
	assert.Equal(t, "indicator", cfg.UDA.IndicatorPath)
	assert.Equal(t, 3, cfg.UDA.RetryAttempts)
	assert.Equal(t, 15*time.Minute, cfg.Cache.TTL)
	require.Len(t, cfg.Collector.Watchlist, 1)
	require.NotNil(t, cfg.Collector.Watchlist[0].AdminLevel)
	assert.Equal(t, 0, *cfg.Collector.Watchlist[0].AdminLevel)
}

func TestLoadRejectsWatchEntryWithoutAdminLevel(t *testing.T) {
	_, err := Load(writeConfig(t, `
environment: test
uda:
  base_url: http://localhost:9999/
  api_key: secret
collector:
  watchlist:
    - indicator: s_p
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "admin_level is required")
}

func TestLoadRejectsConflictingTaxonomyAlias(t *testing.T) {
	_, err := Load(writeConfig(t, `
environment: test
uda:
  base_url: http://localhost:9999/
  api_key: secret
collector:
  watchlist:
    - indicator: s_p
      admin_level: 3
      taxonomy: P
      category: Q
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "taxonomy and category differ")
}

func TestLoadWithEnvOverridesAPIKey(t *testing.T) {
	t.Setenv("UDA_API_KEY", "from-env")
	path := writeConfig(t, `
environment: test
uda:
  base_url: http://localhost:9999/
`)

	_, err := Load(path)
	require.Error(t, err)

	cfg, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.UDA.APIKey)
}

func TestValidateKafkaBackendNeedsBrokers(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimal))
	require.NoError(t, err)

	cfg.Backend.Type = "kafka"
	assert.Error(t, cfg.Validate())

	cfg.Kafka.Brokers = []string{"localhost:9092"}
	assert.NoError(t, cfg.Validate())

	cfg.Backend.Type = "storage"
	cfg.Kafka.Consumer.Enabled = true
	cfg.Kafka.Brokers = nil
	assert.Error(t, cfg.Validate())
}

func TestLoadQueueDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimal))
	require.NoError(t, err)
	assert.False(t, cfg.Queue.Enabled)
	assert.Equal(t, 2, cfg.Queue.Workers)
	assert.Equal(t, 30*time.Second, cfg.Queue.RetryDelay)
	assert.Equal(t, "localhost", cfg.Cache.Redis.Host)
	assert.Equal(t, 6379, cfg.Cache.Redis.Port)
}
