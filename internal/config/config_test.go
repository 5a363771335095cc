package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("DefaultsApplied", func(t *testing.T) {
		path := writeConfig(t, "wiki:\n  base_url: https://wiki.example.org/w\n")
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Crawl.MaxPages)
		assert.Equal(t, 50, cfg.Crawl.CheckpointEvery)
		assert.Equal(t, 500, cfg.Crawl.FrontierCap)
		assert.Equal(t, 30, cfg.HTTP.TimeoutSeconds)
		assert.Equal(t, 5, cfg.AI.MaxRetries)
		assert.Equal(t, 5, cfg.AI.BatchSize)
		assert.Equal(t, 700000, cfg.AI.MaxBatchChars)
		assert.Equal(t, int64(10*1024*1024), cfg.Media.MaxImageBytes)
		assert.Equal(t, "local", cfg.Storage.Backend)
	})

	t.Run("MissingBaseURL", func(t *testing.T) {
		path := writeConfig(t, "crawl:\n  max_pages: 10\n")
		_, err := Load(path)
		assert.ErrorContains(t, err, "wiki.base_url")
	})

	t.Run("OverridesRespected", func(t *testing.T) {
		path := writeConfig(t, `
wiki:
  base_url: https://wiki.example.org/w
crawl:
  max_pages: 200
  delay_ms: 250
ai:
  batch_size: 10
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 200, cfg.Crawl.MaxPages)
		assert.Equal(t, 10, cfg.AI.BatchSize)
		assert.Equal(t, 250, cfg.Crawl.DelayMs)
	})

	t.Run("InvalidStorageBackend", func(t *testing.T) {
		path := writeConfig(t, `
wiki:
  base_url: https://wiki.example.org/w
storage:
  backend: s3
`)
		_, err := Load(path)
		assert.ErrorContains(t, err, "storage.backend")
	})

	t.Run("GCSRequiresBucket", func(t *testing.T) {
		path := writeConfig(t, `
wiki:
  base_url: https://wiki.example.org/w
storage:
  backend: gcs
`)
		_, err := Load(path)
		assert.ErrorContains(t, err, "gcs_bucket")
	})

	t.Run("DBRequiresDSN", func(t *testing.T) {
		path := writeConfig(t, `
wiki:
  base_url: https://wiki.example.org/w
db:
  enabled: true
`)
		_, err := Load(path)
		assert.ErrorContains(t, err, "db.dsn")
	})
}
