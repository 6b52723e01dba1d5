package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_DSN", "")
	t.Setenv("WORKER_CONCURRENCY", "")
	t.Setenv("VEO_POLL_INTERVAL", "")

	cfg := Load()
	assert.Contains(t, cfg.DBDSN, "/fixo?")
	assert.Equal(t, "veo", cfg.GenerationProvider)
	assert.Equal(t, 6*time.Second, cfg.Veo.PollInterval)
	assert.Equal(t, 30, cfg.Veo.MaxAttempts)
	assert.Equal(t, 3*time.Second, cfg.Luma.PollInterval)
	assert.Equal(t, 60, cfg.Luma.MaxAttempts)
	assert.Equal(t, 2, cfg.WorkerConcurrency)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DB_DSN", "sqlite:test.db")
	t.Setenv("WORKER_CONCURRENCY", "500")
	t.Setenv("LUMA_POLL_INTERVAL", "250ms")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := Load()
	assert.Equal(t, "sqlite:test.db", cfg.DBDSN)
	assert.Equal(t, 50, cfg.WorkerConcurrency)
	assert.Equal(t, 250*time.Millisecond, cfg.Luma.PollInterval)
	assert.Equal(t, 0, cfg.RedisDB)
}

func TestLoadFile_OverlaysYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixo.yaml")
	body := `
http_addr: ":9090"
generation_provider: luma
veo:
  poll_interval: 2s
  max_attempts: 5
worker_concurrency: 0
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "luma", cfg.GenerationProvider)
	assert.Equal(t, 2*time.Second, cfg.Veo.PollInterval)
	assert.Equal(t, 5, cfg.Veo.MaxAttempts)
	// untouched keys keep their env defaults
	assert.Equal(t, "veo-2.0-generate-001", cfg.Veo.Model)
	assert.Equal(t, 2, cfg.WorkerConcurrency)
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
