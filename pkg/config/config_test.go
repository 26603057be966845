package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "dirichlet", cfg.Retrieval.SmoothingMethod)
	assert.Equal(t, "auto", cfg.Retrieval.SmoothingParam)
	assert.Equal(t, 1000, cfg.Retrieval.TopK)
	assert.Equal(t, "indri", cfg.Retrieval.RunTag)
	assert.Equal(t, 1, cfg.Retrieval.Workers)
	assert.Equal(t, 10, cfg.Feedback.Docs)
	assert.Equal(t, 10, cfg.Feedback.Terms)
	assert.False(t, cfg.Feedback.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qlrun.yaml")
	content := `
index:
  dir: /data/trec/index
retrieval:
  smoothingMethod: jm
  smoothingParam: "0.3"
  topK: 100
  workers: 4
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/trec/index", cfg.Index.Dir)
	assert.Equal(t, "jm", cfg.Retrieval.SmoothingMethod)
	assert.Equal(t, "0.3", cfg.Retrieval.SmoothingParam)
	assert.Equal(t, 100, cfg.Retrieval.TopK)
	assert.Equal(t, 4, cfg.Retrieval.Workers)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "indri", cfg.Retrieval.RunTag, "unset fields keep defaults")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("QLRUN_INDEX_DIR", "/env/index")
	t.Setenv("QLRUN_SMOOTHING_METHOD", "jm")
	t.Setenv("QLRUN_TOP_K", "50")
	t.Setenv("QLRUN_LOGGING_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/env/index", cfg.Index.Dir)
	assert.Equal(t, "jm", cfg.Retrieval.SmoothingMethod)
	assert.Equal(t, 50, cfg.Retrieval.TopK)
	assert.Equal(t, "warn", cfg.Logging.Level)
}
