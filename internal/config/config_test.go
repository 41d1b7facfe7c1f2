package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"SKELMERGE_CATALOG", "SKELMERGE_OUTPUT_ROOT", "SKELMERGE_RUNTIME_VERSION", "SKELMERGE_WEIGHT_THRESHOLD"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "database/clothing.db", cfg.Catalog)
	assert.Equal(t, "output", cfg.OutputRoot)
	assert.Equal(t, "4.2.0", cfg.RuntimeVersion)
	assert.Equal(t, 20.0, cfg.WeightThreshold)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SKELMERGE_CATALOG", "/tmp/c.db")
	t.Setenv("SKELMERGE_WEIGHT_THRESHOLD", "16")
	t.Setenv("SKELMERGE_RUNTIME_VERSION", "4.1.0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/c.db", cfg.Catalog)
	assert.Equal(t, 16.0, cfg.WeightThreshold)
	assert.Equal(t, "4.1.0", cfg.RuntimeVersion)
}

func TestLoadRejectsBadThreshold(t *testing.T) {
	t.Setenv("SKELMERGE_WEIGHT_THRESHOLD", "abc")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("SKELMERGE_WEIGHT_THRESHOLD", "-1")
	_, err = Load()
	assert.Error(t, err)
}
