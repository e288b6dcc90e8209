package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dstree.yaml")
	content := "num_parallel_workers: 8\nnum_epochs: 3\ngetter_cache_ttl: 30s\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.NumParallelWorkers)
	assert.Equal(t, 3, cfg.NumEpochs)
	assert.Equal(t, 30*time.Second, cfg.GetterCacheTTL)
	assert.Equal(t, 16, cfg.OpConnectorSize)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("DSTREE_NUM_PARALLEL_WORKERS", "2")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.NumParallelWorkers)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("DSTREE_NUM_EPOCHS", "0")
	_, err := Load("")
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestOrDefault(t *testing.T) {
	assert.Equal(t, Default(), OrDefault(nil))
	c := &Config{NumParallelWorkers: 1}
	assert.Same(t, c, OrDefault(c))
}
