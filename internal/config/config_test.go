package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/kernels/internal/ops"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, DeviceAuto, cfg.Device)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.Parallel.Enabled)
	assert.Positive(t, cfg.Parallel.Workers)
	assert.InDelta(t, 5.0, cfg.MishThreshold, 1e-9)
	require.NoError(t, cfg.Validate())
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernels.yaml")
	cfg := DefaultConfig()
	cfg.Device = DeviceCPU
	cfg.Seed = 7
	cfg.Parallel.Workers = 3
	cfg.WebGPU.MaxBatchSize = 0

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernels.yaml")
	require.NoError(t, os.WriteFile(path, []byte("seed: 42\nparallel:\n  workers: 2\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), cfg.Seed)
	assert.Equal(t, 2, cfg.Parallel.Workers)
	assert.Equal(t, DeviceAuto, cfg.Device)
	assert.Equal(t, DefaultMinChunk, cfg.Parallel.MinChunk)
	assert.Equal(t, DefaultMaxBatchSize, cfg.WebGPU.MaxBatchSize)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("device: tpu\n"), 0o644))
	_, err = Load(bad)
	require.ErrorIs(t, err, ErrInvalidConfig)

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("seed: [\n"), 0o644))
	_, err = Load(broken)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"device", func(c *Config) { c.Device = "cuda" }},
		{"log level", func(c *Config) { c.LogLevel = "loud" }},
		{"workers", func(c *Config) { c.Parallel.Workers = -1 }},
		{"min chunk", func(c *Config) { c.Parallel.MinChunk = -1 }},
		{"batch size", func(c *Config) { c.WebGPU.MaxBatchSize = -1 }},
		{"mish threshold", func(c *Config) { c.MishThreshold = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.ErrorIs(t, err, ops.ErrInvalidArgument)
		})
	}
}

func TestBackendConfigs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 11
	cfg.Parallel.Workers = 1
	cfg.Parallel.MinChunk = 16
	cfg.WebGPU.MaxBatchSize = 8

	par := cfg.Parallelism()
	assert.False(t, par.Enabled)
	assert.Equal(t, 1, par.NumWorkers)
	assert.Equal(t, 16, par.MinChunkSize)

	host := cfg.HostConfig(zerolog.Nop())
	assert.Equal(t, uint64(11), host.Seed)
	assert.Equal(t, par, host.Parallel)

	dev := cfg.DeviceConfig(nil, zerolog.Nop())
	assert.Equal(t, 8, dev.MaxBatchSize)
	assert.Equal(t, uint64(11), dev.Seed)
	assert.Nil(t, dev.Host)
}
