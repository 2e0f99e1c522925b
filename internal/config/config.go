// Package config loads and saves backend configuration as YAML.
package config

import (
	"fmt"
	"os"
	"runtime"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/kernels/internal/backend/cpu"
	"github.com/born-ml/kernels/internal/backend/webgpu"
	"github.com/born-ml/kernels/internal/ops"
	"github.com/born-ml/kernels/internal/parallel"
)

// Device selections.
const (
	DeviceAuto   = "auto"
	DeviceCPU    = "cpu"
	DeviceWebGPU = "webgpu"
)

const (
	DefaultLogLevel     = "info"
	DefaultMinChunk     = 1024
	DefaultMaxBatchSize = 64
)

// ErrInvalidConfig reports a configuration that fails validation.
var ErrInvalidConfig = fmt.Errorf("config: %w", ops.ErrInvalidArgument)

type Config struct {
	Device        string         `yaml:"device"`
	LogLevel      string         `yaml:"log_level"`
	Seed          uint64         `yaml:"seed"`
	MishThreshold float32        `yaml:"mish_threshold"`
	Parallel      ParallelConfig `yaml:"parallel"`
	WebGPU        WebGPUConfig   `yaml:"webgpu"`
}

type ParallelConfig struct {
	Enabled  bool `yaml:"enabled"`
	Workers  int  `yaml:"workers"`
	MinChunk int  `yaml:"min_chunk"`
}

type WebGPUConfig struct {
	MaxBatchSize int `yaml:"max_batch_size"`
}

func DefaultConfig() *Config {
	return &Config{
		Device:        DeviceAuto,
		LogLevel:      DefaultLogLevel,
		MishThreshold: ops.DefaultMishThreshold,
		Parallel: ParallelConfig{
			Enabled:  true,
			Workers:  runtime.NumCPU(),
			MinChunk: DefaultMinChunk,
		},
		WebGPU: WebGPUConfig{
			MaxBatchSize: DefaultMaxBatchSize,
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	switch c.Device {
	case DeviceAuto, DeviceCPU, DeviceWebGPU:
	default:
		return fmt.Errorf("%w: device %q, want auto, cpu or webgpu", ErrInvalidConfig, c.Device)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %w", ErrInvalidConfig, err)
	}
	if c.Parallel.Workers < 0 {
		return fmt.Errorf("%w: parallel.workers %d", ErrInvalidConfig, c.Parallel.Workers)
	}
	if c.Parallel.MinChunk < 0 {
		return fmt.Errorf("%w: parallel.min_chunk %d", ErrInvalidConfig, c.Parallel.MinChunk)
	}
	if c.WebGPU.MaxBatchSize < 0 {
		return fmt.Errorf("%w: webgpu.max_batch_size %d", ErrInvalidConfig, c.WebGPU.MaxBatchSize)
	}
	if c.MishThreshold <= 0 {
		return fmt.Errorf("%w: mish_threshold %g", ErrInvalidConfig, c.MishThreshold)
	}
	return nil
}

// Parallelism converts the parallel section for the host kernels.
func (c *Config) Parallelism() parallel.Config {
	return parallel.Config{
		Enabled:      c.Parallel.Enabled && c.Parallel.Workers > 1,
		NumWorkers:   c.Parallel.Workers,
		MinChunkSize: c.Parallel.MinChunk,
	}
}

func (c *Config) HostConfig(logger zerolog.Logger) cpu.Config {
	return cpu.Config{
		Parallel: c.Parallelism(),
		Seed:     c.Seed,
		Logger:   logger,
	}
}

// DeviceConfig builds the device configuration. host serves float64 operands
// and may be nil.
func (c *Config) DeviceConfig(host ops.Ops, logger zerolog.Logger) webgpu.Config {
	return webgpu.Config{
		MaxBatchSize: c.WebGPU.MaxBatchSize,
		Seed:         c.Seed,
		Host:         host,
		Logger:       logger,
	}
}
