// Package cpu implements the host backend: every numeric operation in pure Go
// over host memory, with gonum BLAS for matrix products.
package cpu

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/rs/zerolog"

	"github.com/born-ml/kernels/internal/ops"
	"github.com/born-ml/kernels/internal/parallel"
	"github.com/born-ml/kernels/internal/tensor"
)

// Config configures a CPU backend.
type Config struct {
	Parallel parallel.Config
	Seed     uint64 // Seed of the normal-init generator.
	Logger   zerolog.Logger
}

// DefaultConfig returns a configuration using every CPU and seed 0.
func DefaultConfig() Config {
	return Config{
		Parallel: parallel.DefaultConfig(),
		Logger:   zerolog.Nop(),
	}
}

// CPUBackend implements ops.Ops on host memory.
type CPUBackend struct {
	device   tensor.Device
	parallel parallel.Config
	logger   zerolog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Compile-time check that CPUBackend implements ops.Ops.
var _ ops.Ops = (*CPUBackend)(nil)

// New creates a new CPU backend with the default configuration.
func New() *CPUBackend {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a CPU backend from cfg.
func NewWithConfig(cfg Config) *CPUBackend {
	cpu := &CPUBackend{
		device:   tensor.CPU,
		parallel: cfg.Parallel,
		logger:   cfg.Logger.With().Str("backend", "cpu").Logger(),
		rng:      rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
	cpu.logger.Debug().
		Bool("parallel", cfg.Parallel.Enabled).
		Int("workers", cfg.Parallel.NumWorkers).
		Uint64("seed", cfg.Seed).
		Msg("cpu backend ready")
	return cpu
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Reseed restarts the normal-init generator from seed.
func (cpu *CPUBackend) Reseed(seed uint64) {
	cpu.rngMu.Lock()
	defer cpu.rngMu.Unlock()
	cpu.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Alloc returns a zero-filled host tensor.
func (cpu *CPUBackend) Alloc(shape tensor.Shape, dtype tensor.DataType) (*tensor.RawTensor, error) {
	out, err := tensor.NewRaw(shape, dtype, cpu.device)
	if err != nil {
		return nil, fmt.Errorf("alloc: %w: %w", ops.ErrInvalidArgument, err)
	}
	return out, nil
}

// alloc is Alloc for shapes already validated by the caller.
func (cpu *CPUBackend) alloc(op string, shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	out, err := tensor.NewRaw(shape, dtype, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}
	return out
}

// output returns out when the caller provided one, else a fresh allocation.
func (cpu *CPUBackend) output(op string, out *tensor.RawTensor, shape tensor.Shape, dtype tensor.DataType) (*tensor.RawTensor, error) {
	if err := ops.CheckOut(op, out, shape, dtype); err != nil {
		return nil, err
	}
	if out != nil {
		return out, nil
	}
	return cpu.alloc(op, shape, dtype), nil
}

// inplace validates a tensor an in-place operation is about to overwrite.
func inplace(op string, t *tensor.RawTensor) error {
	return ops.CheckOut(op, t, t.Shape(), t.DType())
}
