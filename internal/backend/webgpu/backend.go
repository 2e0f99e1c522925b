//go:build windows

// Package webgpu implements the device backend on WebGPU compute shaders.
// Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU bindings.
package webgpu

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/rs/zerolog"

	"github.com/born-ml/kernels/internal/backend/cpu"
	"github.com/born-ml/kernels/internal/ops"
	"github.com/born-ml/kernels/internal/tensor"
)

// Config configures a WebGPU backend.
type Config struct {
	// MaxBatchSize is the number of queued command buffers that triggers a
	// submit. 0 submits only before readbacks.
	MaxBatchSize int
	// Seed of the normal-init generator.
	Seed uint64
	// Host serves float64 operands and PositionEncode. Nil creates a CPU backend.
	Host   ops.Ops
	Logger zerolog.Logger
}

// DefaultConfig returns the default backend configuration.
func DefaultConfig() Config {
	return Config{
		MaxBatchSize: 64,
		Logger:       zerolog.Nop(),
	}
}

// Backend implements ops.Ops on the GPU using WebGPU.
type Backend struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	// Shader and pipeline cache
	shaders   map[string]*wgpu.ShaderModule
	pipelines map[string]*wgpu.ComputePipeline
	mu        sync.RWMutex

	// Device info
	adapterInfo *wgpu.AdapterInfoGo

	// Buffer pool for memory management
	bufferPool *BufferPool
	// owned maps result buffers handed to tensors to their pooled size.
	owned   map[*wgpu.Buffer]uint64
	ownedMu sync.Mutex

	// Command batching: commands are accumulated and submitted together.
	// Temporaries used by queued commands are retired once submitted.
	pendingCommands []*wgpu.CommandBuffer
	retired         []func()
	pendingMu       sync.Mutex
	maxBatchSize    int

	host   ops.Ops
	logger zerolog.Logger
	seed   uint64
	draws  atomic.Uint32

	// Memory tracking
	memoryStats struct {
		totalAllocatedBytes uint64
		peakMemoryBytes     uint64
		liveBytes           uint64
		activeBuffers       int64
		mu                  sync.RWMutex
	}
}

// Compile-time checks.
var (
	_ ops.Ops             = (*Backend)(nil)
	_ tensor.DeviceReader = (*Backend)(nil)
)

// New creates a new WebGPU backend with the default configuration.
// Returns an error if WebGPU is not available or initialization fails.
func New() (*Backend, error) {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a WebGPU backend from cfg.
func NewWithConfig(cfg Config) (backend *Backend, err error) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			backend = nil
			err = fmt.Errorf("webgpu: %w: native library not available: %v", ops.ErrDeviceUnavailable, r)
		}
	}()

	logger := cfg.Logger.With().Str("backend", "webgpu").Logger()

	instance, err := wgpu.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("webgpu: %w: %w", ops.ErrDeviceUnavailable, err)
	}
	adapter, adapterErr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if adapterErr != nil {
		instance.Release()
		return nil, fmt.Errorf("webgpu: %w: failed to request adapter: %w", ops.ErrDeviceUnavailable, adapterErr)
	}

	// Adapter info is informational; a failed query leaves it nil.
	adapterInfo, infoErr := adapter.GetInfo()
	if infoErr != nil {
		logger.Debug().Err(infoErr).Msg("adapter info unavailable")
	}

	device, deviceErr := adapter.RequestDevice(nil)
	if deviceErr != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: %w: failed to request device: %w", ops.ErrDeviceUnavailable, deviceErr)
	}

	queue := device.GetQueue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: %w: failed to get queue", ops.ErrDeviceUnavailable)
	}

	host := cfg.Host
	if host == nil {
		hostCfg := cpu.DefaultConfig()
		hostCfg.Seed = cfg.Seed
		hostCfg.Logger = cfg.Logger
		host = cpu.NewWithConfig(hostCfg)
	}

	b := &Backend{
		instance:     instance,
		adapter:      adapter,
		device:       device,
		queue:        queue,
		shaders:      make(map[string]*wgpu.ShaderModule),
		pipelines:    make(map[string]*wgpu.ComputePipeline),
		adapterInfo:  adapterInfo,
		bufferPool:   NewBufferPool(device),
		owned:        make(map[*wgpu.Buffer]uint64),
		maxBatchSize: cfg.MaxBatchSize,
		host:         host,
		logger:       logger,
		seed:         cfg.Seed,
	}

	logger.Debug().
		Str("adapter", b.Name()).
		Int("max_batch", cfg.MaxBatchSize).
		Msg("webgpu backend ready")

	return b, nil
}

// queueCommand adds a command buffer to the pending queue for batch submission.
// Commands are automatically flushed when reading data or when batch size limit is reached.
func (b *Backend) queueCommand(cmdBuffer *wgpu.CommandBuffer, retire ...func()) {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()

	b.pendingCommands = append(b.pendingCommands, cmdBuffer)
	b.retired = append(b.retired, retire...)

	if b.maxBatchSize > 0 && len(b.pendingCommands) >= b.maxBatchSize {
		b.flushCommandsLocked()
	}
}

// flushCommands submits all pending command buffers to the GPU queue.
// This is called automatically before reading data from GPU.
func (b *Backend) flushCommands() {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	b.flushCommandsLocked()
}

// flushCommandsLocked submits all pending command buffers (must hold pendingMu lock)
// and releases the temporaries they used.
func (b *Backend) flushCommandsLocked() {
	if len(b.pendingCommands) > 0 {
		b.queue.Submit(b.pendingCommands...)
		b.pendingCommands = b.pendingCommands[:0]
	}
	for _, release := range b.retired {
		release()
	}
	b.retired = b.retired[:0]
}

// FlushCommands submits all pending command buffers to the GPU queue.
func (b *Backend) FlushCommands() {
	b.flushCommands()
}

// SetMaxBatchSize sets the maximum number of commands to accumulate before auto-flush.
// Set to 0 to disable auto-flush limit.
func (b *Backend) SetMaxBatchSize(size int) {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	b.maxBatchSize = size
}

// Release releases all WebGPU resources.
// Must be called when the backend is no longer needed.
func (b *Backend) Release() {
	b.flushCommands()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bufferPool != nil {
		b.bufferPool.Clear()
		b.bufferPool = nil
	}

	for _, p := range b.pipelines {
		p.Release()
	}
	b.pipelines = nil

	for _, s := range b.shaders {
		s.Release()
	}
	b.shaders = nil

	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}

// Name returns the backend name.
func (b *Backend) Name() string {
	if b.adapterInfo != nil {
		return fmt.Sprintf("WebGPU (%s)", adapterFromInfo(b.adapterInfo))
	}
	return "WebGPU"
}

// Device returns the compute device.
func (b *Backend) Device() tensor.Device {
	return tensor.WebGPU
}

// Host returns the backend serving operations WGSL cannot express.
func (b *Backend) Host() ops.Ops {
	return b.host
}

// AdapterInfo returns information about the GPU adapter.
func (b *Backend) AdapterInfo() *wgpu.AdapterInfoGo {
	return b.adapterInfo
}

// IsAvailable checks if WebGPU is available on this system.
func IsAvailable() (available bool) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	instance, err := wgpu.CreateInstance(nil)
	if err != nil {
		return false
	}
	defer instance.Release()

	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()

	return true
}

// ListAdapters returns information about the available GPU adapters.
func ListAdapters() (adapters []Adapter, err error) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			adapters = nil
			err = fmt.Errorf("webgpu: %w: native library not available: %v", ops.ErrDeviceUnavailable, r)
		}
	}()

	instance, instanceErr := wgpu.CreateInstance(nil)
	if instanceErr != nil {
		return nil, fmt.Errorf("webgpu: %w: %w", ops.ErrDeviceUnavailable, instanceErr)
	}
	defer instance.Release()

	// WebGPU has no adapter enumeration; report the default one.
	adapter, adapterErr := instance.RequestAdapter(nil)
	if adapterErr != nil {
		return nil, fmt.Errorf("webgpu: %w: no adapters available: %w", ops.ErrDeviceUnavailable, adapterErr)
	}
	defer adapter.Release()

	info, infoErr := adapter.GetInfo()
	if infoErr != nil {
		return nil, fmt.Errorf("webgpu: %w", infoErr)
	}
	return []Adapter{adapterFromInfo(info)}, nil
}

func adapterFromInfo(info *wgpu.AdapterInfoGo) Adapter {
	return Adapter{Name: info.Device, Vendor: info.Vendor}
}

// MemoryStats represents GPU memory usage statistics.
type MemoryStats struct {
	// Total bytes allocated since backend creation
	TotalAllocatedBytes uint64
	// Peak memory usage in bytes
	PeakMemoryBytes uint64
	// Number of currently active result buffers
	ActiveBuffers int64
	// Buffer pool statistics
	PoolAllocated uint64
	PoolReleased  uint64
	PoolHits      uint64
	PoolMisses    uint64
	PooledBuffers int
}

// MemoryStats returns current GPU memory usage statistics.
func (b *Backend) MemoryStats() MemoryStats {
	b.memoryStats.mu.RLock()
	totalAllocated := b.memoryStats.totalAllocatedBytes
	peakMemory := b.memoryStats.peakMemoryBytes
	activeBuffers := b.memoryStats.activeBuffers
	b.memoryStats.mu.RUnlock()

	allocated, released, hits, misses, pooledCount := b.bufferPool.Stats()

	return MemoryStats{
		TotalAllocatedBytes: totalAllocated,
		PeakMemoryBytes:     peakMemory,
		ActiveBuffers:       activeBuffers,
		PoolAllocated:       allocated,
		PoolReleased:        released,
		PoolHits:            hits,
		PoolMisses:          misses,
		PooledBuffers:       pooledCount,
	}
}

func (b *Backend) trackAlloc(size uint64) {
	b.memoryStats.mu.Lock()
	defer b.memoryStats.mu.Unlock()
	b.memoryStats.totalAllocatedBytes += size
	b.memoryStats.liveBytes += size
	b.memoryStats.activeBuffers++
	if b.memoryStats.liveBytes > b.memoryStats.peakMemoryBytes {
		b.memoryStats.peakMemoryBytes = b.memoryStats.liveBytes
	}
}

func (b *Backend) trackFree(size uint64) {
	b.memoryStats.mu.Lock()
	defer b.memoryStats.mu.Unlock()
	b.memoryStats.liveBytes -= size
	b.memoryStats.activeBuffers--
}
