//go:build windows

package webgpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"
)

// Usage flags of buffers that hold tensor data.
const storageUsage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst

// align4 rounds a byte count up to the 4-byte granularity of storage
// bindings. Buffers are never smaller than 4 bytes.
func align4(n int) uint64 {
	if n < 4 {
		return 4
	}
	//nolint:gosec // G115: n is a non-negative byte count
	return (uint64(n) + 3) &^ 3
}

// compileShader compiles WGSL shader code into a ShaderModule.
// Results are cached in the Backend's shaders map.
func (b *Backend) compileShader(name, code string) *wgpu.ShaderModule {
	b.mu.RLock()
	if shader, exists := b.shaders[name]; exists {
		b.mu.RUnlock()
		return shader
	}
	b.mu.RUnlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	if shader, exists := b.shaders[name]; exists {
		return shader
	}
	shader := b.device.CreateShaderModuleWGSL(code)
	b.shaders[name] = shader
	b.logger.Debug().Str("shader", name).Msg("compiled shader")
	return shader
}

// getOrCreatePipeline returns a cached ComputePipeline or creates a new one.
func (b *Backend) getOrCreatePipeline(name, code string) *wgpu.ComputePipeline {
	b.mu.RLock()
	if pipeline, exists := b.pipelines[name]; exists {
		b.mu.RUnlock()
		return pipeline
	}
	b.mu.RUnlock()

	shader := b.compileShader(name, code)

	b.mu.Lock()
	defer b.mu.Unlock()
	if pipeline, exists := b.pipelines[name]; exists {
		return pipeline
	}
	// Create compute pipeline with auto layout (nil layout)
	pipeline := b.device.CreateComputePipelineSimple(nil, shader, "main")
	b.pipelines[name] = pipeline
	return pipeline
}

// createBuffer creates a GPU buffer holding data, padded to align4.
func (b *Backend) createBuffer(data []byte, usage wgpu.BufferUsage) (*wgpu.Buffer, uint64) {
	size := align4(len(data))

	// Create buffer with MappedAtCreation for initial data upload
	buffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            usage,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
	copy(mappedSlice, data)
	clear(mappedSlice[len(data):])
	buffer.Unmap()

	return buffer, size
}

// createUniformBuffer creates a uniform buffer with proper alignment.
// Uniform buffers require 16-byte alignment for struct fields.
func (b *Backend) createUniformBuffer(data []byte) (*wgpu.Buffer, uint64) {
	size := uint64(len(data))
	alignedSize := max((size+15)&^15, 16) // Round up to 16-byte boundary

	buffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		Size:             alignedSize,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, alignedSize)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), alignedSize)
	copy(mappedSlice, data)
	clear(mappedSlice[size:])
	buffer.Unmap()

	return buffer, alignedSize
}

// uniforms packs shader parameters as consecutive 4-byte little-endian words.
// Accepts uint32, int32, float32, int and bool.
func uniforms(values ...any) []byte {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		var word uint32
		switch x := v.(type) {
		case uint32:
			word = x
		case int32:
			word = uint32(x) //nolint:gosec // G115: bit pattern
		case int:
			word = uint32(x) //nolint:gosec // G115: shader sizes fit u32
		case float32:
			word = math.Float32bits(x)
		case bool:
			if x {
				word = 1
			}
		default:
			panic(fmt.Sprintf("webgpu: unsupported uniform %T", v))
		}
		binary.LittleEndian.PutUint32(buf[4*i:], word)
	}
	return buf
}

// readBuffer reads data back from a GPU buffer to CPU memory.
// Uses a staging buffer since storage buffers can't be mapped directly.
// Pending commands are submitted first so the copy observes their writes.
func (b *Backend) readBuffer(srcBuffer *wgpu.Buffer, size uint64) ([]byte, error) {
	b.flushCommands()

	copySize := align4(int(size)) //nolint:gosec // G115: buffer sizes fit int

	// Create staging buffer for reading (MAP_READ | COPY_DST)
	stagingBuffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  copySize,
	})
	defer stagingBuffer.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(srcBuffer, 0, stagingBuffer, 0, copySize)
	cmdBuffer := encoder.Finish(nil)
	b.queue.Submit(cmdBuffer)

	err := stagingBuffer.MapAsync(b.device, wgpu.MapModeRead, 0, copySize)
	if err != nil {
		return nil, fmt.Errorf("webgpu: failed to map staging buffer: %w", err)
	}

	mappedPtr := stagingBuffer.GetMappedRange(0, copySize)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), copySize)
	result := make([]byte, size)
	copy(result, mappedSlice)

	stagingBuffer.Unmap()

	return result, nil
}

// binding is a storage buffer bound to one shader slot.
type binding struct {
	buffer *wgpu.Buffer
	size   uint64
}

// grid1D returns the 2D workgroup grid that covers n threads of a flat_index kernel.
func grid1D(n int) (x, y uint32) {
	groups := (n + workgroupSize - 1) / workgroupSize
	if groups <= maxWorkgroupsPerDim {
		return uint32(groups), 1 //nolint:gosec // G115: bounded by maxWorkgroupsPerDim
	}
	rows := (groups + maxWorkgroupsPerDim - 1) / maxWorkgroupsPerDim
	return maxWorkgroupsPerDim, uint32(rows) //nolint:gosec // G115: bounded by buffer limits
}

// dispatch records one compute pass and queues it for submission.
//
// The storage bindings occupy slots 0..len-1 and the parameters the last
// slot. retire runs once the pass has been submitted. A zero-sized grid
// records nothing and retires immediately.
func (b *Backend) dispatch(name, code string, x, y, z uint32, params []byte, bindings []binding, retire ...func()) {
	if x == 0 || y == 0 || z == 0 {
		for _, release := range retire {
			release()
		}
		return
	}

	pipeline := b.getOrCreatePipeline(name, code)

	paramsBuffer, paramsSize := b.createUniformBuffer(params)

	entries := make([]wgpu.BindGroupEntry, 0, len(bindings)+1)
	for i, bind := range bindings {
		//nolint:gosec // G115: binding slots are small
		entries = append(entries, wgpu.BufferBindingEntry(uint32(i), bind.buffer, 0, bind.size))
	}
	//nolint:gosec // G115: binding slots are small
	entries = append(entries, wgpu.BufferBindingEntry(uint32(len(bindings)), paramsBuffer, 0, paramsSize))

	bindGroupLayout := pipeline.GetBindGroupLayout(0)
	bindGroup := b.device.CreateBindGroupSimple(bindGroupLayout, entries)

	encoder := b.device.CreateCommandEncoder(nil)
	computePass := encoder.BeginComputePass(nil)
	computePass.SetPipeline(pipeline)
	computePass.SetBindGroup(0, bindGroup, nil)
	computePass.DispatchWorkgroups(x, y, z)
	computePass.End()
	cmdBuffer := encoder.Finish(nil)

	retire = append(retire, func() {
		bindGroup.Release()
		paramsBuffer.Release()
	})
	b.queueCommand(cmdBuffer, retire...)
}

// run dispatches a flat_index kernel over n threads.
func (b *Backend) run(name, code string, n int, params []byte, bindings []binding, retire ...func()) {
	x, y := grid1D(n)
	b.dispatch(name, code, x, y, 1, params, bindings, retire...)
}

// copyBuffer queues a device-to-device copy of size bytes.
func (b *Backend) copyBuffer(src, dst binding, size uint64, retire ...func()) {
	if size == 0 {
		for _, release := range retire {
			release()
		}
		return
	}
	encoder := b.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(src.buffer, 0, dst.buffer, 0, size)
	b.queueCommand(encoder.Finish(nil), retire...)
}
