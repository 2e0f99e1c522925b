//go:build windows

package webgpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/born-ml/kernels/internal/ops"
	"github.com/born-ml/kernels/internal/tensor"
)

// maxReduceGroups caps the partial sums a norm reduction reads back.
const maxReduceGroups = 1024

// Adam applies one fused Adam update in place and zeroes the gradient.
func (b *Backend) Adam(weights, gradient, mom1, mom2 *tensor.RawTensor, cfg ops.AdamConfig) error {
	if err := ops.CheckAdam(weights, gradient, mom1, mom2); err != nil {
		return err
	}
	buffers := []*tensor.RawTensor{weights, gradient, mom1, mom2}
	for _, t := range buffers {
		if err := inplace("adam", t); err != nil {
			return err
		}
	}
	if onHost(weights) {
		if err := hostWritable("adam", buffers...); err != nil {
			return err
		}
		return b.host.Adam(weights, gradient, mom1, mom2, cfg)
	}

	bindings := make([]binding, len(buffers))
	commits := make([]func() error, len(buffers))
	for i, t := range buffers {
		bindings[i], commits[i] = b.mutable(t, true)
	}
	n := weights.NumElements()
	b.run("adam", adamShader, n,
		uniforms(n, float32(1-cfg.Beta1), float32(1-cfg.Beta2), float32(cfg.Eps), float32(cfg.LearnRate)),
		bindings)

	var errs []error
	for _, commit := range commits {
		errs = append(errs, commit())
	}
	return errors.Join(errs...)
}

// ClipGradient rescales gradient in place so its L2 norm does not exceed
// threshold. The norm is reduced on the device and the scale applied there.
func (b *Backend) ClipGradient(gradient *tensor.RawTensor, threshold float32) error {
	if err := ops.CheckFloat("clip_gradient", gradient); err != nil {
		return err
	}
	if threshold < 0 {
		return fmt.Errorf("clip_gradient: %w: threshold %g", ops.ErrInvalidArgument, threshold)
	}
	if err := inplace("clip_gradient", gradient); err != nil {
		return err
	}
	if onHost(gradient) {
		if err := hostWritable("clip_gradient", gradient); err != nil {
			return err
		}
		return b.host.ClipGradient(gradient, threshold)
	}
	n := gradient.NumElements()
	if n == 0 {
		return nil
	}

	data, commit := b.mutable(gradient, true)
	norm, err := b.norm(data, n)
	if err != nil {
		_ = commit()
		return fmt.Errorf("clip_gradient: %w", err)
	}
	if norm == 0 || norm < float64(threshold) {
		return commit()
	}
	b.run("scale", scaleShader, n, uniforms(n, float32(float64(threshold)/norm)), []binding{data})
	return commit()
}

// norm returns the L2 norm of the first n floats of data.
func (b *Backend) norm(data binding, n int) (float64, error) {
	groups := min((n+workgroupSize-1)/workgroupSize, maxReduceGroups)
	partials, release := b.scratch(groups * 4)
	defer release()

	//nolint:gosec // G115: groups <= maxReduceGroups
	b.dispatch("sum_squares", sumSquaresShader, uint32(groups), 1, 1, uniforms(n), []binding{data, partials})
	raw, err := b.readBuffer(partials.buffer, uint64(groups*4)) //nolint:gosec // G115: non-negative
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := range groups {
		sum += float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:])))
	}
	return math.Sqrt(sum), nil
}

// NormalInit returns a tensor shaped like W filled with N(0, 1/fanIn) samples.
func (b *Backend) NormalInit(W *tensor.RawTensor, fanIn int) (*tensor.RawTensor, error) {
	if err := ops.CheckFanIn(W, fanIn); err != nil {
		return nil, err
	}
	if onHost(W) {
		return b.host.NormalInit(W, fanIn)
	}
	result, dst := b.result(W.Shape(), tensor.Float32)
	b.fillNormal(dst, W.NumElements(), fanIn)
	return result, nil
}

// NormalInitInplace fills W with N(0, 1/fanIn) samples.
func (b *Backend) NormalInitInplace(W *tensor.RawTensor, fanIn int) (*tensor.RawTensor, error) {
	if err := ops.CheckFanIn(W, fanIn); err != nil {
		return nil, err
	}
	if err := inplace("normal_init", W); err != nil {
		return nil, err
	}
	if onHost(W) {
		if err := hostWritable("normal_init", W); err != nil {
			return nil, err
		}
		return b.host.NormalInitInplace(W, fanIn)
	}
	data, commit := b.mutable(W, false)
	b.fillNormal(data, W.NumElements(), fanIn)
	if err := commit(); err != nil {
		return nil, err
	}
	return W, nil
}

// fillNormal draws a fresh stream per call from the backend seed.
func (b *Backend) fillNormal(dst binding, n, fanIn int) {
	draw := b.draws.Add(1)
	seed := uint32(b.seed) ^ uint32(b.seed>>32) ^ (draw * 0x9e3779b9) //nolint:gosec // G115: seed folding
	scale := float32(math.Sqrt(1 / float64(fanIn)))
	b.run("normal_init", normalInitShader, n, uniforms(n, seed, scale), []binding{dst})
}

// PositionEncode builds the (N,D) sinusoidal table on the host and uploads it.
func (b *Backend) PositionEncode(n, d, period int) (*tensor.RawTensor, error) {
	table, err := b.host.PositionEncode(n, d, period)
	if err != nil {
		return nil, err
	}
	return b.toDevice(table), nil
}
