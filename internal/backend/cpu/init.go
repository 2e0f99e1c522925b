package cpu

import (
	"math"

	"github.com/born-ml/kernels/internal/ops"
	"github.com/born-ml/kernels/internal/tensor"
)

// NormalInit returns a tensor shaped like W filled with samples of
// N(0, 1/fanIn). W itself is left untouched.
func (cpu *CPUBackend) NormalInit(W *tensor.RawTensor, fanIn int) (*tensor.RawTensor, error) {
	if err := ops.CheckFanIn(W, fanIn); err != nil {
		return nil, err
	}
	result := cpu.alloc("normal_init", W.Shape(), W.DType())
	cpu.fillNormal(result, fanIn)
	return result, nil
}

// NormalInitInplace fills W with samples of N(0, 1/fanIn) and returns it.
func (cpu *CPUBackend) NormalInitInplace(W *tensor.RawTensor, fanIn int) (*tensor.RawTensor, error) {
	if err := ops.CheckFanIn(W, fanIn); err != nil {
		return nil, err
	}
	if err := inplace("normal_init", W); err != nil {
		return nil, err
	}
	cpu.fillNormal(W, fanIn)
	return W, nil
}

// fillNormal draws sequentially so a given seed always yields the same values.
func (cpu *CPUBackend) fillNormal(W *tensor.RawTensor, fanIn int) {
	scale := math.Sqrt(1 / float64(fanIn))

	cpu.rngMu.Lock()
	defer cpu.rngMu.Unlock()

	switch W.DType() {
	case tensor.Float32:
		data := W.AsFloat32()
		for i := range data {
			data[i] = float32(cpu.rng.NormFloat64() * scale)
		}
	case tensor.Float64:
		data := W.AsFloat64()
		for i := range data {
			data[i] = cpu.rng.NormFloat64() * scale
		}
	}
}

// PositionEncode builds the (n, d) float32 sinusoid table
//
//	out[p, 2i] = sin(p / period^(2i/d)), out[p, 2i+1] = cos(p / period^(2i/d)).
func (cpu *CPUBackend) PositionEncode(n, d, period int) (*tensor.RawTensor, error) {
	if err := ops.CheckPositionArgs(n, d, period); err != nil {
		return nil, err
	}
	result := cpu.alloc("position_encode", tensor.Shape{n, d}, tensor.Float32)
	out := result.AsFloat32()

	freqs := make([]float64, d)
	for j := range freqs {
		i := j / 2
		freqs[j] = math.Pow(float64(period), float64(2*i)/float64(d))
	}
	for p := 0; p < n; p++ {
		row := out[p*d : (p+1)*d]
		for j := range row {
			angle := float64(p) / freqs[j]
			if j%2 == 0 {
				row[j] = float32(math.Sin(angle))
			} else {
				row[j] = float32(math.Cos(angle))
			}
		}
	}
	return result, nil
}
