package cpu

import (
	"github.com/born-ml/kernels/internal/ops"
	"github.com/born-ml/kernels/internal/tensor"
)

// ScatterAdd adds inputs[i] into out[ids[i]] in place. Rows hit by duplicate
// ids accumulate every contribution.
func (cpu *CPUBackend) ScatterAdd(out, ids, inputs *tensor.RawTensor) error {
	if err := ops.CheckFloat("scatter_add", out, inputs); err != nil {
		return err
	}
	idx, _, width, err := ops.CheckScatter(out, ids, inputs)
	if err != nil {
		return err
	}
	if err := inplace("scatter_add", out); err != nil {
		return err
	}

	src := inputs.Contiguous()
	switch out.DType() {
	case tensor.Float32:
		scatterAdd(out.AsFloat32(), src.AsFloat32(), idx, width)
	case tensor.Float64:
		scatterAdd(out.AsFloat64(), src.AsFloat64(), idx, width)
	}
	return nil
}

// scatterAdd runs sequentially; parallel rows could race on duplicate ids.
func scatterAdd[T tensor.Float](dst, src []T, ids []int32, width int) {
	for i, id := range ids {
		row := dst[int(id)*width : (int(id)+1)*width]
		in := src[i*width : (i+1)*width]
		for c := range row {
			row[c] += in[c]
		}
	}
}
