package math

import (
	"math"

	"github.com/wyfcoding/ocas/xerrors"
)

// SparseVector 按索引严格递增存储的稀疏向量.
// 索引与取值在构造时绑定为等长的两段切片，之后不再暴露可写引用。
type SparseVector struct {
	indices []int
	values  []float64
}

// NewSparseVector 校验并构造稀疏向量.
// indices 必须非负且严格递增，长度与 values 一致；零值会被保留。
func NewSparseVector(indices []int, values []float64) (*SparseVector, error) {
	if len(indices) != len(values) {
		return nil, xerrors.Derive(xerrors.ErrDimMismatch, "sparse vector has %d indices and %d values", len(indices), len(values))
	}
	for k, idx := range indices {
		if idx < 0 || (k > 0 && idx <= indices[k-1]) {
			return nil, xerrors.Derive(xerrors.ErrInvalidInput, "sparse indices must be non-negative and strictly increasing (position %d)", k)
		}
		if math.IsNaN(values[k]) || math.IsInf(values[k], 0) {
			return nil, xerrors.Derive(xerrors.ErrInvalidInput, "non-finite value at index %d", idx)
		}
	}
	return &SparseVector{
		indices: append([]int(nil), indices...),
		values:  append([]float64(nil), values...),
	}, nil
}

// SparseFromDense 压缩稠密向量，只保留非零项.
func SparseFromDense(dense []float64) *SparseVector {
	nnz := 0
	for _, v := range dense {
		if v != 0 {
			nnz++
		}
	}
	sv := &SparseVector{
		indices: make([]int, 0, nnz),
		values:  make([]float64, 0, nnz),
	}
	for i, v := range dense {
		if v != 0 {
			sv.indices = append(sv.indices, i)
			sv.values = append(sv.values, v)
		}
	}
	return sv
}

// NNZ 返回非零项个数.
func (v *SparseVector) NNZ() int { return len(v.indices) }

// At 返回第 k 个存储项的索引与取值.
func (v *SparseVector) At(k int) (int, float64) { return v.indices[k], v.values[k] }

// MaxIndex 返回最大索引，空向量返回 -1.
func (v *SparseVector) MaxIndex() int {
	if len(v.indices) == 0 {
		return -1
	}
	return v.indices[len(v.indices)-1]
}

// Dot 计算与稠密向量的内积.
func (v *SparseVector) Dot(dense []float64) float64 {
	var sum float64
	for k, idx := range v.indices {
		sum += v.values[k] * dense[idx]
	}
	return sum
}

// AddTo 执行 dense += scale * v.
func (v *SparseVector) AddTo(scale float64, dense []float64) {
	if scale == 0 {
		return
	}
	for k, idx := range v.indices {
		dense[idx] += scale * v.values[k]
	}
}

// SquaredNorm 返回 ‖v‖².
func (v *SparseVector) SquaredNorm() float64 {
	var sum float64
	for _, x := range v.values {
		sum += x * x
	}
	return sum
}

// DotSparse 计算两个稀疏向量的内积（有序归并）.
func (v *SparseVector) DotSparse(o *SparseVector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(v.indices) && j < len(o.indices) {
		switch {
		case v.indices[i] == o.indices[j]:
			sum += v.values[i] * o.values[j]
			i++
			j++
		case v.indices[i] < o.indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}
