// Package features 定义求解器依赖的样本访问契约以及稠密、稀疏两种实现。
// 求解器只通过 Dot 与 AddScaled 触达样本，不假设底层是内存中的稠密矩阵。
package features

import (
	"github.com/wyfcoding/ocas/algorithm/math"
	"github.com/wyfcoding/ocas/xerrors"

	"gonum.org/v1/gonum/floats"
)

// DotFeatures 是按样本下标访问特征向量的最小契约。
// 实现必须允许多个 goroutine 并发读取不同（或相同）的样本。
type DotFeatures interface {
	// NumVectors 返回样本个数。
	NumVectors() int
	// Dim 返回特征维度。
	Dim() int
	// Dot 返回 ⟨x_i, w⟩，len(w) == Dim()。
	Dot(i int, w []float64) float64
	// AddScaled 执行 acc += alpha * x_i，len(acc) == Dim()。
	AddScaled(i int, alpha float64, acc []float64)
}

// DenseFeatures 以行优先的连续内存保存样本。
type DenseFeatures struct {
	data []float64
	n    int
	dim  int
}

// NewDenseFeatures 从二维切片复制构造稠密样本集。
func NewDenseFeatures(rows [][]float64) (*DenseFeatures, error) {
	if len(rows) == 0 {
		return nil, xerrors.ErrEmptyData
	}
	dim := len(rows[0])
	data := make([]float64, 0, len(rows)*dim)
	for i, row := range rows {
		if len(row) != dim {
			return nil, xerrors.Derive(xerrors.ErrDimMismatch, "row %d has %d features, expected %d", i, len(row), dim)
		}
		data = append(data, row...)
	}
	return &DenseFeatures{data: data, n: len(rows), dim: dim}, nil
}

func (f *DenseFeatures) NumVectors() int { return f.n }
func (f *DenseFeatures) Dim() int        { return f.dim }

// Row 返回第 i 个样本的只读视图。
func (f *DenseFeatures) Row(i int) []float64 {
	return f.data[i*f.dim : (i+1)*f.dim : (i+1)*f.dim]
}

func (f *DenseFeatures) Dot(i int, w []float64) float64 {
	return floats.Dot(f.Row(i), w)
}

func (f *DenseFeatures) AddScaled(i int, alpha float64, acc []float64) {
	floats.AddScaled(acc, alpha, f.Row(i))
}

// Node 是一个 (下标, 取值) 特征项，下标从 0 开始。
type Node struct {
	Index int
	Value float64
}

// SparseFeatures 每个样本保存为一个 SparseVector。
type SparseFeatures struct {
	rows []*math.SparseVector
	dim  int
}

// NewSparseFeatures 构造稀疏样本集，所有下标必须小于 dim。
func NewSparseFeatures(dim int, rows []*math.SparseVector) (*SparseFeatures, error) {
	if len(rows) == 0 {
		return nil, xerrors.ErrEmptyData
	}
	for i, r := range rows {
		if r == nil {
			return nil, xerrors.Derive(xerrors.ErrInvalidInput, "row %d is nil", i)
		}
		if r.MaxIndex() >= dim {
			return nil, xerrors.Derive(xerrors.ErrDimMismatch, "row %d references feature %d but dim is %d", i, r.MaxIndex(), dim)
		}
	}
	return &SparseFeatures{rows: rows, dim: dim}, nil
}

// NewSparseFeaturesFromNodes 从按下标递增排列的 Node 列表构造样本集。
func NewSparseFeaturesFromNodes(dim int, nodes [][]Node) (*SparseFeatures, error) {
	rows := make([]*math.SparseVector, len(nodes))
	for i, ns := range nodes {
		idx := make([]int, len(ns))
		val := make([]float64, len(ns))
		for k, nd := range ns {
			idx[k] = nd.Index
			val[k] = nd.Value
		}
		sv, err := math.NewSparseVector(idx, val)
		if err != nil {
			return nil, err
		}
		rows[i] = sv
	}
	return NewSparseFeatures(dim, rows)
}

func (f *SparseFeatures) NumVectors() int { return len(f.rows) }
func (f *SparseFeatures) Dim() int        { return f.dim }

func (f *SparseFeatures) Dot(i int, w []float64) float64 {
	return f.rows[i].Dot(w)
}

func (f *SparseFeatures) AddScaled(i int, alpha float64, acc []float64) {
	f.rows[i].AddTo(alpha, acc)
}
