package ocas

import (
	"github.com/wyfcoding/ocas/algorithm/ml/features"
	"github.com/wyfcoding/ocas/worker"
	"github.com/wyfcoding/ocas/xerrors"

	"gonum.org/v1/gonum/floats"
)

// Model 是训练得到的线性判别函数 f(x) = ⟨W, x⟩ + Bias。
type Model struct {
	W       []float64
	Bias    float64
	UseBias bool
}

// Dim 返回权重向量的维度。
func (m *Model) Dim() int { return len(m.W) }

// Score 返回特征集中第 i 个样本的判别值。
func (m *Model) Score(f features.DotFeatures, i int) float64 {
	s := f.Dot(i, m.W)
	if m.UseBias {
		s += m.Bias
	}
	return s
}

// ScoreDense 返回稠密样本 x 的判别值。
func (m *Model) ScoreDense(x []float64) (float64, error) {
	if len(x) != len(m.W) {
		return 0, xerrors.Derive(xerrors.ErrDimMismatch, "sample has %d features, model has %d", len(x), len(m.W))
	}
	s := floats.Dot(m.W, x)
	if m.UseBias {
		s += m.Bias
	}
	return s, nil
}

// Predict 返回 ±1 类别，判别值为 0 时归入正类。
func (m *Model) Predict(x []float64) (float64, error) {
	s, err := m.ScoreDense(x)
	if err != nil {
		return 0, err
	}
	if s >= 0 {
		return 1, nil
	}
	return -1, nil
}

// Apply 计算特征集中全部样本的判别值。
func (m *Model) Apply(f features.DotFeatures, workers int) ([]float64, error) {
	if f.Dim() != len(m.W) {
		return nil, xerrors.Derive(xerrors.ErrDimMismatch, "features have %d dims, model has %d", f.Dim(), len(m.W))
	}
	out := make([]float64, f.NumVectors())
	err := worker.ForEachChunk(len(out), workers, func(r worker.Range) {
		for i := r.Lo; i < r.Hi; i++ {
			out[i] = m.Score(f, i)
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Margins 返回每个样本的函数间隔 yᵢ·f(xᵢ)。
func (m *Model) Margins(f features.DotFeatures, labels features.Labels, workers int) ([]float64, error) {
	if err := features.ValidateLabels(labels, f.NumVectors()); err != nil {
		return nil, err
	}
	out, err := m.Apply(f, workers)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i] *= labels.Label(i)
	}
	return out, nil
}
