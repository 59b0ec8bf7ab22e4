package ocas

import (
	"github.com/wyfcoding/ocas/algorithm/ml/features"
	"github.com/wyfcoding/ocas/worker"
)

// OutputCache 缓存当前权重向量在全部样本上的输出 f(xᵢ) = ⟨w, xᵢ⟩ + b。
// 每个样本的输出相互独立，按样本区间切分后并行计算。
type OutputCache struct {
	feats   features.DotFeatures
	useBias bool
	workers int
	scores  []float64
}

// NewOutputCache 创建输出缓存，初始对应 w = 0、b = 0。
func NewOutputCache(feats features.DotFeatures, useBias bool, workers int) *OutputCache {
	return &OutputCache{
		feats:   feats,
		useBias: useBias,
		workers: workers,
		scores:  make([]float64, feats.NumVectors()),
	}
}

// Scores 返回缓存的输出，调用方不得修改。
func (o *OutputCache) Scores() []float64 { return o.scores }

// Reset 让缓存重新对应 w = 0。
func (o *OutputCache) Reset() { clear(o.scores) }

// ComputeInto 把 (w, bias) 的输出写入 dst，不触碰缓存本身。
func (o *OutputCache) ComputeInto(w []float64, bias float64, dst []float64) error {
	if !o.useBias {
		bias = 0
	}
	return worker.ForEachChunk(len(dst), o.workers, func(r worker.Range) {
		for i := r.Lo; i < r.Hi; i++ {
			dst[i] = o.feats.Dot(i, w) + bias
		}
	})
}

// Interpolate 在权重向量移动到 (1−t)·w + t·w_cand 时同步更新缓存，
// cand 为 w_cand 上的输出。输出关于 w 是线性的，因此无需重新扫描样本。
func (o *OutputCache) Interpolate(cand []float64, t float64) {
	switch t {
	case 0:
		return
	case 1:
		copy(o.scores, cand)
		return
	}
	s := 1 - t
	for i, c := range cand {
		o.scores[i] = s*o.scores[i] + t*c
	}
}
