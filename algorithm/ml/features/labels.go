package features

import "github.com/wyfcoding/ocas/xerrors"

// Labels 是二分类标签契约，Label 只返回 -1 或 +1。
type Labels interface {
	Len() int
	Label(i int) float64
}

// LabelSlice 是最简单的标签容器。
type LabelSlice []float64

func (l LabelSlice) Len() int            { return len(l) }
func (l LabelSlice) Label(i int) float64 { return l[i] }

// ValidateLabels 检查标签数量与样本数一致且取值为 ±1。
func ValidateLabels(labels Labels, n int) error {
	if labels.Len() != n {
		return xerrors.Derive(xerrors.ErrDimMismatch, "%d labels for %d examples", labels.Len(), n)
	}
	for i := range n {
		if y := labels.Label(i); y != 1 && y != -1 {
			return xerrors.Derive(xerrors.ErrInvalidLabel, "label[%d] = %v", i, y)
		}
	}
	return nil
}
