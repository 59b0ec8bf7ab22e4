package ocas

import (
	amath "github.com/wyfcoding/ocas/algorithm/math"

	"gonum.org/v1/gonum/mat"
)

// Cut 是风险函数的一个支撑超平面 R(w) ≥ Offset − ⟨Vec, w⟩ − Bias·b，创建后不可变。
type Cut struct {
	Vec    *amath.SparseVector // Σ Cᵢ·yᵢ·xᵢ
	Bias   float64             // Σ Cᵢ·yᵢ，未启用偏置时为 0
	Offset float64             // Σ Cᵢ
	Size   int                 // 产生该割平面的样本数
	Iter   int                 // 创建时所在的外层迭代
}

// Eviction 描述一次容量驱逐。
type Eviction struct {
	Cut    *Cut
	Alpha  float64
	Forced bool // 被逐出的割平面仍带有正的对偶系数
}

const minGramStride = 16

// CutStore 是容量有界的割平面缓冲区，同时维护 Gram 矩阵 H_ij = ⟨a_i, a_j⟩。
// 割平面按插入顺序排列；CutStore 实现 mat.Symmetric，可直接交给 QP 子问题。
type CutStore struct {
	capacity int
	useBias  bool

	cuts   []*Cut
	alpha  []float64
	offset []float64

	gram   []float64 // 行优先，行距为 stride
	stride int

	evictions int
	forced    int
}

// NewCutStore 创建容量为 capacity 的缓冲区，Gram 矩阵按需倍增直至容量上限。
func NewCutStore(capacity int, useBias bool) *CutStore {
	return &CutStore{capacity: capacity, useBias: useBias}
}

func (s *CutStore) Len() int   { return len(s.cuts) }
func (s *CutStore) Cap() int   { return s.capacity }
func (s *CutStore) Full() bool { return len(s.cuts) >= s.capacity }

// Cut 返回第 j 个割平面。
func (s *CutStore) Cut(j int) *Cut { return s.cuts[j] }

// Alpha 返回与割平面一一对应的对偶系数，QP 子问题在其上原地热启动。
func (s *CutStore) Alpha() []float64 { return s.alpha }

// Offsets 返回 b 向量。
func (s *CutStore) Offsets() []float64 { return s.offset }

// Evictions 返回累计驱逐次数及其中被强制驱逐（α > 0）的次数。
func (s *CutStore) Evictions() (total, forced int) { return s.evictions, s.forced }

// Dims 实现 mat.Matrix。
func (s *CutStore) Dims() (r, c int) { return len(s.cuts), len(s.cuts) }

// At 实现 mat.Matrix。
func (s *CutStore) At(i, j int) float64 {
	if uint(i) >= uint(len(s.cuts)) || uint(j) >= uint(len(s.cuts)) {
		panic(mat.ErrIndexOutOfRange)
	}
	return s.gram[i*s.stride+j]
}

// T 实现 mat.Matrix，对称矩阵的转置是其自身。
func (s *CutStore) T() mat.Matrix { return s }

// SymmetricDim 实现 mat.Symmetric。
func (s *CutStore) SymmetricDim() int { return len(s.cuts) }

// Add 追加一个割平面。dense 是该割平面的稠密形式（长度为特征维度），
// 用于以 O(nnz) 的代价计算它与已有割平面的内积。
// 缓冲区已满时先逐出对偶系数最小的割平面（相同时逐出最旧的）。
func (s *CutStore) Add(c *Cut, dense []float64) (Eviction, bool) {
	var ev Eviction
	evicted := false
	if s.Full() {
		ev = s.evict()
		evicted = true
	}
	s.grow(len(s.cuts) + 1)

	n := len(s.cuts)
	for j, other := range s.cuts {
		h := other.Vec.Dot(dense)
		if s.useBias {
			h += other.Bias * c.Bias
		}
		s.gram[j*s.stride+n] = h
		s.gram[n*s.stride+j] = h
	}
	diag := c.Vec.SquaredNorm()
	if s.useBias {
		diag += c.Bias * c.Bias
	}
	s.gram[n*s.stride+n] = diag

	s.cuts = append(s.cuts, c)
	s.alpha = append(s.alpha, 0)
	s.offset = append(s.offset, c.Offset)
	return ev, evicted
}

// Compose 计算 w = Σ α_j·a_j，返回偏置分量 Σ α_j·Bias_j。
func (s *CutStore) Compose(w []float64) float64 {
	clear(w)
	var bias float64
	for j, c := range s.cuts {
		a := s.alpha[j]
		if a == 0 {
			continue
		}
		c.Vec.AddTo(a, w)
		bias += a * c.Bias
	}
	return bias
}

// NNZ 返回缓冲区中全部割平面的非零项总数。
func (s *CutStore) NNZ() int {
	total := 0
	for _, c := range s.cuts {
		total += c.Vec.NNZ()
	}
	return total
}

func (s *CutStore) evict() Eviction {
	victim := 0
	for j := 1; j < len(s.cuts); j++ {
		if s.alpha[j] < s.alpha[victim] {
			victim = j
		}
	}
	ev := Eviction{Cut: s.cuts[victim], Alpha: s.alpha[victim], Forced: s.alpha[victim] > 0}
	s.remove(victim)
	s.evictions++
	if ev.Forced {
		s.forced++
	}
	return ev
}

// remove 删除第 pos 个割平面及其在 H 中的行列，其余割平面保持原有顺序。
func (s *CutStore) remove(pos int) {
	n := len(s.cuts)
	// 目标下标总不大于源下标，按行优先顺序原地搬移是安全的
	for i := 0; i < n-1; i++ {
		si := i
		if i >= pos {
			si++
		}
		for j := 0; j < n-1; j++ {
			sj := j
			if j >= pos {
				sj++
			}
			s.gram[i*s.stride+j] = s.gram[si*s.stride+sj]
		}
	}
	s.cuts = append(s.cuts[:pos], s.cuts[pos+1:]...)
	s.alpha = append(s.alpha[:pos], s.alpha[pos+1:]...)
	s.offset = append(s.offset[:pos], s.offset[pos+1:]...)
}

func (s *CutStore) grow(n int) {
	if n <= s.stride {
		return
	}
	stride := max(2*s.stride, minGramStride)
	stride = min(max(stride, n), s.capacity)
	gram := make([]float64, stride*stride)
	for i := range len(s.cuts) {
		copy(gram[i*stride:i*stride+len(s.cuts)], s.gram[i*s.stride:i*s.stride+len(s.cuts)])
	}
	s.gram = gram
	s.stride = stride
}
