package ocas

import (
	"cmp"
	"math"
	"slices"

	amath "github.com/wyfcoding/ocas/algorithm/math"
)

// breakpoint 是某个样本的铰链项在线段上由激活变为未激活（或反之）的位置。
type breakpoint struct {
	t    float64
	idx  int
	jump float64 // 越过该点后导数的增量 Cᵢ·|Bᵢ|
}

// sortBreakpoints 按位置升序排列，位置相同时按样本下标排列，保证结果确定。
func sortBreakpoints(bps []breakpoint) {
	slices.SortFunc(bps, func(a, b breakpoint) int {
		if c := cmp.Compare(a.t, b.t); c != 0 {
			return c
		}
		return cmp.Compare(a.idx, b.idx)
	})
}

// segment 描述 w(t) = (1−t)·w₀ + t·w₁ 上的正则化风险
//
//	F(t) = ½‖w(t)‖² + Σᵢ Cᵢ·max(0, 1 − mᵢ(t)),  mᵢ(t) = (1−t)·m0ᵢ + t·m1ᵢ
//
// 其中 m 为函数间隔 yᵢ·f(xᵢ)。F 在线段上是分段二次的凸函数。
type segment struct {
	sqNorm0 float64 // ‖w₀‖²
	dot01   float64 // ⟨w₀, w₁⟩
	sqNorm1 float64 // ‖w₁‖²
	m0      []float64
	m1      []float64
	cost    []float64
	bps     []breakpoint
}

// objective 直接计算 F(t)。
func (s *segment) objective(t float64) float64 {
	reg := 0.5 * amath.InterpolatedSqNorm(s.sqNorm0, s.dot01, s.sqNorm1, t)
	var risk float64
	for i, m0 := range s.m0 {
		if m := (1-t)*m0 + t*s.m1[i]; m < 1 {
			risk += s.cost[i] * (1 - m)
		}
	}
	return reg + risk
}

// margin 返回样本 i 在 t 处的函数间隔。
func (s *segment) margin(i int, t float64) float64 {
	return (1-t)*s.m0[i] + t*s.m1[i]
}

// minimize 返回 F 在 [0, 1] 上的精确最小点。
// 正则项贡献斜率 A0·t + B0；每个铰链项在断点处让导数跳升 Cᵢ·|Bᵢ|。
// 把 (0, 1) 内的断点排序后依次累加斜率，导数由负变为非负的位置即最小点。
func (s *segment) minimize() float64 {
	a0 := s.sqNorm1 - 2*s.dot01 + s.sqNorm0 // ‖w₁ − w₀‖²
	if a0 < 0 {
		a0 = 0
	}
	grad := s.dot01 - s.sqNorm0

	bps := s.bps[:0]
	for i, m0 := range s.m0 {
		ci := s.cost[i]
		slope := m0 - s.m1[i] // d/dt (1 − mᵢ(t))
		if ci == 0 || slope == 0 {
			continue
		}
		c := 1 - m0
		if c > 0 || (c == 0 && slope > 0) {
			grad += ci * slope
		}
		if tb := -c / slope; tb > 0 && tb < 1 {
			bps = append(bps, breakpoint{t: tb, idx: i, jump: ci * math.Abs(slope)})
		}
	}
	s.bps = bps

	if grad >= 0 {
		return 0
	}

	sortBreakpoints(bps)

	t := 0.0
	for k := 0; k < len(bps); {
		tk := bps[k].t
		// 光滑段 [t, tk) 上导数为 grad + A0·(τ − t)
		end := grad + a0*(tk-t)
		if end >= 0 {
			return clamp01(t - grad/a0)
		}
		grad, t = end, tk
		for ; k < len(bps) && bps[k].t == tk; k++ {
			grad += bps[k].jump
		}
		if grad >= 0 {
			return t
		}
	}

	if a0 == 0 {
		return 1
	}
	return clamp01(t - grad/a0)
}

func clamp01(t float64) float64 {
	switch {
	case t < 0 || math.IsNaN(t):
		return 0
	case t > 1:
		return 1
	default:
		return t
	}
}
