// Package qp 实现割平面求解器所需的小规模稠密二次规划子问题:
//
//	min  ½αᵀHα − bᵀα
//	s.t. α ≥ 0, Σα ≤ 1
//
// 不等式约束通过一个梯度恒为 0 的松弛坐标转为单纯形上的等式约束，
// 每步按二阶信息选取工作对并做解析的一维最小化（SMO 风格），支持热启动。
// 病态 Gram 矩阵上坐标下降收敛很慢，因此每隔若干步在当前支撑集上
// 解一次 KKT 方程组（见 polish.go），只在目标值不变差时采纳。
package qp

import (
	"math"

	"github.com/wyfcoding/ocas/xerrors"

	"gonum.org/v1/gonum/mat"
)

// ExitFlag 描述子问题的结束原因。
type ExitFlag int

const (
	// ExitConverged KKT 间隙达到容差。
	ExitConverged ExitFlag = iota
	// ExitMaxIter 达到迭代上限，返回当前可行点。
	ExitMaxIter
)

func (f ExitFlag) String() string {
	if f == ExitMaxIter {
		return "max_iter"
	}
	return "converged"
}

// Options 子问题的停止条件。
type Options struct {
	MaxIter int
	TolAbs  float64
	TolRel  float64
}

// DefaultOptions 返回默认停止条件。
func DefaultOptions() Options {
	return Options{MaxIter: 100000, TolAbs: 1e-14, TolRel: 1e-9}
}

// Result 子问题的求解结果，α 本身通过入参原地返回。
type Result struct {
	Objective  float64 // ½αᵀHα − bᵀα
	Gap        float64 // Σαᵢgᵢ − min(0, minⱼgⱼ)，即 Frank-Wolfe 对偶间隙
	Slack      float64 // 1 − Σα
	Iterations int
	Exit       ExitFlag
}

// SolveSimplex 以 alpha 为初值（热启动）求解子问题并原地写回最优 alpha。
// H 必须是半正定的 Gram 矩阵；对角线出现负数或非有限值时返回 ErrNumericalFailure。
func SolveSimplex(h mat.Symmetric, b, alpha []float64, opts Options) (Result, error) {
	n := h.SymmetricDim()
	if len(b) != n || len(alpha) != n {
		return Result{}, xerrors.Derive(xerrors.ErrDimMismatch, "qp with %d columns got %d offsets and %d coefficients", n, len(b), len(alpha))
	}
	if opts.MaxIter <= 0 {
		opts.MaxIter = DefaultOptions().MaxIter
	}
	if n == 0 {
		return Result{Slack: 1}, nil
	}

	for i := range n {
		d := h.At(i, i)
		if !finite(d) || d < 0 || !finite(b[i]) {
			return Result{}, xerrors.Derive(xerrors.ErrNumericalFailure, "column %d: H_ii=%v b_i=%v", i, d, b[i])
		}
	}

	// 把热启动点投影回可行域
	var sum float64
	for i, a := range alpha {
		switch {
		case math.IsNaN(a):
			return Result{}, xerrors.Derive(xerrors.ErrNumericalFailure, "warm start alpha[%d] is NaN", i)
		case a < 0:
			alpha[i] = 0
		default:
			sum += a
		}
	}
	if sum > 1 {
		for i := range alpha {
			alpha[i] /= sum
		}
		sum = 1
	}
	slack := 1 - sum

	g := make([]float64, n)
	gradient(h, b, alpha, g)

	res := Result{Exit: ExitConverged}
	for iter := 0; ; iter++ {
		// 停止判据使用一阶量：gmin = min(0, minⱼgⱼ)，下标 n 表示松弛坐标
		gmin := 0.0
		var ag, ab float64
		for i := range n {
			gmin = math.Min(gmin, g[i])
			ag += alpha[i] * g[i]
			ab += alpha[i] * b[i]
		}
		res.Objective = 0.5 * (ag - ab)
		res.Gap = ag - gmin
		res.Iterations = iter
		if !finite(res.Objective) || !finite(res.Gap) {
			return res, xerrors.Derive(xerrors.ErrNumericalFailure, "objective became non-finite after %d iterations", iter)
		}
		if res.Gap <= opts.TolAbs || res.Gap <= opts.TolRel*math.Abs(res.Objective) {
			break
		}
		if iter >= opts.MaxIter {
			res.Exit = ExitMaxIter
			break
		}

		u, v, gu, gv := selectPair(h, g, alpha, slack)
		if u < 0 || v < 0 {
			break
		}

		var curv, maxStep float64
		switch {
		case u == n:
			curv, maxStep = h.At(v, v), slack
		case v == n:
			curv, maxStep = h.At(u, u), alpha[u]
		default:
			curv, maxStep = h.At(u, u)+h.At(v, v)-2*h.At(u, v), alpha[u]
		}
		step := maxStep
		if curv > 0 {
			step = math.Min(maxStep, (gu-gv)/curv)
		}
		if step <= 0 {
			break
		}

		// 步长取到上界时把 u 精确置零，避免残留 1e-17 量级的支撑
		switch {
		case u == n && step == maxStep:
			slack = 0
		case u == n:
			slack -= step
		case step == maxStep:
			alpha[u] = 0
		default:
			alpha[u] -= step
		}
		if v == n {
			slack += step
		} else {
			alpha[v] += step
		}
		for k := range n {
			var delta float64
			if v < n {
				delta += h.At(k, v)
			}
			if u < n {
				delta -= h.At(k, u)
			}
			g[k] += step * delta
		}

		if (iter+1)%polishEvery == 0 {
			if s, ok := polish(h, b, alpha, slack); ok {
				slack = s
				gradient(h, b, alpha, g)
			}
		}
	}
	res.Slack = slack
	return res, nil
}

// selectPair 按 libsvm 的二阶规则选取工作对：u 为可减小坐标中梯度最大者，
// v 在所有 gᵥ < gᵤ 的坐标中使 −(gᵤ−gᵥ)²/(Hᵤᵤ+Hᵥᵥ−2Hᵤᵥ) 最小。
// 松弛坐标（下标 n）梯度为 0，在 H 中对应全零的行和列。
// 不存在可改进的工作对时返回 u < 0 或 v < 0。
func selectPair(h mat.Symmetric, g, alpha []float64, slack float64) (u, v int, gu, gv float64) {
	n := len(g)
	u, gu = -1, math.Inf(-1)
	for i := range n {
		if alpha[i] > 0 && g[i] > gu {
			u, gu = i, g[i]
		}
	}
	if slack > 0 && gu < 0 {
		u, gu = n, 0
	}
	if u < 0 {
		return -1, -1, 0, 0
	}

	var huu float64
	if u < n {
		huu = h.At(u, u)
	}
	v, best := -1, math.Inf(1)
	for j := 0; j <= n; j++ {
		if j == u {
			continue
		}
		var gj, quad float64
		switch {
		case j == n:
			quad = huu
		case u == n:
			gj, quad = g[j], h.At(j, j)
		default:
			gj, quad = g[j], huu+h.At(j, j)-2*h.At(u, j)
		}
		diff := gu - gj
		if diff <= 0 {
			continue
		}
		if quad <= 0 {
			quad = tau
		}
		if obj := -diff * diff / quad; obj < best {
			v, gv, best = j, gj, obj
		}
	}
	return u, v, gu, gv
}

// gradient 计算 g = Hα − b。
func gradient(h mat.Symmetric, b, alpha, g []float64) {
	for i := range g {
		g[i] = -b[i]
	}
	for j, a := range alpha {
		if a == 0 {
			continue
		}
		for i := range g {
			g[i] += a * h.At(i, j)
		}
	}
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
