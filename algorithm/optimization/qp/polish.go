package qp

import (
	"errors"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
)

const (
	// polishEvery 每隔多少次 SMO 步做一次支撑集求解。
	polishEvery = 50
	// polishMaxSupport 支撑集超过该规模时跳过，KKT 方程组的代价为 O(k³)。
	polishMaxSupport = 256
	// tau 二阶选择中非正曲率的替代值。
	tau = 1e-12
)

// polish 在扩展单纯形 x = (α, s), Σx = 1 上固定支撑集 S 解 KKT 方程组
//
//	[H_SS  −1] [x_S]   [b_S]
//	[ 1ᵀ    0] [ θ ] = [ 1 ]
//
// 解出现负分量时沿当前点到该解的方向走到第一个分量归零处，移出该分量后重解。
// 只有目标值不增时才原地写回 alpha 并返回新的松弛量。
func polish(h mat.Symmetric, b, alpha []float64, slack float64) (float64, bool) {
	n := len(alpha)
	x := make([]float64, n+1)
	copy(x, alpha)
	x[n] = slack

	support := make([]int, 0, n+1)
	for i, xi := range x {
		if xi > 0 {
			support = append(support, i)
		}
	}
	if len(support) < 2 || len(support) > polishMaxSupport {
		return slack, false
	}

	for {
		z, ok := solveKKT(h, b, support)
		if !ok {
			return slack, false
		}
		t, block := 1.0, -1
		for k, i := range support {
			if z[k] < 0 {
				if r := x[i] / (x[i] - z[k]); r < t {
					t, block = r, k
				}
			}
		}
		for k, i := range support {
			x[i] += t * (z[k] - x[i])
		}
		if block < 0 {
			break
		}
		x[support[block]] = 0
		support = slices.DeleteFunc(support, func(i int) bool { return x[i] <= 0 })
		if len(support) == 0 {
			return slack, false
		}
	}

	cand := make([]float64, n)
	var sum float64
	for i := range n {
		cand[i] = math.Max(0, x[i])
		sum += cand[i]
	}
	if sum > 1 {
		for i := range cand {
			cand[i] /= sum
		}
		sum = 1
	}
	if !(quadratic(h, b, cand) <= quadratic(h, b, alpha)) {
		return slack, false
	}
	copy(alpha, cand)
	return 1 - sum, true
}

// solveKKT 返回支撑集上的 x_S，做一步迭代精化以抵消病态带来的误差。
func solveKKT(h mat.Symmetric, b []float64, support []int) ([]float64, bool) {
	n, k := len(b), len(support)
	kkt := mat.NewDense(k+1, k+1, nil)
	rhs := mat.NewVecDense(k+1, nil)
	for r, i := range support {
		for c, j := range support {
			if i < n && j < n {
				kkt.Set(r, c, h.At(i, j))
			}
		}
		kkt.Set(r, k, -1)
		kkt.Set(k, r, 1)
		if i < n {
			rhs.SetVec(r, b[i])
		}
	}
	rhs.SetVec(k, 1)

	var lu mat.LU
	lu.Factorize(kkt)
	var z mat.VecDense
	if err := lu.SolveVecTo(&z, false, rhs); !usable(err) {
		return nil, false
	}
	var resid, dz mat.VecDense
	resid.MulVec(kkt, &z)
	resid.SubVec(rhs, &resid)
	if err := lu.SolveVecTo(&dz, false, &resid); usable(err) {
		z.AddVec(&z, &dz)
	}

	out := make([]float64, k)
	for r := range k {
		out[r] = z.AtVec(r)
		if !finite(out[r]) {
			return nil, false
		}
	}
	return out, true
}

// usable 接受有限条件数的 Condition 错误，结果是否可用最终由目标值判断。
func usable(err error) bool {
	if err == nil {
		return true
	}
	var cond mat.Condition
	return errors.As(err, &cond) && !math.IsInf(float64(cond), 1)
}

// quadratic 计算 ½αᵀHα − bᵀα，只遍历非零分量。
func quadratic(h mat.Symmetric, b, alpha []float64) float64 {
	var q float64
	for i, ai := range alpha {
		if ai == 0 {
			continue
		}
		q -= b[i] * ai
		for j, aj := range alpha {
			if aj != 0 {
				q += 0.5 * ai * h.At(i, j) * aj
			}
		}
	}
	return q
}
