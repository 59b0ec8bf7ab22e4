package math

import "gonum.org/v1/gonum/floats"

// Interpolate 原地计算 dst = (1-t)*dst + t*src.
func Interpolate(dst, src []float64, t float64) {
	switch t {
	case 0:
		return
	case 1:
		copy(dst, src)
		return
	}
	floats.Scale(1-t, dst)
	floats.AddScaled(dst, t, src)
}

// InterpolatedSqNorm 由端点范数与交叉项推出 ‖(1-t)a + t·b‖²，避免再扫一遍稠密向量.
func InterpolatedSqNorm(sqA, dotAB, sqB, t float64) float64 {
	s := 1 - t
	return s*s*sqA + 2*s*t*dotAB + t*t*sqB
}

// SqNorm 返回 ‖x‖².
func SqNorm(x []float64) float64 {
	return floats.Dot(x, x)
}
