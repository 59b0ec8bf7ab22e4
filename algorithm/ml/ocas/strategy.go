package ocas

// stepper 决定一次外层迭代后最优点移动到线段上的哪个位置 tBest，
// 以及下一个割平面在哪个位置 tCut 上构造。线段的 t=0 端是当前最优点，t=1 端是割平面模型的解。
type stepper interface {
	step(seg *segment, primal0 float64) (tBest, tCut float64)
}

func newStepper(m Method, mu float64) stepper {
	if m == MethodBMRM {
		return bmrmStepper{}
	}
	return ocasStepper{mu: mu}
}

// ocasStepper 最优点取线搜索的精确最小点，割平面取在其与模型解之间稍靠后的位置。
type ocasStepper struct {
	mu float64
}

func (o ocasStepper) step(seg *segment, _ float64) (float64, float64) {
	t := seg.minimize()
	return t, t + (1-t)*o.mu
}

// bmrmStepper 割平面总在模型解处构造；最优点只在模型解更好时才移动过去。
type bmrmStepper struct{}

func (bmrmStepper) step(seg *segment, primal0 float64) (float64, float64) {
	if seg.objective(1) < primal0 {
		return 1, 1
	}
	return 0, 1
}
