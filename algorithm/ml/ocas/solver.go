// Package ocas 实现线性 SVM 的割平面训练（OCAS 与 BMRM 两种构造规则）。
//
// 求解的原问题为
//
//	min_w  F(w) = ½‖w‖² + Σᵢ Cᵢ·max(0, 1 − yᵢ·(⟨w, xᵢ⟩ + b))
//
// 其中正类 Cᵢ = C1，负类 Cᵢ = C2；启用偏置时 b 作为常数特征的权重一并正则化。
// 每次外层迭代向缓冲区加入一个割平面，在缩减的对偶问题上求出模型解，
// 再按所选方法把当前最优点移向模型解，直到对偶间隙满足容差。
package ocas

import (
	"context"
	"log/slog"
	"math"
	"time"

	amath "github.com/wyfcoding/ocas/algorithm/math"
	"github.com/wyfcoding/ocas/algorithm/ml/features"
	"github.com/wyfcoding/ocas/algorithm/optimization/qp"
	"github.com/wyfcoding/ocas/logging"
	"github.com/wyfcoding/ocas/tracing"
	"github.com/wyfcoding/ocas/worker"
	"github.com/wyfcoding/ocas/xerrors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gonum.org/v1/gonum/floats"
)

// Status 是求解器状态机的当前状态。
type Status int

const (
	StatusInit Status = iota
	StatusIterating
	StatusConverged       // 相对对偶间隙 ≤ Epsilon·|Q_P|
	StatusConvergedAbs    // 绝对对偶间隙 ≤ TolAbs
	StatusBufferExhausted // 缓冲区已满，强制驱逐后目标值不再下降
	StatusMaxIter         // 迭代上限
	StatusCanceled
	StatusFailed // QP 子问题数值失败
)

func (s Status) String() string {
	switch s {
	case StatusInit:
		return "init"
	case StatusIterating:
		return "iterating"
	case StatusConverged:
		return "converged"
	case StatusConvergedAbs:
		return "converged_abs"
	case StatusBufferExhausted:
		return "buffer_exhausted"
	case StatusMaxIter:
		return "max_iter"
	case StatusCanceled:
		return "canceled"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Converged 判断状态是否为收敛。
func (s Status) Converged() bool {
	return s == StatusConverged || s == StatusConvergedAbs
}

// Stats 汇总一次训练的进度。
type Stats struct {
	Status          Status
	Iterations      int
	PrimalObjective float64 // Q_P，当前最优点处的正则化风险
	DualObjective   float64 // Q_D，缩减对偶问题的目标值（下界）
	Gap             float64
	Cuts            int
	CutNNZ          int
	Evictions       int
	ForcedEvictions int
	QPIterations    int
	LastStep        float64
	Duration        time.Duration
}

// Solver 持有一次训练的全部状态；所有状态只由外层循环修改。
type Solver struct {
	opts      Options
	feats     features.DotFeatures
	logger    *slog.Logger
	collector *Collector
	stepper   stepper

	n    int
	dim  int
	y    []float64
	cost []float64

	w       []float64 // 当前最优权重向量
	bias    float64
	sqNormW float64 // ‖w‖² + b²

	cand     []float64 // 割平面模型的解
	candBias float64
	candOut  []float64
	acc      []float64 // 新割平面的稠密累加缓冲

	out    *OutputCache
	store  *CutStore
	seg    segment
	cutIdx []int

	stats Stats
}

// Option 定义求解器的可选依赖。
type Option func(*Solver)

// WithLogger 指定日志记录器。
func WithLogger(l *slog.Logger) Option {
	return func(s *Solver) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCollector 注入 Prometheus 指标采集器。
func WithCollector(c *Collector) Option {
	return func(s *Solver) {
		s.collector = c
	}
}

// NewSolver 校验超参数与数据并分配全部工作缓冲。配置错误在此处返回，不会进入迭代。
func NewSolver(feats features.DotFeatures, labels features.Labels, opts Options, extra ...Option) (*Solver, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if feats == nil || feats.NumVectors() == 0 {
		return nil, xerrors.ErrEmptyData
	}
	n, dim := feats.NumVectors(), feats.Dim()
	if err := features.ValidateLabels(labels, n); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	s := &Solver{
		opts:    opts,
		feats:   feats,
		logger:  logging.Default().Logger,
		stepper: newStepper(opts.Method, opts.Mu),
		n:       n,
		dim:     dim,
		y:       make([]float64, n),
		cost:    make([]float64, n),
		w:       make([]float64, dim),
		cand:    make([]float64, dim),
		candOut: make([]float64, n),
		acc:     make([]float64, dim),
		out:     NewOutputCache(feats, opts.UseBias, opts.Parallelism),
		cutIdx:  make([]int, 0, n),
	}
	for i := range n {
		s.y[i] = labels.Label(i)
		if s.y[i] > 0 {
			s.cost[i] = opts.C1
		} else {
			s.cost[i] = opts.C2
		}
	}
	s.seg = segment{
		m0:   make([]float64, n),
		m1:   make([]float64, n),
		cost: s.cost,
	}
	for _, o := range extra {
		o(s)
	}
	return s, nil
}

// Options 返回生效的超参数。
func (s *Solver) Options() Options { return s.opts }

// Stats 返回最近一次训练的统计信息。
func (s *Solver) Stats() Stats { return s.stats }

// Status 返回状态机的当前状态。
func (s *Solver) Status() Status { return s.stats.Status }

// Model 返回当前最优权重向量的副本。训练未收敛时同样可用。
func (s *Solver) Model() *Model {
	return &Model{
		W:       append([]float64(nil), s.w...),
		Bias:    s.bias,
		UseBias: s.opts.UseBias,
	}
}

// Train 运行割平面迭代，当且仅当满足对偶间隙容差时返回 true。
// 迭代上限或缓冲区耗尽返回 (false, nil)；QP 数值失败与取消返回相应错误。
// 任何情况下 Model 都给出目前为止的最优解。
// ctx 只在每次外层迭代开始时检查。
func (s *Solver) Train(ctx context.Context) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "ocas.Train", trace.WithAttributes(
		attribute.String("method", s.opts.Method.String()),
		attribute.Int("examples", s.n),
		attribute.Int("dim", s.dim),
		attribute.Int("bufsize", s.opts.BufSize),
	))
	defer span.End()

	s.reset()
	s.logger.InfoContext(ctx, "ocas training started",
		"method", s.opts.Method.String(),
		"examples", s.n,
		"dim", s.dim,
		"c1", s.opts.C1,
		"c2", s.opts.C2,
		"epsilon", s.opts.Epsilon,
		"bufsize", s.opts.BufSize,
		"use_bias", s.opts.UseBias,
	)

	start := time.Now()
	err := s.run(ctx)
	s.stats.Duration = time.Since(start)
	s.collector.observeRun(s.opts.Method, &s.stats)

	tracing.AddTag(ctx, "status", s.stats.Status.String())
	tracing.AddTag(ctx, "iterations", s.stats.Iterations)
	tracing.AddTag(ctx, "gap", s.stats.Gap)

	attrs := []any{
		"status", s.stats.Status.String(),
		"iterations", s.stats.Iterations,
		"primal", s.stats.PrimalObjective,
		"dual", s.stats.DualObjective,
		"gap", s.stats.Gap,
		"cuts", s.stats.Cuts,
		"duration", s.stats.Duration,
	}
	if err != nil {
		tracing.SetError(ctx, err)
		s.logger.ErrorContext(ctx, "ocas training aborted", append(attrs, "error", err)...)
		return false, err
	}
	if !s.stats.Status.Converged() {
		s.logger.WarnContext(ctx, "ocas training stopped before convergence", attrs...)
		return false, nil
	}
	s.logger.InfoContext(ctx, "ocas training converged", attrs...)
	return true, nil
}

// reset 回到 INIT：w = 0，输出缓存清零，缓冲区清空。
func (s *Solver) reset() {
	clear(s.w)
	s.bias = 0
	s.sqNormW = 0
	s.out.Reset()
	s.store = NewCutStore(s.opts.BufSize, s.opts.UseBias)
	s.stats = Stats{Status: StatusInit}
}

func (s *Solver) run(ctx context.Context) error {
	s.stats.Status = StatusIterating

	// w = 0 时所有样本的间隔都是 0，全部进入第一个割平面
	s.cutIdx = s.cutIdx[:0]
	for i := range s.n {
		s.cutIdx = append(s.cutIdx, i)
	}
	primal := s.primal()
	s.stats.PrimalObjective = primal

	qpOpts := qp.Options{MaxIter: s.opts.QPMaxIter, TolAbs: qp.DefaultOptions().TolAbs, TolRel: s.opts.QPTolRel}

	for iter := 1; ; iter++ {
		if err := ctx.Err(); err != nil {
			s.stats.Status = StatusCanceled
			return xerrors.Derive(xerrors.ErrCanceled, "stopped before iteration %d", iter).WithCause(err)
		}

		ev, evicted, err := s.addNewCut(ctx, iter)
		if err != nil {
			return s.fail(err)
		}
		if evicted {
			s.collector.observeEviction(s.opts.Method, ev.Forced)
			if ev.Forced {
				s.logger.WarnContext(ctx, "evicted an active cutting plane",
					"iter", iter, "alpha", ev.Alpha, "cut_iter", ev.Cut.Iter, "bufsize", s.opts.BufSize)
			}
		}

		res, err := qp.SolveSimplex(s.store, s.store.Offsets(), s.store.Alpha(), qpOpts)
		if err != nil {
			return s.fail(err)
		}
		if res.Exit == qp.ExitMaxIter {
			s.logger.WarnContext(ctx, "qp subsolver hit its iteration cap", "iter", iter, "qp_gap", res.Gap)
		}
		dual := -res.Objective

		sqNormCand, dp := s.computeW()
		if err := s.out.ComputeInto(s.cand, s.candBias, s.candOut); err != nil {
			return s.fail(err)
		}

		s.prepareSegment(sqNormCand, dp)
		tBest, tCut := s.stepper.step(&s.seg, primal)
		s.selectCut(tCut)
		s.updateW(tBest)

		prevPrimal := primal
		primal = s.primal()
		gap := primal - dual

		total, forced := s.store.Evictions()
		s.stats.Iterations = iter
		s.stats.PrimalObjective = primal
		s.stats.DualObjective = dual
		s.stats.Gap = gap
		s.stats.Cuts = s.store.Len()
		s.stats.CutNNZ = s.store.NNZ()
		s.stats.Evictions = total
		s.stats.ForcedEvictions = forced
		s.stats.QPIterations += res.Iterations
		s.stats.LastStep = tBest
		s.collector.observeIteration(s.opts.Method, &s.stats, res.Iterations)

		s.logger.DebugContext(ctx, "ocas iteration",
			"iter", iter,
			"primal", primal,
			"dual", dual,
			"gap", gap,
			"cuts", s.store.Len(),
			"t", tBest,
			"next_cut_size", len(s.cutIdx),
			"qp_iters", res.Iterations,
		)

		switch {
		case s.opts.Epsilon > 0 && gap <= s.opts.Epsilon*math.Abs(primal):
			s.stats.Status = StatusConverged
			return nil
		case s.opts.TolAbs > 0 && gap <= s.opts.TolAbs:
			s.stats.Status = StatusConvergedAbs
			return nil
		case evicted && ev.Forced && primal >= prevPrimal:
			s.stats.Status = StatusBufferExhausted
			return nil
		case iter >= s.opts.MaxIter:
			s.stats.Status = StatusMaxIter
			return nil
		}
	}
}

func (s *Solver) fail(err error) error {
	s.stats.Status = StatusFailed
	return err
}

// partialCut 是一个样本区间对新割平面的贡献。
type partialCut struct {
	acc    []float64
	bias   float64
	offset float64
}

// addNewCut 由 cutIdx 中的样本构造割平面 a = Σ Cᵢ·yᵢ·xᵢ, b = Σ Cᵢ 并放入缓冲区。
// 空割平面（没有样本违反间隔）不携带任何信息，直接丢弃。
func (s *Solver) addNewCut(ctx context.Context, iter int) (Eviction, bool, error) {
	if len(s.cutIdx) == 0 {
		return Eviction{}, false, nil
	}

	var bias, offset float64
	clear(s.acc)
	if s.opts.Parallelism <= 1 {
		for _, i := range s.cutIdx {
			ci := s.cost[i]
			s.feats.AddScaled(i, ci*s.y[i], s.acc)
			bias += ci * s.y[i]
			offset += ci
		}
	} else {
		parts, err := worker.MapChunks(ctx, len(s.cutIdx), s.opts.Parallelism, func(_ context.Context, r worker.Range) (partialCut, error) {
			p := partialCut{acc: make([]float64, s.dim)}
			for _, i := range s.cutIdx[r.Lo:r.Hi] {
				ci := s.cost[i]
				s.feats.AddScaled(i, ci*s.y[i], p.acc)
				p.bias += ci * s.y[i]
				p.offset += ci
			}
			return p, nil
		})
		if err != nil {
			return Eviction{}, false, err
		}
		// 按区间顺序归并，保证与样本切分一致的确定结果
		for _, p := range parts {
			floats.Add(s.acc, p.acc)
			bias += p.bias
			offset += p.offset
		}
	}

	if !s.opts.UseBias {
		bias = 0
	}
	vec := amath.SparseFromDense(s.acc)
	if offset == 0 && vec.NNZ() == 0 && bias == 0 {
		return Eviction{}, false, nil
	}

	cut := &Cut{Vec: vec, Bias: bias, Offset: offset, Size: len(s.cutIdx), Iter: iter}
	ev, evicted := s.store.Add(cut, s.acc)
	return ev, evicted, nil
}

// computeW 由对偶系数重建割平面模型的解 w_cand = Σ α_j·a_j，
// 返回 ‖w_cand‖² 以及 ⟨w, w_cand⟩（均含偏置分量）。
func (s *Solver) computeW() (sqNormCand, dp float64) {
	s.candBias = s.store.Compose(s.cand)
	sqNormCand = amath.SqNorm(s.cand)
	dp = floats.Dot(s.w, s.cand)
	if s.opts.UseBias {
		sqNormCand += s.candBias * s.candBias
		dp += s.bias * s.candBias
	}
	return sqNormCand, dp
}

// prepareSegment 写入线段两端的函数间隔。
func (s *Solver) prepareSegment(sqNormCand, dp float64) {
	s.seg.sqNorm0 = s.sqNormW
	s.seg.dot01 = dp
	s.seg.sqNorm1 = sqNormCand
	scores := s.out.Scores()
	for i := range s.n {
		s.seg.m0[i] = s.y[i] * scores[i]
		s.seg.m1[i] = s.y[i] * s.candOut[i]
	}
}

// selectCut 收集在 t 处违反间隔（yᵢ·f(xᵢ) ≤ 1）的样本。
func (s *Solver) selectCut(t float64) {
	s.cutIdx = s.cutIdx[:0]
	for i := range s.n {
		if s.seg.margin(i, t) <= 1 {
			s.cutIdx = append(s.cutIdx, i)
		}
	}
}

// updateW 把最优点移动到 (1−t)·w + t·w_cand，并同步更新输出缓存。
func (s *Solver) updateW(t float64) {
	amath.Interpolate(s.w, s.cand, t)
	s.bias = (1-t)*s.bias + t*s.candBias
	s.out.Interpolate(s.candOut, t)

	s.sqNormW = amath.SqNorm(s.w)
	if s.opts.UseBias {
		s.sqNormW += s.bias * s.bias
	} else {
		s.bias = 0
	}
}

// primal 计算当前最优点处的 Q_P。
func (s *Solver) primal() float64 {
	var risk float64
	for i, f := range s.out.Scores() {
		if m := s.y[i] * f; m < 1 {
			risk += s.cost[i] * (1 - m)
		}
	}
	return 0.5*s.sqNormW + risk
}
