package ocas

import (
	"math"
	"strings"

	"github.com/wyfcoding/ocas/config"
	"github.com/wyfcoding/ocas/xerrors"
)

// Method 选择新割平面的构造规则。
type Method int

const (
	// MethodOCAS 在当前最优点与割平面模型解之间做精确线搜索，并在线段上稍远处取割平面。
	MethodOCAS Method = iota
	// MethodBMRM 直接以割平面模型解为下一迭代点（经典 bundle 方法）。
	MethodBMRM
)

func (m Method) String() string {
	switch m {
	case MethodOCAS:
		return "ocas"
	case MethodBMRM:
		return "bmrm"
	default:
		return "unknown"
	}
}

// ParseMethod 解析配置中的方法名，空串按 ocas 处理。
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ocas":
		return MethodOCAS, nil
	case "bmrm":
		return MethodBMRM, nil
	default:
		return 0, xerrors.Derive(xerrors.ErrInvalidConfig, "unknown method %q", s)
	}
}

const defaultMaxIter = 100000

// Options 求解器超参数，训练开始后只读。
type Options struct {
	C1          float64 // 正类样本的代价
	C2          float64 // 负类样本的代价
	Epsilon     float64 // 相对对偶间隙容差，0 表示关闭（此时必须设置 MaxIter）
	TolAbs      float64 // 绝对对偶间隙容差，0 表示关闭
	UseBias     bool
	BufSize     int // 割平面缓冲区容量
	MaxIter     int // 外层迭代上限，0 表示默认值
	Method      Method
	Parallelism int     // 输出计算与割平面累加的并行度
	QPMaxIter   int     // QP 子问题迭代上限
	QPTolRel    float64 // QP 子问题相对容差
	Mu          float64 // OCAS 割平面取点偏移，t₂ = t + (1−t)·Mu
}

// DefaultOptions 返回默认超参数。
func DefaultOptions() Options {
	return Options{
		C1:          1,
		C2:          1,
		Epsilon:     1e-3,
		UseBias:     true,
		BufSize:     3000,
		MaxIter:     defaultMaxIter,
		Method:      MethodOCAS,
		Parallelism: 1,
		QPMaxIter:   100000,
		QPTolRel:    1e-9,
		Mu:          0.1,
	}
}

// FromConfig 把配置文件中的求解器段转换为 Options 并校验。
func FromConfig(cfg config.SolverConfig) (Options, error) {
	method, err := ParseMethod(cfg.Method)
	if err != nil {
		return Options{}, err
	}
	opts := Options{
		C1:          cfg.C1,
		C2:          cfg.C2,
		Epsilon:     cfg.Epsilon,
		TolAbs:      cfg.TolAbs,
		UseBias:     cfg.UseBias,
		BufSize:     cfg.BufSize,
		MaxIter:     cfg.MaxIter,
		Method:      method,
		Parallelism: cfg.Parallelism,
		QPMaxIter:   cfg.QPMaxIter,
		QPTolRel:    cfg.QPTolRel,
		Mu:          cfg.Mu,
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// Validate 在任何迭代开始之前检查超参数。
func (o Options) Validate() error {
	switch {
	case !nonNegative(o.C1) || !nonNegative(o.C2):
		return xerrors.Derive(xerrors.ErrInvalidConfig, "C1=%v C2=%v must be finite and >= 0", o.C1, o.C2)
	case o.C1 == 0 && o.C2 == 0:
		return xerrors.Derive(xerrors.ErrInvalidConfig, "at least one of C1, C2 must be positive")
	case !nonNegative(o.Epsilon) || !nonNegative(o.TolAbs):
		return xerrors.Derive(xerrors.ErrInvalidConfig, "epsilon=%v tol_abs=%v must be finite and >= 0", o.Epsilon, o.TolAbs)
	case o.Epsilon == 0 && o.TolAbs == 0 && o.MaxIter == 0:
		return xerrors.Derive(xerrors.ErrInvalidConfig, "epsilon=0 disables the gap criterion and requires an explicit max_iter")
	case o.BufSize < 1:
		return xerrors.Derive(xerrors.ErrInvalidConfig, "bufsize=%d must be >= 1", o.BufSize)
	case o.MaxIter < 0 || o.QPMaxIter < 0 || o.Parallelism < 0:
		return xerrors.Derive(xerrors.ErrInvalidConfig, "max_iter, qp_max_iter and parallelism must be >= 0")
	case !nonNegative(o.QPTolRel):
		return xerrors.Derive(xerrors.ErrInvalidConfig, "qp_tol_rel=%v must be finite and >= 0", o.QPTolRel)
	case !nonNegative(o.Mu) || o.Mu >= 1:
		return xerrors.Derive(xerrors.ErrInvalidConfig, "mu=%v must lie in [0, 1)", o.Mu)
	case o.Method != MethodOCAS && o.Method != MethodBMRM:
		return xerrors.Derive(xerrors.ErrInvalidConfig, "unknown method %d", int(o.Method))
	}
	return nil
}

// withDefaults 填充取 0 表示默认值的字段。
func (o Options) withDefaults() Options {
	if o.MaxIter == 0 {
		o.MaxIter = defaultMaxIter
	}
	if o.Parallelism == 0 {
		o.Parallelism = 1
	}
	return o
}

func nonNegative(x float64) bool {
	return x >= 0 && !math.IsInf(x, 1)
}
