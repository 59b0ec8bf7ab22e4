package xerrors

var (
	// ErrEmptyData 输入数据为空。
	ErrEmptyData = New(ErrInvalidArg, 400001, "empty data", "training set must contain at least one example", nil)
	// ErrInvalidInput 输入格式错误。
	ErrInvalidInput = New(ErrInvalidArg, 400002, "invalid input", "check your input parameters", nil)
	// ErrInvalidConfig 超参数配置错误，在任何迭代开始前返回。
	ErrInvalidConfig = New(ErrInvalidArg, 400005, "invalid config", "solver hyperparameters are out of range", nil)
	// ErrDimMismatch 维度不匹配.
	ErrDimMismatch = New(ErrInvalidArg, 400007, "dimension mismatch", "matrix or vector dimensions do not match", nil)
	// ErrInvalidLabel 标签必须为 ±1。
	ErrInvalidLabel = New(ErrInvalidArg, 400019, "invalid label", "binary labels must be -1 or +1", nil)
	// ErrNumericalFailure QP 子问题无法给出有效的对偶点。
	ErrNumericalFailure = New(ErrNumerical, 500003, "numerical failure", "qp subsolver produced a non-finite or infeasible point", nil)
	// ErrNonConvergence 迭代预算耗尽而对偶间隙仍未达标。
	ErrNonConvergence = New(ErrNotConverged, 500004, "non convergence", "iteration budget exhausted before the duality gap tolerance was met", nil)
	// ErrCanceled 训练被调用方取消。
	ErrCanceled = New(ErrAborted, 499001, "training canceled", "stop signal observed between outer iterations", nil)
)
