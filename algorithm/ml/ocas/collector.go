package ocas

import (
	"strconv"

	"github.com/wyfcoding/ocas/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector 把训练过程导出为 Prometheus 指标。nil Collector 的所有方法均为空操作。
type Collector struct {
	iterations   *prometheus.CounterVec
	gap          *prometheus.GaugeVec
	primal       *prometheus.GaugeVec
	activeCuts   *prometheus.GaugeVec
	evictions    *prometheus.CounterVec
	qpIterations *prometheus.HistogramVec
	duration     *prometheus.HistogramVec
	runs         *prometheus.CounterVec
}

// NewCollector 在 m 的注册表上注册训练指标。
// 同一注册表上的多个 Collector 共享同一组指标向量，计数按 method 标签累加。
func NewCollector(m *metrics.Metrics) *Collector {
	return &Collector{
		iterations: m.NewCounterVec(prometheus.CounterOpts{
			Name: "ocas_iterations_total",
			Help: "Outer cutting-plane iterations executed",
		}, []string{"method"}),
		gap: m.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ocas_duality_gap",
			Help: "Primal minus dual objective after the latest iteration",
		}, []string{"method"}),
		primal: m.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ocas_primal_objective",
			Help: "Regularized risk at the best weight vector",
		}, []string{"method"}),
		activeCuts: m.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ocas_active_cuts",
			Help: "Cutting planes currently held in the buffer",
		}, []string{"method"}),
		evictions: m.NewCounterVec(prometheus.CounterOpts{
			Name: "ocas_cut_evictions_total",
			Help: "Cutting planes evicted because the buffer was full",
		}, []string{"method", "forced"}),
		qpIterations: m.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ocas_qp_iterations",
			Help:    "Inner QP iterations per outer iteration",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"method"}),
		duration: m.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ocas_train_duration_seconds",
			Help:    "Wall time of a training run",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		runs: m.NewCounterVec(prometheus.CounterOpts{
			Name: "ocas_train_runs_total",
			Help: "Training runs by exit status",
		}, []string{"method", "status"}),
	}
}

func (c *Collector) observeIteration(method Method, st *Stats, qpIters int) {
	if c == nil {
		return
	}
	m := method.String()
	c.iterations.WithLabelValues(m).Inc()
	c.gap.WithLabelValues(m).Set(st.Gap)
	c.primal.WithLabelValues(m).Set(st.PrimalObjective)
	c.activeCuts.WithLabelValues(m).Set(float64(st.Cuts))
	c.qpIterations.WithLabelValues(m).Observe(float64(qpIters))
}

func (c *Collector) observeEviction(method Method, forced bool) {
	if c == nil {
		return
	}
	c.evictions.WithLabelValues(method.String(), strconv.FormatBool(forced)).Inc()
}

func (c *Collector) observeRun(method Method, st *Stats) {
	if c == nil {
		return
	}
	m := method.String()
	c.duration.WithLabelValues(m).Observe(st.Duration.Seconds())
	c.runs.WithLabelValues(m, st.Status.String()).Inc()
}
