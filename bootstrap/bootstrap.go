// Package bootstrap 负责训练进程的通用基础设施初始化：配置、日志、指标与追踪。
package bootstrap

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/wyfcoding/ocas/config"
	"github.com/wyfcoding/ocas/logging"
	"github.com/wyfcoding/ocas/metrics"
	"github.com/wyfcoding/ocas/tracing"
)

// Bootstrapper 处理通用基础设施的初始化
type Bootstrapper struct {
	ServiceName string
	Version     string
	Config      config.Config
	Logger      *logging.Logger
	Metrics     *metrics.Metrics

	cleanups []func()
}

// New 创建一个新的引导器实例
func New(serviceName, version string) *Bootstrapper {
	return &Bootstrapper{
		ServiceName: serviceName,
		Version:     version,
		Config:      config.Default(),
	}
}

// Initialize 加载配置文件并按其中的 [log] 段初始化全局日志。
// configPath 为空时使用默认配置。
func (b *Bootstrapper) Initialize(configPath string) error {
	if configPath != "" {
		if err := config.Load(configPath, &b.Config); err != nil {
			logging.Default().Error("failed to load config", "path", configPath, "error", err)
			return err
		}
	}
	if b.Config.Version == "" {
		b.Config.Version = b.Version
	}

	lc := b.Config.Log
	logging.InitLogger(logging.Config{
		Service:    b.ServiceName,
		Module:     "trainer",
		Level:      lc.Level,
		File:       lc.File,
		MaxSize:    lc.MaxSize,
		MaxBackups: lc.MaxBackups,
		MaxAge:     lc.MaxAge,
		Compress:   lc.Compress,
		Stdout:     lc.Stdout,
	})
	// 全局日志只初始化一次，级别以当前配置为准
	logging.SetLevel(lc.Level)
	b.Logger = logging.Default()
	return nil
}

// SetupMetrics 创建指标注册表，并在配置启用时暴露 HTTP 抓取端点。
func (b *Bootstrapper) SetupMetrics() *metrics.Metrics {
	b.Metrics = metrics.NewMetrics(b.ServiceName)
	b.Metrics.RegisterBuildInfo(b.ServiceName, b.Config.Version)
	if b.Config.Metrics.Enabled && b.Config.Metrics.Port != "" {
		b.cleanups = append(b.cleanups, b.Metrics.ExposeHttp(b.Config.Metrics.Port))
		b.logger().Info("metrics endpoint exposed", "port", b.Config.Metrics.Port)
	}
	return b.Metrics
}

// SetupTracing 初始化 OpenTelemetry 追踪器
func (b *Bootstrapper) SetupTracing(ctx context.Context) {
	cfg := b.Config.Tracing
	if cfg.ServiceName == "" {
		cfg.ServiceName = b.ServiceName
	}
	shutdown, err := tracing.InitTracer(ctx, cfg)
	if err != nil {
		b.logger().Error("failed to init tracer", "error", err)
		return
	}
	b.cleanups = append(b.cleanups, func() {
		if err := shutdown(context.Background()); err != nil {
			b.logger().Error("failed to shutdown tracer", "error", err)
		}
	})
}

// SignalContext 返回在收到 SIGINT/SIGTERM 时取消的上下文。
// 求解器在下一次外层迭代开始时观察到取消，并保留目前为止的最优解。
func (b *Bootstrapper) SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// Close 按注册的逆序执行清理。
func (b *Bootstrapper) Close() {
	for i := len(b.cleanups) - 1; i >= 0; i-- {
		b.cleanups[i]()
	}
	b.cleanups = nil
}

func (b *Bootstrapper) logger() *logging.Logger {
	if b.Logger == nil {
		return logging.Default()
	}
	return b.Logger
}
