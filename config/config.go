// Package config 提供了统一的配置加载与管理能力.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/wyfcoding/ocas/logging"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config 全局顶级配置结构.
type Config struct {
	Version string        `mapstructure:"version" toml:"version"`
	Solver  SolverConfig  `mapstructure:"solver"  toml:"solver"`
	Log     LogConfig     `mapstructure:"log"     toml:"log"`
	Metrics MetricsConfig `mapstructure:"metrics" toml:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing" toml:"tracing"`
}

// SolverConfig 定义割平面求解器的超参数，训练开始后只读.
type SolverConfig struct {
	Method      string  `mapstructure:"method"       toml:"method"       validate:"omitempty,oneof=ocas bmrm"`
	C1          float64 `mapstructure:"c1"           toml:"c1"           validate:"gte=0"`
	C2          float64 `mapstructure:"c2"           toml:"c2"           validate:"gte=0"`
	Epsilon     float64 `mapstructure:"epsilon"      toml:"epsilon"      validate:"gte=0"`
	TolAbs      float64 `mapstructure:"tol_abs"      toml:"tol_abs"      validate:"gte=0"`
	Mu          float64 `mapstructure:"mu"           toml:"mu"           validate:"gte=0,lt=1"`
	QPTolRel    float64 `mapstructure:"qp_tol_rel"   toml:"qp_tol_rel"   validate:"gte=0"`
	BufSize     int     `mapstructure:"bufsize"      toml:"bufsize"      validate:"gte=1"`
	MaxIter     int     `mapstructure:"max_iter"     toml:"max_iter"     validate:"gte=0"`
	QPMaxIter   int     `mapstructure:"qp_max_iter"  toml:"qp_max_iter"  validate:"gte=0"`
	Parallelism int     `mapstructure:"parallelism"  toml:"parallelism"  validate:"gte=0"`
	UseBias     bool    `mapstructure:"use_bias"     toml:"use_bias"`
}

// LogConfig 定义日志输出、级别与切割策略.
type LogConfig struct {
	Level      string `mapstructure:"level"       toml:"level"       validate:"omitempty,oneof=debug info warn error"`
	File       string `mapstructure:"file"        toml:"file"`        // 日志文件路径。
	MaxSize    int    `mapstructure:"max_size"    toml:"max_size"`    // 单个文件最大大小 (MB)。
	MaxBackups int    `mapstructure:"max_backups" toml:"max_backups"` // 最大备份数。
	MaxAge     int    `mapstructure:"max_age"     toml:"max_age"`     // 最大保留天数。
	Compress   bool   `mapstructure:"compress"    toml:"compress"`    // 是否启用压缩。
	Stdout     bool   `mapstructure:"stdout"      toml:"stdout"`      // 写文件时是否同时输出到 stdout。
}

// MetricsConfig 普罗米修斯监控指标暴露配置.
type MetricsConfig struct {
	Port    string `mapstructure:"port"    toml:"port"`
	Enabled bool   `mapstructure:"enabled" toml:"enabled"`
}

// TracingConfig 链路追踪（OpenTelemetry）配置.
type TracingConfig struct {
	ServiceName  string  `mapstructure:"service_name"  toml:"service_name"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint" toml:"otlp_endpoint"`
	SamplerRatio float64 `mapstructure:"sampler_ratio" toml:"sampler_ratio" validate:"gte=0,lte=1"`
	Enabled      bool    `mapstructure:"enabled"       toml:"enabled"`
}

// Default 返回一份可直接使用的默认配置.
func Default() Config {
	return Config{
		Solver: SolverConfig{
			Method:      "ocas",
			C1:          1,
			C2:          1,
			Epsilon:     1e-3,
			Mu:          0.1,
			QPTolRel:    1e-9,
			BufSize:     3000,
			MaxIter:     100000,
			QPMaxIter:   100000,
			Parallelism: 1,
			UseBias:     true,
		},
		Log:     LogConfig{Level: "info"},
		Tracing: TracingConfig{ServiceName: "ocas", SamplerRatio: 1},
	}
}

var (
	vInstance = viper.New()
	validate  = validator.New()
	hookMu    sync.Mutex
	onReload  []func(*Config)
)

// RegisterReloadHook 注册配置热更新回调。
// 超参数在一次训练内不可变，回调拿到的新配置只用于下一次训练。
func RegisterReloadHook(hook func(*Config)) {
	if hook == nil {
		return
	}
	hookMu.Lock()
	defer hookMu.Unlock()
	onReload = append(onReload, hook)
}

// Validate 对配置执行 struct tag 校验.
func Validate(conf *Config) error {
	if err := validate.Struct(conf); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Load 读取 TOML 配置，允许 OCAS_ 前缀的环境变量覆盖，并在文件变更时热更新日志级别.
func Load(path string, conf *Config) error {
	*conf = Default()

	vInstance.SetConfigFile(path)
	vInstance.SetConfigType("toml")

	vInstance.SetEnvPrefix("OCAS")
	vInstance.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vInstance.AutomaticEnv()

	if err := vInstance.ReadInConfig(); err != nil {
		return fmt.Errorf("read config error: %w", err)
	}

	if err := vInstance.Unmarshal(conf); err != nil {
		return fmt.Errorf("unmarshal config error: %w", err)
	}

	if err := Validate(conf); err != nil {
		return err
	}

	vInstance.OnConfigChange(func(event fsnotify.Event) {
		slog.Info("detecting config change", "file", event.Name)
		const debounceTimeout = 500 * time.Millisecond
		time.Sleep(debounceTimeout)

		next := Default()
		if err := vInstance.Unmarshal(&next); err != nil {
			slog.Error("reload config unmarshal failed", "error", err)
			return
		}
		if err := Validate(&next); err != nil {
			slog.Error("reload config validation failed", "error", err)
			return
		}

		logging.SetLevel(next.Log.Level)
		slog.Info("config hot-reloaded and validated successfully", "log_level", next.Log.Level)

		hookMu.Lock()
		hooks := append([]func(*Config){}, onReload...)
		hookMu.Unlock()
		for _, hook := range hooks {
			hook(&next)
		}
	})
	vInstance.WatchConfig()

	return nil
}

// GetViper 返回底层的 Viper 实例.
func GetViper() *viper.Viper {
	return vInstance
}
