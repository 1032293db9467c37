package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Upstream  UpstreamConfig  `yaml:"upstream" mapstructure:"upstream"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Paginate  PaginateConfig  `yaml:"paginate" mapstructure:"paginate"`
	Reconcile ReconcileConfig `yaml:"reconcile" mapstructure:"reconcile"`
	Circuit   CircuitConfig   `yaml:"circuit" mapstructure:"circuit"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	PitStops  PitStopsConfig  `yaml:"pitstops" mapstructure:"pitstops"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// UpstreamConfig points at the Ergast-compatible API.
type UpstreamConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	PageSize    int     `yaml:"page_size" mapstructure:"page_size"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst       int     `yaml:"burst" mapstructure:"burst"`
}

// RetryConfig configures backoff for throttled and transient failures.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
	BaseDelayMs int `yaml:"base_delay_ms" mapstructure:"base_delay_ms"`
}

// PaginateConfig configures the pause between consecutive pages.
type PaginateConfig struct {
	PacingMs int `yaml:"pacing_ms" mapstructure:"pacing_ms"`
}

// Pacing returns the inter-page delay.
func (p PaginateConfig) Pacing() time.Duration {
	return time.Duration(p.PacingMs) * time.Millisecond
}

// ReconcileConfig bounds background retry sweeps over missing rounds.
type ReconcileConfig struct {
	SweepIntervalSecs int `yaml:"sweep_interval_secs" mapstructure:"sweep_interval_secs"`
	MaxSweeps         int `yaml:"max_sweeps" mapstructure:"max_sweeps"`
	DeadlineSecs      int `yaml:"deadline_secs" mapstructure:"deadline_secs"`
	Concurrency       int `yaml:"concurrency" mapstructure:"concurrency"`
}

// CircuitConfig configures the upstream circuit breaker.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// CacheConfig selects the session cache backend.
type CacheConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

// PitStopsConfig configures pit stop aggregation.
type PitStopsConfig struct {
	Concurrency  int `yaml:"concurrency" mapstructure:"concurrency"`
	DeadlineSecs int `yaml:"deadline_secs" mapstructure:"deadline_secs"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
	// JobRetentionSecs is how long a finished season job stays queryable.
	JobRetentionSecs int `yaml:"job_retention_secs" mapstructure:"job_retention_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PADDOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("upstream.base_url", "https://api.jolpi.ca/ergast/f1")
	v.SetDefault("upstream.page_size", 100)
	v.SetDefault("upstream.user_agent", "paddock/1.0")
	v.SetDefault("upstream.timeout_secs", 30)
	v.SetDefault("upstream.rate_per_sec", 4.0)
	v.SetDefault("upstream.burst", 4)
	v.SetDefault("retry.max_attempts", 5)
	v.SetDefault("retry.base_delay_ms", 600)
	v.SetDefault("paginate.pacing_ms", 500)
	v.SetDefault("reconcile.sweep_interval_secs", 5)
	v.SetDefault("reconcile.max_sweeps", 60)
	v.SetDefault("reconcile.deadline_secs", 600)
	v.SetDefault("reconcile.concurrency", 1)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 30)
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.dsn", "")
	v.SetDefault("pitstops.concurrency", 2)
	v.SetDefault("pitstops.deadline_secs", 300)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.job_retention_secs", 900)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is the command name;
// "serve" additionally requires a usable port.
func (c *Config) Validate(mode string) error {
	var problems []string
	if c.Upstream.BaseURL == "" {
		problems = append(problems, "upstream.base_url is required")
	}
	if c.Upstream.PageSize < 1 || c.Upstream.PageSize > 100 {
		problems = append(problems, fmt.Sprintf("upstream.page_size must be 1..100, got %d", c.Upstream.PageSize))
	}
	if c.Retry.MaxAttempts < 1 {
		problems = append(problems, "retry.max_attempts must be at least 1")
	}
	if c.Retry.BaseDelayMs < 0 || c.Paginate.PacingMs < 0 {
		problems = append(problems, "delays must not be negative")
	}
	switch c.Cache.Driver {
	case "memory", "sqlite":
	default:
		problems = append(problems, fmt.Sprintf("cache.driver %q must be memory or sqlite", c.Cache.Driver))
	}
	if mode == "serve" && (c.Server.Port < 1 || c.Server.Port > 65535) {
		problems = append(problems, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
