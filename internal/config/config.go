package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Browserless BrowserlessConfig `yaml:"browserless" mapstructure:"browserless"`
	Perplexity  PerplexityConfig  `yaml:"perplexity" mapstructure:"perplexity"`
	Anthropic   AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	Render      RenderConfig      `yaml:"render" mapstructure:"render"`
	Discovery   DiscoveryConfig   `yaml:"discovery" mapstructure:"discovery"`
	Pipeline    PipelineConfig    `yaml:"pipeline" mapstructure:"pipeline"`
	Queue       QueueConfig       `yaml:"queue" mapstructure:"queue"`
	Monitoring  MonitoringConfig  `yaml:"monitoring" mapstructure:"monitoring"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// BrowserlessConfig holds the headless-render API settings.
type BrowserlessConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PerplexityConfig holds the discovery search API settings.
type PerplexityConfig struct {
	Key      string  `yaml:"key" mapstructure:"key"`
	BaseURL  string  `yaml:"base_url" mapstructure:"base_url"`
	Model    string  `yaml:"model" mapstructure:"model"`
	RatePerS float64 `yaml:"rate_per_s" mapstructure:"rate_per_s"`
}

// AnthropicConfig holds the semantic validator API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// RenderConfig configures the renderer stage.
type RenderConfig struct {
	TimeoutSecs   int  `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxConcurrent int  `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	Screenshots   bool `yaml:"screenshots" mapstructure:"screenshots"`
}

// DiscoveryConfig configures the discovery service and geo gating.
type DiscoveryConfig struct {
	SupportedCountries   []string `yaml:"supported_countries" mapstructure:"supported_countries"`
	CountryConfidenceMin float64  `yaml:"country_confidence_min" mapstructure:"country_confidence_min"`
	DomainListPath       string   `yaml:"domain_list_path" mapstructure:"domain_list_path"`
	TimeoutSecs          int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// PipelineConfig configures orchestrator routing thresholds.
type PipelineConfig struct {
	// ReviewQualityThreshold is the renderer quality score above which a
	// content mismatch routes to human review instead of auto-rediscovery.
	ReviewQualityThreshold int `yaml:"review_quality_threshold" mapstructure:"review_quality_threshold"`
}

// QueueConfig configures the Temporal task queue.
type QueueConfig struct {
	Address     string `yaml:"address" mapstructure:"address"`
	Namespace   string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue   string `yaml:"task_queue" mapstructure:"task_queue"`
	MaxAttempts int    `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// MonitoringConfig configures the staleness checker.
type MonitoringConfig struct {
	CheckIntervalSecs int    `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	StaleAfterMins    int    `yaml:"stale_after_mins" mapstructure:"stale_after_mins"`
	AutoReset         bool   `yaml:"auto_reset" mapstructure:"auto_reset"`
	WebhookURL        string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("SITECHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "sitecheck.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("browserless.base_url", "https://production-sfo.browserless.io")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("perplexity.rate_per_s", 0.5)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("render.timeout_secs", 45)
	v.SetDefault("render.max_concurrent", 5)
	v.SetDefault("render.screenshots", false)
	v.SetDefault("discovery.supported_countries", []string{"US", "CA", "GB", "AU", "NZ", "IE"})
	v.SetDefault("discovery.country_confidence_min", 0.7)
	v.SetDefault("discovery.timeout_secs", 30)
	v.SetDefault("pipeline.review_quality_threshold", 30)
	v.SetDefault("queue.address", "localhost:7233")
	v.SetDefault("queue.namespace", "default")
	v.SetDefault("queue.task_queue", "sitecheck")
	v.SetDefault("queue.max_attempts", 4)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.stale_after_mins", 60)
	v.SetDefault("monitoring.auto_reset", false)

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
