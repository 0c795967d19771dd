package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Source    SourceConfig    `yaml:"source" mapstructure:"source"`
	Harvest   HarvestConfig   `yaml:"harvest" mapstructure:"harvest"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai" mapstructure:"openai"`
	Verify    VerifyConfig    `yaml:"verify" mapstructure:"verify"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SourceConfig points at the tribunal listing service.
type SourceConfig struct {
	// LandingURL is the search landing page carrying the embedded access token.
	LandingURL string `yaml:"landing_url" mapstructure:"landing_url"`
	// RefreshURL is the paginated query endpoint.
	RefreshURL string `yaml:"refresh_url" mapstructure:"refresh_url"`
	// DisputesTemplate and EnforcementTemplate are the listing template
	// identifiers passed with each refresh call.
	DisputesTemplate    string `yaml:"disputes_template" mapstructure:"disputes_template"`
	EnforcementTemplate string `yaml:"enforcement_template" mapstructure:"enforcement_template"`
	UserAgent           string `yaml:"user_agent" mapstructure:"user_agent"`
}

// HarvestConfig controls harvester pacing and the job runner.
type HarvestConfig struct {
	PageDelayMS            int `yaml:"page_delay_ms" mapstructure:"page_delay_ms"`
	PageRetries            int `yaml:"page_retries" mapstructure:"page_retries"`
	MaxConsecutiveFailures int `yaml:"max_consecutive_failures" mapstructure:"max_consecutive_failures"`
	CheckpointPages        int `yaml:"checkpoint_pages" mapstructure:"checkpoint_pages"`
	CooldownSecs           int `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
	TimeoutSecs            int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// PageDelay returns the inter-page delay as a duration.
func (h HarvestConfig) PageDelay() time.Duration {
	return time.Duration(h.PageDelayMS) * time.Millisecond
}

// AnthropicConfig holds primary extraction model settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// OpenAIConfig holds arbitration model settings.
type OpenAIConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// VerifyConfig controls the enrichment verifier.
type VerifyConfig struct {
	BatchSize          int     `yaml:"batch_size" mapstructure:"batch_size"`
	Concurrency        int     `yaml:"concurrency" mapstructure:"concurrency"`
	HighValueThreshold float64 `yaml:"high_value_threshold" mapstructure:"high_value_threshold"`
	SumTolerance       float64 `yaml:"sum_tolerance" mapstructure:"sum_tolerance"`
	MinDocumentBytes   int     `yaml:"min_document_bytes" mapstructure:"min_document_bytes"`
	ArchiveBaseURL     string  `yaml:"archive_base_url" mapstructure:"archive_base_url"`
	// Auto triggers a bounded verifier pass after a completed harvest that
	// created new records.
	Auto bool `yaml:"auto" mapstructure:"auto"`
}

// ServerConfig configures the control API server.
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
	v.SetEnvPrefix("TRIBUNAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

// Default returns a configuration populated with built-in defaults only,
// used for scaffolding a starter config file.
func Default() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal defaults")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("source.user_agent", "tribunal-cli/1.0")
	v.SetDefault("harvest.page_delay_ms", 1500)
	v.SetDefault("harvest.page_retries", 3)
	v.SetDefault("harvest.max_consecutive_failures", 5)
	v.SetDefault("harvest.checkpoint_pages", 20)
	v.SetDefault("harvest.cooldown_secs", 5)
	v.SetDefault("harvest.timeout_secs", 30)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.max_tokens", 2048)
	v.SetDefault("verify.batch_size", 50)
	v.SetDefault("verify.concurrency", 5)
	v.SetDefault("verify.high_value_threshold", 5000)
	v.SetDefault("verify.sum_tolerance", 1.0)
	v.SetDefault("verify.min_document_bytes", 2048)
	v.SetDefault("verify.auto", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks that the configuration required for the given mode is
// present. Mode is "harvest", "verify", or "serve".
func (c *Config) Validate(mode string) error {
	if c.Store.DatabaseURL == "" && c.Store.Driver == "postgres" {
		return eris.New("config: store.database_url is required")
	}
	switch mode {
	case "harvest", "serve":
		if c.Source.LandingURL == "" {
			return eris.New("config: source.landing_url is required")
		}
		if c.Source.RefreshURL == "" {
			return eris.New("config: source.refresh_url is required")
		}
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
