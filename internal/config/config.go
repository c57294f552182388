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
	Storage    StorageConfig    `yaml:"storage" mapstructure:"storage"`
	Lock       LockConfig       `yaml:"lock" mapstructure:"lock"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit" mapstructure:"rate_limit"`
	Enrich     EnrichConfig     `yaml:"enrich" mapstructure:"enrich"`
	SkipTrace  SkipTraceConfig  `yaml:"skiptrace" mapstructure:"skiptrace"`
	Telnyx     TelnyxConfig     `yaml:"telnyx" mapstructure:"telnyx"`
	Settings   SettingsConfig   `yaml:"settings" mapstructure:"settings"`
	Jobs       JobsConfig       `yaml:"jobs" mapstructure:"jobs"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Resilience ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StorageConfig roots the durable file store.
type StorageConfig struct {
	Root string `yaml:"root" mapstructure:"root"`
}

// LockConfig tunes lock staleness and polling.
type LockConfig struct {
	StaleAfterSecs int `yaml:"stale_after_secs" mapstructure:"stale_after_secs"`
	PollIntervalMs int `yaml:"poll_interval_ms" mapstructure:"poll_interval_ms"`
	TimeoutSecs    int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// RateLimitConfig spaces skip-trace admissions.
type RateLimitConfig struct {
	BaseDelayMs   int `yaml:"base_delay_ms" mapstructure:"base_delay_ms"`
	BackoffStepMs int `yaml:"backoff_step_ms" mapstructure:"backoff_step_ms"`
	MaxBackoffMs  int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// EnrichConfig controls per-lead pacing and step timeouts.
type EnrichConfig struct {
	InterLeadDelayMs  int      `yaml:"inter_lead_delay_ms" mapstructure:"inter_lead_delay_ms"`
	SearchTimeoutSecs int      `yaml:"search_timeout_secs" mapstructure:"search_timeout_secs"`
	DetailTimeoutSecs int      `yaml:"detail_timeout_secs" mapstructure:"detail_timeout_secs"`
	JunkCarriers      []string `yaml:"junk_carriers" mapstructure:"junk_carriers"`
}

// SkipTraceConfig holds skip-trace API credentials.
type SkipTraceConfig struct {
	Key     string  `yaml:"key" mapstructure:"key"`
	Host    string  `yaml:"host" mapstructure:"host"`
	BaseURL string  `yaml:"base_url" mapstructure:"base_url"`
	RPS     float64 `yaml:"rps" mapstructure:"rps"`
}

// TelnyxConfig holds Telnyx number lookup credentials.
type TelnyxConfig struct {
	Key     string  `yaml:"key" mapstructure:"key"`
	BaseURL string  `yaml:"base_url" mapstructure:"base_url"`
	RPS     float64 `yaml:"rps" mapstructure:"rps"`
}

// SettingsConfig points at the API settings file.
type SettingsConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// JobsConfig selects the job record backend.
type JobsConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL   string `yaml:"database_url" mapstructure:"database_url"`
	RetentionDays int    `yaml:"retention_days" mapstructure:"retention_days"`
}

// OutputConfig configures where enriched leads are routed.
type OutputConfig struct {
	Destination string           `yaml:"destination" mapstructure:"destination"`
	WebhookURL  string           `yaml:"webhook_url" mapstructure:"webhook_url"`
	Concurrency int              `yaml:"concurrency" mapstructure:"concurrency"`
	Notion      NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Salesforce  SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
}

// NotionConfig holds Notion API credentials and the lead database ID.
type NotionConfig struct {
	Token   string  `yaml:"token" mapstructure:"token"`
	LeadDB  string  `yaml:"lead_db" mapstructure:"lead_db"`
	RPS     float64 `yaml:"rps" mapstructure:"rps"`
	Retries int     `yaml:"retries" mapstructure:"retries"`
}

// SalesforceConfig holds Salesforce JWT auth settings.
type SalesforceConfig struct {
	ClientID string  `yaml:"client_id" mapstructure:"client_id"`
	Username string  `yaml:"username" mapstructure:"username"`
	KeyPath  string  `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string  `yaml:"login_url" mapstructure:"login_url"`
	RPS      float64 `yaml:"rps" mapstructure:"rps"`
}

// ResilienceConfig tunes the per-service circuit breakers.
type ResilienceConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	MaxBodyBytes   int64    `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
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
	v.SetEnvPrefix("LEADS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees env values for keys viper already knows.
	for _, key := range []string{
		"skiptrace.key",
		"telnyx.key",
		"jobs.database_url",
		"output.webhook_url",
		"output.notion.token",
		"output.notion.lead_db",
		"output.salesforce.client_id",
		"output.salesforce.username",
		"output.salesforce.key_path",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	// Defaults
	v.SetDefault("storage.root", "data")
	v.SetDefault("lock.stale_after_secs", 30)
	v.SetDefault("lock.poll_interval_ms", 100)
	v.SetDefault("lock.timeout_secs", 10)
	v.SetDefault("rate_limit.base_delay_ms", 250)
	v.SetDefault("rate_limit.backoff_step_ms", 500)
	v.SetDefault("rate_limit.max_backoff_ms", 2000)
	v.SetDefault("enrich.inter_lead_delay_ms", 500)
	v.SetDefault("enrich.search_timeout_secs", 30)
	v.SetDefault("enrich.detail_timeout_secs", 60)
	v.SetDefault("skiptrace.host", "skip-tracing-working-api.p.rapidapi.com")
	v.SetDefault("skiptrace.base_url", "https://skip-tracing-working-api.p.rapidapi.com")
	v.SetDefault("skiptrace.rps", 4)
	v.SetDefault("telnyx.base_url", "https://api.telnyx.com/v2")
	v.SetDefault("telnyx.rps", 5)
	v.SetDefault("settings.path", "settings.yaml")
	v.SetDefault("jobs.driver", "file")
	v.SetDefault("jobs.retention_days", 7)
	v.SetDefault("output.destination", "none")
	v.SetDefault("output.concurrency", 4)
	v.SetDefault("output.notion.rps", 3)
	v.SetDefault("output.notion.retries", 3)
	v.SetDefault("output.salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("output.salesforce.rps", 5)
	v.SetDefault("resilience.failure_threshold", 5)
	v.SetDefault("resilience.reset_timeout_secs", 30)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_body_bytes", 10<<20)
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

// Validate checks that the settings a command mode needs are present.
// Modes: "enrich", "serve", "jobs", "leads".
func (c *Config) Validate(mode string) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Storage.Root == "" {
		add("storage.root is required")
	}
	switch c.Jobs.Driver {
	case "file", "sqlite":
	case "postgres":
		if c.Jobs.DatabaseURL == "" {
			add("jobs.database_url is required for the postgres driver")
		}
	default:
		add("jobs.driver must be one of file, sqlite, postgres (got %q)", c.Jobs.Driver)
	}

	switch mode {
	case "enrich", "serve":
		if c.SkipTrace.Key == "" {
			add("skiptrace.key is required")
		}
		if c.Telnyx.Key == "" {
			add("telnyx.key is required")
		}
		if c.Enrich.SearchTimeoutSecs <= 0 || c.Enrich.DetailTimeoutSecs <= 0 {
			add("enrich timeouts must be > 0")
		}
		if c.Enrich.InterLeadDelayMs < 0 {
			add("enrich.inter_lead_delay_ms must be >= 0")
		}
		if c.Output.Concurrency < 1 || c.Output.Concurrency > 32 {
			add("output.concurrency must be between 1 and 32 (got %d)", c.Output.Concurrency)
		}
		c.validateOutput(add)
		if mode == "serve" && c.Server.Port <= 0 {
			add("server.port must be > 0")
		}
	case "jobs", "leads":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) validateOutput(add func(string, ...any)) {
	switch strings.ToLower(c.Output.Destination) {
	case "", "none":
	case "notion":
		if c.Output.Notion.Token == "" {
			add("output.notion.token is required")
		}
		if c.Output.Notion.LeadDB == "" {
			add("output.notion.lead_db is required")
		}
	case "salesforce":
		if c.Output.Salesforce.ClientID == "" {
			add("output.salesforce.client_id is required")
		}
		if c.Output.Salesforce.KeyPath == "" {
			add("output.salesforce.key_path is required")
		}
	case "webhook":
		if c.Output.WebhookURL == "" {
			add("output.webhook_url is required")
		}
	default:
		add("output.destination must be one of none, notion, salesforce, webhook (got %q)", c.Output.Destination)
	}
}

// LockTimings returns lock stale-after, poll interval and default timeout.
func (c LockConfig) LockTimings() (staleAfter, poll, timeout time.Duration) {
	return time.Duration(c.StaleAfterSecs) * time.Second,
		time.Duration(c.PollIntervalMs) * time.Millisecond,
		time.Duration(c.TimeoutSecs) * time.Second
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
