package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the analyst agent system.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Search    SearchConfig    `mapstructure:"search"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address string `mapstructure:"address"`
	// AllowPartial keeps /analyze returning 200 with empty results when the
	// search backend is unreachable.
	AllowPartial bool `mapstructure:"allow_partial"`
}

// LLMConfig configures the reasoning backend used by the planner and the
// summarization paths. An empty APIKey means no backend is configured and
// every caller falls back to its deterministic path.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// AgentConfig contains orchestration defaults.
type AgentConfig struct {
	DefaultApprovalMode string `mapstructure:"default_approval_mode"`
	DefaultMaxSteps     int    `mapstructure:"default_max_steps"`
	// CompactThreshold is the message count beyond which history is compacted
	// before planning. CompactKeepRecent messages are always kept verbatim.
	CompactThreshold  int `mapstructure:"compact_threshold"`
	CompactKeepRecent int `mapstructure:"compact_keep_recent"`
	// PlannerContext caps how many trailing messages are rendered into the
	// planning prompt.
	PlannerContext int `mapstructure:"planner_context"`
}

func (a AgentConfig) Validate() error {
	if a.DefaultApprovalMode != "auto" && a.DefaultApprovalMode != "manual" {
		return fmt.Errorf("agent.default_approval_mode must be auto or manual")
	}
	if a.DefaultMaxSteps <= 0 {
		return fmt.Errorf("agent.default_max_steps must be > 0")
	}
	if a.CompactKeepRecent >= a.CompactThreshold {
		return fmt.Errorf("agent.compact_keep_recent must be below agent.compact_threshold")
	}
	return nil
}

// ToolsConfig contains per-tool limits and timeouts.
type ToolsConfig struct {
	SearchIndex      string        `mapstructure:"search_index"`
	SearchMaxResults int           `mapstructure:"search_max_results"`
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout"`
	FetchMaxBody     int           `mapstructure:"fetch_max_body"`
	SleepMax         time.Duration `mapstructure:"sleep_max"`
}

func (t ToolsConfig) Validate() error {
	if t.SearchMaxResults <= 0 {
		return fmt.Errorf("tools.search_max_results must be > 0")
	}
	if t.FetchTimeout <= 0 {
		return fmt.Errorf("tools.fetch_timeout must be > 0")
	}
	if t.SleepMax <= 0 {
		return fmt.Errorf("tools.sleep_max must be > 0")
	}
	return nil
}

// SearchConfig selects and configures the search backend.
type SearchConfig struct {
	// Backend is "elastic" for an Elasticsearch-compatible HTTP endpoint or
	// "bleve" for the embedded index (dev/offline mode).
	Backend    string        `mapstructure:"backend"`
	ElasticURL string        `mapstructure:"elastic_url"`
	BlevePath  string        `mapstructure:"bleve_path"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

func (s SearchConfig) Validate() error {
	switch s.Backend {
	case "elastic":
		if strings.TrimSpace(s.ElasticURL) == "" {
			return fmt.Errorf("search.elastic_url required when search.backend is elastic")
		}
	case "bleve":
	default:
		return fmt.Errorf("unsupported search.backend: %s", s.Backend)
	}
	return nil
}

// StorageConfig contains session store and redis settings.
type StorageConfig struct {
	// SessionStore is "memory" (default) or "postgres".
	SessionStore string         `mapstructure:"session_store"`
	Postgres     PostgresConfig `mapstructure:"postgres"`
	Redis        RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains Postgres connection settings.
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// DSN assembles a postgres connection string from the configured fields.
func (p PostgresConfig) DSN() (string, error) {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// RedisConfig contains Redis connection settings for the ingest streams.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the host:port pair for the redis client.
func (r RedisConfig) Addr() string { return fmt.Sprintf("%s:%s", r.Host, r.Port) }

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// IngestConfig configures the alert enrichment consumer.
type IngestConfig struct {
	Stream      string        `mapstructure:"stream"`
	Group       string        `mapstructure:"group"`
	Consumer    string        `mapstructure:"consumer"`
	OutputIndex string        `mapstructure:"output_index"`
	Block       time.Duration `mapstructure:"block"`
	BatchSize   int64         `mapstructure:"batch_size"`
}

func (i IngestConfig) Validate() error {
	if strings.TrimSpace(i.Stream) == "" {
		return fmt.Errorf("ingest.stream required")
	}
	if strings.TrimSpace(i.Group) == "" {
		return fmt.Errorf("ingest.group required")
	}
	if strings.TrimSpace(i.OutputIndex) == "" {
		return fmt.Errorf("ingest.output_index required")
	}
	return nil
}

// TelemetryConfig contains metrics settings.
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MetricsPath string `mapstructure:"metrics_path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.log_level", "info")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.allow_partial", true)
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 800)
	v.SetDefault("llm.timeout", 20*time.Second)
	v.SetDefault("agent.default_approval_mode", "auto")
	v.SetDefault("agent.default_max_steps", 5)
	v.SetDefault("agent.compact_threshold", 40)
	v.SetDefault("agent.compact_keep_recent", 12)
	v.SetDefault("agent.planner_context", 10)
	v.SetDefault("tools.search_index", "alerts-enriched")
	v.SetDefault("tools.search_max_results", 50)
	v.SetDefault("tools.fetch_timeout", 15*time.Second)
	v.SetDefault("tools.fetch_max_body", 20000)
	v.SetDefault("tools.sleep_max", 30*time.Second)
	v.SetDefault("search.backend", "bleve")
	v.SetDefault("search.timeout", 10*time.Second)
	v.SetDefault("storage.session_store", "memory")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", "6379")
	v.SetDefault("ingest.stream", "syslog-alerts")
	v.SetDefault("ingest.group", "ai-analyst")
	v.SetDefault("ingest.consumer", "analyst-1")
	v.SetDefault("ingest.output_index", "alerts-enriched")
	v.SetDefault("ingest.block", 5*time.Second)
	v.SetDefault("ingest.batch_size", 16)
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.metrics_path", "/metrics")
}

// Load reads configuration from the given file (optional) merged with
// ANALYST_* environment variables over built-in defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ANALYST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("json")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		// A missing config file is fine: defaults plus env cover everything.
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Agent.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Tools.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Search.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Ingest.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
