// Package config provides application configuration with multi-source priority.
//
// Sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (./config.yaml or ~/.synapse/config.yaml)
//  3. Default values
//
// Categories:
//   - Server: listen address
//   - Storage: PostgreSQL connection (pgvector-enabled database)
//   - AI: default chat model and embedder model
//   - Chat: history window and retrieval timeout
//
// Sensitive data (the Postgres password) is masked in MarshalJSON and never
// logged. Validation lives in validation.go and fails fast at startup.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
)

// Supported chat model identifiers. The chat endpoint accepts exactly these;
// anything else is a validation error.
const (
	ModelGPT4o  = "gpt-4o"
	ModelClaude = "claude-sonnet-4-5-20250929"
)

// DefaultEmbedderModel is the OpenAI embedding model used for chunks and
// queries. Its output dimensionality must match knowledge.VectorDimension.
const DefaultEmbedderModel = "text-embedding-3-small"

// DefaultMaxHistoryMessages is how many prior messages are replayed to the
// model on each chat turn.
const DefaultMaxHistoryMessages = 20

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON. When adding a new
// secret field, update MarshalJSON as well.
type Config struct {
	// HTTP server
	ServerAddr string `mapstructure:"server_addr" json:"server_addr"`

	// AI models
	DefaultModel  string `mapstructure:"default_model" json:"default_model"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// Chat behavior
	MaxHistoryMessages int `mapstructure:"max_history_messages" json:"max_history_messages"`
	RetrievalTimeoutMs int `mapstructure:"retrieval_timeout_ms" json:"retrieval_timeout_ms"`

	// Storage
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Logging
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
	LogLevel string `mapstructure:"log_level" json:"log_level"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}
	configDir := filepath.Join(home, ".synapse")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath(configDir)

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults plus env cover it.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{".", configDir})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL, when set, overrides the individual Postgres fields.
	if err := cfg.parseDatabaseURL(os.Getenv("DATABASE_URL")); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server_addr", "127.0.0.1:8080")

	viper.SetDefault("default_model", ModelGPT4o)
	viper.SetDefault("embedder_model", DefaultEmbedderModel)

	viper.SetDefault("max_history_messages", DefaultMaxHistoryMessages)
	viper.SetDefault("retrieval_timeout_ms", 10000)

	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "synapse")
	viper.SetDefault("postgres_password", "synapse_dev_password")
	viper.SetDefault("postgres_db_name", "synapse")
	viper.SetDefault("postgres_ssl_mode", "disable")

	viper.SetDefault("log_json", false)
	viper.SetDefault("log_level", "info")
}

// bindEnvVariables binds environment overrides explicitly.
//
// NOTE: OPENAI_API_KEY and ANTHROPIC_API_KEY are read directly by the Genkit
// compat_oai plugins, not via Viper. Validate() checks their presence.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a failure here is a bug.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("server_addr", "SYNAPSE_ADDR")
	mustBind("default_model", "SYNAPSE_DEFAULT_MODEL")
	mustBind("embedder_model", "SYNAPSE_EMBEDDER_MODEL")
	mustBind("postgres_password", "SYNAPSE_POSTGRES_PASSWORD")
	mustBind("log_json", "SYNAPSE_LOG_JSON")
	mustBind("log_level", "SYNAPSE_LOG_LEVEL")
}

// parseDatabaseURL splits a postgres:// URL into the individual fields.
// Empty rawURL is a no-op.
func (c *Config) parseDatabaseURL(rawURL string) error {
	if rawURL == "" {
		return nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	c.PostgresHost = u.Hostname()
	if port := u.Port(); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", port, err)
		}
		c.PostgresPort = p
	}
	if u.User != nil {
		c.PostgresUser = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			c.PostgresPassword = pw
		}
	}
	if name := filepath.Base(u.Path); name != "." && name != "/" {
		c.PostgresDBName = name
	}
	if mode := u.Query().Get("sslmode"); mode != "" {
		c.PostgresSSLMode = mode
	}
	return nil
}

// PostgresURL returns the postgres:// connection URL (used by migrations).
func (c *Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.PostgresUser),
		url.QueryEscape(c.PostgresPassword),
		c.PostgresHost, c.PostgresPort, c.PostgresDBName, c.PostgresSSLMode)
}

// maskedValue is the placeholder for masked secrets. Full-width blocks avoid
// accidental substring matches against real password content.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Short secrets are fully
// masked; longer ones keep two characters on each side for debuggability.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
