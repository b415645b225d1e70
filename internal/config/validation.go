package config

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required provider API key is not set.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModel indicates the default chat model is not supported.
	ErrInvalidModel = errors.New("invalid model")

	// ErrInvalidEmbedderModel indicates the embedder model is empty.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is empty.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates an unknown sslmode value.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidHistoryWindow indicates max_history_messages is out of range.
	ErrInvalidHistoryWindow = errors.New("invalid history window")

	// ErrInvalidRetrievalTimeout indicates retrieval_timeout_ms is out of range.
	ErrInvalidRetrievalTimeout = errors.New("invalid retrieval timeout")
)

// SupportedModels lists the chat models the service accepts.
var SupportedModels = map[string]struct{}{
	ModelGPT4o:  {},
	ModelClaude: {},
}

var validSSLModes = map[string]struct{}{
	"disable":     {},
	"require":     {},
	"verify-ca":   {},
	"verify-full": {},
	"prefer":      {},
	"allow":       {},
}

// Validate checks the configuration and returns the first problem found.
// Called from Load; safe to call again after programmatic mutation.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if _, ok := SupportedModels[c.DefaultModel]; !ok {
		return fmt.Errorf("%w: %q is not a supported chat model", ErrInvalidModel, c.DefaultModel)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder model must not be empty", ErrInvalidEmbedderModel)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d (must be 1-65535)", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name must not be empty", ErrInvalidPostgresDBName)
	}
	if _, ok := validSSLModes[c.PostgresSSLMode]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	if c.MaxHistoryMessages < 1 || c.MaxHistoryMessages > 1000 {
		return fmt.Errorf("%w: %d (must be 1-1000)", ErrInvalidHistoryWindow, c.MaxHistoryMessages)
	}
	if c.RetrievalTimeoutMs < 100 || c.RetrievalTimeoutMs > 120000 {
		return fmt.Errorf("%w: %dms (must be 100-120000)", ErrInvalidRetrievalTimeout, c.RetrievalTimeoutMs)
	}

	// The embedder and gpt-4o run through the OpenAI plugin; its key is
	// always required. The Anthropic key is only needed when claude is the
	// default (per-request claude selection fails at call time without it).
	if os.Getenv("OPENAI_API_KEY") == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY is not set", ErrMissingAPIKey)
	}
	if c.DefaultModel == ModelClaude && os.Getenv("ANTHROPIC_API_KEY") == "" {
		return fmt.Errorf("%w: ANTHROPIC_API_KEY is not set", ErrMissingAPIKey)
	}

	return nil
}
