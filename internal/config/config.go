// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (KAYPHI_* prefix, runtime override)
//  2. Config file (./kayphi.yaml or /etc/kayphi/kayphi.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: provider selection, completion model, embedder model
//   - Storage: PostgreSQL connection (see storage.go)
//   - Chatbot: business name, owner identity, retrieval depth
//   - Server: listen address, CORS, proxy trust, rate limiting, dashboard token
//
// Sensitive values (API keys, passwords, tokens) are never logged.
package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrMissingOwnerID indicates the owner identity is not configured.
	ErrMissingOwnerID = errors.New("missing owner ID")

	// ErrInvalidOwnerID indicates the owner identity is not a valid UUID.
	ErrInvalidOwnerID = errors.New("invalid owner ID")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidTopK indicates the retrieval depth is out of range.
	ErrInvalidTopK = errors.New("invalid retrieval top-k")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is empty.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrMissingDashboardToken indicates the dashboard API token is not set.
	ErrMissingDashboardToken = errors.New("missing dashboard token")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderOpenAI   = "openai"
	ProviderGoogleAI = "googleai"
)

// Defaults for the chatbot pipeline. The completion and embedder models match
// the production deployment; text-embedding-3-small outputs 1536 dimensions,
// which the knowledge_base schema depends on.
const (
	DefaultModelName     = "gpt-4o-mini"
	DefaultEmbedderModel = "text-embedding-3-small"
	DefaultBusinessName  = "kAyphI"
	DefaultRetrievalTopK = 5
)

// Config stores application configuration.
type Config struct {
	// AI provider and model configuration
	Provider      string `mapstructure:"provider"`       // "openai" (default) or "googleai"
	ModelName     string `mapstructure:"model_name"`     // Completion model (e.g. "gpt-4o-mini")
	EmbedderModel string `mapstructure:"embedder_model"` // Embedding model (e.g. "text-embedding-3-small")

	// Chatbot configuration
	BusinessName  string `mapstructure:"business_name"`  // Name rendered into the system prompt
	OwnerID       string `mapstructure:"owner_id"`       // Fixed owner identity (UUID) for this deployment
	RetrievalTopK int    `mapstructure:"retrieval_topk"` // Knowledge chunks fetched per query

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"`
	PostgresDBName   string `mapstructure:"postgres_dbname"`
	PostgresSSLMode  string `mapstructure:"postgres_sslmode"`

	// Server configuration
	ListenAddr     string   `mapstructure:"listen_addr"`
	CORSOrigins    []string `mapstructure:"cors_origins"`
	TrustProxy     bool     `mapstructure:"trust_proxy"`     // Trust X-Forwarded-For/X-Real-IP
	DashboardToken string   `mapstructure:"dashboard_token"` // Bearer token for dashboard routes

	// Observability (optional)
	OTLPEndpoint string `mapstructure:"otlp_endpoint"` // OTLP HTTP trace endpoint; empty disables export
}

// Load reads configuration from file, environment, and defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("kayphi")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/kayphi")

	v.SetEnvPrefix("KAYPHI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional; env vars and defaults are enough.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", ProviderOpenAI)
	v.SetDefault("model_name", DefaultModelName)
	v.SetDefault("embedder_model", DefaultEmbedderModel)

	v.SetDefault("business_name", DefaultBusinessName)
	v.SetDefault("retrieval_topk", DefaultRetrievalTopK)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "kayphi")
	v.SetDefault("postgres_dbname", "kayphi")
	v.SetDefault("postgres_sslmode", "disable")

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("trust_proxy", false)
}
