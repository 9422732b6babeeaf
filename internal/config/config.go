// Package config provides application configuration with multi-source
// priority.
//
// Sources (highest to lowest):
//  1. Environment variables
//  2. Config file (./config.yaml)
//  3. Default values
//
// Validation is fail-fast: Load returns an error before any component is
// wired with a bad value. Sensitive fields (the database password) are
// never logged.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates the model provider API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the database name is empty.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidThreshold indicates the summarization threshold is not positive.
	ErrInvalidThreshold = errors.New("invalid summarization threshold")

	// ErrInvalidTopK indicates the retrieval seed count is not positive.
	ErrInvalidTopK = errors.New("invalid retrieval top-k")

	// ErrInvalidSimilarity indicates the similarity threshold is outside [0, 1).
	ErrInvalidSimilarity = errors.New("invalid similarity threshold")

	// ErrInvalidMaxTokens indicates the completion token budget is not positive.
	ErrInvalidMaxTokens = errors.New("invalid max completion tokens")
)

// DefaultEmbedderModel outputs 3072 dimensions by default but supports
// truncation to the 768 dimensions the pgvector schema uses.
const DefaultEmbedderModel = "gemini-embedding-001"

// Pipeline tunes the conversation pipeline.
type Pipeline struct {
	// SummaryThresholdTokens is the visible dialogue token sum beyond
	// which history is compacted into the running summary.
	SummaryThresholdTokens int `mapstructure:"summary_threshold_tokens"`
	// RetrievalTopK is the number of seed chunks per retrieval pass.
	RetrievalTopK int `mapstructure:"retrieval_top_k"`
	// ChunkNeighbours is the total neighbour budget per seed chunk.
	ChunkNeighbours int `mapstructure:"chunk_neighbours"`
	// SimilarityThreshold drops seeds at or below this cosine similarity.
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	// MaxCompletionTokens bounds each mentor reply.
	MaxCompletionTokens int `mapstructure:"max_completion_tokens"`
	// EmbedTimeoutSeconds bounds the query embedding call.
	EmbedTimeoutSeconds int `mapstructure:"embed_timeout_seconds"`
	// TurnTimeoutSeconds bounds one completion call.
	TurnTimeoutSeconds int `mapstructure:"turn_timeout_seconds"`
	// BackendRPS limits outbound completion-backend requests per second.
	BackendRPS float64 `mapstructure:"backend_rps"`
}

// Config stores application configuration.
type Config struct {
	// Model configuration
	ModelName     string `mapstructure:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model"`

	// HTTP server
	ServerHost string `mapstructure:"server_host"`
	ServerPort int    `mapstructure:"server_port"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"` // SENSITIVE: never logged
	PostgresDBName   string `mapstructure:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode"`

	Pipeline Pipeline `mapstructure:"pipeline"`

	// Observability
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	LogLevel     string `mapstructure:"log_level"`
	LogJSON      bool   `mapstructure:"log_json"`
}

// Load reads configuration from file, environment, and defaults, then
// validates it.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/mentingo")

	setDefaults(v)

	v.SetEnvPrefix("MENTINGO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model_name", "gemini-2.5-flash")
	v.SetDefault("embedder_model", DefaultEmbedderModel)

	v.SetDefault("server_host", "0.0.0.0")
	v.SetDefault("server_port", 8080)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "mentingo")
	v.SetDefault("postgres_password", "mentingo_dev_password")
	v.SetDefault("postgres_db_name", "mentingo")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("pipeline.summary_threshold_tokens", 4000)
	v.SetDefault("pipeline.retrieval_top_k", 3)
	v.SetDefault("pipeline.chunk_neighbours", 2)
	v.SetDefault("pipeline.similarity_threshold", 0.7)
	v.SetDefault("pipeline.max_completion_tokens", 2048)
	v.SetDefault("pipeline.embed_timeout_seconds", 10)
	v.SetDefault("pipeline.turn_timeout_seconds", 60)
	v.SetDefault("pipeline.backend_rps", 5.0)

	v.SetDefault("otlp_endpoint", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", true)
}

// Validate performs range checks on every tunable. Errors carry the field
// value so misconfiguration is diagnosable from the failure alone.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ModelName) == "" {
		return ErrInvalidModelName
	}
	if strings.TrimSpace(c.PostgresHost) == "" {
		return ErrInvalidPostgresHost
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return ErrInvalidPostgresDBName
	}
	if c.Pipeline.SummaryThresholdTokens <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidThreshold, c.Pipeline.SummaryThresholdTokens)
	}
	if c.Pipeline.RetrievalTopK <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTopK, c.Pipeline.RetrievalTopK)
	}
	if c.Pipeline.SimilarityThreshold < 0 || c.Pipeline.SimilarityThreshold >= 1 {
		return fmt.Errorf("%w: %f", ErrInvalidSimilarity, c.Pipeline.SimilarityThreshold)
	}
	if c.Pipeline.MaxCompletionTokens <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxTokens, c.Pipeline.MaxCompletionTokens)
	}
	return nil
}

// EmbedTimeout returns the embedding timeout as a duration.
func (c *Config) EmbedTimeout() time.Duration {
	return time.Duration(c.Pipeline.EmbedTimeoutSeconds) * time.Second
}

// TurnTimeout returns the completion timeout as a duration.
func (c *Config) TurnTimeout() time.Duration {
	return time.Duration(c.Pipeline.TurnTimeoutSeconds) * time.Second
}

// ServerAddr returns the host:port the HTTP server binds.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}
