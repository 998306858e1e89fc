package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/clinnote-engine/internal/domain"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/clinnote-engine/")

	viper.SetEnvPrefix("CLINNOTE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	// Config file is optional; defaults and environment variables suffice.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	// Pipeline defaults mirror domain.DefaultOptions.
	viper.SetDefault("pipeline.merge_threshold", 0.75)
	viper.SetDefault("pipeline.negation_window", 6)
	viper.SetDefault("pipeline.jaccard_weight", 0.4)
	viper.SetDefault("pipeline.edit_weight", 0.2)
	viper.SetDefault("pipeline.semantic_weight", 0.4)
	viper.SetDefault("pipeline.ambiguous_negation_penalty", 0.6)
	viper.SetDefault("pipeline.recommendation_limit", 3)
	viper.SetDefault("pipeline.timeliness_targets", map[string]string{
		"normalize":      "50ms",
		"extract":        "250ms",
		"negation":       "50ms",
		"temporal":       "50ms",
		"dedup":          "100ms",
		"source_quality": "50ms",
		"narrative":      "10s",
	})

	// Cache defaults
	viper.SetDefault("cache.backend", "memory")
	viper.SetDefault("cache.redis_url", "redis://localhost:6379")
	viper.SetDefault("cache.max_entries", 256)
	viper.SetDefault("cache.default_ttl", "1h")
	viper.SetDefault("cache.pool_size", 10)
	viper.SetDefault("cache.pool_timeout", "4s")

	// Corrections store disabled unless configured.
	viper.SetDefault("corrections.driver", "")
	viper.SetDefault("corrections.path", "./data/corrections.db")
	viper.SetDefault("corrections.dsn", "")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetPipelineOptions returns the pipeline options, falling back to the
// documented defaults for anything unset.
func (m *Manager) GetPipelineOptions() domain.Options {
	opts := m.config.Pipeline
	defaults := domain.DefaultOptions()
	if opts.MergeThreshold <= 0 {
		opts.MergeThreshold = defaults.MergeThreshold
	}
	if opts.NegationWindow <= 0 {
		opts.NegationWindow = defaults.NegationWindow
	}
	if opts.JaccardWeight+opts.EditWeight+opts.SemanticWeight == 0 {
		opts.JaccardWeight = defaults.JaccardWeight
		opts.EditWeight = defaults.EditWeight
		opts.SemanticWeight = defaults.SemanticWeight
	}
	if opts.AmbiguousNegationPenalty <= 0 {
		opts.AmbiguousNegationPenalty = defaults.AmbiguousNegationPenalty
	}
	if len(opts.TimelinessTargets) == 0 {
		opts.TimelinessTargets = defaults.TimelinessTargets
	}
	if opts.RecommendationLimit <= 0 {
		opts.RecommendationLimit = defaults.RecommendationLimit
	}
	return opts
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration. Failures come back as a
// ValidationError naming the offending field.
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return domain.NewValidationError("server.port", "must be between 1 and 65535", config.Server.Port)
	}

	if t := config.Pipeline.MergeThreshold; t < 0 || t > 1 {
		return domain.NewValidationError("pipeline.merge_threshold", "must be within [0,1]", t)
	}
	if config.Pipeline.NegationWindow < 0 {
		return domain.NewValidationError("pipeline.negation_window", "must not be negative", config.Pipeline.NegationWindow)
	}

	switch config.Cache.Backend {
	case "memory", "redis":
	default:
		return domain.NewValidationError("cache.backend", "must be memory or redis", config.Cache.Backend)
	}
	if config.Cache.Backend == "redis" && config.Cache.RedisURL == "" {
		return domain.NewValidationError("cache.redis_url", "required for the redis backend", config.Cache.RedisURL)
	}

	switch config.Corrections.Driver {
	case "", "sqlite", "postgres":
	default:
		return domain.NewValidationError("corrections.driver", "must be sqlite or postgres", config.Corrections.Driver)
	}
	if config.Corrections.Driver == "sqlite" && config.Corrections.Path == "" {
		return domain.NewValidationError("corrections.path", "required for the sqlite driver", config.Corrections.Path)
	}
	if config.Corrections.Driver == "postgres" && config.Corrections.DSN == "" {
		return domain.NewValidationError("corrections.dsn", "required for the postgres driver", config.Corrections.DSN)
	}

	for i, p := range config.Providers {
		if p.Name == "" {
			return domain.NewValidationError(fmt.Sprintf("providers[%d].name", i), "provider name is required", p.Name)
		}
		if p.BaseURL == "" {
			return domain.NewValidationError(fmt.Sprintf("providers[%d].base_url", i), "provider base URL is required", p.BaseURL)
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return domain.NewValidationError("logging.level", "must be a recognized log level", config.Logging.Level)
	}

	return nil
}
