package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinnote-engine/internal/domain"
)

func TestNewManager_Defaults(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	cfg := m.GetConfig()
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)

	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 256, cfg.Cache.MaxEntries)
	assert.Equal(t, time.Hour, cfg.Cache.DefaultTTL)

	// Corrections stay disabled until explicitly configured.
	assert.Empty(t, cfg.Corrections.Driver)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestGetPipelineOptions_MirrorsDocumentedDefaults(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)

	opts := m.GetPipelineOptions()
	defaults := domain.DefaultOptions()

	assert.Equal(t, defaults.MergeThreshold, opts.MergeThreshold)
	assert.Equal(t, defaults.NegationWindow, opts.NegationWindow)
	assert.Equal(t, defaults.JaccardWeight, opts.JaccardWeight)
	assert.Equal(t, defaults.EditWeight, opts.EditWeight)
	assert.Equal(t, defaults.SemanticWeight, opts.SemanticWeight)
	assert.Equal(t, defaults.AmbiguousNegationPenalty, opts.AmbiguousNegationPenalty)
	assert.Equal(t, defaults.RecommendationLimit, opts.RecommendationLimit)
	assert.Equal(t, 250*time.Millisecond, opts.TimelinessTargets["extract"])
}

func TestGetPipelineOptions_FillsUnsetValues(t *testing.T) {
	m := &Manager{config: &domain.Config{
		Pipeline: domain.Options{MergeThreshold: 0.9},
	}}

	opts := m.GetPipelineOptions()
	assert.Equal(t, 0.9, opts.MergeThreshold)
	assert.Equal(t, domain.DefaultOptions().NegationWindow, opts.NegationWindow)
	assert.Equal(t, domain.DefaultOptions().JaccardWeight, opts.JaccardWeight)
	assert.NotEmpty(t, opts.TimelinessTargets)
}

func TestValidate_RejectsBadConfigurations(t *testing.T) {
	valid := func() *domain.Config {
		return &domain.Config{
			Server:  domain.ServerConfig{Port: 8080},
			Cache:   domain.CacheConfig{Backend: "memory"},
			Logging: domain.LoggingConfig{Level: "info"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*domain.Config)
	}{
		{"port out of range", func(c *domain.Config) { c.Server.Port = 70000 }},
		{"merge threshold above one", func(c *domain.Config) { c.Pipeline.MergeThreshold = 1.5 }},
		{"negative negation window", func(c *domain.Config) { c.Pipeline.NegationWindow = -1 }},
		{"unknown cache backend", func(c *domain.Config) { c.Cache.Backend = "memcached" }},
		{"redis backend without URL", func(c *domain.Config) {
			c.Cache.Backend = "redis"
			c.Cache.RedisURL = ""
		}},
		{"unknown corrections driver", func(c *domain.Config) { c.Corrections.Driver = "oracle" }},
		{"sqlite driver without path", func(c *domain.Config) { c.Corrections.Driver = "sqlite" }},
		{"postgres driver without DSN", func(c *domain.Config) { c.Corrections.Driver = "postgres" }},
		{"provider without name", func(c *domain.Config) {
			c.Providers = []domain.ProviderConfig{{BaseURL: "http://localhost"}}
		}},
		{"provider without base URL", func(c *domain.Config) {
			c.Providers = []domain.ProviderConfig{{Name: "primary"}}
		}},
		{"unknown log level", func(c *domain.Config) { c.Logging.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			m := &Manager{config: cfg}
			assert.Error(t, m.Validate())
		})
	}

	m := &Manager{config: valid()}
	assert.NoError(t, m.Validate())
}

func TestValidate_NamesTheOffendingField(t *testing.T) {
	m := &Manager{config: &domain.Config{
		Server:  domain.ServerConfig{Port: 70000},
		Cache:   domain.CacheConfig{Backend: "memory"},
		Logging: domain.LoggingConfig{Level: "info"},
	}}

	var verr *domain.ValidationError
	require.ErrorAs(t, m.Validate(), &verr)
	assert.Equal(t, "server.port", verr.Field)
	assert.Equal(t, 70000, verr.Value)
}
