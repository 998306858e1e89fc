package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/clinnote-engine/internal/api"
	"github.com/clinnote-engine/internal/config"
	"github.com/clinnote-engine/internal/corrections"
	"github.com/clinnote-engine/internal/domain"
	"github.com/clinnote-engine/internal/quality"
	"github.com/clinnote-engine/internal/service"
	"github.com/clinnote-engine/pkg/narrative"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := newLogger(cfg.Logging)
	opts := configManager.GetPipelineOptions()

	store, err := corrections.Open(cfg.Corrections)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open correction store")
	}
	if store != nil {
		defer store.Close()
	}

	cache, err := newCache(cfg.Cache, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create narrative cache")
	}
	defer cache.Close()

	providers := make([]narrative.Provider, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		providers = append(providers, narrative.NewHTTPProvider(narrative.HTTPProviderConfig{
			Name:      pc.Name,
			BaseURL:   pc.BaseURL,
			APIKey:    pc.APIKey,
			Model:     pc.Model,
			Timeout:   pc.Timeout,
			RateLimit: float64(pc.RateLimit),
		}))
	}
	chain := narrative.NewChain(logger, providers, cache)

	pipeline := service.NewPipeline(logger, opts, nil, store)
	scorer := quality.NewScorer(logger, opts)
	engine := service.NewEngine(logger, pipeline, chain, scorer)

	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting clinical note engine")

	server := api.NewServer(configManager, logger, engine, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

// newLogger builds the process logger from the logging configuration.
func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	logger.SetOutput(os.Stdout)
	return logger
}

// newCache builds the configured narrative cache backend.
func newCache(cfg domain.CacheConfig, logger *logrus.Logger) (narrative.PromptCache, error) {
	if cfg.Backend == "redis" {
		cache, err := narrative.NewRedisCache(cfg)
		if err != nil {
			return nil, err
		}
		logger.Info("Using Redis narrative cache")
		return cache, nil
	}
	return narrative.NewMemoryCache(cfg.MaxEntries, cfg.DefaultTTL), nil
}
