// Package main is the entry point for the PGx risk server.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/pgx-risk-server/internal/api"
	"github.com/pgx-risk-server/internal/config"
	"github.com/pgx-risk-server/internal/cpic"
	"github.com/pgx-risk-server/internal/domain"
	"github.com/pgx-risk-server/internal/health"
	"github.com/pgx-risk-server/internal/metrics"
	"github.com/pgx-risk-server/internal/service"
	"github.com/pgx-risk-server/pkg/external"
)

const version = "1.0.0"

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := buildLogger(cfg.Logging)

	// Re-applies the log level when a watched config file changes.
	configManager.Watch(logger)

	// Guideline tables are compiled in, so an integrity failure means a
	// broken build and the process must not come up.
	kb := cpic.NewKnowledgeBase()
	if err := kb.Validate(); err != nil {
		logger.WithError(err).Fatal("Knowledge base failed integrity checks")
	}

	cache, err := service.NewExplanationCache(logger, service.ExplanationCacheConfig{
		MemorySize: cfg.Cache.MemorySize,
		MemoryTTL:  cfg.Cache.MemoryTTL,
		RedisURL:   cfg.Cache.RedisURL,
		RedisTTL:   cfg.Cache.RedisTTL,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize explanation cache")
	}
	defer cache.Close()

	generator := buildGenerator(logger, cfg.LLM)

	explainer := service.NewExplainer(logger, kb, generator, cache, service.ExplainerConfig{
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})
	analyzer := service.NewAnalyzerService(logger, kb, explainer)

	checker := health.NewChecker(logger, version)
	checker.Register(health.NewKnowledgeBaseCheck(kb))
	checker.Register(health.NewProviderCheck(generator))
	checker.Register(health.NewCacheCheck(cache))

	server := api.NewServer(logger, cfg.Server, version, analyzer, kb, checker, metrics.New())

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	logger.WithFields(logrus.Fields{
		"version":         version,
		"supported_drugs": len(kb.SupportedDrugs()),
		"llm_enabled":     generator != nil,
	}).Info("Starting PGx Risk Server")

	// Start server
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

// buildLogger configures logrus from the logging block. Unparseable levels
// fall back to info rather than failing startup.
func buildLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

// buildGenerator wires the language-model provider when enabled. Returning
// nil keeps every explanation on the deterministic template path.
func buildGenerator(logger *logrus.Logger, cfg domain.LLMConfig) external.TextGenerator {
	if !cfg.Enabled {
		logger.Info("LLM provider disabled, explanations use templates")
		return nil
	}
	if cfg.APIKey == "" {
		logger.Warn("LLM provider enabled without an API key, explanations use templates")
		return nil
	}

	client := external.NewOpenAIClient(external.OpenAIConfig{
		BaseURL:   cfg.BaseURL,
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
	})

	return external.NewResilientTextGenerator(client, external.CircuitBreakerConfig{
		MaxRequests:      cfg.Breaker.MaxRequests,
		Interval:         cfg.Breaker.Interval,
		Timeout:          cfg.Breaker.Timeout,
		FailureThreshold: cfg.Breaker.FailureThreshold,
	}, logger)
}
