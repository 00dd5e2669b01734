package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/pgx-risk-server/internal/domain"
)

// Manager loads and validates the application configuration using Viper
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
	// Set configuration file name and paths
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/pgx-risk-server/")

	// Set environment variable prefix and enable automatic env binding
	viper.SetEnvPrefix("PGX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set default values
	m.setDefaults()

	// Read configuration file (optional - will use defaults and env vars if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	// Unmarshal configuration into struct
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
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.shutdown_timeout", "15s")
	viper.SetDefault("server.max_upload_bytes", 5<<20) // 5 MiB
	viper.SetDefault("server.rate_limit.enabled", true)
	viper.SetDefault("server.rate_limit.rps", 10.0)
	viper.SetDefault("server.rate_limit.burst", 20)

	// Provider defaults
	viper.SetDefault("llm.enabled", false)
	viper.SetDefault("llm.base_url", "https://api.openai.com/v1")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.timeout", "30s")
	viper.SetDefault("llm.max_tokens", 600)
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.rate_limit", 5)
	viper.SetDefault("llm.breaker.max_requests", 3)
	viper.SetDefault("llm.breaker.interval", "30s")
	viper.SetDefault("llm.breaker.timeout", "60s")
	viper.SetDefault("llm.breaker.failure_threshold", 5)

	// Cache defaults (empty redis_url keeps the cache memory-only)
	viper.SetDefault("cache.memory_size", 1000)
	viper.SetDefault("cache.memory_ttl", "15m")
	viper.SetDefault("cache.redis_url", "")
	viper.SetDefault("cache.redis_ttl", "24h")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetLLMConfig returns explanation provider configuration
func (m *Manager) GetLLMConfig() *domain.LLMConfig {
	return &m.config.LLM
}

// GetCacheConfig returns explanation cache configuration
func (m *Manager) GetCacheConfig() *domain.CacheConfig {
	return &m.config.Cache
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Watch re-reads the configuration whenever the file in use changes on disk
// and applies the new log level to logger without a restart. Other settings
// take effect on the next start. A run without a config file has nothing to
// watch, so Watch is a no-op there.
func (m *Manager) Watch(logger *logrus.Logger) {
	if viper.ConfigFileUsed() == "" {
		logger.Debug("No configuration file in use, skipping config watch")
		return
	}

	viper.OnConfigChange(func(e fsnotify.Event) {
		if err := m.Reload(); err != nil {
			logger.WithError(err).Warn("Failed to reload configuration after file change")
			return
		}
		level, err := logrus.ParseLevel(m.config.Logging.Level)
		if err != nil {
			logger.WithError(err).Warn("Reloaded configuration has an invalid log level")
			return
		}
		logger.SetLevel(level)
		logger.WithFields(logrus.Fields{
			"file":  e.Name,
			"level": level.String(),
		}).Info("Configuration reloaded")
	})
	viper.WatchConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	// Validate server configuration
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	validModes := map[string]bool{"debug": true, "release": true, "test": true}
	if !validModes[strings.ToLower(config.Server.Mode)] {
		return fmt.Errorf("invalid server mode: %s", config.Server.Mode)
	}
	if config.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("invalid max upload size: %d", config.Server.MaxUploadBytes)
	}
	if config.Server.RateLimit.Enabled {
		if config.Server.RateLimit.RPS <= 0 {
			return fmt.Errorf("invalid rate limit rps: %g", config.Server.RateLimit.RPS)
		}
		if config.Server.RateLimit.Burst <= 0 {
			return fmt.Errorf("invalid rate limit burst: %d", config.Server.RateLimit.Burst)
		}
	}

	// Validate provider configuration
	if config.LLM.Enabled {
		if config.LLM.BaseURL == "" {
			return fmt.Errorf("LLM base URL is required when the provider is enabled")
		}
		if config.LLM.Model == "" {
			return fmt.Errorf("LLM model is required when the provider is enabled")
		}
		if config.LLM.MaxTokens <= 0 {
			return fmt.Errorf("invalid LLM max tokens: %d", config.LLM.MaxTokens)
		}
		if config.LLM.Temperature < 0 || config.LLM.Temperature > 2 {
			return fmt.Errorf("invalid LLM temperature: %g", config.LLM.Temperature)
		}
	}

	// Validate cache configuration
	if config.Cache.MemorySize <= 0 {
		return fmt.Errorf("invalid cache memory size: %d", config.Cache.MemorySize)
	}

	// Validate logging configuration
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}
	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[strings.ToLower(config.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s", config.Logging.Format)
	}

	return nil
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(viper.GetString("environment")) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(viper.GetString("environment"))
	return env == "development" || env == "dev" || env == ""
}
