// Package config provides configuration management for the risk server.
// This file contains the lightweight configuration for the command line
// client, which reads environment variables only and never touches a
// config file.
package config

import (
	"os"
	"strconv"
	"time"
)

// LiteConfig is a simplified configuration for one-shot command line runs.
// The variable names line up with the server's PGX_* bindings, so one
// environment serves both binaries.
type LiteConfig struct {
	// Provider settings
	LLMAPIKey      string        // Optional: enables AI-written explanations
	LLMBaseURL     string        // OpenAI-compatible endpoint
	LLMModel       string        // Chat completion model
	LLMTimeout     time.Duration // Per-call timeout
	LLMMaxTokens   int           // Completion budget per explanation
	LLMTemperature float64       // Sampling temperature

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
// Logs default to warn so a piped report stays the only stdout output.
func DefaultLiteConfig() *LiteConfig {
	return &LiteConfig{
		LLMBaseURL:     "https://api.openai.com/v1",
		LLMModel:       "gpt-4o-mini",
		LLMTimeout:     30 * time.Second,
		LLMMaxTokens:   600,
		LLMTemperature: 0.2,
		LogLevel:       "warn",
		LogFormat:      "text",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	// Provider settings
	cfg.LLMAPIKey = os.Getenv("PGX_LLM_API_KEY")
	if v := os.Getenv("PGX_LLM_BASE_URL"); v != "" {
		cfg.LLMBaseURL = v
	}
	if v := os.Getenv("PGX_LLM_MODEL"); v != "" {
		cfg.LLMModel = v
	}
	if v := os.Getenv("PGX_LLM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LLMTimeout = d
		}
	}
	if v := os.Getenv("PGX_LLM_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.LLMMaxTokens = n
		}
	}
	if v := os.Getenv("PGX_LLM_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 2 {
			cfg.LLMTemperature = f
		}
	}

	// Logging
	if v := os.Getenv("PGX_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PGX_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}
