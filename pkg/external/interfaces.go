// Package external holds clients for services outside the process boundary.
// The only one the risk engine talks to is a chat-completion language model;
// everything here is optional at runtime and the caller owns the fallback.
package external

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// Provider call errors. Callers treat every one of them as "use the
// deterministic templates", never as a request failure.
var (
	ErrProviderDisabled = errors.New("text generation provider is not configured")
	ErrEmptyCompletion  = errors.New("provider returned an empty completion")
)

// CompletionRequest is one bounded text-generation call.
type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// TextGenerator produces narrative text from a prompt. Implementations make
// exactly one attempt per call; retries and failover are deliberately absent.
type TextGenerator interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	Name() string
	Available() bool
}

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	MaxRequests      uint32        `json:"max_requests"`
	Interval         time.Duration `json:"interval"`
	Timeout          time.Duration `json:"timeout"`
	FailureThreshold uint32        `json:"failure_threshold"`
}

// ResilientTextGenerator wraps a TextGenerator with a circuit breaker so a
// failing provider is short-circuited instead of slowing every analysis down
// to its timeout. An open breaker is still a single failed attempt from the
// caller's point of view, never a retry.
type ResilientTextGenerator struct {
	inner   TextGenerator
	breaker *gobreaker.CircuitBreaker
	logger  *logrus.Logger
}

// NewResilientTextGenerator creates a breaker-guarded text generator.
func NewResilientTextGenerator(inner TextGenerator, config CircuitBreakerConfig, logger *logrus.Logger) *ResilientTextGenerator {
	// Set default circuit breaker configuration
	if config.MaxRequests == 0 {
		config.MaxRequests = 3
	}
	if config.Interval == 0 {
		config.Interval = 30 * time.Second
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}

	settings := gobreaker.Settings{
		Name:        inner.Name(),
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from_state":      from.String(),
				"to_state":        to.String(),
			}).Warn("Circuit breaker state changed")
		},
	}

	return &ResilientTextGenerator{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// Complete forwards the call through the circuit breaker.
func (r *ResilientTextGenerator) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.inner.Complete(ctx, req)
	})
	if err != nil {
		return "", fmt.Errorf("circuit breaker execution failed: %w", err)
	}
	return result.(string), nil
}

// Name returns the wrapped provider's name.
func (r *ResilientTextGenerator) Name() string {
	return r.inner.Name()
}

// Available reports whether the wrapped provider is configured.
func (r *ResilientTextGenerator) Available() bool {
	return r.inner.Available()
}
