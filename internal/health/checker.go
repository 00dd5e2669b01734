package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pgx-risk-server/internal/cpic"
	"github.com/pgx-risk-server/internal/service"
	"github.com/pgx-risk-server/pkg/external"
)

// State is the health of a component or of the service overall.
type State string

const (
	StateHealthy   State = "healthy"
	StateWarning   State = "warning"
	StateUnhealthy State = "unhealthy"
)

// Check is a single component probe.
type Check interface {
	Name() string
	Check(ctx context.Context) Component
}

// Component is the result of one component probe.
type Component struct {
	Name     string                 `json:"name"`
	Status   State                  `json:"status"`
	Message  string                 `json:"message"`
	Duration time.Duration          `json:"duration"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// Status is the aggregate snapshot returned by one checker run.
type Status struct {
	Overall    State                `json:"overall"`
	Timestamp  time.Time            `json:"timestamp"`
	Version    string               `json:"version"`
	Uptime     string               `json:"uptime"`
	Components map[string]Component `json:"components"`
}

// Checker fans registered probes out in parallel and folds their states
// into an overall verdict. Probes run on demand, bounded by the checker
// timeout; there is no background polling.
type Checker struct {
	logger    *logrus.Logger
	version   string
	startTime time.Time
	timeout   time.Duration

	mu     sync.RWMutex
	checks []Check
}

// NewChecker creates a checker stamped with the build version.
func NewChecker(logger *logrus.Logger, version string) *Checker {
	return &Checker{
		logger:    logger,
		version:   version,
		startTime: time.Now(),
		timeout:   5 * time.Second,
	}
}

// Register adds a component probe.
func (c *Checker) Register(check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks = append(c.checks, check)
}

// Check runs every registered probe and returns the folded snapshot.
// Warning components leave the service operational; a single unhealthy
// component makes the overall state unhealthy.
func (c *Checker) Check(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.mu.RLock()
	checks := make([]Check, len(c.checks))
	copy(checks, c.checks)
	c.mu.RUnlock()

	results := make(chan Component, len(checks))
	var wg sync.WaitGroup
	for _, check := range checks {
		wg.Add(1)
		go func(probe Check) {
			defer wg.Done()
			results <- probe.Check(ctx)
		}(check)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	overall := StateHealthy
	components := make(map[string]Component, len(checks))
	for result := range results {
		components[result.Name] = result
		overall = worst(overall, result.Status)
	}

	status := Status{
		Overall:    overall,
		Timestamp:  time.Now().UTC(),
		Version:    c.version,
		Uptime:     time.Since(c.startTime).Round(time.Second).String(),
		Components: components,
	}

	if overall != StateHealthy {
		c.logger.WithFields(logrus.Fields{
			"overall":             string(overall),
			"degraded_components": degradedNames(components),
		}).Warn("Health check completed with issues")
	} else {
		c.logger.Debug("Health check completed successfully")
	}
	return status
}

func worst(a, b State) State {
	if a == StateUnhealthy || b == StateUnhealthy {
		return StateUnhealthy
	}
	if a == StateWarning || b == StateWarning {
		return StateWarning
	}
	return StateHealthy
}

func degradedNames(components map[string]Component) []string {
	var names []string
	for name, component := range components {
		if component.Status != StateHealthy {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// KnowledgeBaseCheck verifies the guideline tables' referential integrity.
// The tables are compiled in, so a failure here means a broken build and
// the service must not serve verdicts.
type KnowledgeBaseCheck struct {
	kb *cpic.KnowledgeBase
}

// NewKnowledgeBaseCheck creates a knowledge base probe.
func NewKnowledgeBaseCheck(kb *cpic.KnowledgeBase) *KnowledgeBaseCheck {
	return &KnowledgeBaseCheck{kb: kb}
}

func (k *KnowledgeBaseCheck) Name() string { return "knowledge_base" }

func (k *KnowledgeBaseCheck) Check(_ context.Context) Component {
	start := time.Now()
	if err := k.kb.Validate(); err != nil {
		return Component{
			Name:     k.Name(),
			Status:   StateUnhealthy,
			Message:  "Guideline tables failed integrity checks",
			Duration: time.Since(start),
			Error:    err.Error(),
		}
	}
	return Component{
		Name:     k.Name(),
		Status:   StateHealthy,
		Message:  "Guideline tables loaded",
		Duration: time.Since(start),
		Metadata: map[string]interface{}{
			"supported_drugs": len(k.kb.SupportedDrugs()),
			"supported_genes": len(k.kb.SupportedGenes()),
		},
	}
}

// ProviderCheck reports whether the language-model provider can serve
// explanation requests. A disabled provider is a warning, not a failure:
// the template path keeps every analysis serviceable. The probe never
// spends a completion; availability is a local readiness signal.
type ProviderCheck struct {
	generator external.TextGenerator
}

// NewProviderCheck creates a provider probe. A nil generator is reported
// as a warning.
func NewProviderCheck(generator external.TextGenerator) *ProviderCheck {
	return &ProviderCheck{generator: generator}
}

func (p *ProviderCheck) Name() string { return "explanation_provider" }

func (p *ProviderCheck) Check(_ context.Context) Component {
	start := time.Now()
	if p.generator == nil || !p.generator.Available() {
		return Component{
			Name:     p.Name(),
			Status:   StateWarning,
			Message:  "Provider disabled, explanations use templates only",
			Duration: time.Since(start),
		}
	}
	return Component{
		Name:     p.Name(),
		Status:   StateHealthy,
		Message:  "Provider configured",
		Duration: time.Since(start),
		Metadata: map[string]interface{}{"provider": p.generator.Name()},
	}
}

// ExplanationCache is the slice of the cache surface the probe needs.
type ExplanationCache interface {
	Ping(ctx context.Context) error
	Stats() service.CacheStats
}

// CacheCheck probes the explanation cache. An unreachable Redis tier is a
// warning because the memory tier keeps serving.
type CacheCheck struct {
	cache ExplanationCache
}

// NewCacheCheck creates a cache probe.
func NewCacheCheck(cache ExplanationCache) *CacheCheck {
	return &CacheCheck{cache: cache}
}

func (c *CacheCheck) Name() string { return "explanation_cache" }

func (c *CacheCheck) Check(ctx context.Context) Component {
	start := time.Now()
	if c.cache == nil {
		return Component{
			Name:     c.Name(),
			Status:   StateWarning,
			Message:  "Cache not configured",
			Duration: time.Since(start),
		}
	}
	if err := c.cache.Ping(ctx); err != nil {
		return Component{
			Name:     c.Name(),
			Status:   StateWarning,
			Message:  "Redis tier unreachable, memory tier only",
			Duration: time.Since(start),
			Error:    err.Error(),
		}
	}

	stats := c.cache.Stats()
	return Component{
		Name:     c.Name(),
		Status:   StateHealthy,
		Message:  "Cache operational",
		Duration: time.Since(start),
		Metadata: map[string]interface{}{
			"total_requests": stats.TotalRequests,
			"memory_hits":    stats.MemoryHits,
			"redis_hits":     stats.RedisHits,
			"stores":         stats.Stores,
		},
	}
}
