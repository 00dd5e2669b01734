package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgx-risk-server/internal/domain"
)

func testExplanationKey(drug string) ExplanationKey {
	return ExplanationKey{
		Gene:      domain.CYP2D6,
		Diplotype: "*4/*4",
		Phenotype: domain.PoorMetabolizer,
		Drug:      drug,
		RiskLabel: domain.RiskToxic,
	}
}

func testBundle(summary string) domain.ExplanationBundle {
	return domain.ExplanationBundle{
		Summary:             summary,
		PatientSummary:      "patient summary",
		BestMedicine:        "Consider Morphine",
		DoctorTalkingPoints: []string{"one", "two"},
		CardTitle:           "Discussion Point: CODEINE and CYP2D6",
		CardContent:         "- card content",
		Source:              domain.ExplanationSourceLLM,
	}
}

func TestExplanationCache_MemoryRoundTrip(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress logs during testing
	cache, err := NewExplanationCache(logger, ExplanationCacheConfig{})
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	key := testExplanationKey("CODEINE")

	_, ok := cache.Get(ctx, key)
	assert.False(t, ok)

	want := testBundle("cached summary")
	cache.Set(ctx, key, want)

	got, ok := cache.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, want, got)

	stats := cache.Stats()
	assert.Equal(t, int64(2), stats.TotalRequests)
	assert.Equal(t, int64(1), stats.MemoryMisses)
	assert.Equal(t, int64(1), stats.MemoryHits)
	assert.Equal(t, int64(1), stats.Stores)
	assert.Equal(t, int64(0), stats.ErrorCount)
}

func TestExplanationCache_MemoryExpiry(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress logs during testing
	cache, err := NewExplanationCache(logger, ExplanationCacheConfig{MemoryTTL: time.Nanosecond})
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	key := testExplanationKey("CODEINE")
	cache.Set(ctx, key, testBundle("short-lived"))

	time.Sleep(time.Millisecond)

	_, ok := cache.Get(ctx, key)
	assert.False(t, ok)
	assert.Equal(t, int64(1), cache.Stats().MemoryMisses)
}

func TestExplanationCache_KeyIsolation(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress logs during testing
	cache, err := NewExplanationCache(logger, ExplanationCacheConfig{})
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	cache.Set(ctx, testExplanationKey("CODEINE"), testBundle("codeine bundle"))

	_, ok := cache.Get(ctx, testExplanationKey("TRAMADOL"))
	assert.False(t, ok, "a different drug must not share the cache entry")
}

func TestExplanationKey_String(t *testing.T) {
	key := testExplanationKey("CODEINE")

	first := key.String()
	assert.True(t, strings.HasPrefix(first, "explanation:bundle:"))
	assert.Equal(t, first, key.String())

	variants := []ExplanationKey{
		{Gene: domain.CYP2C19, Diplotype: key.Diplotype, Phenotype: key.Phenotype, Drug: key.Drug, RiskLabel: key.RiskLabel},
		{Gene: key.Gene, Diplotype: "*1/*4", Phenotype: key.Phenotype, Drug: key.Drug, RiskLabel: key.RiskLabel},
		{Gene: key.Gene, Diplotype: key.Diplotype, Phenotype: domain.PhenotypeUnknown, Drug: key.Drug, RiskLabel: key.RiskLabel},
		{Gene: key.Gene, Diplotype: key.Diplotype, Phenotype: key.Phenotype, Drug: "TRAMADOL", RiskLabel: key.RiskLabel},
		{Gene: key.Gene, Diplotype: key.Diplotype, Phenotype: key.Phenotype, Drug: key.Drug, RiskLabel: domain.RiskSafe},
	}
	for _, variant := range variants {
		assert.NotEqual(t, first, variant.String())
	}
}

func TestExplanationCache_ResetStats(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress logs during testing
	cache, err := NewExplanationCache(logger, ExplanationCacheConfig{})
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	cache.Set(ctx, testExplanationKey("CODEINE"), testBundle("bundle"))
	cache.Get(ctx, testExplanationKey("CODEINE"))
	require.NotZero(t, cache.Stats().TotalRequests)

	before := time.Now()
	cache.ResetStats()

	stats := cache.Stats()
	assert.Zero(t, stats.TotalRequests)
	assert.Zero(t, stats.MemoryHits)
	assert.Zero(t, stats.Stores)
	assert.False(t, stats.LastReset.Before(before))
}

func TestExplanationCache_MemoryOnlyLifecycle(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress logs during testing
	cache, err := NewExplanationCache(logger, ExplanationCacheConfig{})
	require.NoError(t, err)

	assert.NoError(t, cache.Ping(context.Background()))
	assert.NoError(t, cache.Close())
}

func TestNewExplanationCache_InvalidRedisURL(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress logs during testing

	_, err := NewExplanationCache(logger, ExplanationCacheConfig{RedisURL: "://bad"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse Redis URL")
}
