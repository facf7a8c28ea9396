// Package config provides application settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Provider-specific configuration lookup
//
// API credentials are deliberately not part of Settings; the llm package
// reads them from the provider's own environment variables.

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Settings holds all application configuration.
type Settings struct {
	// Provider is the canonical completion backend name.
	Provider string
	// Tiers overrides the provider's default model cascade when set.
	Tiers []string

	Chunk ChunkConfig
	Retry RetryConfig
	Run   RunConfig
	Gen   GenConfig

	// HistoryPath is the sqlite file recording finished jobs.
	HistoryPath string
}

// ChunkConfig controls how extracted text is split into batches.
type ChunkConfig struct {
	BatchTokens   int
	OverlapTokens int
}

// RetryConfig controls the per-tier retry loop.
type RetryConfig struct {
	MaxRetries       int
	BaseDelay        time.Duration
	RateLimitPenalty time.Duration
}

// RunConfig controls dispatch: pacing, concurrency, and the optional
// serial recovery pass.
type RunConfig struct {
	PacingInterval time.Duration
	Concurrency    int
	Turbo          bool
	SerialRetry    bool
	CallTimeout    time.Duration
}

// GenConfig holds generation parameters forwarded with every batch.
// Zero values defer to the backend's own defaults.
type GenConfig struct {
	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int
}

// Provider aliases map to canonical names.
var providerAliases = map[string]string{
	"claude": "anthropic",
	"google": "gemini",
	"gpt":    "openai",
}

// Canonical provider names.
var providers = map[string]bool{
	"gemini":    true,
	"openai":    true,
	"anthropic": true,
}

// New creates settings for the specified provider, loading values from environment variables.
// Returns an error if the provider is unknown or environment variables contain invalid values.
func New(provider string) (Settings, error) {
	provider = normalizeProvider(provider)
	if !providers[provider] {
		return Settings{}, fmt.Errorf("unknown provider: %q", provider)
	}

	batchTokens, err := getEnvInt("CHUNK_BATCH_TOKENS", 10000)
	if err != nil {
		return Settings{}, err
	}

	overlapTokens, err := getEnvInt("CHUNK_OVERLAP_TOKENS", 200)
	if err != nil {
		return Settings{}, err
	}

	maxRetries, err := getEnvInt("RETRY_MAX_ATTEMPTS", 3)
	if err != nil {
		return Settings{}, err
	}

	baseDelay, err := getEnvMillis("RETRY_BASE_DELAY_MS", 2000*time.Millisecond)
	if err != nil {
		return Settings{}, err
	}

	penalty, err := getEnvMillis("RATE_LIMIT_PENALTY_MS", 5000*time.Millisecond)
	if err != nil {
		return Settings{}, err
	}

	pacing, err := getEnvMillis("RATE_LIMIT_INTERVAL_MS", 1000*time.Millisecond)
	if err != nil {
		return Settings{}, err
	}

	concurrency, err := getEnvInt("WORKER_CONCURRENCY", 3)
	if err != nil {
		return Settings{}, err
	}

	turbo, err := getEnvBool("TURBO", false)
	if err != nil {
		return Settings{}, err
	}

	serialRetry, err := getEnvBool("SERIAL_RETRY", true)
	if err != nil {
		return Settings{}, err
	}

	timeoutSec, err := getEnvInt("LLM_TIMEOUT_SECONDS", 120)
	if err != nil {
		return Settings{}, err
	}

	temperature, err := getEnvFloat64("LLM_TEMPERATURE", 0)
	if err != nil {
		return Settings{}, err
	}

	topP, err := getEnvFloat64("LLM_TOP_P", 0)
	if err != nil {
		return Settings{}, err
	}

	topK, err := getEnvInt("LLM_TOP_K", 0)
	if err != nil {
		return Settings{}, err
	}

	maxTokens, err := getEnvInt("LLM_MAX_TOKENS", 0)
	if err != nil {
		return Settings{}, err
	}

	return Settings{
		Provider: provider,
		Tiers:    splitTiers(os.Getenv("MODEL_TIERS")),
		Chunk: ChunkConfig{
			BatchTokens:   batchTokens,
			OverlapTokens: overlapTokens,
		},
		Retry: RetryConfig{
			MaxRetries:       maxRetries,
			BaseDelay:        baseDelay,
			RateLimitPenalty: penalty,
		},
		Run: RunConfig{
			PacingInterval: pacing,
			Concurrency:    concurrency,
			Turbo:          turbo,
			SerialRetry:    serialRetry,
			CallTimeout:    time.Duration(timeoutSec) * time.Second,
		},
		Gen: GenConfig{
			Temperature:     temperature,
			TopP:            topP,
			TopK:            topK,
			MaxOutputTokens: maxTokens,
		},
		HistoryPath: getEnvString("HISTORY_DB", "spokable.db"),
	}, nil
}

// MustNew creates settings for the specified provider.
// Panics if the provider is unknown or environment variables are invalid.
// Use this only when configuration errors should be fatal.
func MustNew(provider string) Settings {
	settings, err := New(provider)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// normalizeProvider converts provider aliases to canonical names.
func normalizeProvider(provider string) string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if canonical, ok := providerAliases[provider]; ok {
		return canonical
	}
	return provider
}

// SupportedProviders returns the list of supported provider names.
func SupportedProviders() []string {
	result := make([]string, 0, len(providers))
	for name := range providers {
		result = append(result, name)
	}
	return result
}

// splitTiers parses a comma-separated model cascade. Empty input means
// "use the provider's defaults".
func splitTiers(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var tiers []string
	for _, tier := range strings.Split(s, ",") {
		if tier = strings.TrimSpace(tier); tier != "" {
			tiers = append(tiers, tier)
		}
	}
	return tiers
}

// Environment variable helpers with proper error handling

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return f, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return b, nil
}

func getEnvMillis(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	ms, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
