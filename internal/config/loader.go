package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/0ui-labs/fieldmatch/pkg/similarity"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"embeddings": {"openai", "ollama"},
}

// ValidCacheNames lists the cache backends shipped with this repository.
// Unknown backends are a hard validation error because [Registry.CreateCache]
// could never resolve them.
var ValidCacheNames = []string{"memory", "redis", "postgres"}

// Tunable defaults written into the config before validation. They mirror the
// engine's own defaults so a printed config always shows effective values.
const (
	defaultEditDistanceMax   = 3
	defaultSemanticThreshold = 0.75
	defaultSemanticBudget    = Duration(500 * time.Millisecond)
	defaultEmbedConcurrency  = 4
	defaultCacheTTL          = Duration(24 * time.Hour)
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and validates
// the result. Useful in tests where configs are constructed from string
// literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero-valued fields with their documented defaults.
// Called by [LoadFromReader] before [Validate].
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Matching.MinScore == 0 {
		cfg.Matching.MinScore = similarity.MinScore
	}
	if cfg.Matching.EditDistanceMax == 0 {
		cfg.Matching.EditDistanceMax = defaultEditDistanceMax
	}
	if cfg.Matching.SemanticThreshold == 0 {
		cfg.Matching.SemanticThreshold = defaultSemanticThreshold
	}
	if cfg.Matching.SemanticBudget == 0 {
		cfg.Matching.SemanticBudget = defaultSemanticBudget
	}
	if cfg.Matching.EmbedConcurrency == 0 {
		cfg.Matching.EmbedConcurrency = defaultEmbedConcurrency
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = defaultCacheTTL
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Matching tunables
	if cfg.Matching.MinScore < 0 || cfg.Matching.MinScore > 1 {
		errs = append(errs, fmt.Errorf("matching.min_score %.2f is out of range [0, 1]", cfg.Matching.MinScore))
	}
	if cfg.Matching.EditDistanceMax < 0 {
		errs = append(errs, fmt.Errorf("matching.edit_distance_max %d is negative", cfg.Matching.EditDistanceMax))
	}
	if cfg.Matching.SemanticThreshold < 0 || cfg.Matching.SemanticThreshold >= 1 {
		errs = append(errs, fmt.Errorf("matching.semantic_threshold %.2f is out of range [0, 1)", cfg.Matching.SemanticThreshold))
	}
	if cfg.Matching.SemanticBudget < 0 {
		errs = append(errs, fmt.Errorf("matching.semantic_budget %s is negative", cfg.Matching.SemanticBudget.Std()))
	}
	if cfg.Matching.EmbedConcurrency < 0 {
		errs = append(errs, fmt.Errorf("matching.embed_concurrency %d is negative", cfg.Matching.EmbedConcurrency))
	}

	// Cache backend
	if cfg.Cache.Backend != "" && !slices.Contains(ValidCacheNames, cfg.Cache.Backend) {
		errs = append(errs, fmt.Errorf("cache.backend %q is unknown; valid values: memory, redis, postgres", cfg.Cache.Backend))
	}
	if cfg.Cache.Backend == "redis" && cfg.Cache.RedisAddr == "" {
		errs = append(errs, fmt.Errorf("cache.redis_addr is required when cache.backend is redis"))
	}
	if cfg.Cache.Backend == "postgres" && cfg.Cache.PostgresDSN == "" {
		errs = append(errs, fmt.Errorf("cache.postgres_dsn is required when cache.backend is postgres"))
	}
	if cfg.Cache.Backend == "postgres" && cfg.Cache.EmbeddingDimensions <= 0 && cfg.Providers.Embeddings.Name == "" {
		errs = append(errs, fmt.Errorf("cache.embedding_dimensions is required for the postgres backend when no embedding provider is configured"))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)
	for i, fb := range cfg.Providers.Fallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.fallbacks[%d].name is required", i))
			continue
		}
		validateProviderName("embeddings", fb.Name)
	}

	// Provider availability warnings
	if cfg.Providers.Embeddings.Name == "" {
		slog.Warn("no embedding provider configured; semantic matching will be unavailable")
		if len(cfg.Providers.Fallbacks) > 0 {
			errs = append(errs, fmt.Errorf("providers.fallbacks requires providers.embeddings to be configured"))
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
