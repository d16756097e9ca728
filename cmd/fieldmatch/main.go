// Command fieldmatch checks proposed field names against a catalog of
// registered fields and reports exact duplicates, likely typos, and
// semantically equivalent names.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/0ui-labs/fieldmatch/internal/catalog"
	"github.com/0ui-labs/fieldmatch/internal/config"
	"github.com/0ui-labs/fieldmatch/internal/health"
	"github.com/0ui-labs/fieldmatch/internal/observe"
	"github.com/0ui-labs/fieldmatch/internal/resilience"
	"github.com/0ui-labs/fieldmatch/pkg/embedcache"
	"github.com/0ui-labs/fieldmatch/pkg/embedcache/memory"
	"github.com/0ui-labs/fieldmatch/pkg/embedcache/postgres"
	"github.com/0ui-labs/fieldmatch/pkg/embedcache/redis"
	"github.com/0ui-labs/fieldmatch/pkg/provider/embeddings"
	ollamaembed "github.com/0ui-labs/fieldmatch/pkg/provider/embeddings/ollama"
	oaembed "github.com/0ui-labs/fieldmatch/pkg/provider/embeddings/openai"
	"github.com/0ui-labs/fieldmatch/pkg/similarity"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	catalogPath := flag.String("catalog", "catalog.yaml", "path to the field catalog YAML file")
	semantic := flag.Bool("semantic", true, "include embedding-based semantic matching")
	interactive := flag.Bool("interactive", false, "read queries line by line from stdin")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "fieldmatch: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "fieldmatch: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("fieldmatch starting",
		"version", version,
		"config", *configPath,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Field catalog ─────────────────────────────────────────────────────────
	cat, err := catalog.Load(*catalogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fieldmatch: %v\n", err)
		return 2
	}
	candidates := cat.Descriptors()
	if len(candidates) == 0 {
		slog.Warn("catalog is empty; every query will return no matches", "path", *catalogPath)
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	if cfg.Server.MetricsAddr != "" {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
		if err != nil {
			slog.Error("failed to initialise telemetry", "err", err)
			return 1
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.Warn("telemetry shutdown error", "err", err)
			}
		}()
	}
	metrics := observe.DefaultMetrics()
	metrics.CatalogFields.Add(ctx, int64(len(candidates)))

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltins(reg)

	// ── Embeddings provider ───────────────────────────────────────────────────
	provider, chain, err := buildProvider(cfg, reg, metrics)
	if err != nil {
		slog.Error("failed to build embeddings provider", "err", err)
		return 1
	}

	// ── Embedding cache ───────────────────────────────────────────────────────
	if cfg.Cache.Backend == "postgres" && cfg.Cache.EmbeddingDimensions <= 0 && provider != nil {
		cfg.Cache.EmbeddingDimensions = provider.Dimensions()
	}
	rawStore, err := reg.CreateCache(ctx, cfg.Cache)
	if err != nil {
		slog.Error("failed to build embedding cache", "backend", cfg.Cache.Backend, "err", err)
		return 1
	}
	defer closeStore(rawStore)
	store := observe.NewInstrumentedStore(rawStore, metrics)
	slog.Info("embedding cache ready", "backend", cfg.Cache.Backend, "ttl", cfg.Cache.TTL.Std())

	// ── Ops endpoint ──────────────────────────────────────────────────────────
	if cfg.Server.MetricsAddr != "" {
		opsSrv := startOpsServer(cfg, metrics, rawStore, chain)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := opsSrv.Shutdown(shutdownCtx); err != nil {
				slog.Warn("ops endpoint shutdown error", "err", err)
			}
		}()
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg, len(cat.Fields))

	sh := &matchShell{
		eng:        buildEngine(cfg, provider, store),
		provider:   provider,
		store:      store,
		chain:      chain,
		metrics:    metrics,
		candidates: candidates,
		semantic:   *semantic,
	}

	if *interactive {
		return runInteractive(ctx, sh, *configPath)
	}

	// ── One-shot query ────────────────────────────────────────────────────────
	query := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if query == "" {
		fmt.Fprintln(os.Stderr, "fieldmatch: no query given — pass a field name as arguments or use -interactive")
		return 1
	}
	if err := sh.run(ctx, query); err != nil {
		slog.Error("match failed", "query", query, "err", err)
		return 1
	}
	return 0
}

// ── Provider and cache wiring ───────────────────────────────────────────────────

// builtins maps registry category names to the implementations that ship with
// fieldmatch. Used for startup logging.
var builtins = map[string][]string{
	"embeddings": {"openai", "ollama"},
	"cache":      {"memory", "redis", "postgres"},
}

// memoryCleanupInterval is how often the in-memory cache sweeps expired
// entries in the long-running interactive mode.
const memoryCleanupInterval = 10 * time.Minute

// registerBuiltins wires all built-in embeddings and cache factories into reg.
func registerBuiltins(reg *config.Registry) {
	// ── Embeddings ────────────────────────────────────────────────────────────

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, oaembed.WithOrganization(org))
		}
		if dims := optInt(entry.Options, "dimensions"); dims > 0 {
			opts = append(opts, oaembed.WithDimensions(dims))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []ollamaembed.Option
		if ka := optString(entry.Options, "keep_alive"); ka != "" {
			d, err := time.ParseDuration(ka)
			if err != nil {
				return nil, fmt.Errorf("ollama option keep_alive: %w", err)
			}
			opts = append(opts, ollamaembed.WithKeepAlive(d))
		}
		if dims := optInt(entry.Options, "dimensions"); dims > 0 {
			opts = append(opts, ollamaembed.WithDimensions(dims))
		}
		return ollamaembed.New(entry.BaseURL, entry.Model, opts...)
	})

	// ── Caches ────────────────────────────────────────────────────────────────

	reg.RegisterCache("memory", func(_ context.Context, c config.CacheConfig) (embedcache.Store, error) {
		return memory.New(c.TTL.Std(), memoryCleanupInterval), nil
	})

	reg.RegisterCache("redis", func(ctx context.Context, c config.CacheConfig) (embedcache.Store, error) {
		return redis.New(ctx, redis.Config{
			Addr:       c.RedisAddr,
			Password:   c.RedisPassword,
			DB:         c.RedisDB,
			DefaultTTL: c.TTL.Std(),
		})
	})

	reg.RegisterCache("postgres", func(ctx context.Context, c config.CacheConfig) (embedcache.Store, error) {
		return postgres.New(ctx, c.PostgresDSN, c.EmbeddingDimensions)
	})

	// Debug log of all registered implementations.
	for kind, names := range builtins {
		for _, name := range names {
			slog.Debug("registered builtin", "kind", kind, "name", name)
		}
	}
}

// buildProvider instantiates the configured embeddings provider, wrapping each
// backend in metrics instrumentation. When fallbacks are configured the
// backends are chained behind per-backend circuit breakers; the returned
// chain is nil otherwise.
func buildProvider(cfg *config.Config, reg *config.Registry, m *observe.Metrics) (embeddings.Provider, *resilience.EmbeddingsFallback, error) {
	name := cfg.Providers.Embeddings.Name
	if name == "" {
		return nil, nil, nil
	}

	primary, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
	if err != nil {
		return nil, nil, fmt.Errorf("create embeddings provider %q: %w", name, err)
	}
	slog.Info("provider created",
		"kind", "embeddings",
		"name", name,
		"model", primary.ModelID(),
		"dimensions", primary.Dimensions(),
	)

	if len(cfg.Providers.Fallbacks) == 0 {
		return observe.NewInstrumentedProvider(name, primary, m), nil, nil
	}

	chain := resilience.NewEmbeddingsFallback(observe.NewInstrumentedProvider(name, primary, m), name, resilience.FallbackConfig{})
	for _, fb := range cfg.Providers.Fallbacks {
		p, err := reg.CreateEmbeddings(fb)
		if err != nil {
			return nil, nil, fmt.Errorf("create fallback embeddings provider %q: %w", fb.Name, err)
		}
		chain.AddFallback(fb.Name, observe.NewInstrumentedProvider(fb.Name, p, m))
		slog.Info("provider created", "kind", "embeddings-fallback", "name", fb.Name, "model", p.ModelID())
	}
	return chain, chain, nil
}

// buildEngine constructs a matching engine from the current config. Cheap;
// rebuilt wholesale when tunables change at runtime.
func buildEngine(cfg *config.Config, provider embeddings.Provider, store embedcache.Store) *similarity.Engine {
	opts := []similarity.Option{
		similarity.WithMinScore(cfg.Matching.MinScore),
		similarity.WithEditDistanceMax(cfg.Matching.EditDistanceMax),
		similarity.WithSemanticThreshold(cfg.Matching.SemanticThreshold),
		similarity.WithSemanticBudget(cfg.Matching.SemanticBudget.Std()),
		similarity.WithEmbedConcurrency(cfg.Matching.EmbedConcurrency),
		similarity.WithCacheTTL(cfg.Cache.TTL.Std()),
	}
	if provider != nil {
		opts = append(opts, similarity.WithProvider(provider))
	}
	if store != nil {
		opts = append(opts, similarity.WithCache(store))
	}
	return similarity.New(opts...)
}

// closeStore releases cache backend resources. The redis and postgres stores
// expose different Close signatures; the in-memory store has none.
func closeStore(s embedcache.Store) {
	switch c := s.(type) {
	case interface{ Close() error }:
		if err := c.Close(); err != nil {
			slog.Warn("cache close error", "err", err)
		}
	case interface{ Close() }:
		c.Close()
	}
}

// ── Ops endpoint ────────────────────────────────────────────────────────────────

// startOpsServer serves /metrics, /healthz, and /readyz on the configured
// address. Readiness probes the cache backend and, when a fallback chain is
// configured, reports unready once every backend's circuit breaker is open.
func startOpsServer(cfg *config.Config, m *observe.Metrics, rawStore embedcache.Store, chain *resilience.EmbeddingsFallback) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())

	var checkers []health.Checker
	if p, ok := rawStore.(health.Pinger); ok {
		checkers = append(checkers, health.PingChecker("cache", p))
	}
	if chain != nil {
		checkers = append(checkers, health.Checker{
			Name: "embeddings",
			Check: func(context.Context) error {
				for _, st := range chain.BreakerStates() {
					if st != resilience.StateOpen {
						return nil
					}
				}
				return errors.New("all embedding backends have open circuit breakers")
			},
		})
	}
	health.New(checkers...).Register(mux)

	srv := &http.Server{
		Addr:              cfg.Server.MetricsAddr,
		Handler:           observe.Middleware(m)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("ops endpoint listening", "addr", cfg.Server.MetricsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("ops endpoint error", "err", err)
		}
	}()
	return srv
}

// ── Query execution ─────────────────────────────────────────────────────────────

// matchShell bundles everything one query needs. The engine is swappable so
// the config watcher can apply new matching tunables mid-session.
type matchShell struct {
	mu         sync.RWMutex
	eng        *similarity.Engine
	provider   embeddings.Provider
	store      embedcache.Store
	chain      *resilience.EmbeddingsFallback
	metrics    *observe.Metrics
	candidates []similarity.FieldDescriptor
	semantic   bool
}

func (s *matchShell) engine() *similarity.Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.eng
}

// run executes one query, records telemetry, and prints the result table.
func (s *matchShell) run(ctx context.Context, query string) error {
	start := time.Now()
	results, err := s.engine().FindSimilar(ctx, query, s.candidates, s.semantic)
	elapsed := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.RecordMatchRequest(ctx, s.semantic, status, elapsed.Seconds())
	for _, r := range results {
		s.metrics.RecordMatchResult(ctx, string(r.Kind))
	}
	if s.chain != nil {
		for name, st := range s.chain.BreakerStates() {
			s.metrics.RecordCircuitState(ctx, name, int64(st))
		}
	}

	if err != nil {
		return err
	}
	printResults(query, results, elapsed)
	return nil
}

// onConfigChange applies the hot-reloadable settings: log level and matching
// tunables. Cache and provider changes require a restart.
func (s *matchShell) onConfigChange(old, new *config.Config) {
	d := config.Diff(old, new)
	if !d.Any() {
		return
	}
	if d.LogLevelChanged {
		slog.SetDefault(newLogger(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.MatchingChanged {
		s.mu.Lock()
		s.eng = buildEngine(new, s.provider, s.store)
		s.mu.Unlock()
		slog.Info("matching tunables reloaded",
			"min_score", new.Matching.MinScore,
			"edit_distance_max", new.Matching.EditDistanceMax,
			"semantic_threshold", new.Matching.SemanticThreshold,
			"semantic_budget", new.Matching.SemanticBudget.Std(),
			"embed_concurrency", new.Matching.EmbedConcurrency,
		)
	}
}

// printResults renders ranked matches as an aligned table.
func printResults(query string, results []similarity.SimilarityResult, elapsed time.Duration) {
	rounded := elapsed.Round(time.Microsecond)
	if len(results) == 0 {
		fmt.Printf("no similar fields found for %q (%s)\n", query, rounded)
		return
	}

	nameW := len("FIELD")
	for _, r := range results {
		if n := utf8.RuneCountInString(fieldLabel(r.Field)); n > nameW {
			nameW = n
		}
	}

	fmt.Printf("%d similar field(s) for %q (%s):\n\n", len(results), query, rounded)
	fmt.Printf("  %-6s  %-14s  %-*s  %s\n", "SCORE", "KIND", nameW, "FIELD", "WHY")
	for _, r := range results {
		fmt.Printf("  %-6.2f  %-14s  %-*s  %s\n", r.Score, r.Kind, nameW, fieldLabel(r.Field), r.Explanation)
	}
}

// fieldLabel renders a candidate as "Name [type] (id)".
func fieldLabel(f similarity.FieldDescriptor) string {
	if f.Type != "" {
		return fmt.Sprintf("%s [%s] (%s)", f.Name, f.Type, f.ID)
	}
	return fmt.Sprintf("%s (%s)", f.Name, f.ID)
}

// ── Interactive mode ────────────────────────────────────────────────────────────

// runInteractive reads one query per line from stdin until EOF, Ctrl+C, or an
// exit command. A config watcher hot-reloads tunables while the shell runs.
func runInteractive(ctx context.Context, sh *matchShell, configPath string) int {
	w, err := config.NewWatcher(configPath, sh.onConfigChange, config.WithInterval(2*time.Second))
	if err != nil {
		slog.Error("config watcher failed to start", "err", err)
		return 1
	}
	defer w.Stop()

	fmt.Println(`interactive mode — type a field name and press Enter ("exit" or Ctrl+D to quit)`)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			slog.Warn("stdin read error", "err", err)
		}
	}()

	for {
		fmt.Print("> ")
		select {
		case <-ctx.Done():
			fmt.Println()
			return 0
		case line, ok := <-lines:
			if !ok {
				fmt.Println()
				return 0
			}
			query := strings.TrimSpace(line)
			if query == "" {
				continue
			}
			if query == "exit" || query == "quit" {
				return 0
			}
			if err := sh.run(ctx, query); err != nil {
				fmt.Fprintf(os.Stderr, "fieldmatch: %v\n", err)
			}
		}
	}
}

// ── Startup summary ─────────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, catalogSize int) {
	fmt.Println("╔════════════════════════════════════════╗")
	fmt.Println("║      fieldmatch — startup summary      ║")
	fmt.Println("╠════════════════════════════════════════╣")
	providerVal := cfg.Providers.Embeddings.Name
	if providerVal != "" && cfg.Providers.Embeddings.Model != "" {
		providerVal += " / " + cfg.Providers.Embeddings.Model
	}
	printRow("Provider", providerVal)
	if n := len(cfg.Providers.Fallbacks); n > 0 {
		printRow("Fallbacks", fmt.Sprintf("%d configured", n))
	}
	printRow("Cache", cfg.Cache.Backend)
	printRow("Min score", fmt.Sprintf("%.2f", cfg.Matching.MinScore))
	printRow("Edit distance", fmt.Sprintf("≤ %d", cfg.Matching.EditDistanceMax))
	printRow("Sem. threshold", fmt.Sprintf("%.2f", cfg.Matching.SemanticThreshold))
	printRow("Sem. budget", cfg.Matching.SemanticBudget.Std().String())
	printRow("Catalog", fmt.Sprintf("%d fields", catalogSize))
	ops := cfg.Server.MetricsAddr
	if ops == "" {
		ops = "(disabled)"
	}
	printRow("Ops endpoint", ops)
	fmt.Println("╚════════════════════════════════════════╝")
}

func printRow(label, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if utf8.RuneCountInString(value) > 20 {
		value = string([]rune(value)[:19]) + "…"
	}
	fmt.Printf("║  %-14s : %-20s ║\n", label, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// ── Helpers ─────────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// optInt extracts an integer value from a provider Options map[string]any.
// Returns 0 if the map is nil, the key is absent, or the value is not an int.
func optInt(opts map[string]any, key string) int {
	if opts == nil {
		return 0
	}
	v, ok := opts[key]
	if !ok {
		return 0
	}
	n, ok := v.(int)
	if !ok {
		return 0
	}
	return n
}
