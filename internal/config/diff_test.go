package config_test

import (
	"testing"
	"time"

	"github.com/0ui-labs/fieldmatch/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogInfo},
		Matching: config.MatchingConfig{
			MinScore:        0.60,
			EditDistanceMax: 3,
		},
	}
	d := config.Diff(cfg, cfg)
	if d.Any() {
		t.Error("expected no changes for identical configs")
	}
	if d.LogLevelChanged {
		t.Error("expected LogLevelChanged=false for identical configs")
	}
	if d.MatchingChanged {
		t.Error("expected MatchingChanged=false for identical configs")
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.ServerConfig{LogLevel: config.LogInfo}}
	new := &config.Config{Server: config.ServerConfig{LogLevel: config.LogDebug}}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
	if d.MatchingChanged {
		t.Error("expected MatchingChanged=false")
	}
}

func TestDiff_MatchingChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Matching: config.MatchingConfig{
			MinScore:          0.60,
			EditDistanceMax:   3,
			SemanticThreshold: 0.75,
		},
	}
	new := &config.Config{
		Matching: config.MatchingConfig{
			MinScore:          0.60,
			EditDistanceMax:   2,
			SemanticThreshold: 0.75,
		},
	}

	d := config.Diff(old, new)
	if !d.MatchingChanged {
		t.Error("expected MatchingChanged=true")
	}
	if d.NewMatching.EditDistanceMax != 2 {
		t.Errorf("NewMatching.EditDistanceMax = %d, want 2", d.NewMatching.EditDistanceMax)
	}
	if d.LogLevelChanged {
		t.Error("expected LogLevelChanged=false")
	}
}

func TestDiff_SemanticBudgetChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Matching: config.MatchingConfig{SemanticBudget: config.Duration(500 * time.Millisecond)},
	}
	new := &config.Config{
		Matching: config.MatchingConfig{SemanticBudget: config.Duration(time.Second)},
	}

	d := config.Diff(old, new)
	if !d.MatchingChanged {
		t.Error("expected MatchingChanged=true")
	}
	if d.NewMatching.SemanticBudget.Std() != time.Second {
		t.Errorf("NewMatching.SemanticBudget = %s, want 1s", d.NewMatching.SemanticBudget.Std())
	}
}

func TestDiff_CacheChangesAreNotHotReloadable(t *testing.T) {
	t.Parallel()
	old := &config.Config{Cache: config.CacheConfig{Backend: "memory"}}
	new := &config.Config{Cache: config.CacheConfig{Backend: "redis", RedisAddr: "localhost:6379"}}

	d := config.Diff(old, new)
	if d.Any() {
		t.Error("cache backend changes must not appear in the diff")
	}
}

func TestDiff_ProviderChangesAreNotHotReloadable(t *testing.T) {
	t.Parallel()
	old := &config.Config{}
	new := &config.Config{
		Providers: config.ProvidersConfig{
			Embeddings: config.ProviderEntry{Name: "openai"},
		},
	}

	d := config.Diff(old, new)
	if d.Any() {
		t.Error("provider changes must not appear in the diff")
	}
}

func TestDiff_MultipleChanges(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Server:   config.ServerConfig{LogLevel: config.LogInfo},
		Matching: config.MatchingConfig{MinScore: 0.60},
	}
	new := &config.Config{
		Server:   config.ServerConfig{LogLevel: config.LogWarn},
		Matching: config.MatchingConfig{MinScore: 0.70},
	}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if !d.MatchingChanged {
		t.Error("expected MatchingChanged=true")
	}
	if !d.Any() {
		t.Error("expected Any()=true")
	}
}
