package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/0ui-labs/fieldmatch/pkg/embedcache/postgres"
)

const testEmbeddingDim = 4

// testDSN returns the test database DSN from the environment, or skips the
// test if FIELDMATCH_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("FIELDMATCH_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("FIELDMATCH_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a fresh [postgres.Store] against a clean cache table.
func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	defer pool.Close()
	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS embedding_cache"); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	store, err := postgres.New(ctx, dsn, testEmbeddingDim)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func TestNew_RejectsNonPositiveDimensions(t *testing.T) {
	t.Parallel()

	// Validation fires before any connection attempt, so this needs no
	// database.
	for _, dims := range []int{0, -1} {
		if _, err := postgres.New(context.Background(), "postgres://unused", dims); err == nil {
			t.Errorf("New with dimensions %d: want error, got nil", dims)
		}
	}
}

func TestStore_SetAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	want := []float32{0.1, -0.2, 0.3, 0.4}
	if err := store.Set(ctx, "video rating", want, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok, err := store.Get(ctx, "video rating")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("Get: ok=false for freshly written key")
	}
	if len(got) != len(want) {
		t.Fatalf("Get returned %d values, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestStore_Miss(t *testing.T) {
	store := newTestStore(t)

	vec, ok, err := store.Get(context.Background(), "never written")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok || vec != nil {
		t.Errorf("Get on unknown key: got (%v, %v), want (nil, false)", vec, ok)
	}
}

func TestStore_OverwriteReplacesVector(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "k", []float32{1, 1, 1, 1}, time.Minute); err != nil {
		t.Fatalf("first Set: %v", err)
	}
	want := []float32{2, 2, 2, 2}
	if err := store.Set(ctx, "k", want, time.Minute); err != nil {
		t.Fatalf("second Set: %v", err)
	}

	got, ok, err := store.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get: (ok=%v, err=%v), want hit", ok, err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %v, want %v (latest write)", i, got[i], want[i])
		}
	}
}

func TestStore_ExpiredRowIsAMiss(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "short lived", []float32{1, 2, 3, 4}, 50*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}

	time.Sleep(120 * time.Millisecond)

	if _, ok, err := store.Get(ctx, "short lived"); err != nil || ok {
		t.Errorf("Get after TTL: got (ok=%v, err=%v), want clean miss", ok, err)
	}
	// The lazy eviction above must have removed the row for good.
	if _, ok, err := store.Get(ctx, "short lived"); err != nil || ok {
		t.Errorf("repeated Get after TTL: got (ok=%v, err=%v), want clean miss", ok, err)
	}
}

func TestStore_Sweep(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"stale-a", "stale-b"} {
		if err := store.Set(ctx, key, []float32{1, 2, 3, 4}, 10*time.Millisecond); err != nil {
			t.Fatalf("Set(%q): %v", key, err)
		}
	}
	if err := store.Set(ctx, "fresh", []float32{1, 2, 3, 4}, time.Hour); err != nil {
		t.Fatalf("Set(fresh): %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	removed, err := store.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 2 {
		t.Errorf("Sweep removed %d rows, want 2", removed)
	}

	if _, ok, err := store.Get(ctx, "fresh"); err != nil || !ok {
		t.Errorf("fresh entry after Sweep: got (ok=%v, err=%v), want hit", ok, err)
	}
}

// The vector column is declared with a fixed dimension; a write with the
// wrong width must fail loudly rather than store a truncated vector.
func TestStore_RejectsWrongDimension(t *testing.T) {
	store := newTestStore(t)

	err := store.Set(context.Background(), "bad width", []float32{1, 2, 3}, time.Minute)
	if err == nil {
		t.Fatal("Set with 3-dim vector into a 4-dim column: want error, got nil")
	}
}
