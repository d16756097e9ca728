package postgres

import (
	"strings"
	"testing"
)

func TestDDL_EmbedsDimension(t *testing.T) {
	t.Parallel()

	ddl := ddlEmbeddingCache(1536)
	if !strings.Contains(ddl, "vector(1536)") {
		t.Errorf("DDL does not pin the vector dimension:\n%s", ddl)
	}
}

// Migrate runs on every start, so each statement must tolerate already
// existing objects.
func TestDDL_Idempotent(t *testing.T) {
	t.Parallel()

	ddl := ddlEmbeddingCache(4)
	for _, marker := range []string{
		"CREATE EXTENSION IF NOT EXISTS",
		"CREATE TABLE IF NOT EXISTS",
		"CREATE INDEX IF NOT EXISTS",
	} {
		if !strings.Contains(ddl, marker) {
			t.Errorf("DDL missing %q:\n%s", marker, ddl)
		}
	}
}
