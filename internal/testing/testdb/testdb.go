package testdb

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/momoso/api/internal/database"
	"github.com/momoso/api/migrations"
)

// TestDB provides an isolated database environment for testing.
// Each TestDB instance gets a unique namespace to ensure test isolation.
type TestDB struct {
	DB        database.Database
	Namespace string
	Database  string
	t         *testing.T
}

var (
	// counterMu protects the namespace counter
	counterMu sync.Mutex
	counter   int64
)

// getTestConfig returns database config from environment or defaults
func getTestConfig() database.Config {
	return database.Config{
		Host:     envOr("MOMOSO_TEST_DB_HOST", "localhost"),
		Port:     envOr("MOMOSO_TEST_DB_PORT", "8000"),
		User:     envOr("MOMOSO_TEST_DB_USER", "root"),
		Password: envOr("MOMOSO_TEST_DB_PASSWORD", "root"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// uniqueNamespace generates a unique namespace for test isolation
func uniqueNamespace() string {
	counterMu.Lock()
	counter++
	n := counter
	counterMu.Unlock()
	return fmt.Sprintf("test_%d_%d", time.Now().UnixNano(), n)
}

// New creates a new isolated test database with the schema applied.
// Set MOMOSO_TEST_DB_REQUIRED=1 to turn an unreachable database into a
// failure instead of a skip.
func New(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("testdb: skipped in -short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := getTestConfig()
	cfg.Namespace = uniqueNamespace()
	cfg.Database = "test"

	db := database.NewSurrealDB(cfg)
	if err := db.Connect(ctx); err != nil {
		if os.Getenv("MOMOSO_TEST_DB_REQUIRED") != "" {
			t.Fatalf("testdb: failed to connect: %v", err)
		}
		t.Skipf("testdb: SurrealDB unavailable at %s:%s: %v", cfg.Host, cfg.Port, err)
	}

	tdb := &TestDB{
		DB:        db,
		Namespace: cfg.Namespace,
		Database:  cfg.Database,
		t:         t,
	}

	if err := migrations.Apply(ctx, db); err != nil {
		_ = db.Close()
		t.Fatalf("testdb: %v", err)
	}

	return tdb
}

// Close cleans up the test database by removing the namespace.
func (tdb *TestDB) Close() {
	if tdb.DB == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	query := fmt.Sprintf("REMOVE NAMESPACE %s", tdb.Namespace)
	_ = tdb.DB.Execute(ctx, query, nil) // Ignore errors on cleanup

	_ = tdb.DB.Close()
}

// Reset clears all data from tables while preserving schema.
func (tdb *TestDB) Reset(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, table := range tdb.tables(ctx, t) {
		if err := tdb.DB.Execute(ctx, fmt.Sprintf("DELETE FROM %s", table), nil); err != nil {
			t.Logf("testdb: failed to clear table %s: %v", table, err)
		}
	}
}

// tables lists the tables INFO FOR DB reports
func (tdb *TestDB) tables(ctx context.Context, t *testing.T) []string {
	results, err := tdb.DB.Query(ctx, "INFO FOR DB", nil)
	if err != nil {
		t.Fatalf("testdb: failed to get db info: %v", err)
	}

	var names []string
	for _, r := range results {
		resp, ok := r.(map[string]interface{})
		if !ok {
			continue
		}
		info := resp
		if inner, ok := resp["result"].(map[string]interface{}); ok {
			info = inner
		}
		tables, ok := info["tables"].(map[string]interface{})
		if !ok {
			continue
		}
		for name := range tables {
			if !strings.ContainsAny(name, " ;") {
				names = append(names, name)
			}
		}
	}
	return names
}

// Ctx returns a context with a reasonable timeout for test operations.
// It is cancelled when the test finishes.
func (tdb *TestDB) Ctx() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	tdb.t.Cleanup(cancel)
	return ctx
}

// MustExec executes a query and fails the test on error.
func (tdb *TestDB) MustExec(query string, vars map[string]interface{}) {
	tdb.t.Helper()
	if err := tdb.DB.Execute(tdb.Ctx(), query, vars); err != nil {
		tdb.t.Fatalf("testdb: exec failed: %v\nQuery: %s", err, query)
	}
}

// MustQuery executes a query and returns results, failing the test on error.
func (tdb *TestDB) MustQuery(query string, vars map[string]interface{}) []interface{} {
	tdb.t.Helper()
	results, err := tdb.DB.Query(tdb.Ctx(), query, vars)
	if err != nil {
		tdb.t.Fatalf("testdb: query failed: %v\nQuery: %s", err, query)
	}
	return results
}

// Shared creates a TestDB that can be shared across subtests.
type Shared struct {
	*TestDB
}

// NewShared creates a shared test database for use across multiple subtests.
func NewShared(t *testing.T) *Shared {
	return &Shared{TestDB: New(t)}
}

// SetupSubtest resets the database and returns the TestDB for use in a subtest.
// Call this at the start of each t.Run() block.
func (s *Shared) SetupSubtest(t *testing.T) *TestDB {
	t.Helper()
	s.TestDB.t = t
	s.TestDB.Reset(t)
	return s.TestDB
}
