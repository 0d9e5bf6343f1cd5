// Package testdb provides SurrealDB-backed test databases for Momoso.
//
// Each TestDB connects to the instance named by MOMOSO_TEST_DB_HOST and
// MOMOSO_TEST_DB_PORT (localhost:8000 by default), uses a fresh namespace
// and applies the embedded migrations.
//
//	func TestSomething(t *testing.T) {
//	    tdb := testdb.New(t)
//	    defer tdb.Close()
//	}
//
// Tests are skipped when the database is unreachable or -short is set.
// Setting MOMOSO_TEST_DB_REQUIRED makes an unreachable database fatal,
// which is what CI should do.
//
// For subtests that share schema:
//
//	shared := testdb.NewShared(t)
//	t.Run("create", func(t *testing.T) { tdb := shared.SetupSubtest(t) })
package testdb
