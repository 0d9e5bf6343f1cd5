// Package fixtures provides test data factories for Momoso integration tests.
//
//	f := fixtures.New(tdb.DB)
//	writer := f.CreateUser(t)
//	novel := f.CreateNovel(t, writer, "romance")
//	f.AppendEpisode(t, novel, "It began in the rain.")
//	d := f.CreateDiscussion(t, novel, writer, fixtures.WithCapacity(2))
//
// Option functions customize defaults. Unique emails and nicknames are
// generated automatically, and data disappears with the TestDB namespace.
package fixtures
