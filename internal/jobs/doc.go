// Package jobs implements background work for the Momoso API.
//
// Jobs run on their own ticker, independently of HTTP request handling,
// and share one lifecycle:
//
//	closer := jobs.NewDiscussionCloser(jobs.DiscussionCloserConfig{
//	    Discussions: discussionService,
//	    Interval:    time.Minute,
//	})
//	closer.Start()
//	defer closer.Stop()
//
// Start and Stop are idempotent. RunOnce performs a single pass
// synchronously. Each pass gets its own timeout.
//
// # Error Handling
//
// Jobs log errors and keep ticking; a failed pass never stops the server.
package jobs
