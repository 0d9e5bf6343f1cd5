package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DiscussionExpirer ends discussions whose end time has passed
type DiscussionExpirer interface {
	CloseExpired(ctx context.Context) (int, error)
}

// DiscussionCloser periodically ends expired discussions
// - Marks scheduled discussions as ended once end_time is reached
// - Summarizes the ones that collected transcripts into meeting notes
type DiscussionCloser struct {
	discussions DiscussionExpirer
	interval    time.Duration
	delay       time.Duration
	timeout     time.Duration
	logger      *slog.Logger
	stopCh      chan struct{}
	wg          sync.WaitGroup
	running     bool
	mu          sync.Mutex
}

// DiscussionCloserConfig holds configuration for the closer job
type DiscussionCloserConfig struct {
	Discussions DiscussionExpirer
	Interval    time.Duration // Default: 1 minute
	// StartDelay postpones the first pass so the server can finish
	// booting. Negative runs the first pass immediately.
	StartDelay time.Duration // Default: 5 seconds
	Timeout    time.Duration // Default: 2 minutes per pass
	Logger     *slog.Logger
}

// NewDiscussionCloser creates a new discussion closer job
func NewDiscussionCloser(cfg DiscussionCloserConfig) *DiscussionCloser {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.StartDelay < 0 {
		cfg.StartDelay = 0
	} else if cfg.StartDelay == 0 {
		cfg.StartDelay = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &DiscussionCloser{
		discussions: cfg.Discussions,
		interval:    cfg.Interval,
		delay:       cfg.StartDelay,
		timeout:     cfg.Timeout,
		logger:      cfg.Logger.With("job", "discussion_closer"),
	}
}

// Start begins the closer loop. Calling it on a running job is a no-op.
func (c *DiscussionCloser) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run(c.stopCh)
	c.logger.Info("discussion closer started", "interval", c.interval)
}

// Stop gracefully stops the closer and waits for an in-flight pass
func (c *DiscussionCloser) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopCh)
	c.mu.Unlock()

	c.wg.Wait()
	c.logger.Info("discussion closer stopped")
}

func (c *DiscussionCloser) run(stop <-chan struct{}) {
	defer c.wg.Done()

	select {
	case <-time.After(c.delay):
	case <-stop:
		return
	}
	c.pass()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.pass()
		case <-stop:
			return
		}
	}
}

func (c *DiscussionCloser) pass() {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	closed, err := c.discussions.CloseExpired(ctx)
	if err != nil {
		c.logger.Error("closing expired discussions failed", "error", err, "closed", closed)
		return
	}
	if closed > 0 {
		c.logger.Info("closed expired discussions", "closed", closed)
	}
}

// RunOnce runs a single pass (for testing or manual trigger)
func (c *DiscussionCloser) RunOnce(ctx context.Context) (int, error) {
	return c.discussions.CloseExpired(ctx)
}

// IsRunning returns whether the closer loop is active
func (c *DiscussionCloser) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
