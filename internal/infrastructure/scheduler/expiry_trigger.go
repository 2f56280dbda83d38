package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ExpirySweeper expires mandates that have not been used for too long
type ExpirySweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// ExpiryTriggerConfig holds configuration for the daily expiry sweep
type ExpiryTriggerConfig struct {
	// Hour and Minute of the daily run, 24h clock in the server's zone
	Hour   int
	Minute int

	// CheckInterval is how often to check if it's time to run
	CheckInterval time.Duration
}

// DefaultExpiryTriggerConfig returns default trigger configuration
func DefaultExpiryTriggerConfig() ExpiryTriggerConfig {
	return ExpiryTriggerConfig{
		Hour:          3,
		Minute:        0,
		CheckInterval: time.Minute,
	}
}

// ExpiryTrigger runs the mandate expiry sweep once a day
type ExpiryTrigger struct {
	config  ExpiryTriggerConfig
	sweeper ExpirySweeper
	logger  *zap.Logger
	now     func() time.Time

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	lastRunDate string
}

// NewExpiryTrigger creates a new expiry trigger
func NewExpiryTrigger(config ExpiryTriggerConfig, sweeper ExpirySweeper, logger *zap.Logger) *ExpiryTrigger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = time.Minute
	}
	return &ExpiryTrigger{
		config:  config,
		sweeper: sweeper,
		logger:  logger.Named("sdd.expiry"),
		now:     time.Now,
	}
}

// Start starts the trigger loop
func (c *ExpiryTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("Expiry trigger started",
		zap.Int("hour", c.config.Hour),
		zap.Int("minute", c.config.Minute),
	)
	return nil
}

// Stop stops the trigger loop
func (c *ExpiryTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("Expiry trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *ExpiryTrigger) runLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkAndTrigger(ctx)
		}
	}
}

// checkAndTrigger runs the sweep at most once per calendar day, at the
// configured time. It reports whether the sweep ran.
func (c *ExpiryTrigger) checkAndTrigger(ctx context.Context) bool {
	now := c.now()
	currentDate := now.Format("2006-01-02")

	c.mu.Lock()
	if c.lastRunDate == currentDate {
		c.mu.Unlock()
		return false
	}
	if now.Hour() != c.config.Hour || now.Minute() != c.config.Minute {
		c.mu.Unlock()
		return false
	}
	c.lastRunDate = currentDate
	c.mu.Unlock()

	c.RunNow(ctx)
	return true
}

// RunNow runs the sweep immediately
func (c *ExpiryTrigger) RunNow(ctx context.Context) {
	expired, err := c.sweeper.SweepExpired(ctx)
	if err != nil {
		c.logger.Error("Mandate expiry sweep failed", zap.Error(err))
		return
	}
	c.logger.Info("Mandate expiry sweep finished", zap.Int("expired", expired))
}
