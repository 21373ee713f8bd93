// Package janitor runs scheduled memory hygiene: a cron job that
// applies the cleanup heuristics to the store so a long-lived
// companion's memory does not silt up with duplicates and stale notes.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kokoro-ai/kokoro/memory"
	"github.com/kokoro-ai/kokoro/tools"
)

// Config holds the janitor configuration.
type Config struct {
	Enabled bool `yaml:"enabled"`

	// Schedule is a five-field cron expression. Defaults to 04:00 daily.
	Schedule string `yaml:"schedule"`

	// Strategy selects the cleanup heuristic. Defaults to "all".
	Strategy string `yaml:"strategy"`

	// DryRun reports candidates without invalidating them.
	DryRun bool `yaml:"dry_run"`

	// RunTimeout bounds one cleanup pass. Defaults to 1m.
	RunTimeout time.Duration `yaml:"run_timeout"`
}

// defaults fills zero-valued fields.
func (c *Config) defaults() {
	if c.Schedule == "" {
		c.Schedule = "0 4 * * *"
	}
	if c.Strategy == "" {
		c.Strategy = string(tools.StrategyAll)
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = time.Minute
	}
}

// validate checks the strategy against the closed set.
func (c *Config) validate() error {
	switch tools.CleanupStrategy(c.Strategy) {
	case tools.StrategyDuplicates, tools.StrategyOutdated, tools.StrategyLowImportance, tools.StrategyAll:
		return nil
	}
	return fmt.Errorf("janitor: unknown strategy %q", c.Strategy)
}

// Janitor schedules cleanup passes over a memory store.
type Janitor struct {
	cfg    Config
	store  memory.Store
	logger *slog.Logger
	cron   *cron.Cron

	// running skips a tick if the previous pass is still going.
	running sync.Mutex
}

// New builds a Janitor; it does nothing until Start.
func New(cfg Config, store memory.Store, logger *slog.Logger) (*Janitor, error) {
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		cfg:    cfg,
		store:  store,
		logger: logger,
		cron:   cron.New(),
	}, nil
}

// Start registers the schedule and begins ticking. No-op when disabled.
func (j *Janitor) Start() error {
	if !j.cfg.Enabled {
		j.logger.Debug("janitor disabled")
		return nil
	}

	_, err := j.cron.AddFunc(j.cfg.Schedule, func() {
		if !j.running.TryLock() {
			j.logger.Warn("cleanup pass still running, skipping tick")
			return
		}
		defer j.running.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), j.cfg.RunTimeout)
		defer cancel()
		j.runOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("janitor: bad schedule %q: %w", j.cfg.Schedule, err)
	}

	j.cron.Start()
	j.logger.Info("janitor started",
		"schedule", j.cfg.Schedule,
		"strategy", j.cfg.Strategy,
		"dry_run", j.cfg.DryRun,
	)
	return nil
}

// Stop halts the schedule and waits for an in-flight pass to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
	// Barrier: a tick that fired before Stop may still hold the lock.
	j.running.Lock()
	defer j.running.Unlock()
}

// RunNow executes one cleanup pass immediately, outside the schedule.
func (j *Janitor) RunNow(ctx context.Context) error {
	j.running.Lock()
	defer j.running.Unlock()
	return j.runOnceErr(ctx)
}

func (j *Janitor) runOnce(ctx context.Context) {
	if err := j.runOnceErr(ctx); err != nil {
		j.logger.Error("cleanup pass failed", "error", err)
	}
}

func (j *Janitor) runOnceErr(ctx context.Context) error {
	start := time.Now()

	flagged, err := tools.AnalyzeCleanup(ctx, j.store, tools.CleanupStrategy(j.cfg.Strategy))
	if err != nil {
		return err
	}

	invalidated := 0
	if !j.cfg.DryRun {
		for _, c := range flagged {
			if err := j.store.Invalidate(ctx, c.Record.ID); err != nil {
				return fmt.Errorf("janitor: invalidate %s: %w", c.Record.ID, err)
			}
			invalidated++
		}
	}

	j.logger.Info("cleanup pass complete",
		"strategy", j.cfg.Strategy,
		"flagged", len(flagged),
		"invalidated", invalidated,
		"dry_run", j.cfg.DryRun,
		"elapsed", time.Since(start),
	)
	return nil
}
