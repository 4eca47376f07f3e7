package recovery

import (
	"time"

	"github.com/smallbiznis/grievance-portal/internal/config"
)

// Config controls how often stranded complaints are re-dispatched.
type Config struct {
	Enabled     bool
	RunInterval time.Duration
	Threshold   time.Duration
	BatchSize   int
	LockTTL     time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		RunInterval: time.Minute,
		Threshold:   15 * time.Minute,
		BatchSize:   50,
		LockTTL:     time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.Threshold <= 0 {
		c.Threshold = defaults.Threshold
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.LockTTL <= 0 {
		c.LockTTL = c.RunInterval
	}
	return c
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:     cfg.Recovery.Enabled,
		RunInterval: cfg.Recovery.Interval,
		Threshold:   cfg.Recovery.Threshold,
		BatchSize:   cfg.Recovery.BatchSize,
	}.withDefaults()
}
