package worker

import (
	"time"

	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/config"
)

// Config controls the recurring billing worker loop.
type Config struct {
	BatchSize    int
	PollInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		BatchSize:    50,
		PollInterval: time.Minute,
	}
}

// FromAppConfig maps the service configuration onto the worker loop.
func FromAppConfig(cfg config.Config) Config {
	return Config{
		BatchSize:    cfg.Recurring.BatchSize,
		PollInterval: cfg.Recurring.PollInterval,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}

	if c.PollInterval <= 0 {
		c.PollInterval = defaults.PollInterval
	}
	return c
}
