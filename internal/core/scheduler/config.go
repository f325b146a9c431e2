package scheduler

import (
	"time"

	"rollcall/internal/core/credential"
	"rollcall/internal/core/worklist"
	"rollcall/internal/platform/config"
)

// Config carries the scheduling knobs
type Config struct {
	ChunkSize        int
	DefaultCooldown  time.Duration
	DefaultBatchSize int
	InitGroupSize    int
	InitPause        time.Duration
	WaitStatusEvery  time.Duration
	ProbeTimeout     time.Duration
}

// DefaultConfig returns the stock settings
func DefaultConfig() Config {
	return Config{
		ChunkSize:        worklist.DefaultChunkSize,
		DefaultCooldown:  credential.DefaultCooldown,
		DefaultBatchSize: credential.DefaultBatchSize,
		InitGroupSize:    5,
		InitPause:        time.Second,
		WaitStatusEvery:  15 * time.Second,
		ProbeTimeout:     2 * time.Minute,
	}
}

// FromConfig reads SCHEDULER_* keys from c, typically config.New().Prefix("SCHEDULER_")
func FromConfig(c config.Conf) Config {
	d := DefaultConfig()
	return Config{
		ChunkSize:        c.MayIntIn("CHUNK_SIZE", d.ChunkSize, 1, 1_000_000),
		DefaultCooldown:  c.MayDuration("DEFAULT_COOLDOWN", d.DefaultCooldown),
		DefaultBatchSize: c.MayIntIn("DEFAULT_BATCH_SIZE", d.DefaultBatchSize, credential.MinBatchSize, credential.MaxBatchSize),
		InitGroupSize:    c.MayIntIn("INIT_GROUP_SIZE", d.InitGroupSize, 5, 10),
		InitPause:        c.MayDuration("INIT_PAUSE", d.InitPause),
		WaitStatusEvery:  c.MayDuration("WAIT_STATUS_EVERY", d.WaitStatusEvery),
		ProbeTimeout:     c.MayDuration("PROBE_TIMEOUT", d.ProbeTimeout),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ChunkSize <= 0 {
		c.ChunkSize = d.ChunkSize
	}
	if c.DefaultBatchSize <= 0 {
		c.DefaultBatchSize = d.DefaultBatchSize
	}
	if c.InitGroupSize <= 0 {
		c.InitGroupSize = d.InitGroupSize
	}
	if c.WaitStatusEvery <= 0 {
		c.WaitStatusEvery = d.WaitStatusEvery
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = d.ProbeTimeout
	}
	return c
}
