package module

import (
	"time"

	"rollcall/internal/core/scheduler"
	"rollcall/internal/platform/config"
)

// Options controls session discovery and the defaults new sessions get
type Options struct {
	Dir              string
	Glob             string
	DefaultCooldown  time.Duration
	DefaultBatchSize int
}

// FromConfig reads SESSIONS_* and the scheduler defaults
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("SESSIONS_")
	sc := scheduler.FromConfig(cfg.Prefix("SCHEDULER_"))
	return Options{
		Dir:              c.MayString("DIR", "./sessions"),
		Glob:             c.MayString("GLOB", "*.session"),
		DefaultCooldown:  sc.DefaultCooldown,
		DefaultBatchSize: sc.DefaultBatchSize,
	}
}
