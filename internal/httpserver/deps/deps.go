package deps

import (
	"time"

	"github.com/MrSnakeDoc/checkstore/internal/logger"
	"github.com/MrSnakeDoc/checkstore/internal/scheduler"
)

// Database reports the health of the MySQL session.
type Database interface {
	Connected() bool
	LastError() string
}

// FeatureSource exposes the live record feature flags.
type FeatureSource interface {
	Features() map[string]bool
	Disabled() []string
}

// LoopStats exposes the host loop counters.
type LoopStats interface {
	Snapshot() scheduler.StatsSnapshot
	Running() bool
}

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	TimeNow      func() time.Time // for testing, defaults to time.Now
	AllowedCIDRS []string         // IPs allowed to access the operational endpoints
	TrustProxy   bool             // true if running behind a trusted reverse proxy (e.g., cloudflared)
	QueueBackend string           // "redis" | "nats"
	DB           Database         // MySQL session
	Features     FeatureSource    // record feature flags
	Loop         LoopStats        // host loop counters
}

// Now returns the current time through TimeNow when set.
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
