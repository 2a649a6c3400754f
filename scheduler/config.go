package scheduler

import (
	"time"

	"go.uber.org/zap"
)

// ExecMode selects how the scheduler fans ticks out across nodes.
type ExecMode int

const (
	// ExecSequential runs every node, in priority order, on the
	// scheduler's own goroutine. Default.
	ExecSequential ExecMode = iota
	// ExecParallel runs nodes of distinct priority sequentially but
	// fans equal-priority nodes out across a worker pool via errgroup.
	ExecParallel
	// ExecJIT is semantically equivalent to ExecSequential. It names the
	// extension point for a future hot-path compiled tick
	// representation; no such compiler exists in this runtime, so it
	// runs the Sequential path (see DESIGN.md).
	ExecJIT
	// ExecIsolated gives every node its own goroutine and cycle
	// ticker; the Scheduler becomes a supervisor rather than a driver.
	ExecIsolated
)

func (m ExecMode) String() string {
	switch m {
	case ExecParallel:
		return "parallel"
	case ExecJIT:
		return "jit"
	case ExecIsolated:
		return "isolated"
	default:
		return "sequential"
	}
}

// DefaultTickRate is the scheduler's default cycle rate: 100 Hz.
const DefaultTickRate = time.Second / 100

// Config overrides a Scheduler's default execution behavior.
type Config struct {
	// Mode selects the execution strategy.
	Mode ExecMode
	// TickRate is the target cycle frequency, expressed as the period
	// between cycle starts. Zero uses DefaultTickRate (100 Hz).
	TickRate time.Duration
	// HeartbeatInterval is how often each node's heartbeat file is
	// refreshed. Zero uses heartbeat.DefaultInterval (1 Hz).
	HeartbeatInterval time.Duration
	// ControlPollInterval defaults to TickRate when zero. The execution
	// drivers do not read it: each node's control-command file is polled
	// after every one of its ticks, whatever this field holds.
	ControlPollInterval time.Duration
	// WCETOverrunLimit is how many consecutive deadline misses a node
	// tolerates before the WCET enforcer degrades it (skips its next
	// tick and logs). Zero disables WCET enforcement entirely.
	WCETOverrunLimit int
	// MetricsAddr is not read by the scheduler, which serves no metrics
	// endpoint; tick timing is reported through heartbeat records and
	// node.Info.Metrics.
	MetricsAddr string
	// Logger receives scheduler- and node-scoped structured logs. Nil
	// uses a no-op logger.
	Logger *zap.SugaredLogger
}

func (c Config) withDefaults() Config {
	if c.TickRate <= 0 {
		c.TickRate = DefaultTickRate
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = time.Second
	}
	if c.ControlPollInterval <= 0 {
		c.ControlPollInterval = c.TickRate
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop().Sugar()
	}
	return c
}
