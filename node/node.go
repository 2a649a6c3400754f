// Package node defines the lifecycle and tick contract the scheduler
// drives a user-provided unit of work through.
package node

import (
	"time"

	"go.uber.org/zap"
)

// Node is the user-provided unit of work. It is constructed in user
// code, handed to the scheduler, and from then on exclusively owned by
// it: Init is called once, Tick repeatedly, Shutdown once, then it is
// dropped.
type Node interface {
	// Name identifies the node for logs, heartbeats, and control files.
	Name() string
	// Init runs once before the first Tick.
	Init(info *Info) error
	// Tick runs once per scheduler cycle. It must not block
	// indefinitely — the scheduler is cooperative and run-to-completion.
	Tick(info *Info) error
	// Shutdown runs once after the last Tick.
	Shutdown(info *Info) error
}

// State is the node's externally observable lifecycle state, mirrored
// into its heartbeat record.
type State int

const (
	StateInitializing State = iota
	StateRunning
	StatePaused
	StateStopped
	StateError
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	case StateError:
		return "error"
	default:
		return "initializing"
	}
}

// Info is the per-node handle passed to every lifecycle call. The
// scheduler owns and mutates it between calls; the node should treat
// fields other than Metrics as read-only.
type Info struct {
	// TickIndex counts completed ticks, starting at 0 for the first one.
	TickIndex uint64
	// Elapsed is wall time since Init was called, updated after each Tick.
	Elapsed time.Duration
	// LastTickDuration is how long the previous Tick call took.
	LastTickDuration time.Duration
	// State is this node's current lifecycle state.
	State State
	// Log is a structured sink scoped to this node's name.
	Log *zap.SugaredLogger
	// Metrics is a mutable slot for tick-level metrics the node wants
	// surfaced; the scheduler does not interpret its contents.
	Metrics map[string]float64
}
