// Package scheduler implements the cooperative, priority-ordered node
// runner: each enrolled node is initialized, ticked every cycle in
// priority order, and torn down in reverse priority order, with
// per-node heartbeat publishing, control-command polling, and WCET
// enforcement layered in between ticks.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/horus-rt/horus/control"
	"github.com/horus-rt/horus/heartbeat"
	"github.com/horus-rt/horus/herrors"
	"github.com/horus-rt/horus/node"
	"github.com/horus-rt/horus/runtime"
)

// enrolled bundles a Node with its scheduling metadata and the per-node
// infrastructure (heartbeat writer, control poller, logger) the
// scheduler drives it with.
type enrolled struct {
	n        node.Node
	priority int
	logging  bool

	info      node.Info
	hbWriter  *heartbeat.Writer
	poller    *control.Poller
	log       *zap.SugaredLogger
	initAt    time.Time
	overruns  int     // consecutive WCET misses
	degraded  bool
	wcet      time.Duration
	avgTickMs float64 // exponential moving average of tick duration
}

// tickAvgAlpha weights the most recent tick duration when updating a
// node's rolling average; low enough that one slow outlier cycle does
// not dominate the average reported in its heartbeat.
const tickAvgAlpha = 0.2

// Scheduler drives a set of enrolled Nodes cooperatively, in priority
// order.
type Scheduler struct {
	rt  *runtime.Runtime
	cfg Config

	mu    sync.Mutex
	nodes []*enrolled
}

// New constructs a Scheduler rooted at rt with default Config.
func New(rt *runtime.Runtime) *Scheduler {
	return &Scheduler{rt: rt, cfg: Config{}.withDefaults()}
}

// WithConfig overrides the Scheduler's execution config. It returns the
// receiver so it can be chained onto New.
func (s *Scheduler) WithConfig(cfg Config) *Scheduler {
	s.cfg = cfg.withDefaults()
	return s
}

// WCET returns an AddOption declaring a node's worst-case tick
// duration; a Tick exceeding it WCETOverrunLimit times in a row
// degrades the node (its next tick is skipped and logged, but it
// stays enrolled).
func WCET(d time.Duration) AddOption {
	return func(e *enrolled) { e.wcet = d }
}

// AddOption configures optional per-node scheduling behavior passed to
// Add alongside its required (node, priority, logging) triple.
type AddOption func(*enrolled)

// Add enrolls n at the given priority (0 = highest, runs first within
// a cycle) with per-tick logging enabled or disabled.
func (s *Scheduler) Add(n node.Node, priority int, logging bool, opts ...AddOption) error {
	if n == nil {
		return herrors.New(herrors.InvalidInput, "add", "", fmt.Errorf("nil node"))
	}
	e := &enrolled{n: n, priority: priority, logging: logging}
	for _, opt := range opts {
		opt(e)
	}
	e.log = s.cfg.Logger.Named(n.Name())
	e.hbWriter = heartbeat.NewWriter(s.rt, n.Name(), s.cfg.HeartbeatInterval)
	e.poller = control.NewPoller(s.rt, n.Name())
	e.info = node.Info{State: node.StateInitializing, Log: e.log, Metrics: map[string]float64{}}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.nodes {
		if existing.n.Name() == n.Name() {
			return herrors.New(herrors.InvalidInput, "add", n.Name(), fmt.Errorf("node already enrolled"))
		}
	}
	s.nodes = append(s.nodes, e)
	sort.SliceStable(s.nodes, func(i, j int) bool { return s.nodes[i].priority < s.nodes[j].priority })
	return nil
}

// sortedNodes returns a stable snapshot of enrolled nodes in priority
// order, safe to iterate without holding the scheduler lock across
// user code.
func (s *Scheduler) sortedNodes() []*enrolled {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*enrolled, len(s.nodes))
	copy(out, s.nodes)
	return out
}

// Run drives cycles until ctx is canceled. In Sequential, JIT and
// Parallel mode it then returns ctx.Err(), and it returns nil as soon as
// any one node is sent a stop command. In Isolated mode a stop command
// ends only that node's loop; Run returns nil once ctx is canceled or
// every node's loop has ended.
func (s *Scheduler) Run(ctx context.Context) error {
	nodes := s.sortedNodes()
	if err := s.initAll(nodes); err != nil {
		return err
	}
	defer s.shutdownAll(nodes)

	switch s.cfg.Mode {
	case ExecParallel:
		return s.runParallel(ctx, nodes)
	case ExecIsolated:
		return s.runIsolated(ctx, nodes)
	default: // ExecSequential, ExecJIT
		return s.runSequential(ctx, nodes)
	}
}

// RunFor drives cycles for at most d before returning, useful in tests
// and simulation where the caller wants a bounded run rather than
// driving cancellation externally.
func (s *Scheduler) RunFor(ctx context.Context, d time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	err := s.Run(ctx)
	if err == context.DeadlineExceeded {
		return nil
	}
	return err
}

func (s *Scheduler) initAll(nodes []*enrolled) error {
	for _, e := range nodes {
		e.initAt = time.Now()
		e.info.State = node.StateInitializing
		if err := e.n.Init(&e.info); err != nil {
			return herrors.New(herrors.Initialization, "init", e.n.Name(), err)
		}
		e.info.State = node.StateRunning
	}
	return nil
}

// shutdownAll runs Shutdown in reverse priority order: lowest-priority,
// least-critical nodes are torn down first, mirroring startup order
// reversed.
func (s *Scheduler) shutdownAll(nodes []*enrolled) {
	for i := len(nodes) - 1; i >= 0; i-- {
		e := nodes[i]
		e.info.State = node.StateStopped
		if err := e.n.Shutdown(&e.info); err != nil {
			e.log.Errorw("shutdown failed", "error", err)
		}
	}
}

// tickOne runs a single node's Tick, recovering a panic at the tick
// boundary and converting it into the node entering Error state rather
// than taking down the scheduler or its other nodes.
func (s *Scheduler) tickOne(e *enrolled) {
	if e.info.State == node.StatePaused || e.info.State == node.StateError {
		return
	}
	if e.degraded {
		e.degraded = false // skip exactly one cycle, then retry
		e.log.Warnw("skipping tick: WCET overrun budget exhausted last cycle")
		return
	}

	start := time.Now()
	func() {
		defer func() {
			if r := recover(); r != nil {
				e.info.State = node.StateError
				e.log.Errorw("node panicked, entering error state", "panic", r)
			}
		}()
		if err := e.n.Tick(&e.info); err != nil {
			e.info.State = node.StateError
			e.log.Errorw("tick returned error, entering error state", "error", err)
		}
	}()
	dur := time.Since(start)

	e.info.LastTickDuration = dur
	e.info.Elapsed = time.Since(e.initAt)
	e.info.TickIndex++
	e.updateAvgTick(dur)
	if e.logging {
		e.log.Debugw("tick", "index", e.info.TickIndex, "duration", dur, "avg_duration_ms", e.avgTickMs)
	}

	s.enforceWCET(e, dur)
}

// updateAvgTick folds dur into the node's exponential moving average of
// tick duration. The first tick seeds the average directly rather than
// blending against zero.
func (e *enrolled) updateAvgTick(dur time.Duration) {
	ms := float64(dur.Microseconds()) / 1000.0
	if e.info.TickIndex <= 1 {
		e.avgTickMs = ms
		return
	}
	e.avgTickMs = tickAvgAlpha*ms + (1-tickAvgAlpha)*e.avgTickMs
}

// enforceWCET degrades a node that exceeds its declared worst-case
// execution time WCETOverrunLimit cycles in a row: its next tick is
// skipped rather than letting it silently starve its neighbors forever.
func (s *Scheduler) enforceWCET(e *enrolled, dur time.Duration) {
	if e.wcet <= 0 || s.cfg.WCETOverrunLimit <= 0 {
		return
	}
	if dur <= e.wcet {
		e.overruns = 0
		return
	}
	e.overruns++
	e.log.Warnw("WCET exceeded", "duration", dur, "wcet", e.wcet, "consecutive", e.overruns)
	if e.overruns >= s.cfg.WCETOverrunLimit {
		e.degraded = true
		e.overruns = 0
	}
}

func (e *enrolled) writeHeartbeat() {
	ok, err := e.hbWriter.MaybeWrite(heartbeat.Record{
		State:             heartbeat.StateString(e.info.State),
		TotalTicks:        e.info.TickIndex,
		AvgTickDurationMs: e.avgTickMs,
		LastUpdatedNs:     time.Now().UnixNano(),
	})
	if err != nil {
		e.log.Errorw("heartbeat write failed", "error", err)
	}
	_ = ok
}

// applyControl polls for and applies a pending one-shot command,
// between ticks only — never mid-tick.
func (e *enrolled) applyControl() (stop bool) {
	cmd, ok, err := e.poller.Poll()
	if err != nil {
		e.log.Errorw("control poll failed", "error", err)
		return false
	}
	if !ok {
		return false
	}
	switch cmd {
	case control.CmdStop:
		e.info.State = node.StateStopped
		return true
	case control.CmdPause:
		e.info.State = node.StatePaused
	case control.CmdResume:
		if e.info.State == node.StatePaused {
			e.info.State = node.StateRunning
		}
	case control.CmdRestart:
		e.info.State = node.StateInitializing
		if err := e.n.Init(&e.info); err != nil {
			e.log.Errorw("restart init failed", "error", err)
			e.info.State = node.StateError
		} else {
			e.info.State = node.StateRunning
		}
	}
	return false
}
