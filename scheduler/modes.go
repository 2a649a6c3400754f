package scheduler

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/horus-rt/horus/node"
)

// runSequential is the default driver: every enrolled node is ticked,
// in priority order, on this goroutine, once per cycle. The sleep
// before the next cycle is computed from the cycle's start time rather
// than by a fixed post-cycle delay, so a slow cycle shortens (never
// stacks onto) the next one instead of accumulating skew.
func (s *Scheduler) runSequential(ctx context.Context, nodes []*enrolled) error {
	for {
		cycleStart := time.Now()

		stop := false
		for _, e := range nodes {
			s.tickOne(e)
			e.writeHeartbeat()
			if e.applyControl() {
				stop = true
			}
		}
		if stop || allStopped(nodes) {
			return nil
		}

		if err := s.sleepUntilNextCycle(ctx, cycleStart); err != nil {
			return err
		}
	}
}

// runParallel ticks nodes of the same priority concurrently via
// errgroup, but still waits for every priority tier to finish before
// starting the next — priority order is preserved across tiers, only
// same-tier nodes run concurrently.
func (s *Scheduler) runParallel(ctx context.Context, nodes []*enrolled) error {
	tiers := groupByPriority(nodes)
	for {
		cycleStart := time.Now()

		stop := false
		for _, tier := range tiers {
			g, _ := errgroup.WithContext(ctx)
			for _, e := range tier {
				e := e
				g.Go(func() error {
					s.tickOne(e)
					e.writeHeartbeat()
					return nil
				})
			}
			_ = g.Wait() // tickOne never returns an error; panics are recovered internally
			for _, e := range tier {
				if e.applyControl() {
					stop = true
				}
			}
		}
		if stop || allStopped(nodes) {
			return nil
		}

		if err := s.sleepUntilNextCycle(ctx, cycleStart); err != nil {
			return err
		}
	}
}

// runIsolated gives every node its own goroutine and its own cycle
// ticker, decoupling a slow node's cadence from its neighbors'. The
// Scheduler becomes a supervisor: it waits for ctx cancellation or for
// every node to independently stop.
func (s *Scheduler) runIsolated(ctx context.Context, nodes []*enrolled) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, e := range nodes {
		e := e
		g.Go(func() error {
			ticker := time.NewTicker(s.cfg.TickRate)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					s.tickOne(e)
					e.writeHeartbeat()
					if e.applyControl() {
						return nil
					}
				}
			}
		})
	}
	return g.Wait()
}

// sleepUntilNextCycle blocks until TickRate has elapsed since
// cycleStart, or returns ctx.Err() if ctx is canceled first. If the
// cycle itself overran the tick rate, it returns immediately (with
// ctx.Err(), nil unless ctx is already canceled) — the next cycle starts
// late rather than accumulating a backlog of sleep.
func (s *Scheduler) sleepUntilNextCycle(ctx context.Context, cycleStart time.Time) error {
	elapsed := time.Since(cycleStart)
	remaining := s.cfg.TickRate - elapsed
	if remaining <= 0 {
		s.cfg.Logger.Warnw("cycle deadline missed", "tick_rate", s.cfg.TickRate, "elapsed", elapsed)
		return ctx.Err()
	}
	t := time.NewTimer(remaining)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func allStopped(nodes []*enrolled) bool {
	for _, e := range nodes {
		if e.info.State != node.StateStopped {
			return false
		}
	}
	return true
}

// groupByPriority partitions a priority-sorted slice into contiguous
// same-priority runs, preserving relative order within and across
// groups.
func groupByPriority(nodes []*enrolled) [][]*enrolled {
	var tiers [][]*enrolled
	for i := 0; i < len(nodes); {
		j := i + 1
		for j < len(nodes) && nodes[j].priority == nodes[i].priority {
			j++
		}
		tiers = append(tiers, nodes[i:j])
		i = j
	}
	return tiers
}
