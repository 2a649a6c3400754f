// Command horus-demo wires together the shared-memory Link, Hub, and
// PodLink primitives behind the cooperative Scheduler: one publisher
// node and one fan-out subscriber node per channel kind, all ticked by
// a single Scheduler.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/horus-rt/horus/config"
	"github.com/horus-rt/horus/demo"
	"github.com/horus-rt/horus/runtime"
	"github.com/horus-rt/horus/scheduler"
)

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	fleet, err := config.LoadOptional(os.Getenv("HORUS_CONFIG"))
	if err != nil {
		sugar.Fatalw("failed to load fleet config", "error", err)
	}

	shmRoot := fleet.ShmRoot
	if v := os.Getenv("HORUS_SHM_ROOT"); v != "" {
		shmRoot = v
	}
	rt := runtime.New(shmRoot)
	if err := rt.EnsureDirs(); err != nil {
		sugar.Fatalw("failed to prepare shared-memory root", "error", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(rt).WithConfig(scheduler.Config{
		Logger:            sugar,
		HeartbeatInterval: demo.HeartbeatInterval,
		WCETOverrunLimit:  3,
	})

	nodes, err := demo.BuildNodes(rt)
	if err != nil {
		sugar.Fatalw("failed to build demo nodes", "error", err)
	}
	for _, n := range nodes {
		priority, opts := n.Priority, n.Opts
		if override, ok := fleet.Nodes[n.Node.Name()]; ok {
			if !override.Enabled {
				sugar.Infow("skipping node disabled by fleet config", "node", n.Node.Name())
				continue
			}
			priority = override.Priority
			if override.WCET > 0 {
				opts = append(opts, scheduler.WCET(override.WCET))
			}
		}
		if err := sched.Add(n.Node, priority, n.Logging, opts...); err != nil {
			sugar.Fatalw("failed to enroll node", "node", n.Node.Name(), "error", err)
		}
	}

	sugar.Info("horus-demo starting")
	if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
		sugar.Fatalw("scheduler exited with error", "error", err)
	}
	sugar.Info("horus-demo stopped")
}
