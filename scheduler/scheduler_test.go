package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/horus-rt/horus/control"
	"github.com/horus-rt/horus/heartbeat"
	"github.com/horus-rt/horus/node"
	"github.com/horus-rt/horus/runtime"
)

// recordingNode appends its name to a shared, mutex-guarded slice on
// every Tick, letting tests assert cross-node ordering.
type recordingNode struct {
	name string
	mu   *sync.Mutex
	log  *[]string

	initErr     error
	tickErr     error
	panicOnTick bool
	tickSleep   time.Duration
}

func (n *recordingNode) Name() string { return n.name }

func (n *recordingNode) Init(*node.Info) error { return n.initErr }

func (n *recordingNode) Tick(*node.Info) error {
	if n.tickSleep > 0 {
		time.Sleep(n.tickSleep)
	}
	if n.panicOnTick {
		panic("boom")
	}
	n.mu.Lock()
	*n.log = append(*n.log, n.name)
	n.mu.Unlock()
	return n.tickErr
}

func (n *recordingNode) Shutdown(*node.Info) error { return nil }

func newRuntime(t *testing.T) *runtime.Runtime {
	t.Helper()
	rt := runtime.New(t.TempDir())
	if err := rt.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	return rt
}

func TestSequentialRespectsPriorityOrder(t *testing.T) {
	rt := newRuntime(t)
	s := New(rt).WithConfig(Config{TickRate: 5 * time.Millisecond})

	var mu sync.Mutex
	var log []string

	low := &recordingNode{name: "low", mu: &mu, log: &log}
	high := &recordingNode{name: "high", mu: &mu, log: &log}

	if err := s.Add(low, 10, false); err != nil {
		t.Fatalf("Add(low): %v", err)
	}
	if err := s.Add(high, 0, false); err != nil {
		t.Fatalf("Add(high): %v", err)
	}

	ctx := context.Background()
	if err := s.RunFor(ctx, 12*time.Millisecond); err != nil {
		t.Fatalf("RunFor: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(log) < 2 {
		t.Fatalf("expected at least one full cycle, got %v", log)
	}
	if log[0] != "high" || log[1] != "low" {
		t.Fatalf("expected high before low in first cycle, got %v", log[:2])
	}
}

func TestPanicConvertsNodeToErrorState(t *testing.T) {
	rt := newRuntime(t)
	s := New(rt).WithConfig(Config{TickRate: 5 * time.Millisecond})

	var mu sync.Mutex
	var log []string
	bad := &recordingNode{name: "bad", mu: &mu, log: &log, panicOnTick: true}

	if err := s.Add(bad, 0, false); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := s.RunFor(context.Background(), 10*time.Millisecond); err != nil {
		t.Fatalf("RunFor: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(log) != 0 {
		t.Fatalf("panicking node should never record a successful tick, got %v", log)
	}

	// The first cycle's heartbeat is written right after the panicking
	// tick, so it carries the Error state.
	rec, err := heartbeat.Read(rt, "bad")
	if err != nil {
		t.Fatalf("heartbeat.Read: %v", err)
	}
	if rec.State != node.StateError.String() {
		t.Fatalf("expected heartbeat state %q, got %q", node.StateError, rec.State)
	}
}

func TestControlStopEndsRun(t *testing.T) {
	rt := newRuntime(t)
	s := New(rt).WithConfig(Config{TickRate: 2 * time.Millisecond})

	var mu sync.Mutex
	var log []string
	n := &recordingNode{name: "stoppable", mu: &mu, log: &log}

	if err := s.Add(n, 0, false); err != nil {
		t.Fatalf("Add: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	time.Sleep(10 * time.Millisecond)
	if err := control.Send(rt, "stoppable", control.CmdStop); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after stop command")
	}
}

func TestWCETDegradesOverrunningNode(t *testing.T) {
	rt := newRuntime(t)
	s := New(rt).WithConfig(Config{TickRate: 5 * time.Millisecond, WCETOverrunLimit: 2})

	var mu sync.Mutex
	var log []string
	slow := &recordingNode{name: "slow", mu: &mu, log: &log, tickSleep: 8 * time.Millisecond}

	if err := s.Add(slow, 0, false, WCET(1*time.Millisecond)); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := s.RunFor(context.Background(), 40*time.Millisecond); err != nil {
		t.Fatalf("RunFor: %v", err)
	}

	mu.Lock()
	ticks := len(log)
	mu.Unlock()
	if ticks == 0 {
		t.Fatal("expected at least one tick before degradation kicked in")
	}

	// WCETOverrunLimit (2) consecutive overruns degrade the node, and its
	// next tick is skipped.
	e := s.sortedNodes()[0]
	e.overruns, e.degraded = 0, false
	s.enforceWCET(e, 8*time.Millisecond)
	s.enforceWCET(e, 8*time.Millisecond)
	if !e.degraded {
		t.Fatal("expected two consecutive WCET overruns to degrade the node")
	}
	s.tickOne(e)
	mu.Lock()
	defer mu.Unlock()
	if len(log) != ticks {
		t.Fatalf("expected the degraded node's next tick to be skipped, got %d ticks after %d", len(log), ticks)
	}
}

func TestAddRejectsDuplicateName(t *testing.T) {
	rt := newRuntime(t)
	s := New(rt)
	var mu sync.Mutex
	var log []string
	a := &recordingNode{name: "dup", mu: &mu, log: &log}
	b := &recordingNode{name: "dup", mu: &mu, log: &log}

	if err := s.Add(a, 0, false); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if err := s.Add(b, 0, false); err == nil {
		t.Fatal("expected error enrolling a duplicate node name")
	}
}
