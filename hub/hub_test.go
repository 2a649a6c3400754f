package hub

import (
	"testing"

	"github.com/horus-rt/horus/runtime"
	"github.com/horus-rt/horus/telemetry"
)

func newTestRuntime(t *testing.T) *runtime.Runtime {
	t.Helper()
	rt := runtime.New(t.TempDir())
	if err := rt.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	return rt
}

func newPose() *telemetry.Pose { return &telemetry.Pose{} }

func TestSubscribeReceivesFIFO(t *testing.T) {
	rt := newTestRuntime(t)
	h, err := New[*telemetry.Pose](rt, "hub-fifo", 8, 128, newPose)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer h.Close()

	sub := h.Subscribe()

	for i := uint64(0); i < 3; i++ {
		if err := h.Send(&telemetry.Pose{Seq: i}); err != nil {
			t.Fatalf("Send(%d): %v", i, err)
		}
	}

	for i := uint64(0); i < 3; i++ {
		msg, ok, err := sub.Recv()
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		if !ok {
			t.Fatalf("expected message %d to be ready", i)
		}
		if msg.Seq != i {
			t.Fatalf("expected FIFO order: got seq %d at position %d", msg.Seq, i)
		}
	}

	if _, ok, err := sub.Recv(); err != nil || ok {
		t.Fatalf("expected subscriber to be caught up, got ok=%v err=%v", ok, err)
	}
}

func TestSubscriberTracksDropsWhenLapped(t *testing.T) {
	rt := newTestRuntime(t)
	const capacity = 4
	h, err := New[*telemetry.Pose](rt, "hub-laps", capacity, 64, newPose)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer h.Close()

	sub := h.Subscribe()

	// Publish more than the ring holds without ever draining, so the
	// writer laps the subscriber's cursor.
	for i := uint64(0); i < capacity*3; i++ {
		if err := h.Send(&telemetry.Pose{Seq: i}); err != nil {
			t.Fatalf("Send(%d): %v", i, err)
		}
	}

	_, ok, err := sub.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if !ok {
		t.Fatal("expected the lapped subscriber to resynchronize and return a message")
	}
	if sub.Dropped() == 0 {
		t.Fatal("expected Dropped() to report the messages skipped during the lap")
	}
}

func TestNewSubscriberStartsAtCurrentHead(t *testing.T) {
	rt := newTestRuntime(t)
	h, err := New[*telemetry.Pose](rt, "hub-late-join", 8, 64, newPose)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer h.Close()

	if err := h.Send(&telemetry.Pose{Seq: 1}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	// A subscriber joining after a message was published should not see
	// it — joins are implicit, at the writer's current head.
	sub := h.Subscribe()
	if err := h.Send(&telemetry.Pose{Seq: 2}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	msg, ok, err := sub.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if !ok || msg.Seq != 2 {
		t.Fatalf("expected to only see the message published after Subscribe, got ok=%v msg=%+v", ok, msg)
	}
}
