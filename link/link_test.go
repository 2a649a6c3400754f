package link

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

func TestSendRecvRoundTrip(t *testing.T) {
	rt := newTestRuntime(t)

	prod, err := Producer[*telemetry.Pose](rt, "link-roundtrip", 128)
	if err != nil {
		t.Fatalf("Producer: %v", err)
	}
	defer prod.Close()

	cons, err := Consumer[*telemetry.Pose](rt, "link-roundtrip", 128, newPose)
	if err != nil {
		t.Fatalf("Consumer: %v", err)
	}
	defer cons.Close()

	if err := prod.Send(&telemetry.Pose{Seq: 7, X: 1.5, Y: -2.5, Theta: 0.25, TimestampNs: 100}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	msg, ok, err := cons.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if !ok {
		t.Fatal("expected a message to be ready")
	}
	if msg.Seq != 7 || msg.X != 1.5 || msg.Y != -2.5 {
		t.Fatalf("got %+v", msg)
	}

	if _, ok, err := cons.Recv(); err != nil || ok {
		t.Fatalf("expected no new message on second Recv, got ok=%v err=%v", ok, err)
	}
}

func TestConsumerRecvErrorsOnProducerRole(t *testing.T) {
	rt := newTestRuntime(t)
	prod, err := Producer[*telemetry.Pose](rt, "link-role-check", 128)
	if err != nil {
		t.Fatalf("Producer: %v", err)
	}
	defer prod.Close()

	if _, _, err := prod.Recv(); err == nil {
		t.Fatal("expected an error calling Recv on a producer-role Link")
	}
}

func TestSendRejectsOversizedPayload(t *testing.T) {
	rt := newTestRuntime(t)
	prod, err := Producer[*telemetry.Pose](rt, "link-oversize", 4)
	if err != nil {
		t.Fatalf("Producer: %v", err)
	}
	defer prod.Close()

	if err := prod.Send(&telemetry.Pose{Seq: 1, X: 1, Y: 1, Theta: 1, TimestampNs: 1}); err == nil {
		t.Fatal("expected an error sending a payload larger than a 4-byte maxPayload")
	}
}

func TestAttachRejectsElemSizeMismatch(t *testing.T) {
	rt := newTestRuntime(t)
	prod, err := Producer[*telemetry.Pose](rt, "link-size-mismatch", 64)
	if err != nil {
		t.Fatalf("Producer: %v", err)
	}
	defer prod.Close()

	if _, err := Producer[*telemetry.Pose](rt, "link-size-mismatch", 128); err == nil {
		t.Fatal("expected an error attaching with a different maxPayload to the same topic")
	}
}
