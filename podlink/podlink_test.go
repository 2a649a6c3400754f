package podlink

import (
	"testing"
	"time"

	"github.com/horus-rt/horus/runtime"
)

type imuSample struct {
	TimestampNs int64
	AccelX      float64
	AccelY      float64
}

type notPOD struct {
	Name string
}

func newTestRuntime(t *testing.T) *runtime.Runtime {
	t.Helper()
	rt := runtime.New(t.TempDir())
	if err := rt.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	return rt
}

func TestSendRecvBitCopyRoundTrip(t *testing.T) {
	rt := newTestRuntime(t)

	prod, err := Producer[imuSample](rt, "pod-roundtrip")
	if err != nil {
		t.Fatalf("Producer: %v", err)
	}
	defer prod.Close()

	cons, err := Consumer[imuSample](rt, "pod-roundtrip")
	if err != nil {
		t.Fatalf("Consumer: %v", err)
	}
	defer cons.Close()

	want := imuSample{TimestampNs: 42, AccelX: 1.25, AccelY: -3.5}
	if err := prod.Send(want); err != nil {
		t.Fatalf("Send: %v", err)
	}

	got, ok, err := cons.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if !ok {
		t.Fatal("expected a message to be ready")
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestMustBePODRejectsNonPODType(t *testing.T) {
	rt := newTestRuntime(t)
	if _, err := Producer[notPOD](rt, "pod-rejects-strings"); err == nil {
		t.Fatal("expected an error constructing a PodLink over a type with a string field")
	}
}

func TestTryRecvTimeoutReturnsFalseWhenEmpty(t *testing.T) {
	rt := newTestRuntime(t)
	cons, err := Consumer[imuSample](rt, "pod-empty")
	if err != nil {
		t.Fatalf("Consumer: %v", err)
	}
	defer cons.Close()

	start := time.Now()
	_, ok, err := cons.TryRecvTimeout(10 * time.Millisecond)
	if err != nil {
		t.Fatalf("TryRecvTimeout: %v", err)
	}
	if ok {
		t.Fatal("expected no message to be ready")
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatal("expected TryRecvTimeout to wait out the full deadline")
	}
}
