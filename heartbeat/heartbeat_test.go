package heartbeat

import (
	"testing"
	"time"

	"github.com/horus-rt/horus/runtime"
)

func newTestRuntime(t *testing.T) *runtime.Runtime {
	t.Helper()
	rt := runtime.New(t.TempDir())
	if err := rt.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	return rt
}

func TestWriteThenRead(t *testing.T) {
	rt := newTestRuntime(t)
	w := NewWriter(rt, "demo-node", time.Hour)

	rec := Record{State: "running", TotalTicks: 10, AvgTickDurationMs: 1.5, LastUpdatedNs: time.Now().UnixNano()}
	if err := w.Write(rec); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(rt, "demo-node")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.State != rec.State || got.TotalTicks != rec.TotalTicks {
		t.Fatalf("got %+v, want %+v", got, rec)
	}
}

func TestMaybeWriteRateLimits(t *testing.T) {
	rt := newTestRuntime(t)
	w := NewWriter(rt, "rate-limited-node", time.Hour)

	wrote, err := w.MaybeWrite(Record{State: "running"})
	if err != nil {
		t.Fatalf("MaybeWrite: %v", err)
	}
	if !wrote {
		t.Fatal("expected the first MaybeWrite to succeed")
	}

	wrote, err = w.MaybeWrite(Record{State: "running"})
	if err != nil {
		t.Fatalf("MaybeWrite: %v", err)
	}
	if wrote {
		t.Fatal("expected the second MaybeWrite within the interval to be suppressed")
	}
}

func TestReadMissingFileIsNotFound(t *testing.T) {
	rt := newTestRuntime(t)
	if _, err := Read(rt, "never-written"); err == nil {
		t.Fatal("expected an error reading a heartbeat that was never written")
	}
}

func TestIsStale(t *testing.T) {
	rec := &Record{LastUpdatedNs: time.Now().Add(-time.Hour).UnixNano()}
	if !rec.IsStale(time.Minute) {
		t.Fatal("expected a one-hour-old heartbeat to be stale against a one-minute max age")
	}
	rec.LastUpdatedNs = time.Now().UnixNano()
	if rec.IsStale(time.Minute) {
		t.Fatal("expected a fresh heartbeat not to be stale")
	}
}
