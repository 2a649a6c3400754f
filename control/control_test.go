package control

import (
	"testing"

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

func TestSendThenPollConsumes(t *testing.T) {
	rt := newTestRuntime(t)
	if err := Send(rt, "demo-node", CmdPause); err != nil {
		t.Fatalf("Send: %v", err)
	}

	p := NewPoller(rt, "demo-node")
	cmd, ok, err := p.Poll()
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if !ok || cmd != CmdPause {
		t.Fatalf("got cmd=%q ok=%v", cmd, ok)
	}

	// A second poll should find nothing: Poll consumes the file.
	_, ok, err = p.Poll()
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if ok {
		t.Fatal("expected the command to be consumed by the first Poll")
	}
}

func TestPollWithNoPendingCommand(t *testing.T) {
	rt := newTestRuntime(t)
	p := NewPoller(rt, "idle-node")
	_, ok, err := p.Poll()
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if ok {
		t.Fatal("expected no command pending for a node that was never sent one")
	}
}

func TestSendRejectsInvalidCommand(t *testing.T) {
	rt := newTestRuntime(t)
	if err := Send(rt, "demo-node", Command("explode")); err == nil {
		t.Fatal("expected Send to reject an invalid command")
	}
}
