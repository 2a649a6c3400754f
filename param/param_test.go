package param

import (
	"context"
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

func TestSetThenGet(t *testing.T) {
	s := NewStore(newTestRuntime(t))

	p := Parameter{Value: 1.5, Type: TypeFloat, Description: "gain"}
	if err := s.Set("control.gain", p); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := s.Get("control.gain")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Description != "gain" || got.Type != TypeFloat {
		t.Fatalf("got %+v", got)
	}
}

func TestGetFloatRejectsWrongType(t *testing.T) {
	s := NewStore(newTestRuntime(t))
	if err := s.Set("label", Parameter{Value: "front-left", Type: TypeString}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := s.GetFloat("label"); err == nil {
		t.Fatal("expected GetFloat to reject a string-typed parameter")
	}
}

func TestGetBoolAndString(t *testing.T) {
	s := NewStore(newTestRuntime(t))
	if err := s.Set("enabled", Parameter{Value: true, Type: TypeBool}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set("name", Parameter{Value: "horus", Type: TypeString}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	b, err := s.GetBool("enabled")
	if err != nil || !b {
		t.Fatalf("GetBool: %v, %v", b, err)
	}
	str, err := s.GetString("name")
	if err != nil || str != "horus" {
		t.Fatalf("GetString: %v, %v", str, err)
	}
}

func TestGetMissingKeyIsNotFound(t *testing.T) {
	s := NewStore(newTestRuntime(t))
	if _, err := s.Get("nope"); err == nil {
		t.Fatal("expected an error for a parameter that was never set")
	}
}

func TestWatchEmitsOnChange(t *testing.T) {
	s := NewStore(newTestRuntime(t))
	if err := s.Set("speed", Parameter{Value: 1.0, Type: TypeFloat}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := make(chan *Parameter, 4)
	w := s.Watch("speed", 5*time.Millisecond)
	go w.Run(ctx, ch)

	time.Sleep(15 * time.Millisecond)
	if err := s.Set("speed", Parameter{Value: 2.0, Type: TypeFloat}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	select {
	case p := <-ch:
		if p.Value != 2.0 {
			t.Fatalf("got %+v", p)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a watch notification")
	}
}
