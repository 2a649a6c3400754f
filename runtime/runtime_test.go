package runtime

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewDefaultsEmptyRootToDefaultShmRoot(t *testing.T) {
	rt := New("")
	if rt.ShmRoot != DefaultShmRoot {
		t.Fatalf("got %q, want %q", rt.ShmRoot, DefaultShmRoot)
	}
}

func TestPathsAreRootedUnderShmRoot(t *testing.T) {
	rt := New("/tmp/horus-test")

	cases := map[string]string{
		rt.TopicPath("demo.pose"):    "/tmp/horus-test/topics/demo.pose",
		rt.HeartbeatPath("node-a"):   "/tmp/horus-test/heartbeats/node-a",
		rt.ParamPath("control.gain"): "/tmp/horus-test/params/control.gain",
		rt.ControlPath("node-a"):     "/tmp/horus-test/control/node-a.cmd",
		rt.NetworkPath("demo.pose"):  "/tmp/horus-test/network/demo.pose",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
}

func TestEnsureDirsCreatesEveryDir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "shm")
	rt := New(root)

	if err := rt.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	for _, d := range rt.Dirs() {
		info, err := os.Stat(d)
		if err != nil {
			t.Fatalf("Stat(%q): %v", d, err)
		}
		if !info.IsDir() {
			t.Fatalf("%q is not a directory", d)
		}
	}
}
