package herrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorWrapsAndUnwraps(t *testing.T) {
	inner := fmt.Errorf("dial tcp: connection refused")
	err := New(Communication, "dial", "demo.pose", inner)

	if !errors.Is(err, inner) {
		t.Fatalf("errors.Is should see through to the wrapped cause")
	}
	want := "horus: communication: dial(demo.pose): dial tcp: connection refused"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestIsMatchesKind(t *testing.T) {
	err := New(NotFound, "get", "missing-key", errors.New("no such file"))
	if !Is(err, NotFound) {
		t.Fatal("Is(err, NotFound) should be true")
	}
	if Is(err, Timeout) {
		t.Fatal("Is(err, Timeout) should be false")
	}
	if Is(errors.New("plain error"), NotFound) {
		t.Fatal("Is should be false for a non-herrors error")
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		Communication:  "communication",
		SharedMemory:   "shared_memory",
		Timeout:        "timeout",
		InvalidInput:   "invalid_input",
		NotFound:       "not_found",
		Initialization: "initialization",
		Permission:     "permission",
		Unknown:        "unknown",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
