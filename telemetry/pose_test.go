package telemetry

import (
	"testing"

	"github.com/tinylib/msgp/msgp"
)

func TestPoseMarshalUnmarshalRoundTrip(t *testing.T) {
	want := Pose{Seq: 7, X: 1.5, Y: -2.25, Theta: 0.125, TimestampNs: 123456789}

	b, err := want.MarshalMsg(nil)
	if err != nil {
		t.Fatalf("MarshalMsg: %v", err)
	}

	var got Pose
	remaining, err := got.UnmarshalMsg(b)
	if err != nil {
		t.Fatalf("UnmarshalMsg: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected no bytes left over, got %d", len(remaining))
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestPoseMsgsizeUpperBoundsActualEncoding(t *testing.T) {
	p := Pose{Seq: 1, X: 1, Y: 1, Theta: 1, TimestampNs: 1}
	b, err := p.MarshalMsg(nil)
	if err != nil {
		t.Fatalf("MarshalMsg: %v", err)
	}
	if len(b) > p.Msgsize() {
		t.Fatalf("encoded length %d exceeds Msgsize() %d", len(b), p.Msgsize())
	}
}

func TestPoseUnmarshalIgnoresUnknownFields(t *testing.T) {
	// Hand-encode a 6-field map (one more than Pose writes) to simulate
	// a forward-compatible producer; UnmarshalMsg should skip the
	// unrecognized key rather than erroring.
	var b []byte
	b = msgp.AppendMapHeader(b, 6)
	b = msgp.AppendString(b, "seq")
	b = msgp.AppendUint64(b, 2)
	b = msgp.AppendString(b, "x")
	b = msgp.AppendFloat64(b, 3)
	b = msgp.AppendString(b, "y")
	b = msgp.AppendFloat64(b, 4)
	b = msgp.AppendString(b, "theta")
	b = msgp.AppendFloat64(b, 5)
	b = msgp.AppendString(b, "ts")
	b = msgp.AppendInt64(b, 6)
	b = msgp.AppendString(b, "note")
	b = msgp.AppendString(b, "ignored")

	var got Pose
	if _, err := got.UnmarshalMsg(b); err != nil {
		t.Fatalf("UnmarshalMsg: %v", err)
	}
	want := Pose{Seq: 2, X: 3, Y: 4, Theta: 5, TimestampNs: 6}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}
