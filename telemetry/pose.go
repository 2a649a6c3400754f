// Package telemetry provides the demo message and POD types carried
// over Link, Hub, and PodLink in cmd/horus-demo.
package telemetry

import (
	"github.com/tinylib/msgp/msgp"
)

// Pose is a 2D robot pose sample: the generic (non-POD) demo message,
// carried over Link/Hub via msgp. The encode/decode methods below are
// hand-written in the shape `msgp generate` would emit (map-encoded,
// one field per key) since this module never invokes code generation.
type Pose struct {
	Seq         uint64
	X, Y, Theta float64
	TimestampNs int64
}

var _ msgp.Marshaler = (*Pose)(nil)
var _ msgp.Unmarshaler = (*Pose)(nil)
var _ msgp.Sizer = (*Pose)(nil)

// MarshalMsg appends the msgp encoding of z to b.
func (z *Pose) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 5)
	b = msgp.AppendString(b, "seq")
	b = msgp.AppendUint64(b, z.Seq)
	b = msgp.AppendString(b, "x")
	b = msgp.AppendFloat64(b, z.X)
	b = msgp.AppendString(b, "y")
	b = msgp.AppendFloat64(b, z.Y)
	b = msgp.AppendString(b, "theta")
	b = msgp.AppendFloat64(b, z.Theta)
	b = msgp.AppendString(b, "ts")
	b = msgp.AppendInt64(b, z.TimestampNs)
	return b, nil
}

// UnmarshalMsg decodes b into z, returning the remaining bytes.
func (z *Pose) UnmarshalMsg(bts []byte) ([]byte, error) {
	sz, bts, err := msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, err
	}
	for i := uint32(0); i < sz; i++ {
		var key string
		key, bts, err = msgp.ReadStringBytes(bts)
		if err != nil {
			return bts, err
		}
		switch key {
		case "seq":
			z.Seq, bts, err = msgp.ReadUint64Bytes(bts)
		case "x":
			z.X, bts, err = msgp.ReadFloat64Bytes(bts)
		case "y":
			z.Y, bts, err = msgp.ReadFloat64Bytes(bts)
		case "theta":
			z.Theta, bts, err = msgp.ReadFloat64Bytes(bts)
		case "ts":
			z.TimestampNs, bts, err = msgp.ReadInt64Bytes(bts)
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, err
		}
	}
	return bts, nil
}

// Msgsize returns an upper bound on the encoded size of z.
func (z *Pose) Msgsize() int {
	return msgp.MapHeaderSize +
		5 + msgp.Uint64Size +
		2 + msgp.Float64Size +
		2 + msgp.Float64Size +
		6 + msgp.Float64Size +
		3 + msgp.Int64Size
}

// IMUSample is a fixed-layout accelerometer/gyro reading carried over
// PodLink via direct bit-copy — no field is a pointer, slice, string,
// or interface, satisfying PodLink's runtime POD check.
type IMUSample struct {
	TimestampNs            int64
	AccelX, AccelY, AccelZ float64
	GyroX, GyroY, GyroZ    float64
}
