// Package podlink specializes the shared-memory Link for plain-old-data
// messages, bypassing serialization entirely via a direct memory copy.
// It reuses the seqlock wire protocol from package seqlock, generalized
// to any fixed-layout value type.
package podlink

import (
	"fmt"
	"reflect"
	"time"
	"unsafe"

	"github.com/horus-rt/horus/herrors"
	"github.com/horus-rt/horus/runtime"
	"github.com/horus-rt/horus/seqlock"
	"github.com/horus-rt/horus/shmregion"
)

// PodLink is the bit-copy specialization of the shared-memory Link.
type PodLink[T any] struct {
	topic      string
	region     *shmregion.Region
	isProducer bool
	lastSeen   uint64
	size       uintptr
}

// mustBePOD validates, at construction time, that T is a fixed-layout
// value type with no internal pointers or indirection — generics
// cannot constrain "no pointer fields" structurally, so this is
// checked at runtime instead. Violation is a hard construction-time
// error, never a silent narrowing.
func mustBePOD(t reflect.Type) error {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return nil
	case reflect.Array:
		return mustBePOD(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if err := mustBePOD(t.Field(i).Type); err != nil {
				return fmt.Errorf("field %s: %w", t.Field(i).Name, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("type %s is not POD (kind %s): PodLink requires a fixed-layout value with no indirection", t, t.Kind())
	}
}

// Producer attaches to (or creates) the shared-memory region backing
// topic and returns a send-only PodLink.
func Producer[T any](rt *runtime.Runtime, topic string) (*PodLink[T], error) {
	return attach[T](rt, topic, true)
}

// Consumer attaches to (or creates) the shared-memory region backing
// topic and returns a receive-only PodLink.
func Consumer[T any](rt *runtime.Runtime, topic string) (*PodLink[T], error) {
	return attach[T](rt, topic, false)
}

func attach[T any](rt *runtime.Runtime, topic string, isProducer bool) (*PodLink[T], error) {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		return nil, herrors.New(herrors.InvalidInput, "attach", topic, fmt.Errorf("PodLink requires a concrete value type"))
	}
	if err := mustBePOD(t); err != nil {
		return nil, herrors.New(herrors.InvalidInput, "attach", topic, err)
	}

	size := unsafe.Sizeof(zero)
	region, err := shmregion.OpenOrCreate(rt, topic, seqlock.HeaderSize+int(size), true)
	if err != nil {
		return nil, err
	}

	got, ok := seqlock.CheckElemSize(region.Bytes, uint64(size))
	if !ok && got == 0 {
		seqlock.InitHeader(region.Bytes, uint64(size))
	} else if !ok {
		region.Close()
		return nil, herrors.New(herrors.InvalidInput, "attach", topic,
			fmt.Errorf("element size mismatch: region has %d, requested %d", got, size))
	}

	return &PodLink[T]{topic: topic, region: region, isProducer: isProducer, size: size}, nil
}

// Send bit-copies msg into the shared payload slot. Producer-only.
func (p *PodLink[T]) Send(msg T) error {
	if !p.isProducer {
		return herrors.New(herrors.InvalidInput, "send", p.topic, fmt.Errorf("podlink is a consumer"))
	}
	src := unsafe.Slice((*byte)(unsafe.Pointer(&msg)), p.size)
	seqlock.Write(p.region.Bytes, src)
	return nil
}

// Recv bit-copies the latest unseen message out of the slot.
// Consumer-only.
func (p *PodLink[T]) Recv() (msg T, ok bool, err error) {
	if p.isProducer {
		var zero T
		return zero, false, herrors.New(herrors.InvalidInput, "recv", p.topic, fmt.Errorf("podlink is a producer"))
	}
	var out T
	dst := unsafe.Slice((*byte)(unsafe.Pointer(&out)), p.size)
	seq, fresh, torn := seqlock.Read(p.region.Bytes, dst, p.lastSeen)
	if torn {
		var zero T
		return zero, false, herrors.New(herrors.Communication, "recv", p.topic, fmt.Errorf("torn read exhausted retries"))
	}
	if !fresh {
		var zero T
		return zero, false, nil
	}
	p.lastSeen = seq
	return out, true, nil
}

// TryRecvTimeout polls Recv with exponential backoff up to deadline.
func (p *PodLink[T]) TryRecvTimeout(d time.Duration) (msg T, ok bool, err error) {
	deadline := time.Now().Add(d)
	backoff := time.Microsecond
	const maxBackoff = 2 * time.Millisecond
	for {
		msg, ok, err = p.Recv()
		if err != nil || ok {
			return msg, ok, err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			var zero T
			return zero, false, nil
		}
		sleep := backoff
		if sleep > remaining {
			sleep = remaining
		}
		time.Sleep(sleep)
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}

// Close releases the backing region.
func (p *PodLink[T]) Close() error {
	return p.region.Close()
}
