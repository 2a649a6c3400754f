// Package link implements the single-producer/single-consumer channel,
// in both its shared-memory single-slot and TCP point-to-point
// variants.
package link

import (
	"fmt"
	"time"

	"github.com/tinylib/msgp/msgp"

	"github.com/horus-rt/horus/herrors"
	"github.com/horus-rt/horus/runtime"
	"github.com/horus-rt/horus/seqlock"
	"github.com/horus-rt/horus/shmregion"
)

// Message is the constraint on types carried by the generic (non-POD)
// shared-memory Link and Hub. tinylib/msgp-generated types satisfy it
// automatically; the encoding is deterministic, length-prefixed, and
// zero-copy-friendly for slices.
type Message interface {
	msgp.Marshaler
	msgp.Unmarshaler
	msgp.Sizer
}

const lenPrefixSize = 4

// Link is the shared-memory SPSC channel. A given instance is either a
// producer or a consumer, decided at construction (Producer/Consumer)
// and asserted on every call — never both.
type Link[T Message] struct {
	rt         *runtime.Runtime
	topic      string
	region     *shmregion.Region
	maxPayload int
	isProducer bool
	newMsg     func() T
	lastSeen   uint64
	scratch    []byte
}

// Producer attaches to (or creates) the shared-memory region backing
// topic and returns a send-only Link. maxPayload bounds the serialized
// size of any message this Link will ever carry.
func Producer[T Message](rt *runtime.Runtime, topic string, maxPayload int) (*Link[T], error) {
	l, err := attach[T](rt, topic, maxPayload, nil)
	if err != nil {
		return nil, err
	}
	l.isProducer = true
	return l, nil
}

// Consumer attaches to (or creates) the shared-memory region backing
// topic and returns a receive-only Link. newMsg must return a fresh,
// zero-valued T for each decode (T is typically a pointer type, so the
// caller supplies the allocation).
func Consumer[T Message](rt *runtime.Runtime, topic string, maxPayload int, newMsg func() T) (*Link[T], error) {
	return attach[T](rt, topic, maxPayload, newMsg)
}

func attach[T Message](rt *runtime.Runtime, topic string, maxPayload int, newMsg func() T) (*Link[T], error) {
	if maxPayload <= 0 {
		return nil, herrors.New(herrors.InvalidInput, "attach", topic, fmt.Errorf("maxPayload must be positive"))
	}
	slotSize := lenPrefixSize + maxPayload
	size := seqlock.HeaderSize + slotSize

	region, err := shmregion.OpenOrCreate(rt, topic, size, true)
	if err != nil {
		return nil, err
	}

	got, ok := seqlock.CheckElemSize(region.Bytes, uint64(slotSize))
	if !ok && got == 0 {
		// Freshly zero-initialized region: we are the first attacher.
		seqlock.InitHeader(region.Bytes, uint64(slotSize))
	} else if !ok {
		region.Close()
		return nil, herrors.New(herrors.InvalidInput, "attach", topic,
			fmt.Errorf("element size mismatch: region has %d, requested %d", got, slotSize))
	}

	return &Link[T]{
		rt:         rt,
		topic:      topic,
		region:     region,
		maxPayload: maxPayload,
		newMsg:     newMsg,
		scratch:    make([]byte, slotSize),
	}, nil
}

// Send serializes msg and publishes it. Producer-only; a healthy region
// never fails this call.
func (l *Link[T]) Send(msg T) error {
	if !l.isProducer {
		return herrors.New(herrors.InvalidInput, "send", l.topic, fmt.Errorf("link is a consumer"))
	}
	b, err := msg.MarshalMsg(l.scratch[lenPrefixSize:lenPrefixSize])
	if err != nil {
		return herrors.New(herrors.Communication, "send", l.topic, err)
	}
	if len(b) > l.maxPayload {
		return herrors.New(herrors.InvalidInput, "send", l.topic,
			fmt.Errorf("serialized size %d exceeds slot capacity %d", len(b), l.maxPayload))
	}
	seqlock.EncodeLen(l.scratch[:lenPrefixSize], len(b))
	copy(l.scratch[lenPrefixSize:], b)
	seqlock.Write(l.region.Bytes, l.scratch[:lenPrefixSize+len(b)])
	return nil
}

// Recv returns the latest unseen message, or ok=false if there is
// nothing new. Consumer-only.
func (l *Link[T]) Recv() (msg T, ok bool, err error) {
	if l.isProducer {
		var zero T
		return zero, false, herrors.New(herrors.InvalidInput, "recv", l.topic, fmt.Errorf("link is a producer"))
	}
	seq, fresh, torn := seqlock.Read(l.region.Bytes, l.scratch, l.lastSeen)
	if torn {
		var zero T
		return zero, false, herrors.New(herrors.Communication, "recv", l.topic, fmt.Errorf("torn read exhausted retries"))
	}
	if !fresh {
		var zero T
		return zero, false, nil
	}
	l.lastSeen = seq
	n := seqlock.DecodeLen(l.scratch[:lenPrefixSize])
	if n < 0 || n > l.maxPayload {
		var zero T
		return zero, false, herrors.New(herrors.Communication, "recv", l.topic, fmt.Errorf("corrupt length prefix %d", n))
	}
	out := l.newMsg()
	if _, err := out.UnmarshalMsg(l.scratch[lenPrefixSize : lenPrefixSize+n]); err != nil {
		var zero T
		return zero, false, herrors.New(herrors.Communication, "recv", l.topic, err)
	}
	return out, true, nil
}

// TryRecvTimeout polls Recv with exponential backoff up to deadline.
func (l *Link[T]) TryRecvTimeout(d time.Duration) (msg T, ok bool, err error) {
	deadline := time.Now().Add(d)
	backoff := time.Microsecond
	const maxBackoff = 2 * time.Millisecond
	for {
		msg, ok, err = l.Recv()
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
func (l *Link[T]) Close() error {
	return l.region.Close()
}
