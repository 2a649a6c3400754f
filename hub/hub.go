package hub

import (
	"fmt"

	"github.com/horus-rt/horus/herrors"
	"github.com/horus-rt/horus/link"
	"github.com/horus-rt/horus/runtime"
)

// Message reuses the same serialization constraint as the generic Link.
type Message = link.Message

// DefaultCapacity is the per-topic ring capacity used when the caller
// does not override it.
const DefaultCapacity = 32

const lenPrefixSize = 4

// Hub is the shared-memory MPMC publish-subscribe channel. A single
// Hub value both publishes (Send) and is the factory for independent
// Subscriber cursors (Subscribe).
type Hub[T Message] struct {
	topic      string
	ring       *ring
	maxPayload int
	newMsg     func() T
}

// New attaches to (or creates) the ring backing topic. newMsg is
// required so Subscriber.Recv can allocate a fresh T per message;
// pass nil if this Hub value only ever publishes.
func New[T Message](rt *runtime.Runtime, topic string, capacity uint64, maxPayload int, newMsg func() T) (*Hub[T], error) {
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	r, err := openRing(rt, topic, capacity, lenPrefixSize+maxPayload)
	if err != nil {
		return nil, err
	}
	return &Hub[T]{topic: topic, ring: r, maxPayload: maxPayload, newMsg: newMsg}, nil
}

// Send appends msg to the ring. Safe for concurrent use by multiple
// producers, arbitrated by CAS on the head cursor.
func (h *Hub[T]) Send(msg T) error {
	buf := make([]byte, lenPrefixSize+h.maxPayload)
	b, err := msg.MarshalMsg(buf[lenPrefixSize:lenPrefixSize])
	if err != nil {
		return herrors.New(herrors.Communication, "send", h.topic, err)
	}
	if len(b) > h.maxPayload {
		return herrors.New(herrors.InvalidInput, "send", h.topic,
			fmt.Errorf("serialized size %d exceeds slot capacity %d", len(b), h.maxPayload))
	}
	frame := buf[:lenPrefixSize+len(b)]
	copy(frame[:lenPrefixSize], encodeLen(len(b)))
	copy(frame[lenPrefixSize:], b)

	i := h.ring.reserve()
	h.ring.publish(i, frame)
	return nil
}

func encodeLen(n int) []byte {
	b := make([]byte, lenPrefixSize)
	b[0] = byte(n)
	b[1] = byte(n >> 8)
	b[2] = byte(n >> 16)
	b[3] = byte(n >> 24)
	return b
}

func decodeLen(b []byte) int {
	return int(b[0]) | int(b[1])<<8 | int(b[2])<<16 | int(b[3])<<24
}

// Subscriber holds one consumer's local read cursor, kept out of
// shared memory so fan-out cost is independent of subscriber count —
// publishing never has to touch per-subscriber state.
type Subscriber[T Message] struct {
	hub     *Hub[T]
	cursor  uint64
	dropped uint64
	scratch []byte
}

// Subscribe creates a new Subscriber starting at the ring's current
// write position — joins are implicit, no registration in shared
// memory.
func (h *Hub[T]) Subscribe() *Subscriber[T] {
	return &Subscriber[T]{hub: h, cursor: h.ring.head(), scratch: make([]byte, lenPrefixSize+h.maxPayload)}
}

// Dropped returns the cumulative number of messages this subscriber
// has skipped because it was lapped by the writer.
func (s *Subscriber[T]) Dropped() uint64 { return s.dropped }

// Recv returns the next unread message at this subscriber's cursor, or
// ok=false if it is caught up to the writer.
func (s *Subscriber[T]) Recv() (msg T, ok bool, err error) {
	r := s.hub.ring
	head := r.head()
	if s.cursor >= head {
		var zero T
		return zero, false, nil
	}

	want := expectedSeq(s.cursor, r.capacity)
	preSeq, postSeq := r.peek(s.cursor, s.scratch)

	if preSeq != postSeq {
		// Writer landed mid-copy; treat conservatively as a lap and
		// resynchronize rather than return a torn payload.
		s.jumpPastLap(head)
		return s.Recv()
	}

	switch {
	case preSeq < want:
		// Should not happen once head has advanced past cursor, but
		// guards against a reader racing a writer still mid-publish.
		var zero T
		return zero, false, nil
	case preSeq == want:
		n := decodeLen(s.scratch[:lenPrefixSize])
		if n < 0 || n > s.hub.maxPayload {
			var zero T
			return zero, false, herrors.New(herrors.Communication, "recv", s.hub.topic, fmt.Errorf("corrupt length prefix %d", n))
		}
		out := s.hub.newMsg()
		if _, err := out.UnmarshalMsg(s.scratch[lenPrefixSize : lenPrefixSize+n]); err != nil {
			var zero T
			return zero, false, herrors.New(herrors.Communication, "recv", s.hub.topic, err)
		}
		s.cursor++
		return out, true, nil
	default: // preSeq > want: the writer has lapped this subscriber.
		s.jumpPastLap(head)
		return s.Recv()
	}
}

// jumpPastLap resynchronizes a lapped subscriber to the oldest slot the
// writer hasn't yet overwritten (head - capacity + 1) and records how
// many messages were skipped to get there.
func (s *Subscriber[T]) jumpPastLap(head uint64) {
	n := s.hub.ring.capacity
	newCursor := uint64(0)
	if head > n-1 {
		newCursor = head - n + 1
	}
	if newCursor > s.cursor {
		s.dropped += newCursor - s.cursor
		s.cursor = newCursor
	}
}

// Close releases the backing region. It is safe to call from any one
// holder (publisher or subscriber side) once all others are done. The
// ring is opened as owner, so on Linux and Darwin Close also unlinks the
// backing object (see shmregion.Region.Owner): other holders keep their
// mappings, but a later New on the same topic creates a fresh ring.
func (h *Hub[T]) Close() error {
	return h.ring.close()
}
