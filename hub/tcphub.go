package hub

import (
	"time"

	"github.com/horus-rt/horus/router"
	"github.com/horus-rt/horus/wire"
)

// TCPHub is the cross-host Hub variant: a client of a central topic-
// router daemon.
type TCPHub[T Message] struct {
	topic  string
	client *router.Client
	newMsg func() T

	reasm    *wire.Reassembler
	reasmSeq uint32
}

// NewTCPHub wraps client for publishing and subscribing on topic.
// newMsg may be nil if this handle only ever publishes.
func NewTCPHub[T Message](topic string, client *router.Client, newMsg func() T) *TCPHub[T] {
	return &TCPHub[T]{topic: topic, client: client, newMsg: newMsg}
}

// Subscribe registers interest in the topic with the router.
func (h *TCPHub[T]) Subscribe() error {
	return h.client.Subscribe(h.topic)
}

// Unsubscribe withdraws interest.
func (h *TCPHub[T]) Unsubscribe() error {
	return h.client.Unsubscribe(h.topic)
}

// Send serializes and publishes msg on the topic.
func (h *TCPHub[T]) Send(msg T) error {
	b, err := msg.MarshalMsg(nil)
	if err != nil {
		return err
	}
	return h.client.Publish(h.topic, b)
}

// Recv returns the next fully-reassembled message for this topic,
// non-blocking. Fragment packets are buffered internally until a
// complete group arrives.
func (h *TCPHub[T]) Recv() (msg T, ok bool, err error) {
	for {
		pkt, got := h.client.Recv()
		if !got {
			var zero T
			return zero, false, nil
		}
		if pkt.Topic != h.topic {
			continue
		}
		payload, complete := h.assemble(pkt)
		if !complete {
			continue
		}
		out := h.newMsg()
		if _, err := out.UnmarshalMsg(payload); err != nil {
			var zero T
			return zero, false, err
		}
		return out, true, nil
	}
}

func (h *TCPHub[T]) assemble(pkt *wire.RouterPacket) ([]byte, bool) {
	if pkt.Type != wire.MsgFragment {
		return pkt.Payload, true
	}
	frag, err := wire.DecodeFragment(pkt.Payload)
	if err != nil {
		return nil, false
	}
	if h.reasm == nil || h.reasmSeq != frag.MsgID {
		h.reasm = wire.NewReassembler()
		h.reasmSeq = frag.MsgID
	}
	payload, complete := h.reasm.Add(frag)
	if complete {
		h.reasm = nil
	}
	return payload, complete
}

// RecvTimeout blocks until a message arrives or d elapses.
func (h *TCPHub[T]) RecvTimeout(d time.Duration) (msg T, ok bool, err error) {
	deadline := time.Now().Add(d)
	for {
		msg, ok, err = h.Recv()
		if ok || err != nil {
			return
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			var zero T
			return zero, false, nil
		}
		sleep := 500 * time.Microsecond
		if sleep > remaining {
			sleep = remaining
		}
		time.Sleep(sleep)
	}
}
