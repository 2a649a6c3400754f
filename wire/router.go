package wire

import (
	"encoding/binary"
	"fmt"
	"time"
)

// MsgType identifies a router control/data frame.
type MsgType uint8

const (
	MsgPublish       MsgType = 1
	MsgSubscribe     MsgType = 2
	MsgUnsubscribe   MsgType = 3
	MsgFragment      MsgType = 4
	MsgRouterPublish MsgType = 5
)

// FragmentThreshold is the payload size above which a Publish is split
// into Fragment frames by the client.
const FragmentThreshold = 60 * 1024

// RouterPacket is the on-wire shape of one router frame:
//
//	msg_type:u8 | topic_len:u16 | topic | sequence:u32 | payload_len:u32 | payload
type RouterPacket struct {
	Type     MsgType
	Topic    string
	Sequence uint32
	Payload  []byte
}

// Encode serializes p into its on-wire byte layout.
func (p *RouterPacket) Encode() []byte {
	topic := []byte(p.Topic)
	buf := make([]byte, 1+2+len(topic)+4+4+len(p.Payload))
	off := 0
	buf[off] = byte(p.Type)
	off++
	binary.LittleEndian.PutUint16(buf[off:], uint16(len(topic)))
	off += 2
	off += copy(buf[off:], topic)
	binary.LittleEndian.PutUint32(buf[off:], p.Sequence)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(p.Payload)))
	off += 4
	copy(buf[off:], p.Payload)
	return buf
}

// DecodeRouterPacket parses the layout written by Encode.
func DecodeRouterPacket(b []byte) (*RouterPacket, error) {
	if len(b) < 1+2 {
		return nil, fmt.Errorf("wire: router packet too short (%d bytes)", len(b))
	}
	p := &RouterPacket{Type: MsgType(b[0])}
	off := 1
	topicLen := int(binary.LittleEndian.Uint16(b[off:]))
	off += 2
	if len(b) < off+topicLen+4+4 {
		return nil, fmt.Errorf("wire: router packet truncated")
	}
	p.Topic = string(b[off : off+topicLen])
	off += topicLen
	p.Sequence = binary.LittleEndian.Uint32(b[off:])
	off += 4
	payloadLen := int(binary.LittleEndian.Uint32(b[off:]))
	off += 4
	if len(b) < off+payloadLen {
		return nil, fmt.Errorf("wire: router packet payload truncated")
	}
	p.Payload = append([]byte(nil), b[off:off+payloadLen]...)
	return p, nil
}

// Fragment is one piece of a logical message split because it exceeded
// FragmentThreshold.
type Fragment struct {
	MsgID uint32
	Idx   uint16
	Total uint16
	Bytes []byte
}

// Encode serializes f as msg_id:u32 | idx:u16 | total:u16 | bytes.
func (f *Fragment) Encode() []byte {
	buf := make([]byte, 4+2+2+len(f.Bytes))
	binary.LittleEndian.PutUint32(buf[0:], f.MsgID)
	binary.LittleEndian.PutUint16(buf[4:], f.Idx)
	binary.LittleEndian.PutUint16(buf[6:], f.Total)
	copy(buf[8:], f.Bytes)
	return buf
}

// DecodeFragment parses the layout written by Encode.
func DecodeFragment(b []byte) (*Fragment, error) {
	if len(b) < 8 {
		return nil, fmt.Errorf("wire: fragment too short (%d bytes)", len(b))
	}
	return &Fragment{
		MsgID: binary.LittleEndian.Uint32(b[0:]),
		Idx:   binary.LittleEndian.Uint16(b[4:]),
		Total: binary.LittleEndian.Uint16(b[6:]),
		Bytes: append([]byte(nil), b[8:]...),
	}, nil
}

// SplitFragments splits payload into Fragment frames no larger than
// FragmentThreshold bytes each, sharing msgID.
func SplitFragments(msgID uint32, payload []byte) []*Fragment {
	if len(payload) <= FragmentThreshold {
		return []*Fragment{{MsgID: msgID, Idx: 0, Total: 1, Bytes: payload}}
	}
	total := (len(payload) + FragmentThreshold - 1) / FragmentThreshold
	frags := make([]*Fragment, 0, total)
	for i := 0; i < total; i++ {
		start := i * FragmentThreshold
		end := start + FragmentThreshold
		if end > len(payload) {
			end = len(payload)
		}
		frags = append(frags, &Fragment{
			MsgID: msgID,
			Idx:   uint16(i),
			Total: uint16(total),
			Bytes: payload[start:end],
		})
	}
	return frags
}

// DefaultFragmentGroupTimeout bounds how long a Reassembler holds onto
// a partial group before discarding it.
const DefaultFragmentGroupTimeout = 5 * time.Second

// Reassembler collects Fragment frames for one message-id until all
// indices have arrived, or the group times out.
type Reassembler struct {
	timeout   time.Duration
	total     uint16
	parts     [][]byte
	have      int
	started   bool
	startedAt time.Time
}

// NewReassembler constructs an empty Reassembler using
// DefaultFragmentGroupTimeout.
func NewReassembler() *Reassembler { return NewReassemblerWithTimeout(DefaultFragmentGroupTimeout) }

// NewReassemblerWithTimeout constructs an empty Reassembler with an
// explicit partial-group timeout.
func NewReassemblerWithTimeout(timeout time.Duration) *Reassembler {
	return &Reassembler{timeout: timeout}
}

// Add ingests one fragment; it returns the reassembled payload and true
// once every index 0..total-1 has arrived. A fragment arriving after
// the group has sat open longer than the configured timeout discards
// whatever partial state exists and starts a fresh group in its place,
// rather than holding leaked memory for a sender that never completes.
func (r *Reassembler) Add(f *Fragment) ([]byte, bool) {
	if r.started && time.Since(r.startedAt) > r.timeout {
		r.reset()
	}
	if !r.started {
		r.total = f.Total
		r.parts = make([][]byte, f.Total)
		r.started = true
		r.startedAt = time.Now()
	}
	if int(f.Idx) >= len(r.parts) {
		return nil, false
	}
	if r.parts[f.Idx] == nil {
		r.have++
	}
	r.parts[f.Idx] = f.Bytes
	if r.have < int(r.total) {
		return nil, false
	}
	total := 0
	for _, p := range r.parts {
		total += len(p)
	}
	out := make([]byte, 0, total)
	for _, p := range r.parts {
		out = append(out, p...)
	}
	r.reset()
	return out, true
}

// Stale reports whether this Reassembler holds a partial group older
// than its configured timeout, for callers that want to sweep idle
// reassemblers (e.g. one per sender) without waiting for a new
// fragment to trigger the reset in Add.
func (r *Reassembler) Stale() bool {
	return r.started && time.Since(r.startedAt) > r.timeout
}

func (r *Reassembler) reset() {
	r.started = false
	r.parts = nil
	r.have = 0
	r.total = 0
}
