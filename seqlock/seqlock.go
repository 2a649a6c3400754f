// Package seqlock implements the single-writer seqlock protocol shared
// by the shared-memory Link and PodLink transports: a 64-byte
// cache-line-aligned header (sequence counter, element size, padding)
// followed by one payload slot. A single writer publishes by bumping
// the sequence to odd, copying the payload, then bumping it to even;
// readers sample the sequence before and after copying and only accept
// a read where it stayed even and unchanged, detecting a writer that
// raced them mid-copy without needing a lock.
package seqlock

import (
	"encoding/binary"
	"sync/atomic"
	"unsafe"
)

// HeaderSize is the fixed, cache-line-aligned slot header size: an
// 8-byte sequence counter, an 8-byte element size, and padding out to
// a full cache line so the header never shares a line with the payload.
const HeaderSize = 64

const (
	headerSeqOffset      = 0
	headerElemSizeOffset = 8
)

// SeqPtr returns an atomic-safe pointer to the sequence counter.
// Callers must ensure data is at least HeaderSize bytes and 8-byte
// aligned, which mmap'd regions always are.
func SeqPtr(data []byte) *uint64 {
	return (*uint64)(unsafe.Pointer(&data[headerSeqOffset]))
}

// ElemSizePtr returns an atomic-safe pointer to the recorded element
// size, validated by every attaching endpoint.
func ElemSizePtr(data []byte) *uint64 {
	return (*uint64)(unsafe.Pointer(&data[headerElemSizeOffset]))
}

// InitHeader stores elemSize for a freshly created region and leaves
// the sequence at 0 (even: no write has happened yet, nothing to read).
func InitHeader(data []byte, elemSize uint64) {
	atomic.StoreUint64(ElemSizePtr(data), elemSize)
	atomic.StoreUint64(SeqPtr(data), 0)
}

// CheckElemSize validates that an attaching endpoint agrees with the
// region's recorded element size. A mismatch is a fatal initialization
// error, never silently coerced.
func CheckElemSize(data []byte, want uint64) (got uint64, ok bool) {
	got = atomic.LoadUint64(ElemSizePtr(data))
	return got, got == want
}

// PayloadSlot returns the mutable payload region following the header.
func PayloadSlot(data []byte) []byte {
	return data[HeaderSize:]
}

// Write performs the producer side of the seqlock protocol: increment
// to odd (write in progress), copy the payload, then increment to even
// (write complete). Single-writer only — callers must serialize
// producers themselves (Link and PodLink guarantee this by
// construction; Hub uses a different, CAS-based protocol in package hub).
func Write(data []byte, payload []byte) {
	seq := SeqPtr(data)
	cur := atomic.LoadUint64(seq)
	atomic.StoreUint64(seq, cur+1) // odd: write in progress
	copy(PayloadSlot(data), payload)
	atomic.StoreUint64(seq, cur+2) // even: write complete
}

// ReadAttempts bounds the retry loop for torn reads before the consumer
// reports a recoverable error.
const ReadAttempts = 8

// Read performs the consumer side: sample the sequence, read the
// payload, sample again, and accept only if the sequence was even and
// unchanged across the read. lastSeen is the last sequence this
// consumer has accepted; a sequence <= lastSeen means no new data.
func Read(data []byte, out []byte, lastSeen uint64) (seq uint64, fresh bool, torn bool) {
	seqAddr := SeqPtr(data)
	for attempt := 0; attempt < ReadAttempts; attempt++ {
		s1 := atomic.LoadUint64(seqAddr)
		if s1%2 != 0 {
			continue // writer mid-write; retry
		}
		if s1 <= lastSeen {
			return s1, false, false
		}
		copy(out, PayloadSlot(data))
		s2 := atomic.LoadUint64(seqAddr)
		if s1 == s2 {
			return s1, true, false
		}
	}
	return 0, false, true
}

// EncodeLen writes a 4-byte little-endian length prefix; used by the
// generic (non-POD) Link codec path so a payload slot can hold a
// variable-length serialized message up to its capacity.
func EncodeLen(b []byte, n int) {
	binary.LittleEndian.PutUint32(b, uint32(n))
}

// DecodeLen reads a length prefix written by EncodeLen.
func DecodeLen(b []byte) int {
	return int(binary.LittleEndian.Uint32(b))
}
