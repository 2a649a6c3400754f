// Package hub implements the multi-producer/multi-consumer publish-
// subscribe channel, in its shared-memory ring-buffer variant and its
// TCP router-client variant.
//
// The ring buffer reserves write slots via a compare-and-swap on a
// shared head cursor (no kernel lock, safe for multiple concurrent
// writers), and tags each slot with a generation-based sequence number
// so a lagging reader can detect that its cursor has been lapped and
// resynchronize rather than reading stale or torn data.
package hub

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/horus-rt/horus/herrors"
	"github.com/horus-rt/horus/runtime"
	"github.com/horus-rt/horus/shmregion"
)

// RingHeaderSize is the fixed header preceding the slot array:
// {capacity:u32, slot_size:u32, head:u64 atomic, padding}, rounded up
// to a cache line.
const RingHeaderSize = 64

const (
	ringCapacityOffset = 0
	ringSlotSizeOffset = 4
	ringHeadOffset      = 8
)

// ring is the low-level byte-level ring buffer shared across processes.
// Each slot is {sequence:u64 atomic, payload:[slot_size]byte}.
type ring struct {
	region   *shmregion.Region
	capacity uint64 // power of two
	slotSize int    // payload bytes per slot
}

func slotStride(slotSize int) int { return 8 + slotSize }

func openRing(rt *runtime.Runtime, topic string, capacity uint64, slotSize int) (*ring, error) {
	if capacity == 0 || capacity&(capacity-1) != 0 {
		return nil, herrors.New(herrors.InvalidInput, "open_ring", topic, fmt.Errorf("capacity %d must be a power of two", capacity))
	}
	total := RingHeaderSize + int(capacity)*slotStride(slotSize)
	region, err := shmregion.OpenOrCreate(rt, topic, total, true)
	if err != nil {
		return nil, err
	}

	r := &ring{region: region, capacity: capacity, slotSize: slotSize}

	existingCap := atomic.LoadUint32(r.capacityPtr())
	if existingCap == 0 {
		atomic.StoreUint32(r.capacityPtr(), uint32(capacity))
		atomic.StoreUint32(r.slotSizePtr(), uint32(slotSize))
		atomic.StoreUint64(r.headPtr(), 0)
	} else if existingCap != uint32(capacity) || atomic.LoadUint32(r.slotSizePtr()) != uint32(slotSize) {
		region.Close()
		return nil, herrors.New(herrors.InvalidInput, "open_ring", topic,
			fmt.Errorf("ring geometry mismatch: region has capacity=%d slot_size=%d, requested capacity=%d slot_size=%d",
				existingCap, atomic.LoadUint32(r.slotSizePtr()), capacity, slotSize))
	}
	return r, nil
}

func (r *ring) capacityPtr() *uint32 {
	return (*uint32)(unsafe.Pointer(&r.region.Bytes[ringCapacityOffset]))
}

func (r *ring) slotSizePtr() *uint32 {
	return (*uint32)(unsafe.Pointer(&r.region.Bytes[ringSlotSizeOffset]))
}

func (r *ring) headPtr() *uint64 {
	return (*uint64)(unsafe.Pointer(&r.region.Bytes[ringHeadOffset]))
}

func (r *ring) slotBytes(i uint64) []byte {
	idx := i & (r.capacity - 1)
	off := RingHeaderSize + int(idx)*slotStride(r.slotSize)
	return r.region.Bytes[off : off+slotStride(r.slotSize)]
}

func (r *ring) slotSeqPtr(slot []byte) *uint64 {
	return (*uint64)(unsafe.Pointer(&slot[0]))
}

func (r *ring) slotPayload(slot []byte) []byte {
	return slot[8:]
}

// reserve claims the next write index via a compare-and-swap loop on
// the head cursor, letting multiple concurrent senders serialize
// without a kernel lock.
func (r *ring) reserve() uint64 {
	head := r.headPtr()
	for {
		old := atomic.LoadUint64(head)
		if atomic.CompareAndSwapUint64(head, old, old+1) {
			return old
		}
	}
}

// publish writes payload into the slot reserved at index i and marks
// it ready by bumping its sequence to (i / capacity) * 2 + 2 — even,
// and tagged with the generation that owns this pass through the ring.
func (r *ring) publish(i uint64, payload []byte) {
	slot := r.slotBytes(i)
	copy(r.slotPayload(slot), payload)
	gen := i / r.capacity
	atomic.StoreUint64(r.slotSeqPtr(slot), gen*2+2)
}

// head returns the current write index.
func (r *ring) head() uint64 {
	return atomic.LoadUint64(r.headPtr())
}

// expectedSeq is the sequence a slot must carry for cursor c to read
// it, i.e. the generation that wrote index c.
func expectedSeq(c, capacity uint64) uint64 {
	return (c/capacity)*2 + 2
}

// peek reads the slot at cursor c without advancing anything. It
// samples the slot's sequence both before and after copying the
// payload, seqlock-style, so the caller can detect a write landing
// mid-copy in addition to the generation-based drop signal.
func (r *ring) peek(c uint64, out []byte) (preSeq, postSeq uint64) {
	slot := r.slotBytes(c)
	preSeq = atomic.LoadUint64(r.slotSeqPtr(slot))
	copy(out, r.slotPayload(slot))
	postSeq = atomic.LoadUint64(r.slotSeqPtr(slot))
	return preSeq, postSeq
}

func (r *ring) close() error {
	return r.region.Close()
}
