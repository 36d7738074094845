// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package shmq

import (
	"code.hybscloud.com/spin"
)

// Queue pairs one shared directory entry with the host-local state the
// maintenance tick needs: the read cursor, the outstanding count, the
// head expiry deadline and the per-subscriber reap table.
//
// Queue methods follow the host's single-writer contract: they must not
// be called concurrently with each other or with [Host.Tick].
type Queue struct {
	host    *Host
	desc    *queueDesc
	slots   []messageSlot
	start   uint64
	count   uint64
	expires uint64
	reapAt  [MaxSubscribers]uint64
}

// ID returns the application queue identifier.
func (q *Queue) ID() uint64 { return q.desc.queueID.Load() }

// Cap returns the usable message capacity (the ring holds one extra
// sentinel slot).
func (q *Queue) Cap() int { return len(q.slots) - 1 }

// Outstanding returns the number of posted messages not yet completed.
// Exact, because it is host-private state.
func (q *Queue) Outstanding() int { return int(q.count) }

// Subscribers returns the current subscribed and flagged-bad masks.
// Bad is always a subset of subscribed.
func (q *Queue) Subscribers() (subscribed, bad uint32) {
	w := q.desc.subs.Load()
	return subsOn(w), subsBad(w)
}

// SubscriberState reports the lifecycle state of one subscriber slot.
// Ids outside [0, MaxSubscribers) are never subscribed.
func (q *Queue) SubscriberState(id int) SubState {
	if id < 0 || id >= MaxSubscribers {
		return SubUnsubscribed
	}
	w := q.desc.subs.Load()
	bit := uint32(1) << id
	switch {
	case subsBad(w)&bit != 0:
		return SubBad
	case subsOn(w)&bit != 0:
		return SubActive
	}
	return SubUnsubscribed
}

// Post publishes one message carrying the opaque tag and the payload's
// offset and size.
//
// The recipient set is the subscribed mask minus the bad mask, read once
// at entry. An empty set makes Post a no-op success: nothing retains a
// message nobody will read, and the ring does not advance.
// A full ring (outstanding == Cap) returns ErrWouldBlock as backpressure;
// the caller decides whether to retry or drop.
//
// Post never takes the maintenance lock. It writes only the slot at the
// write cursor, which the tick never touches while outstanding messages
// keep it behind the read cursor; the single-writer contract on the host
// covers the rest.
func (q *Queue) Post(tag uint64, payload *Memory) error {
	if payload == nil || payload.host == nil {
		return ErrInvalidArgument
	}
	recipients := q.desc.subs.LoadAcquire()
	live := subsOn(recipients) &^ subsBad(recipients)
	if live == 0 {
		return nil
	}
	numSlots := uint64(len(q.slots))
	if q.count == numSlots-1 {
		return ErrWouldBlock
	}

	pos := q.desc.position.LoadRelaxed()
	slot := &q.slots[pos]
	slot.tag.StoreRelaxed(tag)
	slot.offset.StoreRelaxed(payload.offset)
	slot.size.StoreRelaxed(payload.size)
	slot.pending.StoreRelease(uint64(live))

	if q.count == 0 {
		q.expires = q.host.now() + maxMessageAgeMS
	}
	q.count++
	// Cursor release-store publishes the slot contents to subscribers.
	q.desc.position.StoreRelease((pos + 1) % numSlots)
	return nil
}

// lockTick acquires the per-queue maintenance spinlock. Subscribers never
// contend for it; it orders tick bookkeeping across host threads only, so
// the bounded spin stays short.
func (q *Queue) lockTick() {
	sw := spin.Wait{}
	for !q.desc.lock.CompareAndSwapAcqRel(0, 1) {
		sw.Once()
	}
}

func (q *Queue) unlockTick() {
	q.desc.lock.StoreRelease(0)
}
