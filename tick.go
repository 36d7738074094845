// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package shmq

import (
	"math/bits"

	"code.hybscloud.com/spin"
)

// Tick runs one maintenance pass: it increments the heartbeat, completes
// acknowledged or expired head messages, flags lagging subscribers bad
// and reaps bad subscribers whose grace period elapsed.
//
// Tick never fails; it degrades by force-completing stalled messages so
// one unresponsive subscriber cannot stall delivery to the rest. Call it
// periodically from the host's scheduling loop, typically once per frame
// or on a fixed timer, under the same single-writer contract as Post.
func (h *Host) Tick() {
	h.hdr.heartbeat.Add(1)
	now := h.now()
	for _, q := range h.queues {
		if q == nil {
			continue
		}
		q.tick(now)
	}
}

func (q *Queue) tick(now uint64) {
	// Nothing outstanding and nobody flagged: the sweep has no work.
	// bad is host-written only, so this unlocked peek is stable.
	if q.count == 0 && subsBad(q.desc.subs.Load()) == 0 {
		return
	}

	q.lockTick()

	// Head expiry. Lagging recipients are the head's pending bits
	// restricted to live recipients (subscribed and not yet bad): a
	// stale bit left by an unsubscribed or reaped client never counts.
	// Each newly flagged id gets its own reap deadline and the head is
	// force-completed.
	var head *messageSlot
	var flagged uint32
	if q.count > 0 {
		head = &q.slots[q.start]
		w := q.desc.subs.Load()
		lagging := uint32(head.pending.Load()) & subsOn(w) &^ subsBad(w)
		if lagging != 0 && now > q.expires {
			flagged = lagging
			for rest := lagging; rest != 0; rest &= rest - 1 {
				q.reapAt[bits.TrailingZeros32(rest)] = now + subscriberTimeoutMS
			}
			head.pending.Store(0)
		}
	}

	// Merge the new flags and reap elapsed bad subscribers from both
	// masks. Clients CAS the subs word concurrently (subscribe and
	// unsubscribe), so the update must CAS as well; a blind store would
	// drop theirs, and each attempt must rebuild the word from its own
	// snapshot so a laggard that unsubscribed since the expiry check is
	// not flagged after it already left.
	sw := spin.Wait{}
	var next uint64
	for {
		w := q.desc.subs.Load()
		next = q.nextSubs(w, flagged, now)
		if next == w || q.desc.subs.CompareAndSwapAcqRel(w, next) {
			break
		}
		sw.Once()
	}
	on, bad := subsOn(next), subsBad(next)

	// Completion. The head advances once no live recipient still holds a
	// pending bit, whether by acknowledgment or by the force-clear above.
	// One head per tick.
	if q.count > 0 && uint32(head.pending.Load())&on&^bad == 0 {
		q.start = (q.start + 1) % uint64(len(q.slots))
		q.count--
		if q.count > 0 {
			q.expires = now + maxMessageAgeMS
		}
	}

	q.unlockTick()
}

// nextSubs computes one CAS attempt's updated subscriber word: newly
// flagged ids join the bad mask, then every bad id whose reap deadline
// elapsed leaves both masks. flagged is intersected with this word's
// subscribed mask, not the one the expiry check ran against; by the
// time the CAS lands a laggard may have cleared its own bit, and the
// bad mask must stay a subset of the subscribed mask.
func (q *Queue) nextSubs(w uint64, flagged uint32, now uint64) uint64 {
	on := subsOn(w)
	bad := subsBad(w) | flagged&on
	var reaped uint32
	for rest := bad; rest != 0; rest &= rest - 1 {
		id := bits.TrailingZeros32(rest)
		if now > q.reapAt[id] {
			reaped |= 1 << id
		}
	}
	return packSubs(on&^reaped, bad&^reaped)
}
