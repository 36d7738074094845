// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package shmq

import (
	"math/bits"

	"code.hybscloud.com/spin"
)

// Client is the subscribing side of a shared-memory message region. It
// only ever reads the structures the host laid out, plus two writes it
// owns: its bits in each queue's subscriber word and its bit in a
// message's pending mask. Both go through CAS, never through the
// maintenance lock.
//
// A Client and the ClientQueues derived from it belong to one goroutine;
// SessionValid and the queue cursor mutate local state.
type Client struct {
	mem     []byte
	hdr     *regionHeader
	now     Clock
	session uint64
	hbLast  uint64
	hbSeen  uint64
}

// NewClient attaches to a region previously initialized by a host.
// Returns ErrInvalidMagic or ErrInvalidVersion when the header does not
// carry this protocol revision. The session observed here is the one all
// ClientQueue operations stay bound to.
func NewClient(region []byte, opts ...Option) (*Client, error) {
	o := applyOptions(opts)
	if len(region) == 0 || !regionAligned(region) {
		return nil, ErrInvalidArgument
	}
	now := o.clock()
	if now == 0 {
		return nil, ErrClockFailure
	}
	if len(region) < HeaderSize {
		return nil, ErrInvalidSize
	}
	hdr := headerOf(region)
	if hdr.magic.Load() != headerMagic {
		return nil, ErrInvalidMagic
	}
	if hdr.version.Load() != Version {
		return nil, ErrInvalidVersion
	}
	return &Client{
		mem:     region,
		hdr:     hdr,
		now:     o.clock,
		session: hdr.sessionID.LoadAcquire(),
		hbLast:  hdr.heartbeat.Load(),
		hbSeen:  now,
	}, nil
}

// SessionID returns the session this client attached to.
func (c *Client) SessionID() uint64 { return c.session }

// Caps returns the host's capability bits.
func (c *Client) Caps() uint64 { return c.hdr.caps.Load() }

// SessionValid reports whether the host side is still alive: the header
// still carries this client's session and the heartbeat has moved within
// [HeartbeatTimeout]. A false result means the host restarted, died or
// stalled; the client should drop its queues and re-attach.
func (c *Client) SessionValid() bool {
	if c.hdr.magic.Load() != headerMagic ||
		c.hdr.version.Load() != Version ||
		c.hdr.sessionID.Load() != c.session {
		return false
	}
	now := c.now()
	if hb := c.hdr.heartbeat.Load(); hb != c.hbLast {
		c.hbLast = hb
		c.hbSeen = now
	}
	return now-c.hbSeen <= heartbeatTimeoutMS
}

// Subscribe claims the lowest free subscriber slot on the queue with the
// given identifier. The claim is a CAS on the queue's subscriber word;
// slots flagged bad stay unavailable until the host reaps them. Returns
// ErrNoSuchQueue when no directory entry matches and ErrWouldBlock when
// all 32 slots are taken.
//
// Delivery starts at the current write cursor: messages posted before
// Subscribe are not replayed.
func (c *Client) Subscribe(queueID uint64) (*ClientQueue, error) {
	n := int(c.hdr.numQueues.LoadAcquire())
	var d *queueDesc
	for i := 0; i < n; i++ {
		if c.hdr.queues[i].queueID.Load() == queueID {
			d = &c.hdr.queues[i]
			break
		}
	}
	if d == nil {
		return nil, ErrNoSuchQueue
	}

	sw := spin.Wait{}
	var id int
	for {
		w := d.subs.Load()
		on, bad := subsOn(w), subsBad(w)
		free := ^(on | bad)
		if free == 0 {
			return nil, ErrWouldBlock
		}
		id = bits.TrailingZeros32(free)
		if d.subs.CompareAndSwapAcqRel(w, packSubs(on|uint32(1)<<id, bad)) {
			break
		}
		sw.Once()
	}

	return &ClientQueue{
		client:   c,
		desc:     d,
		slots:    slotsOf(c.mem, d.slotsOff.Load(), d.numSlots.Load()),
		id:       uint32(id),
		position: d.position.LoadAcquire(),
	}, nil
}

// ClientQueue is one claimed subscriber slot on one queue.
type ClientQueue struct {
	client   *Client
	desc     *queueDesc
	slots    []messageSlot
	id       uint32
	position uint64
}

// Message is one delivery. Data is a window into the shared region; it
// stays coherent while the message is outstanding, so consume or copy it
// before Ack and within the [MaxMessageAge] deadline.
type Message struct {
	Tag  uint64
	Data []byte
}

// ID returns the claimed subscriber slot index in [0, MaxSubscribers).
func (cq *ClientQueue) ID() uint32 { return cq.id }

// State reports this subscriber's lifecycle state as the host sees it.
func (cq *ClientQueue) State() SubState {
	w := cq.desc.subs.Load()
	bit := uint32(1) << cq.id
	switch {
	case subsBad(w)&bit != 0:
		return SubBad
	case subsOn(w)&bit != 0:
		return SubActive
	}
	return SubUnsubscribed
}

// Fetch returns the message at this subscriber's cursor without
// consuming it; call [ClientQueue.Ack] to acknowledge and move on.
// Returns ErrWouldBlock when no message is pending, ErrQueueTimeout once
// the host flagged this subscriber bad, ErrUnsubscribed when the slot is
// no longer claimed, and ErrInvalidSession when the host re-initialized
// the region.
func (cq *ClientQueue) Fetch() (Message, error) {
	if cq.client.hdr.sessionID.Load() != cq.client.session {
		return Message{}, ErrInvalidSession
	}
	w := cq.desc.subs.LoadAcquire()
	bit := uint32(1) << cq.id
	if subsBad(w)&bit != 0 {
		return Message{}, ErrQueueTimeout
	}
	if subsOn(w)&bit == 0 {
		return Message{}, ErrUnsubscribed
	}
	if cq.desc.position.LoadAcquire() == cq.position {
		return Message{}, ErrWouldBlock
	}
	slot := &cq.slots[cq.position]
	off, size := slot.offset.Load(), slot.size.Load()
	return Message{
		Tag:  slot.tag.Load(),
		Data: cq.client.mem[off : off+size],
	}, nil
}

// Ack clears this subscriber's bit in the current message's pending mask
// and advances the cursor. The deadline clock for the message stops for
// this subscriber at that point; the host completes the message once
// every live recipient has done the same. Returns ErrQueueTimeout once
// the host flagged this subscriber bad, ErrUnsubscribed when the slot is
// no longer claimed, and ErrWouldBlock when there is nothing to
// acknowledge. A flagged or released subscriber must not touch pending
// masks: the slot id may already belong to the next claimant.
func (cq *ClientQueue) Ack() error {
	w := cq.desc.subs.LoadAcquire()
	bit := uint32(1) << cq.id
	if subsBad(w)&bit != 0 {
		return ErrQueueTimeout
	}
	if subsOn(w)&bit == 0 {
		return ErrUnsubscribed
	}
	if cq.desc.position.LoadAcquire() == cq.position {
		return ErrWouldBlock
	}
	slot := &cq.slots[cq.position]
	pend := uint64(1) << cq.id
	sw := spin.Wait{}
	for {
		p := slot.pending.Load()
		if p&pend == 0 || slot.pending.CompareAndSwapAcqRel(p, p&^pend) {
			break
		}
		sw.Once()
	}
	cq.position = (cq.position + 1) % uint64(len(cq.slots))
	return nil
}

// Unsubscribe releases the subscriber slot. Refused with ErrQueueTimeout
// while the slot is flagged bad: the host's reap path owns that cleanup,
// and the id must serve its grace period before reuse. Unsubscribing
// with fetched-but-unacknowledged messages is allowed; stale pending
// bits never block completion.
func (cq *ClientQueue) Unsubscribe() error {
	bit := uint32(1) << cq.id
	sw := spin.Wait{}
	for {
		w := cq.desc.subs.Load()
		on, bad := subsOn(w), subsBad(w)
		if bad&bit != 0 {
			return ErrQueueTimeout
		}
		if on&bit == 0 {
			return nil
		}
		if cq.desc.subs.CompareAndSwapAcqRel(w, packSubs(on&^bit, bad)) {
			return nil
		}
		sw.Once()
	}
}
