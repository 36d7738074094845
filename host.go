// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package shmq

import (
	"math/rand/v2"
)

// Host is the producing side of a shared-memory message region. It owns
// the region layout: the header, the queue directory and the arena every
// payload buffer is carved from.
//
// A Host is not goroutine-safe. Post, Tick and the other host operations
// must be serialized by the caller; the protocol's only lock exists to
// order the maintenance tick against host threads, never against
// subscribers. Subscriber processes interact with the region purely
// through atomic words, concurrently with all host operations.
type Host struct {
	mem      []byte
	hdr      *regionHeader
	now      Clock
	queues   [MaxQueues]*Queue
	nextFree uint64
	avail    uint64
	started  bool
}

// Option configures a [Host] or [Client].
type Option func(*config)

type config struct {
	clock Clock
	caps  uint64
}

// WithClock replaces the default monotonic clock. The clock must never
// go backwards; a zero reading is treated as clock failure.
func WithClock(c Clock) Option {
	return func(o *config) { o.clock = c }
}

// WithCaps sets the application capability bits written into the region
// header at init. Clients read them through [Client.Caps]; the protocol
// itself does not interpret them. Ignored by NewClient.
func WithCaps(caps uint64) Option {
	return func(o *config) { o.caps = caps }
}

func applyOptions(opts []Option) config {
	o := config{clock: monoClock}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// NewHost initializes the caller-owned, already-mapped region and returns
// the host engine for it.
//
// The region must be at least [HeaderSize] bytes and 8-byte aligned. Any
// previous content is taken over: the new session identifier is chosen to
// differ from whatever value occupied the sessionID word before, so
// subscribers of a prior session detect the restart even on a reused
// region. NewHost never clears payload bytes.
func NewHost(region []byte, opts ...Option) (*Host, error) {
	o := applyOptions(opts)
	if len(region) == 0 || !regionAligned(region) {
		return nil, ErrInvalidArgument
	}
	if o.clock() == 0 {
		return nil, ErrClockFailure
	}
	if len(region) < HeaderSize {
		return nil, ErrInvalidSize
	}

	hdr := headerOf(region)
	prev := hdr.sessionID.Load()
	sid := rand.Uint64()
	for sid == prev {
		sid = rand.Uint64()
	}
	hdr.magic.Store(headerMagic)
	hdr.version.Store(Version)
	hdr.caps.Store(o.caps)
	hdr.heartbeat.Store(0)
	hdr.numQueues.Store(0)
	// Publishing the fresh session last invalidates stale clients before
	// they can observe the re-zeroed directory.
	hdr.sessionID.StoreRelease(sid)

	return &Host{
		mem:      region,
		hdr:      hdr,
		now:      o.clock,
		nextFree: uint64(HeaderSize),
		avail:    uint64(len(region) - HeaderSize),
	}, nil
}

// AddQueue creates the next queue directory entry with the given
// application identifier and a ring of capacity messages.
//
// One sentinel slot is added internally so cursor equality alone
// distinguishes full from empty. Returns ErrHostStarted once [Host.Start]
// froze the topology, ErrNoQueues when the directory is full, and
// ErrNoSharedMem when the slot array does not fit the arena.
func (h *Host) AddQueue(queueID uint64, capacity int) (*Queue, error) {
	if capacity < 1 {
		return nil, ErrInvalidArgument
	}
	if h.started {
		return nil, ErrHostStarted
	}
	n := int(h.hdr.numQueues.Load())
	if n == MaxQueues {
		return nil, ErrNoQueues
	}

	numSlots := uint64(capacity) + 1
	off, err := h.bump(numSlots * slotSize)
	if err != nil {
		return nil, err
	}
	slots := slotsOf(h.mem, off, numSlots)
	for i := range slots {
		slots[i].tag.Store(0)
		slots[i].offset.Store(0)
		slots[i].size.Store(0)
		slots[i].pending.Store(0)
	}

	d := &h.hdr.queues[n]
	d.queueID.Store(queueID)
	d.numSlots.Store(numSlots)
	d.slotsOff.Store(off)
	d.position.Store(0)
	d.lock.Store(0)
	d.subs.Store(0)

	q := &Queue{
		host:    h,
		desc:    d,
		slots:   slots,
		expires: h.now() + maxMessageAgeMS,
	}
	h.queues[n] = q
	// Directory entry becomes visible to clients only now.
	h.hdr.numQueues.StoreRelease(uint64(n + 1))
	return q, nil
}

// Start moves the host from the configuring phase to the running phase.
// After Start, AddQueue returns ErrHostStarted; Post and Tick work in
// both phases. Idempotent.
func (h *Host) Start() { h.started = true }

// Started reports whether Start has been called.
func (h *Host) Started() bool { return h.started }

// SessionID returns the session identifier of this initialization.
func (h *Host) SessionID() uint64 { return h.hdr.sessionID.Load() }

// Heartbeat returns the current heartbeat counter.
func (h *Host) Heartbeat() uint64 { return h.hdr.heartbeat.Load() }

// Size returns the total region size in bytes.
func (h *Host) Size() uint64 { return uint64(len(h.mem)) }

// Available returns the arena bytes not yet allocated. The accounting
// invariant is Size == Available plus the next free offset; both sides
// move only by bump amounts, never by reclamation.
func (h *Host) Available() uint64 { return h.avail }

// Close releases the host-local bookkeeping. The shared region itself is
// left as is, neither unmapped nor cleared, so a restarted host can detect
// its own prior session through the sessionID check. Queue and payload
// handles are invalid after Close.
func (h *Host) Close() {
	for i := range h.queues {
		h.queues[i] = nil
	}
	h.hdr = nil
	h.mem = nil
}
