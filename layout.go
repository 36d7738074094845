// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package shmq

import (
	"time"
	"unsafe"

	"code.hybscloud.com/atomix"
)

// Protocol identity. Host and every subscriber mapping the same region
// must agree on these values byte for byte.
const (
	// headerMagic is "SHMQRING" read as a little-endian word.
	headerMagic uint64 = 0x474e4952514d4853

	// Version is the protocol revision written into the region header.
	Version = 1
)

const (
	// MaxQueues is the fixed size of the queue directory.
	MaxQueues = 5

	// MaxSubscribers is the number of subscriber slots per queue.
	// Subscriber identity is a bit index in the 32-bit masks below.
	MaxSubscribers = 32
)

const (
	// MaxMessageAge is how long the head message of a queue may stay
	// unacknowledged before lagging subscribers are flagged bad and the
	// message is force-completed.
	MaxMessageAge = 150 * time.Millisecond

	// SubscriberTimeout is how long a bad-flagged subscriber keeps its
	// slot before it is reaped and may subscribe again.
	SubscriberTimeout = 10 * time.Second

	// HeartbeatTimeout is how long a client tolerates a silent host
	// heartbeat before it considers the session dead.
	HeartbeatTimeout = 200 * time.Millisecond
)

const (
	maxMessageAgeMS     = uint64(MaxMessageAge / time.Millisecond)
	subscriberTimeoutMS = uint64(SubscriberTimeout / time.Millisecond)
	heartbeatTimeoutMS  = uint64(HeartbeatTimeout / time.Millisecond)
)

// regionHeader sits at offset 0 of the shared region. Every field is an
// atomic word because subscriber processes poll them concurrently with
// host writes. All references into the region are byte offsets, never
// pointers: the region may be mapped at different base addresses in
// different processes.
type regionHeader struct {
	magic     atomix.Uint64 // 0x00: headerMagic
	version   atomix.Uint64 // 0x08: Version
	sessionID atomix.Uint64 // 0x10: changes on every host init
	heartbeat atomix.Uint64 // 0x18: incremented by every tick
	caps      atomix.Uint64 // 0x20: application capability bits
	numQueues atomix.Uint64 // 0x28: live entries in queues
	_         [16]byte
	queues    [MaxQueues]queueDesc // 0x40
}

// queueDesc is one queue directory entry, sized to a cache line.
//
// subs packs two 32-bit masks into one word so a single atomic update
// keeps them consistent: the low half is the subscribed mask, the high
// half the flagged-bad mask. Bad is always a subset of subscribed.
type queueDesc struct {
	queueID  atomix.Uint64 // 0x00: application queue identifier
	numSlots atomix.Uint64 // 0x08: ring capacity incl. sentinel, >= 2
	slotsOff atomix.Uint64 // 0x10: byte offset of the messageSlot array
	position atomix.Uint64 // 0x18: write cursor, stored modulo numSlots
	lock     atomix.Uint64 // 0x20: maintenance spinlock, host-private
	subs     atomix.Uint64 // 0x28: packed subscriber word
	_        [16]byte
}

// messageSlot is one entry of a queue's circular message ring.
// pending bit i set means subscriber i has not yet acknowledged the
// message; the slot may be overwritten only after the ring advances
// past it with pending at zero.
type messageSlot struct {
	tag     atomix.Uint64 // 0x00: producer-supplied opaque value
	offset  atomix.Uint64 // 0x08: payload byte offset into the region
	size    atomix.Uint64 // 0x10: payload size in bytes
	pending atomix.Uint64 // 0x18: acknowledgement mask, low 32 bits
}

// HeaderSize is the byte size of the shared region header including the
// queue directory. A region must be at least this large.
const HeaderSize = int(unsafe.Sizeof(regionHeader{}))

const slotSize = uint64(unsafe.Sizeof(messageSlot{}))

func headerOf(region []byte) *regionHeader {
	return (*regionHeader)(unsafe.Pointer(unsafe.SliceData(region)))
}

func slotsOf(region []byte, off, n uint64) []messageSlot {
	p := unsafe.Add(unsafe.Pointer(unsafe.SliceData(region)), uintptr(off))
	return unsafe.Slice((*messageSlot)(p), int(n))
}

func subsOn(w uint64) uint32 { return uint32(w) }

func subsBad(w uint64) uint32 { return uint32(w >> 32) }

func packSubs(on, bad uint32) uint64 { return uint64(bad)<<32 | uint64(on) }

func regionAligned(region []byte) bool {
	return uintptr(unsafe.Pointer(unsafe.SliceData(region)))%8 == 0
}

func align8(n uint64) uint64 { return (n + 7) &^ 7 }
