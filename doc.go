// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package shmq implements a shared-memory message-passing protocol:
// one host process publishes tagged messages and bulk payloads to up to
// 32 independent subscriber processes mapped onto the same memory
// region, with no kernel round-trips and no locks shared with
// subscribers.
//
// The host owns the region: a versioned header, a directory of up to
// [MaxQueues] circular message rings, and a monotonic arena that payload
// buffers are carved from. Subscribers attach with [NewClient], claim a
// slot id in [0, MaxSubscribers) per queue, and acknowledge each message
// by clearing their bit in its pending mask. A subscriber that misses
// the [MaxMessageAge] deadline is flagged bad and excluded from
// delivery, then reaped after [SubscriberTimeout]; one dead reader never
// stalls the rest.
//
// # Quick Start
//
// Host side:
//
//	host, err := shmq.NewHost(region)
//	if err != nil {
//	    return err
//	}
//	queue, err := host.AddQueue(1, 10)
//	if err != nil {
//	    return err
//	}
//	host.Start()
//
//	frame, err := host.Alloc(1 << 16)
//	if err != nil {
//	    return err
//	}
//	for running {
//	    produce(frame.Bytes())
//	    if err := queue.Post(seq, frame); shmq.IsWouldBlock(err) {
//	        // ring full: subscribers are behind
//	    }
//	    host.Tick()
//	}
//
// Subscriber side (typically another process mapping the same region):
//
//	client, err := shmq.NewClient(region)
//	if err != nil {
//	    return err
//	}
//	sub, err := client.Subscribe(1)
//	if err != nil {
//	    return err
//	}
//	for client.SessionValid() {
//	    msg, err := sub.Fetch()
//	    if shmq.IsWouldBlock(err) {
//	        continue
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    consume(msg.Tag, msg.Data)
//	    sub.Ack()
//	}
//
// The region is any caller-owned 8-byte-aligned []byte; package
// [code.hybscloud.com/shmq/shmfile] maps file-backed regions suitable
// for cross-process use.
//
// # Layout Contract
//
// Host and subscribers must agree on the binary layout byte for byte:
// a header (magic, version, sessionID, heartbeat, caps, queue count), a
// fixed directory of queue descriptors, per-queue slot arrays and raw
// payload bytes. Every reference inside the region is a byte offset from
// the region base, never a pointer, because processes map the region at
// different addresses. Every cross-process field is an atomic word.
//
// # Delivery Model
//
// Within one queue, messages are delivered strictly in post order; across
// queues there is no ordering relationship. Post with no live subscriber
// is a success no-op: nothing retains a message nobody will read. A full
// ring surfaces as [ErrWouldBlock] backpressure, never as blocking. The
// maintenance tick force-completes the head message once it exceeds
// [MaxMessageAge] with laggards still pending, so delivery latency is
// bounded regardless of subscriber cooperation.
//
// Payload memory is never reclaimed within a session: Alloc bumps the
// arena forward and [Memory.Free] only drops the handle. Producers are
// expected to allocate a bounded buffer set up front and overwrite the
// buffers at a known cadence; restarting the host is the only way to
// reclaim the arena.
//
// # Session Lifecycle
//
// NewHost stamps a fresh sessionID guaranteed to differ from whatever the
// region held before, even a previous session of the same host binary.
// Clients poll [Client.SessionValid]: a changed session or a heartbeat
// silent past [HeartbeatTimeout] tells them to drop their queues and
// re-attach. Host teardown never clears the region; restart detection
// depends on the stale header staying put.
//
// # Error Handling
//
// Backpressure and empty conditions are [ErrWouldBlock], sourced from
// [code.hybscloud.com/iox] for ecosystem consistency:
//
//	backoff := iox.Backoff{}
//	for {
//	    err := queue.Post(tag, payload)
//	    if err == nil {
//	        backoff.Reset()
//	        break
//	    }
//	    if !shmq.IsWouldBlock(err) {
//	        return err
//	    }
//	    host.Tick()
//	    backoff.Wait()
//	}
//
// Protocol failures are plain sentinels (ErrInvalidMagic, ErrNoQueues,
// ErrQueueTimeout, ...) classified by errors.Is. [Host.Tick] never
// fails.
//
// # Thread Safety
//
// The host is single-writer by contract: Post, Tick, AddQueue, Alloc and
// Close for one Host must be serialized by the caller, either on one
// goroutine or under external synchronization. Post never takes the
// maintenance lock; the serialization requirement is what keeps it safe
// against Tick. Violating it causes undefined behavior including
// corrupted rings.
//
// Each Client with its ClientQueues likewise belongs to one goroutine.
// Concurrency across processes, host against any number of subscribers,
// is the protocol's job, handled with atomic acquire/release pairs on
// the shared words and a per-queue spinlock that only host threads ever
// contend for.
//
// # Race Detection
//
// Go's race detector cannot observe happens-before relationships
// established through atomix memory orderings, so host/subscriber
// stress tests report false positives under -race. These tests are
// excluded via //go:build !race; single-goroutine tests run either way.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/iox] for semantic errors,
// [code.hybscloud.com/atomix] for atomic primitives with explicit
// memory ordering, and [code.hybscloud.com/spin] for CPU pause
// instructions in CAS retry loops.
package shmq
