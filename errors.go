// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package shmq

import (
	"errors"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock indicates the operation cannot proceed immediately.
//
// For Post: the message ring is full (backpressure)
// For Fetch and Ack: no message is available
// For Subscribe: all 32 subscriber slots are taken
//
// ErrWouldBlock is a control flow signal, not a failure. The caller should
// retry the operation later (with backoff or yield) rather than propagating
// the error.
//
// This is an alias for [iox.ErrWouldBlock] for ecosystem consistency.
//
// Example:
//
//	backoff := iox.Backoff{}
//	for {
//	    err := queue.Post(tag, payload)
//	    if err == nil {
//	        backoff.Reset()
//	        break
//	    }
//	    if shmq.IsWouldBlock(err) {
//	        host.Tick()     // let acknowledged messages complete
//	        backoff.Wait()
//	        continue
//	    }
//	    return err  // Unexpected error
//	}
var ErrWouldBlock = iox.ErrWouldBlock

// Protocol errors. All operations report outcomes through error returns;
// none of them panic on data-dependent conditions.
var (
	// ErrClockFailure means the monotonic clock source probed at init
	// returned zero. Fatal: no timeout logic can run without it.
	ErrClockFailure = errors.New("shmq: monotonic clock unavailable")

	// ErrInvalidArgument covers nil or misaligned regions, nil or freed
	// payload handles, and non-positive sizes.
	ErrInvalidArgument = errors.New("shmq: invalid argument")

	// ErrInvalidSize means the region is smaller than the header.
	ErrInvalidSize = errors.New("shmq: region smaller than header")

	// ErrInvalidMagic means the region does not hold an initialized
	// header.
	ErrInvalidMagic = errors.New("shmq: region magic mismatch")

	// ErrInvalidVersion means the host was built against an
	// incompatible protocol revision.
	ErrInvalidVersion = errors.New("shmq: protocol version mismatch")

	// ErrInvalidSession means the host re-initialized the region after
	// this client attached.
	ErrInvalidSession = errors.New("shmq: session changed")

	// ErrNoSharedMem means the region's arena cannot satisfy the
	// requested allocation. Recoverable by reducing demand.
	ErrNoSharedMem = errors.New("shmq: shared region exhausted")

	// ErrHostStarted means the queue topology is frozen: AddQueue was
	// called after Start.
	ErrHostStarted = errors.New("shmq: host already started")

	// ErrNoQueues means the fixed queue directory is full.
	ErrNoQueues = errors.New("shmq: queue directory full")

	// ErrNoSuchQueue means no directory entry carries the requested
	// queue identifier.
	ErrNoSuchQueue = errors.New("shmq: no such queue")

	// ErrUnsubscribed means the subscriber's bit is not set in the
	// queue's subscribed mask.
	ErrUnsubscribed = errors.New("shmq: not subscribed")

	// ErrQueueTimeout means the subscriber missed the delivery deadline
	// and is flagged bad. It stays excluded until reaped; only then may
	// it subscribe again.
	ErrQueueTimeout = errors.New("shmq: subscriber flagged unresponsive")
)

// IsWouldBlock reports whether err indicates the operation would block.
// Delegates to [iox.IsWouldBlock] for wrapped error support.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsSemantic reports whether err is a control flow signal (not a failure).
// Delegates to [iox.IsSemantic].
func IsSemantic(err error) bool {
	return iox.IsSemantic(err)
}

// IsNonFailure reports whether err represents a non-failure condition.
// Delegates to [iox.IsNonFailure].
func IsNonFailure(err error) bool {
	return iox.IsNonFailure(err)
}
