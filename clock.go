// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package shmq

import "time"

// Clock returns a monotonic timestamp in milliseconds. A reading of zero
// means the clock source is broken; [NewHost] and [NewClient] probe for
// that once because every timeout decision in the protocol depends on a
// working monotonic clock.
//
// The default clock counts milliseconds since process start, offset by
// one so it never reads zero. Tests inject their own via [WithClock].
type Clock func() uint64

var clockEpoch = time.Now()

func monoClock() uint64 {
	return uint64(time.Since(clockEpoch)/time.Millisecond) + 1
}
