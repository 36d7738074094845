// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package shmq

// SubState is the lifecycle state of one subscriber slot on a queue.
//
// A slot starts unsubscribed, becomes active when a client claims it, and
// is flagged bad when the maintenance tick catches it missing the
// [MaxMessageAge] deadline. A bad subscriber is excluded from recipient
// sets but keeps its bit until the [SubscriberTimeout] grace period
// elapses and the tick reaps the slot back to unsubscribed.
//
//go:generate go tool stringer -type=SubState
type SubState uint32

const (
	SubUnsubscribed SubState = iota
	SubActive
	SubBad
)
