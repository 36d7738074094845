// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package shmq_test

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"code.hybscloud.com/shmq"
)

func TestTickHeartbeat(t *testing.T) {
	host, _ := newHost(t, 1<<16)
	if host.Heartbeat() != 0 {
		t.Fatalf("heartbeat: got %d, want 0", host.Heartbeat())
	}
	for i := range uint64(5) {
		host.Tick()
		if host.Heartbeat() != i+1 {
			t.Fatalf("heartbeat: got %d, want %d", host.Heartbeat(), i+1)
		}
	}
}

func TestTickCompletesAcknowledgedHead(t *testing.T) {
	host, region := newHost(t, 1<<16)
	queue, err := host.AddQueue(1, 4)
	if err != nil {
		t.Fatalf("AddQueue: %v", err)
	}
	client, err := shmq.NewClient(region)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	sub, err := client.Subscribe(1)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	mem, err := host.Alloc(16)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	if err := queue.Post(7, mem); err != nil {
		t.Fatalf("post: %v", err)
	}

	// Unacknowledged and unexpired: the head stays.
	host.Tick()
	if queue.Outstanding() != 1 {
		t.Fatalf("outstanding: got %d, want 1", queue.Outstanding())
	}

	if _, err := sub.Fetch(); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if err := sub.Ack(); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	host.Tick()
	if queue.Outstanding() != 0 {
		t.Fatalf("outstanding after ack: got %d, want 0", queue.Outstanding())
	}
	if on, bad := queue.Subscribers(); on != 0b1 || bad != 0 {
		t.Fatalf("subscribers: got %#x/%#x, want 0x1/0x0", on, bad)
	}
}

func TestTickAdvancesOneHeadPerPass(t *testing.T) {
	host, region := newHost(t, 1<<16)
	queue, err := host.AddQueue(1, 4)
	if err != nil {
		t.Fatalf("AddQueue: %v", err)
	}
	client, err := shmq.NewClient(region)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	sub, err := client.Subscribe(1)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	mem, err := host.Alloc(16)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	for tag := uint64(1); tag <= 2; tag++ {
		if err := queue.Post(tag, mem); err != nil {
			t.Fatalf("post %d: %v", tag, err)
		}
	}
	for range 2 {
		if _, err := sub.Fetch(); err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if err := sub.Ack(); err != nil {
			t.Fatalf("Ack: %v", err)
		}
	}

	host.Tick()
	if queue.Outstanding() != 1 {
		t.Fatalf("outstanding after first tick: got %d, want 1", queue.Outstanding())
	}
	host.Tick()
	if queue.Outstanding() != 0 {
		t.Fatalf("outstanding after second tick: got %d, want 0", queue.Outstanding())
	}
}

// TestTickFlagsAndReapsLaggard walks one subscriber through the full
// lifecycle: active, flagged bad for sitting on a message past its age
// limit, then reaped after the grace period, freeing the slot id.
func TestTickFlagsAndReapsLaggard(t *testing.T) {
	clk := newTestClock()
	host, region := newHost(t, 1<<16, shmq.WithClock(clk.Now))
	queue, err := host.AddQueue(7, 2)
	if err != nil {
		t.Fatalf("AddQueue: %v", err)
	}
	client, err := shmq.NewClient(region, shmq.WithClock(clk.Now))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	laggard, err := client.Subscribe(7)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	reader, err := client.Subscribe(7)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if laggard.ID() != 0 || reader.ID() != 1 {
		t.Fatalf("ids: got %d/%d, want 0/1", laggard.ID(), reader.ID())
	}
	mem, err := host.Alloc(16)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	binary.LittleEndian.PutUint64(mem.Bytes(), 0xA)

	if err := queue.Post(0xA, mem); err != nil {
		t.Fatalf("post: %v", err)
	}
	if queue.Outstanding() != 1 {
		t.Fatalf("outstanding: got %d, want 1", queue.Outstanding())
	}

	// Within the age limit nothing changes, acknowledged or not.
	host.Tick()
	if queue.Outstanding() != 1 {
		t.Fatalf("outstanding: got %d, want 1", queue.Outstanding())
	}
	if on, bad := queue.Subscribers(); on != 0b11 || bad != 0 {
		t.Fatalf("subscribers: got %#x/%#x, want 0x3/0x0", on, bad)
	}

	msg, err := reader.Fetch()
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if msg.Tag != 0xA {
		t.Fatalf("tag: got %#x, want 0xa", msg.Tag)
	}
	if got := binary.LittleEndian.Uint64(msg.Data); got != 0xA {
		t.Fatalf("payload: got %#x, want 0xa", got)
	}
	if err := reader.Ack(); err != nil {
		t.Fatalf("Ack: %v", err)
	}

	// At exactly the age limit nothing happens; expiry is strict.
	clk.Advance(shmq.MaxMessageAge)
	host.Tick()
	if queue.Outstanding() != 1 {
		t.Fatalf("outstanding at age limit: got %d, want 1", queue.Outstanding())
	}
	if on, bad := queue.Subscribers(); on != 0b11 || bad != 0 {
		t.Fatalf("subscribers at age limit: got %#x/%#x, want 0x3/0x0", on, bad)
	}

	// One tick past the limit subscriber 0 is still sitting on the
	// message: it gets flagged, the head is force-completed, the reap
	// timer starts.
	clk.Advance(time.Millisecond)
	host.Tick()

	if queue.Outstanding() != 0 {
		t.Fatalf("outstanding after expiry: got %d, want 0", queue.Outstanding())
	}
	if on, bad := queue.Subscribers(); on != 0b11 || bad != 0b01 {
		t.Fatalf("subscribers: got %#x/%#x, want 0x3/0x1", on, bad)
	}
	if got := queue.SubscriberState(0); got != shmq.SubBad {
		t.Fatalf("state(0): got %v, want %v", got, shmq.SubBad)
	}
	if got := queue.SubscriberState(1); got != shmq.SubActive {
		t.Fatalf("state(1): got %v, want %v", got, shmq.SubActive)
	}
	if _, err := laggard.Fetch(); !errors.Is(err, shmq.ErrQueueTimeout) {
		t.Fatalf("fetch while flagged: got %v, want %v", err, shmq.ErrQueueTimeout)
	}
	if err := laggard.Ack(); !errors.Is(err, shmq.ErrQueueTimeout) {
		t.Fatalf("ack while flagged: got %v, want %v", err, shmq.ErrQueueTimeout)
	}
	if err := laggard.Unsubscribe(); !errors.Is(err, shmq.ErrQueueTimeout) {
		t.Fatalf("unsubscribe while flagged: got %v, want %v", err, shmq.ErrQueueTimeout)
	}

	// The flag holds until the grace period runs out.
	clk.Advance(shmq.SubscriberTimeout)
	host.Tick()
	if on, bad := queue.Subscribers(); on != 0b11 || bad != 0b01 {
		t.Fatalf("subscribers before reap: got %#x/%#x, want 0x3/0x1", on, bad)
	}

	clk.Advance(time.Millisecond)
	host.Tick()
	if on, bad := queue.Subscribers(); on != 0b10 || bad != 0 {
		t.Fatalf("subscribers after reap: got %#x/%#x, want 0x2/0x0", on, bad)
	}
	if got := queue.SubscriberState(0); got != shmq.SubUnsubscribed {
		t.Fatalf("state(0): got %v, want %v", got, shmq.SubUnsubscribed)
	}
	if _, err := laggard.Fetch(); !errors.Is(err, shmq.ErrUnsubscribed) {
		t.Fatalf("fetch after reap: got %v, want %v", err, shmq.ErrUnsubscribed)
	}
	if err := laggard.Ack(); !errors.Is(err, shmq.ErrUnsubscribed) {
		t.Fatalf("ack after reap: got %v, want %v", err, shmq.ErrUnsubscribed)
	}
	if err := laggard.Unsubscribe(); err != nil {
		t.Fatalf("unsubscribe after reap: %v", err)
	}

	// The reaped slot id is free for the next claimant.
	replacement, err := client.Subscribe(7)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if replacement.ID() != 0 {
		t.Fatalf("replacement id: got %d, want 0", replacement.ID())
	}
}

// TestPostFetchAckTickSoak runs the full delivery path long enough to
// wrap the ring and the arena-relative cursors many times over.
func TestPostFetchAckTickSoak(t *testing.T) {
	rounds := 100000
	if shmq.RaceEnabled {
		rounds = 10000
	}

	host, region := newHost(t, 1<<16)
	queue, err := host.AddQueue(1, 4)
	if err != nil {
		t.Fatalf("AddQueue: %v", err)
	}
	client, err := shmq.NewClient(region)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	sub, err := client.Subscribe(1)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	mem, err := host.Alloc(8)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	for round := range rounds {
		tag := uint64(round) + 1
		binary.LittleEndian.PutUint64(mem.Bytes(), tag)
		if err := queue.Post(tag, mem); err != nil {
			t.Fatalf("round %d: post: %v", round, err)
		}
		msg, err := sub.Fetch()
		if err != nil {
			t.Fatalf("round %d: fetch: %v", round, err)
		}
		if msg.Tag != tag {
			t.Fatalf("round %d: tag: got %d, want %d", round, msg.Tag, tag)
		}
		if got := binary.LittleEndian.Uint64(msg.Data); got != tag {
			t.Fatalf("round %d: payload: got %d, want %d", round, got, tag)
		}
		if err := sub.Ack(); err != nil {
			t.Fatalf("round %d: ack: %v", round, err)
		}
		host.Tick()
		if queue.Outstanding() != 0 {
			t.Fatalf("round %d: outstanding: got %d, want 0", round, queue.Outstanding())
		}
	}
	if on, bad := queue.Subscribers(); on != 0b1 || bad != 0 {
		t.Fatalf("subscribers: got %#x/%#x, want 0x1/0x0", on, bad)
	}
}
