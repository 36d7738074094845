// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package shmq

import (
	"reflect"
	"testing"
)

// The structs below are the cross-process wire contract; any drift in
// field offsets breaks every subscriber built against the old layout.

func TestRegionHeaderLayout(t *testing.T) {
	typ := reflect.TypeOf(regionHeader{})

	checkOffset := func(name string, want uintptr) {
		field, ok := typ.FieldByName(name)
		if !ok {
			t.Fatalf("missing field %q", name)
		}
		if field.Offset != want {
			t.Fatalf("%s offset: got %d, want %d", name, field.Offset, want)
		}
	}

	checkOffset("magic", 0x00)
	checkOffset("version", 0x08)
	checkOffset("sessionID", 0x10)
	checkOffset("heartbeat", 0x18)
	checkOffset("caps", 0x20)
	checkOffset("numQueues", 0x28)
	checkOffset("queues", 0x40)

	if typ.Size() != 384 {
		t.Fatalf("regionHeader size: got %d, want 384", typ.Size())
	}
	if HeaderSize != 384 {
		t.Fatalf("HeaderSize: got %d, want 384", HeaderSize)
	}
}

func TestQueueDescLayout(t *testing.T) {
	typ := reflect.TypeOf(queueDesc{})

	checkOffset := func(name string, want uintptr) {
		field, ok := typ.FieldByName(name)
		if !ok {
			t.Fatalf("missing field %q", name)
		}
		if field.Offset != want {
			t.Fatalf("%s offset: got %d, want %d", name, field.Offset, want)
		}
	}

	checkOffset("queueID", 0x00)
	checkOffset("numSlots", 0x08)
	checkOffset("slotsOff", 0x10)
	checkOffset("position", 0x18)
	checkOffset("lock", 0x20)
	checkOffset("subs", 0x28)

	if typ.Size() != 64 {
		t.Fatalf("queueDesc size: got %d, want 64", typ.Size())
	}
}

func TestMessageSlotLayout(t *testing.T) {
	typ := reflect.TypeOf(messageSlot{})

	checkOffset := func(name string, want uintptr) {
		field, ok := typ.FieldByName(name)
		if !ok {
			t.Fatalf("missing field %q", name)
		}
		if field.Offset != want {
			t.Fatalf("%s offset: got %d, want %d", name, field.Offset, want)
		}
	}

	checkOffset("tag", 0x00)
	checkOffset("offset", 0x08)
	checkOffset("size", 0x10)
	checkOffset("pending", 0x18)

	if typ.Size() != 32 {
		t.Fatalf("messageSlot size: got %d, want 32", typ.Size())
	}
	if slotSize != 32 {
		t.Fatalf("slotSize: got %d, want 32", slotSize)
	}
}

func TestSubsWordPacking(t *testing.T) {
	tests := []struct {
		name    string
		on, bad uint32
	}{
		{"empty", 0, 0},
		{"low bit", 1, 0},
		{"bad subset", 0b1011, 0b0010},
		{"all on", ^uint32(0), 0},
		{"all flagged", ^uint32(0), ^uint32(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := packSubs(tt.on, tt.bad)
			if got := subsOn(w); got != tt.on {
				t.Fatalf("subsOn: got %#x, want %#x", got, tt.on)
			}
			if got := subsBad(w); got != tt.bad {
				t.Fatalf("subsBad: got %#x, want %#x", got, tt.bad)
			}
		})
	}
}

func TestHeaderOverlay(t *testing.T) {
	region := make([]byte, HeaderSize)
	hdr := headerOf(region)
	hdr.magic.Store(headerMagic)

	// Little-endian "SHMQRING" must land at offset 0.
	want := []byte("SHMQRING")
	if got := region[:8]; string(got) != string(want) {
		t.Fatalf("magic bytes: got %q, want %q", got, want)
	}
}
