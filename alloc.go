// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package shmq

// bump carves n bytes from the arena, rounded up to the 8-byte natural
// alignment of the shared structures. Monotonic: nothing is ever
// returned to the pool within a session.
func (h *Host) bump(n uint64) (uint64, error) {
	n = align8(n)
	if n > h.avail {
		return 0, ErrNoSharedMem
	}
	off := h.nextFree
	h.nextFree += n
	h.avail -= n
	return off, nil
}

// Memory is a host-local handle to one payload allocation. The bytes it
// names live in the shared region and stay allocated for the whole
// session; producers typically allocate a bounded set of buffers up
// front and overwrite them at a known cadence.
type Memory struct {
	host   *Host
	offset uint64
	size   uint64
}

// Alloc reserves size payload bytes from the region's arena. Returns
// ErrNoSharedMem when the arena cannot satisfy the request; the caller
// may recover by reducing demand, never by freeing.
func (h *Host) Alloc(size int) (*Memory, error) {
	if size <= 0 {
		return nil, ErrInvalidArgument
	}
	off, err := h.bump(uint64(size))
	if err != nil {
		return nil, err
	}
	return &Memory{host: h, offset: off, size: uint64(size)}, nil
}

// Bytes returns the handle's window into the shared region. The producer
// may rewrite it freely between posts; subscribers read it through the
// offsets carried by posted messages.
func (m *Memory) Bytes() []byte {
	return m.host.mem[m.offset : m.offset+m.size]
}

// Offset returns the payload's byte offset from the region base.
func (m *Memory) Offset() uint64 { return m.offset }

// Size returns the allocation size in bytes.
func (m *Memory) Size() int { return int(m.size) }

// Free releases the handle. The allocator is monotonic for the session,
// so the underlying bytes are not returned to the arena; Free exists only
// to drop the host-local descriptor. Posting a freed handle returns
// ErrInvalidArgument.
func (m *Memory) Free() {
	m.host = nil
	m.offset = 0
	m.size = 0
}
