// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package shmfile maps file-backed shared memory regions for use with
// the shmq protocol. The host Creates a region; each subscriber process
// Opens the same path and hands the mapped bytes to shmq.NewClient. On
// Linux a path under /dev/shm keeps the region off disk.
package shmfile

import (
	"os"

	"github.com/edsrzf/mmap-go"
)

// Region is one mapped shared-memory file.
type Region struct {
	f *os.File
	m mmap.MMap
}

// Create creates or truncates the file at path, sizes it, and maps it
// read-write. The returned mapping is page-aligned, which satisfies the
// protocol's 8-byte alignment requirement.
func Create(path string, size int) (*Region, error) {
	if size <= 0 {
		return nil, os.ErrInvalid
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, err
	}
	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Region{f: f, m: m}, nil
}

// Open maps an existing region file read-write. Subscribers need write
// access for their acknowledgement bits.
func Open(path string) (*Region, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Region{f: f, m: m}, nil
}

// Bytes returns the mapped region. Valid until Close.
func (r *Region) Bytes() []byte { return r.m }

// Size returns the mapped length in bytes.
func (r *Region) Size() int { return len(r.m) }

// Flush synchronously commits the mapping back to the file.
func (r *Region) Flush() error { return r.m.Flush() }

// Close unmaps the region and closes the file. The file itself is left
// in place; removing it is the creator's policy.
func (r *Region) Close() error {
	err := r.m.Unmap()
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}
	return err
}
