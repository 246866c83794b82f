// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Buffer holds sensitive data in memory that is locked against
// swapping, excluded from core dumps, and zeroed on close. The backing
// memory is an anonymous mmap region outside the Go heap.
//
// A Buffer must not be copied after creation. Call Close when the
// secret is no longer needed; any access after Close panics.
type Buffer struct {
	mu     sync.Mutex
	data   []byte
	size   int
	closed bool
}

// New allocates a zero-filled secret buffer of the given size.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("secret: buffer size must be positive, got %d", size)
	}

	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("secret: mmap: %w", err)
	}
	if err := unix.Mlock(data); err != nil {
		unix.Munmap(data)
		return nil, fmt.Errorf("secret: mlock: %w", err)
	}
	if err := unix.Madvise(data, unix.MADV_DONTDUMP); err != nil {
		unix.Munlock(data)
		unix.Munmap(data)
		return nil, fmt.Errorf("secret: madvise(MADV_DONTDUMP): %w", err)
	}

	return &Buffer{data: data, size: size}, nil
}

// NewFromBytes moves existing data into a protected buffer. The source
// bytes are copied into the mmap region and zeroed in place, so the
// caller's slice no longer holds the secret.
func NewFromBytes(source []byte) (*Buffer, error) {
	if len(source) == 0 {
		return nil, fmt.Errorf("secret: cannot create buffer from empty source")
	}

	buffer, err := New(len(source))
	if err != nil {
		return nil, err
	}
	copy(buffer.data, source)
	Zero(source)
	return buffer, nil
}

// Bytes returns the secret data. The slice points directly into the
// mmap region; do not retain it beyond the buffer's lifetime. Panics
// after Close.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		panic("secret: read from closed buffer")
	}
	return b.data[:b.size]
}

// String returns the secret as a string. Go strings are immutable heap
// values, so this makes an unprotected copy; use it only at API
// boundaries that demand a string, and prefer Bytes elsewhere. Panics
// after Close.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		panic("secret: read from closed buffer")
	}
	return string(b.data[:b.size])
}

// Len returns the size of the secret data.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Close zeros the contents, unlocks, and unmaps the memory. Close is
// idempotent; after it returns, Bytes and String panic.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	Zero(b.data)

	// The memory is released when the process exits regardless, so a
	// failure here is reported but leaves nothing sensitive behind:
	// the region is already zeroed.
	var firstError error
	if err := unix.Munlock(b.data); err != nil && firstError == nil {
		firstError = fmt.Errorf("secret: munlock: %w", err)
	}
	if err := unix.Munmap(b.data); err != nil && firstError == nil {
		firstError = fmt.Errorf("secret: munmap: %w", err)
	}
	b.data = nil
	return firstError
}

// Zero overwrites a slice with zero bytes. Use it on transient heap
// copies of secret material that cannot go through a Buffer.
func Zero(data []byte) {
	for i := range data {
		data[i] = 0
	}
}
