// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret provides locked memory buffers for sensitive data:
// age identities and unsealed configuration values.
//
// [Buffer] allocates memory outside the Go heap via mmap(MAP_ANONYMOUS),
// locks it into physical RAM via mlock so it cannot reach swap, and
// excludes it from core dumps via madvise(MADV_DONTDUMP). Close zeros,
// unlocks, and unmaps the region. Because the memory lives outside the
// Go heap, the garbage collector cannot copy or relocate it, so no
// stray duplicate of the secret outlives the buffer.
//
// Constructors: [New] allocates a zero-filled buffer, [NewFromBytes]
// moves existing bytes into protected memory and zeros the source, and
// [ReadFromPath] loads a secret from a file or stdin. [Zero] scrubs a
// heap slice in place for the transient copies that string-typed APIs
// force at the boundary.
//
// Depends only on golang.org/x/sys. Imported by lib/sealed for age
// identity handling.
package secret
